package engine

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
)

const (
	pathConfig = "/config"
	pathStart  = "/start"
	pathStop   = "/stop"
)

// CallObserver 每次远程调用结束后回调（用于指标统计）
type CallObserver func(op string, elapsed time.Duration, err error)

// HTTPClientOptions 引擎 HTTP 客户端配置
type HTTPClientOptions struct {
	BaseURL    string
	Timeout    time.Duration // 单次请求超时（调用方 ctx 的 deadline 更早时以 ctx 为准）
	RetryCount int           // 仅对 GET 生效；start/stop/submit 不自动重试
	Observer   CallObserver
}

// HTTPClient talks to the engine's HTTP control endpoints.
type HTTPClient struct {
	client   *resty.Client
	observer CallObserver
}

var _ Engine = (*HTTPClient)(nil)

func NewHTTPClient(opts HTTPClientOptions) *HTTPClient {
	host := strings.TrimSuffix(strings.TrimSpace(opts.BaseURL), "/")
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	// resty 会自动从环境变量读取代理配置（HTTP_PROXY, HTTPS_PROXY）
	client := resty.New().
		SetBaseURL(host).
		SetTimeout(timeout).
		SetHeader("User-Agent", "enginectl").
		SetRetryCount(max(opts.RetryCount, 0)).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(5 * time.Second).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			// 只重试幂等读：提交配置、启停不能重复发送
			if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
				return false
			}
			return err != nil || resp.StatusCode() >= 500 || resp.StatusCode() == http.StatusTooManyRequests
		})

	return &HTTPClient{client: client, observer: opts.Observer}
}

func (c *HTTPClient) newRequest(ctx context.Context) *resty.Request {
	r := c.client.R()
	if ctx != nil {
		r.SetContext(ctx)
	}
	r.SetHeader("Accept", "*/*")
	return r
}

// GetConfig reads the engine's active configuration document.
func (c *HTTPClient) GetConfig(ctx context.Context) (doc string, err error) {
	defer c.observe("get_config", time.Now(), &err)

	resp, err := c.newRequest(ctx).Get(pathConfig)
	if err != nil {
		return "", errors.Wrap(err, "engine get config")
	}
	if !resp.IsSuccess() {
		return "", errors.Errorf("engine get config: unexpected status %d: %s", resp.StatusCode(), bodySnippet(resp))
	}
	return string(resp.Body()), nil
}

// SubmitConfig sends a full document. 400/422 are content rejections; anything else non-2xx is
// treated as the engine being unavailable.
func (c *HTTPClient) SubmitConfig(ctx context.Context, document string) (err error) {
	defer c.observe("submit_config", time.Now(), &err)

	resp, err := c.newRequest(ctx).
		SetHeader("Content-Type", "text/plain; charset=utf-8").
		SetBody(document).
		Put(pathConfig)
	if err != nil {
		return errors.Wrap(err, "engine submit config")
	}
	switch code := resp.StatusCode(); {
	case resp.IsSuccess():
		return nil
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return &RejectionError{StatusCode: code, Reason: bodySnippet(resp)}
	default:
		return errors.Errorf("engine submit config: unexpected status %d: %s", code, bodySnippet(resp))
	}
}

func (c *HTTPClient) Start(ctx context.Context) (err error) {
	defer c.observe("start", time.Now(), &err)
	return c.command(ctx, pathStart)
}

func (c *HTTPClient) Stop(ctx context.Context) (err error) {
	defer c.observe("stop", time.Now(), &err)
	return c.command(ctx, pathStop)
}

func (c *HTTPClient) command(ctx context.Context, path string) error {
	resp, err := c.newRequest(ctx).Post(path)
	if err != nil {
		return errors.Wrapf(err, "engine %s", strings.TrimPrefix(path, "/"))
	}
	if !resp.IsSuccess() {
		return errors.Errorf("engine %s: unexpected status %d: %s", strings.TrimPrefix(path, "/"), resp.StatusCode(), bodySnippet(resp))
	}
	return nil
}

func (c *HTTPClient) observe(op string, start time.Time, err *error) {
	if c.observer != nil {
		c.observer(op, time.Since(start), *err)
	}
}

func bodySnippet(resp *resty.Response) string {
	s := strings.TrimSpace(string(resp.Body()))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	if s == "" {
		s = resp.Status()
	}
	return s
}
