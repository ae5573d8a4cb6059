// Package client is a thin HTTP client for the control plane API, used by botctl.
package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/betbot/enginectl/internal/domain"
)

// APIError is a `success: false` answer from the control plane.
type APIError struct {
	StatusCode int
	Code       domain.ErrorKind
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("control plane returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

// BotResult 生命周期命令/状态查询结果
type BotResult struct {
	Success   bool             `json:"success"`
	Status    domain.BotStatus `json:"status"`
	Error     string           `json:"error"`
	Code      domain.ErrorKind `json:"code"`
	Retryable bool             `json:"retryable"`
}

// ConfigResult 配置读取结果
type ConfigResult struct {
	Success    bool              `json:"success"`
	Config     string            `json:"config"`
	Revision   uint64            `json:"revision"`
	Provenance domain.Provenance `json:"provenance"`
	Error      string            `json:"error"`
	Code       domain.ErrorKind  `json:"code"`
}

// SaveResult 配置写入结果
type SaveResult struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Revision uint64           `json:"revision"`
	Error    string           `json:"error"`
	Code     domain.ErrorKind `json:"code"`
}

type Client struct {
	http *resty.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimSuffix(strings.TrimSpace(baseURL), "/")).
			SetTimeout(timeout).
			SetHeader("User-Agent", "botctl"),
	}
}

// Status 查询当前 BotStatus
func (c *Client) Status(ctx context.Context) (BotResult, error) {
	var out BotResult
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).Get("/api/bot/status")
	if err != nil {
		return out, errors.Wrap(err, "request bot status")
	}
	return out, check(resp.StatusCode(), out.Success, out.Code, out.Error)
}

// Command 发送 start/stop/restart。失败时 BotResult 仍带有命令结束后的状态。
func (c *Client) Command(ctx context.Context, cmd domain.LifecycleCommand) (BotResult, error) {
	var out BotResult
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).
		SetPathParam("command", string(cmd)).
		Post("/api/bot/{command}")
	if err != nil {
		return out, errors.Wrapf(err, "request bot %s", cmd)
	}
	return out, check(resp.StatusCode(), out.Success, out.Code, out.Error)
}

// GetConfig 让控制面从引擎拉取当前配置
func (c *Client) GetConfig(ctx context.Context) (ConfigResult, error) {
	var out ConfigResult
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).Get("/api/config")
	if err != nil {
		return out, errors.Wrap(err, "request config")
	}
	return out, check(resp.StatusCode(), out.Success, out.Code, out.Error)
}

// SetConfig submits a full document. The control plane must have fetched a baseline first,
// so callers usually GetConfig before SetConfig.
func (c *Client) SetConfig(ctx context.Context, content string) (SaveResult, error) {
	var out SaveResult
	resp, err := c.http.R().SetContext(ctx).SetResult(&out).SetError(&out).
		SetBody(map[string]string{"config": content}).
		Post("/api/config")
	if err != nil {
		return out, errors.Wrap(err, "submit config")
	}
	return out, check(resp.StatusCode(), out.Success, out.Code, out.Error)
}

func check(status int, success bool, code domain.ErrorKind, msg string) error {
	if success && status < 300 {
		return nil
	}
	if msg == "" {
		msg = "request failed"
	}
	return &APIError{StatusCode: status, Code: code, Message: msg}
}
