package engine

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrCircuitOpen 断路器打开期间直接拒绝远程调用
var ErrCircuitOpen = errors.New("engine circuit breaker open")

// BreakerConfig 断路器配置。
// 约定：MaxConsecutiveErrors <= 0 表示关闭断路器。
type BreakerConfig struct {
	MaxConsecutiveErrors int64
	Cooldown             time.Duration
}

// Breaker wraps an Engine and fails fast after a run of connectivity failures.
// Content rejections from SubmitConfig prove the engine is reachable and reset the count.
type Breaker struct {
	next Engine
	now  func() time.Time

	consecutiveErrors atomic.Int64
	openUntil         atomic.Int64 // unix nano；0 表示关闭

	maxConsecutiveErrors int64
	cooldown             time.Duration
}

var _ Engine = (*Breaker)(nil)

func NewBreaker(next Engine, cfg BreakerConfig) *Breaker {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 10 * time.Second
	}
	return &Breaker{
		next:                 next,
		now:                  time.Now,
		maxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		cooldown:             cfg.Cooldown,
	}
}

// Open 断路器当前是否处于打开状态
func (b *Breaker) Open() bool {
	until := b.openUntil.Load()
	return until != 0 && b.now().UnixNano() < until
}

func (b *Breaker) allow() error {
	if b.maxConsecutiveErrors <= 0 {
		return nil
	}
	if b.Open() {
		return ErrCircuitOpen
	}
	return nil
}

func (b *Breaker) record(err error) {
	if b.maxConsecutiveErrors <= 0 {
		return
	}
	if err == nil {
		b.consecutiveErrors.Store(0)
		b.openUntil.Store(0)
		return
	}
	if _, ok := IsRejection(err); ok {
		b.consecutiveErrors.Store(0)
		return
	}
	if b.consecutiveErrors.Add(1) >= b.maxConsecutiveErrors {
		b.openUntil.Store(b.now().Add(b.cooldown).UnixNano())
		// 冷却结束后给一次试探机会
		b.consecutiveErrors.Store(b.maxConsecutiveErrors - 1)
	}
}

func (b *Breaker) GetConfig(ctx context.Context) (string, error) {
	if err := b.allow(); err != nil {
		return "", err
	}
	doc, err := b.next.GetConfig(ctx)
	b.record(err)
	return doc, err
}

func (b *Breaker) SubmitConfig(ctx context.Context, document string) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.next.SubmitConfig(ctx, document)
	b.record(err)
	return err
}

func (b *Breaker) Start(ctx context.Context) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.next.Start(ctx)
	b.record(err)
	return err
}

func (b *Breaker) Stop(ctx context.Context) error {
	if err := b.allow(); err != nil {
		return err
	}
	err := b.next.Stop(ctx)
	b.record(err)
	return err
}
