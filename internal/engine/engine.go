// Package engine is the request/response boundary to the remote trading engine.
//
// The control plane never runs trading logic itself: it reads and submits the engine's
// configuration and asks the engine to start or stop. Implementations report two kinds of
// failure only: a *RejectionError when the engine refused submitted configuration content,
// and any other error for connectivity problems (transport, timeout, unexpected status).
package engine

import (
	"context"
	"errors"
	"fmt"
)

// Lifecycle 引擎启停能力
type Lifecycle interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// ConfigStore 引擎配置读写能力
type ConfigStore interface {
	GetConfig(ctx context.Context) (string, error)
	SubmitConfig(ctx context.Context, document string) error
}

// Engine is the full remote capability.
type Engine interface {
	Lifecycle
	ConfigStore
}

// RejectionError means the engine received the document and refused its content.
type RejectionError struct {
	StatusCode int
	Reason     string
}

func (e *RejectionError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("engine rejected configuration (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("engine rejected configuration: %s", e.Reason)
}

// IsRejection 判断是否为引擎侧的校验拒绝（而非连接失败）
func IsRejection(err error) (*RejectionError, bool) {
	var rej *RejectionError
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}
