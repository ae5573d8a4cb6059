package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure a component reports to its callers.
type ErrorKind string

const (
	KindEngineUnavailable   ErrorKind = "engine_unavailable"
	KindValidationRejected  ErrorKind = "validation_rejected"
	KindInvalidTransition   ErrorKind = "invalid_transition"
	KindOperationInProgress ErrorKind = "operation_in_progress"
	KindNoBaseline          ErrorKind = "no_baseline"
)

// Retryable reports whether the operator may retry the same request unchanged.
func (k ErrorKind) Retryable() bool {
	return k == KindEngineUnavailable
}

// Error is the structured error returned by the lifecycle controller and the config sync service.
type Error struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

var (
	ErrEngineUnavailable   = &Error{Kind: KindEngineUnavailable}
	ErrValidationRejected  = &Error{Kind: KindValidationRejected}
	ErrInvalidTransition   = &Error{Kind: KindInvalidTransition}
	ErrOperationInProgress = &Error{Kind: KindOperationInProgress}
	ErrNoBaseline          = &Error{Kind: KindNoBaseline}
)

// NewError 构造分类错误
func NewError(kind ErrorKind, op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches on Kind. OperationInProgress is a flavour of InvalidTransition.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if e.Kind == t.Kind {
		return true
	}
	return e.Kind == KindOperationInProgress && t.Kind == KindInvalidTransition
}

// KindOf 返回错误分类；非分类错误返回空字符串
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// MessageOf returns the human-readable part of a classified error, without the cause chain.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
