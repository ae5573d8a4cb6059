package server

import (
	"net/http"

	"github.com/betbot/enginectl/internal/domain"
)

// httpStatus 按错误分类映射 HTTP 状态码
func httpStatus(err error) int {
	switch domain.KindOf(err) {
	case domain.KindEngineUnavailable:
		return http.StatusBadGateway
	case domain.KindValidationRejected:
		return http.StatusUnprocessableEntity
	case domain.KindInvalidTransition, domain.KindOperationInProgress, domain.KindNoBaseline:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// describe returns the operator-facing message and classification of err.
func describe(err error) (string, domain.ErrorKind) {
	kind := domain.KindOf(err)
	if kind == "" {
		return "internal error", ""
	}
	return domain.MessageOf(err), kind
}
