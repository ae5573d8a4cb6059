package server

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/betbot/enginectl/internal/domain"
)

func (s *Server) handleBotStatus(c *gin.Context) {
	c.JSON(http.StatusOK, botResponse{Success: true, Status: s.lifecycle.Status()})
}

// handleBotCommand runs start/stop/restart and reports the resulting status.
func (s *Server) handleBotCommand(c *gin.Context) {
	cmd, err := domain.ParseLifecycleCommand(c.Param("command"))
	if err != nil {
		c.JSON(http.StatusBadRequest, botResponse{Status: s.lifecycle.Status(), Error: err.Error()})
		return
	}

	// 客户端断开不取消 START/STOP：引擎可能已经执行，单次调用由 CallTimeout 约束
	status, err := s.lifecycle.Execute(context.WithoutCancel(c.Request.Context()), cmd)
	if err != nil {
		msg, kind := describe(err)
		c.JSON(httpStatus(err), botResponse{
			Status:    status,
			Error:     msg,
			Code:      kind,
			Retryable: kind.Retryable(),
		})
		return
	}
	c.JSON(http.StatusOK, botResponse{Success: true, Status: status})
}
