// Package server is the HTTP boundary the operator UI talks to. Every failure is returned as a
// structured `success: false` body with a human-readable message; engine failures never crash
// the process.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"github.com/betbot/enginectl/internal/configsync"
	"github.com/betbot/enginectl/internal/domain"
	"github.com/betbot/enginectl/internal/metrics"
)

var serverLog = logrus.WithField("component", "controlplane_server")

// LifecycleController is the lifecycle surface the server needs.
type LifecycleController interface {
	Status() domain.BotStatus
	Execute(ctx context.Context, cmd domain.LifecycleCommand) (domain.BotStatus, error)
}

// ConfigSyncer is the config sync surface the server needs.
type ConfigSyncer interface {
	Fetch(ctx context.Context) (configsync.FetchResult, error)
	EditDraft(content string) (domain.ConfigDocument, error)
	ResetDraft() (domain.ConfigDocument, error)
	SaveConfig(ctx context.Context) (domain.ConfigDocument, error)
	Submit(ctx context.Context, content string) (domain.ConfigDocument, error)
	Snapshot() (configsync.Snapshot, bool)
}

type Config struct {
	Lifecycle LifecycleController
	Sync      ConfigSyncer
	// Registry 为 nil 时不暴露 /metrics
	Registry *prometheus.Registry
}

type Server struct {
	lifecycle LifecycleController
	sync      ConfigSyncer
	registry  *prometheus.Registry
}

func New(cfg Config) (*Server, error) {
	if cfg.Lifecycle == nil {
		return nil, errors.New("lifecycle controller is required")
	}
	if cfg.Sync == nil {
		return nil, errors.New("config sync service is required")
	}
	return &Server{lifecycle: cfg.Lifecycle, sync: cfg.Sync, registry: cfg.Registry}, nil
}

func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	if s.registry != nil {
		r.GET("/metrics", gin.WrapH(metrics.Handler(s.registry)))
	}

	api := r.Group("/api")

	cfg := api.Group("/config")
	cfg.GET("", s.handleConfigGet)
	cfg.POST("", s.handleConfigWrite)
	cfg.GET("/draft", s.handleDraftGet)
	cfg.PUT("/draft", s.handleDraftEdit)
	cfg.POST("/draft/reset", s.handleDraftReset)
	cfg.POST("/draft/save", s.handleDraftSave)

	bot := api.Group("/bot")
	bot.GET("/status", s.handleBotStatus)
	bot.POST("/:command", s.handleBotCommand)

	return r
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := serverLog.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}
