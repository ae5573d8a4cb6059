package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/betbot/enginectl/internal/configsync"
	"github.com/betbot/enginectl/internal/controlplane/server"
	"github.com/betbot/enginectl/internal/engine"
	"github.com/betbot/enginectl/internal/lifecycle"
	"github.com/betbot/enginectl/internal/metrics"
	"github.com/betbot/enginectl/pkg/config"
	"github.com/betbot/enginectl/pkg/logger"
	"github.com/betbot/enginectl/pkg/shutdown"
)

func main() {
	configPath := flag.String("config", "", "配置文件路径（YAML，可选）")
	listenAddr := flag.String("listen", "", "HTTP 监听地址（覆盖配置）")
	engineURL := flag.String("engine-url", "", "引擎控制接口地址（覆盖配置）")
	mockEngine := flag.Bool("mock-engine", false, "使用内存引擎（本地联调用）")
	mockDocument := flag.String("mock-document", "mode=dry\n", "内存引擎的初始配置")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "加载配置失败: %v\n", err)
		os.Exit(1)
	}
	if *listenAddr != "" {
		cfg.Listen = *listenAddr
	}
	if *engineURL != "" {
		cfg.Engine.BaseURL = *engineURL
	}

	if err := logger.Init(logger.Config{
		Level:      cfg.Log.Level,
		OutputFile: cfg.Log.File,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "初始化日志失败: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	if f := logger.CurrentFile(); f != "" {
		logger.Infof("日志文件: %s", f)
	}

	m := metrics.New()

	var eng engine.Engine
	if *mockEngine {
		logger.Warnf("使用内存引擎运行，所有命令不会到达真实引擎")
		eng = engine.NewMock(*mockDocument)
	} else {
		eng = engine.NewHTTPClient(engine.HTTPClientOptions{
			BaseURL:    cfg.Engine.BaseURL,
			Timeout:    cfg.Engine.Timeout,
			RetryCount: cfg.Engine.RetryCount,
			Observer:   m.ObserveEngineCall,
		})
	}
	eng = engine.NewBreaker(eng, engine.BreakerConfig{
		MaxConsecutiveErrors: cfg.Engine.Breaker.MaxConsecutiveErrors,
		Cooldown:             cfg.Engine.Breaker.Cooldown,
	})

	srv, err := server.New(server.Config{
		Lifecycle: lifecycle.New(eng, lifecycle.Options{
			CallTimeout: cfg.LifecycleCallTimeout,
			Recorder:    m,
		}),
		Sync: configsync.New(eng, configsync.Options{
			CallTimeout: cfg.SyncCallTimeout,
			Recorder:    m,
		}),
		Registry: m.Registry(),
	})
	if err != nil {
		logger.Errorf("初始化 server 失败: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownMgr := shutdown.NewManager()

	if cfg.DebugListen != "" {
		debugSrv, err := metrics.StartAsync(ctx, cfg.DebugListen, m.Registry())
		if err != nil {
			logger.Errorf("启动 metrics/pprof 服务失败: %v", err)
			os.Exit(1)
		}
		shutdownMgr.OnShutdown("debug_http", debugSrv.Shutdown)
		logger.Infof("metrics/pprof listening on %s", cfg.DebugListen)
	}

	httpSrv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	shutdownMgr.OnShutdown("http", httpSrv.Shutdown)

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("engine", cfg.Engine.BaseURL).Infof("controlplane listening on %s", cfg.Listen)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	select {
	case sig := <-sigChan:
		logger.Infof("收到信号 %v，开始关闭", sig)
	case err := <-serveErr:
		logger.Errorf("http server error: %v", err)
	}

	// 进行中的生命周期命令/配置提交由 http.Server.Shutdown 等待其请求结束
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.LifecycleCallTimeout+5*time.Second)
	defer shutdownCancel()
	if pending := shutdownMgr.Shutdown(shutdownCtx); pending > 0 {
		logger.Warnf("%d 个关闭回调未在超时前完成", pending)
	}
	logger.Info("server stopped")
}
