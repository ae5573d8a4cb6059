package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/betbot/enginectl/internal/domain"
)

// Metrics holds the control plane's Prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	registry *prometheus.Registry

	LifecycleCommands *prometheus.CounterVec
	CommandDuration   *prometheus.HistogramVec
	Status            *prometheus.GaugeVec
	ConfigOps         *prometheus.CounterVec
	EngineCalls       *prometheus.CounterVec
	EngineLatency     *prometheus.HistogramVec
}

var allStatuses = []domain.BotStatus{
	domain.BotStatusIdle,
	domain.BotStatusStarting,
	domain.BotStatusRunning,
	domain.BotStatusStopping,
}

// New 创建并注册到独立 registry（避免全局 DefaultRegisterer 的副作用）
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		LifecycleCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enginectl_lifecycle_commands_total",
			Help: "Lifecycle commands by command and result kind",
		}, []string{"command", "result"}),
		CommandDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enginectl_lifecycle_command_duration_seconds",
			Help:    "Lifecycle command duration including engine calls",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),
		Status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "enginectl_bot_status",
			Help: "1 for the current bot status, 0 otherwise",
		}, []string{"status"}),
		ConfigOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enginectl_config_ops_total",
			Help: "Config sync operations by op and result kind",
		}, []string{"op", "result"}),
		EngineCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "enginectl_engine_calls_total",
			Help: "Remote engine calls by op and outcome",
		}, []string{"op", "outcome"}),
		EngineLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "enginectl_engine_call_duration_seconds",
			Help:    "Remote engine call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.LifecycleCommands,
		m.CommandDuration,
		m.Status,
		m.ConfigOps,
		m.EngineCalls,
		m.EngineLatency,
	)
	return m
}

// Registry 返回 registry（供 /metrics handler 使用）
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if k := domain.KindOf(err); k != "" {
		return string(k)
	}
	return "error"
}

// CommandFinished implements lifecycle.Recorder.
func (m *Metrics) CommandFinished(cmd domain.LifecycleCommand, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LifecycleCommands.WithLabelValues(string(cmd), resultLabel(err)).Inc()
	m.CommandDuration.WithLabelValues(string(cmd)).Observe(elapsed.Seconds())
}

// StatusChanged implements lifecycle.Recorder.
func (m *Metrics) StatusChanged(status domain.BotStatus) {
	if m == nil {
		return
	}
	for _, s := range allStatuses {
		v := 0.0
		if s == status {
			v = 1
		}
		m.Status.WithLabelValues(string(s)).Set(v)
	}
}

// ConfigOpFinished implements configsync.Recorder.
func (m *Metrics) ConfigOpFinished(op string, err error, _ time.Duration) {
	if m == nil {
		return
	}
	m.ConfigOps.WithLabelValues(op, resultLabel(err)).Inc()
}

// ObserveEngineCall matches engine.CallObserver.
func (m *Metrics) ObserveEngineCall(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EngineCalls.WithLabelValues(op, outcome).Inc()
	m.EngineLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}
