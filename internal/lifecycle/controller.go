// Package lifecycle tracks the believed status of the remote engine and serializes the
// operator's start/stop/restart commands against it.
package lifecycle

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/betbot/enginectl/internal/domain"
	"github.com/betbot/enginectl/internal/engine"
	"github.com/betbot/enginectl/internal/execution"
)

var controllerLog = logrus.WithField("component", "lifecycle_controller")

const defaultCallTimeout = 30 * time.Second

// Recorder 接收命令结果与状态变化（指标用）；nil 表示不记录
type Recorder interface {
	CommandFinished(cmd domain.LifecycleCommand, err error, elapsed time.Duration)
	StatusChanged(status domain.BotStatus)
}

// Options 控制器配置
type Options struct {
	// CallTimeout bounds every remote START/STOP call. Expiry counts as EngineUnavailable.
	CallTimeout time.Duration
	Logger      *logrus.Entry
	Recorder    Recorder
}

// Controller owns the process-wide BotStatus. The status only moves as a result of a
// command completing or failing; it never settles in Starting or Stopping.
type Controller struct {
	engine  engine.Lifecycle
	timeout time.Duration
	log     *logrus.Entry
	rec     Recorder

	gate execution.Gate

	mu       sync.Mutex
	status   domain.BotStatus
	startLeg *startLeg
}

// startLeg is the in-flight START call. A Stop issued while it runs cancels it and
// hands its own context over; the gate holder then performs the stop.
type startLeg struct {
	cancel context.CancelFunc
	stop   *stopRequest
}

type stopRequest struct {
	ctx    context.Context
	log    *logrus.Entry
	result chan outcome
}

type outcome struct {
	status domain.BotStatus
	err    error
}

// New creates a controller in the Idle state.
func New(eng engine.Lifecycle, opts Options) *Controller {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = controllerLog
	}
	c := &Controller{
		engine:  eng,
		timeout: opts.CallTimeout,
		log:     opts.Logger,
		rec:     opts.Recorder,
		status:  domain.BotStatusIdle,
	}
	if c.rec != nil {
		c.rec.StatusChanged(c.status)
	}
	return c
}

// Status returns the last known status. It never blocks on the engine.
func (c *Controller) Status() domain.BotStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Execute runs cmd and returns the resulting status.
//
// Only one command runs at a time; a second command fails immediately with
// OperationInProgress (which errors.Is ErrInvalidTransition). The one exception is Stop
// while a start is in flight: it cancels the start and stops the engine.
func (c *Controller) Execute(ctx context.Context, cmd domain.LifecycleCommand) (status domain.BotStatus, err error) {
	start := time.Now()
	log := c.log.WithFields(logrus.Fields{"op_id": uuid.NewString()[:8], "command": cmd})
	defer func() {
		if c.rec != nil {
			c.rec.CommandFinished(cmd, err, time.Since(start))
		}
		if err != nil {
			log.WithField("status", status).Warnf("lifecycle command failed: %v", err)
		} else {
			log.WithField("status", status).Info("lifecycle command completed")
		}
	}()

	if cmd == domain.CommandStop {
		if req := c.interruptStart(ctx, log); req != nil {
			out := <-req.result
			return out.status, out.err
		}
	}

	if gateErr := c.gate.TryAcquire(string(cmd)); gateErr != nil {
		cur := c.Status()
		if cur == domain.BotStatusStopping {
			return cur, domain.NewError(domain.KindOperationInProgress, string(cmd), gateErr, "engine is already stopping")
		}
		return cur, domain.NewError(domain.KindOperationInProgress, string(cmd), gateErr,
			"lifecycle command %s is already in flight", execution.HolderOf(gateErr))
	}
	defer c.gate.Release()

	switch cmd {
	case domain.CommandStart:
		return c.runStart(ctx, log, string(cmd))
	case domain.CommandStop:
		return c.runStop(ctx, log)
	case domain.CommandRestart:
		return c.runRestart(ctx, log)
	default:
		return c.Status(), domain.NewError(domain.KindInvalidTransition, string(cmd), nil, "unknown lifecycle command %q", cmd)
	}
}

func (c *Controller) runStart(ctx context.Context, log *logrus.Entry, op string) (domain.BotStatus, error) {
	c.mu.Lock()
	if c.status != domain.BotStatusIdle {
		cur := c.status
		c.mu.Unlock()
		return cur, domain.NewError(domain.KindInvalidTransition, op, nil, "cannot start from %s", cur)
	}
	c.setStatusLocked(domain.BotStatusStarting, log)
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	leg := &startLeg{cancel: cancel}
	c.startLeg = leg
	c.mu.Unlock()

	err := c.engine.Start(callCtx)
	cancel()

	c.mu.Lock()
	c.startLeg = nil
	if leg.stop != nil {
		// Stop 已接管：状态已是 Stopping，由本协程代为执行 STOP
		c.mu.Unlock()
		st, stopErr := c.finishStop(leg.stop.ctx, leg.stop.log, string(domain.CommandStop))
		leg.stop.result <- outcome{status: st, err: stopErr}
		return st, domain.NewError(domain.KindInvalidTransition, op, err, "start cancelled by stop command")
	}
	defer c.mu.Unlock()
	if err != nil {
		c.setStatusLocked(domain.BotStatusIdle, log)
		return c.status, unavailable(op, err)
	}
	c.setStatusLocked(domain.BotStatusRunning, log)
	return c.status, nil
}

func (c *Controller) runStop(ctx context.Context, log *logrus.Entry) (domain.BotStatus, error) {
	op := string(domain.CommandStop)
	c.mu.Lock()
	switch c.status {
	case domain.BotStatusRunning:
		c.setStatusLocked(domain.BotStatusStopping, log)
	case domain.BotStatusStopping:
		c.mu.Unlock()
		return domain.BotStatusStopping, domain.NewError(domain.KindInvalidTransition, op, nil, "engine is already stopping")
	default:
		cur := c.status
		c.mu.Unlock()
		return cur, domain.NewError(domain.KindInvalidTransition, op, nil, "cannot stop from %s", cur)
	}
	c.mu.Unlock()
	return c.finishStop(ctx, log, op)
}

// runRestart is Stop to Idle followed by Start, under a single gate hold.
// A failed stop aborts without attempting the start.
func (c *Controller) runRestart(ctx context.Context, log *logrus.Entry) (domain.BotStatus, error) {
	op := string(domain.CommandRestart)
	c.mu.Lock()
	if c.status != domain.BotStatusRunning {
		cur := c.status
		c.mu.Unlock()
		return cur, domain.NewError(domain.KindInvalidTransition, op, nil, "cannot restart from %s", cur)
	}
	c.setStatusLocked(domain.BotStatusStopping, log)
	c.mu.Unlock()

	if st, err := c.finishStop(ctx, log, op+"/stop"); err != nil {
		return st, err
	}
	return c.runStart(ctx, log, op+"/start")
}

// finishStop issues STOP with status already Stopping. Failure rolls back to Running.
func (c *Controller) finishStop(ctx context.Context, log *logrus.Entry, op string) (domain.BotStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	err := c.engine.Stop(callCtx)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.setStatusLocked(domain.BotStatusRunning, log)
		return c.status, unavailable(op, err)
	}
	c.setStatusLocked(domain.BotStatusIdle, log)
	return c.status, nil
}

// interruptStart claims the in-flight start for a Stop. Returns nil when there is none.
func (c *Controller) interruptStart(ctx context.Context, log *logrus.Entry) *stopRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	leg := c.startLeg
	if leg == nil || leg.stop != nil || c.status != domain.BotStatusStarting {
		return nil
	}
	req := &stopRequest{ctx: ctx, log: log, result: make(chan outcome, 1)}
	leg.stop = req
	c.setStatusLocked(domain.BotStatusStopping, log)
	leg.cancel()
	log.Info("cancelling in-flight start")
	return req
}

func (c *Controller) setStatusLocked(next domain.BotStatus, log *logrus.Entry) {
	prev := c.status
	c.status = next
	if prev != next {
		log.WithFields(logrus.Fields{"from": prev, "to": next}).Debug("status transition")
	}
	if c.rec != nil {
		c.rec.StatusChanged(next)
	}
}

func unavailable(op string, cause error) error {
	msg := "engine call failed"
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		msg = "engine call timed out"
	case errors.Is(cause, engine.ErrCircuitOpen):
		msg = "engine marked unavailable after repeated failures"
	}
	return domain.NewError(domain.KindEngineUnavailable, op, cause, "%s", msg)
}
