// Package configsync keeps the operator's draft of the engine configuration reconciled with
// the last value the engine confirmed (the baseline).
//
// The document is opaque: the engine owns its schema, so the service never inspects the
// content. What it does track is provenance. A draft is always derived from a baseline that
// was actually fetched or saved, and nothing is submitted without one.
package configsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/betbot/enginectl/internal/domain"
	"github.com/betbot/enginectl/internal/engine"
	"github.com/betbot/enginectl/internal/execution"
)

var syncLog = logrus.WithField("component", "config_sync")

const defaultCallTimeout = 30 * time.Second

// Op names used in errors and metrics.
const (
	OpFetch  = "fetch"
	OpEdit   = "edit"
	OpReset  = "reset"
	OpSave   = "save"
	OpSubmit = "submit"
)

// Recorder 接收操作结果（指标用）
type Recorder interface {
	ConfigOpFinished(op string, err error, elapsed time.Duration)
}

// Options 配置同步服务配置
type Options struct {
	CallTimeout time.Duration
	Logger      *logrus.Entry
	Recorder    Recorder
	Now         func() time.Time
}

// Snapshot is a consistent view of baseline and draft.
type Snapshot struct {
	Baseline domain.ConfigDocument `json:"baseline"`
	Draft    domain.ConfigDocument `json:"draft"`
	// Saving 为 true 表示有提交正在进行
	Saving bool `json:"saving"`
}

// FetchResult is the outcome of Fetch. DiscardedDraft holds the unsaved edit the fetch
// replaced, nil when the draft was clean.
type FetchResult struct {
	Document       domain.ConfigDocument
	DiscardedDraft *domain.ConfigDocument
}

// Dirty reports whether the draft differs from the baseline.
func (s Snapshot) Dirty() bool { return s.Draft.IsEdited() }

// Service owns the session's single ConfigDocument (baseline + draft).
type Service struct {
	store   engine.ConfigStore
	timeout time.Duration
	log     *logrus.Entry
	rec     Recorder
	now     func() time.Time

	// remote 串行化远程操作（fetch/save），不排队
	remote execution.Gate

	mu       sync.Mutex
	baseline *domain.ConfigDocument
	draft    domain.ConfigDocument
	saving   bool
}

func New(store engine.ConfigStore, opts Options) *Service {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = defaultCallTimeout
	}
	if opts.Logger == nil {
		opts.Logger = syncLog
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Service{
		store:   store,
		timeout: opts.CallTimeout,
		log:     opts.Logger,
		rec:     opts.Recorder,
		now:     opts.Now,
	}
}

// FetchConfig reads the engine's configuration and makes it the new baseline. The draft is
// replaced as well, discarding unsaved edits. On failure nothing changes.
func (s *Service) FetchConfig(ctx context.Context) (domain.ConfigDocument, error) {
	res, err := s.Fetch(ctx)
	return res.Document, err
}

// Fetch is FetchConfig that also hands back the draft edit it discarded, so callers can
// tell the operator or offer it again.
func (s *Service) Fetch(ctx context.Context) (res FetchResult, err error) {
	defer s.finish(OpFetch, time.Now(), &err)

	if gateErr := s.remote.TryAcquire(OpFetch); gateErr != nil {
		return FetchResult{}, inProgress(OpFetch, gateErr)
	}
	defer s.remote.Release()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	content, callErr := s.store.GetConfig(callCtx)
	cancel()
	if callErr != nil {
		return FetchResult{}, classify(OpFetch, callErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	base := domain.ConfigDocument{
		Content:    content,
		Provenance: domain.ProvenanceRemote,
		Revision:   s.nextRevisionLocked(),
		SyncedAt:   s.now(),
	}
	res.Document = base
	if s.draft.IsEdited() {
		discarded := s.draft
		res.DiscardedDraft = &discarded
		s.log.WithField("revision", base.Revision).Warn("fetch replaced unsaved draft edits")
	}
	s.baseline = &base
	s.draft = base
	return res, nil
}

// EditDraft replaces the draft content locally. It never contacts the engine.
func (s *Service) EditDraft(content string) (doc domain.ConfigDocument, err error) {
	defer s.finish(OpEdit, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline == nil {
		return domain.ConfigDocument{}, noBaseline(OpEdit)
	}
	s.draft = domain.ConfigDocument{
		Content:    content,
		Provenance: domain.ProvenanceLocal,
		Revision:   s.baseline.Revision,
		SyncedAt:   s.baseline.SyncedAt,
	}
	return s.draft, nil
}

// ResetDraft discards local edits and restores the draft to the baseline.
func (s *Service) ResetDraft() (doc domain.ConfigDocument, err error) {
	defer s.finish(OpReset, time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline == nil {
		return domain.ConfigDocument{}, noBaseline(OpReset)
	}
	s.draft = *s.baseline
	return s.draft, nil
}

// SaveConfig submits the current draft. On success the submitted content becomes the new
// baseline. On failure draft, baseline and provenance are left exactly as they were.
func (s *Service) SaveConfig(ctx context.Context) (doc domain.ConfigDocument, err error) {
	defer s.finish(OpSave, time.Now(), &err)
	return s.submit(ctx, OpSave, nil)
}

// Submit sends content as a whole document without going through the draft. It needs a
// baseline like SaveConfig and shares its gate. Only a successful submit touches the
// draft, which then equals the new baseline; on failure the draft keeps whatever the
// operator had.
func (s *Service) Submit(ctx context.Context, content string) (doc domain.ConfigDocument, err error) {
	defer s.finish(OpSubmit, time.Now(), &err)
	return s.submit(ctx, OpSubmit, &content)
}

// submit sends content, or the current draft when content is nil.
func (s *Service) submit(ctx context.Context, op string, content *string) (domain.ConfigDocument, error) {
	if gateErr := s.remote.TryAcquire(op); gateErr != nil {
		return domain.ConfigDocument{}, inProgress(op, gateErr)
	}
	defer s.remote.Release()

	s.mu.Lock()
	if s.baseline == nil {
		s.mu.Unlock()
		return domain.ConfigDocument{}, noBaseline(op)
	}
	draftBefore := s.draft
	text := draftBefore.Content
	if content != nil {
		text = *content
	}
	s.saving = true
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	callErr := s.store.SubmitConfig(callCtx, text)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if callErr != nil {
		return domain.ConfigDocument{}, classify(op, callErr)
	}

	base := domain.ConfigDocument{
		Content:    text,
		Provenance: domain.ProvenanceRemote,
		Revision:   s.nextRevisionLocked(),
		SyncedAt:   s.now(),
	}
	s.baseline = &base
	if s.draft == draftBefore {
		s.draft = base
	} else {
		// 提交期间又有编辑：保留较新的草稿，挂到新基线上
		s.draft.Revision = base.Revision
		s.draft.SyncedAt = base.SyncedAt
	}
	return base, nil
}

// Snapshot returns the current baseline and draft. ok is false before the first fetch.
func (s *Service) Snapshot() (snap Snapshot, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.baseline == nil {
		return Snapshot{Saving: s.saving}, false
	}
	return Snapshot{Baseline: *s.baseline, Draft: s.draft, Saving: s.saving}, true
}

func (s *Service) nextRevisionLocked() uint64 {
	if s.baseline == nil {
		return 1
	}
	return s.baseline.Revision + 1
}

func (s *Service) finish(op string, start time.Time, err *error) {
	elapsed := time.Since(start)
	if s.rec != nil {
		s.rec.ConfigOpFinished(op, *err, elapsed)
	}
	log := s.log.WithFields(logrus.Fields{"op": op, "elapsed": elapsed})
	if *err != nil {
		log.WithField("kind", domain.KindOf(*err)).Warnf("config %s failed: %v", op, *err)
		return
	}
	if op == OpFetch || op == OpSave || op == OpSubmit {
		log.Info("config synced with engine")
	}
}

func classify(op string, cause error) error {
	if rej, ok := engine.IsRejection(cause); ok {
		return domain.NewError(domain.KindValidationRejected, op, cause, "%s", rej.Reason)
	}
	msg := "engine call failed"
	switch {
	case errors.Is(cause, context.DeadlineExceeded):
		msg = "engine call timed out"
	case errors.Is(cause, engine.ErrCircuitOpen):
		msg = "engine marked unavailable after repeated failures"
	}
	return domain.NewError(domain.KindEngineUnavailable, op, cause, "%s", msg)
}

func inProgress(op string, cause error) error {
	return domain.NewError(domain.KindOperationInProgress, op, cause, "config %s is already in flight", execution.HolderOf(cause))
}

func noBaseline(op string) error {
	return domain.NewError(domain.KindNoBaseline, op, nil, "no configuration has been fetched from the engine yet")
}
