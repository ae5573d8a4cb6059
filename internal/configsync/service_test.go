package configsync

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/enginectl/internal/domain"
	"github.com/betbot/enginectl/internal/engine"
)

var errRefused = errors.New("connection refused")

func newService(t *testing.T, doc string) (*Service, *engine.Mock) {
	t.Helper()
	mock := engine.NewMock(doc)
	return New(mock, Options{CallTimeout: 2 * time.Second}), mock
}

func mustFetch(t *testing.T, s *Service) domain.ConfigDocument {
	t.Helper()
	doc, err := s.FetchConfig(context.Background())
	require.NoError(t, err)
	return doc
}

func TestService_FetchConfig(t *testing.T) {
	s, _ := newService(t, "mode=live")

	doc := mustFetch(t, s)
	assert.Equal(t, "mode=live", doc.Content)
	assert.Equal(t, domain.ProvenanceRemote, doc.Provenance)
	assert.EqualValues(t, 1, doc.Revision)

	snap, ok := s.Snapshot()
	require.True(t, ok)
	assert.Equal(t, doc, snap.Baseline)
	assert.Equal(t, doc, snap.Draft)
	assert.False(t, snap.Dirty())
}

func TestService_FetchFailureKeepsBaseline(t *testing.T) {
	s, mock := newService(t, "mode=live")
	before := mustFetch(t, s)
	_, err := s.EditDraft("mode=dry")
	require.NoError(t, err)

	mock.FailNext(engine.OpGetConfig, errRefused)
	_, err = s.FetchConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)

	snap, _ := s.Snapshot()
	assert.Equal(t, before, snap.Baseline)
	assert.Equal(t, "mode=dry", snap.Draft.Content)
	assert.Equal(t, domain.ProvenanceLocal, snap.Draft.Provenance)
}

func TestService_FetchReplacesDraft(t *testing.T) {
	s, mock := newService(t, "mode=live")
	mustFetch(t, s)
	_, err := s.EditDraft("mode=dry")
	require.NoError(t, err)

	mock.Document = "mode=paper"
	doc := mustFetch(t, s)
	assert.EqualValues(t, 2, doc.Revision)

	snap, _ := s.Snapshot()
	assert.Equal(t, "mode=paper", snap.Draft.Content)
	assert.False(t, snap.Dirty())
}

func TestService_DraftOpsRequireBaseline(t *testing.T) {
	s, mock := newService(t, "mode=live")

	_, err := s.EditDraft("mode=dry")
	assert.ErrorIs(t, err, domain.ErrNoBaseline)
	_, err = s.ResetDraft()
	assert.ErrorIs(t, err, domain.ErrNoBaseline)
	_, err = s.SaveConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrNoBaseline)
	assert.Zero(t, mock.CallCount(engine.OpSubmitConfig), "a draft without baseline must never be submitted")

	_, ok := s.Snapshot()
	assert.False(t, ok)
}

func TestService_EditDoesNotTouchEngine(t *testing.T) {
	s, mock := newService(t, "mode=live")
	mustFetch(t, s)

	doc, err := s.EditDraft("mode=dry")
	require.NoError(t, err)
	assert.Equal(t, domain.ProvenanceLocal, doc.Provenance)
	assert.EqualValues(t, 1, doc.Revision)
	assert.Equal(t, 1, mock.CallCount(engine.OpGetConfig))
	assert.Zero(t, mock.CallCount(engine.OpSubmitConfig))
}

func TestService_ResetRestoresBaseline(t *testing.T) {
	s, _ := newService(t, "mode=live")
	base := mustFetch(t, s)

	for i := 0; i < 5; i++ {
		_, err := s.EditDraft(fmt.Sprintf("mode=dry\nrun=%d", i))
		require.NoError(t, err)
	}
	doc, err := s.ResetDraft()
	require.NoError(t, err)
	assert.Equal(t, base, doc)

	snap, _ := s.Snapshot()
	assert.Equal(t, base, snap.Draft)
	assert.Equal(t, domain.ProvenanceRemote, snap.Draft.Provenance)
}

func TestService_SaveScenario(t *testing.T) {
	s, mock := newService(t, "mode=live")
	mustFetch(t, s)
	_, err := s.EditDraft("mode=dry")
	require.NoError(t, err)

	doc, err := s.SaveConfig(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mode=dry", doc.Content)
	assert.Equal(t, domain.ProvenanceRemote, doc.Provenance)
	assert.EqualValues(t, 2, doc.Revision)
	assert.Equal(t, "mode=dry", mock.CurrentDocument())

	snap, _ := s.Snapshot()
	assert.Equal(t, doc, snap.Baseline)
	assert.Equal(t, doc, snap.Draft)
}

func TestService_SaveFailureLeavesStateUnchanged(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want *domain.Error
	}{
		{"connectivity", errRefused, domain.ErrEngineUnavailable},
		{"rejection", &engine.RejectionError{StatusCode: 422, Reason: "unknown key mode"}, domain.ErrValidationRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newService(t, "mode=live")
			mustFetch(t, s)
			_, err := s.EditDraft("mode=dry")
			require.NoError(t, err)
			before, _ := s.Snapshot()

			mock.FailNext(engine.OpSubmitConfig, tt.err)
			_, err = s.SaveConfig(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.want)

			after, _ := s.Snapshot()
			assert.Equal(t, before, after)
			assert.Equal(t, "mode=live", mock.CurrentDocument())
		})
	}
}

func TestService_RejectionMessageSurfaces(t *testing.T) {
	s, mock := newService(t, "mode=live")
	mustFetch(t, s)
	mock.FailNext(engine.OpSubmitConfig, &engine.RejectionError{StatusCode: 400, Reason: "line 1: expected '='"})

	_, err := s.SaveConfig(context.Background())
	assert.Equal(t, "line 1: expected '='", domain.MessageOf(err))
	assert.False(t, domain.KindOf(err).Retryable())
}

func TestService_ConcurrentSaveRejected(t *testing.T) {
	s, mock := newService(t, "mode=live")
	mustFetch(t, s)
	_, err := s.EditDraft("mode=dry")
	require.NoError(t, err)

	entered, release := mock.Hold(engine.OpSubmitConfig)
	done := make(chan error, 1)
	go func() {
		_, err := s.SaveConfig(context.Background())
		done <- err
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("save never reached the engine")
	}

	snap, _ := s.Snapshot()
	assert.True(t, snap.Saving)

	_, err = s.SaveConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrOperationInProgress)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, "config save is already in flight", domain.MessageOf(err))
	_, err = s.FetchConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrOperationInProgress)

	// 本地编辑不受影响
	_, err = s.EditDraft("mode=paper")
	require.NoError(t, err)

	release()
	require.NoError(t, <-done)
	assert.Equal(t, 1, mock.CallCount(engine.OpSubmitConfig))

	snap, _ = s.Snapshot()
	assert.Equal(t, "mode=dry", snap.Baseline.Content)
	assert.Equal(t, "mode=paper", snap.Draft.Content)
	assert.Equal(t, domain.ProvenanceLocal, snap.Draft.Provenance)
	assert.Equal(t, snap.Baseline.Revision, snap.Draft.Revision)
	assert.False(t, snap.Saving)
}

func TestService_SaveTimeout(t *testing.T) {
	mock := engine.NewMock("mode=live")
	s := New(mock, Options{CallTimeout: 20 * time.Millisecond})
	mustFetch(t, s)
	_, release := mock.Hold(engine.OpSubmitConfig)
	defer release()

	_, err := s.SaveConfig(context.Background())
	assert.ErrorIs(t, err, domain.ErrEngineUnavailable)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	snap, _ := s.Snapshot()
	assert.False(t, snap.Saving)
}

func TestService_FetchReportsDiscardedDraft(t *testing.T) {
	s, mock := newService(t, "mode=live")

	res, err := s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, res.DiscardedDraft)

	_, err = s.EditDraft("mode=dry")
	require.NoError(t, err)
	mock.Document = "mode=paper"

	res, err = s.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "mode=paper", res.Document.Content)
	require.NotNil(t, res.DiscardedDraft)
	assert.Equal(t, "mode=dry", res.DiscardedDraft.Content)
	assert.Equal(t, domain.ProvenanceLocal, res.DiscardedDraft.Provenance)
	assert.EqualValues(t, 1, res.DiscardedDraft.Revision)
}

func TestService_SubmitReplacesBaselineAndDraft(t *testing.T) {
	s, mock := newService(t, "mode=live")

	_, err := s.Submit(context.Background(), "mode=dry")
	assert.ErrorIs(t, err, domain.ErrNoBaseline)
	assert.Zero(t, mock.CallCount(engine.OpSubmitConfig))

	mustFetch(t, s)
	_, err = s.EditDraft("mode=paper")
	require.NoError(t, err)

	doc, err := s.Submit(context.Background(), "mode=dry")
	require.NoError(t, err)
	assert.Equal(t, "mode=dry", doc.Content)
	assert.EqualValues(t, 2, doc.Revision)
	assert.Equal(t, []string{"mode=dry"}, mock.Submitted)

	snap, _ := s.Snapshot()
	assert.Equal(t, doc, snap.Baseline)
	assert.Equal(t, doc, snap.Draft)
}

func TestService_SubmitFailureLeavesDraft(t *testing.T) {
	for name, injected := range map[string]error{
		"rejected":    &engine.RejectionError{StatusCode: 422, Reason: "bad mode"},
		"unavailable": errRefused,
	} {
		t.Run(name, func(t *testing.T) {
			s, mock := newService(t, "mode=live")
			mustFetch(t, s)
			_, err := s.EditDraft("mode=paper")
			require.NoError(t, err)
			before, _ := s.Snapshot()

			mock.FailNext(engine.OpSubmitConfig, injected)
			_, err = s.Submit(context.Background(), "garbage")
			require.Error(t, err)

			after, _ := s.Snapshot()
			assert.Equal(t, before, after)
			assert.Equal(t, "mode=paper", after.Draft.Content)
		})
	}
}

func TestService_SubmitRejectedWhileSaving(t *testing.T) {
	s, mock := newService(t, "mode=live")
	mustFetch(t, s)

	entered, release := mock.Hold(engine.OpSubmitConfig)
	done := make(chan error, 1)
	go func() {
		_, err := s.Submit(context.Background(), "a")
		done <- err
	}()
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("submit never reached the engine")
	}

	_, err := s.Submit(context.Background(), "b")
	assert.ErrorIs(t, err, domain.ErrOperationInProgress)
	assert.Equal(t, "config submit is already in flight", domain.MessageOf(err))

	release()
	require.NoError(t, <-done)

	snap, _ := s.Snapshot()
	assert.Equal(t, "a", snap.Baseline.Content)
	assert.Equal(t, "a", snap.Draft.Content)
	assert.False(t, snap.Dirty())
	assert.Equal(t, []string{"a"}, mock.Submitted)
}
