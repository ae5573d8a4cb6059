package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/betbot/enginectl/internal/configsync"
	"github.com/betbot/enginectl/internal/controlplane/server"
	"github.com/betbot/enginectl/internal/domain"
	"github.com/betbot/enginectl/internal/engine"
	"github.com/betbot/enginectl/internal/lifecycle"
)

func newTestClient(t *testing.T) (*Client, *engine.Mock) {
	t.Helper()
	mock := engine.NewMock("mode=live")
	srv, err := server.New(server.Config{
		Lifecycle: lifecycle.New(mock, lifecycle.Options{CallTimeout: time.Second}),
		Sync:      configsync.New(mock, configsync.Options{CallTimeout: time.Second}),
	})
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return New(ts.URL, 5*time.Second), mock
}

func TestClient_Lifecycle(t *testing.T) {
	c, mock := newTestClient(t)
	ctx := context.Background()

	res, err := c.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.BotStatusIdle, res.Status)

	res, err = c.Command(ctx, domain.CommandStart)
	require.NoError(t, err)
	assert.Equal(t, domain.BotStatusRunning, res.Status)
	assert.True(t, mock.IsRunning())

	_, err = c.Command(ctx, domain.CommandStart)
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Equal(t, domain.KindInvalidTransition, apiErr.Code)

	mock.FailNext(engine.OpStop, errors.New("dial tcp: refused"))
	res, err = c.Command(ctx, domain.CommandStop)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, domain.KindEngineUnavailable, apiErr.Code)
	assert.Equal(t, domain.BotStatusRunning, res.Status)
	assert.True(t, res.Retryable)
}

func TestClient_Config(t *testing.T) {
	c, mock := newTestClient(t)
	ctx := context.Background()

	_, err := c.SetConfig(ctx, "mode=dry")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, domain.KindNoBaseline, apiErr.Code)

	got, err := c.GetConfig(ctx)
	require.NoError(t, err)
	assert.Equal(t, "mode=live", got.Config)
	assert.EqualValues(t, 1, got.Revision)

	saved, err := c.SetConfig(ctx, "mode=dry")
	require.NoError(t, err)
	assert.EqualValues(t, 2, saved.Revision)
	assert.Equal(t, "mode=dry", mock.CurrentDocument())

	mock.FailNext(engine.OpSubmitConfig, &engine.RejectionError{StatusCode: 400, Reason: "bad value for mode"})
	_, err = c.SetConfig(ctx, "mode=???")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "bad value for mode", apiErr.Message)
}

func TestClient_Unreachable(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second)
	_, err := c.Status(context.Background())
	require.Error(t, err)
	var apiErr *APIError
	assert.False(t, errors.As(err, &apiErr))
}
