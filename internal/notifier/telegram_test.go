package notifier

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type botServer struct {
	*httptest.Server
	calls    atomic.Int32
	failures int32
	lastText atomic.Value
}

func newBotServer(t *testing.T, failures int32) *botServer {
	b := &botServer{failures: failures}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := b.calls.Add(1)
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "42", r.PostForm.Get("chat_id"))
		b.lastText.Store(r.PostForm.Get("text"))
		if n <= b.failures {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(b.Close)
	return b
}

func TestSend(t *testing.T) {
	srv := newBotServer(t, 0)
	n := NewTelegramNotifier("TOKEN", "42", 1, 0, WithBaseURL(srv.URL+"/"))

	require.NoError(t, n.Send(context.Background(), "depth exceeded"))
	assert.Equal(t, int32(1), srv.calls.Load())
	assert.Equal(t, "depth exceeded", srv.lastText.Load())
}

func TestSendFailureStatus(t *testing.T) {
	srv := newBotServer(t, 1)
	n := NewTelegramNotifier("TOKEN", "42", 1, 0, WithBaseURL(srv.URL))

	err := n.Send(context.Background(), "x")
	assert.ErrorContains(t, err, "502")
}

func TestSendWithRetry(t *testing.T) {
	srv := newBotServer(t, 2)
	n := NewTelegramNotifier("TOKEN", "42", 3, time.Millisecond, WithBaseURL(srv.URL))

	require.NoError(t, n.SendWithRetry(context.Background(), "x"))
	assert.Equal(t, int32(3), srv.calls.Load())

	srv2 := newBotServer(t, 5)
	n = NewTelegramNotifier("TOKEN", "42", 2, time.Millisecond, WithBaseURL(srv2.URL))
	assert.Error(t, n.SendWithRetry(context.Background(), "x"))
	assert.Equal(t, int32(2), srv2.calls.Load())
}

func TestRetryWithNotification(t *testing.T) {
	srv := newBotServer(t, 0)
	n := NewTelegramNotifier("TOKEN", "42", 2, time.Millisecond, WithBaseURL(srv.URL))

	attempts := 0
	err := n.RetryWithNotification(context.Background(), func() error {
		attempts++
		return errors.New("boom")
	}, "fetch depth")
	assert.Error(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, int32(1), srv.calls.Load())
	assert.Contains(t, srv.lastText.Load(), "fetch depth failed")

	attempts = 0
	err = n.RetryWithNotification(context.Background(), func() error {
		attempts++
		if attempts < 2 {
			return errors.New("flaky")
		}
		return nil
	}, "fetch depth")
	assert.NoError(t, err)
	assert.Equal(t, int32(1), srv.calls.Load())
}

func TestRetryStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := retry(ctx, 5, time.Hour, func() error { return errors.New("nope") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogNotifier(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	n := NewLogNotifier(zap.New(core))

	require.NoError(t, n.SendWithRetry(context.Background(), "hello"))
	err := n.RetryWithNotification(context.Background(), func() error { return errors.New("bad") }, "ping")
	assert.Error(t, err)

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "hello", entries[0].ContextMap()["message"])
	assert.Equal(t, "ping failed: bad", entries[1].ContextMap()["message"])
}
