package logging

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := middleware.RequestID(RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/ideas", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "request", entry.Message)

	ctx := entry.ContextMap()
	assert.Equal(t, "GET", ctx["method"])
	assert.Equal(t, "/api/ideas", ctx["path"])
	assert.EqualValues(t, http.StatusTeapot, ctx["status"])
	assert.EqualValues(t, len("short and stout"), ctx["bytes"])
	assert.NotEmpty(t, ctx["request_id"])
}

func TestRequestLogger_ServerErrorsAtErrorLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zap.ErrorLevel, logs.All()[0].Level)
}

func TestRetryLogger(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	rl := RetryLogger{L: zap.New(core)}

	rl.Debug("performing request", "method", "POST", "url", "https://test.stytch.com")
	rl.Warn("retrying", "attempt", 2, "dangling")

	require.Equal(t, 2, logs.Len())
	assert.Equal(t, "POST", logs.All()[0].ContextMap()["method"])
	assert.EqualValues(t, 2, logs.All()[1].ContextMap()["attempt"])
	assert.Len(t, logs.All()[1].Context, 1)
}
