package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"mt5-analysis-service/internal/config"
	"mt5-analysis-service/internal/runner"
	"mt5-analysis-service/internal/store"
	"mt5-analysis-service/internal/tasks"
)

const testKey = "mysecret"

var errTest = errors.New("platform not connected")

func newTestServer(t *testing.T, analyze tasks.AnalysisFunc) (http.Handler, *store.TaskStore) {
	t.Helper()
	st := store.New()
	svc := tasks.New(st, runner.New(st, zap.NewNop()), analyze, zap.NewNop())
	srv := New(config.Config{APIKey: testKey}, svc, zap.NewNop())
	return srv.Router(), st
}

func doRequest(h http.Handler, method, path, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if key != "" {
		req.Header.Set("x-api-key", key)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAnalyzeRequiresAPIKey(t *testing.T) {
	h, st := newTestServer(t, func(context.Context) (any, error) { return "ok", nil })

	for _, key := range []string{"", "wrong-key"} {
		rec := doRequest(h, http.MethodPost, "/analyze", key)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "invalid api key", body["error"])
		assert.NotContains(t, body, "task_id")
	}
	assert.Zero(t, st.Len(), "rejected requests must not create tasks")
}

func TestTaskStatusRequiresAPIKey(t *testing.T) {
	h, _ := newTestServer(t, func(context.Context) (any, error) { return "ok", nil })

	rec := doRequest(h, http.MethodGet, "/task/some-id", "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "invalid api key", body["error"])
	// Same response whether or not the id exists.
	assert.NotContains(t, body, "status")
}

func TestAnalyzeAcceptsAndReturnsTaskID(t *testing.T) {
	h, _ := newTestServer(t, func(context.Context) (any, error) { return "ok", nil })

	rec := doRequest(h, http.MethodPost, "/analyze", testKey)
	require.Equal(t, http.StatusAccepted, rec.Code)
	body := decodeBody(t, rec)
	assert.NotEmpty(t, body["task_id"])
	assert.Equal(t, "running", body["status"])
}

func TestTaskLifecycleOverHTTP(t *testing.T) {
	release := make(chan struct{})
	h, _ := newTestServer(t, func(context.Context) (any, error) {
		<-release
		return map[string]any{"profit": float64(100)}, nil
	})

	rec := doRequest(h, http.MethodPost, "/analyze", testKey)
	require.Equal(t, http.StatusAccepted, rec.Code)
	id := decodeBody(t, rec)["task_id"].(string)

	rec = doRequest(h, http.MethodGet, "/task/"+id, testKey)
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "running", body["status"])
	assert.NotContains(t, body, "completed_at")
	assert.NotContains(t, body, "result")
	assert.NotContains(t, body, "error")

	close(release)
	require.Eventually(t, func() bool {
		rec := doRequest(h, http.MethodGet, "/task/"+id, testKey)
		return decodeBody(t, rec)["status"] == "completed"
	}, 2*time.Second, 5*time.Millisecond)

	rec = doRequest(h, http.MethodGet, "/task/"+id, testKey)
	body = decodeBody(t, rec)
	assert.Equal(t, map[string]any{"profit": float64(100)}, body["result"])
	assert.Contains(t, body, "completed_at")
	assert.Contains(t, body, "created_at")
	assert.NotContains(t, body, "error")
}

func TestFailedTaskOverHTTP(t *testing.T) {
	h, _ := newTestServer(t, func(context.Context) (any, error) {
		return nil, errTest
	})

	rec := doRequest(h, http.MethodPost, "/analyze", testKey)
	id := decodeBody(t, rec)["task_id"].(string)

	require.Eventually(t, func() bool {
		rec := doRequest(h, http.MethodGet, "/task/"+id, testKey)
		return decodeBody(t, rec)["status"] == "failed"
	}, 2*time.Second, 5*time.Millisecond)

	rec = doRequest(h, http.MethodGet, "/task/"+id, testKey)
	body := decodeBody(t, rec)
	assert.Equal(t, "platform not connected", body["error"])
	assert.Contains(t, body, "completed_at")
	assert.NotContains(t, body, "result")
}

func TestUnknownTaskReturnsNotFound(t *testing.T) {
	h, _ := newTestServer(t, func(context.Context) (any, error) { return "ok", nil })

	rec := doRequest(h, http.MethodGet, "/task/00000000-0000-0000-0000-000000000000", testKey)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "task not found", decodeBody(t, rec)["error"])
}

func TestHealthzIsOpen(t *testing.T) {
	h, _ := newTestServer(t, func(context.Context) (any, error) { return "ok", nil })

	rec := doRequest(h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}
