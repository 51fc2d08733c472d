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

	"github.com/JakeFAU/sermon-harvester/internal/metrics"
)

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, nil, zap.NewNop()), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzReportsFailingChecks(t *testing.T) {
	t.Parallel()

	checks := map[string]ReadyCheck{
		"catalog":  func(context.Context) error { return nil },
		"postgres": func(context.Context) error { return errors.New("connection refused") },
	}
	rec := serve(t, NewServer(checks, nil, zap.NewNop()), "/readyz")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Failures map[string]string `json:"failures"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"postgres": "connection refused"}, body.Failures)
}

func TestReadyzAllGood(t *testing.T) {
	t.Parallel()

	checks := map[string]ReadyCheck{"catalog": func(context.Context) error { return nil }}
	rec := serve(t, NewServer(checks, nil, nil), "/readyz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.ObserveItem("grace", "ok")
	rec := serve(t, NewServer(nil, nil, nil), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sermons_items_total")
}

func TestListRuns(t *testing.T) {
	t.Parallel()

	runs := NewRunLog(2)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runs.Add(Run{ID: "1", Kind: "harvest", Source: "grace", Started: start})
	runs.Add(Run{ID: "2", Kind: "harvest", Source: "chapel", Started: start})
	runs.Add(Run{ID: "3", Kind: "download", Started: start, Records: 4})

	rec := serve(t, NewServer(nil, runs, nil), "/v1/runs")
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Runs []Run `json:"runs"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Runs, 2)
	assert.Equal(t, "3", body.Runs[0].ID)
	assert.Equal(t, "2", body.Runs[1].ID)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- NewServer(nil, nil, nil).ListenAndServe(ctx, "127.0.0.1:0") }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
