package http

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

	"github.com/sqlearn/progress-hub/internal/domain/shared"
	"github.com/sqlearn/progress-hub/internal/infrastructure/messaging"
	"github.com/sqlearn/progress-hub/internal/infrastructure/scheduler"
)

type stubJobs []scheduler.JobInfo

func (s stubJobs) ListJobs() []scheduler.JobInfo { return s }

type stubMetrics messaging.EventBusMetricsSnapshot

func (s stubMetrics) Snapshot() messaging.EventBusMetricsSnapshot {
	return messaging.EventBusMetricsSnapshot(s)
}

func do(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestServer_Live(t *testing.T) {
	rec := do(t, NewServer(DefaultConfig(), Dependencies{}), "/live")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}

func TestServer_ReadyReflectsChecks(t *testing.T) {
	health := NewHealthChecker("1.0.0")
	health.AddCheck("database", func(context.Context) error { return nil })
	s := NewServer(DefaultConfig(), Dependencies{Health: health})

	rec := do(t, s, "/ready")
	require.Equal(t, http.StatusOK, rec.Code)

	health.AddCheck("redis", func(context.Context) error { return errors.New("connection refused") })
	rec = do(t, s, "/ready")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.True(t, status.Checks["database"].Healthy)
	assert.Equal(t, "connection refused", status.Checks["redis"].Message)
	assert.Equal(t, "Some checks failed: redis", status.Message)
	assert.Equal(t, "1.0.0", status.Version)
}

func TestHealthChecker_TimesOutSlowChecks(t *testing.T) {
	health := NewHealthChecker("")
	health.SetTimeout(10 * time.Millisecond)
	health.AddCheck("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := health.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["slow"].Message)
}

func TestServer_JobsAndMetrics(t *testing.T) {
	s := NewServer(DefaultConfig(), Dependencies{
		Jobs: stubJobs{{Name: "streak_at_risk", Schedule: "0 19 * * *"}},
		Metrics: stubMetrics{
			Published: map[shared.EventType]int64{shared.EventLevelUp: 2},
			Succeeded: 2,
		},
	})

	rec := do(t, s, "/jobs")
	require.Equal(t, http.StatusOK, rec.Code)
	var jobs []scheduler.JobInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &jobs))
	require.Len(t, jobs, 1)
	assert.Equal(t, "streak_at_risk", jobs[0].Name)

	rec = do(t, s, "/metrics/events")
	require.Equal(t, http.StatusOK, rec.Code)
	var snap messaging.EventBusMetricsSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, int64(2), snap.Published[shared.EventLevelUp])
}

func TestServer_MetricsUnavailable(t *testing.T) {
	rec := do(t, NewServer(DefaultConfig(), Dependencies{}), "/metrics/events")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestServer_StartAndShutdown(t *testing.T) {
	s := NewServer(Config{Addr: "127.0.0.1:0"}, Dependencies{})
	require.NoError(t, s.Start())
	assert.Error(t, s.Start())
	assert.NoError(t, s.Shutdown(context.Background()))
	assert.NoError(t, s.Shutdown(context.Background()))
}
