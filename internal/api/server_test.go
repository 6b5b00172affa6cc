package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiodarr/aiodarr/internal/bridge"
	"github.com/aiodarr/aiodarr/internal/health"
	"github.com/aiodarr/aiodarr/internal/history"
	"github.com/aiodarr/aiodarr/internal/logger"
	"github.com/aiodarr/aiodarr/internal/processed"
	"github.com/aiodarr/aiodarr/internal/scheduler"
	"github.com/aiodarr/aiodarr/internal/scheduler/tasks"
	"github.com/aiodarr/aiodarr/internal/testutil"
)

type fakeCycles struct {
	running atomic.Bool
	last    *bridge.CycleResult
	runs    atomic.Int32
}

func (f *fakeCycles) LastResult() (bridge.CycleResult, bool) {
	if f.last == nil {
		return bridge.CycleResult{}, false
	}
	return *f.last, true
}

func (f *fakeCycles) IsRunning() bool { return f.running.Load() }

func (f *fakeCycles) Run(context.Context) error {
	f.runs.Add(1)
	return nil
}

type testServer struct {
	server *Server
	cycles *fakeCycles
	store  *processed.Store
	logs   *logger.Recent
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	sched, err := scheduler.New(zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = sched.Stop() })

	cycles := &fakeCycles{}
	require.NoError(t, tasks.RegisterCycleTask(sched, cycles, time.Hour, false))
	sched.Start()

	tdb := testutil.NewTestDB(t)
	hist := history.NewService(tdb.Conn, tdb.Logger)
	store := processed.New(time.Hour)
	recent := logger.NewRecent(10)
	tracker := health.NewService(zerolog.Nop())
	tracker.RegisterItem(health.CategoryStreams, health.IDAIOStreams, "AIOStreams")
	tracker.SetWarning(health.CategoryStreams, health.IDAIOStreams, "timeout")

	srv := NewServer(Options{
		Version:   "1.2.3",
		Cycles:    cycles,
		Store:     store,
		Scheduler: sched,
		History:   hist,
		Health:    tracker,
		Logs:      recent,
	}, zerolog.Nop())

	return &testServer{server: srv, cycles: cycles, store: store, logs: recent}
}

func (ts *testServer) do(t *testing.T, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	ts.server.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Mark("movie_1", true)
	ts.store.Mark("episode_2", false)
	ts.cycles.last = &bridge.CycleResult{
		ID:       "abc",
		Duration: 2 * time.Second,
		Items: []bridge.ItemResult{
			{Key: "movie_1", State: bridge.StateSucceeded},
			{Key: "episode_2", State: bridge.StateExhausted},
			{Key: "movie_3", State: bridge.StateSkip},
		},
	}

	rec := ts.do(t, http.MethodGet, "/api/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "1.2.3", resp.Version)
	assert.Equal(t, processed.Stats{Total: 2, Succeeded: 1, Failed: 1}, resp.Processed)
	assert.Equal(t, "1h0m0s", resp.Cooldown)
	require.NotNil(t, resp.LastCycle)
	assert.Equal(t, "abc", resp.LastCycle.ID)
	assert.Equal(t, 3, resp.LastCycle.Items)
	assert.Equal(t, 1, resp.LastCycle.States[bridge.StateSucceeded])
	require.Len(t, resp.Tasks, 1)
	assert.Equal(t, tasks.CycleTaskID, resp.Tasks[0].ID)
}

func TestLastCycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/cycle")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	ts.cycles.last = &bridge.CycleResult{ID: "xyz", Items: []bridge.ItemResult{{Key: "movie_1", State: bridge.StateNoCandidates, Reason: bridge.ReasonNoStreams}}}
	rec = ts.do(t, http.MethodGet, "/api/v1/cycle")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), bridge.ReasonNoStreams)
}

func TestRunCycle(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/api/v1/cycle")
	assert.Equal(t, http.StatusAccepted, rec.Code)
	require.Eventually(t, func() bool { return ts.cycles.runs.Load() == 1 }, time.Second, 10*time.Millisecond)

	ts.cycles.running.Store(true)
	rec = ts.do(t, http.MethodPost, "/api/v1/cycle")
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestProcessed(t *testing.T) {
	ts := newTestServer(t)
	ts.store.Mark("movie_1", true)
	ts.store.Mark("movie_2", false)

	rec := ts.do(t, http.MethodGet, "/api/v1/processed")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []ProcessedEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 2)
	assert.Nil(t, entries[0].RetryAt)
	require.NotNil(t, entries[1].RetryAt)
	assert.WithinDuration(t, entries[1].Timestamp.Add(time.Hour), *entries[1].RetryAt, time.Second)

	rec = ts.do(t, http.MethodDelete, "/api/v1/processed/movie_2")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, ts.store.ShouldSkip("movie_2"))

	rec = ts.do(t, http.MethodDelete, "/api/v1/processed/movie_2")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSchedulerTasks(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/scheduler/tasks/"+tasks.CycleTaskID)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"schedule":"every 1h0m0s"`)

	rec = ts.do(t, http.MethodGet, "/api/v1/scheduler/tasks/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = ts.do(t, http.MethodPost, "/api/v1/scheduler/tasks/nope/run")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHistoryRoutes(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/history")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"totalCount":0`)
}

func TestLogs(t *testing.T) {
	ts := newTestServer(t)
	log := zerolog.New(ts.logs)
	log.Info().Msg("first")
	log.Error().Msg("second")

	rec := ts.do(t, http.MethodGet, "/api/v1/logs?level=error")
	require.Equal(t, http.StatusOK, rec.Code)

	var entries []logger.Entry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "second", entries[0].Message)

	rec = ts.do(t, http.MethodGet, "/api/v1/logs/download")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "no log file"))
}

func TestUpstreamHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodGet, "/api/v1/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var summary health.HealthSummary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &summary))
	assert.True(t, summary.HasIssues)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, "timeout", summary.Items[0].Message)
}
