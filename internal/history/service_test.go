package history

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiodarr/aiodarr/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	tdb := testutil.NewTestDB(t)
	return NewService(tdb.Conn, tdb.Logger)
}

func seed(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()
	entries := []Entry{
		{CycleID: "c1", ItemKey: "movie_1", MediaKind: "movie", Title: "The Matrix (1999)", Outcome: OutcomeExhausted, Reason: "all 3 stream attempts failed", Attempts: 3},
		{CycleID: "c1", ItemKey: "episode_4", MediaKind: "episode", Title: "Breaking Bad S05E16", Outcome: OutcomeNoCandidates, Reason: "No cached streams available"},
		{CycleID: "c2", ItemKey: "movie_1", MediaKind: "movie", Title: "The Matrix (1999)", Outcome: OutcomeSucceeded, StreamLabel: "[RD+] Matrix", Quality: "2160p", Attempts: 1},
	}
	for _, e := range entries {
		_, err := s.Create(ctx, e)
		require.NoError(t, err)
	}
}

func TestCreateAndList(t *testing.T) {
	s := newTestService(t)
	seed(t, s)

	result, err := s.List(context.Background(), ListOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), result.TotalCount)
	require.Len(t, result.Items, 3)
	assert.Equal(t, OutcomeSucceeded, result.Items[0].Outcome, "newest first")
	assert.Equal(t, "2160p", result.Items[0].Quality)
	assert.False(t, result.Items[0].CreatedAt.IsZero())
}

func TestList_Filters(t *testing.T) {
	s := newTestService(t)
	seed(t, s)
	ctx := context.Background()

	result, err := s.List(ctx, ListOptions{MediaKind: "movie"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), result.TotalCount)

	result, err = s.List(ctx, ListOptions{Outcome: OutcomeNoCandidates})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "episode_4", result.Items[0].ItemKey)

	result, err = s.List(ctx, ListOptions{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, result.Items, 1)
	assert.Equal(t, int64(3), result.TotalCount)
}

func TestListByItem(t *testing.T) {
	s := newTestService(t)
	seed(t, s)

	entries, err := s.ListByItem(context.Background(), "movie_1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "c2", entries[0].CycleID)
	assert.Equal(t, "c1", entries[1].CycleID)
}

func TestDeleteOlderThan(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	old := time.Now().Add(-48 * time.Hour)
	_, err := s.Create(ctx, Entry{CycleID: "old", ItemKey: "movie_9", MediaKind: "movie", Title: "Old", Outcome: OutcomeExhausted, CreatedAt: old})
	require.NoError(t, err)
	_, err = s.Create(ctx, Entry{CycleID: "new", ItemKey: "movie_9", MediaKind: "movie", Title: "Old", Outcome: OutcomeSucceeded})
	require.NoError(t, err)

	deleted, err := s.DeleteOlderThan(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	result, err := s.List(ctx, ListOptions{})
	require.NoError(t, err)
	require.Len(t, result.Items, 1)
	assert.Equal(t, "new", result.Items[0].CycleID)
}

func TestHandlers(t *testing.T) {
	s := newTestService(t)
	seed(t, s)

	e := echo.New()
	NewHandlers(s).RegisterRoutes(e.Group("/api/v1/history"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/history?kind=episode", nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp ListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(1), resp.TotalCount)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/history/movie_404", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/history", nil)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	result, err := s.List(context.Background(), ListOptions{})
	require.NoError(t, err)
	assert.Empty(t, result.Items)
}
