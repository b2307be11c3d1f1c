package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundradar/fundradar/internal/store"
	"github.com/fundradar/fundradar/pkg/fund"
)

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	st, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return New(st, nil, 0, zerolog.Nop()), st
}

func seedScores(t *testing.T, st store.Store) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, st.UpsertFunds(ctx, []fund.Fund{
		{Code: "100123", Name: "Acme Large Cap Direct Growth", Type: "Equity", Category: "Large Cap Fund"},
		{Code: "200456", Name: "Acme Aggressive Hybrid Direct Growth", Type: "Hybrid", Category: "Aggressive Hybrid Fund"},
	}))
	require.NoError(t, st.UpdateScores(ctx, []fund.ScoredFund{
		{Code: "100123", RawScore: fund.Float(4), FinalScore: fund.Float(100), ScoredAt: time.Now().UTC()},
		{Code: "200456", RawScore: fund.Float(1), FinalScore: fund.Float(62.5), ScoredAt: time.Now().UTC()},
	}))
}

type listResponse struct {
	Data  []fund.ScoredFund `json:"data"`
	Count int               `json:"count"`
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHandleScores(t *testing.T) {
	srv, st := newTestServer(t)
	seedScores(t, st)

	rec := httptest.NewRecorder()
	srv.handleScores(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scores", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	assert.Equal(t, "100123", resp.Data[0].Code)
	assert.Equal(t, 100.0, *resp.Data[0].FinalScore)
}

func TestHandleScoresFilters(t *testing.T) {
	srv, st := newTestServer(t)
	seedScores(t, st)

	rec := httptest.NewRecorder()
	srv.handleScores(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scores?group=Hybrid&min_score=60", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "200456", resp.Data[0].Code)

	rec = httptest.NewRecorder()
	srv.handleScores(rec, httptest.NewRequest(http.MethodGet, "/api/v1/scores?min_score=99.5", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	assert.Equal(t, "100123", resp.Data[0].Code)
}

func TestHandleScoresMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleScores(rec, httptest.NewRequest(http.MethodPost, "/api/v1/scores", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleFunds(t *testing.T) {
	srv, st := newTestServer(t)
	seedScores(t, st)

	rec := httptest.NewRecorder()
	srv.handleFunds(rec, httptest.NewRequest(http.MethodGet, "/api/v1/funds", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
}

func TestHandleRunsEmpty(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleRuns(rec, httptest.NewRequest(http.MethodGet, "/api/v1/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 0, resp.Count)
}

func TestHandleSyncRequiresPost(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	srv.handleSync(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}
