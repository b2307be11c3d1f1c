package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundradar/fundradar/pkg/fund"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testFunds() []fund.Fund {
	return []fund.Fund{
		{Code: "100123", Name: "Acme Large Cap Direct Growth", Type: "Equity",
			Category: "Large Cap Fund", Plan: "Direct - Growth", Scheme: "Open Ended",
			AUM: 1200, Rating: 4},
		{Code: "200456", Name: "Acme Aggressive Hybrid Direct Growth", Type: "Hybrid",
			Category: "Aggressive Hybrid Fund", Plan: "Direct - Growth", Scheme: "Open Ended",
			AUM: 800, Rating: 3},
	}
}

func TestUpsertFundsRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFunds(ctx, testFunds()))

	got, err := s.ListFunds(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "100123", got[0].Code)
	assert.Equal(t, "Large Cap Fund", got[0].Category)
	assert.Equal(t, 1200.0, got[0].AUM)
	assert.Equal(t, 4, got[0].Rating)
	assert.Empty(t, got[0].Returns)

	codes, err := s.ListCodes(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"100123", "200456"}, codes)
}

func TestUpsertFundsUpdatesMetadataKeepsReturns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	funds := testFunds()
	require.NoError(t, s.UpsertFunds(ctx, funds))
	require.NoError(t, s.UpdateReturns(ctx, map[string]fund.Returns{
		"100123": {fund.Period1Y: fund.Float(12.5)},
	}))

	funds[0].AUM = 1500
	funds[0].Rating = 5
	require.NoError(t, s.UpsertFunds(ctx, funds))

	got, err := s.ListFunds(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 1500.0, got[0].AUM)
	assert.Equal(t, 5, got[0].Rating)

	v, ok := got[0].Returns.Get(fund.Period1Y)
	require.True(t, ok, "re-upsert must not wipe stored returns")
	assert.Equal(t, 12.5, v)
}

func TestUpdateReturnsReplacesAllPeriods(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFunds(ctx, testFunds()))
	require.NoError(t, s.UpdateReturns(ctx, map[string]fund.Returns{
		"100123": {fund.Period1Y: fund.Float(10), fund.Period3Y: fund.Float(15)},
	}))
	// A later refresh where 3y went missing clears the old 3y value.
	require.NoError(t, s.UpdateReturns(ctx, map[string]fund.Returns{
		"100123": {fund.Period1Y: fund.Float(11)},
	}))

	profiles, err := s.ListReturnProfiles(ctx)
	require.NoError(t, err)
	require.Len(t, profiles, 2)

	v, ok := profiles[0].Returns.Get(fund.Period1Y)
	require.True(t, ok)
	assert.Equal(t, 11.0, v)
	_, ok = profiles[0].Returns.Get(fund.Period3Y)
	assert.False(t, ok)
}

func TestReplaceCategoryAveragesWholesale(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	reported := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)

	require.NoError(t, s.ReplaceCategoryAverages(ctx, []fund.CategoryAverage{
		{Category: "Large Cap Fund", Returns: fund.Returns{fund.Period1Y: fund.Float(12)}, ReportDate: reported},
		{Category: "Mid Cap Fund", Returns: fund.Returns{fund.Period1Y: fund.Float(18)}, ReportDate: reported},
	}))

	// The next refresh carries a smaller set: stale categories must go.
	require.NoError(t, s.ReplaceCategoryAverages(ctx, []fund.CategoryAverage{
		{Category: "Large Cap Fund", Returns: fund.Returns{fund.Period1Y: fund.Float(13), fund.Period3Y: nil}, ReportDate: reported},
	}))

	got, err := s.ListCategoryAverages(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Large Cap Fund", got[0].Category)
	assert.Equal(t, "2026-08-21", got[0].ReportDate.Format("2006-01-02"))

	v, ok := got[0].Returns.Get(fund.Period1Y)
	require.True(t, ok)
	assert.Equal(t, 13.0, v)
	_, ok = got[0].Returns.Get(fund.Period3Y)
	assert.False(t, ok)
}

func TestUpdateAndListScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertFunds(ctx, testFunds()))
	require.NoError(t, s.UpdateScores(ctx, []fund.ScoredFund{
		{Code: "100123", RawScore: fund.Float(4), FinalScore: fund.Float(100), ScoredAt: now},
		{Code: "200456", RawScore: fund.Float(-1.2), FinalScore: fund.Float(50), ScoredAt: now},
	}))

	got, err := s.ListScores(ctx, ScoreListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Sorted by final score descending.
	assert.Equal(t, "100123", got[0].Code)
	assert.Equal(t, 100.0, *got[0].FinalScore)
	assert.Equal(t, 4.0, *got[0].RawScore)
	assert.False(t, got[0].ScoredAt.IsZero())

	filtered, err := s.ListScores(ctx, ScoreListOpts{MinScore: 60})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "100123", filtered[0].Code)

	grouped, err := s.ListScores(ctx, ScoreListOpts{Group: "Hybrid"})
	require.NoError(t, err)
	require.Len(t, grouped, 1)
	assert.Equal(t, "200456", grouped[0].Code)

	limited, err := s.ListScores(ctx, ScoreListOpts{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestListScoresSkipsUnscoredFunds(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFunds(ctx, testFunds()))
	require.NoError(t, s.UpdateScores(ctx, []fund.ScoredFund{
		{Code: "100123", RawScore: fund.Float(4), FinalScore: fund.Float(100), ScoredAt: time.Now().UTC()},
	}))

	got, err := s.ListScores(ctx, ScoreListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "100123", got[0].Code)
}

func TestUnalertedLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.UpsertFunds(ctx, testFunds()))
	require.NoError(t, s.UpdateScores(ctx, []fund.ScoredFund{
		{Code: "100123", RawScore: fund.Float(4), FinalScore: fund.Float(98), ScoredAt: now},
		{Code: "200456", RawScore: fund.Float(1), FinalScore: fund.Float(80), ScoredAt: now},
	}))

	hot, err := s.ListUnalerted(ctx, 95)
	require.NoError(t, err)
	require.Len(t, hot, 1)
	assert.Equal(t, "100123", hot[0].Code)

	require.NoError(t, s.MarkAlerted(ctx, "100123"))

	hot, err = s.ListUnalerted(ctx, 95)
	require.NoError(t, err)
	assert.Empty(t, hot)
}

func TestFlushScores(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFunds(ctx, testFunds()))
	require.NoError(t, s.UpdateReturns(ctx, map[string]fund.Returns{
		"100123": {fund.Period1Y: fund.Float(12.5)},
	}))
	require.NoError(t, s.UpdateScores(ctx, []fund.ScoredFund{
		{Code: "100123", RawScore: fund.Float(4), FinalScore: fund.Float(100), ScoredAt: time.Now().UTC()},
	}))

	require.NoError(t, s.FlushScores(ctx))

	scores, err := s.ListScores(ctx, ScoreListOpts{})
	require.NoError(t, err)
	assert.Empty(t, scores)

	// Funds and their returns survive a score flush.
	funds, err := s.ListFunds(ctx)
	require.NoError(t, err)
	require.Len(t, funds, 2)
	_, ok := funds[0].Returns.Get(fund.Period1Y)
	assert.True(t, ok)
}

func TestFlushAll(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertFunds(ctx, testFunds()))
	require.NoError(t, s.ReplaceCategoryAverages(ctx, []fund.CategoryAverage{
		{Category: "Large Cap Fund", Returns: fund.Returns{fund.Period1Y: fund.Float(12)}},
	}))

	require.NoError(t, s.FlushAll(ctx))

	funds, err := s.ListFunds(ctx)
	require.NoError(t, err)
	assert.Empty(t, funds)
	averages, err := s.ListCategoryAverages(ctx)
	require.NoError(t, err)
	assert.Empty(t, averages)
}

func TestAnnouncementsDedupeByID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	anns := []Announcement{
		{ID: "sebi:1", Feed: "sebi", Title: "Scheme merger notice", URL: "https://example.com/1",
			PublishedAt: now.Add(-2 * time.Hour), CollectedAt: now},
		{ID: "sebi:2", Feed: "sebi", Title: "NFO launch", URL: "https://example.com/2",
			PublishedAt: now.Add(-time.Hour), CollectedAt: now},
	}
	require.NoError(t, s.AddAnnouncements(ctx, anns))
	// A later sweep re-collects the same entries.
	require.NoError(t, s.AddAnnouncements(ctx, anns))

	got, err := s.ListAnnouncements(ctx, 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// Newest first.
	assert.Equal(t, "sebi:2", got[0].ID)
	assert.Equal(t, "sebi:1", got[1].ID)
}

func TestRunLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	started := time.Now().UTC()

	run := &SyncRun{ID: "run-1", Kind: "update", StartedAt: started}
	require.NoError(t, s.StartRun(ctx, run))

	finished := started.Add(time.Minute)
	run.FinishedAt = &finished
	run.FundsSeen = 120
	run.FundsEligible = 40
	run.FundsScored = 40
	require.NoError(t, s.FinishRun(ctx, run))

	runs, err := s.LastRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.Equal(t, "update", runs[0].Kind)
	assert.Equal(t, 120, runs[0].FundsSeen)
	assert.Equal(t, 40, runs[0].FundsScored)
	require.NotNil(t, runs[0].FinishedAt)
}

func TestUpdateScoresChunked(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	n := scoreBatchSize + 50
	funds := make([]fund.Fund, n)
	scores := make([]fund.ScoredFund, n)
	for i := range funds {
		code := "F" + string(rune('A'+i/676%26)) + string(rune('A'+i/26%26)) + string(rune('A'+i%26))
		funds[i] = fund.Fund{Code: code, Name: code, Type: "Equity", Category: "Large Cap Fund"}
		scores[i] = fund.ScoredFund{Code: code, RawScore: fund.Float(float64(i)),
			FinalScore: fund.Float(50 + float64(i)/10), ScoredAt: now}
	}

	require.NoError(t, s.UpsertFunds(ctx, funds))
	require.NoError(t, s.UpdateScores(ctx, scores))

	got, err := s.ListScores(ctx, ScoreListOpts{Limit: n})
	require.NoError(t, err)
	assert.Len(t, got, n)
}
