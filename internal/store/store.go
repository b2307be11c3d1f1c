package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/fundradar/fundradar/pkg/fund"
)

// scoreBatchSize bounds each score-write transaction so a failing chunk
// rolls back alone without touching previously committed chunks.
const scoreBatchSize = 200

// Announcement is one fund-house feed entry.
type Announcement struct {
	ID          string    `db:"id" json:"id"`
	Feed        string    `db:"feed" json:"feed"`
	Title       string    `db:"title" json:"title"`
	URL         string    `db:"url" json:"url"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	CollectedAt time.Time `db:"collected_at" json:"collected_at"`
}

// SyncRun is one logged synchronization run.
type SyncRun struct {
	ID            string     `db:"id" json:"id"`
	Kind          string     `db:"kind" json:"kind"`
	StartedAt     time.Time  `db:"started_at" json:"started_at"`
	FinishedAt    *time.Time `db:"finished_at" json:"finished_at"`
	FundsSeen     int        `db:"funds_seen" json:"funds_seen"`
	FundsEligible int        `db:"funds_eligible" json:"funds_eligible"`
	FundsScored   int        `db:"funds_scored" json:"funds_scored"`
	Failures      int        `db:"failures" json:"failures"`
	Error         string     `db:"error" json:"error"`
}

// ScoreListOpts controls scored-fund listing.
type ScoreListOpts struct {
	Group    string
	MinScore float64
	Limit    int
}

// Store is the persistence interface.
type Store interface {
	UpsertFunds(ctx context.Context, funds []fund.Fund) error
	UpdateReturns(ctx context.Context, returns map[string]fund.Returns) error
	ListFunds(ctx context.Context) ([]fund.Fund, error)
	ListCodes(ctx context.Context) ([]string, error)
	ListReturnProfiles(ctx context.Context) ([]fund.ReturnProfile, error)

	ReplaceCategoryAverages(ctx context.Context, averages []fund.CategoryAverage) error
	ListCategoryAverages(ctx context.Context) ([]fund.CategoryAverage, error)

	UpdateScores(ctx context.Context, scores []fund.ScoredFund) error
	ListScores(ctx context.Context, opts ScoreListOpts) ([]fund.ScoredFund, error)
	ListUnalerted(ctx context.Context, minScore float64) ([]fund.ScoredFund, error)
	MarkAlerted(ctx context.Context, code string) error

	AddAnnouncements(ctx context.Context, anns []Announcement) error
	ListAnnouncements(ctx context.Context, limit int) ([]Announcement, error)

	StartRun(ctx context.Context, run *SyncRun) error
	FinishRun(ctx context.Context, run *SyncRun) error
	LastRuns(ctx context.Context, limit int) ([]SyncRun, error)

	FlushScores(ctx context.Context) error
	FlushAll(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// New opens a SQLite database and runs migrations.
func New(path string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type fundRow struct {
	Code         string          `db:"code"`
	Name         string          `db:"name"`
	Type         string          `db:"type"`
	Category     string          `db:"category"`
	Plan         string          `db:"plan"`
	Scheme       string          `db:"scheme"`
	AUM          float64         `db:"aum"`
	Rating       int             `db:"rating"`
	Ret1W        sql.NullFloat64 `db:"ret_1w"`
	Ret1Y        sql.NullFloat64 `db:"ret_1y"`
	Ret3Y        sql.NullFloat64 `db:"ret_3y"`
	Ret5Y        sql.NullFloat64 `db:"ret_5y"`
	RetInception sql.NullFloat64 `db:"ret_inception"`
	RawScore     sql.NullFloat64 `db:"raw_score"`
	FinalScore   sql.NullFloat64 `db:"final_score"`
	ScoredAt     sql.NullTime    `db:"scored_at"`
	Alerted      bool            `db:"alerted"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

func (r *fundRow) returns() fund.Returns {
	returns := make(fund.Returns)
	for period, col := range map[fund.Period]sql.NullFloat64{
		fund.Period1W:        r.Ret1W,
		fund.Period1Y:        r.Ret1Y,
		fund.Period3Y:        r.Ret3Y,
		fund.Period5Y:        r.Ret5Y,
		fund.PeriodInception: r.RetInception,
	} {
		if col.Valid {
			returns[period] = fund.Float(col.Float64)
		}
	}
	return returns
}

func returnArg(returns fund.Returns, p fund.Period) any {
	if v, ok := returns.Get(p); ok {
		return v
	}
	return nil
}

// UpsertFunds writes fund metadata in one transaction. Existing returns
// and scores are left untouched; they have their own update paths.
func (s *SQLiteStore) UpsertFunds(ctx context.Context, funds []fund.Fund) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert funds: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range funds {
		f := &funds[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO funds (code, name, type, category, plan, scheme, aum, rating, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(code) DO UPDATE SET
				name = excluded.name,
				type = excluded.type,
				category = excluded.category,
				plan = excluded.plan,
				scheme = excluded.scheme,
				aum = excluded.aum,
				rating = excluded.rating,
				updated_at = excluded.updated_at
		`, f.Code, f.Name, f.Type, f.Category, f.Plan, f.Scheme, f.AUM, f.Rating, now)
		if err != nil {
			return fmt.Errorf("upsert fund %s: %w", f.Code, err)
		}
	}
	return tx.Commit()
}

// UpdateReturns replaces the stored period returns for the given funds.
func (s *SQLiteStore) UpdateReturns(ctx context.Context, returns map[string]fund.Returns) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin update returns: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for code, r := range returns {
		_, err := tx.ExecContext(ctx, `
			UPDATE funds
			SET ret_1w = ?, ret_1y = ?, ret_3y = ?, ret_5y = ?, ret_inception = ?, updated_at = ?
			WHERE code = ?
		`, returnArg(r, fund.Period1W), returnArg(r, fund.Period1Y),
			returnArg(r, fund.Period3Y), returnArg(r, fund.Period5Y),
			returnArg(r, fund.PeriodInception), now, code)
		if err != nil {
			return fmt.Errorf("update returns %s: %w", code, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListFunds(ctx context.Context) ([]fund.Fund, error) {
	var rows []fundRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM funds ORDER BY code"); err != nil {
		return nil, fmt.Errorf("list funds: %w", err)
	}

	funds := make([]fund.Fund, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		funds = append(funds, fund.Fund{
			Code:     r.Code,
			Name:     r.Name,
			Type:     r.Type,
			Category: r.Category,
			Plan:     r.Plan,
			Scheme:   r.Scheme,
			AUM:      r.AUM,
			Rating:   r.Rating,
			Returns:  r.returns(),
		})
	}
	return funds, nil
}

func (s *SQLiteStore) ListCodes(ctx context.Context) ([]string, error) {
	var codes []string
	if err := s.db.SelectContext(ctx, &codes, "SELECT code FROM funds ORDER BY code"); err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	return codes, nil
}

func (s *SQLiteStore) ListReturnProfiles(ctx context.Context) ([]fund.ReturnProfile, error) {
	var rows []fundRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM funds ORDER BY code"); err != nil {
		return nil, fmt.Errorf("list return profiles: %w", err)
	}

	profiles := make([]fund.ReturnProfile, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		profiles = append(profiles, fund.ReturnProfile{
			Code:     r.Code,
			Type:     r.Type,
			Category: r.Category,
			Returns:  r.returns(),
		})
	}
	return profiles, nil
}

type categoryRow struct {
	Category     string          `db:"category"`
	Ret1W        sql.NullFloat64 `db:"ret_1w"`
	Ret1Y        sql.NullFloat64 `db:"ret_1y"`
	Ret3Y        sql.NullFloat64 `db:"ret_3y"`
	Ret5Y        sql.NullFloat64 `db:"ret_5y"`
	RetInception sql.NullFloat64 `db:"ret_inception"`
	ReportDate   time.Time       `db:"report_date"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

// ReplaceCategoryAverages refreshes the category benchmark set wholesale:
// the old set is cleared and the new one inserted in one transaction.
func (s *SQLiteStore) ReplaceCategoryAverages(ctx context.Context, averages []fund.CategoryAverage) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin replace averages: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM category_averages"); err != nil {
		return fmt.Errorf("clear category averages: %w", err)
	}

	now := time.Now().UTC()
	for _, ca := range averages {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO category_averages (category, ret_1w, ret_1y, ret_3y, ret_5y, ret_inception, report_date, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(category) DO UPDATE SET
				ret_1w = excluded.ret_1w,
				ret_1y = excluded.ret_1y,
				ret_3y = excluded.ret_3y,
				ret_5y = excluded.ret_5y,
				ret_inception = excluded.ret_inception,
				report_date = excluded.report_date,
				updated_at = excluded.updated_at
		`, ca.Category, returnArg(ca.Returns, fund.Period1W), returnArg(ca.Returns, fund.Period1Y),
			returnArg(ca.Returns, fund.Period3Y), returnArg(ca.Returns, fund.Period5Y),
			returnArg(ca.Returns, fund.PeriodInception), ca.ReportDate.UTC(), now)
		if err != nil {
			return fmt.Errorf("insert category average %s: %w", ca.Category, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) ListCategoryAverages(ctx context.Context) ([]fund.CategoryAverage, error) {
	var rows []categoryRow
	if err := s.db.SelectContext(ctx, &rows, "SELECT * FROM category_averages ORDER BY category"); err != nil {
		return nil, fmt.Errorf("list category averages: %w", err)
	}

	averages := make([]fund.CategoryAverage, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		returns := make(fund.Returns)
		for period, col := range map[fund.Period]sql.NullFloat64{
			fund.Period1W:        r.Ret1W,
			fund.Period1Y:        r.Ret1Y,
			fund.Period3Y:        r.Ret3Y,
			fund.Period5Y:        r.Ret5Y,
			fund.PeriodInception: r.RetInception,
		} {
			if col.Valid {
				returns[period] = fund.Float(col.Float64)
			}
		}
		averages = append(averages, fund.CategoryAverage{
			Category:   r.Category,
			Returns:    returns,
			ReportDate: r.ReportDate,
		})
	}
	return averages, nil
}

// UpdateScores upserts scores keyed by fund identity, in chunked
// transactions. A failure rolls back only the current chunk; previously
// committed chunks stay intact.
func (s *SQLiteStore) UpdateScores(ctx context.Context, scores []fund.ScoredFund) error {
	for start := 0; start < len(scores); start += scoreBatchSize {
		end := start + scoreBatchSize
		if end > len(scores) {
			end = len(scores)
		}
		if err := s.updateScoreBatch(ctx, scores[start:end]); err != nil {
			return fmt.Errorf("score batch %d-%d (earlier batches committed): %w", start, end, err)
		}
	}
	return nil
}

func (s *SQLiteStore) updateScoreBatch(ctx context.Context, scores []fund.ScoredFund) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	for i := range scores {
		sc := &scores[i]
		var raw, final any
		if sc.RawScore != nil {
			raw = *sc.RawScore
		}
		if sc.FinalScore != nil {
			final = *sc.FinalScore
		}
		_, err := tx.ExecContext(ctx, `
			UPDATE funds SET raw_score = ?, final_score = ?, scored_at = ? WHERE code = ?
		`, raw, final, sc.ScoredAt.UTC(), sc.Code)
		if err != nil {
			return fmt.Errorf("update score %s: %w", sc.Code, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) scoredFromRows(rows []fundRow) []fund.ScoredFund {
	scored := make([]fund.ScoredFund, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		sf := fund.ScoredFund{
			Code:     r.Code,
			Name:     r.Name,
			Type:     r.Type,
			Category: r.Category,
		}
		if r.RawScore.Valid {
			sf.RawScore = fund.Float(r.RawScore.Float64)
		}
		if r.FinalScore.Valid {
			sf.FinalScore = fund.Float(r.FinalScore.Float64)
		}
		if r.ScoredAt.Valid {
			sf.ScoredAt = r.ScoredAt.Time
		}
		scored = append(scored, sf)
	}
	return scored
}

func (s *SQLiteStore) ListScores(ctx context.Context, opts ScoreListOpts) ([]fund.ScoredFund, error) {
	var rows []fundRow
	err := s.db.SelectContext(ctx, &rows,
		"SELECT * FROM funds WHERE final_score IS NOT NULL ORDER BY final_score DESC, code")
	if err != nil {
		return nil, fmt.Errorf("list scores: %w", err)
	}

	scored := s.scoredFromRows(rows)
	out := make([]fund.ScoredFund, 0, len(scored))
	for _, sf := range scored {
		if opts.Group != "" && fund.PeerGroupKey(sf.Type, sf.Category) != opts.Group {
			continue
		}
		if opts.MinScore > 0 && *sf.FinalScore < opts.MinScore {
			continue
		}
		out = append(out, sf)
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
	}
	return out, nil
}

func (s *SQLiteStore) ListUnalerted(ctx context.Context, minScore float64) ([]fund.ScoredFund, error) {
	var rows []fundRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT * FROM funds
		WHERE final_score IS NOT NULL AND final_score >= ? AND alerted = 0
		ORDER BY final_score DESC, code
	`, minScore)
	if err != nil {
		return nil, fmt.Errorf("list unalerted: %w", err)
	}
	return s.scoredFromRows(rows), nil
}

func (s *SQLiteStore) MarkAlerted(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, "UPDATE funds SET alerted = 1 WHERE code = ?", code)
	if err != nil {
		return fmt.Errorf("mark alerted %s: %w", code, err)
	}
	return nil
}

func (s *SQLiteStore) AddAnnouncements(ctx context.Context, anns []Announcement) error {
	for i := range anns {
		a := &anns[i]
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO announcements (id, feed, title, url, published_at, collected_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, a.ID, a.Feed, a.Title, a.URL, a.PublishedAt.UTC(), a.CollectedAt.UTC())
		if err != nil {
			return fmt.Errorf("add announcement %s: %w", a.ID, err)
		}
	}
	return nil
}

func (s *SQLiteStore) ListAnnouncements(ctx context.Context, limit int) ([]Announcement, error) {
	if limit <= 0 {
		limit = 50
	}
	var anns []Announcement
	err := s.db.SelectContext(ctx, &anns,
		"SELECT * FROM announcements ORDER BY published_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return anns, nil
}

func (s *SQLiteStore) StartRun(ctx context.Context, run *SyncRun) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_runs (id, kind, started_at) VALUES (?, ?, ?)
	`, run.ID, run.Kind, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("start run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) FinishRun(ctx context.Context, run *SyncRun) error {
	var finished any
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE sync_runs
		SET finished_at = ?, funds_seen = ?, funds_eligible = ?, funds_scored = ?, failures = ?, error = ?
		WHERE id = ?
	`, finished, run.FundsSeen, run.FundsEligible, run.FundsScored, run.Failures, run.Error, run.ID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLiteStore) LastRuns(ctx context.Context, limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	var runs []SyncRun
	err := s.db.SelectContext(ctx, &runs,
		"SELECT * FROM sync_runs ORDER BY started_at DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// FlushScores clears computed scores but keeps fund and category data.
func (s *SQLiteStore) FlushScores(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE funds SET raw_score = NULL, final_score = NULL, scored_at = NULL, alerted = 0")
	if err != nil {
		return fmt.Errorf("flush scores: %w", err)
	}
	return nil
}

// FlushAll clears every table.
func (s *SQLiteStore) FlushAll(ctx context.Context) error {
	for _, table := range []string{"funds", "category_averages", "announcements", "sync_runs"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("flush %s: %w", table, err)
		}
	}
	return nil
}
