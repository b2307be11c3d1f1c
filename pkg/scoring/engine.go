package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundradar/fundradar/pkg/fund"
)

// Store is the slice of persistence the engine needs.
type Store interface {
	ListReturnProfiles(ctx context.Context) ([]fund.ReturnProfile, error)
	ListCategoryAverages(ctx context.Context) ([]fund.CategoryAverage, error)
	UpdateScores(ctx context.Context, scores []fund.ScoredFund) error
}

// Summary reports one scoring pass.
type Summary struct {
	Funds      int `json:"funds"`
	Scored     int `json:"scored"`
	Groups     int `json:"groups"`
	Categories int `json:"categories"`
}

// Engine runs the full scoring pass: raw-score every fund, then
// normalize every peer group, then persist. Raw scores for the whole
// population are computed before any normalization so group bounds are
// never derived from a partial subset.
type Engine struct {
	store Store
	calc  *Calculator
	norm  *Normalizer
	log   zerolog.Logger
}

// NewEngine creates a scoring engine.
func NewEngine(store Store, calc *Calculator, norm *Normalizer, log zerolog.Logger) *Engine {
	return &Engine{store: store, calc: calc, norm: norm, log: log}
}

// ScoreAll recomputes every fund's raw and final score from the store's
// current snapshot and writes the results back.
func (e *Engine) ScoreAll(ctx context.Context) (Summary, error) {
	averages, err := e.store.ListCategoryAverages(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list category averages: %w", err)
	}
	avgByCategory := make(map[string]fund.CategoryAverage, len(averages))
	for _, ca := range averages {
		avgByCategory[ca.Category] = ca
	}
	if len(avgByCategory) == 0 {
		// Absolute mode: raw period returns stand in for outperformance.
		avgByCategory = nil
		e.log.Warn().Msg("no category averages, scoring in absolute mode")
	}

	profiles, err := e.store.ListReturnProfiles(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list return profiles: %w", err)
	}
	if len(profiles) == 0 {
		return Summary{}, nil
	}

	now := time.Now().UTC()
	scored := make([]fund.ScoredFund, 0, len(profiles))
	groups := make(map[string]bool)
	for _, p := range profiles {
		raw := e.calc.Score(p, avgByCategory)
		scored = append(scored, fund.ScoredFund{
			Code:     p.Code,
			Type:     p.Type,
			Category: p.Category,
			RawScore: &raw,
			ScoredAt: now,
		})
		groups[fund.PeerGroupKey(p.Type, p.Category)] = true
	}

	scored = e.norm.Normalize(scored)

	if err := e.store.UpdateScores(ctx, scored); err != nil {
		return Summary{}, fmt.Errorf("persist scores: %w", err)
	}

	summary := Summary{
		Funds:      len(profiles),
		Scored:     len(scored),
		Groups:     len(groups),
		Categories: len(averages),
	}
	e.log.Info().
		Int("funds", summary.Funds).
		Int("scored", summary.Scored).
		Int("groups", summary.Groups).
		Msg("scoring pass complete")
	return summary, nil
}
