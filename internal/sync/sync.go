// Package sync orchestrates the fetch -> screen -> score -> persist
// pipeline shared by the CLI one-shots and the cron scheduler.
package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/fundradar/fundradar/internal/store"
	"github.com/fundradar/fundradar/pkg/alert"
	"github.com/fundradar/fundradar/pkg/announce"
	"github.com/fundradar/fundradar/pkg/fund"
	"github.com/fundradar/fundradar/pkg/provider"
	"github.com/fundradar/fundradar/pkg/scoring"
	"github.com/fundradar/fundradar/pkg/screen"
)

// Runner executes synchronization runs and logs them to the store.
type Runner struct {
	store      store.Store
	provider   *provider.Client
	engine     *scoring.Engine
	aggregator *scoring.Aggregator
	rules      screen.Rules
	alerts     *alert.Manager
	watcher    *announce.Watcher // nil = announcements disabled
	alertMin   float64
	log        zerolog.Logger
}

// New creates a runner.
func New(
	st store.Store,
	p *provider.Client,
	engine *scoring.Engine,
	aggregator *scoring.Aggregator,
	rules screen.Rules,
	alerts *alert.Manager,
	watcher *announce.Watcher,
	alertMin float64,
	log zerolog.Logger,
) *Runner {
	return &Runner{
		store:      st,
		provider:   p,
		engine:     engine,
		aggregator: aggregator,
		rules:      rules,
		alerts:     alerts,
		watcher:    watcher,
		alertMin:   alertMin,
		log:        log,
	}
}

// Seed rediscovers the fund universe, screens it, fetches returns and
// category averages, and runs a full scoring pass.
func (r *Runner) Seed(ctx context.Context) (*store.SyncRun, error) {
	run := r.startRun(ctx, "seed")

	funds, err := r.provider.ListFunds(ctx)
	if err != nil {
		return r.finishRun(ctx, run, fmt.Errorf("discover funds: %w", err))
	}
	run.FundsSeen = len(funds)

	scr := screen.New(r.rules)
	eligible := scr.Apply(funds)
	run.FundsEligible = len(eligible)
	for name, count := range scr.Rejections() {
		r.log.Info().Str("predicate", name).Int("rejected", count).Msg("screen")
	}

	if err := r.store.UpsertFunds(ctx, eligible); err != nil {
		return r.finishRun(ctx, run, fmt.Errorf("persist funds: %w", err))
	}

	if err := r.refreshReturns(ctx, run, codes(eligible)); err != nil {
		return r.finishRun(ctx, run, err)
	}
	return r.scoreAndFinish(ctx, run)
}

// Update refreshes returns for the already-stored universe and runs a
// full scoring pass. Scores are always recomputed for every fund:
// normalization bounds must never come from a partial peer set.
func (r *Runner) Update(ctx context.Context) (*store.SyncRun, error) {
	run := r.startRun(ctx, "update")

	codes, err := r.store.ListCodes(ctx)
	if err != nil {
		return r.finishRun(ctx, run, fmt.Errorf("list funds: %w", err))
	}
	if len(codes) == 0 {
		return r.finishRun(ctx, run, fmt.Errorf("no funds stored, run seed first"))
	}
	run.FundsSeen = len(codes)
	run.FundsEligible = len(codes)

	if err := r.refreshReturns(ctx, run, codes); err != nil {
		return r.finishRun(ctx, run, err)
	}
	return r.scoreAndFinish(ctx, run)
}

// RefreshAverages replaces the stored category benchmark set from the
// provider's raw list via the aggregator.
func (r *Runner) RefreshAverages(ctx context.Context) (int, error) {
	raw, err := r.provider.CategoryAverages(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch category averages: %w", err)
	}
	averages := r.aggregator.Aggregate(raw)
	if err := r.store.ReplaceCategoryAverages(ctx, averages); err != nil {
		return 0, fmt.Errorf("replace category averages: %w", err)
	}
	r.log.Info().Int("raw", len(raw)).Int("kept", len(averages)).Msg("category averages refreshed")
	return len(averages), nil
}

// CollectAnnouncements polls the configured fund-house feeds.
func (r *Runner) CollectAnnouncements(ctx context.Context) (int, error) {
	if r.watcher == nil {
		return 0, nil
	}
	anns, err := r.watcher.Collect(ctx)
	if err != nil {
		return 0, fmt.Errorf("collect announcements: %w", err)
	}
	if err := r.store.AddAnnouncements(ctx, anns); err != nil {
		return 0, fmt.Errorf("store announcements: %w", err)
	}
	return len(anns), nil
}

func (r *Runner) refreshReturns(ctx context.Context, run *store.SyncRun, codes []string) error {
	returns, err := r.provider.FetchReturns(ctx, codes)
	if err != nil {
		return fmt.Errorf("fetch returns: %w", err)
	}
	run.Failures = len(codes) - len(returns)
	if run.Failures > 0 {
		r.log.Warn().Int("failures", run.Failures).Msg("some funds did not return data")
	}
	if err := r.store.UpdateReturns(ctx, returns); err != nil {
		return fmt.Errorf("persist returns: %w", err)
	}
	return nil
}

func (r *Runner) scoreAndFinish(ctx context.Context, run *store.SyncRun) (*store.SyncRun, error) {
	// A failed averages refresh degrades scoring to absolute mode
	// rather than aborting the run.
	if _, err := r.RefreshAverages(ctx); err != nil {
		r.log.Warn().Err(err).Msg("category averages unavailable")
	}

	summary, err := r.engine.ScoreAll(ctx)
	if err != nil {
		return r.finishRun(ctx, run, fmt.Errorf("scoring pass: %w", err))
	}
	run.FundsScored = summary.Scored

	r.dispatchAlerts(ctx)
	return r.finishRun(ctx, run, nil)
}

func (r *Runner) dispatchAlerts(ctx context.Context) {
	if r.alerts == nil || !r.alerts.HasNotifiers() {
		return
	}

	top, err := r.store.ListUnalerted(ctx, r.alertMin)
	if err != nil {
		r.log.Warn().Err(err).Msg("list unalerted funds")
		return
	}

	for _, sf := range top {
		n := &alert.Notification{
			Code:  sf.Code,
			Name:  sf.Name,
			Group: fund.PeerGroupKey(sf.Type, sf.Category),
			Score: *sf.FinalScore,
			Body:  fmt.Sprintf("Normalized score %.2f within %s", *sf.FinalScore, fund.PeerGroupKey(sf.Type, sf.Category)),
		}
		if sf.RawScore != nil {
			n.RawScore = *sf.RawScore
		}
		if err := r.alerts.Broadcast(ctx, n); err != nil {
			r.log.Warn().Err(err).Str("fund", sf.Code).Msg("alert failed")
			continue
		}
		if err := r.store.MarkAlerted(ctx, sf.Code); err != nil {
			r.log.Warn().Err(err).Str("fund", sf.Code).Msg("mark alerted")
		}
	}
}

func (r *Runner) startRun(ctx context.Context, kind string) *store.SyncRun {
	run := &store.SyncRun{
		ID:        uuid.NewString(),
		Kind:      kind,
		StartedAt: time.Now().UTC(),
	}
	if err := r.store.StartRun(ctx, run); err != nil {
		r.log.Warn().Err(err).Str("kind", kind).Msg("record run start")
	}
	r.log.Info().Str("run", run.ID).Str("kind", kind).Msg("sync run started")
	return run
}

func (r *Runner) finishRun(ctx context.Context, run *store.SyncRun, err error) (*store.SyncRun, error) {
	now := time.Now().UTC()
	run.FinishedAt = &now
	if err != nil {
		run.Error = err.Error()
	}
	if ferr := r.store.FinishRun(ctx, run); ferr != nil {
		r.log.Warn().Err(ferr).Str("run", run.ID).Msg("record run finish")
	}

	evt := r.log.Info()
	if err != nil {
		evt = r.log.Error().Err(err)
	}
	evt.Str("run", run.ID).
		Str("kind", run.Kind).
		Int("seen", run.FundsSeen).
		Int("eligible", run.FundsEligible).
		Int("scored", run.FundsScored).
		Int("failures", run.Failures).
		Dur("took", now.Sub(run.StartedAt)).
		Msg("sync run finished")
	return run, err
}

func codes(funds []fund.Fund) []string {
	out := make([]string, len(funds))
	for i := range funds {
		out[i] = funds[i].Code
	}
	return out
}
