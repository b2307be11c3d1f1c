package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundradar/fundradar/internal/config"
	"github.com/fundradar/fundradar/internal/scheduler"
	"github.com/fundradar/fundradar/internal/store"
	syncer "github.com/fundradar/fundradar/internal/sync"
	"github.com/fundradar/fundradar/pkg/alert"
	"github.com/fundradar/fundradar/pkg/announce"
	"github.com/fundradar/fundradar/pkg/fund"
	"github.com/fundradar/fundradar/pkg/provider"
	"github.com/fundradar/fundradar/pkg/scoring"
	"github.com/fundradar/fundradar/pkg/screen"
	"github.com/fundradar/fundradar/pkg/server"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Logging.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stderr
	if cfg.Logging.Pretty {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

func buildProvider(cfg *config.Config, log zerolog.Logger) (*provider.Client, error) {
	if cfg.Provider.BaseURL == "" {
		return nil, errors.New("provider.base_url is not configured (or set FUNDRADAR_PROVIDER_URL)")
	}
	return provider.New(provider.Config{
		BaseURL:    cfg.Provider.BaseURL,
		Timeout:    cfg.Provider.ParseTimeout(),
		BatchSize:  cfg.Provider.BatchSize,
		BatchPause: cfg.Provider.ParseBatchPause(),
	}, log.With().Str("component", "provider").Logger()), nil
}

func weightTable(cfg *config.Config) map[fund.Period]float64 {
	weights := make(map[fund.Period]float64, len(cfg.Scoring.Weights))
	for label, w := range cfg.Scoring.Weights {
		weights[fund.Period(label)] = w
	}
	return weights
}

func buildEngine(cfg *config.Config, db store.Store, log zerolog.Logger) *scoring.Engine {
	calc := scoring.NewCalculator(weightTable(cfg), cfg.Scoring.NegativePenalty)
	norm := scoring.NewNormalizer(cfg.Scoring.LowerBound, cfg.Scoring.UpperBound)
	return scoring.NewEngine(db, calc, norm, log.With().Str("component", "scoring").Logger())
}

func screenRules(cfg *config.Config) screen.Rules {
	return screen.Rules{
		GrowthOnly:    cfg.Screen.GrowthOnly,
		DirectOnly:    cfg.Screen.DirectOnly,
		OpenEndedOnly: cfg.Screen.OpenEndedOnly,
		MinAUM:        cfg.Screen.MinAUM,
		MinRating:     cfg.Screen.MinRating,
		ExcludeNames:  cfg.Screen.ExcludeNames,
	}
}

func buildAlertManager(cfg *config.Config) *alert.Manager {
	var notifiers []alert.Notifier

	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

func buildWatcher(cfg *config.Config, log zerolog.Logger) *announce.Watcher {
	if !cfg.Announcements.Enabled || len(cfg.Announcements.Feeds) == 0 {
		return nil
	}
	feeds := make([]announce.Feed, len(cfg.Announcements.Feeds))
	for i, f := range cfg.Announcements.Feeds {
		feeds[i] = announce.Feed{Name: f.Name, URL: f.URL}
	}
	return announce.New(feeds, cfg.Announcements.Keywords, cfg.Announcements.Exclude,
		cfg.Announcements.ParseMaxAge(), log.With().Str("component", "announce").Logger())
}

func buildRunner(cfg *config.Config, db store.Store, log zerolog.Logger) (*syncer.Runner, error) {
	client, err := buildProvider(cfg, log)
	if err != nil {
		return nil, err
	}
	engine := buildEngine(cfg, db, log)
	aggregator := scoring.NewAggregator(cfg.Categories.Primary, cfg.Categories.Blended, cfg.Categories.BlendedName)
	return syncer.New(db, client, engine, aggregator, screenRules(cfg),
		buildAlertManager(cfg), buildWatcher(cfg, log), cfg.Alerts.MinScore,
		log.With().Str("component", "sync").Logger()), nil
}

func runSeed() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runner, err := buildRunner(cfg, db, log)
	if err != nil {
		return err
	}

	_, err = runner.Seed(context.Background())
	return err
}

func runUpdate() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runner, err := buildRunner(cfg, db, log)
	if err != nil {
		return err
	}

	_, err = runner.Update(context.Background())
	return err
}

func runFlush(all bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	ctx := context.Background()
	if all {
		if err := db.FlushAll(ctx); err != nil {
			return err
		}
		log.Info().Msg("all stored data cleared")
		return nil
	}
	if err := db.FlushScores(ctx); err != nil {
		return err
	}
	log.Info().Msg("scores cleared")
	return nil
}

func runPing() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	if err := db.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	log.Info().Str("path", cfg.Database.Path).Msg("store ok")

	client, err := buildProvider(cfg, log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("provider: %w", err)
	}
	log.Info().Str("url", cfg.Provider.BaseURL).Msg("provider ok")
	return nil
}

func runScores(jsonOutput bool, group string, minScore float64, limit int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	scores, err := db.ListScores(context.Background(), store.ScoreListOpts{
		Group:    group,
		MinScore: minScore,
		Limit:    limit,
	})
	if err != nil {
		return fmt.Errorf("list scores: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(scores)
	}

	if len(scores) == 0 {
		fmt.Println("no scores found (try seeding first: fundradar seed)")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SCORE\tRAW\tGROUP\tCODE\tNAME")
	for _, sf := range scores {
		raw := ""
		if sf.RawScore != nil {
			raw = fmt.Sprintf("%.2f", *sf.RawScore)
		}
		fmt.Fprintf(w, "%.2f\t%s\t%s\t%s\t%s\n",
			*sf.FinalScore, raw, fund.PeerGroupKey(sf.Type, sf.Category), sf.Code, sf.Name)
	}
	return w.Flush()
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runner, err := buildRunner(cfg, db, log)
	if err != nil {
		return err
	}

	srv := server.New(db, runner, port, log.With().Str("component", "server").Logger())
	return srv.ListenAndServe()
}

func runDaemon(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := newLogger(cfg)

	if port == 0 {
		port = cfg.Server.Port
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	runner, err := buildRunner(cfg, db, log)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.New(runner, log.With().Str("component", "scheduler").Logger())
	if err := sched.Register(ctx, cfg.Schedule.UpdateCron, cfg.Schedule.SeedCron, cfg.Schedule.AnnounceCron); err != nil {
		return err
	}
	sched.Start()

	go func() {
		<-ctx.Done()
		log.Info().Msg("shutting down")
		sched.Stop()
		db.Close()
		os.Exit(0)
	}()

	srv := server.New(db, runner, port, log.With().Str("component", "server").Logger())
	return srv.ListenAndServe()
}
