package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Schedule      ScheduleConfig      `yaml:"schedule"`
	Provider      ProviderConfig      `yaml:"provider"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Categories    CategoriesConfig    `yaml:"categories"`
	Screen        ScreenConfig        `yaml:"screen"`
	Announcements AnnouncementsConfig `yaml:"announcements"`
	Alerts        AlertsConfig        `yaml:"alerts"`
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ScheduleConfig holds cron specs for the daemon jobs.
type ScheduleConfig struct {
	UpdateCron   string `yaml:"update_cron"`   // daily NAV refresh + rescore
	SeedCron     string `yaml:"seed_cron"`     // monthly full rediscovery
	AnnounceCron string `yaml:"announce_cron"` // announcement feed sweep
}

// ProviderConfig configures the fund data API client.
type ProviderConfig struct {
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
	BatchSize  int    `yaml:"batch_size"`
	BatchPause string `yaml:"batch_pause"`
}

// ParseTimeout returns the request timeout as time.Duration.
func (p ProviderConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(p.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// ParseBatchPause returns the pacing delay between fetch batches.
func (p ProviderConfig) ParseBatchPause() time.Duration {
	d, err := time.ParseDuration(p.BatchPause)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}

// ScoringConfig configures the calculator and normalizer.
type ScoringConfig struct {
	LowerBound      float64            `yaml:"lower_bound"`
	UpperBound      float64            `yaml:"upper_bound"`
	NegativePenalty float64            `yaml:"negative_penalty"`
	Weights         map[string]float64 `yaml:"weights"` // period label -> base weight
}

// CategoriesConfig is the allow-list driving the averages aggregator.
type CategoriesConfig struct {
	Primary     []string `yaml:"primary"`
	Blended     []string `yaml:"blended"`
	BlendedName string   `yaml:"blended_name"`
}

// ScreenConfig configures eligibility rules.
type ScreenConfig struct {
	GrowthOnly    bool     `yaml:"growth_only"`
	DirectOnly    bool     `yaml:"direct_only"`
	OpenEndedOnly bool     `yaml:"open_ended_only"`
	MinAUM        float64  `yaml:"min_aum"`
	MinRating     int      `yaml:"min_rating"`
	ExcludeNames  []string `yaml:"exclude_names"`
}

// AnnouncementsConfig configures fund-house feed watching.
type AnnouncementsConfig struct {
	Enabled  bool       `yaml:"enabled"`
	Feeds    []FeedItem `yaml:"feeds"`
	Keywords []string   `yaml:"keywords"`
	Exclude  []string   `yaml:"exclude"`
	MaxAge   string     `yaml:"max_age"`
}

// FeedItem is a single announcement feed entry.
type FeedItem struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
}

// ParseMaxAge returns the announcement recency cutoff.
func (a AnnouncementsConfig) ParseMaxAge() time.Duration {
	d, err := time.ParseDuration(a.MaxAge)
	if err != nil {
		return 7 * 24 * time.Hour
	}
	return d
}

// AlertsConfig configures alert destinations.
type AlertsConfig struct {
	MinScore float64       `yaml:"min_score"`
	Slack    SlackConfig   `yaml:"slack"`
	Discord  DiscordConfig `yaml:"discord"`
	Webhook  WebhookConfig `yaml:"webhook"`
}

// SlackConfig for Slack webhook alerts.
type SlackConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// DiscordConfig for Discord webhook alerts.
type DiscordConfig struct {
	Enabled    bool   `yaml:"enabled"`
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig for generic webhook alerts.
type WebhookConfig struct {
	Enabled bool   `yaml:"enabled"`
	URL     string `yaml:"url"`
	Secret  string `yaml:"secret"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig configures zerolog output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./fundradar.db"},
		Schedule: ScheduleConfig{
			UpdateCron:   "30 18 * * *", // after NAV publication
			SeedCron:     "0 7 1 * *",   // monthly universe refresh
			AnnounceCron: "0 * * * *",
		},
		Provider: ProviderConfig{
			Timeout:    "30s",
			BatchSize:  10,
			BatchPause: "500ms",
		},
		Scoring: ScoringConfig{
			LowerBound:      50,
			UpperBound:      100,
			NegativePenalty: 1.5,
			Weights: map[string]float64{
				"1w": 0.0003,
				"1y": 0.35,
				"3y": 0.40,
				"5y": 0.25,
			},
		},
		Categories: CategoriesConfig{
			Primary: []string{
				"Large Cap Fund", "Large & Mid Cap Fund", "Mid Cap Fund",
				"Small Cap Fund", "Flexi Cap Fund", "Multi Cap Fund",
				"Focused Fund", "Value Fund", "ELSS",
			},
			Blended: []string{
				"Aggressive Hybrid Fund", "Balanced Advantage Fund",
				"Dynamic Asset Allocation", "Equity Savings",
				"Multi Asset Allocation",
			},
			BlendedName: "Hybrid",
		},
		Screen: ScreenConfig{
			GrowthOnly:    true,
			DirectOnly:    true,
			OpenEndedOnly: true,
			MinAUM:        500,
			MinRating:     3,
			ExcludeNames:  []string{"etf", "index", "fof", "nifty", "sensex"},
		},
		Announcements: AnnouncementsConfig{
			Enabled: false,
			MaxAge:  "168h",
			Keywords: []string{
				"nfo", "new fund offer", "scheme", "fundamental attribute",
				"merger", "exit load", "dividend", "idcw",
			},
		},
		Alerts: AlertsConfig{MinScore: 95},
		Server: ServerConfig{Port: 8080},
		Logging: LoggingConfig{
			Level:  "info",
			Pretty: false,
		},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FUNDRADAR_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("FUNDRADAR_PROVIDER_URL"); v != "" {
		cfg.Provider.BaseURL = v
	}
	if v := os.Getenv("FUNDRADAR_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SLACK_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Slack.WebhookURL = v
		cfg.Alerts.Slack.Enabled = true
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		cfg.Alerts.Discord.WebhookURL = v
		cfg.Alerts.Discord.Enabled = true
	}
}
