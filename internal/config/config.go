// Package config loads and validates harvester configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/sportsnavi-harvester/internal/crawler"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Crawler  CrawlerConfig  `mapstructure:"crawler"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	DB       DBConfig       `mapstructure:"db"`
	Snapshot SnapshotConfig `mapstructure:"snapshot"`
	Report   ReportConfig   `mapstructure:"report"`
	Progress ProgressConfig `mapstructure:"progress"`
	Ops      OpsConfig      `mapstructure:"ops"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// CrawlerConfig governs scheduling and the crawl window.
type CrawlerConfig struct {
	Mode            string        `mapstructure:"mode"`
	MaxConcurrent   int           `mapstructure:"max_concurrent"`
	SequentialDelay time.Duration `mapstructure:"sequential_delay"`
	MaxPagesDefault int           `mapstructure:"max_pages_default"`
	BatchSize       int           `mapstructure:"batch_size"`
	Timezone        string        `mapstructure:"timezone"`
	Sources         []string      `mapstructure:"sources"`
	ExtraAdStrings  []string      `mapstructure:"extra_ad_strings"`
}

// FetchConfig configures browser sessions, retries, and politeness.
type FetchConfig struct {
	DelayMin        time.Duration `mapstructure:"delay_min"`
	DelayMax        time.Duration `mapstructure:"delay_max"`
	HostQPS         float64       `mapstructure:"host_qps"`
	HostBurst       int           `mapstructure:"host_burst"`
	MaxAttempts     int           `mapstructure:"max_attempts"`
	BackoffBase     time.Duration `mapstructure:"backoff_base"`
	BackoffMax      time.Duration `mapstructure:"backoff_max"`
	PageLoadTimeout time.Duration `mapstructure:"page_load_timeout"`
	ReadyTimeout    time.Duration `mapstructure:"ready_timeout"`
	UserAgent       string        `mapstructure:"user_agent"`
	RemoteURL       string        `mapstructure:"remote_url"`
	ExecPath        string        `mapstructure:"exec_path"`
	// StaticDriver serves sources that do not need scripting with colly
	// instead of a browser.
	StaticDriver bool `mapstructure:"static_driver"`
}

// DBConfig controls access to the article database.
type DBConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	RetentionMonths int           `mapstructure:"retention_months"`
}

// SnapshotConfig selects where raw list and detail pages are archived.
type SnapshotConfig struct {
	Backend string `mapstructure:"backend"`
	BaseDir string `mapstructure:"base_dir"`
	Bucket  string `mapstructure:"bucket"`
	Prefix  string `mapstructure:"prefix"`
}

// ReportConfig selects where run reports are published.
type ReportConfig struct {
	Backend   string `mapstructure:"backend"`
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// ProgressConfig sizes the run event hub and the window kept for the API.
type ProgressConfig struct {
	BufferSize   int `mapstructure:"buffer_size"`
	RecentEvents int `mapstructure:"recent_events"`
}

// OpsConfig controls the operational HTTP server.
type OpsConfig struct {
	Addr string `mapstructure:"addr"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HARVESTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")

	v.SetDefault("crawler.mode", string(crawler.ModeConcurrent))
	v.SetDefault("crawler.max_concurrent", 3)
	v.SetDefault("crawler.sequential_delay", 2*time.Second)
	v.SetDefault("crawler.max_pages_default", 1)
	v.SetDefault("crawler.batch_size", 50)
	v.SetDefault("crawler.timezone", "Asia/Tokyo")
	v.SetDefault("crawler.sources", []string{})
	v.SetDefault("crawler.extra_ad_strings", []string{})

	v.SetDefault("fetch.delay_min", time.Second)
	v.SetDefault("fetch.delay_max", 3*time.Second)
	v.SetDefault("fetch.host_qps", 1.0)
	v.SetDefault("fetch.host_burst", 1)
	v.SetDefault("fetch.max_attempts", 3)
	v.SetDefault("fetch.backoff_base", 2*time.Second)
	v.SetDefault("fetch.backoff_max", 10*time.Second)
	v.SetDefault("fetch.page_load_timeout", 20*time.Second)
	v.SetDefault("fetch.ready_timeout", 5*time.Second)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36")
	v.SetDefault("fetch.remote_url", "")
	v.SetDefault("fetch.exec_path", "")
	v.SetDefault("fetch.static_driver", false)

	// Keys without a default are invisible to AutomaticEnv during Unmarshal.
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.table", "articles")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("db.min_conns", 0)
	v.SetDefault("db.max_conn_lifetime", time.Duration(0))
	v.SetDefault("db.retention_months", 13)

	v.SetDefault("snapshot.backend", "none")
	v.SetDefault("snapshot.base_dir", "data/snapshots")
	v.SetDefault("snapshot.bucket", "")
	v.SetDefault("snapshot.prefix", "")
	v.SetDefault("report.backend", "none")
	v.SetDefault("report.project_id", "")
	v.SetDefault("report.topic", "")
	v.SetDefault("progress.buffer_size", 1024)
	v.SetDefault("progress.recent_events", 500)
	v.SetDefault("ops.addr", ":8080")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	switch crawler.Mode(c.Crawler.Mode) {
	case crawler.ModeConcurrent, crawler.ModeSequential:
	default:
		return fmt.Errorf("crawler.mode must be concurrent or sequential, got %q", c.Crawler.Mode)
	}
	if c.Crawler.MaxConcurrent <= 0 {
		return fmt.Errorf("crawler.max_concurrent must be > 0")
	}
	if c.Crawler.SequentialDelay < 0 {
		return fmt.Errorf("crawler.sequential_delay must be >= 0")
	}
	if c.Crawler.MaxPagesDefault < 0 {
		return fmt.Errorf("crawler.max_pages_default must be >= 0")
	}
	if c.Crawler.BatchSize <= 0 {
		return fmt.Errorf("crawler.batch_size must be > 0")
	}
	if _, err := time.LoadLocation(c.Crawler.Timezone); err != nil {
		return fmt.Errorf("crawler.timezone: %w", err)
	}
	if c.Fetch.DelayMin < 0 || c.Fetch.DelayMax < c.Fetch.DelayMin {
		return fmt.Errorf("fetch.delay_min must be >= 0 and <= fetch.delay_max")
	}
	if c.Fetch.MaxAttempts <= 0 {
		return fmt.Errorf("fetch.max_attempts must be > 0")
	}
	if c.Fetch.PageLoadTimeout <= 0 {
		return fmt.Errorf("fetch.page_load_timeout must be > 0")
	}
	if c.DB.RetentionMonths <= 0 {
		return fmt.Errorf("db.retention_months must be > 0")
	}
	switch c.Snapshot.Backend {
	case "", "none", "memory":
	case "local":
		if c.Snapshot.BaseDir == "" {
			return fmt.Errorf("snapshot.base_dir must be set for the local backend")
		}
	case "gcs":
		if c.Snapshot.Bucket == "" {
			return fmt.Errorf("snapshot.bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown snapshot.backend %q", c.Snapshot.Backend)
	}
	if c.Progress.BufferSize <= 0 || c.Progress.RecentEvents <= 0 {
		return fmt.Errorf("progress.buffer_size and progress.recent_events must be > 0")
	}
	switch c.Report.Backend {
	case "", "none", "memory":
	case "pubsub":
		if c.Report.ProjectID == "" || c.Report.Topic == "" {
			return fmt.Errorf("report.project_id and report.topic must be set for the pubsub backend")
		}
	default:
		return fmt.Errorf("unknown report.backend %q", c.Report.Backend)
	}
	return nil
}

// Location returns the crawl time zone. Validate has already checked it.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Crawler.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// RetryPolicy converts the fetch settings into a crawler.RetryPolicy.
func (c Config) RetryPolicy() crawler.RetryPolicy {
	return crawler.RetryPolicy{
		MaxAttempts: c.Fetch.MaxAttempts,
		BaseDelay:   c.Fetch.BackoffBase,
		MaxDelay:    c.Fetch.BackoffMax,
		Retryable:   crawler.IsTransient,
	}
}
