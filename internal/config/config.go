// Package config loads and validates importer configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all importer configuration knobs loaded via Viper.
type Config struct {
	Source  SourceConfig  `mapstructure:"source"`
	HTTP    HTTPConfig    `mapstructure:"http"`
	DB      DBConfig      `mapstructure:"db"`
	Import  ImportConfig  `mapstructure:"import"`
	Sync    SyncConfig    `mapstructure:"sync"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Ops     OpsConfig     `mapstructure:"ops"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// SourceConfig locates the results site.
type SourceConfig struct {
	// BaseURL is the root that relative document locators resolve against.
	BaseURL string `mapstructure:"base_url"`
	// ResultsPage is the index page listing result documents, relative to
	// BaseURL unless absolute.
	ResultsPage string `mapstructure:"results_page"`
}

// HTTPConfig configures HTTP client retry and pacing behavior.
type HTTPConfig struct {
	UserAgent      string `mapstructure:"user_agent"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
	MaxRetries     int    `mapstructure:"max_retries"`
	// RequestsPerSecond paces requests against the source site; zero
	// disables pacing.
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// DBConfig controls access to the relational database.
type DBConfig struct {
	DSN             string `mapstructure:"dsn"`
	MaxConns        int32  `mapstructure:"max_conns"`
	MinConns        int32  `mapstructure:"min_conns"`
	MaxConnLifetime int    `mapstructure:"max_conn_lifetime_seconds"`
}

// ImportConfig governs per-document pipeline behavior.
type ImportConfig struct {
	// MatchThreshold is the fraction of expected round robin matches a
	// document must contain to be accepted.
	MatchThreshold float64 `mapstructure:"match_threshold"`
	// DocTimeoutSeconds bounds one document's fetch-to-commit pipeline.
	DocTimeoutSeconds int `mapstructure:"doc_timeout_seconds"`
}

// SyncConfig governs catch-up run behavior.
type SyncConfig struct {
	Workers      int `mapstructure:"workers"`
	LookbackDays int `mapstructure:"lookback_days"`
}

// ArchiveConfig controls raw document archival.
type ArchiveConfig struct {
	// Provider selects the archive backend: "none", "local" or "gcs".
	Provider string `mapstructure:"provider"`
	// Dir is the base directory for the local provider.
	Dir string `mapstructure:"dir"`
	// Bucket is the GCS bucket for the gcs provider.
	Bucket string `mapstructure:"bucket"`
}

// OpsConfig controls the health/metrics HTTP server.
type OpsConfig struct {
	// Addr exposes /healthz, /readyz and /metrics while a run is in
	// flight when non-empty, e.g. ":9090".
	Addr string `mapstructure:"addr"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RRIMPORT")
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
	v.SetDefault("source.base_url", "https://www.berkeleytabletennis.org/results/")
	v.SetDefault("source.results_page", "results.html")
	v.SetDefault("http.user_agent", "rrimport/1.0")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("db.max_conns", 10)
	v.SetDefault("db.min_conns", 1)
	v.SetDefault("db.max_conn_lifetime_seconds", 1800)
	v.SetDefault("import.match_threshold", 0.5)
	v.SetDefault("import.doc_timeout_seconds", 120)
	v.SetDefault("sync.workers", 5)
	v.SetDefault("sync.lookback_days", 14)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("logging.development", false)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url must be set")
	}
	if c.Source.ResultsPage == "" {
		return fmt.Errorf("source.results_page must be set")
	}
	if c.DB.DSN == "" {
		return fmt.Errorf("db.dsn must be set")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Import.MatchThreshold <= 0 || c.Import.MatchThreshold > 1 {
		return fmt.Errorf("import.match_threshold must be in (0, 1]")
	}
	if c.Sync.Workers <= 0 {
		return fmt.Errorf("sync.workers must be > 0")
	}
	if c.Sync.LookbackDays <= 0 {
		return fmt.Errorf("sync.lookback_days must be > 0")
	}
	switch c.Archive.Provider {
	case "", "none":
	case "local":
		if c.Archive.Dir == "" {
			return fmt.Errorf("archive.dir must be set for the local provider")
		}
	case "gcs":
		if c.Archive.Bucket == "" {
			return fmt.Errorf("archive.bucket must be set for the gcs provider")
		}
	default:
		return fmt.Errorf("archive.provider %q is not one of none, local, gcs", c.Archive.Provider)
	}
	return nil
}

// HTTPTimeout converts the HTTP timeout config into a duration.
func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// DocTimeout converts the per-document budget into a duration.
func (c Config) DocTimeout() time.Duration {
	return time.Duration(c.Import.DocTimeoutSeconds) * time.Second
}

// ConnLifetime converts the pool lifetime config into a duration.
func (c Config) ConnLifetime() time.Duration {
	return time.Duration(c.DB.MaxConnLifetime) * time.Second
}
