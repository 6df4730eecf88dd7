// Package config loads macro-cli configuration and initialises logging.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	BLS        BLSConfig        `yaml:"bls" mapstructure:"bls"`
	Macro      MacroConfig      `yaml:"macro" mapstructure:"macro"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// BLSConfig configures the BLS API client and flat-file downloads.
type BLSConfig struct {
	APIKey            string  `yaml:"api_key" mapstructure:"api_key"`
	BaseURL           string  `yaml:"base_url" mapstructure:"base_url"`
	DownloadURL       string  `yaml:"download_url" mapstructure:"download_url"`
	UserAgent         string  `yaml:"user_agent" mapstructure:"user_agent"`
	RequestsPerSecond float64 `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int     `yaml:"burst" mapstructure:"burst"`
	BatchSize         int     `yaml:"batch_size" mapstructure:"batch_size"`
	StartYear         int     `yaml:"start_year" mapstructure:"start_year"` // 0 = end_year - 19
	EndYear           int     `yaml:"end_year" mapstructure:"end_year"`     // 0 = current year
	TimeoutSecs       int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries        int     `yaml:"max_retries" mapstructure:"max_retries"`
	FailureThreshold  int     `yaml:"failure_threshold" mapstructure:"failure_threshold"`
	ResetTimeoutSecs  int     `yaml:"reset_timeout_secs" mapstructure:"reset_timeout_secs"`
}

// Years resolves the extraction year range against now.
func (b BLSConfig) Years(now time.Time) (start, end int) {
	end = b.EndYear
	if end == 0 {
		end = now.Year()
	}
	start = b.StartYear
	if start == 0 {
		start = end - 19
	}
	return start, end
}

// MacroConfig configures the pipeline layers.
type MacroConfig struct {
	Universe          string   `yaml:"universe" mapstructure:"universe"`
	Concurrency       int      `yaml:"concurrency" mapstructure:"concurrency"`
	MinPeriods        int      `yaml:"min_periods" mapstructure:"min_periods"`
	CorrelationWindow int      `yaml:"correlation_window" mapstructure:"correlation_window"`
	CorrelationSeries []string `yaml:"correlation_series" mapstructure:"correlation_series"`
	MaxCandidates     uint64   `yaml:"max_candidates" mapstructure:"max_candidates"`
	MetricsTextfile   string   `yaml:"metrics_textfile" mapstructure:"metrics_textfile"`
	Schedule          string   `yaml:"schedule" mapstructure:"schedule"`
}

// MonitoringConfig configures run-health alerts.
type MonitoringConfig struct {
	WebhookURL      string `yaml:"webhook_url" mapstructure:"webhook_url"`
	LookbackHours   int    `yaml:"lookback_hours" mapstructure:"lookback_hours"`
	StaleAfterHours int    `yaml:"stale_after_hours" mapstructure:"stale_after_hours"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("MACRO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("bls.api_key", "")
	v.SetDefault("bls.base_url", "https://api.bls.gov/publicAPI/v2")
	v.SetDefault("bls.download_url", "https://download.bls.gov/pub/time.series")
	v.SetDefault("bls.user_agent", "macro-cli/1.0")
	v.SetDefault("bls.requests_per_second", 0.5)
	v.SetDefault("bls.burst", 1)
	v.SetDefault("bls.batch_size", 50)
	v.SetDefault("bls.start_year", 0)
	v.SetDefault("bls.end_year", 0)
	v.SetDefault("bls.timeout_secs", 60)
	v.SetDefault("bls.max_retries", 3)
	v.SetDefault("bls.failure_threshold", 5)
	v.SetDefault("bls.reset_timeout_secs", 60)
	v.SetDefault("macro.universe", "universes.yaml")
	v.SetDefault("macro.concurrency", 4)
	v.SetDefault("macro.min_periods", 12)
	v.SetDefault("macro.correlation_window", 0)
	v.SetDefault("macro.correlation_series", []string{})
	v.SetDefault("macro.max_candidates", 0)
	v.SetDefault("macro.metrics_textfile", "")
	v.SetDefault("macro.schedule", "")
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.lookback_hours", 24)
	v.SetDefault("monitoring.stale_after_hours", 48)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes: "store"
// (database only), "discover" and "extract" (database and BLS), "metrics"
// (database and correlation settings), "run" (everything).
func (c *Config) Validate(mode string) error {
	var errs []string
	need := func(store, bls, metrics bool) {
		if store {
			errs = append(errs, c.validateStore()...)
		}
		if bls {
			errs = append(errs, c.validateBLS()...)
		}
		if metrics {
			errs = append(errs, c.validateMetrics()...)
		}
	}

	switch mode {
	case "store":
		need(true, false, false)
	case "discover", "extract":
		need(true, true, false)
	case "metrics":
		need(true, false, true)
	case "run":
		need(true, true, true)
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}
	if c.Macro.Concurrency < 1 || c.Macro.Concurrency > 64 {
		errs = append(errs, "macro.concurrency must be between 1 and 64")
	}
	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) validateStore() []string {
	var errs []string
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("store.driver %q must be postgres or sqlite", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}
	return errs
}

func (c *Config) validateBLS() []string {
	var errs []string
	if c.BLS.BaseURL == "" {
		errs = append(errs, "bls.base_url is required")
	}
	if c.BLS.BatchSize < 1 || c.BLS.BatchSize > 50 {
		errs = append(errs, "bls.batch_size must be between 1 and 50")
	}
	if c.BLS.RequestsPerSecond <= 0 {
		errs = append(errs, "bls.requests_per_second must be > 0")
	}
	if c.BLS.StartYear > 0 && c.BLS.EndYear > 0 && c.BLS.StartYear > c.BLS.EndYear {
		errs = append(errs, "bls.start_year must not be after bls.end_year")
	}
	return errs
}

func (c *Config) validateMetrics() []string {
	var errs []string
	if c.Macro.MinPeriods < 2 {
		errs = append(errs, "macro.min_periods must be >= 2")
	}
	if c.Macro.CorrelationWindow < 0 {
		errs = append(errs, "macro.correlation_window must be >= 0")
	}
	if c.Macro.CorrelationWindow > 0 && c.Macro.CorrelationWindow < c.Macro.MinPeriods {
		errs = append(errs, "macro.correlation_window must be 0 or >= macro.min_periods")
	}
	return errs
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
