// Package config loads pipeline configuration from a YAML file with
// environment variable overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the top-level pipeline configuration.
type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Fetch    FetchConfig    `mapstructure:"fetch"`
	Export   ExportConfig   `mapstructure:"export"`
	Coverage CoverageConfig `mapstructure:"coverage"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	DSN string `mapstructure:"dsn"`
}

// FetchConfig holds upstream API settings.
type FetchConfig struct {
	GeckoBaseURL     string `mapstructure:"gecko_base_url"`
	CoingeckoBaseURL string `mapstructure:"coingecko_base_url"`
	CoingeckoAPIKey  string `mapstructure:"coingecko_api_key"`
	XBaseURL         string `mapstructure:"x_base_url"`
	XBearerToken     string `mapstructure:"x_bearer_token"`
}

// ExportConfig holds artifact generation settings.
type ExportConfig struct {
	OutputDir         string  `mapstructure:"output_dir"`
	OverridesFile     string  `mapstructure:"overrides_file"`
	WickCapMultiplier float64 `mapstructure:"wick_cap_multiplier"`
	AnomalySigma      float64 `mapstructure:"anomaly_sigma"`
}

// CoverageConfig holds validation thresholds.
type CoverageConfig struct {
	Skip1mAfterDays  int `mapstructure:"skip_1m_after_days"`
	Skip15mAfterDays int `mapstructure:"skip_15m_after_days"`
}

// MetricsConfig holds the Prometheus listener settings.
type MetricsConfig struct {
	ListenAddr string `mapstructure:"listen_addr"`
}

// Load reads the config file at path and applies TPL_-prefixed
// environment overrides (e.g. TPL_DATABASE_DSN).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	v.SetDefault("fetch.gecko_base_url", "https://api.geckoterminal.com/api/v2")
	v.SetDefault("fetch.coingecko_base_url", "https://api.coingecko.com/api/v3")
	v.SetDefault("fetch.x_base_url", "https://api.x.com/2")
	// Secrets are usually injected through the environment; registering
	// them gives AutomaticEnv a key to bind to.
	v.SetDefault("fetch.coingecko_api_key", "")
	v.SetDefault("fetch.x_bearer_token", "")
	v.SetDefault("database.dsn", "")
	v.SetDefault("export.output_dir", "static")
	v.SetDefault("export.wick_cap_multiplier", 2.0)
	v.SetDefault("export.anomaly_sigma", 5.0)
	v.SetDefault("coverage.skip_1m_after_days", 90)
	v.SetDefault("coverage.skip_15m_after_days", 365)
	v.SetDefault("metrics.listen_addr", "")

	v.SetEnvPrefix("TPL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	if c.Export.WickCapMultiplier < 1 {
		return fmt.Errorf("export.wick_cap_multiplier must be at least 1, got %g", c.Export.WickCapMultiplier)
	}
	if c.Export.AnomalySigma <= 0 {
		return fmt.Errorf("export.anomaly_sigma must be positive, got %g", c.Export.AnomalySigma)
	}
	return nil
}
