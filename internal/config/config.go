package config

import (
	"fmt"
	"time"
)

// Config is the full pricewatch configuration, loaded from YAML with
// ${VAR:default} environment expansion.
type Config struct {
	LogLevel string `yaml:"log_level"`

	Server ServerConfig `yaml:"server"`

	Catalog CatalogConfig `yaml:"catalog"`

	Search SearchConfig `yaml:"search"`

	Database DatabaseConfig `yaml:"database"`

	Redis RedisConfig `yaml:"redis"`

	Collector CollectorConfig `yaml:"collector"`

	Filters FiltersConfig `yaml:"filters"`

	Defaults DefaultsConfig `yaml:"defaults"`
}

// ServerConfig covers the ops HTTP listener (health and metrics).
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// CatalogConfig covers the upstream catalog API client.
type CatalogConfig struct {
	APIKey         string `yaml:"api_key"`
	Referer        string `yaml:"referer"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c CatalogConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SearchConfig covers the web-search backend. An empty API key disables
// search-backed resolution entirely.
type SearchConfig struct {
	BraveAPIKey    string `yaml:"brave_api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

func (c SearchConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// DatabaseConfig holds the two PostgreSQL connections. BackendDSN is
// optional; leaving it empty disables downstream staging.
type DatabaseConfig struct {
	PrimaryDSN string `yaml:"primary_dsn"`
	BackendDSN string `yaml:"backend_dsn"`
}

// RedisConfig covers the optional Redis used for search pacing and caching.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// CollectorConfig tunes the collection run itself.
type CollectorConfig struct {
	Concurrency                 int64    `yaml:"concurrency"`
	EnableProviderScraping      bool     `yaml:"enable_provider_scraping"`
	EnableSpotChecks            bool     `yaml:"enable_spot_checks"`
	PriceChangeThresholdPercent float64  `yaml:"price_change_threshold_percent"`
	IntervalHours               int      `yaml:"interval_hours"`
	RunOnStartup                bool     `yaml:"run_on_startup"`
	Blocklist                   []string `yaml:"blocklist"`
}

func (c CollectorConfig) Interval() time.Duration {
	return time.Duration(c.IntervalHours) * time.Hour
}

// FiltersConfig narrows the catalog model listing.
type FiltersConfig struct {
	SupportedParameters string `yaml:"supported_parameters"`
	InputModalities     string `yaml:"input_modalities"`
	OutputModalities    string `yaml:"output_modalities"`
	Distillable         *bool  `yaml:"distillable"`
}

// DefaultsConfig forces the downstream default model per category.
type DefaultsConfig struct {
	ChatModel      string `yaml:"chat_model"`
	EmbeddingModel string `yaml:"embedding_model"`
}

// ForcedDefaults returns the category -> slug map for the staging reducer.
func (d DefaultsConfig) ForcedDefaults() map[string]string {
	out := make(map[string]string)
	if d.ChatModel != "" {
		out["chat"] = d.ChatModel
	}
	if d.EmbeddingModel != "" {
		out["embedding"] = d.EmbeddingModel
	}
	return out
}

// DefaultConfig returns a Config with sane defaults applied.
func DefaultConfig() *Config {
	return &Config{
		LogLevel: "info",
		Server:   ServerConfig{Addr: ":9090"},
		Catalog:  CatalogConfig{TimeoutSeconds: 30},
		Search:   SearchConfig{TimeoutSeconds: 15},
		Collector: CollectorConfig{
			Concurrency:                 4,
			PriceChangeThresholdPercent: 30,
			IntervalHours:               24,
			RunOnStartup:                true,
		},
	}
}

// Validate checks required fields and normalizes out-of-range values.
func (c *Config) Validate() error {
	if c.Catalog.APIKey == "" {
		return fmt.Errorf("catalog.api_key is required")
	}
	if c.Database.PrimaryDSN == "" {
		return fmt.Errorf("database.primary_dsn is required")
	}
	if c.Collector.Concurrency < 1 {
		c.Collector.Concurrency = 1
	}
	if c.Collector.PriceChangeThresholdPercent <= 0 {
		c.Collector.PriceChangeThresholdPercent = 30
	}
	if c.Collector.IntervalHours < 1 {
		c.Collector.IntervalHours = 24
	}
	if c.Catalog.TimeoutSeconds <= 0 {
		c.Catalog.TimeoutSeconds = 30
	}
	if c.Search.TimeoutSeconds <= 0 {
		c.Search.TimeoutSeconds = 15
	}
	return nil
}
