// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Firecrawl FirecrawlConfig `mapstructure:"firecrawl"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Store     StoreConfig     `mapstructure:"store"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Analyzer  AnalyzerConfig  `mapstructure:"analyzer"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles for the dashboard surface.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// FirecrawlConfig holds credentials and limits for the scraping API.
type FirecrawlConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// OpenAIConfig holds credentials and model selection for the text API.
type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	Model          string `mapstructure:"model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// StoreConfig sets the path of the local SQLite cache.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// ScraperConfig governs review collection behavior.
type ScraperConfig struct {
	MaxPagesDefault   int     `mapstructure:"max_pages_default"`
	MaxPagesLimit     int     `mapstructure:"max_pages_limit"`
	FallbackDirect    bool    `mapstructure:"fallback_direct"`
	UserAgent         string  `mapstructure:"user_agent"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
	Burst             int     `mapstructure:"burst"`
}

// AnalyzerConfig bounds prompt sizes for the analysis engine.
type AnalyzerConfig struct {
	MaxBatchChars int `mapstructure:"max_batch_chars"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("ECOMINTEL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets carry no defaults, so AutomaticEnv alone will not surface
	// them through Unmarshal; bind them explicitly.
	for _, key := range []string{"firecrawl.api_key", "openai.api_key", "auth.enabled", "auth.api_key"} {
		if err := v.BindEnv(key); err != nil {
			return Config{}, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

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
	v.SetDefault("server.port", 8080)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("firecrawl.timeout_seconds", 30)
	v.SetDefault("openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.timeout_seconds", 60)
	v.SetDefault("store.path", "ecomintel.db")
	v.SetDefault("scraper.max_pages_default", 5)
	v.SetDefault("scraper.max_pages_limit", 10)
	v.SetDefault("scraper.fallback_direct", true)
	v.SetDefault("scraper.user_agent", "ecom-intel-bot/0.1")
	v.SetDefault("scraper.requests_per_second", 1.0)
	v.SetDefault("scraper.burst", 2)
	v.SetDefault("analyzer.max_batch_chars", 24000)
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required credentials and reasonable limits. Missing API
// keys are configuration errors: the pipeline must never start without them.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Firecrawl.APIKey == "" {
		return fmt.Errorf("firecrawl.api_key is required")
	}
	if c.OpenAI.APIKey == "" {
		return fmt.Errorf("openai.api_key is required")
	}
	if c.Store.Path == "" {
		return fmt.Errorf("store.path must not be empty")
	}
	if c.Scraper.MaxPagesDefault <= 0 {
		return fmt.Errorf("scraper.max_pages_default must be > 0")
	}
	if c.Scraper.MaxPagesLimit < c.Scraper.MaxPagesDefault {
		return fmt.Errorf("scraper.max_pages_limit must be >= scraper.max_pages_default")
	}
	if c.Analyzer.MaxBatchChars <= 0 {
		return fmt.Errorf("analyzer.max_batch_chars must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	return nil
}

// FirecrawlTimeout converts the configured timeout into a duration.
func (c Config) FirecrawlTimeout() time.Duration {
	return time.Duration(c.Firecrawl.TimeoutSeconds) * time.Second
}

// OpenAITimeout converts the configured timeout into a duration.
func (c Config) OpenAITimeout() time.Duration {
	return time.Duration(c.OpenAI.TimeoutSeconds) * time.Second
}
