// Package config loads application configuration from an optional YAML file
// with environment-variable overrides. Every field has a working default, so
// a fresh checkout runs with no config file at all.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	DataDir   string          `yaml:"data_dir"`
	ChartsDir string          `yaml:"charts_dir"`
	CredFile  string          `yaml:"credentials_file"`
	API       APIConfig       `yaml:"api"`
	Collector CollectorConfig `yaml:"collector"`
	Report    ReportConfig    `yaml:"report"`
}

// APIConfig tunes the remote API client. Delays are expressed in seconds
// because sub-second pauses are the normal case.
type APIConfig struct {
	BaseURL                string  `yaml:"base_url"`
	PerPage                int     `yaml:"per_page"`
	PageDelaySeconds       float64 `yaml:"page_delay_seconds"`
	KudosDelaySeconds      float64 `yaml:"kudos_delay_seconds"`
	RateLimitCooldownSecs  float64 `yaml:"rate_limit_cooldown_seconds"`
}

type CollectorConfig struct {
	KudosBatchSize int `yaml:"kudos_batch_size"`
}

type ReportConfig struct {
	Port int `yaml:"port"`
}

// Default returns the built-in configuration: the public API endpoint, the
// original collection delays (0.5 s between pages, 1.0 s between kudos
// fetches, 15 min rate-limit cooldown) and a ./data cache directory.
func Default() Config {
	return Config{
		DataDir:   "data",
		ChartsDir: "charts",
		CredFile:  ".env",
		API: APIConfig{
			BaseURL:               "https://www.strava.com/api/v3",
			PerPage:               50,
			PageDelaySeconds:      0.5,
			KudosDelaySeconds:     1.0,
			RateLimitCooldownSecs: 900,
		},
		Collector: CollectorConfig{
			KudosBatchSize: 20,
		},
		Report: ReportConfig{
			Port: 8090,
		},
	}
}

// Load reads the YAML file at path (missing file → defaults) and then
// applies environment overrides on top.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if cfg.API.PerPage <= 0 || cfg.API.PerPage > 200 {
		return cfg, fmt.Errorf("api.per_page must be in 1..200, got %d", cfg.API.PerPage)
	}
	if cfg.Collector.KudosBatchSize <= 0 {
		return cfg, fmt.Errorf("collector.kudos_batch_size must be positive, got %d", cfg.Collector.KudosBatchSize)
	}
	if cfg.API.PageDelaySeconds < 0 {
		return cfg, fmt.Errorf("api.page_delay_seconds must not be negative, got %g", cfg.API.PageDelaySeconds)
	}
	if cfg.API.KudosDelaySeconds < 0 {
		return cfg, fmt.Errorf("api.kudos_delay_seconds must not be negative, got %g", cfg.API.KudosDelaySeconds)
	}
	// A zero cooldown would turn the 429 retry loop into a hot loop
	// against the API.
	if cfg.API.RateLimitCooldownSecs <= 0 {
		return cfg, fmt.Errorf("api.rate_limit_cooldown_seconds must be positive, got %g", cfg.API.RateLimitCooldownSecs)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	overrideString("KUDOSCOPE_DATA_DIR", &cfg.DataDir)
	overrideString("KUDOSCOPE_CHARTS_DIR", &cfg.ChartsDir)
	overrideString("KUDOSCOPE_CRED_FILE", &cfg.CredFile)
	overrideString("KUDOSCOPE_API_BASE_URL", &cfg.API.BaseURL)
	overrideInt("KUDOSCOPE_PER_PAGE", &cfg.API.PerPage)
	overrideInt("KUDOSCOPE_KUDOS_BATCH_SIZE", &cfg.Collector.KudosBatchSize)
	overrideInt("KUDOSCOPE_REPORT_PORT", &cfg.Report.Port)
}

func overrideString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func overrideInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// Duration helpers — callers deal in time.Duration, the file deals in seconds.

func (a APIConfig) PageDelay() time.Duration {
	return time.Duration(a.PageDelaySeconds * float64(time.Second))
}

func (a APIConfig) KudosDelay() time.Duration {
	return time.Duration(a.KudosDelaySeconds * float64(time.Second))
}

func (a APIConfig) RateLimitCooldown() time.Duration {
	return time.Duration(a.RateLimitCooldownSecs * float64(time.Second))
}
