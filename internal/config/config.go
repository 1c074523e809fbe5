package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Providers struct {
		FinnhubKey        string `yaml:"finnhub_key"`
		TiingoKey         string `yaml:"tiingo_key"`
		AlphaVantageKey   string `yaml:"alphavantage_key"`
		RequestTimeoutSec int    `yaml:"request_timeout_sec"`
	} `yaml:"providers"`
	Cache struct {
		QuoteTTLSec      int `yaml:"quote_ttl_sec"`
		InfoTTLSec       int `yaml:"info_ttl_sec"`
		HistoricalTTLSec int `yaml:"historical_ttl_sec"`
	} `yaml:"cache"`
	Collector struct {
		IntervalSec int `yaml:"interval_sec"`
		CooldownSec int `yaml:"cooldown_sec"`
	} `yaml:"collector"`
	Schedule struct {
		BackfillCron   string `yaml:"backfill_cron"`
		BackfillPeriod string `yaml:"backfill_period"`
	} `yaml:"schedule"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("FINNHUB_API_KEY"); v != "" {
		cfg.Providers.FinnhubKey = v
	}
	if v := os.Getenv("TIINGO_API_KEY"); v != "" {
		cfg.Providers.TiingoKey = v
	}
	if v := os.Getenv("ALPHA_VANTAGE_API_KEY"); v != "" {
		cfg.Providers.AlphaVantageKey = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("COLLECT_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Collector.IntervalSec = n
		}
	}
	if v := os.Getenv("BACKFILL_CRON"); v != "" {
		cfg.Schedule.BackfillCron = v
	}

	// Defaults
	if cfg.Providers.RequestTimeoutSec == 0 {
		cfg.Providers.RequestTimeoutSec = 10
	}
	if cfg.Cache.QuoteTTLSec == 0 {
		cfg.Cache.QuoteTTLSec = 60
	}
	if cfg.Cache.InfoTTLSec == 0 {
		cfg.Cache.InfoTTLSec = 3600
	}
	if cfg.Cache.HistoricalTTLSec == 0 {
		cfg.Cache.HistoricalTTLSec = 300
	}
	if cfg.Collector.IntervalSec == 0 {
		cfg.Collector.IntervalSec = 3600
	}
	if cfg.Collector.CooldownSec == 0 {
		cfg.Collector.CooldownSec = 60
	}
	if cfg.Schedule.BackfillCron == "" {
		// Weekday mornings, after the previous session's bars settle.
		cfg.Schedule.BackfillCron = "0 30 5 * * 2-6"
	}
	if cfg.Schedule.BackfillPeriod == "" {
		cfg.Schedule.BackfillPeriod = "1mo"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/stockwatch.db"
	}

	return cfg, nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Database.SQLitePath == "" {
		return fmt.Errorf("database.sqlite_path is required")
	}
	if c.Collector.IntervalSec <= 0 {
		return fmt.Errorf("collector.interval_sec must be positive")
	}
	if c.Providers.RequestTimeoutSec <= 0 {
		return fmt.Errorf("providers.request_timeout_sec must be positive")
	}
	return nil
}
