// Package config handles application configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all application configuration.
type Config struct {
	Addr     string `env:"STOCKDASH_ADDR" envDefault:":8080"`
	LogLevel string `env:"STOCKDASH_LOG_LEVEL" envDefault:"info"`

	// CacheDir defaults to <user cache dir>/stockdash when unset.
	CacheDir string `env:"STOCKDASH_CACHE_DIR"`

	// Per-operation cache TTLs. Financial statements change far more
	// slowly than prices, so each fetch gets its own freshness window.
	HistoryTTL    time.Duration `env:"STOCKDASH_HISTORY_TTL" envDefault:"1h"`
	ProfileTTL    time.Duration `env:"STOCKDASH_PROFILE_TTL" envDefault:"2h"`
	FinancialsTTL time.Duration `env:"STOCKDASH_FINANCIALS_TTL" envDefault:"24h"`

	ProviderURL string `env:"STOCKDASH_PROVIDER_URL"`
	AdminToken  string `env:"STOCKDASH_ADMIN_TOKEN"`

	RedisAddr     string   `env:"STOCKDASH_REDIS_ADDR" envDefault:"127.0.0.1:6379"`
	SweepSchedule string   `env:"STOCKDASH_SWEEP_SCHEDULE" envDefault:"@every 1h"`
	WarmSchedule  string   `env:"STOCKDASH_WARM_SCHEDULE" envDefault:"@every 30m"`
	Watchlist     []string `env:"STOCKDASH_WATCHLIST" envSeparator:"," envDefault:"AAPL,MSFT,GOOG"`

	DefaultSymbol string `env:"STOCKDASH_DEFAULT_SYMBOL" envDefault:"AAPL"`
	DefaultPeriod string `env:"STOCKDASH_DEFAULT_PERIOD" envDefault:"1y"`
}

// Load reads configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}

	if cfg.CacheDir == "" {
		base, err := os.UserCacheDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolve cache dir: %w", err)
		}
		cfg.CacheDir = filepath.Join(base, "stockdash")
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot express as struct tags.
func (c Config) Validate() error {
	if c.HistoryTTL <= 0 || c.ProfileTTL <= 0 || c.FinancialsTTL <= 0 {
		return fmt.Errorf("cache TTLs must be positive")
	}
	if len(c.Watchlist) == 0 {
		return fmt.Errorf("watchlist cannot be empty")
	}
	return nil
}

// LongestTTL returns the largest configured TTL. The periodic sweep uses
// it so no entry that is still fresh for some operation is reclaimed.
func (c Config) LongestTTL() time.Duration {
	longest := c.HistoryTTL
	if c.ProfileTTL > longest {
		longest = c.ProfileTTL
	}
	if c.FinancialsTTL > longest {
		longest = c.FinancialsTTL
	}
	return longest
}
