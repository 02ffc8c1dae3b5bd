package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Provider struct {
		URL       string `yaml:"url"`
		APIKey    string `yaml:"api_key"`
		TimeoutMs int    `yaml:"timeout_ms"`
		Commodity string `yaml:"commodity"`
		Unit      string `yaml:"unit"`
	} `yaml:"provider"`
	Cache struct {
		FreshnessHours int `yaml:"freshness_hours"`
	} `yaml:"cache"`
	Store struct {
		Backend          string `yaml:"backend"` // memory, sqlite, firestore
		SQLitePath       string `yaml:"sqlite_path"`
		FirestoreProject string `yaml:"firestore_project"`
	} `yaml:"store"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"` // empty disables the warm refresh
	} `yaml:"schedule"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	// Environment variable overrides
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("FORECAST_URL"); v != "" {
		cfg.Provider.URL = v
	}
	if v := os.Getenv("FORECAST_API_KEY"); v != "" {
		cfg.Provider.APIKey = v
	}
	if v := os.Getenv("FORECAST_TIMEOUT_MS"); v != "" {
		var ms int
		if _, err := fmt.Sscanf(v, "%d", &ms); err == nil && ms > 0 {
			cfg.Provider.TimeoutMs = ms
		}
	}
	if v := os.Getenv("COMMODITY"); v != "" {
		cfg.Provider.Commodity = v
	}
	if v := os.Getenv("CACHE_FRESHNESS_HOURS"); v != "" {
		var h int
		if _, err := fmt.Sscanf(v, "%d", &h); err == nil && h > 0 {
			cfg.Cache.FreshnessHours = h
		}
	}
	if v := os.Getenv("STORE_BACKEND"); v != "" {
		cfg.Store.Backend = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Store.SQLitePath = v
	}
	if v := os.Getenv("FIRESTORE_PROJECT_ID"); v != "" {
		cfg.Store.FirestoreProject = v
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		cfg.Schedule.RefreshCron = v
	}

	// Defaults
	if cfg.Server.Port == "" {
		cfg.Server.Port = "8080"
	}
	if cfg.Provider.TimeoutMs == 0 {
		cfg.Provider.TimeoutMs = 12000
	}
	if cfg.Provider.Commodity == "" {
		cfg.Provider.Commodity = "copra"
	}
	if cfg.Provider.Unit == "" {
		cfg.Provider.Unit = "kg"
	}
	if cfg.Cache.FreshnessHours == 0 {
		cfg.Cache.FreshnessHours = 24
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "memory"
	}
	if cfg.Store.SQLitePath == "" {
		cfg.Store.SQLitePath = "agripulse.db"
	}

	return cfg, nil
}

// ProviderTimeout returns the bounded external-call timeout.
func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.Provider.TimeoutMs) * time.Millisecond
}

// FreshnessWindow returns the cache window after which a snapshot is stale.
func (c *Config) FreshnessWindow() time.Duration {
	return time.Duration(c.Cache.FreshnessHours) * time.Hour
}
