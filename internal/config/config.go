package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Schedule struct {
		DistributionCron string `yaml:"distribution_cron"`
		SettlementCron   string `yaml:"settlement_cron"`
	} `yaml:"schedule"`
	Notifier struct {
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notifier"`
	Server struct {
		ListenAddr string `yaml:"listen_addr"`
		AdminToken string `yaml:"admin_token"`
	} `yaml:"server"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
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
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("CRON_DISTRIBUTION"); v != "" {
		cfg.Schedule.DistributionCron = v
	}
	if v := os.Getenv("CRON_SETTLEMENT"); v != "" {
		cfg.Schedule.SettlementCron = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Notifier.WebhookURL = v
	}
	if v := os.Getenv("LISTEN_ADDR"); v != "" {
		cfg.Server.ListenAddr = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}

	// Defaults
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/yield_sentinel.db"
	}
	if cfg.Schedule.DistributionCron == "" {
		cfg.Schedule.DistributionCron = "0 0 2 * * *"
	}
	if cfg.Schedule.SettlementCron == "" {
		cfg.Schedule.SettlementCron = "0 0 3 * * *"
	}
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = ":8080"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Server.AdminToken == "" {
		return fmt.Errorf("server.admin_token is required")
	}
	if c.Schedule.DistributionCron == "" {
		return fmt.Errorf("schedule.distribution_cron is required")
	}
	if c.Schedule.SettlementCron == "" {
		return fmt.Errorf("schedule.settlement_cron is required")
	}
	return nil
}
