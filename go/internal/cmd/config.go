package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration, loaded from config.yaml with
// environment overrides applied on top.
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Judge struct {
		BaseURL           string `yaml:"base_url"`
		Model             string `yaml:"model"`
		TimeoutSec        int    `yaml:"timeout_sec"`
		RequireAllCorrect *bool  `yaml:"require_all_correct"`
	} `yaml:"judge"`

	NATS struct {
		URL string `yaml:"url"`
	} `yaml:"nats"`

	Stats struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"stats"`

	GracePeriodSec int `yaml:"grace_period_sec"`
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.Server.Port = "8080"
	cfg.Judge.BaseURL = "https://generativelanguage.googleapis.com"
	cfg.Judge.Model = "gemini-2.5-flash"
	cfg.Judge.TimeoutSec = 8
	cfg.Stats.Enabled = true
	cfg.GracePeriodSec = 30
	return cfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the yaml file when present and applies env overrides. A
// missing file is not an error; defaults carry the process.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg.Server.Port = getEnv("PORT", cfg.Server.Port)
	cfg.Judge.BaseURL = getEnv("JUDGE_BASE_URL", cfg.Judge.BaseURL)
	cfg.Judge.Model = getEnv("JUDGE_MODEL", cfg.Judge.Model)
	cfg.NATS.URL = getEnv("NATS_URL", cfg.NATS.URL)
	cfg.GracePeriodSec = getEnvAsInt("GRACE_PERIOD_SEC", cfg.GracePeriodSec)
	return cfg, nil
}

// RequireAllCorrect resolves the acceptance rule, defaulting to strict.
func (c *Config) RequireAllCorrect() bool {
	if c.Judge.RequireAllCorrect == nil {
		return true
	}
	return *c.Judge.RequireAllCorrect
}

// GracePeriod returns the grace period as a duration.
func (c *Config) GracePeriod() time.Duration {
	return time.Duration(c.GracePeriodSec) * time.Second
}
