// Package config provides configuration loading for Grove.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete Grove configuration.
type Config struct {
	Storage Storage `yaml:"storage"`
	Dates   Dates   `yaml:"dates"`
	Limits  Limits  `yaml:"limits"`
	Sync    Sync    `yaml:"sync"`
	Log     Log     `yaml:"log"`
}

// Storage configures the local store.
type Storage struct {
	// DataDir is the directory holding the BoltDB file.
	DataDir string `yaml:"data_dir"`
}

// Dates configures logical-date normalization.
type Dates struct {
	// GracePeriod shifts the day boundary so completions shortly after
	// midnight count toward the previous day.
	GracePeriod time.Duration `yaml:"grace_period"`
	// Timezone is an IANA zone name; empty means the system local zone.
	Timezone string `yaml:"timezone"`
}

// Limits configures per-user caps.
type Limits struct {
	MaxHabits          int `yaml:"max_habits"`
	RewardedAdDailyCap int `yaml:"rewarded_ad_daily_cap"`
}

// Sync configures the outbox worker and the remote endpoint.
type Sync struct {
	// RemoteURL is the base URL of the backend. Empty disables syncing and
	// Grove runs local-only.
	RemoteURL      string        `yaml:"remote_url"`
	MaxRetries     int           `yaml:"max_retries"`
	QueueCapacity  int           `yaml:"queue_capacity"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	DrainInterval  time.Duration `yaml:"drain_interval"`
	Retention      time.Duration `yaml:"retention"`
}

// Log configures logging output.
type Log struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config with working defaults.
func Default() *Config {
	return &Config{
		Storage: Storage{
			DataDir: defaultDataDir(),
		},
		Dates: Dates{
			GracePeriod: 3 * time.Hour,
		},
		Limits: Limits{
			MaxHabits:          20,
			RewardedAdDailyCap: 3,
		},
		Sync: Sync{
			MaxRetries:     5,
			QueueCapacity:  1000,
			RequestTimeout: 10 * time.Second,
			DrainInterval:  30 * time.Second,
			Retention:      7 * 24 * time.Hour,
		},
		Log: Log{
			Level: "info",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".grove"
	}
	return filepath.Join(home, ".grove")
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	if c.Storage.DataDir == "" {
		return fmt.Errorf("storage.data_dir is required")
	}
	if c.Dates.GracePeriod < 0 || c.Dates.GracePeriod >= 24*time.Hour {
		return fmt.Errorf("dates.grace_period must be in [0, 24h)")
	}
	if c.Dates.Timezone != "" {
		if _, err := time.LoadLocation(c.Dates.Timezone); err != nil {
			return fmt.Errorf("dates.timezone: %w", err)
		}
	}
	if c.Limits.MaxHabits <= 0 {
		return fmt.Errorf("limits.max_habits must be positive")
	}
	if c.Sync.MaxRetries <= 0 {
		return fmt.Errorf("sync.max_retries must be positive")
	}
	return nil
}

// Location resolves the configured timezone.
func (c *Config) Location() (*time.Location, error) {
	if c.Dates.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Dates.Timezone)
}

// LoadFromFile loads configuration from a YAML file over the defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return config, nil
}

// Load returns the configuration from path, or the defaults when path is
// empty or the file does not exist.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return Default(), nil
	}
	return LoadFromFile(path)
}

// SaveToFile writes the configuration as YAML.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
