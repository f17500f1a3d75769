// Package config loads the YAML configuration. Durations are Go duration
// strings ("30s", "1m"). Unknown keys are rejected so typos surface at
// startup instead of silently falling back to defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"visitbot/internal/logging"
)

type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Logging   logging.Config  `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Gateway   GatewayConfig   `yaml:"gateway"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Notify    NotifyConfig    `yaml:"notify"`
}

type TelegramConfig struct {
	Token       string   `yaml:"token"`
	PollTimeout Duration `yaml:"poll_timeout"`
}

type StorageConfig struct {
	Path        string   `yaml:"path"`
	BusyTimeout Duration `yaml:"busy_timeout"`
}

type GatewayConfig struct {
	BaseURL    string   `yaml:"base_url"`
	Timeout    Duration `yaml:"timeout"`
	RatePerSec int      `yaml:"rate_per_sec"`
	// Tokens maps account id to a pre-provisioned access token.
	Tokens map[int64]string `yaml:"tokens"`
}

type SchedulerConfig struct {
	Workers         int      `yaml:"workers"`
	QueueSize       int      `yaml:"queue_size"`
	PeriodBase      Duration `yaml:"period_base"`
	PeriodJitter    Duration `yaml:"period_jitter"`
	MaxInitialDelay Duration `yaml:"max_initial_delay"`
	SweepEvery      Duration `yaml:"sweep_every"`
	MaxPerAccount   int      `yaml:"max_per_account"`
}

type NotifyConfig struct {
	RatePerSec int `yaml:"rate_per_sec"`
}

// Duration is a yaml-friendly time.Duration ("30s", "1m30s").
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	if strings.TrimSpace(raw) == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) Std() time.Duration { return time.Duration(d) }

// Load reads and validates the config file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	dec := yaml.NewDecoder(strings.NewReader(string(b)))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.Telegram.Token) == "" {
		return errors.New("telegram.token is required")
	}
	if strings.TrimSpace(c.Storage.Path) == "" {
		return errors.New("storage.path is required")
	}
	if strings.TrimSpace(c.Gateway.BaseURL) == "" {
		return errors.New("gateway.base_url is required")
	}
	return nil
}
