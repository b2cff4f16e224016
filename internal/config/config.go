// Package config loads the tempo configuration file.
package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aretw0/tempo/internal/logging"
	"github.com/aretw0/tempo/pkg/domain"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "tempo.yaml"

// Config is the root of tempo.yaml.
type Config struct {
	SpeedMS   int           `yaml:"speed_ms" json:"speed_ms"`
	Window    int           `yaml:"window" json:"window"`
	LogLevel  string        `yaml:"log_level" json:"log_level"`
	HTTP      HTTPConfig    `yaml:"http" json:"http"`
	Metrics   MetricsConfig `yaml:"metrics" json:"metrics"`
	Redis     RedisConfig   `yaml:"redis" json:"redis"`
	Scenarios ScenarioDir   `yaml:"scenarios" json:"scenarios"`
}

// HTTPConfig configures `tempo serve`.
type HTTPConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// MetricsConfig toggles the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
}

// RedisConfig enables snapshot fan-out and session locking when Addr is set.
type RedisConfig struct {
	Addr   string        `yaml:"addr" json:"addr"`
	Prefix string        `yaml:"prefix" json:"prefix"`
	TTL    time.Duration `yaml:"ttl" json:"ttl"`
}

// ScenarioDir points at a directory of scenario presets.
type ScenarioDir struct {
	Dir string `yaml:"dir" json:"dir"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		SpeedMS:  domain.DefaultSpeed,
		Window:   16,
		LogLevel: "info",
		HTTP:     HTTPConfig{Addr: ":8080"},
		Redis:    RedisConfig{Prefix: "tempo:", TTL: time.Hour},
	}
}

// Load reads a YAML (or .json) file over the defaults.
// A missing file yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate normalizes ranges and rejects values that cannot be used.
func (c *Config) Validate() error {
	c.SpeedMS = domain.ClampSpeed(c.SpeedMS)
	if c.Window <= 0 {
		return fmt.Errorf("config: window must be positive, got %d", c.Window)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Redis.TTL < 0 {
		return fmt.Errorf("config: redis.ttl must not be negative")
	}
	return nil
}
