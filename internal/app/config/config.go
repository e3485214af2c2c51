// Package config resolves the bridge configuration once at startup from an
// optional YAML file, environment overrides, and command-line flags (applied
// by the caller). The resolved Config is immutable for the process lifetime.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/tri2510/carla-vss-bridge/internal/adapters/sim"
	"github.com/tri2510/carla-vss-bridge/internal/adapters/vss"
)

const (
	DefaultSpeedPath = "Vehicle.Speed"
	DefaultRPMPath   = "Vehicle.Powertrain.CombustionEngine.Speed"
)

type Config struct {
	Carla    sim.Config    `yaml:"carla"`
	Kuksa    vss.Config    `yaml:"kuksa"`
	Vehicle  TargetConfig  `yaml:"vehicle"`
	Signals  SignalConfig  `yaml:"signals"`
	Mapping  MappingConfig `yaml:"mapping"`
	Bridge   BridgeConfig  `yaml:"bridge"`
	Metrics  MetricsConfig `yaml:"metrics"`
	LogLevel string        `yaml:"log_level"`
}

// TargetConfig selects the tracked vehicle. An explicit ID overrides the role.
type TargetConfig struct {
	ID   int    `yaml:"id"`
	Role string `yaml:"role" env:"CARLA_VEHICLE_ROLE"`
}

// SignalConfig names the published VSS paths.
type SignalConfig struct {
	SpeedPath string `yaml:"speed_path"`
	RPMPath   string `yaml:"rpm_path"`
}

// MappingConfig holds the linear speed→RPM mapping parameters.
type MappingConfig struct {
	MaxSpeedKMH float64 `yaml:"max_speed_kmh"`
	RPMIdle     float64 `yaml:"rpm_idle"`
	RPMMax      float64 `yaml:"rpm_max"`
}

type BridgeConfig struct {
	UpdateInterval time.Duration `yaml:"update_interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
}

type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Load reads the optional YAML file at path (empty path skips the file),
// applies environment overrides, fills defaults, and validates.
func Load(path string) (*Config, error) {
	var cfg Config

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, err
		}
	}

	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("env overrides: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ApplyDefaults() {
	c.Carla.ApplyDefaults()
	c.Kuksa.ApplyDefaults()

	if c.Vehicle.Role == "" {
		c.Vehicle.Role = "hero"
	}
	if c.Signals.SpeedPath == "" {
		c.Signals.SpeedPath = DefaultSpeedPath
	}
	if c.Signals.RPMPath == "" {
		c.Signals.RPMPath = DefaultRPMPath
	}
	if c.Mapping.MaxSpeedKMH == 0 {
		c.Mapping.MaxSpeedKMH = 160
	}
	if c.Mapping.RPMIdle == 0 {
		c.Mapping.RPMIdle = 800
	}
	if c.Mapping.RPMMax == 0 {
		c.Mapping.RPMMax = 5000
	}
	if c.Bridge.UpdateInterval <= 0 {
		c.Bridge.UpdateInterval = 100 * time.Millisecond
	}
	if c.Bridge.ReconnectDelay <= 0 {
		c.Bridge.ReconnectDelay = 2 * time.Second
	}
	if c.Metrics.Addr == "" {
		c.Metrics.Addr = ":9100"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

func (c *Config) Validate() error {
	if err := c.Carla.Validate(); err != nil {
		return fmt.Errorf("carla config: %w", err)
	}
	if err := c.Kuksa.Validate(); err != nil {
		return fmt.Errorf("kuksa config: %w", err)
	}
	if c.Vehicle.ID < 0 {
		return fmt.Errorf("vehicle.id must not be negative")
	}
	if c.Signals.SpeedPath == "" || c.Signals.RPMPath == "" {
		return fmt.Errorf("signal paths are required")
	}
	if c.Bridge.UpdateInterval <= 0 {
		return fmt.Errorf("bridge.update_interval must be positive")
	}
	return nil
}
