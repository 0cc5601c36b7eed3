// Package config handles configuration loading and management for both
// the host and device endpoint processes.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Default config file search paths, tried in order when no explicit path
// is given.
var configPaths = []string{
	"./config.yaml",
	"./config.yml",
	"./memori.yaml",
	"./memori.yml",
	"~/.config/memori/config.yaml",
	"/etc/memori/config.yaml",
}

// LinkKind selects which transport an endpoint drives.
type LinkKind string

const (
	LinkStream LinkKind = "stream"
	LinkBLE    LinkKind = "ble"
)

// LoggingConfig controls the process-wide logger.
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	Output string `yaml:"output"`
}

// MetricsConfig controls the optional Prometheus endpoint.
type MetricsConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Address  string        `yaml:"address"`
	Endpoint string        `yaml:"endpoint"`
	Interval time.Duration `yaml:"interval"`
}

// HostConfig is the host companion process's configuration.
type HostConfig struct {
	Link           LinkKind      `yaml:"link" validate:"required,oneof=stream ble"`
	StreamAddress  string        `yaml:"stream_address"`
	RequestTimeout time.Duration `yaml:"request_timeout" validate:"required"`
	DeviceGrace    time.Duration `yaml:"device_grace"`
	Logging        LoggingConfig `yaml:"logging"`
	Metrics        MetricsConfig `yaml:"metrics"`
}

// DeviceConfig is the embedded/simulated device process's configuration.
type DeviceConfig struct {
	Link            LinkKind      `yaml:"link" validate:"required,oneof=stream ble"`
	StreamAddress   string        `yaml:"stream_address"`
	RequestTimeout  time.Duration `yaml:"request_timeout" validate:"required"`
	DeviceGrace     time.Duration `yaml:"device_grace"`
	MaxRefreshTasks int           `yaml:"max_refresh_tasks" validate:"required,min=1"`
	DarkMode        bool          `yaml:"dark_mode"`
	Logging         LoggingConfig `yaml:"logging"`
	Metrics         MetricsConfig `yaml:"metrics"`
}

// DefaultHostConfig returns the host's defaults.
func DefaultHostConfig() *HostConfig {
	return &HostConfig{
		Link:           LinkStream,
		StreamAddress:  "127.0.0.1:6942",
		RequestTimeout: 5 * time.Second,
		DeviceGrace:    2 * time.Second,
		Logging:        LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Metrics:        MetricsConfig{Enabled: false, Address: ":9090", Endpoint: "/metrics", Interval: 10 * time.Second},
	}
}

// DefaultDeviceConfig returns the device's defaults.
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		Link:            LinkStream,
		StreamAddress:   "127.0.0.1:6942",
		RequestTimeout:  5 * time.Second,
		DeviceGrace:     2 * time.Second,
		MaxRefreshTasks: 8,
		DarkMode:        false,
		Logging:         LoggingConfig{Level: "info", Format: "text", Output: "stdout"},
		Metrics:         MetricsConfig{Enabled: false, Address: ":9091", Endpoint: "/metrics", Interval: 10 * time.Second},
	}
}

// LoadHost loads the host configuration from path, or the default search
// paths when path is empty, falling back to DefaultHostConfig.
func LoadHost(path string) (*HostConfig, error) {
	cfg := DefaultHostConfig()
	found, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if found == "" {
		return cfg, nil
	}
	if err := loadFile(found, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDevice loads the device configuration from path, or the default
// search paths when path is empty, falling back to DefaultDeviceConfig.
func LoadDevice(path string) (*DeviceConfig, error) {
	cfg := DefaultDeviceConfig()
	found, err := resolvePath(path)
	if err != nil {
		return nil, err
	}
	if found == "" {
		return cfg, nil
	}
	if err := loadFile(found, cfg); err != nil {
		return nil, err
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func resolvePath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	for _, p := range configPaths {
		if len(p) > 0 && p[0] == '~' {
			home, err := os.UserHomeDir()
			if err == nil {
				p = filepath.Join(home, p[2:])
			}
		}
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}
	return "", nil
}

func loadFile(path string, into any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, into); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

// Validate runs struct tag validation against cfg.
func Validate(cfg any) error {
	return validator.New().Struct(cfg)
}

// Save writes cfg to path as YAML, creating parent directories as needed.
func Save(path string, cfg any) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}
