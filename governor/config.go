package governor

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jonwraymond/toolgate/cache"
	"github.com/jonwraymond/toolgate/observe"
	"github.com/jonwraymond/toolgate/resilience"
)

// Config holds all governor configuration.
type Config struct {
	L1Size               int     `yaml:"l1_size"`
	L2SizeMB             int     `yaml:"l2_size_mb"`
	L2Path               string  `yaml:"l2_path"` // empty keeps the cache in memory
	InitialRPS           float64 `yaml:"initial_rps"`
	MinRPS               float64 `yaml:"min_rps"`
	MaxRPS               float64 `yaml:"max_rps"`
	HealthCheckIntervalS float64 `yaml:"health_check_interval_s"`
	DefaultTimeoutS      float64 `yaml:"default_timeout_s"`
	MaxInFlight          int64   `yaml:"max_in_flight"`
	DiskPath             string  `yaml:"disk_path"` // filesystem sampled for disk usage
	LogLevel             string  `yaml:"log_level"`

	Observe observe.Config `yaml:"observe"`
}

// DefaultConfig returns a Config with the standard defaults.
func DefaultConfig() Config {
	return Config{
		L1Size:               cache.DefaultL1Size,
		L2SizeMB:             cache.DefaultL2MaxBytes / (1024 * 1024),
		InitialRPS:           resilience.DefaultInitialRPS,
		MinRPS:               resilience.DefaultMinRPS,
		MaxRPS:               resilience.DefaultMaxRPS,
		HealthCheckIntervalS: resilience.DefaultAdjustmentInterval.Seconds(),
		DefaultTimeoutS:      resilience.DefaultTimeout.Seconds(),
		MaxInFlight:          resilience.DefaultMaxInFlight,
		LogLevel:             "info",
	}
}

// LoadConfig reads a YAML config file and expands environment variables.
// Keys absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects out-of-range or inconsistent values.
func (c *Config) Validate() error {
	switch {
	case c.L1Size <= 0:
		return fmt.Errorf("%w: l1_size must be positive, got %d", ErrInvalidConfig, c.L1Size)
	case c.L2SizeMB < 0:
		return fmt.Errorf("%w: l2_size_mb must not be negative, got %d", ErrInvalidConfig, c.L2SizeMB)
	case c.MinRPS <= 0:
		return fmt.Errorf("%w: min_rps must be positive, got %v", ErrInvalidConfig, c.MinRPS)
	case c.MaxRPS < c.MinRPS:
		return fmt.Errorf("%w: max_rps %v is below min_rps %v", ErrInvalidConfig, c.MaxRPS, c.MinRPS)
	case c.InitialRPS < c.MinRPS || c.InitialRPS > c.MaxRPS:
		return fmt.Errorf("%w: initial_rps %v outside [%v, %v]", ErrInvalidConfig, c.InitialRPS, c.MinRPS, c.MaxRPS)
	case c.HealthCheckIntervalS <= 0:
		return fmt.Errorf("%w: health_check_interval_s must be positive, got %v", ErrInvalidConfig, c.HealthCheckIntervalS)
	case c.DefaultTimeoutS <= 0:
		return fmt.Errorf("%w: default_timeout_s must be positive, got %v", ErrInvalidConfig, c.DefaultTimeoutS)
	case c.MaxInFlight <= 0:
		return fmt.Errorf("%w: max_in_flight must be positive, got %d", ErrInvalidConfig, c.MaxInFlight)
	case !slices.Contains(observe.ValidLogLevels, c.LogLevel):
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	}

	if c.Observe.ServiceName != "" {
		if err := c.Observe.Validate(); err != nil {
			return fmt.Errorf("%w: observe: %w", ErrInvalidConfig, err)
		}
	}
	return nil
}

// L2MaxBytes returns the warm tier byte cap.
func (c *Config) L2MaxBytes() int64 {
	if c.L2SizeMB <= 0 {
		return cache.DefaultL2MaxBytes
	}
	return int64(c.L2SizeMB) * 1024 * 1024
}

// HealthCheckInterval returns the sampling and adjustment interval.
func (c *Config) HealthCheckInterval() time.Duration {
	return time.Duration(c.HealthCheckIntervalS * float64(time.Second))
}

// DefaultTimeout returns the timeout applied when a call gives none.
func (c *Config) DefaultTimeout() time.Duration {
	return time.Duration(c.DefaultTimeoutS * float64(time.Second))
}

// SampledDiskPath returns the filesystem whose usage is sampled: DiskPath,
// else the warm tier directory, else "/".
func (c *Config) SampledDiskPath() string {
	switch {
	case c.DiskPath != "":
		return c.DiskPath
	case c.L2Path != "":
		return filepath.Dir(c.L2Path)
	default:
		return "/"
	}
}
