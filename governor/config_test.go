package governor

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "toolgate.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() error = %v", err)
	}
	if cfg.L1Size != 1000 {
		t.Errorf("L1Size = %d, want 1000", cfg.L1Size)
	}
	if cfg.L2SizeMB != 10 {
		t.Errorf("L2SizeMB = %d, want 10", cfg.L2SizeMB)
	}
	if cfg.InitialRPS != 100 || cfg.MinRPS != 10 || cfg.MaxRPS != 1000 {
		t.Errorf("rps = %v/%v/%v, want 100/10/1000", cfg.InitialRPS, cfg.MinRPS, cfg.MaxRPS)
	}
	if got := cfg.HealthCheckInterval(); got != 5*time.Second {
		t.Errorf("HealthCheckInterval() = %v, want 5s", got)
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("TOOLGATE_L2_DIR", "/var/cache/toolgate")
	path := writeConfig(t, `
l1_size: 50
l2_path: ${TOOLGATE_L2_DIR}/l2.jsonl
max_rps: 500
health_check_interval_s: 0.5
log_level: debug
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	if cfg.L1Size != 50 {
		t.Errorf("L1Size = %d, want 50", cfg.L1Size)
	}
	if cfg.L2Path != "/var/cache/toolgate/l2.jsonl" {
		t.Errorf("L2Path = %q, want expanded path", cfg.L2Path)
	}
	if cfg.MaxRPS != 500 {
		t.Errorf("MaxRPS = %v, want 500", cfg.MaxRPS)
	}
	if cfg.MinRPS != 10 {
		t.Errorf("MinRPS = %v, want default 10", cfg.MinRPS)
	}
	if got := cfg.HealthCheckInterval(); got != 500*time.Millisecond {
		t.Errorf("HealthCheckInterval() = %v, want 500ms", got)
	}
	if got := cfg.SampledDiskPath(); got != "/var/cache/toolgate" {
		t.Errorf("SampledDiskPath() = %q, want l2 directory", got)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		invalid bool
	}{
		{name: "malformed yaml", body: "l1_size: [1, 2"},
		{name: "inconsistent rps", body: "min_rps: 50\nmax_rps: 20\n", invalid: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("LoadConfig() should fail")
			}
			if got := errors.Is(err, ErrInvalidConfig); got != tt.invalid {
				t.Errorf("errors.Is(err, ErrInvalidConfig) = %v, want %v (err: %v)", got, tt.invalid, err)
			}
		})
	}

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadConfig() of a missing file should fail")
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero l1", func(c *Config) { c.L1Size = 0 }},
		{"negative l2", func(c *Config) { c.L2SizeMB = -1 }},
		{"zero min rps", func(c *Config) { c.MinRPS = 0 }},
		{"max below min", func(c *Config) { c.MaxRPS = 5 }},
		{"initial above max", func(c *Config) { c.InitialRPS = 5000 }},
		{"initial below min", func(c *Config) { c.InitialRPS = 1 }},
		{"zero interval", func(c *Config) { c.HealthCheckIntervalS = 0 }},
		{"zero timeout", func(c *Config) { c.DefaultTimeoutS = 0 }},
		{"zero in flight", func(c *Config) { c.MaxInFlight = 0 }},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }},
		{"bad exporter", func(c *Config) {
			c.Observe.ServiceName = "svc"
			c.Observe.Tracing.Enabled = true
			c.Observe.Tracing.Exporter = "carrier-pigeon"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfig_Derived(t *testing.T) {
	cfg := DefaultConfig()
	if got := cfg.L2MaxBytes(); got != 10*1024*1024 {
		t.Errorf("L2MaxBytes() = %d, want 10 MiB", got)
	}
	cfg.L2SizeMB = 0
	if got := cfg.L2MaxBytes(); got != 10*1024*1024 {
		t.Errorf("L2MaxBytes() with zero size = %d, want default", got)
	}
	if got := cfg.DefaultTimeout(); got != 30*time.Second {
		t.Errorf("DefaultTimeout() = %v, want 30s", got)
	}
	if got := cfg.SampledDiskPath(); got != "/" {
		t.Errorf("SampledDiskPath() = %q, want /", got)
	}
	cfg.DiskPath = "/data"
	cfg.L2Path = "/tmp/l2.jsonl"
	if got := cfg.SampledDiskPath(); got != "/data" {
		t.Errorf("SampledDiskPath() = %q, want explicit disk path", got)
	}
}
