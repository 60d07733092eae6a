package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/slipway-sh/slipway/pkg/types"
)

// Duration wraps time.Duration so config files can say "30s" or "2m".
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", raw, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// PoolConfig controls the pre-warm pool.
type PoolConfig struct {
	Target            int      `yaml:"target"`
	SpawnDelay        Duration `yaml:"spawn_delay"`
	ReadinessInterval Duration `yaml:"readiness_interval"`
	ReadinessCap      Duration `yaml:"readiness_cap"`
}

// ResourceConfig controls the admission gate and per-workspace caps.
type ResourceConfig struct {
	MemThresholdPct  float64 `yaml:"mem_threshold_pct"`
	CPUThresholdPct  float64 `yaml:"cpu_threshold_pct"`
	CPUCoresLimit    float64 `yaml:"cpu_cores_limit"`
	MemoryBytesLimit int64   `yaml:"memory_bytes_limit"`
}

// LoopConfig holds the tick periods of the three background loops.
type LoopConfig struct {
	Queue   Duration `yaml:"queue"`
	Health  Duration `yaml:"health"`
	Cleanup Duration `yaml:"cleanup"`
}

// HealthConfig controls probing.
type HealthConfig struct {
	ProbeTimeout           Duration `yaml:"probe_timeout"`
	MaxConsecutiveFailures int      `yaml:"max_consecutive_failures"`
}

// RuntimeConfig points at the container runtime.
type RuntimeConfig struct {
	Socket    string `yaml:"socket"`
	Namespace string `yaml:"namespace"`
	Image     string `yaml:"image"`
}

// AlertConfig controls the webhook alerter. Empty URL disables it.
type AlertConfig struct {
	WebhookURL string   `yaml:"webhook_url"`
	Cooldown   Duration `yaml:"cooldown"`
}

// StatsConfig controls the lifecycle stats recorder.
type StatsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Config is the full control-plane configuration.
type Config struct {
	Listen      string            `yaml:"listen"`
	Domain      string            `yaml:"domain"`
	DataDir     string            `yaml:"data_dir"`
	AuthToken   string            `yaml:"auth_token"`
	CORSOrigins []string          `yaml:"cors_origins"`
	Region      string            `yaml:"region_default"`
	Credentials types.Credentials `yaml:"credentials_default"`
	VNCPassword string            `yaml:"vnc_password"`
	Pool        PoolConfig        `yaml:"pool"`
	Resources   ResourceConfig    `yaml:"resources"`
	Loops       LoopConfig        `yaml:"loops"`
	Health      HealthConfig      `yaml:"health"`
	Runtime     RuntimeConfig     `yaml:"runtime"`
	Alerts      AlertConfig       `yaml:"alerts"`
	Stats       StatsConfig       `yaml:"stats"`
	Log         LogConfig         `yaml:"log"`
}

// Default returns the configuration used when no file or flag overrides it.
func Default() *Config {
	return &Config{
		Listen:  ":8080",
		Domain:  "localhost",
		DataDir: "/var/lib/slipway",
		Region:  "us-east-1",
		Pool: PoolConfig{
			Target:            2,
			SpawnDelay:        Duration(2 * time.Second),
			ReadinessInterval: Duration(2 * time.Second),
			ReadinessCap:      Duration(120 * time.Second),
		},
		Resources: ResourceConfig{
			MemThresholdPct:  90,
			CPUThresholdPct:  90,
			CPUCoresLimit:    2,
			MemoryBytesLimit: 2 * 1024 * 1024 * 1024,
		},
		Loops: LoopConfig{
			Queue:   Duration(30 * time.Second),
			Health:  Duration(5 * time.Second),
			Cleanup: Duration(60 * time.Second),
		},
		Health: HealthConfig{
			ProbeTimeout:           Duration(3 * time.Second),
			MaxConsecutiveFailures: 3,
		},
		Runtime: RuntimeConfig{
			Socket:    "/run/containerd/containerd.sock",
			Namespace: "slipway",
			Image:     "ghcr.io/slipway-sh/workspace:latest",
		},
		Alerts: AlertConfig{
			Cooldown: Duration(5 * time.Minute),
		},
		Stats: StatsConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// Load reads the YAML file at path over the defaults. A missing path (empty
// string) yields the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the control plane cannot run with.
func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain must not be empty")
	}
	if c.DataDir == "" {
		return fmt.Errorf("data_dir must not be empty")
	}
	if c.Pool.Target < 0 {
		return fmt.Errorf("pool.target must not be negative, got %d", c.Pool.Target)
	}
	if c.Resources.MemThresholdPct <= 0 || c.Resources.MemThresholdPct > 100 {
		return fmt.Errorf("resources.mem_threshold_pct must be in (0,100], got %v", c.Resources.MemThresholdPct)
	}
	if c.Resources.CPUThresholdPct <= 0 || c.Resources.CPUThresholdPct > 100 {
		return fmt.Errorf("resources.cpu_threshold_pct must be in (0,100], got %v", c.Resources.CPUThresholdPct)
	}
	if c.Health.MaxConsecutiveFailures < 1 {
		return fmt.Errorf("health.max_consecutive_failures must be at least 1, got %d", c.Health.MaxConsecutiveFailures)
	}
	for _, d := range []struct {
		name string
		val  Duration
	}{
		{"loops.queue", c.Loops.Queue},
		{"loops.health", c.Loops.Health},
		{"loops.cleanup", c.Loops.Cleanup},
		{"health.probe_timeout", c.Health.ProbeTimeout},
		{"pool.readiness_interval", c.Pool.ReadinessInterval},
		{"pool.readiness_cap", c.Pool.ReadinessCap},
	} {
		if d.val.Std() <= 0 {
			return fmt.Errorf("%s must be positive", d.name)
		}
	}
	return nil
}
