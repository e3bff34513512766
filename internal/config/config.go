package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/shellmining/mobilex/internal/logging"
)

// Config is the top-level engine configuration
type Config struct {
	Logging    logging.Config   `yaml:"logging"`
	Mining     MiningConfig     `yaml:"mining"`
	Thermal    ThermalConfig    `yaml:"thermal"`
	Power      PowerConfig      `yaml:"power"`
	NPU        NPUConfig        `yaml:"npu"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// MiningConfig controls the MobileX hash pipeline
type MiningConfig struct {
	// Threads overrides the policy-derived worker count when > 0
	Threads int `yaml:"threads"`

	// NPUInterval is the hash-counter modulus for the neural substep
	NPUInterval uint64 `yaml:"npu_interval"`

	// CacheSizeMB is the RandomX light-cache size in MiB
	CacheSizeMB int `yaml:"cache_size_mb"`

	// Seed keys the RandomX light cache
	Seed string `yaml:"seed"`
}

// ThermalConfig controls the thermal monitor and verifier
type ThermalConfig struct {
	ThrottleTempC float64       `yaml:"throttle_temp_c"`
	MaxTempC      float64       `yaml:"max_temp_c"`
	PollInterval  time.Duration `yaml:"poll_interval"`

	// Proof settings
	BaseFrequencyMHz uint64  `yaml:"base_frequency_mhz"`
	TolerancePct     float64 `yaml:"tolerance_pct"`
	CheatThreshold   float64 `yaml:"cheat_threshold"`
}

// PowerConfig controls the policy controller
type PowerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// NPUConfig controls the neural dispatcher
type NPUConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MonitoringConfig controls the Prometheus exporter
type MonitoringConfig struct {
	Enabled    bool   `yaml:"enabled"`
	ListenAddr string `yaml:"listen_addr"`
}

// Default returns the default engine configuration
func Default() *Config {
	return &Config{
		Logging: *logging.DefaultConfig(),
		Mining: MiningConfig{
			NPUInterval: 150,
			CacheSizeMB: 256,
			Seed:        "mobilex-light-cache",
		},
		Thermal: ThermalConfig{
			ThrottleTempC:    40.0,
			MaxTempC:         45.0,
			PollInterval:     time.Second,
			BaseFrequencyMHz: 2000,
			TolerancePct:     5.0,
			CheatThreshold:   2.0,
		},
		Power: PowerConfig{
			PollInterval: time.Second,
		},
		NPU: NPUConfig{
			Enabled: true,
		},
		Monitoring: MonitoringConfig{
			Enabled:    false,
			ListenAddr: ":9090",
		},
	}
}

// Load reads configuration from a YAML file, applying defaults for
// unset fields. A missing file is not an error; defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
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

// Save writes the configuration to a YAML file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks configuration invariants
func (c *Config) Validate() error {
	if c.Mining.NPUInterval == 0 {
		return fmt.Errorf("mining.npu_interval must be positive")
	}
	if c.Mining.CacheSizeMB <= 0 {
		return fmt.Errorf("mining.cache_size_mb must be positive")
	}
	if c.Thermal.ThrottleTempC >= c.Thermal.MaxTempC {
		return fmt.Errorf("thermal.throttle_temp_c (%.1f) must be below thermal.max_temp_c (%.1f)",
			c.Thermal.ThrottleTempC, c.Thermal.MaxTempC)
	}
	if c.Thermal.TolerancePct < 0 {
		return fmt.Errorf("thermal.tolerance_pct must not be negative")
	}
	if c.Thermal.PollInterval <= 0 {
		return fmt.Errorf("thermal.poll_interval must be positive")
	}
	if c.Power.PollInterval <= 0 {
		return fmt.Errorf("power.poll_interval must be positive")
	}
	return nil
}
