package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default configuration invalid: %v", err)
	}
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load on missing file: %v", err)
	}
	if cfg.Mining.NPUInterval != 150 || cfg.Mining.CacheSizeMB != 256 {
		t.Errorf("missing file must yield defaults, got %+v", cfg.Mining)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.Mining.CacheSizeMB = 64
	cfg.Mining.Seed = "round-trip"
	cfg.Thermal.ThrottleTempC = 38.0
	cfg.Thermal.MaxTempC = 44.0
	cfg.Power.PollInterval = 2 * time.Second
	cfg.Monitoring.Enabled = true
	cfg.Monitoring.ListenAddr = ":9191"

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Mining.CacheSizeMB != 64 || loaded.Mining.Seed != "round-trip" {
		t.Errorf("mining section mismatch: %+v", loaded.Mining)
	}
	if loaded.Thermal.ThrottleTempC != 38.0 || loaded.Thermal.MaxTempC != 44.0 {
		t.Errorf("thermal section mismatch: %+v", loaded.Thermal)
	}
	if loaded.Power.PollInterval != 2*time.Second {
		t.Errorf("power poll interval = %v, want 2s", loaded.Power.PollInterval)
	}
	if !loaded.Monitoring.Enabled || loaded.Monitoring.ListenAddr != ":9191" {
		t.Errorf("monitoring section mismatch: %+v", loaded.Monitoring)
	}
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mining:\n  cache_size_mb: 32\n"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Mining.CacheSizeMB != 32 {
		t.Errorf("cache_size_mb = %d, want 32", cfg.Mining.CacheSizeMB)
	}
	if cfg.Mining.NPUInterval != 150 {
		t.Errorf("npu_interval = %d, want default 150", cfg.Mining.NPUInterval)
	}
	if cfg.Thermal.MaxTempC != 45.0 {
		t.Errorf("max_temp_c = %f, want default 45.0", cfg.Thermal.MaxTempC)
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mining: [not a map"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("malformed YAML must fail to load")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(c *Config) {}, false},
		{"zero npu interval", func(c *Config) { c.Mining.NPUInterval = 0 }, true},
		{"zero cache", func(c *Config) { c.Mining.CacheSizeMB = 0 }, true},
		{"negative cache", func(c *Config) { c.Mining.CacheSizeMB = -1 }, true},
		{"throttle above max", func(c *Config) { c.Thermal.ThrottleTempC = 50; c.Thermal.MaxTempC = 45 }, true},
		{"throttle equals max", func(c *Config) { c.Thermal.ThrottleTempC = 45; c.Thermal.MaxTempC = 45 }, true},
		{"negative tolerance", func(c *Config) { c.Thermal.TolerancePct = -1 }, true},
		{"zero thermal poll", func(c *Config) { c.Thermal.PollInterval = 0 }, true},
		{"zero power poll", func(c *Config) { c.Power.PollInterval = 0 }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %t", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("mining:\n  cache_size_mb: -8\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("invalid values must fail validation on load")
	}
}
