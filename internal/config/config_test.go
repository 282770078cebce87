package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MergesDefaultsAndEnv(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "boombox.json")
	data := `{
		"logging": {"level": "debug"},
		"engine": {"sample_rate": 48000},
		"catalog": {"path": "sounds.yaml"}
	}`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("LOG_LEVEL", "warn")
	t.Setenv("LOG_OUTPUT", "/var/log/boombox.log")
	t.Setenv("BOOMBOX_ENGINE", "null")
	t.Setenv("BOOMBOX_LISTEN", ":9000")
	t.Setenv("BOOMBOX_SETTINGS", "/tmp/boombox.json")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected LOG_LEVEL to override config, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "/var/log/boombox.log" {
		t.Fatalf("expected LOG_OUTPUT to override config, got %q", cfg.Logging.Output)
	}
	if cfg.Engine.SampleRate != 48000 {
		t.Fatalf("expected sample rate to be 48000, got %d", cfg.Engine.SampleRate)
	}
	if cfg.Engine.Channels != 2 {
		t.Fatalf("expected default channels to be preserved, got %d", cfg.Engine.Channels)
	}
	if cfg.EngineDriver() != DriverNull {
		t.Fatalf("expected engine driver from env, got %q", cfg.Engine.Driver)
	}
	if cfg.Server.Listen != ":9000" {
		t.Fatalf("expected listen address from env, got %q", cfg.Server.Listen)
	}
	if cfg.Settings.Path != "/tmp/boombox.json" {
		t.Fatalf("expected settings path from env, got %q", cfg.Settings.Path)
	}
	if cfg.Settings.Key != "boomBox" {
		t.Fatalf("expected default settings key, got %q", cfg.Settings.Key)
	}
	if cfg.Catalog.Path != "sounds.yaml" || !cfg.Catalog.Watch {
		t.Fatalf("unexpected catalog config: %+v", cfg.Catalog)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Engine.Driver != DriverPortAudio || cfg.Server.Path != "/ws" {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "boombox.json")
	if err := os.WriteFile(path, []byte("{"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *AppConfig)
	}{
		{"unknown driver", func(c *AppConfig) { c.Engine.Driver = "alsa" }},
		{"zero sample rate", func(c *AppConfig) { c.Engine.SampleRate = 0 }},
		{"zero channels", func(c *AppConfig) { c.Engine.Channels = 0 }},
		{"negative frames", func(c *AppConfig) { c.Engine.FramesPerBuffer = -1 }},
		{"empty settings key", func(c *AppConfig) { c.Settings.Key = " " }},
		{"relative server path", func(c *AppConfig) { c.Server.Path = "ws" }},
		{"watch without catalog", func(c *AppConfig) { c.Catalog.Path = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}

	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}
