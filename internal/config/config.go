package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

const DefaultPath = "config/boombox.json"

const (
	DriverPortAudio = "portaudio"
	DriverNull      = "null"
)

type AppConfig struct {
	Logging  LoggingConfig  `json:"logging"`
	Engine   EngineConfig   `json:"engine"`
	Settings SettingsConfig `json:"settings"`
	Server   ServerConfig   `json:"server"`
	Catalog  CatalogConfig  `json:"catalog"`
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
	Output string `json:"output"`
}

type EngineConfig struct {
	Driver          string `json:"driver"`
	SampleRate      int    `json:"sample_rate"`
	Channels        int    `json:"channels"`
	FramesPerBuffer int    `json:"frames_per_buffer"`
}

// SettingsConfig 频道音量的持久化位置
type SettingsConfig struct {
	Path string `json:"path"`
	Key  string `json:"key"`
}

type ServerConfig struct {
	Listen string `json:"listen"`
	Path   string `json:"path"`
}

type CatalogConfig struct {
	Path  string `json:"path"`
	Watch bool   `json:"watch"`
}

func DefaultConfig() *AppConfig {
	return &AppConfig{
		Logging: LoggingConfig{},
		Engine: EngineConfig{
			Driver:          DriverPortAudio,
			SampleRate:      44100,
			Channels:        2,
			FramesPerBuffer: 1024,
		},
		Settings: SettingsConfig{
			Path: "data/settings.json",
			Key:  "boomBox",
		},
		Server: ServerConfig{
			Listen: "127.0.0.1:8765",
			Path:   "/ws",
		},
		Catalog: CatalogConfig{
			Path:  "config/catalog.yaml",
			Watch: true,
		},
	}
}

func Load(path string) (*AppConfig, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			cfg.ApplyEnv()
			return cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyEnv()
	return cfg, cfg.Validate()
}

func (c *AppConfig) ApplyEnv() {
	if level := strings.TrimSpace(os.Getenv("LOG_LEVEL")); level != "" {
		c.Logging.Level = level
	}
	if format := strings.TrimSpace(os.Getenv("LOG_FORMAT")); format != "" {
		c.Logging.Format = format
	}
	if output := strings.TrimSpace(os.Getenv("LOG_OUTPUT")); output != "" {
		c.Logging.Output = output
	}
	if driver := strings.TrimSpace(os.Getenv("BOOMBOX_ENGINE")); driver != "" {
		c.Engine.Driver = driver
	}
	if listen := strings.TrimSpace(os.Getenv("BOOMBOX_LISTEN")); listen != "" {
		c.Server.Listen = listen
	}
	if settings := strings.TrimSpace(os.Getenv("BOOMBOX_SETTINGS")); settings != "" {
		c.Settings.Path = settings
	}
}

func (c *AppConfig) Validate() error {
	switch strings.ToLower(strings.TrimSpace(c.Engine.Driver)) {
	case DriverPortAudio, DriverNull:
	default:
		return fmt.Errorf("invalid engine driver: %s", c.Engine.Driver)
	}
	if c.Engine.SampleRate <= 0 {
		return errors.New("engine.sample_rate must be positive")
	}
	if c.Engine.Channels <= 0 {
		return errors.New("engine.channels must be positive")
	}
	if c.Engine.FramesPerBuffer < 0 {
		return errors.New("engine.frames_per_buffer must be non-negative")
	}

	if strings.TrimSpace(c.Settings.Key) == "" {
		return errors.New("settings.key is required")
	}

	if strings.TrimSpace(c.Server.Listen) != "" && !strings.HasPrefix(c.Server.Path, "/") {
		return fmt.Errorf("server.path must start with '/': %q", c.Server.Path)
	}

	if c.Catalog.Watch && strings.TrimSpace(c.Catalog.Path) == "" {
		return errors.New("catalog.watch requires catalog.path")
	}
	return nil
}

// EngineDriver 规范化后的驱动名
func (c *AppConfig) EngineDriver() string {
	return strings.ToLower(strings.TrimSpace(c.Engine.Driver))
}
