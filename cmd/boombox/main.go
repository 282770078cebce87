package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/liuscraft/boombox/internal/audio"
	"github.com/liuscraft/boombox/internal/catalog"
	"github.com/liuscraft/boombox/internal/config"
	"github.com/liuscraft/boombox/internal/logging"
	"github.com/liuscraft/boombox/internal/mixer"
	"github.com/liuscraft/boombox/internal/server"
	"github.com/liuscraft/boombox/internal/settings"
	"github.com/liuscraft/boombox/internal/tools"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "config file path")
	flag.Parse()

	appConfig, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	if err := logging.Init(logging.Config{
		Level:  appConfig.Logging.Level,
		Format: appConfig.Logging.Format,
		Output: appConfig.Logging.Output,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	logging.SetTraceID(logging.NewTraceID())

	logging.Infof("========================================")
	logging.Infof("        BoomBox Starting...            ")
	logging.Infof("========================================")

	engine := newEngine(appConfig)

	var store settings.Store = settings.NewMemoryStore()
	if path := strings.TrimSpace(appConfig.Settings.Path); path != "" {
		store = settings.NewFileStore(path)
	} else {
		logging.Warnf("settings.path is empty, channel volumes will not survive a restart")
	}

	logging.Infof("Creating Mixer (settings=%q, key=%s)...", appConfig.Settings.Path, appConfig.Settings.Key)
	m, err := mixer.New(mixer.Config{
		Engine:      engine,
		Store:       store,
		SettingsKey: appConfig.Settings.Key,
	})
	if err != nil {
		logging.Fatalf("Failed to create Mixer: %v", err)
	}

	// 引擎就绪前的 Add 会被缓存，所以目录可以先于 Start 应用
	var watcher *catalog.Watcher
	if path := strings.TrimSpace(appConfig.Catalog.Path); path != "" {
		watcher = loadCatalog(path, appConfig.Catalog.Watch, m)
	}

	logging.Infof("Starting Mixer...")
	if err := m.Start(); err != nil {
		logging.Fatalf("Failed to start Mixer: %v", err)
	}

	logging.Infof("Creating ToolExecutor and registering tools...")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	toolExecutor := tools.NewToolExecutor()
	if err := tools.RegisterMixerTools(ctx, toolExecutor, m); err != nil {
		logging.Fatalf("Failed to register tools: %v", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logging.Infof("Received interrupt signal, shutting down...")
		cancel()
	}()

	if strings.TrimSpace(appConfig.Server.Listen) == "" {
		logging.Infof("Server disabled, running until interrupted")
		<-ctx.Done()
	} else {
		srv := server.New(server.Config{
			Listen: appConfig.Server.Listen,
			Path:   appConfig.Server.Path,
		}, m, toolExecutor)

		logging.Infof("========================================")
		logging.Infof("     BoomBox is Running!               ")
		logging.Infof("     Press Ctrl+C to stop.             ")
		logging.Infof("========================================")
		if err := srv.ListenAndServe(ctx); err != nil {
			logging.Errorf("Server stopped: %v", err)
		}
	}

	// 关闭顺序：先停目录监听（它会调用 Mixer），再关 Mixer 和引擎
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			logging.Warnf("Error closing catalog watcher: %v", err)
		}
	}
	if err := m.SaveSettings(); err != nil {
		logging.Warnf("Failed to save settings: %v", err)
	}
	if err := m.Close(); err != nil {
		logging.Errorf("Error closing mixer: %v", err)
	}
	logging.Infof("BoomBox stopped.")
}

func newEngine(appConfig *config.AppConfig) audio.Engine {
	if appConfig.EngineDriver() == config.DriverNull {
		logging.Infof("Using null engine, no audio will be produced")
		return audio.NewNullEngine()
	}
	logging.Infof("Using PortAudio engine (%dHz, %d channels)", appConfig.Engine.SampleRate, appConfig.Engine.Channels)
	return audio.NewPortAudioEngine(&audio.EngineConfig{
		SampleRate:      appConfig.Engine.SampleRate,
		Channels:        appConfig.Engine.Channels,
		FramesPerBuffer: appConfig.Engine.FramesPerBuffer,
	}, audio.NewDecoderRegistry())
}

func loadCatalog(path string, watch bool, m *mixer.Mixer) *catalog.Watcher {
	c, err := catalog.Load(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Warnf("Catalog %s not found, starting with no sounds", path)
	case err != nil:
		logging.Errorf("Failed to load catalog: %v", err)
	default:
		if err := c.Apply(m); err != nil {
			logging.Warnf("Catalog applied with errors: %v", err)
		}
		logging.Infof("Catalog loaded: %d channels, %d sounds", len(c.Channels), len(c.Sounds))
	}

	if !watch {
		return nil
	}
	w, err := catalog.Watch(path, m)
	if err != nil {
		logging.Warnf("Failed to watch catalog %s: %v", path, err)
		return nil
	}
	return w
}
