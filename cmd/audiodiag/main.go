package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/liuscraft/boombox/internal/audio"
)

func main() {
	play := flag.String("play", "", "Decode a sound (path, file:// or http(s)://) and play it once on the default output")
	volume := flag.Int("volume", 80, "Playback volume 0..100 for -play")
	flag.Parse()

	fmt.Println("=== PortAudio Output Diagnostics ===")
	fmt.Println()

	if *play != "" {
		if err := playOnce(*play, *volume); err != nil {
			fmt.Fprintf(os.Stderr, "Playback failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := portaudio.Initialize(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize PortAudio: %v\n", err)
		os.Exit(1)
	}
	defer portaudio.Terminate()

	hostAPIs, err := portaudio.HostApis()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get host APIs: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Found %d Host API(s):\n", len(hostAPIs))
	for i, api := range hostAPIs {
		fmt.Printf("  [%d] %s (devices: %d)\n", i, api.Name, len(api.Devices))
	}
	fmt.Println()

	defaultOutput, err := portaudio.DefaultOutputDevice()
	if err != nil {
		fmt.Printf("Default Output Device: (error: %v)\n", err)
	} else {
		fmt.Printf("Default Output Device: %s\n", defaultOutput.Name)
	}
	fmt.Println()

	devices, err := portaudio.Devices()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get devices: %v\n", err)
		os.Exit(1)
	}

	engineCfg := audio.DefaultEngineConfig()
	fmt.Printf("=== Output Devices ===\n\n")
	for i, dev := range devices {
		if dev.MaxOutputChannels == 0 {
			continue
		}
		marker := ""
		if defaultOutput != nil && dev.Name == defaultOutput.Name {
			marker = " [DEFAULT OUTPUT]"
		}
		fmt.Printf("[%d] %s%s\n", i, dev.Name, marker)
		fmt.Printf("    Max Output Channels: %d\n", dev.MaxOutputChannels)
		fmt.Printf("    Default Sample Rate: %.0f Hz\n", dev.DefaultSampleRate)
		fmt.Printf("    Output Latency: Low=%.1fms, High=%.1fms\n",
			dev.DefaultLowOutputLatency.Seconds()*1000,
			dev.DefaultHighOutputLatency.Seconds()*1000)

		if int(dev.DefaultSampleRate) != engineCfg.SampleRate {
			fmt.Printf("    ⚠️  Device rate differs from engine rate %d Hz, consider engine.sample_rate=%.0f\n",
				engineCfg.SampleRate, dev.DefaultSampleRate)
		}
		if dev.MaxOutputChannels < engineCfg.Channels {
			fmt.Printf("    ⚠️  Device has fewer channels than engine.channels=%d\n", engineCfg.Channels)
		}
		fmt.Println()
	}
}

func playOnce(url string, volume int) error {
	decoders := audio.NewDecoderRegistry()
	cfg := audio.DefaultEngineConfig()

	start := time.Now()
	clip, err := decoders.Load(context.Background(), url)
	if err != nil {
		return err
	}
	fmt.Printf("Decoded %s in %v\n", url, time.Since(start))
	fmt.Printf("  Sample Rate: %d Hz\n", clip.SampleRate)
	fmt.Printf("  Channels:    %d\n", clip.Channels)
	fmt.Printf("  Duration:    %v\n", clip.Duration())
	if clip.SampleRate != cfg.SampleRate || clip.Channels != cfg.Channels {
		fmt.Printf("  Will be converted to %d Hz / %d channels\n", cfg.SampleRate, cfg.Channels)
	}
	fmt.Println()

	engine := audio.NewPortAudioEngine(cfg, decoders)
	defer engine.Close()

	ready := make(chan struct{})
	if err := engine.Setup(func() { close(ready) }); err != nil {
		return err
	}
	select {
	case <-ready:
	case <-time.After(5 * time.Second):
		return fmt.Errorf("output stream did not start")
	}

	snd, err := engine.CreateSound("diag", url, volume)
	if err != nil {
		return err
	}
	done := make(chan string, 1)
	snd.Play(func() { done <- "finished" }, func() { done <- "stopped" })

	fmt.Printf("Playing at volume %d...\n", volume)
	select {
	case result := <-done:
		fmt.Printf("Playback %s\n", result)
	case <-time.After(clip.Duration() + 10*time.Second):
		snd.Stop()
		return fmt.Errorf("playback did not finish in time")
	}
	return nil
}
