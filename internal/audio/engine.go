package audio

import (
	"time"
)

// Engine 播放引擎适配器，负责解码、设备输出以及全局静音
type Engine interface {
	// Setup 初始化后端；后端可以接受播放命令时异步调用 onReady（只调用一次）
	Setup(onReady func()) error
	// CreateSound 创建一个不自动加载、不自动播放的声音
	CreateSound(id, url string, volume int) (Sound, error)
	Mute()
	Unmute()
	Muted() bool
	Close() error
}

// Sound 引擎中的单个可播放声音
type Sound interface {
	ID() string
	// Play 开始播放。自然播完时调用 onFinish，被 Stop（或加载失败）时调用 onStop。
	// 回调可能在任意 goroutine 上执行。
	Play(onFinish, onStop func())
	Stop()
	// SetVolume 设置音量，范围 0..100，超出范围会被截断
	SetVolume(volume int)
	SetPosition(pos time.Duration)
}

// EngineConfig 输出设备配置
type EngineConfig struct {
	SampleRate      int
	Channels        int
	FramesPerBuffer int
}

// DefaultEngineConfig 默认配置：44.1kHz 立体声
func DefaultEngineConfig() *EngineConfig {
	return &EngineConfig{
		SampleRate:      44100,
		Channels:        2,
		FramesPerBuffer: 1024,
	}
}

func (c *EngineConfig) withDefaults() *EngineConfig {
	out := DefaultEngineConfig()
	if c == nil {
		return out
	}
	if c.SampleRate > 0 {
		out.SampleRate = c.SampleRate
	}
	if c.Channels > 0 {
		out.Channels = c.Channels
	}
	if c.FramesPerBuffer > 0 {
		out.FramesPerBuffer = c.FramesPerBuffer
	}
	return out
}

func gainOf(volume int) float32 {
	if volume <= 0 {
		return 0
	}
	if volume >= 100 {
		return 1
	}
	return float32(volume) / 100
}
