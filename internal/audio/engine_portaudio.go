package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/liuscraft/boombox/internal/logging"
)

// outputStream 已打开的输出流，*portaudio.Stream 满足该接口
type outputStream interface {
	Start() error
	Stop() error
	Close() error
}

// deviceBackend 设备层操作，测试中替换为假实现
type deviceBackend struct {
	initialize func() error
	terminate  func() error
	open       func(channels int, sampleRate float64, frames int, callback func([][]float32)) (outputStream, error)
}

var portAudioBackend = deviceBackend{
	initialize: portaudio.Initialize,
	terminate:  portaudio.Terminate,
	open: func(channels int, sampleRate float64, frames int, callback func([][]float32)) (outputStream, error) {
		stream, err := portaudio.OpenDefaultStream(0, channels, sampleRate, frames, callback)
		if err != nil {
			return nil, err
		}
		return stream, nil
	},
}

type portAudioEngine struct {
	config   *EngineConfig
	decoders *DecoderRegistry
	backend  deviceBackend
	voices   map[string]*voice
	muted    bool
	mu       sync.Mutex
	ctx      context.Context
	cancel   context.CancelFunc
	stream   outputStream
	// starting 为 true 时 Setup 正在进行；initialized 表示 portaudio 已初始化且尚未 Terminate
	starting    bool
	initialized bool
}

// voice 引擎内部的声音状态，所有字段由 engine.mu 保护
type voice struct {
	engine      *portAudioEngine
	id          string
	url         string
	clip        *Clip
	loading     bool
	pendingPlay bool
	playing     bool
	pos         int
	volume      int
	onFinish    func()
	onStop      func()
}

// NewPortAudioEngine 创建基于 PortAudio 默认输出设备的引擎，所有声音在同一个流回调中混音
func NewPortAudioEngine(config *EngineConfig, decoders *DecoderRegistry) Engine {
	return newPortAudioEngine(config, decoders)
}

func newPortAudioEngine(config *EngineConfig, decoders *DecoderRegistry) *portAudioEngine {
	if decoders == nil {
		decoders = NewDecoderRegistry()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &portAudioEngine{
		config:   config.withDefaults(),
		decoders: decoders,
		backend:  portAudioBackend,
		voices:   make(map[string]*voice),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Setup 同步初始化设备并启动输出流，任何一步失败都会回滚已完成的步骤并返回错误。
// 成功后异步调用 onReady。
func (e *portAudioEngine) Setup(onReady func()) error {
	e.mu.Lock()
	if e.starting || e.stream != nil {
		e.mu.Unlock()
		return errors.New("engine already set up")
	}
	e.starting = true
	e.mu.Unlock()
	defer func() {
		e.mu.Lock()
		e.starting = false
		e.mu.Unlock()
	}()

	if err := e.backend.initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	stream, err := e.backend.open(e.config.Channels, float64(e.config.SampleRate), e.config.FramesPerBuffer, e.audioCallback)
	if err != nil {
		e.terminate()
		return fmt.Errorf("open output stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		if cerr := stream.Close(); cerr != nil {
			logging.Warnf("PortAudioEngine: failed to close stream: %v", cerr)
		}
		e.terminate()
		return fmt.Errorf("start output stream: %w", err)
	}

	e.mu.Lock()
	e.stream = stream
	e.initialized = true
	e.mu.Unlock()

	logging.Infof("PortAudioEngine: stream started (%dHz, %d channels, %d frames/buffer)",
		e.config.SampleRate, e.config.Channels, e.config.FramesPerBuffer)
	if onReady != nil {
		go onReady()
	}
	return nil
}

func (e *portAudioEngine) terminate() {
	if err := e.backend.terminate(); err != nil {
		logging.Warnf("PortAudioEngine: failed to terminate portaudio: %v", err)
	}
}

func (e *portAudioEngine) CreateSound(id, url string, volume int) (Sound, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v, ok := e.voices[id]; ok {
		return v, nil
	}
	v := &voice{
		engine: e,
		id:     id,
		url:    url,
		volume: volume,
	}
	e.voices[id] = v
	return v, nil
}

func (e *portAudioEngine) Mute() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = true
}

func (e *portAudioEngine) Unmute() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = false
}

func (e *portAudioEngine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *portAudioEngine) Close() error {
	e.mu.Lock()
	if e.cancel != nil {
		e.cancel()
	}
	stream := e.stream
	e.stream = nil
	initialized := e.initialized
	e.initialized = false
	e.mu.Unlock()

	if stream != nil {
		if err := stream.Stop(); err != nil {
			logging.Errorf("PortAudioEngine: failed to stop stream: %v", err)
		}
		if err := stream.Close(); err != nil {
			logging.Errorf("PortAudioEngine: failed to close stream: %v", err)
		}
	}
	if initialized {
		return e.backend.terminate()
	}
	return nil
}

func (e *portAudioEngine) audioCallback(out [][]float32) {
	for ch := range out {
		for i := range out[ch] {
			out[ch][i] = 0
		}
	}
	if len(out) == 0 {
		return
	}

	var finished []func()
	e.mu.Lock()
	muted := e.muted
	for _, v := range e.voices {
		if !v.playing || v.clip == nil {
			continue
		}
		if mixVoice(v, out, muted) {
			v.playing = false
			v.pos = 0
			if v.onFinish != nil {
				finished = append(finished, v.onFinish)
			}
		}
	}
	e.mu.Unlock()

	for _, fn := range finished {
		fn()
	}
}

// mixVoice 把 v 的下一段数据按音量叠加到 out 中，返回是否已播放到结尾。
// 静音时位置照常前进，只是不输出。
func mixVoice(v *voice, out [][]float32, muted bool) bool {
	clip := v.clip
	frames := clip.Frames()
	gain := gainOf(v.volume)
	if muted {
		gain = 0
	}

	for i := range out[0] {
		if v.pos >= frames {
			return true
		}
		base := v.pos * clip.Channels
		for ch := range out {
			src := ch
			if src >= clip.Channels {
				src = clip.Channels - 1
			}
			out[ch][i] = clampSample(out[ch][i] + clip.Samples[base+src]*gain)
		}
		v.pos++
	}
	return v.pos >= frames
}

func (v *voice) ID() string {
	return v.id
}

func (v *voice) Play(onFinish, onStop func()) {
	e := v.engine
	e.mu.Lock()
	v.onFinish = onFinish
	v.onStop = onStop
	if v.clip != nil {
		v.playing = true
		e.mu.Unlock()
		return
	}
	v.pendingPlay = true
	if v.loading {
		e.mu.Unlock()
		return
	}
	v.loading = true
	e.mu.Unlock()

	go v.load()
}

// load 首次播放时才解码（autoload=false）
func (v *voice) load() {
	e := v.engine
	start := time.Now()
	clip, err := e.decoders.Load(e.ctx, v.url)
	if err == nil {
		clip, err = clip.Convert(e.config.SampleRate, e.config.Channels)
	}

	e.mu.Lock()
	v.loading = false
	if err != nil {
		play := v.pendingPlay
		v.pendingPlay = false
		onStop := v.onStop
		e.mu.Unlock()

		logging.Errorf("PortAudioEngine: failed to load sound %s (%s): %v", v.id, v.url, err)
		if play && onStop != nil {
			onStop()
		}
		return
	}
	v.clip = clip
	if v.pos > clip.Frames() {
		v.pos = 0
	}
	if v.pendingPlay {
		v.pendingPlay = false
		v.playing = true
	}
	e.mu.Unlock()

	logging.Debugf("PortAudioEngine: loaded sound %s (%v, took %v)", v.id, clip.Duration(), time.Since(start))
}

func (v *voice) Stop() {
	e := v.engine
	e.mu.Lock()
	active := v.playing || v.pendingPlay
	v.playing = false
	v.pendingPlay = false
	v.pos = 0
	onStop := v.onStop
	e.mu.Unlock()

	if active && onStop != nil {
		onStop()
	}
}

func (v *voice) SetVolume(volume int) {
	e := v.engine
	e.mu.Lock()
	defer e.mu.Unlock()
	v.volume = volume
}

func (v *voice) SetPosition(pos time.Duration) {
	e := v.engine
	e.mu.Lock()
	defer e.mu.Unlock()

	frame := int(pos.Seconds() * float64(e.config.SampleRate))
	if frame < 0 {
		frame = 0
	}
	if v.clip != nil && frame > v.clip.Frames() {
		frame = v.clip.Frames()
	}
	v.pos = frame
}
