package mixer

import (
	"errors"
	"fmt"
	"time"

	"github.com/liuscraft/boombox/internal/audio"
)

// fakeEngine 同步执行的引擎，记录所有调用
type fakeEngine struct {
	sounds   map[string]*fakeSound
	log      []string
	muted    bool
	onReady  func()
	setupErr error
	closed   bool
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{sounds: make(map[string]*fakeSound)}
}

func (e *fakeEngine) Setup(onReady func()) error {
	if e.setupErr != nil {
		return e.setupErr
	}
	e.onReady = onReady
	return nil
}

// ready 模拟引擎就绪信号
func (e *fakeEngine) ready() {
	if e.onReady != nil {
		e.onReady()
	}
}

func (e *fakeEngine) CreateSound(id, url string, volume int) (audio.Sound, error) {
	if url == "broken" {
		return nil, errors.New("cannot create sound")
	}
	s := &fakeSound{engine: e, id: id, url: url, volume: volume}
	e.sounds[id] = s
	e.log = append(e.log, "create "+id)
	return s, nil
}

func (e *fakeEngine) Mute()       { e.muted = true }
func (e *fakeEngine) Unmute()     { e.muted = false }
func (e *fakeEngine) Muted() bool { return e.muted }

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

type fakeSound struct {
	engine   *fakeEngine
	id       string
	url      string
	volume   int
	position time.Duration
	playing  bool
	plays    int
	stops    int
	onFinish func()
	onStop   func()
}

func (s *fakeSound) ID() string { return s.id }

func (s *fakeSound) Play(onFinish, onStop func()) {
	s.playing = true
	s.plays++
	s.onFinish = onFinish
	s.onStop = onStop
	s.engine.log = append(s.engine.log, "play "+s.id)
}

func (s *fakeSound) Stop() {
	if !s.playing {
		return
	}
	s.playing = false
	s.stops++
	s.engine.log = append(s.engine.log, "stop "+s.id)
	if s.onStop != nil {
		s.onStop()
	}
}

// finish 模拟自然播完
func (s *fakeSound) finish() {
	if !s.playing {
		panic(fmt.Sprintf("sound %s is not playing", s.id))
	}
	s.playing = false
	if s.onFinish != nil {
		s.onFinish()
	}
}

func (s *fakeSound) SetVolume(volume int) {
	s.volume = volume
}

func (s *fakeSound) SetPosition(pos time.Duration) {
	s.position = pos
}
