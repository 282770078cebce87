package audio

import (
	"sync"
	"time"
)

// nullEngine 无输出设备的引擎：声音只记录状态，不会自然播完
type nullEngine struct {
	mu     sync.Mutex
	muted  bool
	sounds map[string]*nullSound
}

func NewNullEngine() Engine {
	return &nullEngine{sounds: make(map[string]*nullSound)}
}

func (e *nullEngine) Setup(onReady func()) error {
	if onReady != nil {
		go onReady()
	}
	return nil
}

func (e *nullEngine) CreateSound(id, url string, volume int) (Sound, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if s, ok := e.sounds[id]; ok {
		return s, nil
	}
	s := &nullSound{id: id, volume: volume}
	e.sounds[id] = s
	return s, nil
}

func (e *nullEngine) Mute() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = true
}

func (e *nullEngine) Unmute() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.muted = false
}

func (e *nullEngine) Muted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.muted
}

func (e *nullEngine) Close() error {
	return nil
}

type nullSound struct {
	mu       sync.Mutex
	id       string
	volume   int
	position time.Duration
	playing  bool
	onStop   func()
}

func (s *nullSound) ID() string {
	return s.id
}

func (s *nullSound) Play(_, onStop func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
	s.onStop = onStop
}

func (s *nullSound) Stop() {
	s.mu.Lock()
	wasPlaying := s.playing
	s.playing = false
	s.position = 0
	onStop := s.onStop
	s.mu.Unlock()

	if wasPlaying && onStop != nil {
		onStop()
	}
}

func (s *nullSound) SetVolume(volume int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.volume = volume
}

func (s *nullSound) SetPosition(pos time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = pos
}
