package mixer

import (
	"fmt"
	"sort"

	"github.com/liuscraft/boombox/internal/audio"
)

// sound 注册表中的声音，只在事件循环上访问
type sound struct {
	id         string
	url        string
	handle     audio.Sound
	volume     int
	channel    *channel
	transition *transition
	state      *StateMachine
	// gen 每次释放时递增，过期的引擎回调据此被忽略
	gen uint64
}

func (s *sound) setVolume(v int) {
	s.volume = v
	s.handle.SetVolume(v)
}

func (s *sound) cancelTransition() {
	if s.transition != nil {
		s.transition.task.Stop()
		s.transition = nil
	}
}

type soundRegistry struct {
	engine audio.Engine
	sounds map[string]*sound
}

func newSoundRegistry(engine audio.Engine) *soundRegistry {
	return &soundRegistry{
		engine: engine,
		sounds: make(map[string]*sound),
	}
}

// register 创建声音；id 已存在时什么也不做并返回 false
func (r *soundRegistry) register(id, url string) (bool, error) {
	if _, ok := r.sounds[id]; ok {
		return false, nil
	}
	handle, err := r.engine.CreateSound(id, url, 0)
	if err != nil {
		return false, fmt.Errorf("create sound %s: %w", id, err)
	}
	s := &sound{
		id:     id,
		url:    url,
		handle: handle,
		state:  NewStateMachine(),
	}
	s.state.Transition(StateIdle)
	r.sounds[id] = s
	return true, nil
}

func (r *soundRegistry) lookup(id string) (*sound, bool) {
	s, ok := r.sounds[id]
	return s, ok
}

func (r *soundRegistry) all() []*sound {
	ids := make([]string, 0, len(r.sounds))
	for id := range r.sounds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*sound, 0, len(ids))
	for _, id := range ids {
		out = append(out, r.sounds[id])
	}
	return out
}
