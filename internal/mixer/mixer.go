// Package mixer 按频道组织声音，在开始、停止、静音和切换时做音量过渡。
//
// 所有状态只在事件循环上修改；公开方法通过 Scheduler.Do 提交并等待结果，可以在任意 goroutine 中调用。
package mixer

import (
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/liuscraft/boombox/internal/audio"
	"github.com/liuscraft/boombox/internal/logging"
	"github.com/liuscraft/boombox/internal/loop"
	"github.com/liuscraft/boombox/internal/settings"
)

// Config Mixer 依赖
type Config struct {
	Engine audio.Engine
	// Store 为 nil 时使用 MemoryStore
	Store settings.Store
	// SettingsKey 默认 settings.DefaultKey
	SettingsKey string
	// Scheduler 为 nil 时创建并持有一个 loop.Loop
	Scheduler loop.Scheduler
}

type Mixer struct {
	engine  audio.Engine
	store   settings.Store
	key     string
	sched   loop.Scheduler
	ownLoop *loop.Loop
	events  EventBus
	closed  atomic.Bool

	// 以下字段只在事件循环上访问
	sounds      *soundRegistry
	channels    *channelRegistry
	transitions *transitionEngine
	queue       readinessQueue
	ready       bool
	started     bool
}

// New 创建 Mixer 并从 Store 读取频道设置；读取失败时以空设置开始
func New(cfg Config) (*Mixer, error) {
	if cfg.Engine == nil {
		return nil, errors.New("mixer: engine is required")
	}
	store := cfg.Store
	if store == nil {
		store = settings.NewMemoryStore()
	}
	key := cfg.SettingsKey
	if key == "" {
		key = settings.DefaultKey
	}

	m := &Mixer{
		engine:   cfg.Engine,
		store:    store,
		key:      key,
		sched:    cfg.Scheduler,
		events:   NewEventBus(),
		sounds:   newSoundRegistry(cfg.Engine),
		channels: newChannelRegistry(settings.Load(store, key)),
	}
	if m.sched == nil {
		m.ownLoop = loop.New()
		m.sched = m.ownLoop
	}
	m.transitions = &transitionEngine{sched: m.sched}
	return m, nil
}

// Start 初始化引擎。引擎就绪前的 Add / Play 会被缓存，就绪后按提交顺序重放
func (m *Mixer) Start() error {
	return m.call("start", func() error {
		if m.started {
			return nil
		}
		if err := m.engine.Setup(func() { m.sched.Post(m.drain) }); err != nil {
			return fmt.Errorf("setup engine: %w", err)
		}
		m.started = true
		return nil
	})
}

// Close 取消所有过渡并关闭引擎
func (m *Mixer) Close() error {
	if !m.closed.CompareAndSwap(false, true) {
		return nil
	}
	m.sched.Do(func() {
		for _, s := range m.sounds.all() {
			s.cancelTransition()
		}
	})
	if m.ownLoop != nil {
		m.ownLoop.Close()
	}
	m.events.Close()
	return m.engine.Close()
}

// Subscribe 订阅 mixer 事件
func (m *Mixer) Subscribe(eventType EventType, handler EventHandler) {
	m.events.Subscribe(eventType, handler)
}

// call 在事件循环上执行 fn，失败时记录日志
func (m *Mixer) call(op string, fn func() error) error {
	if m.closed.Load() {
		return ErrClosed
	}
	logging.StartOp()
	var err error
	m.sched.Do(func() {
		err = fn()
	})
	if err != nil {
		logging.Errorf("Mixer: %s failed: %v", op, err)
	}
	return err
}

func (m *Mixer) drain() {
	if m.ready {
		return
	}
	m.ready = true
	pending := m.queue.drain()
	logging.Infof("Mixer: engine ready, replaying %d queued commands", len(pending))
	for _, cmd := range pending {
		if err := cmd.apply(m); err != nil {
			logging.Errorf("Mixer: queued %s failed: %v", cmd, err)
		}
	}
	m.events.Publish(Event{Type: EventEngineReady})
}

// AddChannel 创建频道；已存在时什么也不做，也不会覆盖已保存的音量
func (m *Mixer) AddChannel(name string, defaultVolume int) error {
	return m.call("addChannel", func() error {
		if name == "" {
			return fmt.Errorf("%w: empty channel name", ErrInvalidArgument)
		}
		if !validVolume(defaultVolume) {
			return fmt.Errorf("%w: volume %d out of range 0..100", ErrInvalidArgument, defaultVolume)
		}
		if m.channels.create(name, defaultVolume) {
			logging.Debugf("Mixer: channel %s created (volume %d)", name, m.channels.volume(name))
		}
		return nil
	})
}

// Add 注册声音；已注册时什么也不做
func (m *Mixer) Add(id, url string) error {
	return m.call("add", func() error {
		if id == "" {
			return fmt.Errorf("%w: empty sound id", ErrInvalidArgument)
		}
		if _, ok := m.sounds.lookup(id); ok {
			return nil
		}
		return m.add(id, url)
	})
}

func (m *Mixer) add(id, url string) error {
	if !m.ready {
		m.queue.enqueue(addCommand{id: id, url: url})
		return nil
	}
	created, err := m.sounds.register(id, url)
	if err != nil {
		return err
	}
	if created {
		logging.Debugf("Mixer: sound %s registered (%s)", id, url)
	}
	return nil
}

// Play 在 channel 上播放 ids。除非 StopAll 为 false，频道内其他声音会同时淡出并释放。
// 任何一个声音未注册（且无法用 Path 自动注册）时返回 ErrNotFound，整批都不会开始。
func (m *Mixer) Play(channelName string, ids []string, params *PlayParams) error {
	var p PlayParams
	if params != nil {
		p = *params
	}
	return m.call("play", func() error {
		return m.play(channelName, ids, p)
	})
}

func (m *Mixer) play(channelName string, ids []string, p PlayParams) error {
	ch, ok := m.channels.get(channelName)
	if !ok {
		return fmt.Errorf("%w: unknown channel %s", ErrNotFound, channelName)
	}
	ids = dedupe(ids)
	if len(ids) == 0 {
		return fmt.Errorf("%w: no sounds to play", ErrInvalidArgument)
	}
	startTransition, err := resolveTransition(p.Transition)
	if err != nil {
		return err
	}
	stopTransition, err := resolveTransition(p.StopTransition)
	if err != nil {
		return err
	}
	if p.Volume != nil && !validVolume(*p.Volume) {
		return fmt.Errorf("%w: volume %d out of range 0..100", ErrInvalidArgument, *p.Volume)
	}

	if len(ids) == 1 && p.Path != "" {
		if _, ok := m.sounds.lookup(ids[0]); !ok {
			if err := m.add(ids[0], p.Path); err != nil {
				return err
			}
		}
	}

	if !m.ready {
		m.queue.enqueue(playCommand{channel: channelName, ids: ids, params: p})
		return nil
	}

	targets := make([]*sound, 0, len(ids))
	for _, id := range ids {
		s, ok := m.sounds.lookup(id)
		if !ok {
			return fmt.Errorf("%w: unknown sound %s", ErrNotFound, id)
		}
		targets = append(targets, s)
	}

	if p.stopAll() {
		requested := make(map[string]bool, len(ids))
		for _, id := range ids {
			requested[id] = true
		}
		for _, s := range ch.sortedMembers() {
			if !requested[s.id] {
				m.transitions.run(stopTransition, s, 0, fadeTime(p.StopTime), m.stopSound)
			}
		}
	}

	volume := m.channels.volume(channelName)
	if p.Volume != nil {
		volume = *p.Volume
	}
	for _, s := range targets {
		m.transitions.run(startTransition, s, volume, fadeTime(p.StartTime), nil)
		if s.channel != ch {
			m.playSound(ch, s, p)
		}
	}
	return nil
}

// playSound 把声音绑定到频道并开始播放
func (m *Mixer) playSound(ch *channel, s *sound, p PlayParams) {
	if s.channel != nil {
		delete(s.channel.members, s.id)
	}
	s.channel = ch
	ch.members[s.id] = s
	if s.state.Current() != StatePlaying {
		s.state.Transition(StatePlaying)
	}
	s.gen++

	if p.Restart {
		s.handle.SetPosition(0)
	}
	m.startPlayback(s, p.Loop)
	logging.Debugf("Mixer: sound %s playing on %s (loop=%v)", s.id, ch.name, p.Loop)
	m.events.Publish(Event{Type: EventSoundStarted, Channel: ch.name, Sound: s.id})
}

func (m *Mixer) startPlayback(s *sound, repeat bool) {
	gen := s.gen
	s.handle.Play(
		func() { m.sched.Post(func() { m.onFinish(s, gen, repeat) }) },
		func() { m.sched.Post(func() { m.onStop(s, gen) }) },
	)
}

func (m *Mixer) onFinish(s *sound, gen uint64, repeat bool) {
	if s.gen != gen || s.channel == nil {
		return
	}
	if repeat {
		m.startPlayback(s, true)
		return
	}
	m.release(s)
}

func (m *Mixer) onStop(s *sound, gen uint64) {
	if s.gen != gen {
		return
	}
	m.release(s)
}

// stopSound 淡出结束后停止声音。先释放，引擎随后的 onStop 回调因代数不同而被忽略
func (m *Mixer) stopSound(s *sound) {
	m.release(s)
	s.handle.Stop()
}

// release 音量归零并移出频道，Playing → Idle
func (m *Mixer) release(s *sound) {
	s.cancelTransition()
	s.setVolume(0)
	channelName := ""
	if s.channel != nil {
		channelName = s.channel.name
		delete(s.channel.members, s.id)
		s.channel = nil
	}
	s.state.Transition(StateIdle)
	s.gen++
	logging.Debugf("Mixer: sound %s released from %s", s.id, channelName)
	m.events.Publish(Event{Type: EventSoundReleased, Channel: channelName, Sound: s.id})
}

// Stop 淡出并释放 ids 中正在播放的声音；未在任何频道中的声音被跳过
func (m *Mixer) Stop(ids []string, params *FadeParams) error {
	var p FadeParams
	if params != nil {
		p = *params
	}
	return m.call("stop", func() error {
		return m.stop(ids, p)
	})
}

func (m *Mixer) stop(ids []string, p FadeParams) error {
	name, err := resolveTransition(p.Transition)
	if err != nil {
		return err
	}
	for _, id := range dedupe(ids) {
		s, ok := m.sounds.lookup(id)
		if !ok || s.channel == nil {
			continue
		}
		m.transitions.run(name, s, 0, fadeTime(p.Time), m.stopSound)
	}
	return nil
}

// StopChannel 停止频道内当前所有声音
func (m *Mixer) StopChannel(channelName string, params *FadeParams) error {
	var p FadeParams
	if params != nil {
		p = *params
	}
	return m.call("stopChannel", func() error {
		if _, ok := m.channels.get(channelName); !ok {
			return fmt.Errorf("%w: unknown channel %s", ErrNotFound, channelName)
		}
		return m.stop(m.channels.members(channelName), p)
	})
}

// Mute 把频道内所有声音淡出到 0，不改变成员和频道音量
func (m *Mixer) Mute(channelName string, params *FadeParams) error {
	var p FadeParams
	if params != nil {
		p = *params
	}
	return m.call("mute", func() error {
		return m.fadeChannel(channelName, p, func() int { return 0 })
	})
}

// Unmute 把频道内所有声音淡入到频道音量
func (m *Mixer) Unmute(channelName string, params *FadeParams) error {
	var p FadeParams
	if params != nil {
		p = *params
	}
	return m.call("unmute", func() error {
		return m.fadeChannel(channelName, p, func() int { return m.channels.volume(channelName) })
	})
}

func (m *Mixer) fadeChannel(channelName string, p FadeParams, target func() int) error {
	ch, ok := m.channels.get(channelName)
	if !ok {
		return fmt.Errorf("%w: unknown channel %s", ErrNotFound, channelName)
	}
	name, err := resolveTransition(p.Transition)
	if err != nil {
		return err
	}
	volume := target()
	for _, s := range ch.sortedMembers() {
		m.transitions.run(name, s, volume, fadeTime(p.Time), nil)
	}
	return nil
}

// SetVolume 修改并保存频道音量，频道内的声音立即（不淡入淡出）切换到新音量。
// 保存失败返回 ErrPersistence，内存中的修改仍然生效。
func (m *Mixer) SetVolume(channelName string, volume int) error {
	return m.call("setVolume", func() error {
		if !validVolume(volume) {
			return fmt.Errorf("%w: volume %d out of range 0..100", ErrInvalidArgument, volume)
		}
		ch, ok := m.channels.get(channelName)
		if !ok {
			return fmt.Errorf("%w: unknown channel %s", ErrNotFound, channelName)
		}
		m.channels.setVolume(channelName, volume)
		for _, s := range ch.sortedMembers() {
			s.setVolume(volume)
		}
		m.events.Publish(Event{Type: EventChannelVolumeChanged, Channel: channelName, Volume: volume})
		return m.saveSettings()
	})
}

// ChannelVolume 返回频道配置音量，没有设置时为 0
func (m *Mixer) ChannelVolume(channelName string) int {
	var v int
	m.query(func() { v = m.channels.volume(channelName) })
	return v
}

// SaveSettings 保存所有频道设置
func (m *Mixer) SaveSettings() error {
	return m.call("saveSettings", m.saveSettings)
}

func (m *Mixer) saveSettings() error {
	if err := settings.Save(m.store, m.key, m.channels.snapshot()); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

func (m *Mixer) MuteAll() {
	m.query(m.engine.Mute)
}

func (m *Mixer) UnmuteAll() {
	m.query(m.engine.Unmute)
}

func (m *Mixer) IsMuted() bool {
	var muted bool
	m.query(func() { muted = m.engine.Muted() })
	return muted
}

// ToggleMuteAll 切换全局静音，返回切换后的状态
func (m *Mixer) ToggleMuteAll() bool {
	var muted bool
	m.query(func() {
		if m.engine.Muted() {
			m.engine.Unmute()
		} else {
			m.engine.Mute()
		}
		muted = m.engine.Muted()
	})
	return muted
}

// Members 返回频道内当前的声音 id（按字典序）
func (m *Mixer) Members(channelName string) ([]string, error) {
	var (
		ids []string
		err error
	)
	m.query(func() {
		if _, ok := m.channels.get(channelName); !ok {
			err = fmt.Errorf("%w: unknown channel %s", ErrNotFound, channelName)
			return
		}
		ids = m.channels.members(channelName)
	})
	return ids, err
}

// SoundVolume 返回声音当前音量
func (m *Mixer) SoundVolume(id string) (int, bool) {
	var (
		v  int
		ok bool
	)
	m.query(func() {
		var s *sound
		if s, ok = m.sounds.lookup(id); ok {
			v = s.volume
		}
	})
	return v, ok
}

func (m *Mixer) SoundState(id string) State {
	state := StateUnregistered
	m.query(func() {
		if s, ok := m.sounds.lookup(id); ok {
			state = s.state.Current()
		}
	})
	return state
}

func (m *Mixer) Channels() []string {
	var names []string
	m.query(func() { names = m.channels.names() })
	return names
}

func (m *Mixer) Ready() bool {
	var ready bool
	m.query(func() { ready = m.ready })
	return ready
}

// query 只读访问，不分配 op id
func (m *Mixer) query(fn func()) {
	if m.closed.Load() {
		return
	}
	m.sched.Do(fn)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
