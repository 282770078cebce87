package mixer

import (
	"sort"

	"github.com/liuscraft/boombox/internal/settings"
)

type channel struct {
	name    string
	members map[string]*sound
}

// sortedMembers 按 id 排序，保证迭代顺序确定
func (c *channel) sortedMembers() []*sound {
	ids := make([]string, 0, len(c.members))
	for id := range c.members {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]*sound, 0, len(ids))
	for _, id := range ids {
		out = append(out, c.members[id])
	}
	return out
}

// channelRegistry 频道及其配置音量。settings 是频道音量的唯一来源，与声音当前音量无关
type channelRegistry struct {
	channels map[string]*channel
	settings settings.Settings
}

func newChannelRegistry(s settings.Settings) *channelRegistry {
	if s == nil {
		s = settings.Settings{}
	}
	return &channelRegistry{
		channels: make(map[string]*channel),
		settings: s,
	}
}

// create 幂等；已保存的音量不会被 defaultVolume 覆盖
func (r *channelRegistry) create(name string, defaultVolume int) bool {
	if _, ok := r.channels[name]; ok {
		return false
	}
	r.channels[name] = &channel{name: name, members: make(map[string]*sound)}
	if _, ok := r.settings[name]; !ok {
		r.settings[name] = settings.ChannelSettings{Volume: defaultVolume}
	}
	return true
}

func (r *channelRegistry) get(name string) (*channel, bool) {
	c, ok := r.channels[name]
	return c, ok
}

func (r *channelRegistry) members(name string) []string {
	c, ok := r.channels[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(c.members))
	for _, s := range c.sortedMembers() {
		out = append(out, s.id)
	}
	return out
}

func (r *channelRegistry) volume(name string) int {
	cs, ok := r.settings[name]
	if !ok {
		return 0
	}
	return cs.Volume
}

func (r *channelRegistry) setVolume(name string, volume int) {
	r.settings[name] = settings.ChannelSettings{Volume: volume}
}

func (r *channelRegistry) names() []string {
	out := make([]string, 0, len(r.channels))
	for name := range r.channels {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// snapshot 复制当前设置，用于保存
func (r *channelRegistry) snapshot() settings.Settings {
	out := make(settings.Settings, len(r.settings))
	for k, v := range r.settings {
		out[k] = v
	}
	return out
}
