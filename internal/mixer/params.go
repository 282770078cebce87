package mixer

import "time"

const defaultFadeTime = 500 * time.Millisecond

// PlayParams Play 的可选参数，零值即默认行为
type PlayParams struct {
	// Loop 播完后从头重播，声音保持 Playing
	Loop bool
	// Restart 开始前先回到起点
	Restart bool
	// Volume 目标音量；nil 时使用频道音量，0 也会被采用
	Volume *int
	// Transition 新声音的过渡方式，默认 fadeTo
	Transition string
	// StartTime 新声音的淡入时长，<= 0 时为 500ms
	StartTime time.Duration
	// StopAll 为 nil 或 true 时停止频道内其他声音
	StopAll *bool
	// StopTransition 被替换声音的过渡方式，默认 fadeTo
	StopTransition string
	// StopTime 被替换声音的淡出时长，<= 0 时为 500ms
	StopTime time.Duration
	// Path 单个声音未注册时用于自动注册的 url
	Path string
}

// FadeParams Stop / Mute / Unmute 的可选参数
type FadeParams struct {
	Transition string
	Time       time.Duration
}

func (p *PlayParams) stopAll() bool {
	return p.StopAll == nil || *p.StopAll
}

func fadeTime(d time.Duration) time.Duration {
	if d <= 0 {
		return defaultFadeTime
	}
	return d
}

func validVolume(v int) bool {
	return v >= 0 && v <= 100
}
