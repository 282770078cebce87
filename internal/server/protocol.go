package server

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/liuscraft/boombox/internal/mixer"
	"github.com/liuscraft/boombox/internal/tools"
)

// request 客户端发来的命令帧
type request struct {
	ID      string          `json:"id"`
	Op      string          `json:"op"`
	Channel string          `json:"channel,omitempty"`
	Sound   string          `json:"sound,omitempty"`
	URL     string          `json:"url,omitempty"`
	Sounds  []string        `json:"sounds,omitempty"`
	Volume  *int            `json:"volume,omitempty"`
	Params  *wireParams     `json:"params,omitempty"`
	Tool    string          `json:"tool,omitempty"`
	Args    json.RawMessage `json:"args,omitempty"`
}

// wireParams 播放 / 过渡参数，时间单位为毫秒
type wireParams struct {
	Loop           bool   `json:"loop,omitempty"`
	Restart        bool   `json:"restart,omitempty"`
	Volume         *int   `json:"volume,omitempty"`
	Transition     string `json:"transition,omitempty"`
	StartTime      int    `json:"startTime,omitempty"`
	StopAll        *bool  `json:"stopAll,omitempty"`
	StopTransition string `json:"stopTransition,omitempty"`
	StopTime       int    `json:"stopTime,omitempty"`
	Path           string `json:"path,omitempty"`
	Time           int    `json:"time,omitempty"`
}

func (p *wireParams) play() *mixer.PlayParams {
	if p == nil {
		return nil
	}
	return &mixer.PlayParams{
		Loop:           p.Loop,
		Restart:        p.Restart,
		Volume:         p.Volume,
		Transition:     p.Transition,
		StartTime:      millis(p.StartTime),
		StopAll:        p.StopAll,
		StopTransition: p.StopTransition,
		StopTime:       millis(p.StopTime),
		Path:           p.Path,
	}
}

func (p *wireParams) fade() *mixer.FadeParams {
	if p == nil {
		return nil
	}
	return &mixer.FadeParams{Transition: p.Transition, Time: millis(p.Time)}
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}

type response struct {
	ID     string `json:"id,omitempty"`
	OK     bool   `json:"ok"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Code   string `json:"code,omitempty"`
}

type eventMessage struct {
	Event   string `json:"event"`
	Channel string `json:"channel,omitempty"`
	Sound   string `json:"sound,omitempty"`
	Volume  *int   `json:"volume,omitempty"`
}

func newEventMessage(e mixer.Event) eventMessage {
	msg := eventMessage{Event: e.Type.String(), Channel: e.Channel, Sound: e.Sound}
	if e.Type == mixer.EventChannelVolumeChanged {
		v := e.Volume
		msg.Volume = &v
	}
	return msg
}

const (
	codeInvalidArgument = "invalid_argument"
	codeNotFound        = "not_found"
	codePersistence     = "persistence"
	codeBadRequest      = "bad_request"
	codeInternal        = "internal"
)

var errBadRequest = errors.New("bad request")

func errorCode(err error) string {
	switch {
	case errors.Is(err, errBadRequest):
		return codeBadRequest
	case errors.Is(err, mixer.ErrInvalidArgument):
		return codeInvalidArgument
	case errors.Is(err, mixer.ErrNotFound), errors.Is(err, tools.ErrToolNotFound):
		return codeNotFound
	case errors.Is(err, mixer.ErrPersistence):
		return codePersistence
	default:
		return codeInternal
	}
}
