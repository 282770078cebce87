package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/liuscraft/boombox/internal/mixer"
)

// Controller 工具需要的 mixer 操作
type Controller interface {
	Play(channel string, ids []string, params *mixer.PlayParams) error
	Stop(ids []string, params *mixer.FadeParams) error
	StopChannel(channel string, params *mixer.FadeParams) error
	Mute(channel string, params *mixer.FadeParams) error
	Unmute(channel string, params *mixer.FadeParams) error
	SetVolume(channel string, volume int) error
	ChannelVolume(channel string) int
	ToggleMuteAll() bool
	Members(channel string) ([]string, error)
}

type PlaySoundArgs struct {
	Channel    string   `json:"channel" jsonschema:"description=频道名称"`
	Sounds     []string `json:"sounds" jsonschema:"description=要播放的声音 id 列表"`
	Volume     *int     `json:"volume,omitempty" jsonschema:"description=目标音量 0 到 100 默认使用频道音量"`
	Loop       bool     `json:"loop,omitempty" jsonschema:"description=是否循环播放"`
	Restart    bool     `json:"restart,omitempty" jsonschema:"description=是否从头开始播放"`
	Transition string   `json:"transition,omitempty" jsonschema:"description=过渡方式 none 或 fadeTo"`
	FadeMs     int      `json:"fade_ms,omitempty" jsonschema:"description=淡入时长（毫秒）"`
	StopAll    *bool    `json:"stop_all,omitempty" jsonschema:"description=是否停止频道内的其他声音 默认 true"`
	// 被替换声音的淡出
	StopTransition string `json:"stop_transition,omitempty" jsonschema:"description=被替换声音的过渡方式 none 或 fadeTo"`
	StopFadeMs     int    `json:"stop_fade_ms,omitempty" jsonschema:"description=被替换声音的淡出时长（毫秒）"`
	Path           string `json:"path,omitempty" jsonschema:"description=声音未注册时使用的文件地址"`
}

type FadeArgs struct {
	Transition string `json:"transition,omitempty" jsonschema:"description=过渡方式 none 或 fadeTo"`
	FadeMs     int    `json:"fade_ms,omitempty" jsonschema:"description=过渡时长（毫秒）"`
}

type StopSoundArgs struct {
	Sounds []string `json:"sounds" jsonschema:"description=要停止的声音 id 列表"`
	FadeArgs
}

type ChannelArgs struct {
	Channel string `json:"channel" jsonschema:"description=频道名称"`
	FadeArgs
}

type ChannelVolumeArgs struct {
	Channel string `json:"channel" jsonschema:"description=频道名称"`
	Volume  int    `json:"volume" jsonschema:"description=音量 0 到 100"`
}

// Result 所有 mixer 工具的返回值
type Result struct {
	Status  string   `json:"status"`
	Channel string   `json:"channel,omitempty"`
	Sounds  []string `json:"sounds,omitempty"`
	Volume  *int     `json:"volume,omitempty"`
	Muted   *bool    `json:"muted,omitempty"`
}

func (a FadeArgs) params() *mixer.FadeParams {
	return &mixer.FadeParams{
		Transition: a.Transition,
		Time:       time.Duration(a.FadeMs) * time.Millisecond,
	}
}

// NewMixerTools 创建控制 mixer 的 eino 工具
func NewMixerTools(ctrl Controller) ([]tool.InvokableTool, error) {
	builders := []func(Controller) (tool.InvokableTool, error){
		playSoundTool,
		stopSoundTool,
		stopChannelTool,
		muteChannelTool,
		unmuteChannelTool,
		setChannelVolumeTool,
		getChannelVolumeTool,
		toggleMuteAllTool,
	}
	out := make([]tool.InvokableTool, 0, len(builders))
	for _, build := range builders {
		t, err := build(ctrl)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// RegisterMixerTools 把 mixer 工具注册到执行器
func RegisterMixerTools(ctx context.Context, e ToolExecutor, ctrl Controller) error {
	mixerTools, err := NewMixerTools(ctrl)
	if err != nil {
		return err
	}
	for _, t := range mixerTools {
		if err := e.Register(ctx, t); err != nil {
			return err
		}
	}
	return nil
}

func playSoundTool(ctrl Controller) (tool.InvokableTool, error) {
	return utils.InferTool("playSound", "在指定频道播放声音，默认淡出频道内正在播放的其他声音",
		func(_ context.Context, args PlaySoundArgs) (*Result, error) {
			params := &mixer.PlayParams{
				Loop:           args.Loop,
				Restart:        args.Restart,
				Volume:         args.Volume,
				Transition:     args.Transition,
				StartTime:      time.Duration(args.FadeMs) * time.Millisecond,
				StopAll:        args.StopAll,
				StopTransition: args.StopTransition,
				StopTime:       time.Duration(args.StopFadeMs) * time.Millisecond,
				Path:           args.Path,
			}
			if err := ctrl.Play(args.Channel, args.Sounds, params); err != nil {
				return nil, err
			}
			return &Result{Status: "playing", Channel: args.Channel, Sounds: args.Sounds}, nil
		})
}

func stopSoundTool(ctrl Controller) (tool.InvokableTool, error) {
	return utils.InferTool("stopSound", "淡出并停止指定的声音",
		func(_ context.Context, args StopSoundArgs) (*Result, error) {
			if err := ctrl.Stop(args.Sounds, args.params()); err != nil {
				return nil, err
			}
			return &Result{Status: "stopping", Sounds: args.Sounds}, nil
		})
}

func stopChannelTool(ctrl Controller) (tool.InvokableTool, error) {
	return utils.InferTool("stopChannel", "停止频道内正在播放的所有声音",
		func(_ context.Context, args ChannelArgs) (*Result, error) {
			members, err := ctrl.Members(args.Channel)
			if err != nil {
				return nil, err
			}
			if err := ctrl.StopChannel(args.Channel, args.params()); err != nil {
				return nil, err
			}
			return &Result{Status: "stopping", Channel: args.Channel, Sounds: members}, nil
		})
}

func muteChannelTool(ctrl Controller) (tool.InvokableTool, error) {
	return utils.InferTool("muteChannel", "把频道内的声音淡出到静音，不改变频道音量设置",
		func(_ context.Context, args ChannelArgs) (*Result, error) {
			if err := ctrl.Mute(args.Channel, args.params()); err != nil {
				return nil, err
			}
			return &Result{Status: "muted", Channel: args.Channel}, nil
		})
}

func unmuteChannelTool(ctrl Controller) (tool.InvokableTool, error) {
	return utils.InferTool("unmuteChannel", "把频道内的声音恢复到频道音量",
		func(_ context.Context, args ChannelArgs) (*Result, error) {
			if err := ctrl.Unmute(args.Channel, args.params()); err != nil {
				return nil, err
			}
			volume := ctrl.ChannelVolume(args.Channel)
			return &Result{Status: "unmuted", Channel: args.Channel, Volume: &volume}, nil
		})
}

func setChannelVolumeTool(ctrl Controller) (tool.InvokableTool, error) {
	return utils.InferTool("setChannelVolume", "设置并保存频道音量",
		func(_ context.Context, args ChannelVolumeArgs) (*Result, error) {
			if err := ctrl.SetVolume(args.Channel, args.Volume); err != nil {
				return nil, fmt.Errorf("set volume of %s: %w", args.Channel, err)
			}
			volume := args.Volume
			return &Result{Status: "ok", Channel: args.Channel, Volume: &volume}, nil
		})
}

func getChannelVolumeTool(ctrl Controller) (tool.InvokableTool, error) {
	return utils.InferTool("getChannelVolume", "获取频道音量",
		func(_ context.Context, args ChannelArgs) (*Result, error) {
			volume := ctrl.ChannelVolume(args.Channel)
			return &Result{Status: "ok", Channel: args.Channel, Volume: &volume}, nil
		})
}

func toggleMuteAllTool(ctrl Controller) (tool.InvokableTool, error) {
	return utils.InferTool("toggleMuteAll", "切换全局静音",
		func(_ context.Context, _ struct{}) (*Result, error) {
			muted := ctrl.ToggleMuteAll()
			return &Result{Status: "ok", Muted: &muted}, nil
		})
}
