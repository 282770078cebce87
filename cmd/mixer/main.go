package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/liuscraft/boombox/internal/audio"
	"github.com/liuscraft/boombox/internal/mixer"
	"github.com/liuscraft/boombox/internal/settings"
)

var (
	fileA    = flag.String("a", "", "第一个音频文件（wav/mp3/ogg，默认生成 440Hz 正弦波）")
	fileB    = flag.String("b", "", "第二个音频文件（默认生成 660Hz 正弦波）")
	duration = flag.Float64("duration", 2.0, "每个阶段的持续时间（秒）")
	null     = flag.Bool("null", false, "使用 null 引擎（不输出声音，只验证流程）")
	help     = flag.Bool("h", false, "显示帮助信息")
)

func main() {
	flag.Parse()

	if *help {
		printHelp()
		return
	}

	fmt.Println("=== Mixer 验证工具 ===")
	fmt.Println()

	tmpDir, err := os.MkdirTemp("", "boombox-mixer")
	if err != nil {
		fmt.Printf("创建临时目录失败: %v\n", err)
		return
	}
	defer os.RemoveAll(tmpDir)

	urlA, urlB := *fileA, *fileB
	if urlA == "" {
		fmt.Println("1. 生成 440Hz 测试音频...")
		if urlA, err = writeSineWAV(tmpDir, "tone-a.wav", 440, *duration); err != nil {
			fmt.Printf("生成测试音频失败: %v\n", err)
			return
		}
	}
	if urlB == "" {
		fmt.Println("2. 生成 660Hz 测试音频...")
		if urlB, err = writeSineWAV(tmpDir, "tone-b.wav", 660, *duration); err != nil {
			fmt.Printf("生成测试音频失败: %v\n", err)
			return
		}
	}

	var engine audio.Engine
	if *null {
		engine = audio.NewNullEngine()
	} else {
		engine = audio.NewPortAudioEngine(audio.DefaultEngineConfig(), audio.NewDecoderRegistry())
	}

	m, err := mixer.New(mixer.Config{Engine: engine, Store: settings.NewMemoryStore()})
	if err != nil {
		fmt.Printf("创建 Mixer 失败: %v\n", err)
		return
	}
	defer m.Close()

	step := time.Duration(*duration * float64(time.Second))
	loop := true

	fmt.Println("3. 注册频道和声音...")
	must(m.AddChannel("music", 80))
	must(m.Add("tone-a", urlA))
	must(m.Add("tone-b", urlB))
	must(m.Start())

	fmt.Println("4. 淡入播放 tone-a（循环）...")
	must(m.Play("music", []string{"tone-a"}, &mixer.PlayParams{Loop: loop, StartTime: time.Second}))
	time.Sleep(step)

	fmt.Println("5. 交叉淡化切换到 tone-b...")
	must(m.Play("music", []string{"tone-b"}, &mixer.PlayParams{Loop: loop, StartTime: time.Second, StopTime: time.Second}))
	time.Sleep(step)

	fmt.Println("6. 频道静音...")
	must(m.Mute("music", nil))
	time.Sleep(step)

	fmt.Println("7. 取消静音...")
	must(m.Unmute("music", nil))
	time.Sleep(step)

	fmt.Println("8. 音量调到 30...")
	must(m.SetVolume("music", 30))
	time.Sleep(step)

	fmt.Println("9. 停止频道...")
	must(m.StopChannel("music", &mixer.FadeParams{Time: time.Second}))
	time.Sleep(1500 * time.Millisecond)

	members, _ := m.Members("music")
	fmt.Println()
	fmt.Println("=== 验证完成 ===")
	fmt.Printf("music 频道剩余成员: %v\n", members)
	fmt.Println()
	fmt.Println("预期效果:")
	fmt.Println("  - 阶段4: 440Hz 在 1 秒内淡入")
	fmt.Println("  - 阶段5: 440Hz 淡出的同时 660Hz 淡入")
	fmt.Println("  - 阶段6/7: 声音淡出后恢复")
	fmt.Println("  - 阶段8: 音量立即降低")
	fmt.Println("  - 阶段9: 声音淡出后停止，频道无剩余成员")
}

func must(err error) {
	if err != nil {
		fmt.Printf("操作失败: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	fmt.Println("Mixer 验证工具")
	fmt.Println()
	fmt.Println("用法:")
	fmt.Println("  go run ./cmd/mixer [选项]")
	fmt.Println()
	fmt.Println("选项:")
	flag.PrintDefaults()
	fmt.Println()
	fmt.Println("示例:")
	fmt.Println("  go run ./cmd/mixer")
	fmt.Println("    - 使用默认的正弦波测试音频")
	fmt.Println()
	fmt.Println("  go run ./cmd/mixer -a=intro.ogg -b=theme.mp3")
	fmt.Println("    - 使用指定的音频文件")
}

// writeSineWAV 生成 16bit 单声道 44.1kHz 正弦波
func writeSineWAV(dir, name string, freq, seconds float64) (string, error) {
	const sampleRate = 44100
	p := filepath.Join(dir, name)
	f, err := os.Create(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	samples := int(seconds * sampleRate)
	data := make([]int, samples)
	for i := range data {
		t := float64(i) / sampleRate
		data[i] = int(16000 * math.Sin(2*math.Pi*freq*t))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return "", err
	}
	if err := enc.Close(); err != nil {
		return "", err
	}
	return p, nil
}
