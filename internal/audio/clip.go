package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

var (
	ErrUnknownFormat = errors.New("unknown sound format")
	ErrEmptyClip     = errors.New("sound contains no samples")
)

// Clip 解码后的完整 PCM 数据，交错排列，取值范围 [-1, 1]
type Clip struct {
	SampleRate int
	Channels   int
	Samples    []float32
}

func (c *Clip) Frames() int {
	if c == nil || c.Channels <= 0 {
		return 0
	}
	return len(c.Samples) / c.Channels
}

func (c *Clip) Duration() time.Duration {
	if c == nil || c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames()) * time.Second / time.Duration(c.SampleRate)
}

// Convert 返回声道数和采样率都与输出设备一致的副本
func (c *Clip) Convert(sampleRate, channels int) (*Clip, error) {
	if c.Frames() == 0 {
		return nil, ErrEmptyClip
	}
	remixed := remix(c.Samples, c.Channels, channels)
	resampled, err := NewLinearResampler().Resample(remixed, c.SampleRate, sampleRate, channels)
	if err != nil {
		return nil, err
	}
	return &Clip{SampleRate: sampleRate, Channels: channels, Samples: resampled}, nil
}

// remix 单声道复制到所有声道，多声道截取前 to 个声道
func remix(samples []float32, from, to int) []float32 {
	if from == to {
		return samples
	}
	frames := len(samples) / from
	out := make([]float32, frames*to)
	for f := 0; f < frames; f++ {
		for ch := 0; ch < to; ch++ {
			src := ch
			if src >= from {
				src = from - 1
			}
			out[f*to+ch] = samples[f*from+src]
		}
	}
	return out
}

// Decoder 把完整的文件内容解码为 Clip
type Decoder interface {
	Decode(r io.ReadSeeker) (*Clip, error)
}

// DecoderRegistry 按文件扩展名选择解码器
type DecoderRegistry struct {
	codecs map[string]Decoder
	mu     sync.Mutex
	client *http.Client
}

// NewDecoderRegistry 创建注册了 wav / mp3 / ogg 的解码器表
func NewDecoderRegistry() *DecoderRegistry {
	r := &DecoderRegistry{
		codecs: make(map[string]Decoder),
		client: &http.Client{Timeout: 30 * time.Second},
	}
	r.Register(".wav", wavDecoder{})
	r.Register(".mp3", mp3Decoder{})
	r.Register(".ogg", oggDecoder{})
	r.Register(".oga", oggDecoder{})
	return r
}

func (r *DecoderRegistry) Register(ext string, d Decoder) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.codecs[normalizeExt(ext)] = d
}

func (r *DecoderRegistry) Get(ext string) (Decoder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.codecs[normalizeExt(ext)]
	return d, ok
}

// Load 读取 url 指向的文件并解码。url 可以是本地路径、file:// 或 http(s)://
func (r *DecoderRegistry) Load(ctx context.Context, rawURL string) (*Clip, error) {
	data, name, err := r.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	dec, ok := r.Get(path.Ext(name))
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, rawURL)
	}
	clip, err := dec.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", rawURL, err)
	}
	if clip.Frames() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrEmptyClip, rawURL)
	}
	return clip, nil
}

func (r *DecoderRegistry) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || len(u.Scheme) == 1 {
		// 普通路径（含 Windows 盘符）
		data, err := os.ReadFile(rawURL)
		if err != nil {
			return nil, "", fmt.Errorf("read sound %s: %w", rawURL, err)
		}
		return data, filepath.Base(rawURL), nil
	}

	switch u.Scheme {
	case "file":
		p := u.Path
		if p == "" {
			p = u.Opaque
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, "", fmt.Errorf("read sound %s: %w", rawURL, err)
		}
		return data, p, nil
	case "http", "https":
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, "", err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return nil, "", fmt.Errorf("fetch sound %s: %w", rawURL, err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("fetch sound %s: status %d", rawURL, resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", fmt.Errorf("fetch sound %s: %w", rawURL, err)
		}
		return data, u.Path, nil
	default:
		return nil, "", fmt.Errorf("unsupported sound url scheme %q", u.Scheme)
	}
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

type wavDecoder struct{}

func (wavDecoder) Decode(r io.ReadSeeker) (*Clip, error) {
	dec := wav.NewDecoder(r)
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	if buf.Format == nil || buf.Format.NumChannels <= 0 || buf.Format.SampleRate <= 0 {
		return nil, errors.New("invalid wav header")
	}
	if buf.SourceBitDepth == 8 {
		// 8bit PCM 为无符号数
		for i, v := range buf.Data {
			buf.Data[i] = v - 128
		}
	}
	floats := buf.AsFloat32Buffer()
	return &Clip{
		SampleRate: buf.Format.SampleRate,
		Channels:   buf.Format.NumChannels,
		Samples:    floats.Data,
	}, nil
}

type mp3Decoder struct{}

func (mp3Decoder) Decode(r io.ReadSeeker) (*Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	// go-mp3 始终输出 16bit 小端立体声
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		v := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		samples[i] = float32(v) / 32768.0
	}
	return &Clip{SampleRate: dec.SampleRate(), Channels: 2, Samples: samples}, nil
}

type oggDecoder struct{}

func (oggDecoder) Decode(r io.ReadSeeker) (*Clip, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return &Clip{SampleRate: format.SampleRate, Channels: format.Channels, Samples: samples}, nil
}
