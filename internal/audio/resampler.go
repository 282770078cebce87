package audio

import (
	"fmt"
	"math"
)

// Resampler 音频重采样器接口
// 用于把解码后的 Clip 转换到输出设备的采样率
type Resampler interface {
	// Resample 重采样交错排列的 float32 PCM 数据
	// inputRate / outputRate: 采样率 (Hz)
	// channels: 声道数
	Resample(input []float32, inputRate, outputRate, channels int) ([]float32, error)
}

// LinearResampler 线性插值重采样器
// 音质一般，但对音效和背景音乐足够，且没有额外依赖
type LinearResampler struct{}

func NewLinearResampler() *LinearResampler {
	return &LinearResampler{}
}

// Resample 使用线性插值进行重采样
//
//	ratio = inputRate / outputRate
//	position = outputFrame * ratio
//	output = input[i] * (1 - frac) + input[i+1] * frac
func (r *LinearResampler) Resample(input []float32, inputRate, outputRate, channels int) ([]float32, error) {
	if inputRate <= 0 || outputRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: input=%d, output=%d", inputRate, outputRate)
	}
	if channels <= 0 {
		return nil, fmt.Errorf("invalid channels: %d", channels)
	}

	inputFrames := len(input) / channels
	if inputFrames == 0 {
		return []float32{}, nil
	}
	if inputRate == outputRate {
		out := make([]float32, inputFrames*channels)
		copy(out, input)
		return out, nil
	}

	ratio := float64(inputRate) / float64(outputRate)
	outputFrames := int(math.Ceil(float64(inputFrames) / ratio))
	output := make([]float32, outputFrames*channels)
	last := inputFrames - 1

	for outFrame := 0; outFrame < outputFrames; outFrame++ {
		position := float64(outFrame) * ratio
		inFrame := int(position)
		frac := float32(position - float64(inFrame))
		if inFrame >= last {
			inFrame = last
			frac = 0
		}
		next := inFrame + 1
		if next > last {
			next = last
		}

		for ch := 0; ch < channels; ch++ {
			a := input[inFrame*channels+ch]
			b := input[next*channels+ch]
			output[outFrame*channels+ch] = clampSample(a*(1-frac) + b*frac)
		}
	}

	return output, nil
}

func clampSample(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}
