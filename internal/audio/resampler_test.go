package audio

import (
	"testing"
)

func TestLinearResampler(t *testing.T) {
	r := NewLinearResampler()

	tests := []struct {
		name       string
		inputRate  int
		outputRate int
		channels   int
		frames     int
		wantFrames int
	}{
		{"upsample 8k to 16k", 8000, 16000, 1, 80, 160},
		{"downsample 48k to 16k", 48000, 16000, 2, 480, 160},
		{"same rate", 44100, 44100, 2, 100, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := make([]float32, tt.frames*tt.channels)
			for i := range input {
				input[i] = 0.5
			}
			out, err := r.Resample(input, tt.inputRate, tt.outputRate, tt.channels)
			if err != nil {
				t.Fatalf("Resample failed: %v", err)
			}
			if got := len(out) / tt.channels; got != tt.wantFrames {
				t.Fatalf("expected %d frames, got %d", tt.wantFrames, got)
			}
			for i, s := range out {
				if s != 0.5 {
					t.Fatalf("sample %d: expected 0.5, got %f", i, s)
				}
			}
		})
	}
}

func TestLinearResamplerInterpolates(t *testing.T) {
	out, err := NewLinearResampler().Resample([]float32{0, 1}, 1, 2, 1)
	if err != nil {
		t.Fatalf("Resample failed: %v", err)
	}
	want := []float32{0, 0.5, 1, 1}
	if len(out) != len(want) {
		t.Fatalf("expected %v, got %v", want, out)
	}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, out)
		}
	}
}

func TestLinearResamplerInvalidInput(t *testing.T) {
	r := NewLinearResampler()
	if _, err := r.Resample([]float32{0}, 0, 16000, 1); err == nil {
		t.Fatal("expected error for zero input rate")
	}
	if _, err := r.Resample([]float32{0}, 16000, 16000, 0); err == nil {
		t.Fatal("expected error for zero channels")
	}
	out, err := r.Resample(nil, 8000, 16000, 1)
	if err != nil || len(out) != 0 {
		t.Fatalf("expected empty output, got %v (%v)", out, err)
	}
}
