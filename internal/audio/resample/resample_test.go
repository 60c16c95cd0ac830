package resample

import (
	"errors"
	"slices"
	"testing"
)

func TestResampleSameRate(t *testing.T) {
	pcm := []int16{1, 2, 3, 4}
	out, err := Resample(pcm, 2, 44100, 44100)
	if err != nil {
		t.Fatal(err)
	}
	if !slices.Equal(out, pcm) {
		t.Errorf("Resample changed pcm at equal rates: %v", out)
	}
}

func TestResampleInvalid(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		from, to uint32
	}{
		{"zero from", 1, 0, 8000},
		{"zero to", 1, 8000, 0},
		{"no channels", 0, 8000, 16000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Resample([]int16{1}, tt.channels, tt.from, tt.to); !errors.Is(err, ErrInvalidRate) {
				t.Errorf("Resample error = %v, want ErrInvalidRate", err)
			}
		})
	}
}

func TestResampleLength(t *testing.T) {
	pcm := make([]int16, 2*4800)
	for i := range pcm {
		pcm[i] = int16(i % 200 * 50)
	}
	out, err := Resample(pcm, 2, 48000, 8000)
	if err != nil {
		t.Fatal(err)
	}
	if len(out)%2 != 0 {
		t.Fatalf("output has a partial frame: %d samples", len(out))
	}
	if frames := len(out) / 2; frames < 780 || frames > 820 {
		t.Errorf("resampled to %d frames, want about 800", frames)
	}
}
