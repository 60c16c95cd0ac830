package playback

import (
	"bytes"
	"testing"
)

func TestFillCarriesLeftovers(t *testing.T) {
	mp := &MalgoPlayback{InChan: make(chan []int16, 4)}
	mp.InChan <- []int16{1, -1, 0x0203}
	mp.InChan <- []int16{4}

	out := make([]byte, 4)
	mp.fill(out)
	if !bytes.Equal(out, []byte{1, 0, 0xFF, 0xFF}) {
		t.Fatalf("first fill = %v", out)
	}
	mp.fill(out)
	if !bytes.Equal(out, []byte{3, 2, 4, 0}) {
		t.Fatalf("second fill = %v", out)
	}
	if !mp.Idle() {
		t.Error("playback not idle after consuming every frame")
	}

	out = []byte{9, 9, 9, 9}
	mp.fill(out)
	if !bytes.Equal(out, make([]byte, 4)) || mp.underruns != 1 {
		t.Errorf("underrun fill = %v, underruns %d", out, mp.underruns)
	}
}
