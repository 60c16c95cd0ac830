package adpcm

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func interleave(lanes ...[]int16) []int16 {
	out := make([]int16, 0, len(lanes)*len(lanes[0]))
	for i := range lanes[0] {
		for _, lane := range lanes {
			out = append(out, lane[i])
		}
	}
	return out
}

// parseBlock walks the documented layout by hand and replays the codes.
func parseBlock(t *testing.T, block []byte, channels, n int) []int16 {
	t.Helper()
	states := make([]State, channels)
	out := make([]int16, n*channels)
	for ch := range states {
		hdr := block[ch*4:]
		if hdr[3] != 0 {
			t.Fatalf("channel %d reserved byte = %#x", ch, hdr[3])
		}
		states[ch] = State{Sample: int32(int16(binary.LittleEndian.Uint16(hdr))), Index: int8(hdr[2])}
		out[ch] = int16(states[ch].Sample)
	}
	p := channels * 4
	for row := 0; row < (n-1)/8; row++ {
		for ch := range states {
			for i := 0; i < 8; i++ {
				code := block[p+i/2] >> (4 * (i % 2)) & 0xF
				var s int16
				states[ch], s = Transition(states[ch], code)
				out[(1+row*8+i)*channels+ch] = s
			}
			p += 4
		}
	}
	return out
}

func TestBlockRoundTrip(t *testing.T) {
	tests := []struct {
		name      string
		channels  int
		samples   int
		lookahead int
	}{
		{"mono_greedy", 1, 505, 0},
		{"mono_lookahead", 1, 129, 3},
		{"stereo", 2, 249, 2},
		{"four_channels", 4, 65, 1},
		{"header_only", 2, 1, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lanes := make([][]int16, tt.channels)
			deltas := make([]int32, tt.channels)
			for ch := range lanes {
				lanes[ch] = sine(tt.samples, 200+float64(ch)*350, 6000+float64(ch)*4000)
				deltas[ch] = AverageDelta(lanes[ch])
			}
			pcm := interleave(lanes...)

			ctx, err := NewContext(tt.channels, tt.lookahead, deltas)
			if err != nil {
				t.Fatal(err)
			}
			block, err := ctx.EncodeBlock(pcm)
			if err != nil {
				t.Fatalf("EncodeBlock: %v", err)
			}
			if len(block) != BlockSize(tt.channels, tt.samples) {
				t.Fatalf("block is %d bytes, want %d", len(block), BlockSize(tt.channels, tt.samples))
			}
			if got := SamplesPerBlock(tt.channels, len(block)); got != tt.samples {
				t.Fatalf("SamplesPerBlock = %d, want %d", got, tt.samples)
			}

			decoded := DecodeBlock(block, tt.channels)
			want := parseBlock(t, block, tt.channels, tt.samples)
			if len(decoded) != len(want) {
				t.Fatalf("decoded %d samples, want %d", len(decoded), len(want))
			}
			for i := range want {
				if decoded[i] != want[i] {
					t.Fatalf("sample %d = %d, want %d", i, decoded[i], want[i])
				}
			}
			for ch := 0; ch < tt.channels; ch++ {
				if decoded[ch] != lanes[ch][0] {
					t.Errorf("channel %d header sample = %d, want %d", ch, decoded[ch], lanes[ch][0])
				}
				last := decoded[(tt.samples-1)*tt.channels+ch]
				if int32(last) != ctx.State(ch).Sample {
					t.Errorf("channel %d last sample %d, encoder state %+v", ch, last, ctx.State(ch))
				}
			}
		})
	}
}

func TestBlockMatchesStreamEncoding(t *testing.T) {
	lane := sine(257, 900, 15000)
	for lookahead := 0; lookahead <= 3; lookahead++ {
		ctx, err := NewContext(1, lookahead, []int32{AverageDelta(lane)})
		if err != nil {
			t.Fatal(err)
		}
		startIndex := ctx.State(0).Index
		block, err := ctx.EncodeBlock(lane)
		if err != nil {
			t.Fatal(err)
		}

		st := State{Sample: int32(lane[0]), Index: startIndex}
		payload, total, err := Encode(&st, lane[1:], lookahead, MetricSquared)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(block[HeaderSize:], payload) {
			t.Fatalf("lookahead %d: mono block payload differs from stream encoding", lookahead)
		}
		if ctx.Error() != total {
			t.Errorf("lookahead %d: context error %d, stream error %d", lookahead, ctx.Error(), total)
		}
	}
}

func TestBlockIndexCarriesOver(t *testing.T) {
	loud := sine(33, 2500, 30000)
	ctx, err := NewContext(1, 2, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ctx.EncodeBlock(loud); err != nil {
		t.Fatal(err)
	}
	carried := ctx.State(0).Index
	if carried == 0 {
		t.Fatal("step index did not adapt to a loud block")
	}
	second, err := ctx.EncodeBlock(loud)
	if err != nil {
		t.Fatal(err)
	}
	if int8(second[2]) != carried {
		t.Errorf("second block header index = %d, want carried index %d", second[2], carried)
	}
	if int16(binary.LittleEndian.Uint16(second)) != loud[0] {
		t.Errorf("second block header sample not reset to first sample")
	}
}

func TestEncodeBlockInvalid(t *testing.T) {
	ctx, err := NewContext(2, 1, nil)
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		pcm  []int16
	}{
		{"empty", nil},
		{"channel_mismatch", make([]int16, 17)},
		{"partial_chunk", make([]int16, 2*12)},
		{"no_header_sample", make([]int16, 2*8)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ctx.EncodeBlock(tt.pcm); !errors.Is(err, ErrInvalidParam) {
				t.Errorf("EncodeBlock error = %v, want ErrInvalidParam", err)
			}
		})
	}

	ctx.Close()
	if _, err := ctx.EncodeBlock(make([]int16, 2*9)); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("EncodeBlock after Close error = %v, want ErrInvalidParam", err)
	}

	if _, err := NewContext(0, 1, nil); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("NewContext(0 channels) error = %v", err)
	}
	if _, err := NewContext(1, -1, nil); !errors.Is(err, ErrInvalidParam) {
		t.Errorf("NewContext(negative lookahead) error = %v", err)
	}
}

func TestDecodeBlockRejectsCorruptHeader(t *testing.T) {
	lanes := [][]int16{sine(41, 300, 5000), sine(41, 500, 7000)}
	ctx, _ := NewContext(2, 1, nil)
	block, err := ctx.EncodeBlock(interleave(lanes...))
	if err != nil {
		t.Fatal(err)
	}
	if DecodeBlock(block, 2) == nil {
		t.Fatal("valid block rejected")
	}

	tests := []struct {
		name   string
		mutate func(b []byte)
	}{
		{"reserved_nonzero", func(b []byte) { b[3] = 1 }},
		{"second_channel_reserved", func(b []byte) { b[7] = 0x80 }},
		{"index_89", func(b []byte) { b[2] = 89 }},
		{"index_255", func(b []byte) { b[6] = 255 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			corrupt := bytes.Clone(block)
			tt.mutate(corrupt)
			if got := DecodeBlock(corrupt, 2); len(got) != 0 {
				t.Errorf("DecodeBlock returned %d samples for a corrupt block", len(got))
			}
		})
	}

	if got := DecodeBlock(block[:7], 2); len(got) != 0 {
		t.Errorf("truncated header decoded to %d samples", len(got))
	}
	if got := DecodeBlock(block, 0); len(got) != 0 {
		t.Errorf("zero channels decoded to %d samples", len(got))
	}
	// a partial trailing row is dropped, the rest still decodes
	if got := DecodeBlock(block[:len(block)-3], 2); len(got) != 2*33 {
		t.Errorf("block with partial last row decoded to %d samples, want %d", len(got), 2*33)
	}
}
