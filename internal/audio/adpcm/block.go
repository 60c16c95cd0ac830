package adpcm

import (
	"encoding/binary"
	"fmt"
)

const (
	// HeaderSize is the per-channel block header: initial sample (LE), step index, reserved zero.
	HeaderSize = 4
	// ChunkSamples is the number of samples per channel packed into one chunk.
	ChunkSamples = 8
	// ChunkBytes is the packed size of one chunk.
	ChunkBytes = ChunkSamples / 2
)

// Context carries the per-channel state of a block encoder. Step indices
// carry over from one block to the next; the predicted sample restarts at
// each block's first sample.
type Context struct {
	Lookahead int
	Metric    Metric

	states []State
	err    uint64
}

// NewContext creates a block encoder for channels interleaved channels.
// initialDeltas holds an average sample delta per channel used to pick the
// starting step index; missing entries start at index 0.
func NewContext(channels, lookahead int, initialDeltas []int32) (*Context, error) {
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d", ErrInvalidParam, channels)
	}
	if lookahead < 0 {
		return nil, fmt.Errorf("%w: negative lookahead %d", ErrInvalidParam, lookahead)
	}
	states := make([]State, channels)
	for ch := range states {
		if ch < len(initialDeltas) {
			states[ch].Index = IndexForDelta(initialDeltas[ch])
		}
	}
	return &Context{Lookahead: lookahead, Metric: MetricSquared, states: states}, nil
}

// Channels returns the channel count, or 0 after Close.
func (c *Context) Channels() int {
	return len(c.states)
}

// State returns the current state of channel ch.
func (c *Context) State(ch int) State {
	return c.states[ch]
}

// Error returns the accumulated cost of every block encoded so far.
func (c *Context) Error() uint64 {
	return c.err
}

// Close drops the per-channel state. The context cannot encode afterwards.
func (c *Context) Close() {
	c.states = nil
}

// ValidBlockSamples reports whether n samples per channel fill whole chunks
// after the header sample.
func ValidBlockSamples(n int) bool {
	return n > 0 && (n-1)%ChunkSamples == 0
}

// BlockSize is the encoded size of a block of samples samples per channel.
func BlockSize(channels, samples int) int {
	return channels*HeaderSize + (samples-1)/ChunkSamples*ChunkBytes*channels
}

// SamplesPerBlock is the number of samples per channel held by a block of
// blockSize bytes, or 0 if blockSize cannot hold the headers.
func SamplesPerBlock(channels, blockSize int) int {
	if channels <= 0 || blockSize < channels*HeaderSize {
		return 0
	}
	rows := (blockSize - channels*HeaderSize) / (channels * ChunkBytes)
	return 1 + rows*ChunkSamples
}

// EncodeBlock encodes interleaved pcm into one self-contained block. Each
// channel must carry 1+8k samples.
func (c *Context) EncodeBlock(pcm []int16) ([]byte, error) {
	channels := len(c.states)
	switch {
	case channels == 0:
		return nil, fmt.Errorf("%w: context is closed", ErrInvalidParam)
	case len(pcm) == 0 || len(pcm)%channels != 0:
		return nil, fmt.Errorf("%w: %d samples for %d channels", ErrInvalidParam, len(pcm), channels)
	case c.Lookahead < 0:
		return nil, fmt.Errorf("%w: negative lookahead %d", ErrInvalidParam, c.Lookahead)
	case !c.Metric.valid():
		return nil, fmt.Errorf("%w: %v", ErrInvalidParam, c.Metric)
	}
	n := len(pcm) / channels
	if !ValidBlockSamples(n) {
		return nil, fmt.Errorf("%w: %d samples per channel, want 1+8k", ErrInvalidParam, n)
	}

	lanes := make([][]int16, channels)
	for ch := range lanes {
		lane := make([]int16, n)
		for i := range lane {
			lane[i] = pcm[i*channels+ch]
		}
		lanes[ch] = lane
	}

	out := make([]byte, BlockSize(channels, n))
	for ch, lane := range lanes {
		c.states[ch].Sample = int32(lane[0])
		hdr := out[ch*HeaderSize:]
		binary.LittleEndian.PutUint16(hdr, uint16(lane[0]))
		hdr[2] = byte(c.states[ch].Index)
		hdr[3] = 0
	}

	p := channels * HeaderSize
	for base := 1; base < n; base += ChunkSamples {
		for ch, lane := range lanes {
			c.err += encodeRun(&c.states[ch], lane[base:], ChunkSamples, c.Lookahead, c.Metric, out[p:p+ChunkBytes])
			p += ChunkBytes
		}
	}
	return out, nil
}

// DecodeBlock decodes one block of interleaved channels. A header with a
// nonzero reserved byte or a step index above MaxIndex, or a block too short
// for its headers, yields no samples so the caller can skip to the next
// block. Trailing bytes that do not form a complete chunk row are ignored.
func DecodeBlock(block []byte, channels int) []int16 {
	if channels <= 0 || len(block) < channels*HeaderSize {
		return nil
	}

	states := make([]State, channels)
	for ch := range states {
		hdr := block[ch*HeaderSize : (ch+1)*HeaderSize]
		if hdr[3] != 0 || hdr[2] > MaxIndex {
			return nil
		}
		states[ch] = State{
			Sample: int32(int16(binary.LittleEndian.Uint16(hdr))),
			Index:  int8(hdr[2]),
		}
	}

	n := SamplesPerBlock(channels, len(block))
	out := make([]int16, n*channels)
	for ch, st := range states {
		out[ch] = int16(st.Sample)
	}

	p := channels * HeaderSize
	for base := 1; base < n; base += ChunkSamples {
		for ch := range states {
			decodeRun(&states[ch], block[p:p+ChunkBytes], out[base*channels+ch:], ChunkSamples, channels)
			p += ChunkBytes
		}
	}
	return out
}
