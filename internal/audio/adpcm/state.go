// Package adpcm implements a 4-bit IMA ADPCM codec whose quantizer searches
// a bounded number of future samples for the code sequence with the least
// cumulative error.
package adpcm

import "fmt"

// State is the per-channel quantizer state shared by encoder and decoder.
type State struct {
	Sample int32 // last reconstructed sample, always within int16 range
	Index  int8  // position in StepTable
}

// Valid reports whether s satisfies the range invariants.
func (s State) Valid() bool {
	return s.Index >= 0 && s.Index <= MaxIndex &&
		s.Sample >= -32768 && s.Sample <= 32767
}

// Step returns the quantizer step size currently in effect.
func (s State) Step() int32 {
	return StepTable[s.Index]
}

// Transition applies one code to s and returns the next state together with
// the reconstructed sample. Encoding and decoding both go through here so the
// encoder always tracks exactly what a decoder will produce.
func Transition(s State, code byte) (State, int16) {
	step := StepTable[s.Index]
	delta := step >> 3
	if code&1 != 0 {
		delta += step >> 2
	}
	if code&2 != 0 {
		delta += step >> 1
	}
	if code&4 != 0 {
		delta += step
	}
	if code&8 != 0 {
		delta = -delta
	}

	next := State{
		Sample: clampSample(s.Sample + delta),
		Index:  clampIndex(int32(s.Index) + int32(IndexTable[code&7])),
	}
	return next, int16(next.Sample)
}

// InitEncode seeds an encoder state from the first samples of a run. The
// predicted sample is seed[0]; the step index is estimated from a decaying
// average of the absolute sample-to-sample differences.
func InitEncode(seed []int16) (State, error) {
	if len(seed) == 0 {
		return State{}, fmt.Errorf("%w: empty seed", ErrInvalidParam)
	}
	return State{Sample: int32(seed[0]), Index: IndexForDelta(AverageDelta(seed))}, nil
}

// InitDecode builds a decoder state from a known sample and step index.
func InitDecode(sample int16, index int8) (State, error) {
	if index < 0 || index > MaxIndex {
		return State{}, fmt.Errorf("%w: step index %d out of range [0,%d]", ErrInvalidParam, index, MaxIndex)
	}
	return State{Sample: int32(sample), Index: index}, nil
}

// AverageDelta walks pcm backwards keeping a decaying average of the absolute
// first differences, weighted toward the start of the run.
func AverageDelta(pcm []int16) int32 {
	var avg int32
	for i := len(pcm) - 1; i > 0; i-- {
		d := int32(pcm[i]) - int32(pcm[i-1])
		if d < 0 {
			d = -d
		}
		avg -= avg / 8
		avg += d
	}
	return avg / 8
}

// IndexForDelta maps an average sample delta to the step index whose step
// size is nearest to it.
func IndexForDelta(avgDelta int32) int8 {
	for i := 0; i < MaxIndex; i++ {
		if avgDelta < (StepTable[i]+StepTable[i+1])/2 {
			return int8(i)
		}
	}
	return MaxIndex
}

func clampSample(v int32) int32 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return v
}

func clampIndex(v int32) int8 {
	if v > MaxIndex {
		return MaxIndex
	}
	if v < 0 {
		return 0
	}
	return int8(v)
}
