package adpcm

import "fmt"

// PackedSize is the number of bytes holding count codes.
func PackedSize(count int) int {
	return (count + 1) / 2
}

// Encode quantizes pcm starting from *st, two codes per byte with the low
// nibble first. The remainder of pcm after each sample is its lookahead
// window. *st is left at the state after the last sample. The second result is
// the accumulated cost of every chosen code under m.
func Encode(st *State, pcm []int16, lookahead int, m Metric) ([]byte, uint64, error) {
	switch {
	case st == nil:
		return nil, 0, fmt.Errorf("%w: nil state", ErrInvalidParam)
	case !st.Valid():
		return nil, 0, fmt.Errorf("%w: state %+v out of range", ErrInvalidParam, *st)
	case len(pcm) == 0:
		return nil, 0, fmt.Errorf("%w: no samples to encode", ErrInvalidParam)
	case lookahead < 0:
		return nil, 0, fmt.Errorf("%w: negative lookahead %d", ErrInvalidParam, lookahead)
	case !m.valid():
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidParam, m)
	}

	out := make([]byte, PackedSize(len(pcm)))
	total := encodeRun(st, pcm, len(pcm), lookahead, m, out)
	return out, total, nil
}

// Decode expands count codes from packed starting at *st. No search is done.
func Decode(st *State, packed []byte, count int) ([]int16, error) {
	switch {
	case st == nil:
		return nil, fmt.Errorf("%w: nil state", ErrInvalidParam)
	case !st.Valid():
		return nil, fmt.Errorf("%w: state %+v out of range", ErrInvalidParam, *st)
	case count <= 0:
		return nil, fmt.Errorf("%w: code count %d", ErrInvalidParam, count)
	case len(packed) < PackedSize(count):
		return nil, fmt.Errorf("%w: %d bytes cannot hold %d codes", ErrInvalidParam, len(packed), count)
	}

	out := make([]int16, count)
	decodeRun(st, packed, out, count, 1)
	return out, nil
}

// encodeRun codes the first n samples of lane into dst. The search window of
// sample i is lane[i:], so lane may extend past n to give the last codes
// something to look at.
func encodeRun(st *State, lane []int16, n, lookahead int, m Metric, dst []byte) uint64 {
	var total uint64
	for i := 0; i < n; i++ {
		code, e := ChooseCode(*st, lane[i:], lookahead, m)
		total += e
		*st, _ = Transition(*st, code)
		if i%2 == 0 {
			dst[i/2] = code
		} else {
			dst[i/2] |= code << 4
		}
	}
	return total
}

// decodeRun writes count samples to dst[0], dst[stride], dst[2*stride], ...
func decodeRun(st *State, src []byte, dst []int16, count, stride int) {
	for i := 0; i < count; i++ {
		code := src[i/2]
		if i%2 == 0 {
			code &= 0xF
		} else {
			code >>= 4
		}
		*st, dst[i*stride] = Transition(*st, code)
	}
}
