package convert

import (
	"encoding/binary"
)

func Float32ToInt16(src []float32) []int16 {
	dst := make([]int16, len(src))
	for i, v := range src {
		if v > 1 {
			v = 1
		} else if v < -1 {
			v = -1
		}
		dst[i] = int16(v * 32767)
	}
	return dst
}

func Int16ToFloat32(src []int16) []float32 {
	dst := make([]float32, len(src))
	for i, v := range src {
		dst[i] = float32(v) / 32767.0
	}
	return dst
}

// Int16ToBytes convert int16 sample to byte (Little Endian)
func Int16ToBytes(src []int16) []byte {
	dst := make([]byte, len(src)*2)
	for i, v := range src {
		binary.LittleEndian.PutUint16(dst[i*2:i*2+2], uint16(v))
	}
	return dst
}

// BytesToInt16 reads little endian samples; a trailing odd byte is dropped.
func BytesToInt16(src []byte) []int16 {
	dst := make([]int16, len(src)/2)
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2 : i*2+2]))
	}
	return dst
}

// Deinterleave splits frames of channels samples into one slice per channel.
// Samples of an incomplete last frame are dropped.
func Deinterleave(src []int16, channels int) [][]int16 {
	frames := len(src) / channels
	lanes := make([][]int16, channels)
	for ch := range lanes {
		lane := make([]int16, frames)
		for i := range lane {
			lane[i] = src[i*channels+ch]
		}
		lanes[ch] = lane
	}
	return lanes
}

// Interleave is the inverse of Deinterleave; all lanes must be the same length.
func Interleave(lanes [][]int16) []int16 {
	if len(lanes) == 0 {
		return nil
	}
	channels := len(lanes)
	dst := make([]int16, len(lanes[0])*channels)
	for ch, lane := range lanes {
		for i, v := range lane {
			dst[i*channels+ch] = v
		}
	}
	return dst
}
