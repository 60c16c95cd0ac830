// Package resample converts interleaved PCM between sample rates with
// libsamplerate.
package resample

import (
	"errors"
	"fmt"

	"adpcm-xq/internal/audio/convert"

	"github.com/dh1tw/gosamplerate"
)

var ErrInvalidRate = errors.New("invalid sample rate")

// Quality is the libsamplerate converter used by Resample.
var Quality = gosamplerate.SRC_SINC_MEDIUM_QUALITY

// Resample converts interleaved pcm from one rate to another. Matching rates
// return pcm unchanged.
func Resample(pcm []int16, channels int, from, to uint32) ([]int16, error) {
	if from == 0 || to == 0 || channels <= 0 {
		return nil, fmt.Errorf("%w: %d -> %d Hz, %d channels", ErrInvalidRate, from, to, channels)
	}
	if from == to || len(pcm) == 0 {
		return pcm, nil
	}

	ratio := float64(to) / float64(from)
	out, err := gosamplerate.Simple(convert.Int16ToFloat32(pcm), ratio, channels, Quality)
	if err != nil {
		return nil, fmt.Errorf("failed to resample %d -> %d Hz: %w", from, to, err)
	}
	// keep whole frames only
	out = out[:len(out)/channels*channels]
	return convert.Float32ToInt16(out), nil
}
