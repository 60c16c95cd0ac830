package adpcm

import "errors"

var (
	// ErrInvalidParam reports a missing buffer, a non-positive count or an
	// out of range step index.
	ErrInvalidParam = errors.New("adpcm: invalid parameter")

	// ErrCorruptBlock reports a block whose header failed validation.
	// DecodeBlock itself never returns it; it signals that by producing no samples.
	ErrCorruptBlock = errors.New("adpcm: corrupt block")
)
