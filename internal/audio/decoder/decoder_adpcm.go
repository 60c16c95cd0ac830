package decoder

import (
	"fmt"

	"adpcm-xq/internal/audio/adpcm"
)

type ADPCMDecoder struct {
	channels int
}

func NewADPCMDecoder(channels int) *ADPCMDecoder {
	return &ADPCMDecoder{channels: channels}
}

// Decode decodes one block to interleaved PCM. A block with a bad header
// yields ErrCorruptBlock; the decoder keeps no state between blocks, so the
// next block decodes normally.
func (d *ADPCMDecoder) Decode(block []byte) ([]int16, error) {
	pcm := adpcm.DecodeBlock(block, d.channels)
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: %d bytes, %d channels", adpcm.ErrCorruptBlock, len(block), d.channels)
	}
	return pcm, nil
}

func (d *ADPCMDecoder) Channels() int {
	return d.channels
}
