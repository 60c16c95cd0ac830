package decoder

import (
	"fmt"

	"adpcm-xq/internal/audio/config"
)

type Decoder interface {
	Decode(encoded []byte) ([]int16, error)
}

func New(cfg config.AudioConfig) (Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("decoder: %w", err)
	}
	switch cfg.Type {
	case config.AudioCodecADPCM:
		return NewADPCMDecoder(int(cfg.Channels)), nil
	default:
		return nil, fmt.Errorf("decoder: %w: %s", config.ErrUnknownCodec, cfg.Type)
	}
}
