package encoder

import (
	"fmt"

	"adpcm-xq/internal/audio/config"
)

type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// New builds the encoder described by cfg.
func New(cfg config.AudioConfig) (Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("encoder: %w", err)
	}
	switch cfg.Type {
	case config.AudioCodecADPCM:
		return NewADPCMEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("encoder: %w: %s", config.ErrUnknownCodec, cfg.Type)
	}
}
