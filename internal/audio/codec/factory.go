package codec

import (
	"adpcm-xq/internal/audio/codec/iface"
	"adpcm-xq/internal/audio/config"
	"adpcm-xq/internal/audio/decoder"
	"adpcm-xq/internal/audio/encoder"
)

// CreateEncoder создает encoder на основе конфигурации
func CreateEncoder(cfg config.AudioConfig) (iface.Encoder, error) {
	return encoder.New(cfg)
}

// CreateDecoder создает decoder на основе конфигурации
func CreateDecoder(cfg config.AudioConfig) (iface.Decoder, error) {
	return decoder.New(cfg)
}

// Attach builds both sides of the codec and stores them on cfg.
func Attach(cfg *config.AudioConfig) error {
	enc, err := CreateEncoder(*cfg)
	if err != nil {
		return err
	}
	dec, err := CreateDecoder(*cfg)
	if err != nil {
		return err
	}
	cfg.SetEncoderDecoder(enc, dec)
	return nil
}
