package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	"adpcm-xq/internal/audio/adpcm"
	"adpcm-xq/internal/audio/codec/iface"
	"adpcm-xq/internal/audio/convert"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

type AudioConfigType string

func (ac AudioConfigType) String() string {
	return string(ac)
}

const (
	SampleRateADPCM = 44100
	ChannelsADPCM   = 1

	DefaultLookahead = 3
	MaxLookahead     = 8

	MinBlockSize = 256   // bytes, smallest power of two block accepted
	MaxBlockSize = 32768 // bytes

	// dynamic RTP payload type used when blocks are packetized
	PayloadTypeADPCM = 96
	MimeTypeADPCM    = "audio/X-ADPCM-XQ"

	JitterBufferSize = 2 // blocks to buffer before playback starts

	AudioCodecADPCM AudioConfigType = "adpcm"
)

var (
	ErrUnknownCodec  = errors.New("unknown codec type")
	ErrInvalidConfig = errors.New("invalid audio config")
)

type AudioConfig struct {
	SampleRate   uint32
	Channels     uint16
	BlockSize    int // bytes per encoded block
	BlockSamples int // samples per channel per block, always 1+8k
	FrameSamples int // samples per channel per capture/playback frame
	Lookahead    int
	Metric       adpcm.Metric
	Workers      int // parallel block decoders
	BufferSize   int // channel buffer size in frames
	Type         AudioConfigType
	PayloadType  uint8
	MimeType     string
	Encoder      iface.Encoder
	Decoder      iface.Decoder
}

// DefaultBlockSize is the block size in bytes ADPCM-XQ picks for a stream:
// 256 bytes per channel, scaled up for rates above 11kHz.
func DefaultBlockSize(sampleRate uint32, channels uint16) int {
	scale := 1
	if sampleRate >= 11000 {
		scale = int(sampleRate / 11000)
	}
	return 256 * int(channels) * scale
}

// NewADPCMConfig creates AudioConfig for the lookahead ADPCM codec
func NewADPCMConfig(sampleRate uint32, channels uint16) AudioConfig {
	blockSize := DefaultBlockSize(sampleRate, channels)
	blockSamples := adpcm.SamplesPerBlock(int(channels), blockSize)
	log.Debug().
		Uint32("sample_rate", sampleRate).
		Uint16("channels", channels).
		Int("block_size", blockSize).
		Int("block_samples", blockSamples).
		Msg("Using ADPCM config")
	return AudioConfig{
		SampleRate:   sampleRate,
		Channels:     channels,
		BlockSize:    blockSize,
		BlockSamples: blockSamples,
		FrameSamples: blockSamples,
		Lookahead:    DefaultLookahead,
		Metric:       adpcm.MetricSquared,
		Workers:      runtime.NumCPU(),
		BufferSize:   300,
		Type:         AudioCodecADPCM,
		PayloadType:  PayloadTypeADPCM,
		MimeType:     MimeTypeADPCM,
	}
}

// SetBlockSize changes the block size in bytes and the derived samples per block.
func (ac *AudioConfig) SetBlockSize(blockSize int) {
	ac.BlockSize = blockSize
	ac.BlockSamples = adpcm.SamplesPerBlock(int(ac.Channels), blockSize)
	ac.FrameSamples = ac.BlockSamples
}

// Validate checks the config before any codec is built from it.
func (ac AudioConfig) Validate() error {
	switch {
	case ac.Type != AudioCodecADPCM:
		return fmt.Errorf("%w: %q", ErrUnknownCodec, ac.Type)
	case ac.SampleRate == 0:
		return fmt.Errorf("%w: sample rate is zero", ErrInvalidConfig)
	case ac.Channels == 0:
		return fmt.Errorf("%w: no channels", ErrInvalidConfig)
	case ac.BlockSize < MinBlockSize || ac.BlockSize > MaxBlockSize:
		return fmt.Errorf("%w: block size %d outside [%d,%d]", ErrInvalidConfig, ac.BlockSize, MinBlockSize, MaxBlockSize)
	case !convert.IsBlockSizeValid(int(ac.Channels), ac.BlockSize):
		return fmt.Errorf("%w: block size %d is not whole chunk rows for %d channels", ErrInvalidConfig, ac.BlockSize, ac.Channels)
	case !adpcm.ValidBlockSamples(ac.BlockSamples) || adpcm.BlockSize(int(ac.Channels), ac.BlockSamples) > ac.BlockSize:
		return fmt.Errorf("%w: %d samples per block does not fit %d bytes", ErrInvalidConfig, ac.BlockSamples, ac.BlockSize)
	case ac.Lookahead < 0 || ac.Lookahead > MaxLookahead:
		return fmt.Errorf("%w: lookahead %d outside [0,%d]", ErrInvalidConfig, ac.Lookahead, MaxLookahead)
	case ac.Workers <= 0:
		return fmt.Errorf("%w: workers %d", ErrInvalidConfig, ac.Workers)
	}
	return nil
}

// CodecParameters describes the stream for RTP transport.
func (ac AudioConfig) CodecParameters() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    ac.MimeType,
			ClockRate:   ac.SampleRate,
			Channels:    ac.Channels,
			SDPFmtpLine: fmt.Sprintf("block-size=%d;samples-per-block=%d", ac.BlockSize, ac.BlockSamples),
		},
		PayloadType: webrtc.PayloadType(ac.PayloadType),
	}
}

// FromEnv overlays ADPCM_* environment variables on cfg. Unset variables keep
// the current value.
func FromEnv(cfg AudioConfig) (AudioConfig, error) {
	if v := os.Getenv("ADPCM_LOOKAHEAD"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("ADPCM_LOOKAHEAD: %w", err)
		}
		cfg.Lookahead = n
	}
	if v := os.Getenv("ADPCM_BLOCK_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("ADPCM_BLOCK_SIZE: %w", err)
		}
		cfg.SetBlockSize(n)
	}
	if v := os.Getenv("ADPCM_METRIC"); v != "" {
		m, err := adpcm.ParseMetric(v)
		if err != nil {
			return cfg, fmt.Errorf("ADPCM_METRIC: %w", err)
		}
		cfg.Metric = m
	}
	if v := os.Getenv("ADPCM_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return cfg, fmt.Errorf("ADPCM_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	return cfg, nil
}

// SetEncoderDecoder sets the encoder and decoder for the audio config
func (ac *AudioConfig) SetEncoderDecoder(enc iface.Encoder, dec iface.Decoder) {
	ac.Encoder = enc
	ac.Decoder = dec
}
