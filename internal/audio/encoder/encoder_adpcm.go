package encoder

import (
	"fmt"

	"adpcm-xq/internal/audio/adpcm"
	"adpcm-xq/internal/audio/config"
	"adpcm-xq/internal/audio/convert"

	"github.com/rs/zerolog/log"
)

// ADPCMEncoder encodes successive blocks of one stream. The block context is
// created on the first block so its step indices can be estimated from it.
type ADPCMEncoder struct {
	ctx          *adpcm.Context
	channels     int
	blockSamples int
	lookahead    int
	metric       adpcm.Metric

	frames int64 // frames received, without padding
	blocks int64
}

func NewADPCMEncoder(cfg config.AudioConfig) *ADPCMEncoder {
	return &ADPCMEncoder{
		channels:     int(cfg.Channels),
		blockSamples: cfg.BlockSamples,
		lookahead:    cfg.Lookahead,
		metric:       cfg.Metric,
	}
}

// EstimateDeltas returns the decaying average sample delta of each channel
// of interleaved pcm.
func EstimateDeltas(pcm []int16, channels int) []int32 {
	lanes := convert.Deinterleave(pcm, channels)
	deltas := make([]int32, channels)
	for ch, lane := range lanes {
		deltas[ch] = adpcm.AverageDelta(lane)
	}
	return deltas
}

// Encode encodes up to one block of interleaved frames. A short block (the
// tail of a stream) is padded with copies of its last frame up to the next
// length the block layout can hold.
func (e *ADPCMEncoder) Encode(pcm []int16) ([]byte, error) {
	if len(pcm) == 0 || len(pcm)%e.channels != 0 {
		return nil, fmt.Errorf("%w: %d samples for %d channels", adpcm.ErrInvalidParam, len(pcm), e.channels)
	}
	frames := len(pcm) / e.channels
	if frames > e.blockSamples {
		return nil, fmt.Errorf("%w: %d frames exceed block of %d", adpcm.ErrInvalidParam, frames, e.blockSamples)
	}

	if e.ctx == nil {
		ctx, err := adpcm.NewContext(e.channels, e.lookahead, EstimateDeltas(pcm, e.channels))
		if err != nil {
			return nil, err
		}
		ctx.Metric = e.metric
		e.ctx = ctx
		log.Debug().
			Int("channels", e.channels).
			Int("lookahead", e.lookahead).
			Str("metric", e.metric.String()).
			Int("initial_index", int(ctx.State(0).Index)).
			Msg("ADPCM context created")
	}

	if !adpcm.ValidBlockSamples(frames) {
		padded := PaddedFrames(frames)
		last := pcm[len(pcm)-e.channels:]
		pcm = append(pcm[:len(pcm):len(pcm)], make([]int16, (padded-frames)*e.channels)...)
		for f := frames; f < padded; f++ {
			copy(pcm[f*e.channels:], last)
		}
		log.Debug().Int("frames", frames).Int("padded", padded).Msg("Padding short block")
	}

	block, err := e.ctx.EncodeBlock(pcm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode block %d: %w", e.blocks, err)
	}
	e.frames += int64(frames)
	e.blocks++
	return block, nil
}

// PaddedFrames rounds frames up to the nearest 1+8k.
func PaddedFrames(frames int) int {
	if frames <= 1 {
		return 1
	}
	return (frames-1+adpcm.ChunkSamples-1)/adpcm.ChunkSamples*adpcm.ChunkSamples + 1
}

// Frames is the number of real (unpadded) frames encoded so far.
func (e *ADPCMEncoder) Frames() int64 {
	return e.frames
}

// Blocks is the number of blocks produced so far.
func (e *ADPCMEncoder) Blocks() int64 {
	return e.blocks
}

// Error is the accumulated search cost over all blocks, padding included.
func (e *ADPCMEncoder) Error() uint64 {
	if e.ctx == nil {
		return 0
	}
	return e.ctx.Error()
}

func (e *ADPCMEncoder) Close() {
	if e.ctx != nil {
		e.ctx.Close()
	}
}
