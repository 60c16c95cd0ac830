package pipeline

import (
	"fmt"

	"adpcm-xq/internal/audio/adpcm"
	"adpcm-xq/internal/audio/encoder"

	"github.com/remeh/sizedwaitgroup"
	"github.com/rs/zerolog/log"
)

// EncodeFrames cuts interleaved pcm into blocks of blockSamples frames and
// encodes them in order. The step index carries from block to block, so this
// cannot run in parallel.
func EncodeFrames(enc encoder.Encoder, pcm []int16, channels, blockSamples int) ([][]byte, error) {
	if enc == nil {
		return nil, ErrEncoderNil
	}
	stride := channels * blockSamples
	blocks := make([][]byte, 0, (len(pcm)+stride-1)/stride)
	for start := 0; start < len(pcm); start += stride {
		block, err := enc.Encode(pcm[start:min(start+stride, len(pcm))])
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", len(blocks), err)
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

// DecodeBlocks decodes independent blocks with at most workers running at
// once and concatenates the result in block order. Corrupt blocks contribute
// no samples; their count is returned.
func DecodeBlocks(blocks [][]byte, channels, workers int) ([]int16, int, error) {
	if channels <= 0 || workers <= 0 {
		return nil, 0, fmt.Errorf("%w: %d channels, %d workers", adpcm.ErrInvalidParam, channels, workers)
	}

	decoded := make([][]int16, len(blocks))
	wg := sizedwaitgroup.New(workers)
	for i, block := range blocks {
		wg.Add()
		go func() {
			defer wg.Done()
			decoded[i] = adpcm.DecodeBlock(block, channels)
		}()
	}
	wg.Wait()

	total, skipped := 0, 0
	for i, pcm := range decoded {
		if len(pcm) == 0 {
			skipped++
			log.Warn().Int("block", i).Int("bytes", len(blocks[i])).Msg("Skipping corrupt block")
			continue
		}
		total += len(pcm)
	}
	out := make([]int16, 0, total)
	for _, pcm := range decoded {
		out = append(out, pcm...)
	}
	return out, skipped, nil
}
