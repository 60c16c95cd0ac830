package playback

import (
	"fmt"
	"sync"

	"adpcm-xq/internal/audio/config"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"
)

// MalgoPlayback plays interleaved s16 frames received on InChan. Frames do
// not need to match the device period; leftovers carry into the next callback.
type MalgoPlayback struct {
	InChan chan []int16
	device *malgo.Device
	ctx    *malgo.AllocatedContext

	pauseMutex sync.RWMutex
	paused     bool
	pending    []int16
	underruns  int
}

func (mp *MalgoPlayback) Close() {
	if mp.device != nil {
		mp.device.Uninit()
		mp.device = nil
	}
	if mp.ctx != nil {
		_ = mp.ctx.Uninit()
		mp.ctx.Free()
		mp.ctx = nil
	}
	if mp.underruns > 0 {
		log.Debug().Int("underruns", mp.underruns).Msg("Playback closed")
	}
}

func NewMalgoPlayback(audiocfg config.AudioConfig) (*MalgoPlayback, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug().Str("msg", msg).Msg("Malgo context message")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %w", err)
	}

	mp := &MalgoPlayback{
		InChan: make(chan []int16, audiocfg.BufferSize),
		paused: true,
		ctx:    ctx,
	}

	playCfg := malgo.DefaultDeviceConfig(malgo.Playback)
	playCfg.Playback.Format = malgo.FormatS16
	playCfg.Playback.Channels = uint32(audiocfg.Channels)
	playCfg.SampleRate = audiocfg.SampleRate

	onPlay := func(pOutputSamples, _ []byte, _ uint32) {
		if mp.Paused() {
			clear(pOutputSamples)
			return
		}
		mp.fill(pOutputSamples)
	}

	playDev, err := malgo.InitDevice(ctx.Context, playCfg, malgo.DeviceCallbacks{Data: onPlay})
	if err != nil {
		mp.Close()
		return nil, fmt.Errorf("failed to open playback device: %w", err)
	}
	mp.device = playDev

	if err := mp.device.Start(); err != nil {
		mp.Close()
		return nil, fmt.Errorf("failed to start playback device: %w", err)
	}

	log.Info().
		Uint32("sample_rate", audiocfg.SampleRate).
		Uint16("channels", audiocfg.Channels).
		Msg("Playback device started")
	return mp, nil
}

func (mp *MalgoPlayback) Paused() bool {
	mp.pauseMutex.RLock()
	defer mp.pauseMutex.RUnlock()
	return mp.paused
}

func (mp *MalgoPlayback) SetPaused(paused bool) {
	mp.pauseMutex.Lock()
	mp.paused = paused
	mp.pauseMutex.Unlock()
}

// Idle reports whether nothing is queued or pending.
func (mp *MalgoPlayback) Idle() bool {
	mp.pauseMutex.RLock()
	defer mp.pauseMutex.RUnlock()
	return len(mp.InChan) == 0 && len(mp.pending) == 0
}

// fill writes little endian samples into out, pulling frames from InChan
// as needed, and pads with silence when nothing is available.
func (mp *MalgoPlayback) fill(out []byte) {
	mp.pauseMutex.Lock()
	defer mp.pauseMutex.Unlock()

	n := 0
	for n+1 < len(out) {
		if len(mp.pending) == 0 {
			select {
			case frame := <-mp.InChan:
				mp.pending = frame
				continue
			default:
			}
			mp.underruns++
			break
		}
		sample := mp.pending[0]
		mp.pending = mp.pending[1:]
		out[n] = byte(sample)        // low byte
		out[n+1] = byte(sample >> 8) // high byte
		n += 2
	}
	// fill remaining buffer with silence
	clear(out[n:])
}
