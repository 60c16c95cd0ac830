package capture

import (
	"fmt"
	"runtime"
	"sync"

	"adpcm-xq/internal/audio/config"
	"adpcm-xq/internal/audio/convert"

	"github.com/gen2brain/malgo"
	"github.com/rs/zerolog/log"
)

// MalgoCapture records interleaved s16 frames from the default input device
// and emits them on PcmChan in chunks of FrameSamples frames, one block each.
type MalgoCapture struct {
	PcmChan chan []int16
	ctx     *malgo.AllocatedContext
	device  *malgo.Device

	pauseMutex sync.RWMutex
	paused     bool
	framer     *framer
	dropped    int
}

func NewMalgoCapture(audiocfg config.AudioConfig) (*MalgoCapture, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		log.Debug().Str("msg", msg).Msg("Malgo context message")
	})
	if err != nil {
		return nil, fmt.Errorf("failed to init malgo context: %w", err)
	}

	mc := &MalgoCapture{
		PcmChan: make(chan []int16, audiocfg.BufferSize),
		paused:  true,
		ctx:     ctx,
		framer:  newFramer(int(audiocfg.Channels) * audiocfg.FrameSamples),
	}

	capCfg := malgo.DefaultDeviceConfig(malgo.Capture)
	capCfg.Capture.Format = malgo.FormatS16
	capCfg.Capture.Channels = uint32(audiocfg.Channels)
	capCfg.SampleRate = audiocfg.SampleRate

	// alsa specific settings for linux
	if runtime.GOOS == "linux" {
		capCfg.Alsa.NoMMap = 1
	}

	onCapture := func(_, input []byte, frameCount uint32) {
		if mc.Paused() {
			return
		}
		samples := convert.BytesToInt16(input[:int(frameCount*capCfg.Capture.Channels)*2])
		for _, frame := range mc.framer.push(samples) {
			select {
			case mc.PcmChan <- frame:
			default:
				// drop frames if channel is full
				mc.dropped++
			}
		}
	}

	device, err := malgo.InitDevice(ctx.Context, capCfg, malgo.DeviceCallbacks{Data: onCapture})
	if err != nil {
		mc.Close()
		return nil, fmt.Errorf("failed to open capture device: %w", err)
	}
	mc.device = device

	if err := mc.device.Start(); err != nil {
		mc.Close()
		return nil, fmt.Errorf("failed to start capture device: %w", err)
	}

	log.Info().
		Uint32("sample_rate", audiocfg.SampleRate).
		Uint16("channels", audiocfg.Channels).
		Int("frame_samples", audiocfg.FrameSamples).
		Msg("Capture device started")
	return mc, nil
}

func (mc *MalgoCapture) Paused() bool {
	mc.pauseMutex.RLock()
	defer mc.pauseMutex.RUnlock()
	return mc.paused
}

func (mc *MalgoCapture) SetPaused(paused bool) {
	mc.pauseMutex.Lock()
	mc.paused = paused
	mc.pauseMutex.Unlock()
}

// Flush emits whatever partial frame is buffered. The encoder pads it.
func (mc *MalgoCapture) Flush() {
	if rest := mc.framer.flush(); len(rest) > 0 {
		mc.PcmChan <- rest
	}
}

func (mc *MalgoCapture) Close() {
	if mc.device != nil {
		mc.device.Uninit()
		mc.device = nil
	}
	if mc.ctx != nil {
		_ = mc.ctx.Uninit()
		mc.ctx.Free()
		mc.ctx = nil
	}
	if mc.dropped > 0 {
		log.Warn().Int("frames", mc.dropped).Msg("Capture channel was full, frames dropped")
	}
}

// framer cuts a sample stream into chunks of a fixed size.
type framer struct {
	size int
	buf  []int16
}

func newFramer(size int) *framer {
	return &framer{size: size, buf: make([]int16, 0, size*2)}
}

func (f *framer) push(samples []int16) [][]int16 {
	f.buf = append(f.buf, samples...)
	var out [][]int16
	for len(f.buf) >= f.size {
		frame := make([]int16, f.size)
		copy(frame, f.buf)
		f.buf = f.buf[f.size:]
		out = append(out, frame)
	}
	return out
}

func (f *framer) flush() []int16 {
	rest := f.buf
	f.buf = nil
	return rest
}
