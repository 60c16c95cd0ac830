package pipeline

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"adpcm-xq/internal/audio/config"
	"adpcm-xq/internal/audio/decoder"
	"adpcm-xq/internal/audio/encoder"
	"adpcm-xq/internal/audio/packetizer"

	"github.com/pion/rtp"
	"github.com/rs/zerolog/log"
)

// AddOnPipe adds a processing function to the pipeline.
// q - quit channel to stop the processing
// f - processing function
// in - input channel
// chanBuffer - buffer size for the output channel
// returns output channel (можно добвалять доп обработку по кодированию напрмиер)
func AddOnPipe[X, Y any](q <-chan struct{}, f func(X) Y, in <-chan X, chanBuffer int) chan Y {
	out := make(chan Y, chanBuffer)
	go func() {
		defer close(out)
		for {
			select {
			case <-q:
				return
			case data, ok := <-in:
				if !ok {
					return
				}
				result := f(data)
				select {
				case out <- result:
				default: // if out channel is full, drop the data
					log.Warn().Msg("Dropping data in pipeline stage")
				}
			}
		}

	}()
	return out
}

var (
	ErrEncoderNil = errors.New("encoder cannot be nil")
	ErrDecoderNil = errors.New("decoder cannot be nil")
)

type AudioPipeline struct {
	encoder    encoder.Encoder
	decoder    decoder.Decoder
	packetizer *packetizer.Packetizer
	channels   int
	blockTime  time.Duration

	QuitSend chan struct{}
	QuitRecv chan struct{}
	quitOnce sync.Once

	//jitterBuffer
	jitterBuffer      [][]int16
	jitterBufferMutex sync.Mutex
	minBufferSize     int
	maxBufferSize     int
	draining          bool

	sent    atomic.Int64
	skipped atomic.Int64
}

// создает новый аудио пайплайн с заданными параметрами, еще не стартовавший
func NewAudioPipeline(audiocfg config.AudioConfig) (*AudioPipeline, error) {
	encoder, err := encoder.New(audiocfg)
	if err != nil {
		return nil, err
	}
	decoder, err := decoder.New(audiocfg)
	if err != nil {
		return nil, err
	}

	blockTime := time.Duration(audiocfg.BlockSamples) * time.Second / time.Duration(audiocfg.SampleRate)
	ap := &AudioPipeline{
		encoder:       encoder,
		decoder:       decoder,
		packetizer:    packetizer.New(audiocfg.CodecParameters()),
		channels:      int(audiocfg.Channels),
		blockTime:     blockTime,
		QuitSend:      make(chan struct{}),
		QuitRecv:      make(chan struct{}),
		jitterBuffer:  make([][]int16, 0, config.JitterBufferSize*3),
		minBufferSize: config.JitterBufferSize,
		maxBufferSize: config.JitterBufferSize * 3,
	}
	return ap, nil
}

// StartSending encodes frames of one block each and packetizes them.
// capture -> encode -> packetize
// out is closed when frames is closed or the pipeline stops.
func (p *AudioPipeline) StartSending(frames <-chan []int16, out chan<- *rtp.Packet) {
	defer log.Debug().Int64("blocks", p.sent.Load()).Msg("Sending pipeline stopped")
	defer close(out)

	for {
		select {
		case <-p.QuitSend:
			return
		case pcm, ok := <-frames:
			if !ok {
				return
			}
			block, err := p.Encode(pcm)
			if err != nil {
				log.Error().Err(err).Msg("Encode failed")
				if errors.Is(err, ErrEncoderNil) {
					return
				}
				continue
			}
			pkt := p.packetizer.Packetize(block, len(pcm)/p.channels)
			select {
			case out <- pkt:
				p.sent.Add(1)
			case <-p.QuitSend:
				return
			}
		}
	}
}

func (p *AudioPipeline) Encode(pcm []int16) ([]byte, error) {
	if p.encoder == nil {
		return nil, ErrEncoderNil
	}
	encoded, err := p.encoder.Encode(pcm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode pcm: %w", err)
	}
	return encoded, nil
}

// StartReceiving decodes incoming packets and paces the decoded blocks out
// through the jitter buffer. Corrupt blocks are skipped.
// receive -> decode -> playback
func (p *AudioPipeline) StartReceiving(in <-chan *rtp.Packet, out chan<- []int16) {
	log.Debug().Msg("Processing incoming ADPCM stream...")
	defer log.Debug().Int64("skipped", p.skipped.Load()).Msg("Receiving pipeline stopped")

	// run jitter buffer manager
	done := make(chan struct{})
	go func() {
		defer close(done)
		p.manageJitterBuffer(out)
	}()
	defer func() {
		p.jitterBufferMutex.Lock()
		p.draining = true
		p.jitterBufferMutex.Unlock()
		<-done
	}()

	for {
		select {
		case <-p.QuitRecv:
			return
		case pkt, ok := <-in:
			if !ok {
				return
			}
			decoded, err := p.Decode(pkt.Payload)
			if err != nil {
				if errors.Is(err, ErrDecoderNil) {
					log.Error().Err(err).Msg("Decode failed")
					return
				}
				p.skipped.Add(1)
				log.Warn().
					Err(err).
					Uint16("seq", pkt.SequenceNumber).
					Msg("Skipping corrupt block")
				continue
			}
			p.addToJitterBuffer(decoded)
		}
	}
}

func (p *AudioPipeline) Decode(data []byte) ([]int16, error) {
	if p.decoder == nil {
		return nil, ErrDecoderNil
	}
	decoded, err := p.decoder.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	return decoded, nil
}

// addToJitterBuffer adds a frame to the jitter buffer with overflow protection
func (p *AudioPipeline) addToJitterBuffer(frame []int16) {
	p.jitterBufferMutex.Lock()
	defer p.jitterBufferMutex.Unlock()

	// add one frame to buffer
	p.jitterBuffer = append(p.jitterBuffer, frame)

	if len(p.jitterBuffer) > p.maxBufferSize {
		log.Warn().Int("frames", len(p.jitterBuffer)).Msg("Jitter buffer overflow, dropping old frames")
		// remove old frames
		excess := len(p.jitterBuffer) - p.maxBufferSize
		p.jitterBuffer = p.jitterBuffer[excess:]
	}
}

// sends frames from jitter buffer to out once per block duration; closes out
// after the receiver stopped and the buffer ran empty
func (p *AudioPipeline) manageJitterBuffer(out chan<- []int16) {
	defer close(out)
	ticker := time.NewTicker(p.blockTime)
	defer ticker.Stop()

	for {
		select {
		case <-p.QuitRecv:
			return
		case <-ticker.C:
			p.jitterBufferMutex.Lock()

			bufferLen := len(p.jitterBuffer)
			draining := p.draining

			if bufferLen == 0 && draining {
				p.jitterBufferMutex.Unlock()
				return
			}
			// wait minimal buffer size
			if bufferLen == 0 || bufferLen < p.minBufferSize && !draining {
				p.jitterBufferMutex.Unlock()
				continue
			}

			// get one frame from buffer
			frame := p.jitterBuffer[0]
			p.jitterBuffer = p.jitterBuffer[1:]

			p.jitterBufferMutex.Unlock()

			select {
			case out <- frame:
			case <-p.QuitRecv:
				return
			}
		}
	}
}

// Sent is the number of packets handed to the sending output.
func (p *AudioPipeline) Sent() int64 {
	return p.sent.Load()
}

// Skipped is the number of corrupt blocks dropped by the receiver.
func (p *AudioPipeline) Skipped() int64 {
	return p.skipped.Load()
}

func (p *AudioPipeline) Close() {
	p.quitOnce.Do(func() {
		close(p.QuitSend)
		close(p.QuitRecv)
		if c, ok := p.encoder.(interface{ Close() }); ok {
			c.Close()
		}
	})
}
