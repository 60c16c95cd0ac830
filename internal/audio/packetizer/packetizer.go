package packetizer

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
)

var ErrPayloadType = errors.New("packetizer: unexpected payload type")

// Packetizer carries one ADPCM block per RTP packet. Blocks are self
// contained, so a lost packet costs exactly one block.
type Packetizer struct {
	payloadType uint8
	clockRate   uint32
	ssrc        uint32
	sequence    uint16
	timestamp   uint32
	started     bool
}

// New creates a packetizer for the stream described by params, starting from
// a random sequence number and timestamp.
func New(params webrtc.RTPCodecParameters) *Packetizer {
	return &Packetizer{
		payloadType: uint8(params.PayloadType),
		clockRate:   params.ClockRate,
		ssrc:        rand.Uint32(),
		sequence:    uint16(rand.Uint32()),
		timestamp:   rand.Uint32(),
	}
}

// Packetize wraps block, which holds frames sample frames. The first packet
// of a stream carries the marker bit.
func (p *Packetizer) Packetize(block []byte, frames int) *rtp.Packet {
	pkt := &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    p.payloadType,
			SequenceNumber: p.sequence,
			Timestamp:      p.timestamp,
			SSRC:           p.ssrc,
			Marker:         !p.started,
		},
		Payload: block,
	}
	p.started = true
	p.sequence++
	p.timestamp += uint32(frames)
	return pkt
}

func (p *Packetizer) SSRC() uint32 {
	return p.ssrc
}

func (p *Packetizer) ClockRate() uint32 {
	return p.clockRate
}

// Depacketize parses a marshalled packet and returns its block.
func Depacketize(raw []byte, payloadType uint8) ([]byte, *rtp.Header, error) {
	var pkt rtp.Packet
	if err := pkt.Unmarshal(raw); err != nil {
		return nil, nil, fmt.Errorf("packetizer: %w", err)
	}
	if pkt.PayloadType != payloadType {
		return nil, &pkt.Header, fmt.Errorf("%w: %d", ErrPayloadType, pkt.PayloadType)
	}
	return pkt.Payload, &pkt.Header, nil
}
