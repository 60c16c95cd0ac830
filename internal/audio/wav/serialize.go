package wav

import (
	"encoding/binary"
	"io"

	"adpcm-xq/internal/audio/convert"
)

// NewPCM wraps interleaved 16-bit samples.
func NewPCM(sampleRate uint32, channels uint16, pcm []int16) *Wave {
	return &Wave{
		Header: Header{
			Format:        FormatPCM,
			Channels:      channels,
			SampleRate:    sampleRate,
			ByteRate:      sampleRate * uint32(channels) * 2,
			BlockAlign:    channels * 2,
			BitsPerSample: 16,
		},
		Frames: uint32(len(pcm) / int(channels)),
		Data:   convert.Int16ToBytes(pcm),
	}
}

// NewADPCM wraps concatenated IMA ADPCM blocks. frames is the real frame
// count, written to the fact chunk.
func NewADPCM(sampleRate uint32, channels uint16, blockSize, samplesPerBlock int, frames uint32, data []byte) *Wave {
	return &Wave{
		Header: Header{
			Format:          FormatIMAADPCM,
			Channels:        channels,
			SampleRate:      sampleRate,
			ByteRate:        uint32(uint64(sampleRate) * uint64(blockSize) / uint64(samplesPerBlock)),
			BlockAlign:      uint16(blockSize),
			BitsPerSample:   4,
			SamplesPerBlock: uint16(samplesPerBlock),
		},
		Frames: frames,
		Data:   data,
	}
}

func generateHeader(header *Header) []byte {
	result := make([]byte, 0, 20)
	result = binary.LittleEndian.AppendUint16(result, header.Format)
	result = binary.LittleEndian.AppendUint16(result, header.Channels)
	result = binary.LittleEndian.AppendUint32(result, header.SampleRate)
	result = binary.LittleEndian.AppendUint32(result, header.ByteRate)
	result = binary.LittleEndian.AppendUint16(result, header.BlockAlign)
	result = binary.LittleEndian.AppendUint16(result, header.BitsPerSample)
	if header.Format == FormatIMAADPCM {
		result = binary.LittleEndian.AppendUint16(result, 2) // cbSize
		result = binary.LittleEndian.AppendUint16(result, header.SamplesPerBlock)
	}
	return result
}

func appendChunk(dst []byte, id uint32, body []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, id)
	dst = binary.LittleEndian.AppendUint32(dst, uint32(len(body)))
	dst = append(dst, body...)
	if len(body)%2 == 1 {
		dst = append(dst, 0)
	}
	return dst
}

func (wave *Wave) Serialize(out io.Writer) error {
	var body []byte
	body = binary.BigEndian.AppendUint32(body, waveFormat)
	body = appendChunk(body, formatHeader, generateHeader(&wave.Header))
	if wave.IsADPCM() {
		body = appendChunk(body, factHeader, binary.LittleEndian.AppendUint32(nil, wave.Frames))
	}

	head := binary.BigEndian.AppendUint32(nil, riffHeader)
	dataLen := len(wave.Data) + len(wave.Data)%2
	head = binary.LittleEndian.AppendUint32(head, uint32(len(body)+8+dataLen))
	head = append(head, body...)
	head = binary.BigEndian.AppendUint32(head, dataHeader)
	head = binary.LittleEndian.AppendUint32(head, uint32(len(wave.Data)))
	if _, err := out.Write(head); err != nil {
		return err
	}
	if _, err := out.Write(wave.Data); err != nil {
		return err
	}
	if len(wave.Data)%2 == 1 {
		_, err := out.Write([]byte{0})
		return err
	}
	return nil
}
