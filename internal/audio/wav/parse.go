package wav

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"adpcm-xq/internal/audio/convert"
)

func readChunkHeader(r io.Reader) (id, size uint32, err error) {
	var buf [8]byte
	if _, err = io.ReadFull(r, buf[:]); err != nil {
		return 0, 0, err
	}
	return binary.BigEndian.Uint32(buf[:4]), binary.LittleEndian.Uint32(buf[4:]), nil
}

func parseHeader(b []byte, header *Header) error {
	if len(b) < 16 {
		return fmt.Errorf("%w: fmt chunk of %d bytes", ErrTruncated, len(b))
	}
	header.Format = binary.LittleEndian.Uint16(b[0:])
	header.Channels = binary.LittleEndian.Uint16(b[2:])
	header.SampleRate = binary.LittleEndian.Uint32(b[4:])
	header.ByteRate = binary.LittleEndian.Uint32(b[8:])
	header.BlockAlign = binary.LittleEndian.Uint16(b[12:])
	header.BitsPerSample = binary.LittleEndian.Uint16(b[14:])

	switch header.Format {
	case FormatExtensible:
		// sub format GUID starts after cbSize, valid bits and channel mask
		if len(b) < 26 {
			return fmt.Errorf("%w: extensible fmt chunk of %d bytes", ErrTruncated, len(b))
		}
		header.Format = binary.LittleEndian.Uint16(b[24:])
	case FormatIMAADPCM:
		if len(b) < 20 {
			return fmt.Errorf("%w: IMA ADPCM fmt chunk without samples per block", ErrTruncated)
		}
		header.SamplesPerBlock = binary.LittleEndian.Uint16(b[18:])
	}

	switch {
	case header.Format == FormatPCM && header.BitsPerSample == 16:
	case header.Format == FormatIMAADPCM && header.BitsPerSample == 4:
	default:
		return fmt.Errorf("%w: format %#x with %d bits", ErrUnsupportedFormat, header.Format, header.BitsPerSample)
	}
	if header.Channels == 0 || header.BlockAlign == 0 {
		return fmt.Errorf("%w: %d channels, block align %d", ErrUnsupportedFormat, header.Channels, header.BlockAlign)
	}
	return nil
}

// Parse reads a 16-bit PCM or IMA ADPCM wave file. Unknown chunks are skipped.
func Parse(reader io.Reader) (*Wave, error) {
	var result Wave

	id, _, err := readChunkHeader(reader)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotWave, err)
	}
	var form [4]byte
	if _, err := io.ReadFull(reader, form[:]); err != nil || id != riffHeader || binary.BigEndian.Uint32(form[:]) != waveFormat {
		return nil, ErrNotWave
	}

	var hasHeader, hasData, hasFact bool
	for !hasData {
		id, size, err := readChunkHeader(reader)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrTruncated, err)
		}
		// chunks are word aligned
		padded := int64(size) + int64(size&1)

		switch id {
		case formatHeader, factHeader, dataHeader:
			body := make([]byte, size)
			n, err := io.ReadFull(reader, body)
			if err != nil {
				// a data chunk cut short keeps what was read
				if id != dataHeader || !(errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF)) {
					return nil, fmt.Errorf("%w: chunk %#x: %w", ErrTruncated, id, err)
				}
				body = body[:n]
			} else if size&1 == 1 {
				io.CopyN(io.Discard, reader, 1)
			}
			switch id {
			case formatHeader:
				if err := parseHeader(body, &result.Header); err != nil {
					return nil, err
				}
				hasHeader = true
			case factHeader:
				if len(body) >= 4 {
					result.Frames = binary.LittleEndian.Uint32(body)
					hasFact = true
				}
			case dataHeader:
				if !hasHeader {
					return nil, fmt.Errorf("%w: data chunk before fmt chunk", ErrNotWave)
				}
				result.Data = body
				hasData = true
			}
		default:
			if _, err := io.CopyN(io.Discard, reader, padded); err != nil {
				return nil, fmt.Errorf("%w: chunk %#x: %w", ErrTruncated, id, err)
			}
		}
	}

	if !hasFact || !result.IsADPCM() {
		result.Frames = result.dataFrames()
	}
	return &result, nil
}

func (w *Wave) dataFrames() uint32 {
	h := w.Header
	blocks := uint32(len(w.Data)) / uint32(h.BlockAlign)
	if h.Format == FormatIMAADPCM {
		return blocks * uint32(h.SamplesPerBlock)
	}
	return blocks
}

// Samples returns the interleaved samples of a PCM wave.
func (w *Wave) Samples() ([]int16, error) {
	if w.Header.Format != FormatPCM {
		return nil, fmt.Errorf("%w: format %#x is not PCM", ErrUnsupportedFormat, w.Header.Format)
	}
	return convert.BytesToInt16(w.Data), nil
}

// Blocks splits the data of an ADPCM wave into its blocks. A short last block
// is kept as is.
func (w *Wave) Blocks() ([][]byte, error) {
	if !w.IsADPCM() {
		return nil, fmt.Errorf("%w: format %#x is not IMA ADPCM", ErrUnsupportedFormat, w.Header.Format)
	}
	size := int(w.Header.BlockAlign)
	blocks := make([][]byte, 0, (len(w.Data)+size-1)/size)
	for p := 0; p < len(w.Data); p += size {
		blocks = append(blocks, w.Data[p:min(p+size, len(w.Data))])
	}
	return blocks, nil
}
