package wav

import "errors"

const (
	FormatPCM        = 0x0001
	FormatIMAADPCM   = 0x0011
	FormatExtensible = 0xFFFE
)

const (
	riffHeader   = 0x52494646 // "RIFF"
	waveFormat   = 0x57415645 // "WAVE"
	formatHeader = 0x666d7420 // "fmt "
	factHeader   = 0x66616374 // "fact"
	dataHeader   = 0x64617461 // "data"
)

var (
	ErrNotWave           = errors.New("wav: not a RIFF/WAVE file")
	ErrUnsupportedFormat = errors.New("wav: unsupported format")
	ErrTruncated         = errors.New("wav: truncated file")
)

type Header struct {
	Format        uint16
	Channels      uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16

	// IMA ADPCM only
	SamplesPerBlock uint16
}

type Wave struct {
	Header Header
	// Frames is the number of sample frames. For ADPCM it comes from the fact
	// chunk, which excludes the padding of the last block.
	Frames uint32
	Data   []byte
}

func (w *Wave) IsADPCM() bool {
	return w.Header.Format == FormatIMAADPCM
}
