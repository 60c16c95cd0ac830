package convert

import "adpcm-xq/internal/audio/adpcm"

// IsBlockSizeValid reports whether a block of blockSize bytes is a whole
// number of chunk rows after the channel headers and carries at least one row.
func IsBlockSizeValid(channels, blockSize int) bool {
	if channels <= 0 {
		return false
	}
	payload := blockSize - channels*adpcm.HeaderSize
	row := channels * adpcm.ChunkBytes
	return payload >= row && payload%row == 0
}
