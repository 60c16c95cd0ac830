package iface

// Encoder turns one block's worth of interleaved PCM into an encoded block.
type Encoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// Decoder turns one encoded block back into interleaved PCM.
type Decoder interface {
	Decode(encoded []byte) ([]int16, error)
}
