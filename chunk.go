package vplay

import "time"

// EncodedChunk is one access unit in Annex-B form as produced by the reader.
// Chunks are immutable once sent and consumed exactly once by the decoder.
type EncodedChunk struct {
	Data []byte

	PTS    time.Duration
	DTS    time.Duration
	HasDTS bool

	// Sample is the 1-based sample number in the container track.
	Sample   uint32
	KeyFrame bool

	// Discontinuity marks the first chunk after a seek or skip.
	Discontinuity bool
}

// Repacker turns one container sample into a decodable bytestream. Codec
// specific header state, such as parameter sets which must precede the first
// sample, is kept by the implementation.
type Repacker interface {
	Repack(sample []byte) ([]byte, error)
}
