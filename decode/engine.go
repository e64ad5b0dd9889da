// Package decode runs a decoding engine over a stream of encoded chunks and
// turns its pictures into tightly packed frames.
package decode

import (
	"errors"
	"time"

	"github.com/mengelbart/vplay"
)

// ErrNoPicture is returned by Engine.Receive when no picture is ready yet.
var ErrNoPicture = errors.New("no picture available")

type PixelFormat int

const (
	PixelFormatUnknown PixelFormat = iota
	PixelFormatI420
	PixelFormatNV12
)

func (f PixelFormat) String() string {
	switch f {
	case PixelFormatI420:
		return "I420"
	case PixelFormatNV12:
		return "NV12"
	}
	return "unknown"
}

// ParsePixelFormat maps GStreamer video format names to PixelFormat.
func ParsePixelFormat(s string) PixelFormat {
	switch s {
	case "I420":
		return PixelFormatI420
	case "NV12":
		return PixelFormatNV12
	}
	return PixelFormatUnknown
}

// Picture is a decoded picture as returned by an engine. Planes may contain
// padding at the end of each row, Strides holds the row length of each plane
// in bytes.
type Picture struct {
	Format  PixelFormat
	Width   int
	Height  int
	Planes  [3][]byte
	Strides [3]int
	PTS     time.Duration
}

// Engine is a stateful video decoder. Chunks are submitted in decode order;
// pictures become available through Receive, possibly with some delay.
type Engine interface {
	Submit(chunk vplay.EncodedChunk) error

	// Receive returns the next decoded picture, ErrNoPicture if none is
	// ready, or io.EOF once a flush completed and all pictures were returned.
	Receive() (*Picture, error)

	// Flush signals the end of input. Remaining pictures are returned by
	// Receive, which may block until the engine drained.
	Flush() error
	Close() error
}

// EngineFactory creates an engine for a track.
type EngineFactory func(track vplay.TrackInfo) (Engine, error)
