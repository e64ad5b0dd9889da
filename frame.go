package vplay

import (
	"image"
	"time"
)

type Resolution struct {
	Width  int
	Height int
}

// Frame is a decoded picture in planar YUV 4:2:0 layout. The planes are
// tightly packed: Y has Width*Height bytes, U and V have a quarter of that
// each (rounded up for odd sizes).
type Frame struct {
	Y []byte
	U []byte
	V []byte

	Resolution Resolution
	PTS        time.Duration

	// Discontinuity is carried over from the chunk that produced this frame.
	Discontinuity bool

	// Epoch counts the jumps the decoder has seen up to this frame. Frames
	// after a jump carry a higher epoch even if the first frame of the jump
	// was lost.
	Epoch uint64
}

// ChromaSize returns the width and height of the two chroma planes.
func (r Resolution) ChromaSize() (int, int) {
	return (r.Width + 1) / 2, (r.Height + 1) / 2
}

// Image returns an image.YCbCr sharing the frame's planes.
func (f *Frame) Image() *image.YCbCr {
	cw, _ := f.Resolution.ChromaSize()
	return &image.YCbCr{
		Y:              f.Y,
		Cb:             f.U,
		Cr:             f.V,
		YStride:        f.Resolution.Width,
		CStride:        cw,
		SubsampleRatio: image.YCbCrSubsampleRatio420,
		Rect:           image.Rect(0, 0, f.Resolution.Width, f.Resolution.Height),
	}
}

// Bytes returns the three planes concatenated in Y, U, V order.
func (f *Frame) Bytes() []byte {
	b := make([]byte, 0, len(f.Y)+len(f.U)+len(f.V))
	b = append(b, f.Y...)
	b = append(b, f.U...)
	return append(b, f.V...)
}
