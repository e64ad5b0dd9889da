package decode

import (
	"fmt"

	"github.com/mengelbart/vplay"
)

// I420Layout describes how the planes of an I420 picture are laid out in a
// single buffer.
type I420Layout struct {
	Strides [3]int
	Offsets [3]int
	Size    int
}

func roundUp(v, n int) int {
	return (v + n - 1) / n * n
}

// DefaultI420Layout returns the layout GStreamer uses for I420 buffers
// without video meta: rows are aligned to 4 bytes and chroma planes cover
// the width and height rounded up to even values.
func DefaultI420Layout(width, height int) I420Layout {
	var l I420Layout
	l.Strides[0] = roundUp(width, 4)
	l.Strides[1] = roundUp(roundUp(width, 2)/2, 4)
	l.Strides[2] = l.Strides[1]
	h := roundUp(height, 2)
	l.Offsets[0] = 0
	l.Offsets[1] = l.Strides[0] * h
	l.Offsets[2] = l.Offsets[1] + l.Strides[1]*h/2
	l.Size = l.Offsets[2] + l.Strides[2]*h/2
	return l
}

// Split slices buf into the three planes of the layout.
func (l I420Layout) Split(buf []byte) ([3][]byte, error) {
	if len(buf) < l.Size {
		return [3][]byte{}, fmt.Errorf("buffer of %v bytes too small for I420 layout of %v bytes", len(buf), l.Size)
	}
	return [3][]byte{
		buf[l.Offsets[0]:l.Offsets[1]],
		buf[l.Offsets[1]:l.Offsets[2]],
		buf[l.Offsets[2]:l.Size],
	}, nil
}

// PackI420 copies an I420 picture into a frame with tightly packed planes,
// dropping the row padding.
func PackI420(p *Picture) (vplay.Frame, error) {
	if p.Format != PixelFormatI420 {
		return vplay.Frame{}, fmt.Errorf("%w: %v", vplay.ErrUnsupportedPixelFormat, p.Format)
	}
	res := vplay.Resolution{Width: p.Width, Height: p.Height}
	cw, ch := res.ChromaSize()
	dims := [3][2]int{{p.Width, p.Height}, {cw, ch}, {cw, ch}}

	var planes [3][]byte
	for i, d := range dims {
		w, h := d[0], d[1]
		stride := p.Strides[i]
		if stride < w || len(p.Planes[i]) < stride*(h-1)+w {
			return vplay.Frame{}, fmt.Errorf("plane %v too small: stride %v, %v bytes for %vx%v", i, stride, len(p.Planes[i]), w, h)
		}
		plane := make([]byte, w*h)
		for r := range h {
			copy(plane[r*w:r*w+w], p.Planes[i][r*stride:r*stride+w])
		}
		planes[i] = plane
	}
	return vplay.Frame{
		Y:          planes[0],
		U:          planes[1],
		V:          planes[2],
		Resolution: res,
		PTS:        p.PTS,
	}, nil
}
