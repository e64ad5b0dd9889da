// Package decodetest provides a fake decoding engine that turns every chunk
// into one picture without touching the payload.
package decodetest

import (
	"errors"
	"io"
	"sync"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/decode"
)

var ErrRejected = errors.New("chunk rejected")

type Config struct {
	// Delay is the number of pictures the engine holds back until more
	// input arrives or it is flushed.
	Delay int

	// Padding is added to the row length of each plane.
	Padding int

	// Format of the produced pictures, I420 if unset.
	Format decode.PixelFormat

	// Reject makes Submit fail for the chunks it returns true for.
	Reject func(vplay.EncodedChunk) bool

	// Hold makes Submit wait for Release to be closed before it accepts the
	// chunk with this sample number. Zero disables it.
	Hold    uint32
	Release <-chan struct{}

	InitErr error
}

// Engine is a fake decode.Engine. Each picture's luma samples are set to the
// low byte of the chunk's sample number.
type Engine struct {
	cfg   Config
	track vplay.TrackInfo

	mu        sync.Mutex
	pending   []*decode.Picture
	submitted []vplay.EncodedChunk
	flushed   bool
	closed    bool
}

func New(track vplay.TrackInfo, cfg Config) *Engine {
	if cfg.Format == decode.PixelFormatUnknown {
		cfg.Format = decode.PixelFormatI420
	}
	return &Engine{
		cfg:   cfg,
		track: track,
	}
}

// Factory returns a factory creating fake engines. Every created engine is
// passed to created if it is not nil.
func Factory(cfg Config, created func(*Engine)) decode.EngineFactory {
	return func(track vplay.TrackInfo) (decode.Engine, error) {
		if cfg.InitErr != nil {
			return nil, cfg.InitErr
		}
		e := New(track, cfg)
		if created != nil {
			created(e)
		}
		return e, nil
	}
}

func (e *Engine) Submit(chunk vplay.EncodedChunk) error {
	if e.cfg.Hold != 0 && chunk.Sample == e.cfg.Hold && e.cfg.Release != nil {
		<-e.cfg.Release
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.flushed {
		return errors.New("engine does not accept input")
	}
	if e.cfg.Reject != nil && e.cfg.Reject(chunk) {
		return ErrRejected
	}
	e.submitted = append(e.submitted, chunk)
	e.pending = append(e.pending, e.picture(chunk))
	return nil
}

func (e *Engine) picture(chunk vplay.EncodedChunk) *decode.Picture {
	w, h := e.track.Width, e.track.Height
	cw, ch := e.track.Resolution().ChromaSize()
	p := &decode.Picture{
		Format: e.cfg.Format,
		Width:  w,
		Height: h,
		PTS:    chunk.PTS,
	}
	dims := [3][2]int{{w, h}, {cw, ch}, {cw, ch}}
	values := [3]byte{byte(chunk.Sample), 0x80, 0x80}
	for i, d := range dims {
		stride := d[0] + e.cfg.Padding
		plane := make([]byte, stride*d[1])
		for r := range d[1] {
			for c := range stride {
				if c < d[0] {
					plane[r*stride+c] = values[i]
				} else {
					plane[r*stride+c] = 0xff
				}
			}
		}
		p.Planes[i] = plane
		p.Strides[i] = stride
	}
	return p
}

func (e *Engine) Receive() (*decode.Picture, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) > e.cfg.Delay || (e.flushed && len(e.pending) > 0) {
		p := e.pending[0]
		e.pending = e.pending[1:]
		return p, nil
	}
	if e.flushed {
		return nil, io.EOF
	}
	return nil, decode.ErrNoPicture
}

func (e *Engine) Flush() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.flushed = true
	return nil
}

func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Submitted returns the chunks accepted so far.
func (e *Engine) Submitted() []vplay.EncodedChunk {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]vplay.EncodedChunk(nil), e.submitted...)
}
