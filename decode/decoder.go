package decode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/queue"
)

type Option func(*Decoder) error

func WithLogger(logger *slog.Logger) Option {
	return func(d *Decoder) error {
		d.logger = logger
		return nil
	}
}

// DropLateFrames makes the decoder overwrite the oldest queued frame instead
// of waiting for the consumer when the frame queue is full.
func DropLateFrames(drop bool) Option {
	return func(d *Decoder) error {
		d.dropLate = drop
		return nil
	}
}

// Decoder moves chunks from the chunk queue through an engine and sends the
// resulting frames to the frame queue.
type Decoder struct {
	logger   *slog.Logger
	track    vplay.TrackInfo
	factory  EngineFactory
	in       *queue.Receiver[vplay.Event[vplay.EncodedChunk]]
	out      *queue.Sender[vplay.Event[vplay.Frame]]
	dropLate bool

	offset    time.Duration
	hasOffset bool
	epoch     uint64

	// input PTS values of chunks marked as discontinuity whose picture was
	// not yet seen
	discontinuities map[time.Duration]struct{}
}

func NewDecoder(
	track vplay.TrackInfo,
	factory EngineFactory,
	in *queue.Receiver[vplay.Event[vplay.EncodedChunk]],
	out *queue.Sender[vplay.Event[vplay.Frame]],
	opts ...Option,
) (*Decoder, error) {
	d := &Decoder{
		logger:          slog.Default(),
		track:           track,
		factory:         factory,
		in:              in,
		out:             out,
		discontinuities: map[time.Duration]struct{}{},
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "decoder")
	return d, nil
}

// Run creates the engine, reports the result on initResult and decodes
// chunks until the input ends, ctx is cancelled or the frame queue is
// disconnected. Run closes its queue endpoints when it returns.
func (d *Decoder) Run(ctx context.Context, initResult chan<- error) error {
	defer d.in.Close()
	defer d.out.Close()

	engine, err := d.factory(d.track)
	if err != nil {
		if !errors.Is(err, vplay.ErrDecoderInit) {
			err = fmt.Errorf("%w: %w", vplay.ErrDecoderInit, err)
		}
		initResult <- err
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			d.logger.Warn("failed to close engine", "error", err)
		}
	}()
	d.logger.Info("decoder initialized", "codec", d.track.Codec, "width", d.track.Width, "height", d.track.Height)
	initResult <- nil

	for {
		if ctx.Err() != nil {
			return nil
		}
		e, err := d.in.Recv(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrDisconnected) {
				return nil
			}
			d.logger.Info("chunk queue disconnected, flushing decoder")
			break
		}
		if e.EndOfStream {
			d.logger.Info("end of stream, flushing decoder")
			break
		}
		chunk := e.Data
		if chunk.Discontinuity {
			d.discontinuities[chunk.PTS] = struct{}{}
		}
		if err := engine.Submit(chunk); err != nil {
			d.logger.Warn("failed to submit chunk", "sample", chunk.Sample, "pts", chunk.PTS, "error", err)
			delete(d.discontinuities, chunk.PTS)
			continue
		}
		if !d.drain(ctx, engine) {
			return nil
		}
	}

	if err := engine.Flush(); err != nil {
		d.logger.Warn("failed to flush engine", "error", err)
	} else if !d.drain(ctx, engine) {
		return nil
	}
	if err := d.out.Send(ctx, vplay.EndOfStream[vplay.Frame]()); err != nil {
		d.logger.Info("could not send end of stream", "error", err)
	}
	return nil
}

// drain forwards all pictures the engine has ready. It returns false if the
// frame queue was disconnected or ctx cancelled.
func (d *Decoder) drain(ctx context.Context, engine Engine) bool {
	for {
		p, err := engine.Receive()
		if errors.Is(err, ErrNoPicture) || errors.Is(err, io.EOF) {
			return true
		}
		if err != nil {
			d.logger.Warn("failed to receive picture", "error", err)
			return true
		}
		frame, ok := d.frame(p)
		if !ok {
			continue
		}
		if !d.send(ctx, frame) {
			return false
		}
	}
}

func (d *Decoder) frame(p *Picture) (vplay.Frame, bool) {
	frame, err := PackI420(p)
	if err != nil {
		d.logger.Warn("dropping picture", "pts", p.PTS, "format", p.Format, "error", err)
		return vplay.Frame{}, false
	}
	if _, ok := d.discontinuities[p.PTS]; ok {
		delete(d.discontinuities, p.PTS)
		frame.Discontinuity = true
		d.epoch++
	}
	frame.Epoch = d.epoch
	if !d.hasOffset {
		d.offset = -p.PTS
		d.hasOffset = true
	}
	frame.PTS = p.PTS + d.offset
	if frame.PTS < 0 {
		d.logger.Warn("negative frame timestamp, clamping to zero", "pts", p.PTS, "offset", d.offset)
		frame.PTS = 0
	}
	d.logger.Debug("decoded frame", "pts", frame.PTS, "discontinuity", frame.Discontinuity, "epoch", frame.Epoch)
	return frame, true
}

func (d *Decoder) send(ctx context.Context, frame vplay.Frame) bool {
	if d.dropLate {
		err := d.out.LooselySend(vplay.Data(frame))
		if errors.Is(err, queue.ErrDisconnected) {
			d.logger.Info("frame queue disconnected, stopping decoder")
			return false
		}
		if err != nil {
			d.logger.Debug("dropped frame", "pts", frame.PTS, "error", err)
		}
		return true
	}
	if err := d.out.Send(ctx, vplay.Data(frame)); err != nil {
		if errors.Is(err, queue.ErrDisconnected) {
			d.logger.Info("frame queue disconnected, stopping decoder")
		}
		return false
	}
	return true
}
