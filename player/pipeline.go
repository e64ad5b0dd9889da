// Package player wires the reader and decoder workers together and paces
// the decoded frames against the wall clock.
package player

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/decode"
	"github.com/mengelbart/vplay/demux"
	"github.com/mengelbart/vplay/gstreamer"
	"github.com/mengelbart/vplay/queue"
)

type Config struct {
	ChunkQueueSize   int
	FrameQueueSize   int
	CommandQueueSize int
	DropLateFrames   bool
	EngineFactory    decode.EngineFactory
	Logger           *slog.Logger
}

func DefaultConfig() Config {
	return Config{
		ChunkQueueSize:   8,
		FrameQueueSize:   4,
		CommandQueueSize: 4,
		DropLateFrames:   false,
		EngineFactory:    nil,
		Logger:           slog.Default(),
	}
}

type Option func(*Config) error

func ChunkQueueSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("invalid chunk queue size: %v", n)
		}
		c.ChunkQueueSize = n
		return nil
	}
}

func FrameQueueSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("invalid frame queue size: %v", n)
		}
		c.FrameQueueSize = n
		return nil
	}
}

func CommandQueueSize(n int) Option {
	return func(c *Config) error {
		if n < 1 {
			return fmt.Errorf("invalid command queue size: %v", n)
		}
		c.CommandQueueSize = n
		return nil
	}
}

// DropLateFrames makes the decoder overwrite queued frames instead of
// waiting for the handle to consume them.
func DropLateFrames(drop bool) Option {
	return func(c *Config) error {
		c.DropLateFrames = drop
		return nil
	}
}

func WithEngineFactory(f decode.EngineFactory) Option {
	return func(c *Config) error {
		c.EngineFactory = f
		return nil
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) error {
		c.Logger = logger
		return nil
	}
}

// Pipeline runs a reader and a decoder in their own goroutines. The handle
// side owns Frames and Commands.
type Pipeline struct {
	Track    vplay.TrackInfo
	Frames   *queue.Receiver[vplay.Event[vplay.Frame]]
	Commands *queue.Sender[vplay.Command]

	frameSender *queue.Sender[vplay.Event[vplay.Frame]]
	cancel      context.CancelFunc
	group       *errgroup.Group

	stopOnce sync.Once
	stopErr  error
}

// StartPipeline starts both workers and waits until each reported whether it
// initialized successfully. On failure, everything that was started is torn
// down again before the error is returned.
func StartPipeline(ctx context.Context, path string, cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	factory := cfg.EngineFactory
	if factory == nil {
		factory = gstreamer.NewEngineFactory(gstreamer.H264DecoderLogger(logger))
	}

	ctx, cancel := context.WithCancel(ctx)
	group, ctx := errgroup.WithContext(ctx)

	commandTx, commandRx := queue.New[vplay.Command](cfg.CommandQueueSize)
	chunkTx, chunkRx := queue.New[vplay.Event[vplay.EncodedChunk]](cfg.ChunkQueueSize)
	frameTx, frameRx := queue.New[vplay.Event[vplay.Frame]](cfg.FrameQueueSize)

	p := &Pipeline{
		Frames:      frameRx,
		Commands:    commandTx,
		frameSender: frameTx,
		cancel:      cancel,
		group:       group,
	}

	reader := demux.NewReader(path, chunkTx, commandRx, logger)
	readerInit := make(chan demux.InitResult, 1)
	group.Go(func() error {
		return reader.Run(ctx, readerInit)
	})
	res := <-readerInit
	if res.Err != nil {
		chunkRx.Close()
		frameTx.Close()
		return nil, p.failStart(res.Err)
	}
	p.Track = res.Track

	decoder, err := decode.NewDecoder(res.Track, factory, chunkRx, frameTx,
		decode.WithLogger(logger),
		decode.DropLateFrames(cfg.DropLateFrames),
	)
	if err != nil {
		chunkRx.Close()
		frameTx.Close()
		return nil, p.failStart(err)
	}
	decoderInit := make(chan error, 1)
	group.Go(func() error {
		return decoder.Run(ctx, decoderInit)
	})
	if err := <-decoderInit; err != nil {
		return nil, p.failStart(err)
	}
	return p, nil
}

func (p *Pipeline) failStart(err error) error {
	if stopErr := p.Stop(); stopErr != nil && !errors.Is(stopErr, err) {
		return errors.Join(err, stopErr)
	}
	return err
}

// FramesEvicted returns the number of frames the decoder discarded because
// the frame queue was full.
func (p *Pipeline) FramesEvicted() uint64 {
	if p.frameSender == nil {
		return 0
	}
	return p.frameSender.Evicted()
}

// Stop cancels both workers, drops the handle's queue endpoints and waits
// for the workers to return.
func (p *Pipeline) Stop() error {
	p.stopOnce.Do(func() {
		p.cancel()
		p.Frames.Close()
		p.Commands.Close()
		p.stopErr = p.group.Wait()
	})
	return p.stopErr
}
