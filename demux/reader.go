package demux

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/queue"
)

// InitResult is reported exactly once by Reader.Run before any chunk is sent.
type InitResult struct {
	Track vplay.TrackInfo
	Err   error
}

// Reader produces encoded chunks of one H.264 track in decode order.
type Reader struct {
	logger   *slog.Logger
	path     string
	chunks   *queue.Sender[vplay.Event[vplay.EncodedChunk]]
	commands *queue.Receiver[vplay.Command]
}

func NewReader(path string, chunks *queue.Sender[vplay.Event[vplay.EncodedChunk]], commands *queue.Receiver[vplay.Command], logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{
		logger:   logger.With("component", "reader"),
		path:     path,
		chunks:   chunks,
		commands: commands,
	}
}

// Run opens the file and sends chunks until the track is exhausted, ctx is
// cancelled or the chunk queue is disconnected. The outcome of opening the
// file is reported on initResult before any chunk is produced. Run closes its
// queue endpoints when it returns.
func (r *Reader) Run(ctx context.Context, initResult chan<- InitResult) error {
	defer r.chunks.Close()
	if r.commands != nil {
		defer r.commands.Close()
	}

	f, err := os.Open(r.path)
	if err != nil {
		err = fmt.Errorf("failed to open container: %w", err)
		initResult <- InitResult{Err: err}
		return err
	}
	defer f.Close()

	c, err := Open(f)
	if err != nil {
		initResult <- InitResult{Err: err}
		return err
	}
	track := c.Track()
	repacker, err := NewAVCRepacker(track.LengthSize, track.SPS, track.PPS)
	if err != nil {
		initResult <- InitResult{Err: err}
		return err
	}
	r.logger.Info("opened container",
		"path", r.path,
		"track-id", track.TrackID,
		"samples", track.SampleCount,
		"timescale", track.Timescale,
		"fps", track.FPS,
		"width", track.Width,
		"height", track.Height,
		"duration", track.Duration,
	)
	initResult <- InitResult{Track: track}

	cursor := NewCursor(track.SampleCount, track.SampleDuration(), c.SyncSamples(), r.commands, r.logger)
	return r.produce(ctx, c, repacker, cursor)
}

func (r *Reader) produce(ctx context.Context, c *Container, repacker vplay.Repacker, cursor *Cursor) error {
	discontinuity := false
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		n, ok := cursor.Next()
		if !ok {
			break
		}
		if cursor.Jumped() {
			discontinuity = true
		}
		chunk, err := r.chunk(c, repacker, n)
		if err != nil {
			r.logger.Warn("skipping sample", "sample", n, "error", err)
			continue
		}
		chunk.Discontinuity = discontinuity
		discontinuity = false
		r.logger.Debug("read chunk", "sample", n, "size", len(chunk.Data), "pts", chunk.PTS, "keyframe", chunk.KeyFrame)
		if err := r.chunks.Send(ctx, vplay.Data(chunk)); err != nil {
			if errors.Is(err, queue.ErrDisconnected) {
				r.logger.Info("chunk queue disconnected, stopping reader", "sample", n)
			}
			return nil
		}
	}
	r.logger.Info("reached end of track", "samples", c.Track().SampleCount)
	if err := r.chunks.Send(ctx, vplay.EndOfStream[vplay.EncodedChunk]()); err != nil {
		r.logger.Info("could not send end of stream", "error", err)
	}
	return nil
}

func (r *Reader) chunk(c *Container, repacker vplay.Repacker, n uint32) (vplay.EncodedChunk, error) {
	raw, err := c.ReadSample(n)
	if err != nil {
		return vplay.EncodedChunk{}, err
	}
	data, err := repacker.Repack(raw)
	if err != nil {
		return vplay.EncodedChunk{}, err
	}
	pts, dts := c.Timestamps(n)
	return vplay.EncodedChunk{
		Data:     data,
		PTS:      pts,
		DTS:      dts,
		HasDTS:   true,
		Sample:   n,
		KeyFrame: c.IsSync(n),
	}, nil
}
