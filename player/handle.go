package player

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/queue"
)

// Handle is the playback clock. The owner calls Tick repeatedly, e.g. once
// per rendered frame, and takes frames with CurrentFrame. All methods are safe
// for concurrent use and never block on the workers.
type Handle struct {
	logger   *slog.Logger
	pipeline *Pipeline
	track    vplay.TrackInfo

	mu               sync.Mutex
	state            vplay.PlaybackState
	speed            vplay.PlaySpeed
	currentTimestamp time.Duration
	lastTick         time.Time

	// next is staged until its timestamp is due, queued is the frame due
	// for presentation.
	next   *vplay.Frame
	queued *vplay.Frame
	eos    bool

	// epoch of the last staged frame
	epoch uint64

	dropped uint64

	closeOnce sync.Once
	closeErr  error
}

// Open starts the reader and decoder for the file at path and returns a
// playing handle. It fails if either worker failed to initialize.
func Open(ctx context.Context, path string, opts ...Option) (*Handle, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		if err := opt(&cfg); err != nil {
			return nil, err
		}
	}
	p, err := StartPipeline(ctx, path, cfg)
	if err != nil {
		return nil, err
	}
	return newHandle(p, cfg.Logger), nil
}

func newHandle(p *Pipeline, logger *slog.Logger) *Handle {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handle{
		logger:   logger.With("component", "handle"),
		pipeline: p,
		track:    p.Track,
		state:    vplay.Playing,
		speed:    vplay.SpeedNormal,
		lastTick: time.Now(),
	}
}

// Tick advances the playback clock by the wall-clock time since the last
// tick and moves every frame that is due into the presentation slot. A
// presented frame that was not taken before the next one became due counts
// as dropped.
func (h *Handle) Tick() {
	now := time.Now()
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.state != vplay.Playing {
		h.lastTick = now
		return
	}
	if h.next == nil {
		// nothing staged, the clock waits for the decoder
		h.lastTick = now
		if !h.eos {
			h.pull()
		}
	} else {
		// the play speed is not applied, the clock runs at 1.0
		h.currentTimestamp += now.Sub(h.lastTick)
		h.lastTick = now
	}
	for h.next != nil && h.next.PTS <= h.currentTimestamp {
		if h.queued != nil {
			h.dropped++
			h.logger.Debug("dropping frame", "pts", h.queued.PTS, "dropped", h.dropped)
		}
		h.queued = h.next
		h.next = nil
		h.pull()
	}
	h.checkCompleted()
}

// pull stages the next frame from the queue if one is available.
func (h *Handle) pull() {
	e, err := h.pipeline.Frames.TryRecv()
	if errors.Is(err, queue.ErrEmpty) {
		return
	}
	if err != nil || e.EndOfStream {
		if !h.eos {
			h.logger.Info("frame stream ended", "pts", h.currentTimestamp, "error", err)
		}
		h.eos = true
		return
	}
	f := e.Data
	if f.Discontinuity || f.Epoch != h.epoch {
		// the first frame after a jump is due one frame interval from now
		rebased := max(f.PTS-h.track.SampleDuration(), 0)
		h.logger.Info("rebasing clock after jump", "from", h.currentTimestamp, "to", rebased, "pts", f.PTS, "epoch", f.Epoch)
		h.currentTimestamp = rebased
		h.epoch = f.Epoch
	}
	h.next = &f
}

func (h *Handle) checkCompleted() {
	if h.eos && h.next == nil && h.queued == nil && h.state == vplay.Playing {
		h.logger.Info("playback completed", "pts", h.currentTimestamp, "dropped", h.dropped)
		h.state = vplay.Completed
	}
}

// CurrentFrame takes the frame due for presentation. It returns each frame
// at most once.
func (h *Handle) CurrentFrame() (*vplay.Frame, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	f := h.queued
	h.queued = nil
	h.checkCompleted()
	return f, f != nil
}

func (h *Handle) Play() {
	h.setState(vplay.Playing)
	h.command(vplay.Command{Kind: vplay.Play})
}

func (h *Handle) Pause() {
	h.setState(vplay.Paused)
	h.command(vplay.Command{Kind: vplay.Pause})
}

func (h *Handle) Stop() {
	h.setState(vplay.Stopped)
	h.command(vplay.Command{Kind: vplay.Stop})
}

func (h *Handle) SkipForward() {
	h.command(vplay.Command{Kind: vplay.SkipForward})
}

func (h *Handle) SkipBackward() {
	h.command(vplay.Command{Kind: vplay.SkipBackward})
}

// Seek jumps to the keyframe at or before fraction of the total duration.
// Frames that were already decoded are still presented before the first
// frame after the jump.
func (h *Handle) Seek(fraction float64) {
	h.command(vplay.Command{Kind: vplay.Seek, Fraction: fraction})
}

func (h *Handle) setState(s vplay.PlaybackState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == vplay.Completed && s == vplay.Playing {
		return
	}
	h.logger.Info("playback state changed", "from", h.state, "to", s)
	h.state = s
}

func (h *Handle) command(cmd vplay.Command) {
	err := h.pipeline.Commands.LooselySend(cmd)
	if err != nil {
		h.logger.Info("command not delivered", "command", cmd, "error", err)
	}
}

func (h *Handle) State() vplay.PlaybackState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

func (h *Handle) PlaySpeed() vplay.PlaySpeed {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.speed
}

// SetPlaySpeed stores the speed setting. The clock does not apply it.
func (h *Handle) SetPlaySpeed(s vplay.PlaySpeed) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.speed = s
}

func (h *Handle) Track() vplay.TrackInfo {
	return h.track
}

func (h *Handle) FPS() float64 {
	return h.track.FPS
}

func (h *Handle) TotalDuration() time.Duration {
	return h.track.Duration
}

func (h *Handle) CurrentTimestamp() time.Duration {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.currentTimestamp
}

// Progress returns the position of the clock relative to the total
// duration, in [0, 1].
func (h *Handle) Progress() float64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.track.Duration <= 0 {
		return 0
	}
	p := float64(h.currentTimestamp) / float64(h.track.Duration)
	return min(max(p, 0), 1)
}

// DroppedFrames returns the number of presented frames that were replaced by
// a newer one before CurrentFrame took them.
func (h *Handle) DroppedFrames() uint64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dropped
}

// EvictedFrames returns the number of frames the decoder overwrote in the
// frame queue. It stays zero unless DropLateFrames is enabled.
func (h *Handle) EvictedFrames() uint64 {
	return h.pipeline.FramesEvicted()
}

// Close stops the workers and waits for them to return.
func (h *Handle) Close() error {
	h.closeOnce.Do(func() {
		h.closeErr = h.pipeline.Stop()
		h.logger.Info("closed handle", "error", h.closeErr)
	})
	return h.closeErr
}
