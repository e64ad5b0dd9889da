package player

import (
	"errors"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/decode/decodetest"
	"github.com/mengelbart/vplay/internal/mp4test"
)

func fakeEngine(cfg decodetest.Config) Option {
	return WithEngineFactory(decodetest.Factory(cfg, nil))
}

// play ticks the handle every interval and collects all frames until
// playback completed or limit frames were taken.
func play(t *testing.T, h *Handle, interval time.Duration, limit int) []*vplay.Frame {
	t.Helper()
	var frames []*vplay.Frame
	for h.State() != vplay.Completed && len(frames) < limit {
		time.Sleep(interval)
		h.Tick()
		if f, ok := h.CurrentFrame(); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

func TestPlaybackEndToEnd(t *testing.T) {
	o := mp4test.Default()
	path := mp4test.WriteFile(t, o)
	synctest.Test(t, func(t *testing.T) {
		h, err := Open(t.Context(), path, fakeEngine(decodetest.Config{Delay: 2}))
		require.NoError(t, err)
		defer func() {
			assert.NoError(t, h.Close())
		}()

		assert.Equal(t, 10*time.Second, h.TotalDuration())
		assert.InDelta(t, 30.0, h.FPS(), 0.001)

		start := time.Now()
		frames := play(t, h, 5*time.Millisecond, 1000)
		assert.Equal(t, vplay.Completed, h.State())
		require.Len(t, frames, 300)
		assert.Zero(t, h.DroppedFrames())

		sampleDuration := vplay.UnitsToDuration(20, 600)
		unit := vplay.UnitsToDuration(1, 600)
		assert.Equal(t, time.Duration(0), frames[0].PTS)
		for i := 1; i < len(frames); i++ {
			assert.InDelta(t, float64(sampleDuration), float64(frames[i].PTS-frames[i-1].PTS), float64(unit))
			assert.Equal(t, byte(i+1), frames[i].Y[0])
		}

		// playback ran in real time
		elapsed := time.Since(start)
		assert.InDelta(t, float64(frames[299].PTS), float64(elapsed), float64(100*time.Millisecond))
		assert.InDelta(t, 1.0, h.Progress(), 0.01)
	})
}

func TestPlaybackLaggingConsumer(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		h, err := Open(t.Context(), path, fakeEngine(decodetest.Config{}))
		require.NoError(t, err)
		defer h.Close()

		// ticking at 10 fps presents every third frame
		frames := play(t, h, 100*time.Millisecond, 1000)
		assert.Equal(t, vplay.Completed, h.State())
		assert.InDelta(t, 100, len(frames), 2)
		assert.Equal(t, uint64(300-len(frames)), h.DroppedFrames())
		for i := 1; i < len(frames); i++ {
			assert.Greater(t, frames[i].PTS, frames[i-1].PTS)
		}
	})
}

func TestPlaybackSeek(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		h, err := Open(t.Context(), path, fakeEngine(decodetest.Config{}))
		require.NoError(t, err)
		defer h.Close()

		frames := play(t, h, 5*time.Millisecond, 10)
		require.Len(t, frames, 10)

		h.Seek(0.5)
		frames = play(t, h, 5*time.Millisecond, 1000)
		assert.Equal(t, vplay.Completed, h.State())

		// drain-through: already decoded frames are presented first
		jump := -1
		for i, f := range frames {
			if f.Discontinuity {
				jump = i
				break
			}
		}
		require.GreaterOrEqual(t, jump, 0)
		assert.Equal(t, vplay.UnitsToDuration(120*20, 600), frames[jump].PTS)
		assert.Equal(t, byte(121), frames[jump].Y[0])
		assert.Len(t, frames[jump:], 180)
		assert.Less(t, len(frames), 290)
	})
}

func TestPlaybackPause(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		h, err := Open(t.Context(), path, fakeEngine(decodetest.Config{}))
		require.NoError(t, err)
		defer h.Close()

		frames := play(t, h, 5*time.Millisecond, 30)
		require.Len(t, frames, 30)
		last := frames[29]

		h.Pause()
		before := h.CurrentTimestamp()
		for range 500 {
			time.Sleep(10 * time.Millisecond)
			h.Tick()
			_, ok := h.CurrentFrame()
			require.False(t, ok)
		}
		assert.Equal(t, before, h.CurrentTimestamp())

		h.Play()
		frames = play(t, h, 5*time.Millisecond, 1)
		require.Len(t, frames, 1)
		assert.Equal(t, last.Y[0]+1, frames[0].Y[0])
		assert.Zero(t, h.DroppedFrames())
	})
}

func TestOpenMissingFile(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		_, err := Open(t.Context(), filepath.Join(t.TempDir(), "missing.mp4"), fakeEngine(decodetest.Config{}))
		assert.Error(t, err)
	})
}

func TestOpenNoSuitableTrack(t *testing.T) {
	o := mp4test.Default()
	o.HandlerType = "soun"
	path := mp4test.WriteFile(t, o)
	synctest.Test(t, func(t *testing.T) {
		_, err := Open(t.Context(), path, fakeEngine(decodetest.Config{}))
		assert.ErrorIs(t, err, vplay.ErrNoSuitableTrack)
	})
}

func TestOpenDecoderInitFailure(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		_, err := Open(t.Context(), path, fakeEngine(decodetest.Config{InitErr: errors.New("no decoder")}))
		assert.ErrorIs(t, err, vplay.ErrDecoderInit)
	})
}

func TestOpenInvalidOption(t *testing.T) {
	_, err := Open(t.Context(), "unused.mp4", FrameQueueSize(0))
	assert.Error(t, err)
}

func TestCloseJoinsWorkers(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		var engine *decodetest.Engine
		factory := decodetest.Factory(decodetest.Config{}, func(e *decodetest.Engine) {
			engine = e
		})
		h, err := Open(t.Context(), path, WithEngineFactory(factory), FrameQueueSize(2), ChunkQueueSize(2))
		require.NoError(t, err)

		// both workers block on full queues
		synctest.Wait()
		require.NoError(t, h.Close())
		assert.True(t, engine.Closed())
		require.NoError(t, h.Close())
	})
}

func TestDropLateFramesCountsEvictions(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		h, err := Open(t.Context(), path, fakeEngine(decodetest.Config{}), DropLateFrames(true), FrameQueueSize(2))
		require.NoError(t, err)
		defer h.Close()

		// nothing is consumed while the decoder runs through the file
		synctest.Wait()
		assert.Equal(t, uint64(298), h.EvictedFrames())
		assert.Zero(t, h.DroppedFrames())

		frames := play(t, h, 5*time.Millisecond, 10)
		assert.Len(t, frames, 2)
		assert.Equal(t, vplay.Completed, h.State())
	})
}

func TestDropLateFramesFollowsSeek(t *testing.T) {
	path := mp4test.WriteFile(t, mp4test.Default())
	synctest.Test(t, func(t *testing.T) {
		release := make(chan struct{})
		engine := fakeEngine(decodetest.Config{Hold: 20, Release: release})
		h, err := Open(t.Context(), path, engine, DropLateFrames(true), FrameQueueSize(2))
		require.NoError(t, err)
		defer h.Close()

		// the decoder waits in front of sample 20 with 18 and 19 queued
		synctest.Wait()
		frames := play(t, h, 5*time.Millisecond, 2)
		require.Len(t, frames, 2)
		assert.Equal(t, byte(19), frames[1].Y[0])
		before := h.CurrentTimestamp()

		h.Seek(0.5)
		close(release)
		// everything but the last two frames is overwritten, including the
		// first frame after the jump
		synctest.Wait()
		assert.Greater(t, h.EvictedFrames(), uint64(150))

		start := time.Now()
		frames = play(t, h, 5*time.Millisecond, 1000)
		require.Len(t, frames, 2)
		assert.Equal(t, vplay.Completed, h.State())
		assert.Equal(t, byte(299%256), frames[0].Y[0])
		assert.False(t, frames[0].Discontinuity)
		assert.Equal(t, uint64(1), frames[0].Epoch)
		assert.Greater(t, h.CurrentTimestamp(), before+9*time.Second)
		assert.Less(t, time.Since(start), 200*time.Millisecond)
		assert.Zero(t, h.DroppedFrames())
	})
}
