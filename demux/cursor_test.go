package demux

import (
	"testing"
	"time"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/queue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSyncSamples = []uint32{1, 101, 201, 301}

func newTestCursor(t *testing.T, count uint32, syncSamples []uint32) (*Cursor, *queue.Sender[vplay.Command]) {
	t.Helper()
	tx, rx := queue.New[vplay.Command](4)
	t.Cleanup(func() {
		tx.Close()
		rx.Close()
	})
	return NewCursor(count, 33*time.Millisecond, syncSamples, rx, nil), tx
}

func advance(t *testing.T, c *Cursor, n int) uint32 {
	t.Helper()
	var last uint32
	for range n {
		var ok bool
		last, ok = c.Next()
		require.True(t, ok)
	}
	return last
}

func TestCursorVisitsEverySampleOnce(t *testing.T) {
	c, _ := newTestCursor(t, 5, nil)
	var got []uint32
	for {
		n, ok := c.Next()
		if !ok {
			break
		}
		assert.False(t, c.Jumped())
		got = append(got, n)
	}
	assert.Equal(t, []uint32{1, 2, 3, 4, 5}, got)

	// stays exhausted
	_, ok := c.Next()
	assert.False(t, ok)
}

func TestCursorSnapsToKeyframes(t *testing.T) {
	for _, tc := range []struct {
		name   string
		start  int
		cmd    vplay.Command
		expect uint32
		jumped bool
	}{
		{name: "skip-forward", start: 150, cmd: vplay.Command{Kind: vplay.SkipForward}, expect: 201, jumped: true},
		{name: "skip-backward", start: 150, cmd: vplay.Command{Kind: vplay.SkipBackward}, expect: 1, jumped: true},
		{name: "skip-backward-exact", start: 201, cmd: vplay.Command{Kind: vplay.SkipBackward}, expect: 101, jumped: true},
		{name: "skip-forward-clamped", start: 390, cmd: vplay.Command{Kind: vplay.SkipForward}, expect: 301, jumped: true},
		{name: "skip-backward-clamped", start: 10, cmd: vplay.Command{Kind: vplay.SkipBackward}, expect: 1, jumped: true},
		{name: "seek-half", start: 5, cmd: vplay.Command{Kind: vplay.Seek, Fraction: 0.5}, expect: 101, jumped: true},
		{name: "seek-past-half", start: 5, cmd: vplay.Command{Kind: vplay.Seek, Fraction: 0.6}, expect: 201, jumped: true},
		{name: "seek-end", start: 5, cmd: vplay.Command{Kind: vplay.Seek, Fraction: 1}, expect: 301, jumped: true},
		{name: "seek-start", start: 250, cmd: vplay.Command{Kind: vplay.Seek, Fraction: 0}, expect: 1, jumped: true},
		{name: "seek-clamped", start: 250, cmd: vplay.Command{Kind: vplay.Seek, Fraction: 7}, expect: 301, jumped: true},
		{name: "pause", start: 42, cmd: vplay.Command{Kind: vplay.Pause}, expect: 43},
		{name: "play", start: 42, cmd: vplay.Command{Kind: vplay.Play}, expect: 43},
		{name: "stop", start: 42, cmd: vplay.Command{Kind: vplay.Stop}, expect: 43},
	} {
		t.Run(tc.name, func(t *testing.T) {
			c, tx := newTestCursor(t, 400, testSyncSamples)
			assert.Equal(t, uint32(tc.start), advance(t, c, tc.start))

			require.NoError(t, tx.TrySend(tc.cmd))
			n, ok := c.Next()
			require.True(t, ok)
			assert.Equal(t, tc.expect, n)
			assert.Equal(t, tc.jumped, c.Jumped())

			// playback continues after the target
			n, ok = c.Next()
			require.True(t, ok)
			assert.Equal(t, tc.expect+1, n)
			assert.False(t, c.Jumped())
		})
	}
}

func TestCursorWithoutSyncTableIgnoresJumps(t *testing.T) {
	c, tx := newTestCursor(t, 400, nil)
	advance(t, c, 150)

	for _, cmd := range []vplay.Command{
		{Kind: vplay.SkipForward},
		{Kind: vplay.SkipBackward},
		{Kind: vplay.Seek, Fraction: 0.1},
	} {
		require.NoError(t, tx.TrySend(cmd))
		before := c.Current()
		n, ok := c.Next()
		require.True(t, ok)
		assert.Equal(t, before+1, n)
		assert.False(t, c.Jumped())
	}
}

func TestCursorNoKeyframeBeforeTarget(t *testing.T) {
	c, tx := newTestCursor(t, 400, []uint32{50, 150})
	advance(t, c, 60)

	require.NoError(t, tx.TrySend(vplay.Command{Kind: vplay.Seek, Fraction: 0}))
	n, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(61), n)
	assert.False(t, c.Jumped())
}

func TestCursorAppliesOneCommandPerSample(t *testing.T) {
	c, tx := newTestCursor(t, 400, testSyncSamples)
	advance(t, c, 10)

	require.NoError(t, tx.TrySend(vplay.Command{Kind: vplay.Seek, Fraction: 0.8}))
	require.NoError(t, tx.TrySend(vplay.Command{Kind: vplay.SkipBackward}))

	n, _ := c.Next()
	assert.Equal(t, uint32(301), n)
	n, _ = c.Next()
	assert.Equal(t, uint32(201), n)
	n, _ = c.Next()
	assert.Equal(t, uint32(202), n)
}

func TestCursorNeverExceedsCount(t *testing.T) {
	c, tx := newTestCursor(t, 400, testSyncSamples)
	advance(t, c, 400)
	require.NoError(t, tx.TrySend(vplay.Command{Kind: vplay.SkipForward}))
	n, ok := c.Next()
	require.True(t, ok)
	assert.Equal(t, uint32(301), n)
	assert.LessOrEqual(t, advance(t, c, 99), uint32(400))
	_, ok = c.Next()
	assert.False(t, ok)
}

func TestCursorPosition(t *testing.T) {
	c, _ := newTestCursor(t, 400, nil)
	advance(t, c, 30)
	assert.Equal(t, 990*time.Millisecond, c.Position())
}

func TestKeyframeAtOrBefore(t *testing.T) {
	for _, tc := range []struct {
		target uint32
		expect uint32
		ok     bool
	}{
		{target: 0, ok: false},
		{target: 1, expect: 1, ok: true},
		{target: 100, expect: 1, ok: true},
		{target: 101, expect: 101, ok: true},
		{target: 250, expect: 201, ok: true},
		{target: 400, expect: 301, ok: true},
	} {
		got, ok := keyframeAtOrBefore(testSyncSamples, tc.target)
		assert.Equal(t, tc.ok, ok, "target %v", tc.target)
		if tc.ok {
			assert.Equal(t, tc.expect, got, "target %v", tc.target)
		}
	}
}
