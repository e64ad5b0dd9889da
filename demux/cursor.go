package demux

import (
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/queue"
)

// SkipDistance is the number of samples a skip command moves the cursor
// before snapping to a keyframe.
const SkipDistance = 100

// Cursor is the playback position of the reader. It is owned by the reader
// goroutine.
type Cursor struct {
	logger *slog.Logger

	current           uint32
	count             uint32
	avgSampleDuration time.Duration
	syncSamples       []uint32
	commands          *queue.Receiver[vplay.Command]

	jumped bool
}

// NewCursor creates a cursor over count samples. syncSamples must be sorted
// and may be nil. commands may be nil if no controls are needed.
func NewCursor(count uint32, avgSampleDuration time.Duration, syncSamples []uint32, commands *queue.Receiver[vplay.Command], logger *slog.Logger) *Cursor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cursor{
		logger:            logger,
		current:           0,
		count:             count,
		avgSampleDuration: avgSampleDuration,
		syncSamples:       syncSamples,
		commands:          commands,
	}
}

// Next returns the next sample number to read. It applies at most one pending
// command first. Next returns false once the cursor moved past the last
// sample.
func (c *Cursor) Next() (uint32, bool) {
	c.jumped = false
	if c.commands != nil {
		if cmd, err := c.commands.TryRecv(); err == nil {
			c.jumped = c.apply(cmd)
		}
	}
	if !c.jumped && c.current <= c.count {
		c.current++
	}
	if c.current == 0 || c.current > c.count {
		return 0, false
	}
	return c.current, true
}

// Jumped reports whether the last call to Next moved the cursor because of a
// seek or skip command.
func (c *Cursor) Jumped() bool {
	return c.jumped
}

// Current returns the last sample number returned by Next.
func (c *Cursor) Current() uint32 {
	return c.current
}

// Position returns the approximate media time of the cursor.
func (c *Cursor) Position() time.Duration {
	return time.Duration(c.current) * c.avgSampleDuration
}

func (c *Cursor) apply(cmd vplay.Command) bool {
	switch cmd.Kind {
	case vplay.SkipForward:
		return c.jumpTo(cmd, int64(c.current)+SkipDistance)
	case vplay.SkipBackward:
		return c.jumpTo(cmd, int64(c.current)-SkipDistance)
	case vplay.Seek:
		f := min(max(cmd.Fraction, 0), 1)
		return c.jumpTo(cmd, int64(math.Round(f*float64(c.count))))
	default:
		c.logger.Info("transport command has no effect on reader", "command", cmd, "sample", c.current)
		return false
	}
}

func (c *Cursor) jumpTo(cmd vplay.Command, target int64) bool {
	target = min(max(target, 1), int64(c.count))
	if c.syncSamples == nil {
		c.logger.Info("ignoring command, track has no sync sample table", "command", cmd, "sample", c.current)
		return false
	}
	keyframe, ok := keyframeAtOrBefore(c.syncSamples, uint32(target))
	if !ok {
		c.logger.Info("ignoring command, no keyframe before target", "command", cmd, "sample", c.current, "target", target)
		return false
	}
	c.logger.Info("moving cursor", "command", cmd, "from", c.current, "to", keyframe, "target", target)
	c.current = keyframe
	return true
}

// keyframeAtOrBefore returns the greatest entry of the sorted table that is
// less than or equal to target.
func keyframeAtOrBefore(syncSamples []uint32, target uint32) (uint32, bool) {
	i, found := searchSync(syncSamples, target)
	if found {
		return syncSamples[i], true
	}
	if i == 0 {
		return 0, false
	}
	return syncSamples[i-1], true
}

func searchSync(syncSamples []uint32, n uint32) (int, bool) {
	return slices.BinarySearch(syncSamples, n)
}
