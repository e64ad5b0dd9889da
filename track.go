package vplay

import "time"

// TrackInfo describes the selected video track. It is captured once when the
// container is opened.
type TrackInfo struct {
	TrackID     uint32
	Codec       Codec
	SampleCount uint32
	Timescale   uint32

	FPS     float64
	Bitrate uint64

	Width  int
	Height int

	DefaultSampleDuration uint32
	Duration              time.Duration

	// LengthSize is the byte width of the NAL unit length prefixes.
	LengthSize int
	SPS        [][]byte
	PPS        [][]byte
}

func (t TrackInfo) Resolution() Resolution {
	return Resolution{Width: t.Width, Height: t.Height}
}

// SampleDuration returns the average sample duration.
func (t TrackInfo) SampleDuration() time.Duration {
	if t.SampleCount == 0 {
		return 0
	}
	return t.Duration / time.Duration(t.SampleCount)
}

// UnitsToDuration converts v units of the given timescale to a duration
// without overflowing for long tracks.
func UnitsToDuration(v int64, timescale uint32) time.Duration {
	if timescale == 0 {
		return 0
	}
	ts := int64(timescale)
	sec := v / ts
	rem := v % ts
	return time.Duration(sec)*time.Second + time.Duration(rem*int64(time.Second)/ts)
}
