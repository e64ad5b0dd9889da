package vplay

import "fmt"

type PlaybackState int

const (
	Stopped PlaybackState = iota
	Playing
	Paused
	Completed
)

func (s PlaybackState) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Completed:
		return "completed"
	}
	return "unknown"
}

// PlaySpeed is an ordered playback rate selector.
type PlaySpeed int

const (
	SpeedStopped PlaySpeed = iota
	SpeedSlower
	SpeedSlow
	SpeedNormal
	SpeedFast
	SpeedFaster
	SpeedFastest
)

var playSpeedNames = [...]string{"stopped", "slower", "slow", "normal", "fast", "faster", "fastest"}

func (s PlaySpeed) String() string {
	if s < SpeedStopped || s > SpeedFastest {
		return "unknown"
	}
	return playSpeedNames[s]
}

func ParsePlaySpeed(s string) (PlaySpeed, error) {
	for i, n := range playSpeedNames {
		if n == s {
			return PlaySpeed(i), nil
		}
	}
	return SpeedNormal, fmt.Errorf("unknown play speed: %q", s)
}

// Multiplier returns the nominal rate of the speed setting.
//
// The playback clock does not apply it yet; it always advances at 1.0.
func (s PlaySpeed) Multiplier() float64 {
	switch s {
	case SpeedStopped:
		return 0
	case SpeedSlower:
		return 0.25
	case SpeedSlow:
		return 0.5
	case SpeedFast:
		return 1.5
	case SpeedFaster:
		return 2
	case SpeedFastest:
		return 4
	}
	return 1
}
