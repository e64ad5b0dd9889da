package vplay

import "fmt"

type CommandKind int

const (
	Play CommandKind = iota
	Pause
	Stop
	SkipForward
	SkipBackward
	Seek
)

func (k CommandKind) String() string {
	switch k {
	case Play:
		return "play"
	case Pause:
		return "pause"
	case Stop:
		return "stop"
	case SkipForward:
		return "skip-forward"
	case SkipBackward:
		return "skip-backward"
	case Seek:
		return "seek"
	}
	return "unknown"
}

// ParseCommandKind is the inverse of CommandKind.String.
func ParseCommandKind(s string) (CommandKind, error) {
	for k := Play; k <= Seek; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown command: %q", s)
}

// Command is a transport control sent from the handle to the reader.
// Fraction is only used by Seek and is relative to the total duration.
type Command struct {
	Kind     CommandKind
	Fraction float64
}

func (c Command) String() string {
	if c.Kind == Seek {
		return fmt.Sprintf("seek(%.3f)", c.Fraction)
	}
	return c.Kind.String()
}
