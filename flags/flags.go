// Package flags implements command-line flags for vplay.
//
// The design idea is taken from [upspin.io/flags], but most of the code is
// modified. This package uses a slightly modified version of [RegisterInto] and
// the internal [flags]-map. See [Upspin LICENSE] for upspins copyright and
// license information.
//
// [upspin.io/flags]: https://github.com/upspin/upspin/tree/334f107fe3d98225d7adfbb35b74e066fbca9875/flags
// [Upspin LICENSE]: https://github.com/upspin/upspin/blob/334f107fe3d98225d7adfbb35b74e066fbca9875/LICENSE
package flags

import (
	"flag"
	"fmt"

	"github.com/mengelbart/vplay"
)

type FlagName string

// flag keys
const (
	FileFlag     FlagName = "file"
	HTTPAddrFlag FlagName = "http-address"

	DumpY4MFlag FlagName = "dump-y4m"

	TickRateFlag       FlagName = "tick-rate"
	PlaySpeedFlag      FlagName = "play-speed"
	DropLateFramesFlag FlagName = "drop-late-frames"

	ChunkQueueSizeFlag FlagName = "chunk-queue"
	FrameQueueSizeFlag FlagName = "frame-queue"

	DecoderElementFlag FlagName = "decoder"
	TraceDecoderFlag   FlagName = "trace-decoder"

	SampleCountFlag FlagName = "samples"
)

// Flag vars
var (
	// File is the MP4 file to play
	File = ""

	// HTTPAddr is the control API address, empty disables the API
	HTTPAddr = ""

	DumpY4M = ""

	// TickRate is the number of playback clock ticks per second
	TickRate       = uint(60)
	PlaySpeed      = vplay.SpeedNormal.String()
	DropLateFrames = false

	ChunkQueueSize = uint(8)
	FrameQueueSize = uint(4)

	DecoderElement = "avdec_h264"
	TraceDecoder   = false

	SampleCount = uint(1)
)

type flagVar func(*flag.FlagSet)

func stringVar(p *string, name FlagName, defaultValue *string, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.StringVar(p, string(name), *defaultValue, usage)
	}
}

func uintVar(p *uint, name FlagName, defaultValue *uint, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.UintVar(p, string(name), *defaultValue, usage)
	}
}

func boolVar(p *bool, name FlagName, defaultValue *bool, usage string) func(*flag.FlagSet) {
	return func(fs *flag.FlagSet) {
		fs.BoolVar(p, string(name), *defaultValue, usage)
	}
}

var flags = map[FlagName]flagVar{
	FileFlag:     stringVar(&File, FileFlag, &File, "MP4 file containing an H.264 video track"),
	HTTPAddrFlag: stringVar(&HTTPAddr, HTTPAddrFlag, &HTTPAddr, "Control API address, empty string disables the API"),

	// IO Flags
	DumpY4MFlag: stringVar(&DumpY4M, DumpY4MFlag, &DumpY4M, "Write presented frames to this Y4M file"),

	// Playback flags
	TickRateFlag:       uintVar(&TickRate, TickRateFlag, &TickRate, "Playback clock ticks per second"),
	PlaySpeedFlag:      stringVar(&PlaySpeed, PlaySpeedFlag, &PlaySpeed, "Play speed (stopped, slower, slow, normal, fast, faster, fastest)"),
	DropLateFramesFlag: boolVar(&DropLateFrames, DropLateFramesFlag, &DropLateFrames, "Let the decoder overwrite frames the player has not taken yet"),

	// Queue flags
	ChunkQueueSizeFlag: uintVar(&ChunkQueueSize, ChunkQueueSizeFlag, &ChunkQueueSize, "Capacity of the encoded chunk queue"),
	FrameQueueSizeFlag: uintVar(&FrameQueueSize, FrameQueueSizeFlag, &FrameQueueSize, "Capacity of the decoded frame queue"),

	DecoderElementFlag: stringVar(&DecoderElement, DecoderElementFlag, &DecoderElement, "Gstreamer H.264 decoder element"),

	// tracing flags
	TraceDecoderFlag: boolVar(&TraceDecoder, TraceDecoderFlag, &TraceDecoder, "Log buffers entering and leaving the decoder element (requires debug log level)"),

	SampleCountFlag: uintVar(&SampleCount, SampleCountFlag, &SampleCount, "Number of samples to inspect"),
}

func RegisterInto(fs *flag.FlagSet, names ...FlagName) {
	if len(names) == 0 {
		for _, f := range flags {
			f(fs)
		}
	} else {
		for _, n := range names {
			f, ok := flags[n]
			if !ok {
				panic(fmt.Sprintf("unknown flag: %q", n))
			}
			f(fs)
		}
	}
}
