package subcmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/cmdmain"
	"github.com/mengelbart/vplay/flags"
	"github.com/mengelbart/vplay/gstreamer"
	"github.com/mengelbart/vplay/internal/control"
	"github.com/mengelbart/vplay/player"
	"github.com/mengelbart/vplay/sink"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

func init() {
	cmdmain.RegisterSubCmd("play", func() cmdmain.SubCmd { return new(Play) })
}

var _ control.Player = (*player.Handle)(nil)

type Play struct{}

func (p *Play) Help() string {
	return "Play the H.264 video track of an MP4 file"
}

// SetFlags implements cmdmain.FlagSetter.
func (p *Play) SetFlags(fs *flag.FlagSet) {
	flags.RegisterInto(fs, []flags.FlagName{
		flags.FileFlag,
		flags.HTTPAddrFlag,
		flags.DumpY4MFlag,
		flags.TickRateFlag,
		flags.PlaySpeedFlag,
		flags.DropLateFramesFlag,
		flags.ChunkQueueSizeFlag,
		flags.FrameQueueSizeFlag,
		flags.DecoderElementFlag,
		flags.TraceDecoderFlag,
	}...)
}

func (p *Play) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("play", flag.ExitOnError)
	p.SetFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Decode and present the video track of an MP4 file in real time

Usage:
	%v play [flags] [file]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	if len(fs.Args()) > 1 {
		fmt.Fprintf(os.Stderr, "error: unknown extra arguments: %v\n", fs.Args()[1:])
		fs.Usage()
		os.Exit(1)
	}
	if fs.NArg() == 1 {
		flags.File = fs.Arg(0)
	}
	if flags.File == "" {
		fmt.Fprintf(os.Stderr, "error: missing input file\n")
		fs.Usage()
		os.Exit(1)
	}
	if flags.TickRate == 0 {
		return fmt.Errorf("invalid %v: must be at least 1", flags.TickRateFlag)
	}
	speed, err := vplay.ParsePlaySpeed(flags.PlaySpeed)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := slog.Default()
	factory := gstreamer.NewEngineFactory(
		gstreamer.H264DecoderElement(flags.DecoderElement),
		gstreamer.H264DecoderTrace(flags.TraceDecoder),
		gstreamer.H264DecoderLogger(logger),
	)
	h, err := player.Open(
		ctx,
		flags.File,
		player.ChunkQueueSize(int(flags.ChunkQueueSize)),
		player.FrameQueueSize(int(flags.FrameQueueSize)),
		player.DropLateFrames(flags.DropLateFrames),
		player.WithEngineFactory(factory),
		player.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := h.Close(); err != nil {
			logger.Error("failed to close player", "error", err)
		}
	}()
	h.SetPlaySpeed(speed)

	track := h.Track()
	logger.Info(
		"playing",
		"file", flags.File,
		"resolution", fmt.Sprintf("%vx%v", track.Width, track.Height),
		"fps", h.FPS(),
		"duration", h.TotalDuration(),
	)

	var out *sink.Y4MSink
	if flags.DumpY4M != "" {
		num, den := sink.FrameRate(track)
		out, err = sink.NewY4MSink(flags.DumpY4M, num, den)
		if err != nil {
			return err
		}
		defer func() {
			if err := out.Close(); err != nil {
				logger.Error("failed to close y4m sink", "error", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	eg, ctx := errgroup.WithContext(ctx)
	if flags.HTTPAddr != "" {
		srv, err := control.NewServer(
			control.Address(flags.HTTPAddr),
			control.Handle(control.NewAPI(h, logger).Router()),
			control.Logger(logger),
		)
		if err != nil {
			return err
		}
		eg.Go(func() error {
			return srv.ListenAndServe(ctx)
		})
	}
	eg.Go(func() error {
		defer cancel()
		return present(ctx, h, out, flags.TickRate, logger)
	})
	return eg.Wait()
}

// present drives the playback clock at tickRate until playback completes or
// ctx is done. Presented frames go to out if it is not nil.
func present(ctx context.Context, h *player.Handle, out *sink.Y4MSink, tickRate uint, logger *slog.Logger) error {
	limiter := rate.NewLimiter(rate.Limit(tickRate), 1)
	report := rate.Sometimes{Interval: time.Second}
	dropWarn := rate.Sometimes{Interval: time.Second}
	presented := 0
	var dropped uint64
	for {
		if err := limiter.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				logger.Info("playback interrupted", "presented", presented, "dropped", h.DroppedFrames(), "evicted", h.EvictedFrames())
				return nil
			}
			return err
		}
		h.Tick()
		if f, ok := h.CurrentFrame(); ok {
			presented++
			if out != nil {
				if err := out.SaveFrame(f); err != nil {
					return errors.Join(fmt.Errorf("failed to write frame at %v", f.PTS), err)
				}
			}
		}
		if d := h.DroppedFrames(); d > dropped {
			dropWarn.Do(func() {
				logger.Warn("dropped frames", "new", d-dropped, "total", d, "position", h.CurrentTimestamp())
				dropped = d
			})
		}
		report.Do(func() {
			logger.Info(
				"progress",
				"state", h.State(),
				"position", h.CurrentTimestamp(),
				"progress", fmt.Sprintf("%.1f%%", 100*h.Progress()),
				"presented", presented,
				"dropped", h.DroppedFrames(),
				"evicted", h.EvictedFrames(),
			)
		})
		if h.State() == vplay.Completed {
			logger.Info("playback completed", "presented", presented, "dropped", h.DroppedFrames(), "evicted", h.EvictedFrames())
			return nil
		}
	}
}
