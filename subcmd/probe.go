package subcmd

import (
	"bytes"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/mengelbart/vplay/cmdmain"
	"github.com/mengelbart/vplay/demux"
	"github.com/mengelbart/vplay/flags"
	"github.com/pion/webrtc/v4/pkg/media/h264reader"
)

func init() {
	cmdmain.RegisterSubCmd("probe", func() cmdmain.SubCmd { return new(Probe) })
}

type Probe struct{}

func (p *Probe) Help() string {
	return "Print track information and the NAL units of the first samples"
}

// SetFlags implements cmdmain.FlagSetter.
func (p *Probe) SetFlags(fs *flag.FlagSet) {
	flags.RegisterInto(fs, []flags.FlagName{
		flags.FileFlag,
		flags.SampleCountFlag,
	}...)
}

func (p *Probe) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("probe", flag.ExitOnError)
	p.SetFlags(fs)

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Print information about the H.264 video track of an MP4 file

Usage:
	%v probe [flags] [file]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	if fs.NArg() == 1 {
		flags.File = fs.Arg(0)
	}
	if flags.File == "" || fs.NArg() > 1 {
		fs.Usage()
		os.Exit(1)
	}

	f, err := os.Open(flags.File)
	if err != nil {
		return err
	}
	defer f.Close()

	return probe(os.Stdout, f, uint32(flags.SampleCount))
}

func probe(w io.Writer, f demux.File, samples uint32) error {
	c, err := demux.Open(f)
	if err != nil {
		return err
	}
	track := c.Track()

	tw := tabwriter.NewWriter(w, 0, 4, 1, ' ', 0)
	fmt.Fprintf(tw, "track:\t%v\n", track.TrackID)
	fmt.Fprintf(tw, "codec:\t%v (%v)\n", track.Codec, track.Codec.FourCC())
	fmt.Fprintf(tw, "resolution:\t%vx%v\n", track.Width, track.Height)
	fmt.Fprintf(tw, "samples:\t%v\n", track.SampleCount)
	fmt.Fprintf(tw, "timescale:\t%v\n", track.Timescale)
	fmt.Fprintf(tw, "duration:\t%v\n", track.Duration)
	fmt.Fprintf(tw, "fps:\t%.3f\n", track.FPS)
	fmt.Fprintf(tw, "bitrate:\t%v\n", track.Bitrate)
	fmt.Fprintf(tw, "nal length size:\t%v\n", track.LengthSize)
	fmt.Fprintf(tw, "parameter sets:\t%v SPS, %v PPS\n", len(track.SPS), len(track.PPS))
	fmt.Fprintf(tw, "keyframes:\t%v\n", len(c.SyncSamples()))
	if err := tw.Flush(); err != nil {
		return err
	}

	repacker, err := demux.NewAVCRepacker(track.LengthSize, track.SPS, track.PPS)
	if err != nil {
		return err
	}
	for n := uint32(1); n <= min(samples, track.SampleCount); n++ {
		sample, err := c.ReadSample(n)
		if err != nil {
			return err
		}
		data, err := repacker.Repack(sample)
		if err != nil {
			return err
		}
		pts, dts := c.Timestamps(n)
		fmt.Fprintf(w, "\nsample %v: pts=%v dts=%v sync=%v size=%v\n", n, pts, dts, c.IsSync(n), len(sample))
		if err := listNALUs(w, data); err != nil {
			return err
		}
	}
	return nil
}

func listNALUs(w io.Writer, annexB []byte) error {
	r, err := h264reader.NewReader(bytes.NewReader(annexB))
	if err != nil {
		return err
	}
	for {
		nal, err := r.NextNAL()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %-24v %v bytes\n", nal.UnitType.String(), len(nal.Data))
	}
}
