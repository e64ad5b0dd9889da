package subcmd

import (
	"flag"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"
	"slices"

	"github.com/mengelbart/vplay/cmdmain"
)

// mediaDeps are the modules whose versions version reports next to the
// build information.
var mediaDeps = []string{
	"github.com/abema/go-mp4",
	"github.com/go-gst/go-gst",
	"github.com/yapingcat/gomedia",
}

func init() {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return
	}
	cmdmain.RegisterSubCmd("version", func() cmdmain.SubCmd { return newVersion(info) })
}

type Version struct {
	path      string
	version   string
	gitCommit string
	gitDate   string
	goVersion string
	deps      [][2]string
}

func newVersion(info *debug.BuildInfo) *Version {
	v := &Version{
		path:      info.Main.Path,
		version:   info.Main.Version,
		goVersion: runtime.Version(),
	}
	modified := false
	for _, setting := range info.Settings {
		switch setting.Key {
		case "vcs.revision":
			v.gitCommit = setting.Value
		case "vcs.time":
			v.gitDate = setting.Value
		case "vcs.modified":
			modified = setting.Value == "true"
		}
	}
	if modified {
		v.gitCommit += "+dirty"
	}
	for _, dep := range info.Deps {
		if slices.Contains(mediaDeps, dep.Path) {
			v.deps = append(v.deps, [2]string{dep.Path, dep.Version})
		}
	}
	return v
}

// Exec implements cmdmain.SubCmd.
func (v *Version) Exec(cmd string, args []string) error {
	fs := flag.NewFlagSet("version", flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Print version information

Usage:
	%s version [flags]

Flags:
`, cmd)
		fs.PrintDefaults()
		fmt.Fprintln(os.Stderr)
	}
	fs.Parse(args)

	v.print(os.Stdout)
	return nil
}

func (v *Version) print(w io.Writer) {
	fmt.Fprintf(w, `%s
	Version:	%s
	Git commit:	%s
	Built:		%s
	Go Version:	%s
`, v.path, v.version, v.gitCommit, v.gitDate, v.goVersion)
	for _, dep := range v.deps {
		fmt.Fprintf(w, "\t%s:\t%s\n", dep[0], dep[1])
	}
}

// Help implements cmdmain.SubCmd.
func (v *Version) Help() string {
	return "Print version information"
}
