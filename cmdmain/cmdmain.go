// Package cmdmain implements commands and subcommands.
//
// The design idea is taken from [perkeep/cmdmain], but most of the code is
// modified. This package uses the [RegisterSubCmd] to allow users to add new
// subcommands. The implementation uses the same mechanism as perkeep. See
// [Perkeep LICENSE] for perkeeps copyright and license information.
//
// [perkeep/cmdmain]: https://github.com/perkeep/perkeep/tree/56726780f66b5654c1d7c01dc85b0e686ddbffd2/pkg/cmdmain
// [Perkeep LICENSE]: https://github.com/perkeep/perkeep/blob/56726780f66b5654c1d7c01dc85b0e686ddbffd2/COPYING
package cmdmain

import (
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/mengelbart/vplay/internal/logging"
)

var (
	logFormat string
	logLevel  int
	logFile   string
)

type SubCmd interface {
	Help() string
	Exec(cmd string, args []string) error
}

// FlagSetter is implemented by subcommands that list their flags in the
// top-level usage and in `help <command>`.
type FlagSetter interface {
	SetFlags(fs *flag.FlagSet)
}

var (
	subCmds = map[string]SubCmd{}
)

func RegisterSubCmd(name string, makeSubCmd func() SubCmd) {
	if _, ok := subCmds[name]; ok {
		log.Fatalf("duplicate subcommand: %q", name)
	}
	subCmds[name] = makeSubCmd()
}

func subCmdFlags(name string, subCmd SubCmd) (*flag.FlagSet, bool) {
	setter, ok := subCmd.(FlagSetter)
	if !ok {
		return nil, false
	}
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	setter.SetFlags(fs)
	return fs, true
}

// PrintUsage writes the help text and flags of the named subcommand to w.
func PrintUsage(w io.Writer, prog, name string) error {
	subCmd, ok := subCmds[name]
	if !ok {
		return fmt.Errorf("unknown subcommand: %q", name)
	}
	fmt.Fprintf(w, "%v\n\nUsage:\n\t%v %v [flags]\n", subCmd.Help(), prog, name)
	if fs, ok := subCmdFlags(name, subCmd); ok {
		fmt.Fprintln(w, "\nFlags:")
		fs.SetOutput(w)
		fs.PrintDefaults()
	}
	return nil
}

func writeUsage(w io.Writer, name string) {
	fmt.Fprintf(w, `%v plays the H.264 video track of MP4 files

Usage:
	%v [flags] <command> [command flags]
`, name, name)

	fmt.Fprintln(w, "\nCommands:")
	names := slices.Sorted(maps.Keys(subCmds))
	for _, n := range names {
		fmt.Fprintf(w, "  %-8s %s\n", n, subCmds[n].Help())
		if fs, ok := subCmdFlags(n, subCmds[n]); ok {
			var cmdFlags []string
			fs.VisitAll(func(f *flag.Flag) {
				cmdFlags = append(cmdFlags, "-"+f.Name)
			})
			fmt.Fprintf(w, "  %-8s   flags: %v\n", "", strings.Join(cmdFlags, " "))
		}
	}

	fmt.Fprintln(w, "\nFlags:")
	out := flag.CommandLine.Output()
	flag.CommandLine.SetOutput(w)
	flag.PrintDefaults()
	flag.CommandLine.SetOutput(out)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Run `%v help <command>` to show full help for a command\n", name)
}

func usage(name string) func() {
	return func() {
		writeUsage(os.Stderr, name)
	}
}

func Main() {
	flag.StringVar(&logFile, "logfile", "", "Log file, empty string means stderr")
	flag.StringVar(&logFormat, "log-format", "text", "Logging format: text or json")
	flag.IntVar(&logLevel, "log-level", 0, "Logging level (slog.Level)")

	flag.Usage = usage(os.Args[0])
	flag.Parse()

	if len(flag.Args()) < 1 {
		fmt.Println("error: missing subcommand")
		flag.Usage()
		os.Exit(1)
	}

	var lf io.Writer = nil
	// use log file
	if logFile != "" {
		f, err := os.Create(logFile)
		if err != nil {
			fmt.Printf("failed to open log file: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		lf = f
	}
	format, err := logging.ParseFormat(logFormat)
	if err != nil {
		fmt.Printf("error: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(format, slog.Level(logLevel), lf)

	subCmd, ok := subCmds[flag.Arg(0)]
	if !ok {
		fmt.Println("error: unknown subcommand")
		flag.Usage()
		os.Exit(1)
	}

	subCmdArgs := flag.Args()[1:]
	if err := subCmd.Exec(os.Args[0], subCmdArgs); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
