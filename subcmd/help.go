package subcmd

import (
	"flag"
	"fmt"
	"os"

	"github.com/mengelbart/vplay/cmdmain"
)

func init() {
	cmdmain.RegisterSubCmd("help", func() cmdmain.SubCmd { return new(help) })
}

type help struct{}

// Exec implements cmdmain.SubCmd. Without arguments it prints the top-level
// usage, otherwise the usage of the named subcommand.
func (h *help) Exec(cmd string, args []string) error {
	switch len(args) {
	case 0:
		flag.Usage()
		return nil
	case 1:
		return cmdmain.PrintUsage(os.Stderr, cmd, args[0])
	}
	return fmt.Errorf("help takes at most one subcommand, got %v", args)
}

// Help implements cmdmain.SubCmd.
func (h *help) Help() string {
	return "Print help, or the flags of one command"
}
