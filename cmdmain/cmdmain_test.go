package cmdmain

import (
	"bytes"
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCmd struct {
	rate uint
}

func (c *testCmd) Help() string { return "Run a test command" }

func (c *testCmd) Exec(cmd string, args []string) error { return nil }

func (c *testCmd) SetFlags(fs *flag.FlagSet) {
	fs.UintVar(&c.rate, "tick-rate", 60, "Playback clock ticks per second")
	fs.String("file", "", "MP4 file")
}

type bareCmd struct{}

func (bareCmd) Help() string { return "Run without flags" }

func (bareCmd) Exec(cmd string, args []string) error { return nil }

func init() {
	RegisterSubCmd("testcmd", func() SubCmd { return new(testCmd) })
	RegisterSubCmd("barecmd", func() SubCmd { return bareCmd{} })
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintUsage(&buf, "vplay", "testcmd"))
	out := buf.String()

	assert.Contains(t, out, "Run a test command")
	assert.Contains(t, out, "vplay testcmd [flags]")
	assert.Contains(t, out, "-tick-rate")
	assert.Contains(t, out, "(default 60)")
	assert.Contains(t, out, "-file")
}

func TestPrintUsageWithoutFlags(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, PrintUsage(&buf, "vplay", "barecmd"))
	assert.Contains(t, buf.String(), "Run without flags")
	assert.NotContains(t, buf.String(), "Flags:")
}

func TestPrintUsageUnknown(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, PrintUsage(&buf, "vplay", "rewind"))
	assert.Empty(t, buf.String())
}

func TestWriteUsageListsCommandFlags(t *testing.T) {
	var buf bytes.Buffer
	writeUsage(&buf, "vplay")
	out := buf.String()

	assert.Contains(t, out, "vplay plays the H.264 video track of MP4 files")
	assert.Contains(t, out, "barecmd")
	assert.Contains(t, out, "flags: -file -tick-rate")
	assert.Contains(t, out, "Run `vplay help <command>`")
}
