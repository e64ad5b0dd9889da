package subcmd

import (
	"bytes"
	"runtime/debug"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersion(t *testing.T) {
	v := newVersion(&debug.BuildInfo{
		Main: debug.Module{Path: "github.com/mengelbart/vplay", Version: "v0.1.0"},
		Deps: []*debug.Module{
			{Path: "github.com/abema/go-mp4", Version: "v1.4.1"},
			{Path: "golang.org/x/time", Version: "v0.14.0"},
		},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "abc123"},
			{Key: "vcs.modified", Value: "true"},
		},
	})

	var buf bytes.Buffer
	v.print(&buf)
	out := buf.String()

	assert.Contains(t, out, "github.com/mengelbart/vplay")
	assert.Contains(t, out, "v0.1.0")
	assert.Contains(t, out, "abc123+dirty")
	assert.Contains(t, out, "github.com/abema/go-mp4:\tv1.4.1")
	assert.NotContains(t, out, "golang.org/x/time")
}
