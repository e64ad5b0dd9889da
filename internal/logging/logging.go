package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
)

type Format string

const (
	TextFormat Format = "text"
	JSONFormat Format = "json"
)

func ParseFormat(s string) (Format, error) {
	switch f := Format(s); f {
	case TextFormat, JSONFormat:
		return f, nil
	}
	return TextFormat, fmt.Errorf("unknown log format: %q", s)
}

// New returns a logger writing to writer in the given format. A nil writer
// means stderr.
func New(format Format, level slog.Level, writer io.Writer) (*slog.Logger, error) {
	if writer == nil {
		writer = os.Stderr
	}
	ho := &slog.HandlerOptions{
		AddSource:   false,
		Level:       level,
		ReplaceAttr: nil,
	}
	switch format {
	case JSONFormat:
		return slog.New(slog.NewJSONHandler(writer, ho)), nil
	case TextFormat:
		return slog.New(slog.NewTextHandler(writer, ho)), nil
	}
	return nil, fmt.Errorf("unexpected logging.format: %#v", format)
}

func Configure(format Format, level slog.Level, writer io.Writer) {
	logger, err := New(format, level, writer)
	if err != nil {
		panic(err)
	}
	slog.SetDefault(logger)
}
