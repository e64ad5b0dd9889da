package gstreamer

import (
	"log/slog"
	"time"

	"github.com/go-gst/go-gst/gst"
)

// getBufferLogPadProbe returns a pad probe logging the timestamp and size of
// every buffer passing the pad.
func getBufferLogPadProbe(logger *slog.Logger, vantagePointName string) func(p *gst.Pad, ppi *gst.PadProbeInfo) gst.PadProbeReturn {
	logger = logger.With("vantage-point", vantagePointName)
	return func(p *gst.Pad, ppi *gst.PadProbeInfo) gst.PadProbeReturn {
		if (ppi.Type() & gst.PadProbeTypeBuffer) > 0 {
			buffer := ppi.GetBuffer()
			if buffer != nil {
				logger.Debug(
					"buffer",
					"pts", time.Duration(buffer.PresentationTimestamp()),
					"size", buffer.GetSize(),
				)
			}
		}
		return gst.PadProbeOK
	}
}
