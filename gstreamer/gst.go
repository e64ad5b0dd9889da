// Package gstreamer implements the decoding engine on top of GStreamer.
package gstreamer

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/go-gst/go-glib/glib"
	"github.com/go-gst/go-gst/gst"
)

var initOnce sync.Once

func ensureInit() {
	initOnce.Do(func() {
		gst.Init(nil)
	})
}

// busWatch runs a main loop dispatching the pipeline's bus messages until
// stop is called. The first error posted on the bus is kept and returned by
// err.
type busWatch struct {
	logger   *slog.Logger
	pipeline *gst.Pipeline
	mainloop *glib.MainLoop
	done     chan struct{}

	mu       sync.Mutex
	busErr   error
	stopOnce sync.Once
}

func watchBus(pipeline *gst.Pipeline, logger *slog.Logger) *busWatch {
	w := &busWatch{
		logger:   logger,
		pipeline: pipeline,
		mainloop: glib.NewMainLoop(glib.MainContextDefault(), false),
		done:     make(chan struct{}),
	}
	pipeline.GetPipelineBus().AddWatch(func(msg *gst.Message) bool {
		switch msg.Type() {
		case gst.MessageEOS:
			w.logger.Debug("pipeline reached end of stream")
		case gst.MessageError:
			gerr := msg.ParseError()
			w.logger.Error("pipeline error", "source", msg.Source(), "error", gerr.Error(), "debug", gerr.DebugString())
			w.mu.Lock()
			if w.busErr == nil {
				w.busErr = errors.New(gerr.Error())
			}
			w.mu.Unlock()
			// unblocks pending pulls on the appsink
			if err := pipeline.SetState(gst.StateNull); err != nil {
				w.logger.Warn("failed to stop pipeline", "error", err)
			}
		case gst.MessageWarning:
			gerr := msg.ParseWarning()
			w.logger.Warn("pipeline warning", "source", msg.Source(), "warning", gerr.Error())
		}
		return true
	})
	go func() {
		defer close(w.done)
		w.mainloop.Run()
	}()
	return w
}

func (w *busWatch) err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.busErr
}

func (w *busWatch) stop() {
	w.stopOnce.Do(func() {
		w.mainloop.Quit()
		<-w.done
	})
}

func SetProperties(e *gst.Element, pp map[string]any) error {
	for k, v := range pp {
		if err := e.SetProperty(k, v); err != nil {
			return err
		}
	}
	return nil
}
