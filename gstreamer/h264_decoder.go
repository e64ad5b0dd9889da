package gstreamer

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/go-gst/go-gst/gst"
	"github.com/go-gst/go-gst/gst/app"
	"github.com/mengelbart/vplay"
	"github.com/mengelbart/vplay/decode"
)

type H264DecoderOption func(*H264Decoder) error

func H264DecoderLogger(logger *slog.Logger) H264DecoderOption {
	return func(d *H264Decoder) error {
		d.logger = logger
		return nil
	}
}

// H264DecoderElement selects the decoder element, avdec_h264 by default.
func H264DecoderElement(name string) H264DecoderOption {
	return func(d *H264Decoder) error {
		d.decoderElement = name
		return nil
	}
}

// H264DecoderTrace logs every buffer entering and leaving the decoder
// element at debug level.
func H264DecoderTrace(trace bool) H264DecoderOption {
	return func(d *H264Decoder) error {
		d.trace = trace
		return nil
	}
}

// H264Decoder decodes Annex-B access units with the pipeline
//
//	appsrc ! h264parse ! <decoder> ! videoconvert ! video/x-raw,format=I420 ! appsink
//
// Buffer timestamps are nanoseconds, the unit of GStreamer's clock.
type H264Decoder struct {
	logger         *slog.Logger
	decoderElement string
	trace          bool

	pipeline *gst.Pipeline
	src      *app.Source
	sink     *app.Sink
	bus      *busWatch

	mu       sync.Mutex
	flushing bool
	closed   bool
}

// NewEngineFactory returns a decode.EngineFactory creating H264Decoders.
func NewEngineFactory(opts ...H264DecoderOption) decode.EngineFactory {
	return func(track vplay.TrackInfo) (decode.Engine, error) {
		d, err := NewH264Decoder(track, opts...)
		if err != nil {
			return nil, err
		}
		return d, nil
	}
}

func NewH264Decoder(track vplay.TrackInfo, opts ...H264DecoderOption) (*H264Decoder, error) {
	d := &H264Decoder{
		logger:         slog.Default(),
		decoderElement: "avdec_h264",
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	d.logger = d.logger.With("component", "gst-h264-decoder")
	if track.Codec != vplay.H264 {
		return nil, fmt.Errorf("%w: unsupported codec %v", vplay.ErrDecoderInit, track.Codec)
	}
	if err := d.build(track); err != nil {
		return nil, fmt.Errorf("%w: %w", vplay.ErrDecoderInit, err)
	}
	return d, nil
}

func (d *H264Decoder) build(track vplay.TrackInfo) error {
	ensureInit()

	pipeline, err := gst.NewPipeline("")
	if err != nil {
		return fmt.Errorf("failed to create pipeline: %w", err)
	}
	src, err := app.NewAppSrc()
	if err != nil {
		return fmt.Errorf("failed to create appsrc: %w", err)
	}
	caps := fmt.Sprintf("video/x-h264,stream-format=byte-stream,alignment=au,width=%d,height=%d", track.Width, track.Height)
	src.SetCaps(gst.NewCapsFromString(caps))
	src.SetFormat(gst.FormatTime)

	elements := []*gst.Element{src.Element}
	for _, name := range []string{"h264parse", d.decoderElement, "videoconvert"} {
		e, err := gst.NewElement(name)
		if err != nil {
			return fmt.Errorf("failed to create %v: %w", name, err)
		}
		elements = append(elements, e)
	}

	if d.trace {
		dec := elements[2]
		dec.GetStaticPad("sink").AddProbe(gst.PadProbeTypeBuffer, getBufferLogPadProbe(d.logger, "decoder sink"))
		dec.GetStaticPad("src").AddProbe(gst.PadProbeTypeBuffer, getBufferLogPadProbe(d.logger, "decoder src"))
	}

	sink, err := app.NewAppSink()
	if err != nil {
		return fmt.Errorf("failed to create appsink: %w", err)
	}
	sink.SetCaps(gst.NewCapsFromString("video/x-raw,format=I420"))
	if err := SetProperties(sink.Element, map[string]any{
		"sync":         false,
		"emit-signals": false,
	}); err != nil {
		return fmt.Errorf("failed to configure appsink: %w", err)
	}
	elements = append(elements, sink.Element)

	if err := pipeline.AddMany(elements...); err != nil {
		return fmt.Errorf("failed to add elements: %w", err)
	}
	if err := gst.ElementLinkMany(elements...); err != nil {
		return fmt.Errorf("failed to link elements: %w", err)
	}

	d.pipeline = pipeline
	d.src = src
	d.sink = sink
	d.bus = watchBus(pipeline, d.logger)

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		d.bus.stop()
		return fmt.Errorf("failed to start pipeline: %w", err)
	}
	d.logger.Info("started decoder pipeline", "decoder", d.decoderElement, "caps", caps)
	return nil
}

// Submit implements decode.Engine.
func (d *H264Decoder) Submit(chunk vplay.EncodedChunk) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed || d.flushing {
		return errors.New("decoder does not accept input")
	}
	if err := d.bus.err(); err != nil {
		return err
	}
	buf := gst.NewBufferFromBytes(chunk.Data)
	buf.SetPresentationTimestamp(gst.ClockTime(chunk.PTS))
	if chunk.HasDTS {
		buf.SetDecodingTimestamp(gst.ClockTime(chunk.DTS))
	}
	if ret := d.src.PushBuffer(buf); ret != gst.FlowOK {
		return fmt.Errorf("failed to push buffer: %v", ret)
	}
	return nil
}

// Receive implements decode.Engine. It only blocks after Flush was called.
func (d *H264Decoder) Receive() (*decode.Picture, error) {
	d.mu.Lock()
	flushing, closed := d.flushing, d.closed
	d.mu.Unlock()
	if closed {
		return nil, io.EOF
	}

	var sample *gst.Sample
	if flushing {
		sample = d.sink.PullSample()
		if sample == nil {
			if err := d.bus.err(); err != nil {
				return nil, err
			}
			return nil, io.EOF
		}
	} else {
		sample = d.sink.TryPullSample(0)
		if sample == nil {
			if err := d.bus.err(); err != nil {
				return nil, err
			}
			return nil, decode.ErrNoPicture
		}
	}
	return d.picture(sample)
}

func (d *H264Decoder) picture(sample *gst.Sample) (*decode.Picture, error) {
	caps := sample.GetCaps()
	if caps == nil || caps.GetSize() == 0 {
		return nil, errors.New("sample without caps")
	}
	structure := caps.GetStructureAt(0)
	var format string
	var width, height int
	if val, err := structure.GetValue("format"); err == nil {
		format, _ = val.(string)
	}
	if val, err := structure.GetValue("width"); err == nil {
		width, _ = val.(int)
	}
	if val, err := structure.GetValue("height"); err == nil {
		height, _ = val.(int)
	}

	buffer := sample.GetBuffer()
	if buffer == nil {
		return nil, errors.New("sample without buffer")
	}
	mapInfo := buffer.Map(gst.MapRead)
	data := make([]byte, len(mapInfo.Bytes()))
	copy(data, mapInfo.Bytes())
	buffer.Unmap()

	p := &decode.Picture{
		Format: decode.ParsePixelFormat(format),
		Width:  width,
		Height: height,
		PTS:    time.Duration(buffer.PresentationTimestamp()),
	}
	if p.Format != decode.PixelFormatI420 {
		// decode.PackI420 drops it
		return p, nil
	}
	layout := decode.DefaultI420Layout(width, height)
	planes, err := layout.Split(data)
	if err != nil {
		return nil, err
	}
	p.Planes = planes
	p.Strides = layout.Strides
	return p, nil
}

// Flush implements decode.Engine.
func (d *H264Decoder) Flush() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return errors.New("decoder closed")
	}
	if d.flushing {
		return nil
	}
	d.flushing = true
	if ret := d.src.EndStream(); ret != gst.FlowOK {
		return fmt.Errorf("failed to end stream: %v", ret)
	}
	return nil
}

// Close implements decode.Engine.
func (d *H264Decoder) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	err := d.pipeline.BlockSetState(gst.StateNull)
	d.bus.stop()
	return err
}
