// Package sink writes presented frames to files.
package sink

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/mengelbart/vplay"
)

// Y4MSink writes frames as an uncompressed YUV4MPEG2 stream.
type Y4MSink struct {
	w      *bufio.Writer
	closer io.Closer

	headerWritten bool
	resolution    vplay.Resolution
	fpsNum        int
	fpsDen        int
	frames        int
}

func NewY4MSink(filePath string, fpsNum, fpsDen int) (*Y4MSink, error) {
	file, err := os.Create(filePath)
	if err != nil {
		return nil, err
	}
	s := NewY4MWriter(file, fpsNum, fpsDen)
	s.closer = file
	return s, nil
}

// NewY4MWriter writes the stream to w. Close flushes but does not close w.
func NewY4MWriter(w io.Writer, fpsNum, fpsDen int) *Y4MSink {
	if fpsNum <= 0 || fpsDen <= 0 {
		fpsNum, fpsDen = 30, 1
	}
	return &Y4MSink{
		w:      bufio.NewWriter(w),
		fpsNum: fpsNum,
		fpsDen: fpsDen,
	}
}

// FrameRate returns the Y4M frame rate of a track.
func FrameRate(track vplay.TrackInfo) (int, int) {
	if track.Timescale == 0 || track.DefaultSampleDuration == 0 {
		return 30, 1
	}
	return int(track.Timescale), int(track.DefaultSampleDuration)
}

func (s *Y4MSink) SaveFrame(f *vplay.Frame) error {
	if !s.headerWritten {
		// Y4M header: YUV4MPEG2 W<width> H<height> F<fps_num>:<fps_den> Ip A<aspect> C<colorspace>
		header := fmt.Sprintf("YUV4MPEG2 W%d H%d F%d:%d Ip A0:0 C420jpeg\n", f.Resolution.Width, f.Resolution.Height, s.fpsNum, s.fpsDen)
		if _, err := s.w.WriteString(header); err != nil {
			return err
		}
		s.resolution = f.Resolution
		s.headerWritten = true
	}
	if f.Resolution != s.resolution {
		return fmt.Errorf("frame resolution %vx%v differs from stream resolution %vx%v",
			f.Resolution.Width, f.Resolution.Height, s.resolution.Width, s.resolution.Height)
	}
	cw, ch := f.Resolution.ChromaSize()
	if len(f.Y) != f.Resolution.Width*f.Resolution.Height || len(f.U) != cw*ch || len(f.V) != cw*ch {
		return fmt.Errorf("frame planes do not match resolution %vx%v", f.Resolution.Width, f.Resolution.Height)
	}

	if _, err := s.w.WriteString("FRAME\n"); err != nil {
		return err
	}
	for _, plane := range [][]byte{f.Y, f.U, f.V} {
		if _, err := s.w.Write(plane); err != nil {
			return err
		}
	}
	s.frames++
	return nil
}

// Frames returns the number of frames written.
func (s *Y4MSink) Frames() int {
	return s.frames
}

func (s *Y4MSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
