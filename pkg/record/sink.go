package record

import (
	"fmt"

	"gocv.io/x/gocv"

	"github.com/courtside/dualcam/pkg/capture"
)

// Sink is an append-only frame writer bound to one output file and one
// (width, height, fps).
type Sink interface {
	Write(capture.Frame) error
	Close() error
}

// SinkFactory creates a sink for one camera's output file.
// Injectable so tests record without touching gocv.
type SinkFactory func(path string, width, height, fps int) (Sink, error)

// NewVideoSink creates an MJPG-in-AVI sink backed by gocv.VideoWriter.
func NewVideoSink(path string, width, height, fps int) (Sink, error) {
	writer, err := gocv.VideoWriterFile(path, "MJPG", float64(fps), width, height, true)
	if err != nil {
		return nil, fmt.Errorf("%w: create %s: %v", capture.ErrWriteFailed, path, err)
	}
	if !writer.IsOpened() {
		writer.Close()
		return nil, fmt.Errorf("%w: writer not opened for %s", capture.ErrWriteFailed, path)
	}
	return &videoSink{writer: writer, path: path}, nil
}

type videoSink struct {
	writer *gocv.VideoWriter
	path   string
}

func (s *videoSink) Write(f capture.Frame) error {
	if err := s.writer.Write(f.Mat); err != nil {
		return fmt.Errorf("%w: %s: %v", capture.ErrWriteFailed, s.path, err)
	}
	return nil
}

func (s *videoSink) Close() error {
	return s.writer.Close()
}
