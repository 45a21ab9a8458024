package capture

import (
	"fmt"
	"time"

	"gocv.io/x/gocv"
)

// Frame is one captured image. Ownership transfers with the frame:
// whoever holds it last must call Close to release the pixel buffer.
type Frame struct {
	Mat       gocv.Mat
	Timestamp time.Time
	Width     int
	Height    int
}

// Clone returns an independent copy of the frame for a second consumer.
func (f Frame) Clone() Frame {
	c := f
	if f.Mat.Ptr() != nil {
		c.Mat = f.Mat.Clone()
	}
	return c
}

// Close releases the underlying pixel buffer.
func (f *Frame) Close() {
	if f.Mat.Ptr() != nil {
		f.Mat.Close()
	}
}

// Rotation is a clockwise rotation applied to frames before they are
// written or published.
type Rotation int

const (
	RotateNone Rotation = 0
	Rotate90   Rotation = 90
	Rotate180  Rotation = 180
	Rotate270  Rotation = 270
)

// Rotated returns a rotated copy of the frame. The original is left
// untouched; RotateNone returns a plain clone.
func (f Frame) Rotated(r Rotation) Frame {
	if r == RotateNone {
		return f.Clone()
	}

	w, h := f.Width, f.Height
	if r == Rotate90 || r == Rotate270 {
		w, h = h, w
	}
	if f.Mat.Ptr() == nil {
		return Frame{Timestamp: f.Timestamp, Width: w, Height: h}
	}

	var code gocv.RotateFlag
	switch r {
	case Rotate90:
		code = gocv.Rotate90Clockwise
	case Rotate180:
		code = gocv.Rotate180Clockwise
	case Rotate270:
		code = gocv.Rotate90CounterClockwise
	default:
		return f.Clone()
	}

	dst := gocv.NewMat()
	gocv.Rotate(f.Mat, &dst, code)
	return Frame{Mat: dst, Timestamp: f.Timestamp, Width: w, Height: h}
}

// WriteImage persists a frame to disk as an image file. The format is
// chosen by the path extension, as gocv.IMWrite does.
func WriteImage(path string, f Frame) error {
	if ok := gocv.IMWrite(path, f.Mat); !ok {
		return fmt.Errorf("%w: could not write %s", ErrWriteFailed, path)
	}
	return nil
}

// EncodeJPEG encodes a frame as JPEG bytes for network consumers.
func EncodeJPEG(f Frame) ([]byte, error) {
	buf, err := gocv.IMEncode(gocv.JPEGFileExt, f.Mat)
	if err != nil {
		return nil, fmt.Errorf("jpeg encode: %w", err)
	}
	defer buf.Close()

	out := make([]byte, buf.Len())
	copy(out, buf.GetBytes())
	return out, nil
}
