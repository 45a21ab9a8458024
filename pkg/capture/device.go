package capture

import (
	"fmt"

	"gocv.io/x/gocv"
)

// device is the minimal surface of an open camera used by a Handle.
// The production implementation wraps gocv.VideoCapture; tests swap in
// fakes via the session's open function.
type device interface {
	// read returns one frame, or ok=false if the device produced
	// nothing usable. The caller owns the returned Mat.
	read() (gocv.Mat, bool)
	// set applies a capture property. Best effort: drivers are free
	// to ignore it, so no error is reported.
	set(prop gocv.VideoCaptureProperties, value float64)
	isOpened() bool
	close() error
}

// openFunc opens a device by path (string) or numeric index (int).
type openFunc func(pathOrIndex any) (device, error)

func openGoCV(pathOrIndex any) (device, error) {
	cap, err := gocv.OpenVideoCapture(pathOrIndex)
	if err != nil {
		return nil, fmt.Errorf("open %v: %w", pathOrIndex, err)
	}
	return &gocvDevice{cap: cap}, nil
}

type gocvDevice struct {
	cap *gocv.VideoCapture
}

func (d *gocvDevice) read() (gocv.Mat, bool) {
	mat := gocv.NewMat()
	if ok := d.cap.Read(&mat); !ok || mat.Empty() {
		mat.Close()
		return gocv.Mat{}, false
	}
	return mat, true
}

func (d *gocvDevice) set(prop gocv.VideoCaptureProperties, value float64) {
	d.cap.Set(prop, value)
}

func (d *gocvDevice) isOpened() bool {
	return d.cap.IsOpened()
}

func (d *gocvDevice) close() error {
	return d.cap.Close()
}

// fourccValue packs a four-character codec code the way V4L2 expects it.
func fourccValue(code string) float64 {
	c := []byte(code)
	return float64(uint32(c[0]) | uint32(c[1])<<8 | uint32(c[2])<<16 | uint32(c[3])<<24)
}
