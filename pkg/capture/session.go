// Package capture owns open camera handles: open-with-fallback,
// blocking single-frame reads, and idempotent release.
//
// Opening performs a verify-read: some drivers report success on open
// while being unable to stream, so each candidate must deliver one
// real frame before it is trusted. The probe handle is then closed and
// the device reopened fresh, which avoids handing callers a handle
// whose first read would stall.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"gocv.io/x/gocv"

	"github.com/courtside/dualcam/internal/log"
)

var (
	// ErrNoDeviceOpened means every open candidate failed or never
	// delivered a frame.
	ErrNoDeviceOpened = errors.New("no device opened")

	// ErrReadFailed means a single blocking read returned nothing.
	// The handle stays open; callers decide when failures become fatal.
	ErrReadFailed = errors.New("read failed")

	// ErrWriteFailed means a frame could not be persisted.
	ErrWriteFailed = errors.New("write failed")
)

// Options are capture hints applied on open. Drivers treat property
// sets as best effort, so the device may deliver something else.
type Options struct {
	Width      int
	Height     int
	FPS        int
	FourCC     string
	BufferSize int
}

// DefaultOptions returns 1080p at 30fps over MJPG with a single-frame
// driver buffer to keep latency down.
func DefaultOptions() Options {
	return Options{
		Width:      1920,
		Height:     1080,
		FPS:        30,
		FourCC:     "MJPG",
		BufferSize: 1,
	}
}

// Handle owns exactly one open device. One handle, one reader
// goroutine: cross-goroutine use of a single handle is not supported,
// except for Release, which may race with an in-flight Read only from
// the owner's shutdown path.
type Handle struct {
	dev      device
	source   any
	opts     Options
	released atomic.Bool
}

// open function used by Open; swapped by tests.
var openDevice openFunc = openGoCV

// Open tries each candidate in order (stable alias, canonical path,
// numeric index) and returns a handle on the first candidate that both
// opens and delivers a verify-read frame. A candidate that opens but
// cannot stream is released and skipped without surfacing an error.
func Open(ctx context.Context, candidates []any, opts Options) (*Handle, error) {
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", ErrNoDeviceOpened)
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		log.Debug("trying camera", "candidate", candidate)
		if !probe(candidate, opts) {
			continue
		}

		// Probe succeeded; reopen fresh for actual use.
		dev, err := openDevice(candidate)
		if err != nil || !dev.isOpened() {
			if dev != nil {
				dev.close()
			}
			continue
		}
		applyOptions(dev, opts)

		log.Info("camera opened", "candidate", candidate)
		return &Handle{dev: dev, source: candidate, opts: opts}, nil
	}

	return nil, fmt.Errorf("%w: tried %d candidates", ErrNoDeviceOpened, len(candidates))
}

// probe opens a candidate, verifies one real frame, and closes it.
func probe(candidate any, opts Options) bool {
	dev, err := openDevice(candidate)
	if err != nil {
		log.Debug("open failed", "candidate", candidate, "error", err)
		return false
	}
	defer dev.close()

	if !dev.isOpened() {
		return false
	}
	applyOptions(dev, opts)

	mat, ok := dev.read()
	if !ok {
		log.Warn("camera opened but delivered no frame", "candidate", candidate)
		return false
	}
	mat.Close()
	return true
}

func applyOptions(dev device, opts Options) {
	if len(opts.FourCC) == 4 {
		dev.set(gocv.VideoCaptureFOURCC, fourccValue(opts.FourCC))
	}
	if opts.Width > 0 {
		dev.set(gocv.VideoCaptureFrameWidth, float64(opts.Width))
	}
	if opts.Height > 0 {
		dev.set(gocv.VideoCaptureFrameHeight, float64(opts.Height))
	}
	if opts.FPS > 0 {
		dev.set(gocv.VideoCaptureFPS, float64(opts.FPS))
	}
	if opts.BufferSize > 0 {
		dev.set(gocv.VideoCaptureBufferSize, float64(opts.BufferSize))
	}
}

// Source returns the candidate the handle was opened with.
func (h *Handle) Source() any {
	return h.source
}

// Read performs one blocking read. On failure the handle stays open;
// the caller must treat repeated failures as fatal for the session.
func (h *Handle) Read() (Frame, error) {
	if h.released.Load() {
		return Frame{}, fmt.Errorf("%w: handle released", ErrReadFailed)
	}

	mat, ok := h.dev.read()
	if !ok {
		return Frame{}, ErrReadFailed
	}
	return Frame{
		Mat:       mat,
		Timestamp: time.Now(),
		Width:     mat.Cols(),
		Height:    mat.Rows(),
	}, nil
}

// Release closes the device. Idempotent: only the first call releases.
func (h *Handle) Release() {
	if h.released.CompareAndSwap(false, true) {
		if err := h.dev.close(); err != nil {
			log.Warn("device close failed", "source", h.source, "error", err)
		}
	}
}

// Released reports whether the handle has been released.
func (h *Handle) Released() bool {
	return h.released.Load()
}
