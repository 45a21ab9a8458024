// Package record orchestrates two camera streams and their disk sinks
// as one recording session.
//
// The coordinator is driven from a single control goroutine; it spawns
// one dedicated reader per open handle and one writer per sink. Reader
// failures surface through a one-shot error channel and trigger the
// same shutdown path a user-initiated stop does. Dual-stream symmetry
// holds throughout: a failure on either stream closes both.
package record

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/courtside/dualcam/internal/log"
	"github.com/courtside/dualcam/pkg/capture"
	"github.com/courtside/dualcam/pkg/pipeline"
)

// ErrInvalidConfig means a start request was rejected before any
// resource was opened.
var ErrInvalidConfig = errors.New("invalid recording configuration")

// sessionIDFormat derives the session identifier and file names from
// one timestamp, computed once per session.
const sessionIDFormat = "20060102_150405"

// defaultJoinTimeout bounds how long Stop waits for reader goroutines.
const defaultJoinTimeout = 5 * time.Second

// CameraSpec describes one camera to record.
type CameraSpec struct {
	// Name is the device identity recorded in the manifest.
	Name string
	// Candidates are open targets in fallback order
	// (stable alias, canonical path, numeric index).
	Candidates []any
	Width      int
	Height     int
	Rotation   capture.Rotation
}

// sinkDimensions returns the output dimensions after rotation.
func (c CameraSpec) sinkDimensions() (int, int) {
	if c.Rotation == capture.Rotate90 || c.Rotation == capture.Rotate270 {
		return c.Height, c.Width
	}
	return c.Width, c.Height
}

// Config is one recording request.
type Config struct {
	Camera1   CameraSpec
	Camera2   CameraSpec
	OutputDir string
	FPS       int
}

func (c Config) validate() error {
	if c.FPS <= 0 {
		return fmt.Errorf("%w: fps must be positive", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory required", ErrInvalidConfig)
	}
	for i, spec := range []CameraSpec{c.Camera1, c.Camera2} {
		if len(spec.Candidates) == 0 {
			return fmt.Errorf("%w: camera%d has no open candidates", ErrInvalidConfig, i+1)
		}
		if spec.Width <= 0 || spec.Height <= 0 {
			return fmt.Errorf("%w: camera%d resolution not set", ErrInvalidConfig, i+1)
		}
	}
	return nil
}

// Opener opens one camera stream. Injectable for tests; the default
// wraps capture.Open.
type Opener func(ctx context.Context, candidates []any, opts capture.Options) (Source, error)

func defaultOpener(ctx context.Context, candidates []any, opts capture.Options) (Source, error) {
	return capture.Open(ctx, candidates, opts)
}

// Coordinator starts and stops recording sessions. Only one session
// runs at a time.
type Coordinator struct {
	pipe        *pipeline.Pipeline[capture.Frame]
	open        Opener
	newSink     SinkFactory
	now         func() time.Time
	joinTimeout time.Duration

	mu      sync.Mutex
	current *Session
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithOpener overrides the camera opener (tests).
func WithOpener(open Opener) Option {
	return func(c *Coordinator) { c.open = open }
}

// WithSinkFactory overrides sink creation (tests).
func WithSinkFactory(f SinkFactory) Option {
	return func(c *Coordinator) { c.newSink = f }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithJoinTimeout overrides the bounded reader join on stop.
func WithJoinTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.joinTimeout = d }
}

// New creates a Coordinator publishing preview frames into pipe.
func New(pipe *pipeline.Pipeline[capture.Frame], opts ...Option) *Coordinator {
	c := &Coordinator{
		pipe:        pipe,
		open:        defaultOpener,
		newSink:     NewVideoSink,
		now:         time.Now,
		joinTimeout: defaultJoinTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Current returns the running session, or nil.
func (c *Coordinator) Current() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Start opens both cameras and both sinks, then begins recording.
// A failure at any acquisition step rolls back everything already
// opened: a failed start produces no partial artifacts and no manifest.
func (c *Coordinator) Start(ctx context.Context, cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	id := c.now().Format(sessionIDFormat)
	dir := filepath.Join(cfg.OutputDir, "recording_"+id)

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &Session{
		ID:          id,
		Dir:         dir,
		StartedAt:   c.now(),
		FPS:         cfg.FPS,
		specs:       [2]CameraSpec{cfg.Camera1, cfg.Camera2},
		pipe:        c.pipe,
		cancel:      cancel,
		stopWriting: make(chan struct{}),
		errCh:       make(chan error, 1),
		closed:      make(chan struct{}),
		joinTimeout: c.joinTimeout,
		now:         c.now,
	}
	for i := 0; i < 2; i++ {
		s.readDone[i] = make(chan struct{})
		s.writeDone[i] = make(chan struct{})
		s.writeQ[i] = make(chan capture.Frame, writeQueueCap)
	}
	s.setState(StateOpening)

	// Reserve the coordinator slot before acquiring anything, so two
	// overlapping starts cannot both pass the active-session check.
	c.mu.Lock()
	if c.current != nil && c.current.State() != StateClosed {
		active := c.current.ID
		c.mu.Unlock()
		cancel()
		return nil, fmt.Errorf("%w: session %s still active", ErrInvalidConfig, active)
	}
	c.current = s
	c.mu.Unlock()

	// abort rolls the reservation back; a failed start leaves no
	// current session behind.
	abort := func() {
		cancel()
		s.setState(StateClosed)
		c.mu.Lock()
		c.current = nil
		c.mu.Unlock()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		abort()
		return nil, fmt.Errorf("create session dir: %w", err)
	}

	// Open both cameras before any sink is created.
	for i := 0; i < 2; i++ {
		spec := s.specs[i]
		opts := capture.DefaultOptions()
		opts.Width = spec.Width
		opts.Height = spec.Height
		opts.FPS = cfg.FPS

		src, err := c.open(sessCtx, spec.Candidates, opts)
		if err != nil {
			for j := 0; j < i; j++ {
				s.sources[j].Release()
			}
			abort()
			return nil, fmt.Errorf("camera%d: %w", i+1, err)
		}
		s.sources[i] = src
	}

	// Both sinks must exist before either reader begins.
	for i := 0; i < 2; i++ {
		name := fmt.Sprintf("camera%d_%s.avi", i+1, id)
		w, h := s.specs[i].sinkDimensions()
		sink, err := c.newSink(filepath.Join(dir, name), w, h, cfg.FPS)
		if err != nil {
			for j := 0; j < i; j++ {
				s.sinks[j].Close()
			}
			for j := 0; j < 2; j++ {
				s.sources[j].Release()
			}
			abort()
			return nil, fmt.Errorf("camera%d sink: %w", i+1, err)
		}
		s.sinks[i] = sink
		s.files[i] = name
	}

	s.setState(StateRecording)
	for i := 0; i < 2; i++ {
		go s.writeLoop(i)
		go s.readLoop(sessCtx, i)
	}

	// Internal failures invoke the same stop path a user stop would.
	go func() {
		select {
		case err := <-s.errCh:
			log.Error("recording session failed, stopping both streams", "id", s.ID, "error", err)
			s.Stop()
		case <-s.closed:
		}
	}()

	log.Info("recording started", "id", s.ID, "dir", dir, "fps", cfg.FPS)
	return s, nil
}

// Stop stops the current session, if any, and blocks until Closed.
func (c *Coordinator) Stop() {
	if s := c.Current(); s != nil {
		s.Stop()
	}
}
