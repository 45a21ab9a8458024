// Package schedule drives timed capture: countdown-then-snapshot photo
// batches and duration/frame-bounded continuous recording.
//
// Each job is one explicit state machine driven by cancelable timers.
// Cancellation is re-checked immediately before every side-effecting
// step, so a timer that fires in the same instant as a stop can never
// produce a stray photo.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/courtside/dualcam/internal/log"
	"github.com/courtside/dualcam/pkg/capture"
)

// ErrInvalidConfig means a job request was rejected before any
// resource was opened.
var ErrInvalidConfig = errors.New("invalid capture job configuration")

// photoTimeFormat names photos; the timestamp is computed once per shot.
const photoTimeFormat = "20060102_150405"

// Camera is the single-shot capture surface a photo job drives.
// *capture.Handle implements it.
type Camera interface {
	Read() (capture.Frame, error)
	Release()
}

// CameraOpener opens the job's camera. Injectable for tests.
type CameraOpener func(ctx context.Context, candidates []any, opts capture.Options) (Camera, error)

func defaultCameraOpener(ctx context.Context, candidates []any, opts capture.Options) (Camera, error) {
	return capture.Open(ctx, candidates, opts)
}

// SaveFunc persists one frame. Injectable for tests; the default writes
// an image file via gocv.
type SaveFunc func(path string, f capture.Frame) error

// PhotoConfig is one batch-photo request.
type PhotoConfig struct {
	Candidates []any
	Width      int
	Height     int

	Total          int
	Interval       time.Duration
	CountdownTicks int

	OutputDir string
	Prefix    string
}

func (c PhotoConfig) validate() error {
	if len(c.Candidates) == 0 {
		return fmt.Errorf("%w: no open candidates", ErrInvalidConfig)
	}
	if c.Total < 1 {
		return fmt.Errorf("%w: total must be at least 1", ErrInvalidConfig)
	}
	if c.Interval < 0 {
		return fmt.Errorf("%w: negative interval", ErrInvalidConfig)
	}
	if c.CountdownTicks < 0 {
		return fmt.Errorf("%w: negative countdown", ErrInvalidConfig)
	}
	if c.OutputDir == "" {
		return fmt.Errorf("%w: output directory required", ErrInvalidConfig)
	}
	return nil
}

// Scheduler owns the wall-clock timing state machine. Only the
// scheduler transitions job state; readers observe it.
type Scheduler struct {
	open CameraOpener
	save SaveFunc
	tick time.Duration
	now  func() time.Time
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithCameraOpener overrides camera opening (tests).
func WithCameraOpener(open CameraOpener) Option {
	return func(s *Scheduler) { s.open = open }
}

// WithSaveFunc overrides photo persistence (tests).
func WithSaveFunc(save SaveFunc) Option {
	return func(s *Scheduler) { s.save = save }
}

// WithTick overrides the countdown tick interval (tests run in
// milliseconds; production counts down in seconds).
func WithTick(d time.Duration) Option {
	return func(s *Scheduler) { s.tick = d }
}

// WithClock overrides the wall clock (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New creates a Scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		open: defaultCameraOpener,
		save: capture.WriteImage,
		tick: time.Second,
		now:  time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartPhotoJob validates the request, opens the camera, and launches
// the job's state machine. Validation failures open nothing and create
// no job state.
func (s *Scheduler) StartPhotoJob(ctx context.Context, cfg PhotoConfig) (*Job, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "photo"
	}

	opts := capture.DefaultOptions()
	if cfg.Width > 0 {
		opts.Width = cfg.Width
	}
	if cfg.Height > 0 {
		opts.Height = cfg.Height
	}

	jobCtx, cancel := context.WithCancel(ctx)
	cam, err := s.open(jobCtx, cfg.Candidates, opts)
	if err != nil {
		cancel()
		return nil, err
	}

	job := newJob(cfg.Total, cancel)
	log.Info("photo job started",
		"job", job.ID, "total", cfg.Total,
		"interval", cfg.Interval, "countdown", cfg.CountdownTicks)

	go s.run(jobCtx, job, cam, cfg)
	return job, nil
}

// run is the job state machine:
// CountingDown -> Saving -> Waiting -> CountingDown ... until the
// target count, a stop, or an error.
func (s *Scheduler) run(ctx context.Context, job *Job, cam Camera, cfg PhotoConfig) {
	defer close(job.done)
	defer cam.Release()

	counter := 0
	for {
		job.setState(JobCountingDown)
		for t := cfg.CountdownTicks; t > 0; t-- {
			job.countdown.Store(int32(t))
			log.Debug("countdown", "job", job.ID, "remaining", t)
			if !s.wait(ctx, s.tick) {
				job.setState(JobStopped)
				return
			}
		}
		job.countdown.Store(0)

		// The guard: a stop that raced the last countdown tick must
		// win before anything is saved.
		if ctx.Err() != nil {
			job.setState(JobStopped)
			return
		}

		job.setState(JobSaving)
		frame, err := cam.Read()
		if err != nil {
			job.fail(fmt.Errorf("photo %d: %w", counter+1, err))
			job.setState(JobError)
			return
		}

		counter++
		name := fmt.Sprintf("%s_%s_%dx%d_%d.jpg",
			cfg.Prefix, s.now().Format(photoTimeFormat), frame.Width, frame.Height, counter)
		err = s.save(filepath.Join(cfg.OutputDir, name), frame)
		frame.Close()
		if err != nil {
			job.fail(fmt.Errorf("photo %d: %w", counter, err))
			job.setState(JobError)
			return
		}
		job.saved.Store(int32(counter))
		log.Info("photo saved", "job", job.ID, "file", name, "count", counter, "total", cfg.Total)

		if counter >= cfg.Total {
			job.setState(JobDone)
			return
		}

		job.setState(JobWaiting)
		if !s.wait(ctx, cfg.Interval) {
			job.setState(JobStopped)
			return
		}
	}
}

// wait sleeps for d unless the context is canceled first. When the
// timer and a cancellation race, cancellation wins: the return value is
// false whenever ctx is done, even if the timer already fired.
func (s *Scheduler) wait(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return ctx.Err() == nil
	}
}
