package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/courtside/dualcam/internal/log"
	"github.com/courtside/dualcam/pkg/record"
)

// ContinuousConfig bounds a continuous recording run. Zero values mean
// unbounded: the session then runs until an explicit stop.
type ContinuousConfig struct {
	Record record.Config

	// MaxDuration stops the session after this much wall-clock time.
	MaxDuration time.Duration

	// MaxFrames stops the session once both cameras have written at
	// least this many frames.
	MaxFrames int64
}

// StartContinuous delegates to the recording coordinator and watches
// the session, translating the duration/frame target into a stop call.
func (s *Scheduler) StartContinuous(ctx context.Context, coord *record.Coordinator, cfg ContinuousConfig) (*record.Session, error) {
	if cfg.MaxDuration < 0 || cfg.MaxFrames < 0 {
		return nil, fmt.Errorf("%w: negative continuous bound", ErrInvalidConfig)
	}

	sess, err := coord.Start(ctx, cfg.Record)
	if err != nil {
		return nil, err
	}

	if cfg.MaxDuration > 0 || cfg.MaxFrames > 0 {
		go s.watch(ctx, sess, cfg)
	}
	return sess, nil
}

// watch polls the running session and stops it once a bound is hit.
// The session's own stop path handles everything else; the watcher
// never touches handles or sinks directly.
func (s *Scheduler) watch(ctx context.Context, sess *record.Session, cfg ContinuousConfig) {
	var deadline <-chan time.Time
	if cfg.MaxDuration > 0 {
		timer := time.NewTimer(cfg.MaxDuration)
		defer timer.Stop()
		deadline = timer.C
	}

	poll := time.NewTicker(s.tick)
	defer poll.Stop()

	for {
		select {
		case <-sess.Done():
			return

		case <-ctx.Done():
			sess.Stop()
			return

		case <-deadline:
			log.Info("recording duration reached, stopping", "id", sess.ID)
			sess.Stop()
			return

		case <-poll.C:
			if cfg.MaxFrames > 0 &&
				sess.FrameCount(1) >= cfg.MaxFrames &&
				sess.FrameCount(2) >= cfg.MaxFrames {
				log.Info("recording frame target reached, stopping",
					"id", sess.ID, "target", cfg.MaxFrames)
				sess.Stop()
				return
			}
		}
	}
}
