package record

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/courtside/dualcam/internal/log"
	"github.com/courtside/dualcam/pkg/capture"
	"github.com/courtside/dualcam/pkg/pipeline"
)

// State is the lifecycle of a recording session.
type State int32

const (
	StateIdle State = iota
	StateOpening
	StateRecording
	StateStopping
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateOpening:
		return "opening"
	case StateRecording:
		return "recording"
	case StateStopping:
		return "stopping"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// A reader tolerates this many consecutive failed reads before the
// session is aborted.
const maxConsecutiveReadFailures = 3

// writeQueueCap bounds per-stream frames waiting on disk. A sink slower
// than the camera drops the oldest queued frame instead of growing.
const writeQueueCap = 2

// Source is one camera stream being recorded. *capture.Handle
// implements it.
type Source interface {
	Read() (capture.Frame, error)
	Release()
}

// Session is one dual-stream recording run. Created by
// Coordinator.Start; all mutation happens on the control side or inside
// the session's own goroutines.
type Session struct {
	ID        string
	Dir       string
	StartedAt time.Time
	FPS       int

	state atomic.Int32

	specs   [2]CameraSpec
	sources [2]Source
	sinks   [2]Sink
	files   [2]string
	frames  [2]atomic.Int64

	pipe *pipeline.Pipeline[capture.Frame]

	cancel      context.CancelFunc
	readDone    [2]chan struct{}
	writeDone   [2]chan struct{}
	writeQ      [2]chan capture.Frame
	stopWriting chan struct{}

	// One-shot failure signal from reader/writer goroutines to the
	// control side. Never used for success.
	errCh chan error

	errMu sync.Mutex
	err   error

	stopOnce sync.Once
	closed   chan struct{}

	joinTimeout time.Duration
	now         func() time.Time
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// Err returns the error that terminated the session, if any.
func (s *Session) Err() error {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	return s.err
}

// FrameCount returns frames written so far for camera 1 or 2.
func (s *Session) FrameCount(camera int) int64 {
	if camera < 1 || camera > 2 {
		return 0
	}
	return s.frames[camera-1].Load()
}

// Files returns the two output file names.
func (s *Session) Files() (string, string) {
	return s.files[0], s.files[1]
}

// Done returns a channel closed when the session reaches Closed.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

// fail records the first fatal error and fires the one-shot signal.
func (s *Session) fail(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()

	select {
	case s.errCh <- err:
	default:
	}
}

// readLoop is the dedicated reader for one camera. It owns the handle:
// nothing else reads from it while the loop runs.
func (s *Session) readLoop(ctx context.Context, i int) {
	defer close(s.readDone[i])

	consecutive := 0
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		frame, err := s.sources[i].Read()
		if err != nil {
			consecutive++
			log.Warn("frame read failed", "camera", i+1, "consecutive", consecutive)
			if consecutive >= maxConsecutiveReadFailures {
				s.fail(fmt.Errorf("camera%d: %w", i+1, err))
				return
			}
			continue
		}
		consecutive = 0

		rotated := frame.Rotated(s.specs[i].Rotation)
		frame.Close()

		// Preview copy first so a slow disk never affects it.
		s.pipe.Publish(consumerKey(i), rotated.Clone())

		s.enqueue(i, rotated)
	}
}

// enqueue adds a frame to the bounded write queue, dropping the oldest
// queued frame when full. Never blocks the reader.
func (s *Session) enqueue(i int, f capture.Frame) {
	select {
	case s.writeQ[i] <- f:
		return
	default:
	}

	select {
	case old := <-s.writeQ[i]:
		old.Close()
	default:
	}

	select {
	case s.writeQ[i] <- f:
	default:
		f.Close()
	}
}

// writeLoop drains one camera's write queue into its sink.
func (s *Session) writeLoop(i int) {
	defer close(s.writeDone[i])

	for {
		select {
		case frame := <-s.writeQ[i]:
			err := s.sinks[i].Write(frame)
			frame.Close()
			if err != nil {
				s.fail(fmt.Errorf("camera%d sink: %w", i+1, err))
				s.drainQueue(i)
				return
			}
			s.frames[i].Add(1)

		case <-s.stopWriting:
			s.drainQueue(i)
			return
		}
	}
}

// drainQueue writes out nothing further; it just releases queued frames.
func (s *Session) drainQueue(i int) {
	for {
		select {
		case f := <-s.writeQ[i]:
			f.Close()
		default:
			return
		}
	}
}

// Stop shuts the session down and blocks until it reaches Closed.
// Safe to call from any goroutine and idempotent: there is exactly one
// shutdown path, shared by user stops and internal failures.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.setState(StateStopping)
		s.cancel()

		// Bounded join: a driver stuck in read must not hang
		// shutdown forever. One deadline covers both readers; once
		// it expires, every reader still running is abandoned
		// immediately and its handle forcibly released.
		deadline := time.NewTimer(s.joinTimeout)
		defer deadline.Stop()
		expired := false
		for i := 0; i < 2; i++ {
			if expired {
				select {
				case <-s.readDone[i]:
				default:
					log.Error("reader did not exit in time, abandoning", "camera", i+1)
					s.sources[i].Release()
				}
				continue
			}
			select {
			case <-s.readDone[i]:
			case <-deadline.C:
				expired = true
				log.Error("reader did not exit in time, abandoning", "camera", i+1)
				s.sources[i].Release()
			}
		}

		// Writers stop only after readers are done (or abandoned),
		// then sinks close after both writers exited.
		close(s.stopWriting)
		for i := 0; i < 2; i++ {
			<-s.writeDone[i]
		}
		for i := 0; i < 2; i++ {
			if err := s.sinks[i].Close(); err != nil {
				log.Warn("sink close failed", "camera", i+1, "error", err)
			}
		}
		for i := 0; i < 2; i++ {
			s.sources[i].Release()
		}

		// Unread preview frames would otherwise hold their buffers
		// until the next session publishes over them.
		s.pipe.Clear()

		s.writeManifest()
		s.setState(StateClosed)
		close(s.closed)
		log.Info("recording session closed",
			"id", s.ID,
			"frames_camera1", s.frames[0].Load(),
			"frames_camera2", s.frames[1].Load(),
			"error", s.Err())
	})

	// Late callers (including the second Stop of an idempotency pair)
	// wait for the first stop to finish so Closed is observable.
	<-s.closed
}

func (s *Session) writeManifest() {
	duration := s.now().Sub(s.StartedAt).Seconds()
	m := Manifest{
		Timestamp:       s.ID,
		DurationSeconds: duration,
		Camera1: ManifestCamera{
			Device:     s.specs[0].Name,
			Resolution: fmt.Sprintf("%dx%d", s.specs[0].Width, s.specs[0].Height),
			File:       s.files[0],
		},
		Camera2: ManifestCamera{
			Device:     s.specs[1].Name,
			Resolution: fmt.Sprintf("%dx%d", s.specs[1].Width, s.specs[1].Height),
			File:       s.files[1],
		},
		FPS:             s.FPS,
		OutputDirectory: s.Dir,
		Frames: map[string]int64{
			"camera1": s.frames[0].Load(),
			"camera2": s.frames[1].Load(),
		},
	}
	if err := m.write(s.Dir); err != nil {
		log.Error("manifest write failed", "dir", s.Dir, "error", err)
	}
}

func consumerKey(i int) string {
	return fmt.Sprintf("camera%d", i+1)
}
