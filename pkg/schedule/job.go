package schedule

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// JobState is the lifecycle of a capture job.
type JobState int32

const (
	JobIdle JobState = iota
	JobCountingDown
	JobSaving
	JobWaiting
	JobDone
	JobStopped
	JobError
)

func (s JobState) String() string {
	switch s {
	case JobIdle:
		return "idle"
	case JobCountingDown:
		return "counting_down"
	case JobSaving:
		return "saving"
	case JobWaiting:
		return "waiting"
	case JobDone:
		return "done"
	case JobStopped:
		return "stopped"
	case JobError:
		return "error"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state ends a job.
func (s JobState) Terminal() bool {
	return s == JobDone || s == JobStopped || s == JobError
}

// Job is one scheduled batch-photo run. Mutated only by the scheduler's
// run goroutine; everything exported here is safe to read concurrently.
type Job struct {
	ID     string
	Total  int
	cancel func()

	state     atomic.Int32
	saved     atomic.Int32
	countdown atomic.Int32

	errMu sync.Mutex
	err   error

	done chan struct{}
}

func newJob(total int, cancel func()) *Job {
	return &Job{
		ID:     uuid.NewString(),
		Total:  total,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// State returns the current job state.
func (j *Job) State() JobState {
	return JobState(j.state.Load())
}

func (j *Job) setState(s JobState) {
	j.state.Store(int32(s))
}

// Saved returns how many photos have been persisted so far.
// Counts are preserved across Stop, never rolled back.
func (j *Job) Saved() int {
	return int(j.saved.Load())
}

// CountdownLeft returns the remaining countdown ticks, for display.
func (j *Job) CountdownLeft() int {
	return int(j.countdown.Load())
}

// Err returns the failure that terminated the job, if any.
func (j *Job) Err() error {
	j.errMu.Lock()
	defer j.errMu.Unlock()
	return j.err
}

func (j *Job) fail(err error) {
	j.errMu.Lock()
	j.err = err
	j.errMu.Unlock()
}

// Done returns a channel closed when the job reaches a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Stop cancels the job and blocks until it reaches a terminal state.
// Stopping a job that already finished is a no-op; its terminal state
// is preserved.
func (j *Job) Stop() {
	j.cancel()
	<-j.done
}
