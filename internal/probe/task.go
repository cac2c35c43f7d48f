package probe

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Status is the display state of a task.
type Status int

const (
	StatusRunning Status = iota
	StatusFinished
	StatusCancelled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusFinished:
		return "finished"
	case StatusCancelled:
		return "cancelled"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Task is the owner-side handle of one probe. It is not safe for concurrent
// use: only the owner that started it may call its methods.
type Task struct {
	id       string
	host     string
	backend  string
	started  time.Time
	finished time.Time

	records         []Record
	ended           bool
	cancelRequested bool
	stoppedOnCancel bool
	err             error

	events  <-chan Event
	cancel  chan struct{}
	outcome <-chan error
	abandon context.CancelFunc

	jobDone bool
	jobErr  error
}

func newTask(host, backend string, events <-chan Event, cancel chan struct{}, outcome <-chan error, abandon context.CancelFunc) *Task {
	return &Task{
		id:      uuid.NewString(),
		host:    host,
		backend: backend,
		started: time.Now(),
		events:  events,
		cancel:  cancel,
		outcome: outcome,
		abandon: abandon,
	}
}

func (t *Task) ID() string           { return t.id }
func (t *Task) Host() string         { return t.host }
func (t *Task) Backend() string      { return t.backend }
func (t *Task) Started() time.Time   { return t.started }
func (t *Task) Finished() time.Time  { return t.finished }
func (t *Task) Ended() bool          { return t.ended }
func (t *Task) Err() error           { return t.err }
func (t *Task) Failed() bool         { return t.err != nil }

// CancelRequested reports whether Cancel has been called.
func (t *Task) CancelRequested() bool { return t.cancelRequested }

// Records returns the records received so far, in arrival order. The slice is
// capped so appending to it never touches the task's history.
func (t *Task) Records() []Record {
	return t.records[:len(t.records):len(t.records)]
}

// Status returns the display state.
func (t *Task) Status() Status {
	switch {
	case !t.ended:
		return StatusRunning
	case t.err != nil:
		return StatusFailed
	case t.stoppedOnCancel:
		return StatusCancelled
	default:
		return StatusFinished
	}
}

// OKCount returns how many records reported HTTP 200.
func (t *Task) OKCount() int {
	n := 0
	for _, r := range t.records {
		if r.OK() {
			n++
		}
	}
	return n
}

// Cancel asks the probe to stop at its next poll point. Only the first call
// sends the signal; later calls and calls on an ended task return false.
func (t *Task) Cancel() bool {
	if t.cancelRequested || t.ended {
		return false
	}
	t.cancelRequested = true
	close(t.cancel)
	return true
}

// Drain pulls every event that is available right now without blocking and
// reports whether the task state changed. A record is appended to the
// history, the end marker ends the task. Once the job has returned and its
// events are consumed, the task ends with the job's error, if any.
func (t *Task) Drain() bool {
	if t.ended {
		return false
	}

	// The job sends all of its events before returning, so once the outcome
	// is visible every event it produced is already queued.
	if !t.jobDone {
		select {
		case err := <-t.outcome:
			t.jobDone = true
			t.jobErr = err
		default:
		}
	}

	changed := false
loop:
	for {
		select {
		case ev := <-t.events:
			if ev.End {
				t.stoppedOnCancel = ev.Cancelled
				t.finish(nil)
				return true
			}
			t.records = append(t.records, ev.Record)
			changed = true
		default:
			break loop
		}
	}

	if t.jobDone {
		// No marker: the job returned on its own, so only a requested
		// cancel can explain a clean stop.
		t.stoppedOnCancel = t.cancelRequested
		t.finish(t.jobErr)
		return true
	}
	return changed
}

func (t *Task) finish(err error) {
	t.ended = true
	t.err = err
	t.finished = time.Now()
}

// release lets go of the producer side. A producer blocked on a full channel
// returns ErrChannelClosed.
func (t *Task) release() {
	if t.abandon != nil {
		t.abandon()
	}
}
