package probe

import (
	"context"
	"fmt"
)

// Event is one item on a task's output channel: either a record or the
// end-of-stream marker. Cancelled is set on a marker sent because the
// producer observed the cancel signal.
type Event struct {
	Record    Record
	End       bool
	Cancelled bool
}

// RecordEvent wraps r for sending.
func RecordEvent(r Record) Event { return Event{Record: r} }

// EndEvent is the end-of-stream marker. It never carries a record.
func EndEvent() Event { return Event{End: true} }

// CancelledEvent is the end-of-stream marker of a probe that stopped on cancel.
func CancelledEvent() Event { return Event{End: true, Cancelled: true} }

// Send delivers ev on out, blocking while the channel is full. It returns an
// error wrapping ErrChannelClosed when ctx ends first, which is how an
// abandoned task is reported to its producer.
func Send(ctx context.Context, out chan<- Event, ev Event) error {
	select {
	case out <- ev:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %v", ErrChannelClosed, context.Cause(ctx))
	}
}

// Cancelled polls a cancel signal without blocking.
func Cancelled(cancel <-chan struct{}) bool {
	select {
	case <-cancel:
		return true
	default:
		return false
	}
}
