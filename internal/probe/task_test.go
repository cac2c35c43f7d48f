package probe

import (
	"context"
	"errors"
	"testing"
)

func newTestTask(capacity int) (*Task, chan Event, chan error) {
	events := make(chan Event, capacity)
	outcome := make(chan error, 1)
	_, abandon := context.WithCancel(context.Background())
	return newTask("example.com", "stub", events, make(chan struct{}), outcome, abandon), events, outcome
}

func locRecord(loc string) Record {
	return NewRecord(RecordFields{Loc: loc, Status: 200, TotalCost: "0.100"})
}

func TestDrainEmptyChannelChangesNothing(t *testing.T) {
	task, _, _ := newTestTask(4)

	if task.Drain() {
		t.Fatal("Drain() on empty channel reported a change")
	}
	if task.Ended() || len(task.Records()) != 0 || task.Err() != nil {
		t.Fatalf("task changed: ended=%v records=%d err=%v", task.Ended(), len(task.Records()), task.Err())
	}
	if task.Status() != StatusRunning {
		t.Fatalf("Status() = %v, want running", task.Status())
	}
}

func TestDrainAppendsInArrivalOrder(t *testing.T) {
	task, events, _ := newTestTask(8)
	events <- RecordEvent(locRecord("a"))
	events <- RecordEvent(locRecord("b"))

	if !task.Drain() {
		t.Fatal("Drain() reported no change")
	}
	events <- RecordEvent(locRecord("c"))
	task.Drain()

	got := task.Records()
	if len(got) != 3 {
		t.Fatalf("len(Records()) = %d, want 3", len(got))
	}
	for i, want := range []string{"a", "b", "c"} {
		if got[i].Loc() != want {
			t.Fatalf("Records()[%d].Loc() = %q, want %q", i, got[i].Loc(), want)
		}
	}
	if task.Ended() {
		t.Fatal("task ended without end marker")
	}
}

func TestDrainStopsAtEndMarker(t *testing.T) {
	task, events, _ := newTestTask(8)
	events <- RecordEvent(locRecord("a"))
	events <- EndEvent()
	events <- RecordEvent(locRecord("late"))

	if !task.Drain() {
		t.Fatal("Drain() reported no change")
	}
	if !task.Ended() {
		t.Fatal("task not ended after end marker")
	}
	if len(task.Records()) != 1 {
		t.Fatalf("len(Records()) = %d, want 1", len(task.Records()))
	}
	finished := task.Finished()

	if task.Drain() {
		t.Fatal("Drain() after end reported a change")
	}
	if len(task.Records()) != 1 || !task.Finished().Equal(finished) {
		t.Fatal("ended task changed on a later drain")
	}
	if task.Status() != StatusFinished {
		t.Fatalf("Status() = %v, want finished", task.Status())
	}
}

func TestDrainSurfacesJobFailureAfterRecords(t *testing.T) {
	task, events, outcome := newTestTask(8)
	events <- RecordEvent(locRecord("a"))
	events <- RecordEvent(locRecord("b"))
	outcome <- ErrDecode

	task.Drain()
	if !task.Ended() {
		t.Fatal("task not ended after job failure")
	}
	if !errors.Is(task.Err(), ErrDecode) {
		t.Fatalf("Err() = %v, want ErrDecode", task.Err())
	}
	if len(task.Records()) != 2 {
		t.Fatalf("len(Records()) = %d, want 2", len(task.Records()))
	}
	if task.Status() != StatusFailed {
		t.Fatalf("Status() = %v, want failed", task.Status())
	}
}

func TestDrainJobReturnedWithoutMarker(t *testing.T) {
	task, _, outcome := newTestTask(1)
	outcome <- nil

	if !task.Drain() {
		t.Fatal("Drain() reported no change")
	}
	if !task.Ended() || task.Err() != nil {
		t.Fatalf("ended=%v err=%v, want ended without error", task.Ended(), task.Err())
	}
}

func TestCancelIsSingleShot(t *testing.T) {
	task, _, _ := newTestTask(1)

	if !task.Cancel() {
		t.Fatal("first Cancel() = false")
	}
	if task.Cancel() {
		t.Fatal("second Cancel() = true")
	}
	if !Cancelled(task.cancel) {
		t.Fatal("cancel signal not delivered")
	}
}

func TestCancelAfterEndIsIgnored(t *testing.T) {
	task, events, _ := newTestTask(1)
	events <- EndEvent()
	task.Drain()

	if task.Cancel() {
		t.Fatal("Cancel() on ended task = true")
	}
	if task.Status() != StatusFinished {
		t.Fatalf("Status() = %v, want finished", task.Status())
	}
}

func TestEndAfterLateCancelIsFinished(t *testing.T) {
	task, events, _ := newTestTask(2)
	task.Cancel()
	// The producer hit the end of the stream before it saw the signal.
	events <- EndEvent()
	task.Drain()

	if task.Status() != StatusFinished {
		t.Fatalf("Status() = %v, want finished", task.Status())
	}
	if !task.CancelRequested() {
		t.Fatal("CancelRequested() = false")
	}
}

func TestCancelledMarkerIsCancelled(t *testing.T) {
	task, events, _ := newTestTask(2)
	task.Cancel()
	events <- CancelledEvent()
	task.Drain()

	if task.Status() != StatusCancelled {
		t.Fatalf("Status() = %v, want cancelled", task.Status())
	}
}

func TestJobReturnAfterCancelWithoutMarkerIsCancelled(t *testing.T) {
	task, _, outcome := newTestTask(2)
	task.Cancel()
	outcome <- nil
	task.Drain()

	if task.Status() != StatusCancelled {
		t.Fatalf("Status() = %v, want cancelled", task.Status())
	}
}

func TestRecordsSliceIsCapped(t *testing.T) {
	task, events, _ := newTestTask(4)
	events <- RecordEvent(locRecord("a"))
	task.Drain()

	view := task.Records()
	_ = append(view, locRecord("intruder"))
	events <- RecordEvent(locRecord("b"))
	task.Drain()

	if got := task.Records()[1].Loc(); got != "b" {
		t.Fatalf("Records()[1].Loc() = %q, want b", got)
	}
}
