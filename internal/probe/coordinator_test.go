package probe

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptedBackend sends its records, then the end marker unless failErr is set.
type scriptedBackend struct {
	name    string
	records []Record
	failErr error
	gate    chan struct{}
	result  chan error
}

func (b *scriptedBackend) Name() string { return b.name }

func (b *scriptedBackend) Ping(ctx context.Context, _ string, cancel <-chan struct{}, out chan<- Event) (err error) {
	if b.result != nil {
		defer func() { b.result <- err }()
	}
	if b.gate != nil {
		<-b.gate
	}
	if Cancelled(cancel) {
		return Send(ctx, out, CancelledEvent())
	}
	for _, r := range b.records {
		if Cancelled(cancel) {
			return Send(ctx, out, CancelledEvent())
		}
		if err := Send(ctx, out, RecordEvent(r)); err != nil {
			return err
		}
	}
	if b.failErr != nil {
		return b.failErr
	}
	return Send(ctx, out, EndEvent())
}

func numberedRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = locRecord(fmt.Sprintf("loc-%d", i))
	}
	return records
}

func newTestCoordinator(t *testing.T, opts Options) *Coordinator {
	t.Helper()
	opts.Logger = zerolog.Nop()
	c := NewCoordinator(context.Background(), opts)
	t.Cleanup(c.Close)
	return c
}

func pollUntilEnded(t *testing.T, c *Coordinator) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for c.Poll() || c.Running() > 0 {
		if time.Now().After(deadline) {
			t.Fatalf("tasks still running after deadline: %d", c.Running())
		}
		time.Sleep(time.Millisecond)
	}
}

func TestCoordinatorRecordsArriveInOrder(t *testing.T) {
	c := newTestCoordinator(t, Options{Capacity: 2})
	c.Register(&scriptedBackend{name: "stub", records: numberedRecords(50)})

	task, err := c.Start(0, "example.com")
	if err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	pollUntilEnded(t, c)

	records := task.Records()
	if len(records) != 50 {
		t.Fatalf("len(Records()) = %d, want 50", len(records))
	}
	for i, r := range records {
		if want := fmt.Sprintf("loc-%d", i); r.Loc() != want {
			t.Fatalf("Records()[%d].Loc() = %q, want %q", i, r.Loc(), want)
		}
	}
	if task.Status() != StatusFinished {
		t.Fatalf("Status() = %v, want finished", task.Status())
	}
}

func TestCoordinatorOnFinishCalledOncePerTask(t *testing.T) {
	calls := map[string]int{}
	c := newTestCoordinator(t, Options{OnFinish: func(task *Task) { calls[task.ID()]++ }})
	c.Register(&scriptedBackend{name: "ok", records: numberedRecords(3)})
	c.Register(&scriptedBackend{name: "bad", records: numberedRecords(1), failErr: fmt.Errorf("%w: reset", ErrTransport)})

	okTask, _ := c.StartByName("ok", "a.example")
	badTask, _ := c.StartByName("bad", "b.example")
	pollUntilEnded(t, c)
	c.Poll()

	if calls[okTask.ID()] != 1 || calls[badTask.ID()] != 1 {
		t.Fatalf("OnFinish calls = %v, want one per task", calls)
	}
	if !errors.Is(badTask.Err(), ErrTransport) {
		t.Fatalf("bad task Err() = %v, want ErrTransport", badTask.Err())
	}
	if badTask.Status() != StatusFailed || len(badTask.Records()) != 1 {
		t.Fatalf("bad task status=%v records=%d", badTask.Status(), len(badTask.Records()))
	}
	if okTask.Status() != StatusFinished {
		t.Fatalf("ok task Status() = %v", okTask.Status())
	}
}

func TestCoordinatorCancelBeforeConnect(t *testing.T) {
	gate := make(chan struct{})
	c := newTestCoordinator(t, Options{})
	c.Register(&scriptedBackend{name: "stub", records: numberedRecords(5), gate: gate})

	task, _ := c.Start(0, "example.com")
	if !c.Cancel(0) {
		t.Fatal("Cancel(0) = false")
	}
	close(gate)
	pollUntilEnded(t, c)

	if len(task.Records()) != 0 {
		t.Fatalf("len(Records()) = %d, want 0", len(task.Records()))
	}
	if task.Err() != nil {
		t.Fatalf("Err() = %v, want nil", task.Err())
	}
	if task.Status() != StatusCancelled {
		t.Fatalf("Status() = %v, want cancelled", task.Status())
	}
}

func TestCoordinatorDiscardReleasesBlockedProducer(t *testing.T) {
	result := make(chan error, 1)
	c := newTestCoordinator(t, Options{Capacity: 1})
	c.Register(&scriptedBackend{name: "stub", records: numberedRecords(10), result: result})

	c.Start(0, "example.com")
	if _, ok := c.Discard(0); !ok {
		t.Fatal("Discard(0) = false")
	}
	if len(c.Tasks()) != 0 {
		t.Fatalf("len(Tasks()) = %d, want 0", len(c.Tasks()))
	}

	select {
	case err := <-result:
		if !errors.Is(err, ErrChannelClosed) {
			t.Fatalf("Ping() error = %v, want ErrChannelClosed", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("producer still blocked after discard")
	}
}

func TestCoordinatorStartUnknownBackend(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	if _, err := c.Start(0, "example.com"); err == nil {
		t.Fatal("Start() on empty registry succeeded")
	}
	if _, err := c.StartByName("nope", "example.com"); err == nil {
		t.Fatal("StartByName(nope) succeeded")
	}
}

func TestCoordinatorDiscardKeepsOrder(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	c.Register(&scriptedBackend{name: "stub"})
	for _, h := range []string{"a", "b", "c"} {
		c.Start(0, h)
	}
	c.Discard(1)

	tasks := c.Tasks()
	if len(tasks) != 2 || tasks[0].Host() != "a" || tasks[1].Host() != "c" {
		t.Fatalf("Tasks() after discard = %v", tasks)
	}
	pollUntilEnded(t, c)
}

type memorySource map[string][]Record

func (m memorySource) LatestRecords(_ context.Context, key string) ([]Record, error) {
	r, ok := m[key]
	if !ok {
		return nil, errors.New("no recorded run")
	}
	return r, nil
}

func TestReplayBackend(t *testing.T) {
	c := newTestCoordinator(t, Options{})
	c.Register(&ReplayBackend{Source: memorySource{"example.com": numberedRecords(4)}})

	task, _ := c.StartByName("replay", "example.com")
	missing, _ := c.StartByName("replay", "missing.example")
	pollUntilEnded(t, c)

	if len(task.Records()) != 4 || task.Status() != StatusFinished {
		t.Fatalf("replay status=%v records=%d", task.Status(), len(task.Records()))
	}
	if missing.Status() != StatusFailed {
		t.Fatalf("missing replay Status() = %v, want failed", missing.Status())
	}
}
