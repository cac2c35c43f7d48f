package probe

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// DefaultCapacity is the per-task channel capacity used when none is configured.
const DefaultCapacity = 128

// Options configures a Coordinator.
type Options struct {
	// Capacity bounds each task's event channel. Zero means DefaultCapacity.
	Capacity int
	Logger   zerolog.Logger
	// OnFinish is called once for every task, from Poll, when it ends.
	OnFinish func(*Task)
}

// Coordinator owns the ordered backend list and the task list. It is
// single-threaded: all methods must be called from the owner's goroutine.
// Probes run in their own goroutines and are integrated by Poll.
type Coordinator struct {
	ctx      context.Context
	registry *Registry
	tasks    []*Task
	capacity int
	log      zerolog.Logger
	onFinish func(*Task)
}

// NewCoordinator creates a coordinator. Cancelling ctx abandons every task
// still running.
func NewCoordinator(ctx context.Context, opts Options) *Coordinator {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Coordinator{
		ctx:      ctx,
		registry: NewRegistry(),
		capacity: capacity,
		log:      opts.Logger,
		onFinish: opts.OnFinish,
	}
}

// Register adds a backend. A backend with an existing name replaces it.
func (c *Coordinator) Register(b Backend) {
	c.registry.Register(b)
	c.log.Debug().Str("backend", b.Name()).Msg("backend registered")
}

// Backends returns the backend registry.
func (c *Coordinator) Backends() *Registry { return c.registry }

// Start launches a probe of host on the backend at index and appends the new
// task to the task list.
func (c *Coordinator) Start(index int, host string) (*Task, error) {
	b, err := c.registry.At(index)
	if err != nil {
		return nil, err
	}
	return c.launch(b, host), nil
}

// StartByName is Start with the backend looked up by name.
func (c *Coordinator) StartByName(name, host string) (*Task, error) {
	b, ok := c.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", name)
	}
	return c.launch(b, host), nil
}

func (c *Coordinator) launch(b Backend, host string) *Task {
	events := make(chan Event, c.capacity)
	cancel := make(chan struct{})
	outcome := make(chan error, 1)
	ctx, abandon := context.WithCancelCause(c.ctx)

	t := newTask(host, b.Name(), events, cancel, outcome, func() { abandon(errTaskDiscarded) })
	log := c.log.With().Str("task", t.id).Str("backend", b.Name()).Str("host", host).Logger()

	go func() {
		err := b.Ping(ctx, host, cancel, events)
		if err != nil {
			log.Debug().Err(err).Msg("probe failed")
		} else {
			log.Debug().Msg("probe returned")
		}
		outcome <- err
	}()

	c.tasks = append(c.tasks, t)
	log.Info().Msg("probe started")
	return t
}

var errTaskDiscarded = errors.New("task discarded")

// Tasks returns the live task list in launch order.
func (c *Coordinator) Tasks() []*Task {
	return c.tasks[:len(c.tasks):len(c.tasks)]
}

// Poll drains every task without blocking and reports whether anything changed.
func (c *Coordinator) Poll() bool {
	changed := false
	for _, t := range c.tasks {
		wasEnded := t.ended
		if t.Drain() {
			changed = true
		}
		if !wasEnded && t.ended {
			c.ended(t)
		}
	}
	return changed
}

func (c *Coordinator) ended(t *Task) {
	ev := c.log.Info()
	if t.err != nil {
		ev = c.log.Warn().Err(t.err)
	}
	ev.Str("task", t.id).
		Str("host", t.host).
		Str("status", t.Status().String()).
		Int("records", len(t.records)).
		Msg("probe ended")
	if c.onFinish != nil {
		c.onFinish(t)
	}
}

// Running returns the number of tasks that have not ended.
func (c *Coordinator) Running() int {
	n := 0
	for _, t := range c.tasks {
		if !t.ended {
			n++
		}
	}
	return n
}

// Cancel requests cancellation of the task at index i.
func (c *Coordinator) Cancel(i int) bool {
	if i < 0 || i >= len(c.tasks) {
		return false
	}
	return c.tasks[i].Cancel()
}

// CancelAll requests cancellation of every running task.
func (c *Coordinator) CancelAll() {
	for _, t := range c.tasks {
		t.Cancel()
	}
}

// Discard abandons the task at index i and removes it from the list. A probe
// still running observes the abandonment on its next send.
func (c *Coordinator) Discard(i int) (*Task, bool) {
	if i < 0 || i >= len(c.tasks) {
		return nil, false
	}
	t := c.tasks[i]
	t.release()
	c.tasks = append(c.tasks[:i:i], c.tasks[i+1:]...)
	c.log.Debug().Str("task", t.id).Str("host", t.host).Msg("task discarded")
	return t, true
}

// Close abandons every task.
func (c *Coordinator) Close() {
	for _, t := range c.tasks {
		t.release()
	}
}
