package history

import (
	"time"

	"github.com/sadopc/httping/internal/probe"
)

// Run is one finished probe as stored in history.
type Run struct {
	ID          string
	Backend     string
	Host        string
	Status      string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
	RecordCount int
	// Records is only filled by Get.
	Records []probe.Record
}

// Duration is the wall time the probe took.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// FromTask captures an ended task.
func FromTask(t *probe.Task) Run {
	run := Run{
		ID:          t.ID(),
		Backend:     t.Backend(),
		Host:        t.Host(),
		Status:      t.Status().String(),
		StartedAt:   t.Started(),
		FinishedAt:  t.Finished(),
		Records:     t.Records(),
		RecordCount: len(t.Records()),
	}
	if err := t.Err(); err != nil {
		run.Error = err.Error()
	}
	return run
}

type phaseJSON struct {
	Name string `json:"name"`
	Cost string `json:"cost"`
}
