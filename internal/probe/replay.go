package probe

import (
	"context"
	"fmt"
	"time"
)

// RecordSource supplies the records of an earlier run. The key is whatever the
// source uses to find a run, a host name or a run id.
type RecordSource interface {
	LatestRecords(ctx context.Context, key string) ([]Record, error)
}

// ReplayBackend plays back stored records with the same event semantics as a
// live probe. Interval spaces records out so a replay looks like a stream.
type ReplayBackend struct {
	Source   RecordSource
	Interval time.Duration
}

func (b *ReplayBackend) Name() string { return "replay" }

func (b *ReplayBackend) Ping(ctx context.Context, host string, cancel <-chan struct{}, out chan<- Event) error {
	if Cancelled(cancel) {
		return Send(ctx, out, CancelledEvent())
	}
	records, err := b.Source.LatestRecords(ctx, host)
	if err != nil {
		return fmt.Errorf("loading recorded run for %s: %w", host, err)
	}

	var tick <-chan time.Time
	if b.Interval > 0 {
		ticker := time.NewTicker(b.Interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for _, r := range records {
		if Cancelled(cancel) {
			break
		}
		if tick != nil {
			select {
			case <-tick:
			case <-cancel:
			case <-ctx.Done():
				return fmt.Errorf("%w: %v", ErrChannelClosed, context.Cause(ctx))
			}
			if Cancelled(cancel) {
				break
			}
		}
		if err := Send(ctx, out, RecordEvent(r)); err != nil {
			return err
		}
	}
	if Cancelled(cancel) {
		return Send(ctx, out, CancelledEvent())
	}
	return Send(ctx, out, EndEvent())
}
