package watcher

import (
	"context"
	"time"

	"github.com/ritzau/merge-assist/pkg/logging"
)

// Debouncer folds bursts of change events into one. A save through version
// control typically touches a revision file several times in a row.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a debouncer that emits after quietPeriod without new
// events, and at the latest maxWait after the first event of a burst.
func NewDebouncer(input <-chan ChangeEvent, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan ChangeEvent, 10),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing events with debouncing
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet, deadline   *time.Timer
		quietC, deadlineC <-chan time.Time
		pending           ChangeEvent
		count             int
	)

	flush := func() {
		if quiet != nil {
			quiet.Stop()
		}
		if deadline != nil {
			deadline.Stop()
		}
		quietC, deadlineC = nil, nil
		if count == 0 {
			return
		}
		logging.Debug("flushing accumulated events", "count", count, "revisions", pending.Revisions)
		select {
		case d.output <- pending:
		case <-ctx.Done():
		}
		pending, count = ChangeEvent{}, 0
	}

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}
			pending = merge(pending, event)
			count++

			if quiet == nil {
				quiet = time.NewTimer(d.quietPeriod)
			} else {
				quiet.Reset(d.quietPeriod)
			}
			quietC = quiet.C

			if deadlineC == nil {
				if deadline == nil {
					deadline = time.NewTimer(d.maxWait)
				} else {
					deadline.Reset(d.maxWait)
				}
				deadlineC = deadline.C
			}

		case <-quietC:
			flush()

		case <-deadlineC:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
