package watcher

import (
	"context"
	"time"

	"github.com/ritzau/forcegraph/pkg/logging"
)

// Debouncer batches rapid change events to avoid excessive reloads.
// Events are flushed after quietPeriod without new input, or after maxWait
// since the first pending event, whichever comes first.
type Debouncer struct {
	input       <-chan ChangeEvent
	output      chan ChangeEvent
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new event debouncer
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

// run processes events and applies debouncing logic
func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet       <-chan time.Time
		deadline    <-chan time.Time
		quietTimer  *time.Timer
		maxTimer    *time.Timer
		accumulated []string
		seen        = make(map[string]bool)
		eventCount  int
	)

	stop := func() {
		if quietTimer != nil {
			quietTimer.Stop()
		}
		if maxTimer != nil {
			maxTimer.Stop()
		}
		quiet, deadline = nil, nil
		quietTimer, maxTimer = nil, nil
	}

	flush := func() {
		stop()
		if eventCount == 0 {
			return
		}

		logging.Debug("flushing accumulated events", "count", eventCount, "paths", len(accumulated))
		ev := ChangeEvent{Paths: accumulated, Timestamp: time.Now()}
		select {
		case d.output <- ev:
		case <-ctx.Done():
		}

		accumulated = nil
		seen = make(map[string]bool)
		eventCount = 0
	}

	for {
		select {
		case <-ctx.Done():
			stop()
			return

		case event, ok := <-d.input:
			if !ok {
				flush()
				return
			}

			for _, p := range event.Paths {
				if !seen[p] {
					seen[p] = true
					accumulated = append(accumulated, p)
				}
			}
			eventCount++

			// Reset quiet period timer
			if quietTimer != nil {
				quietTimer.Stop()
			}
			quietTimer = time.NewTimer(d.quietPeriod)
			quiet = quietTimer.C

			// Start max wait timer on first event
			if maxTimer == nil {
				maxTimer = time.NewTimer(d.maxWait)
				deadline = maxTimer.C
			}

		case <-quiet:
			flush()

		case <-deadline:
			flush()
		}
	}
}

// Output returns the channel of debounced events
func (d *Debouncer) Output() <-chan ChangeEvent {
	return d.output
}
