package publisher

import (
	"context"
	"time"

	"tadka/internal/clock"
)

// trigger is one registered recurring job. It is never restarted: a period
// change replaces it with a new trigger.
type trigger struct {
	period time.Duration
	ticker clock.Ticker
	stop   chan struct{}
	done   chan struct{}
}

func newTrigger(c clock.Clock, period time.Duration) *trigger {
	return &trigger{
		period: period,
		ticker: c.NewTicker(period),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

func (t *trigger) run(ctx context.Context, fire func(context.Context)) {
	defer close(t.done)
	defer t.ticker.Stop()

	for {
		select {
		case <-t.ticker.C():
			select {
			case <-t.stop:
				return
			default:
			}
			fire(ctx)
		case <-t.stop:
			return
		}
	}
}
