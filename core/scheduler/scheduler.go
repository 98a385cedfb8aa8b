package scheduler

import (
	"context"
	"errors"
	"time"
)

// Ticker emits ticks at a fixed interval.
type Ticker struct {
	Interval time.Duration
	// newTicker is replaced in tests.
	newTicker func(time.Duration) (<-chan time.Time, func())
}

// New returns a Ticker for the given interval.
func New(interval time.Duration) (*Ticker, error) {
	if interval <= 0 {
		return nil, errors.New("tick interval must be positive")
	}
	return &Ticker{Interval: interval}, nil
}

// Start emits a tick immediately then one per interval until ctx is done, at
// which point the returned channel is closed. Ticks are dropped while the
// consumer is still busy with the previous one.
func (t *Ticker) Start(ctx context.Context) <-chan time.Time {
	out := make(chan time.Time, 1)
	mk := t.newTicker
	if mk == nil {
		mk = func(d time.Duration) (<-chan time.Time, func()) {
			tk := time.NewTicker(d)
			return tk.C, tk.Stop
		}
	}
	src, stop := mk(t.Interval)
	out <- time.Now()
	go func() {
		defer close(out)
		defer stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-src:
				select {
				case out <- now:
				default:
				}
			}
		}
	}()
	return out
}
