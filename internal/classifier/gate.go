package classifier

import (
	"context"
	"sync"
	"time"
)

// RateGate spaces outbound requests by a fixed minimum interval. It behaves
// as a token bucket holding one token: callers queue on the mutex and each
// leaves only once the interval since the previous departure has elapsed.
type RateGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
	sleep    func(context.Context, time.Duration) error
}

// RateGateOption customizes a RateGate.
type RateGateOption func(*RateGate)

// WithGateClock overrides the time source and the sleep function.
func WithGateClock(now func() time.Time, sleep func(context.Context, time.Duration) error) RateGateOption {
	return func(g *RateGate) {
		if now != nil {
			g.now = now
		}
		if sleep != nil {
			g.sleep = sleep
		}
	}
}

// NewRateGate returns a gate enforcing interval between calls. A zero
// interval never blocks.
func NewRateGate(interval time.Duration, opts ...RateGateOption) *RateGate {
	g := &RateGate{interval: interval, now: time.Now, sleep: sleepContext}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wait blocks until the caller may issue a request or ctx ends.
func (g *RateGate) Wait(ctx context.Context) error {
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.interval > 0 && !g.last.IsZero() {
		if wait := g.interval - g.now().Sub(g.last); wait > 0 {
			if err := g.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	g.last = g.now()
	return nil
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
