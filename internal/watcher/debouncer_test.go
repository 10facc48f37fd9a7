package watcher_test

import (
	"sync"
	"testing"
	"time"

	"meddoc/internal/watcher"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
}

func TestDebouncerCoalescesBurst(t *testing.T) {
	clock := newClock()
	d := watcher.NewDebouncer(3*time.Second, watcher.WithClock(clock.Now))

	for i := 0; i < 5; i++ {
		d.Record("/root/a.pdf", watcher.KindModified)
		clock.Advance(500 * time.Millisecond)
	}
	if got := d.Drain(); len(got) != 0 {
		t.Fatalf("expected nothing settled inside the window, got %v", got)
	}
	clock.Advance(3 * time.Second)
	got := d.Drain()
	if len(got) != 1 || got[0].Path != "/root/a.pdf" {
		t.Fatalf("expected exactly one settled event, got %v", got)
	}
	if got := d.Drain(); len(got) != 0 {
		t.Fatalf("drained entries must be removed, got %v", got)
	}
}

func TestDebouncerSeparatedBurstsYieldTwoEvents(t *testing.T) {
	clock := newClock()
	d := watcher.NewDebouncer(3*time.Second, watcher.WithClock(clock.Now))

	total := 0
	d.Record("/root/a.pdf", watcher.KindCreated)
	clock.Advance(4 * time.Second)
	total += len(d.Drain())
	d.Record("/root/a.pdf", watcher.KindModified)
	clock.Advance(4 * time.Second)
	total += len(d.Drain())
	if total != 2 {
		t.Fatalf("expected two events for bursts separated by more than the window, got %d", total)
	}
}

func TestDebouncerKindUpgrade(t *testing.T) {
	clock := newClock()
	d := watcher.NewDebouncer(time.Second, watcher.WithClock(clock.Now))

	d.Record("/root/moved.pdf", watcher.KindModified)
	d.Record("/root/moved.pdf", watcher.KindCreated)
	d.Record("/root/new.pdf", watcher.KindCreated)
	d.Record("/root/new.pdf", watcher.KindModified)
	clock.Advance(2 * time.Second)

	got := d.Drain()
	if len(got) != 2 {
		t.Fatalf("expected two events, got %v", got)
	}
	for _, ev := range got {
		if ev.Kind != watcher.KindCreated {
			t.Fatalf("expected created kind for %s, got %s", ev.Path, ev.Kind)
		}
	}
}

func TestDebouncerForget(t *testing.T) {
	clock := newClock()
	d := watcher.NewDebouncer(time.Second, watcher.WithClock(clock.Now))
	d.Record("/root/gone.pdf", watcher.KindCreated)
	d.Forget("/root/gone.pdf")
	clock.Advance(2 * time.Second)
	if got := d.Drain(); len(got) != 0 {
		t.Fatalf("expected forgotten path dropped, got %v", got)
	}
	if d.Pending() != 0 {
		t.Fatalf("expected no pending paths, got %d", d.Pending())
	}
}

func TestDebouncerConcurrentRecord(t *testing.T) {
	d := watcher.NewDebouncer(0)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				d.Record("/root/shared.pdf", watcher.KindModified)
			}
		}()
	}
	wg.Wait()
	if got := d.Drain(); len(got) != 1 {
		t.Fatalf("expected one coalesced entry, got %d", len(got))
	}
}
