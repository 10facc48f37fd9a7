package watcher

import (
	"sort"
	"sync"
	"time"
)

// Kind is the coalesced change type of a pending path.
type Kind int

const (
	KindCreated Kind = iota + 1
	KindModified
)

func (k Kind) String() string {
	switch k {
	case KindCreated:
		return "created"
	case KindModified:
		return "modified"
	default:
		return "unknown"
	}
}

// Event is a settled filesystem change ready for processing.
type Event struct {
	Path     string
	Kind     Kind
	LastSeen time.Time
}

// Debouncer coalesces bursts of notifications per path. A path is released
// by Drain once no notification has arrived for the configured window.
type Debouncer struct {
	mu      sync.Mutex
	window  time.Duration
	now     func() time.Time
	pending map[string]*Event
}

// DebouncerOption customizes a Debouncer.
type DebouncerOption func(*Debouncer)

// WithClock overrides the time source.
func WithClock(now func() time.Time) DebouncerOption {
	return func(d *Debouncer) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDebouncer constructs a Debouncer with the given quiet window.
func NewDebouncer(window time.Duration, opts ...DebouncerOption) *Debouncer {
	d := &Debouncer{
		window:  window,
		now:     time.Now,
		pending: make(map[string]*Event),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Record notes a change to path. A pending Created entry stays Created; a
// Created notification upgrades a pending Modified entry because move
// destinations arrive as creates.
func (d *Debouncer) Record(path string, kind Kind) {
	d.mu.Lock()
	defer d.mu.Unlock()
	now := d.now()
	if existing, ok := d.pending[path]; ok {
		existing.LastSeen = now
		if kind == KindCreated {
			existing.Kind = KindCreated
		}
		return
	}
	d.pending[path] = &Event{Path: path, Kind: kind, LastSeen: now}
}

// Forget drops a pending path, used when the file is removed or renamed away
// before it settles.
func (d *Debouncer) Forget(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.pending, path)
}

// Drain removes and returns every entry whose last notification is older than
// the window, oldest first.
func (d *Debouncer) Drain() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	cutoff := d.now().Add(-d.window)
	var ready []Event
	for path, ev := range d.pending {
		if ev.LastSeen.After(cutoff) {
			continue
		}
		ready = append(ready, *ev)
		delete(d.pending, path)
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].LastSeen.Equal(ready[j].LastSeen) {
			return ready[i].Path < ready[j].Path
		}
		return ready[i].LastSeen.Before(ready[j].LastSeen)
	})
	return ready
}

// Pending returns the number of paths still inside their quiet window.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
