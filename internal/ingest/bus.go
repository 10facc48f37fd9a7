package ingest

import (
	"sync"
	"sync/atomic"
	"time"
)

// Message is anything published on the Bus.
type Message interface {
	Kind() string
}

// Message kinds.
const (
	KindDraftCreated         = "draft_created"
	KindConfirmed            = "confirmed"
	KindClassificationFailed = "classification_failed"
)

// DraftCreated announces a draft awaiting approval.
type DraftCreated struct {
	EventID      string
	RecordID     int64
	Path         string
	FileName     string
	Vendor       string
	Model        string
	DocType      string
	Summary      string
	Category     string
	Group        string
	DeviceSlug   string
	ProposedPath string
	Confidence   float64
	At           time.Time
}

func (DraftCreated) Kind() string { return KindDraftCreated }

// Confirmed announces a record that reached its final location.
type Confirmed struct {
	EventID    string
	RecordID   int64
	FromPath   string
	Path       string
	DeviceSlug string
	At         time.Time
}

func (Confirmed) Kind() string { return KindConfirmed }

// ClassificationFailed announces a file left unindexed.
type ClassificationFailed struct {
	EventID string
	Path    string
	Err     error
	At      time.Time
}

func (ClassificationFailed) Kind() string { return KindClassificationFailed }

// Bus fans messages out to subscribers without ever blocking the publisher.
type Bus struct {
	mu      sync.RWMutex
	subs    map[int]chan Message
	next    int
	closed  bool
	dropped atomic.Int64
}

// NewBus returns an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Message)}
}

// Subscribe registers a subscriber with the given buffer and returns its
// channel and an unsubscribe function. The channel is closed on unsubscribe
// or Close.
func (b *Bus) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer < 0 {
		buffer = 0
	}
	ch := make(chan Message, buffer)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	id := b.next
	b.next++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

// Publish delivers msg to every subscriber with room in its buffer and
// counts the rest as dropped.
func (b *Bus) Publish(msg Message) {
	if b == nil {
		return
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	for _, ch := range b.subs {
		select {
		case ch <- msg:
		default:
			b.dropped.Add(1)
			busDropsTotal.Inc()
		}
	}
}

// Dropped returns the number of undelivered messages.
func (b *Bus) Dropped() int64 {
	return b.dropped.Load()
}

// Close closes every subscriber channel. Later publishes are ignored.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
