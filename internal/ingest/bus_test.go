package ingest_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"meddoc/internal/ingest"
	"meddoc/internal/notifications"
)

func TestBusDropsWhenSubscriberIsFull(t *testing.T) {
	bus := ingest.NewBus()
	slow, unsubscribeSlow := bus.Subscribe(1)
	defer unsubscribeSlow()
	fast, unsubscribeFast := bus.Subscribe(4)
	defer unsubscribeFast()

	for i := 0; i < 3; i++ {
		bus.Publish(ingest.DraftCreated{RecordID: int64(i + 1)})
	}

	if got := bus.Dropped(); got != 2 {
		t.Fatalf("expected 2 drops, got %d", got)
	}
	if len(slow) != 1 || len(fast) != 3 {
		t.Fatalf("unexpected buffered counts slow=%d fast=%d", len(slow), len(fast))
	}
	first := (<-slow).(ingest.DraftCreated)
	if first.RecordID != 1 {
		t.Fatalf("slow subscriber should keep the first message, got %d", first.RecordID)
	}
}

func TestBusCloseAndUnsubscribeCloseChannels(t *testing.T) {
	bus := ingest.NewBus()
	a, unsubscribe := bus.Subscribe(0)
	b, _ := bus.Subscribe(0)

	unsubscribe()
	unsubscribe()
	if _, ok := <-a; ok {
		t.Fatal("expected unsubscribed channel to be closed")
	}

	bus.Close()
	if _, ok := <-b; ok {
		t.Fatal("expected channel closed by Close")
	}
	bus.Publish(ingest.Confirmed{RecordID: 1})

	late, _ := bus.Subscribe(1)
	if _, ok := <-late; ok {
		t.Fatal("subscribing to a closed bus should yield a closed channel")
	}
}

type recordingNotifier struct {
	mu       sync.Mutex
	events   []notifications.Event
	payloads []notifications.Payload
}

func (r *recordingNotifier) Publish(_ context.Context, event notifications.Event, payload notifications.Payload) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	r.payloads = append(r.payloads, payload)
	return nil
}

func TestRelayTranslatesMessages(t *testing.T) {
	notifier := &recordingNotifier{}
	relay := ingest.NewRelay(notifier, "/srv/docs", nil)

	msgs := make(chan ingest.Message, 3)
	msgs <- ingest.DraftCreated{
		RecordID:     7,
		FileName:     "IncomingScan.pdf",
		DocType:      "ky_thuat",
		ProposedPath: "/srv/docs/chan_doan_hinh_anh/x_quang/ge_healthcare_optima_xr220/IncomingScan.pdf",
		Confidence:   0.92,
	}
	msgs <- ingest.Confirmed{RecordID: 7, Path: "/srv/docs/a/b/c/IncomingScan.pdf"}
	msgs <- ingest.ClassificationFailed{Path: "/srv/docs/broken.pdf", Err: errors.New("rate limited")}
	close(msgs)

	relay.Run(context.Background(), msgs)

	want := []notifications.Event{
		notifications.EventDraftCreated,
		notifications.EventConfirmed,
		notifications.EventClassificationFailed,
	}
	if len(notifier.events) != len(want) {
		t.Fatalf("expected %d notifications, got %d", len(want), len(notifier.events))
	}
	for i, event := range want {
		if notifier.events[i] != event {
			t.Fatalf("notification %d: got %q want %q", i, notifier.events[i], event)
		}
	}
	draft := notifier.payloads[0]
	if draft["recordID"] != "7" || draft["docTypeLabel"] != "Kỹ thuật" {
		t.Fatalf("unexpected draft payload %v", draft)
	}
	if draft["proposedPath"] != "chan_doan_hinh_anh/x_quang/ge_healthcare_optima_xr220/IncomingScan.pdf" {
		t.Fatalf("expected path relative to root, got %v", draft["proposedPath"])
	}
	if notifier.payloads[2]["fileName"] != "broken.pdf" {
		t.Fatalf("unexpected failure payload %v", notifier.payloads[2])
	}
}

func TestConfidenceThresholdPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy ingest.ApprovalPolicy
		draft  ingest.DraftCreated
		want   bool
	}{
		{"always confirm", ingest.PolicyFor(0), ingest.DraftCreated{Confidence: 1, Category: "noi_soi"}, false},
		{"above threshold", ingest.PolicyFor(0.8), ingest.DraftCreated{Confidence: 0.85, Category: "noi_soi"}, true},
		{"below threshold", ingest.PolicyFor(0.8), ingest.DraftCreated{Confidence: 0.75, Category: "noi_soi"}, false},
		{"unclassified", ingest.PolicyFor(0.5), ingest.DraftCreated{Confidence: 0.9, Category: "chua_phan_loai"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.AutoConfirm(tt.draft); got != tt.want {
				t.Fatalf("AutoConfirm = %v, want %v", got, tt.want)
			}
		})
	}
}
