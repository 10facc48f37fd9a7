package classifier_test

import (
	"context"
	"testing"
	"time"

	"meddoc/internal/classifier"
)

func TestRateGateSpacesCalls(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	var slept []time.Duration
	gate := classifier.NewRateGate(6*time.Second, classifier.WithGateClock(
		func() time.Time { return now },
		func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			now = now.Add(d)
			return nil
		},
	))

	ctx := context.Background()
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	now = now.Add(2 * time.Second)
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("second wait: %v", err)
	}
	now = now.Add(10 * time.Second)
	if err := gate.Wait(ctx); err != nil {
		t.Fatalf("third wait: %v", err)
	}
	if len(slept) != 1 || slept[0] != 4*time.Second {
		t.Fatalf("expected a single 4s sleep, got %v", slept)
	}
}

func TestRateGateHonoursCancellation(t *testing.T) {
	gate := classifier.NewRateGate(time.Hour)
	if err := gate.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := gate.Wait(ctx); err == nil {
		t.Fatal("expected cancelled wait to fail")
	}
}
