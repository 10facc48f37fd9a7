package services_test

import (
	"context"
	"testing"

	"meddoc/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithRecordID(ctx, 42)
	ctx = services.WithPath(ctx, "/docs/a.pdf")
	ctx = services.WithStage(ctx, "classify")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.RecordIDFromContext(ctx); !ok || id != 42 {
		t.Fatalf("unexpected record id: %v %v", id, ok)
	}
	if path, ok := services.PathFromContext(ctx); !ok || path != "/docs/a.pdf" {
		t.Fatalf("unexpected path: %v %v", path, ok)
	}
	if stage, ok := services.StageFromContext(ctx); !ok || stage != "classify" {
		t.Fatalf("unexpected stage: %v %v", stage, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestBlankValuesPreserveContext(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithStage(ctx, "")
	ctx = services.WithRecordID(ctx, 0)
	if _, ok := services.StageFromContext(ctx); ok {
		t.Fatal("expected no stage value")
	}
	if _, ok := services.RecordIDFromContext(ctx); ok {
		t.Fatal("expected no record id")
	}
}
