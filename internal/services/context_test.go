package services_test

import (
	"context"
	"testing"

	"reelsmith/internal/services"
)

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	ctx = services.WithCampaignID(ctx, "c-42")
	ctx = services.WithStep(ctx, "video")
	ctx = services.WithUserID(ctx, "user-1")
	ctx = services.WithBatchID(ctx, "b-7")
	ctx = services.WithRequestID(ctx, "req-123")

	if id, ok := services.CampaignIDFromContext(ctx); !ok || id != "c-42" {
		t.Fatalf("unexpected campaign id: %v %v", id, ok)
	}
	if step, ok := services.StepFromContext(ctx); !ok || step != "video" {
		t.Fatalf("unexpected step: %v %v", step, ok)
	}
	if user, ok := services.UserIDFromContext(ctx); !ok || user != "user-1" {
		t.Fatalf("unexpected user: %v %v", user, ok)
	}
	if batch, ok := services.BatchIDFromContext(ctx); !ok || batch != "b-7" {
		t.Fatalf("unexpected batch: %v %v", batch, ok)
	}
	if rid, ok := services.RequestIDFromContext(ctx); !ok || rid != "req-123" {
		t.Fatalf("unexpected request id: %v %v", rid, ok)
	}
}

func TestStepBlankPreservesContext(t *testing.T) {
	ctx := services.WithStep(context.Background(), "")
	if _, ok := services.StepFromContext(ctx); ok {
		t.Fatal("expected no step value")
	}
}
