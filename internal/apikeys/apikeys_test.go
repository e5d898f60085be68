package apikeys_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"reelsmith/internal/apikeys"
	"reelsmith/internal/services"
	"reelsmith/internal/testsupport"
)

func TestGetPrefersUserKey(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Narration.APIKey = "config-el"
	st := testsupport.MustOpenStore(t, cfg)
	svc := apikeys.New(st, cfg)
	ctx := context.Background()

	if key, err := svc.Get(ctx, "user-1", "elevenlabs"); err != nil || key != "config-el" {
		t.Fatalf("expected config fallback, got %q, %v", key, err)
	}
	if err := svc.Set(ctx, "user-1", "ElevenLabs", " user-el "); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if key, err := svc.Get(ctx, "user-1", "elevenlabs"); err != nil || key != "user-el" {
		t.Fatalf("expected user key, got %q, %v", key, err)
	}
	if key, _ := svc.Get(ctx, "user-2", "elevenlabs"); key != "config-el" {
		t.Fatalf("other users should see config key, got %q", key)
	}
	if err := svc.Delete(ctx, "user-1", "elevenlabs"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if key, _ := svc.Get(ctx, "user-1", "elevenlabs"); key != "config-el" {
		t.Fatalf("expected fallback after delete, got %q", key)
	}
}

func TestGetAbsentKeyIsEmpty(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithReplicateToken(""))
	svc := apikeys.New(testsupport.MustOpenStore(t, cfg), cfg)

	key, err := svc.Get(context.Background(), "user-1", "replicate")
	if err != nil || key != "" {
		t.Fatalf("expected empty key, got %q, %v", key, err)
	}
}

func TestUnknownProvider(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	svc := apikeys.New(testsupport.MustOpenStore(t, cfg), cfg)

	_, err := svc.Get(context.Background(), "user-1", "openai")
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := svc.Set(context.Background(), "user-1", "replicate", "  "); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank key, got %v", err)
	}
}

func TestStatuses(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	svc := apikeys.New(st, cfg)
	if err := svc.Set(context.Background(), "user-1", "google", "g-key"); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := svc.Statuses(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("Statuses: %v", err)
	}
	want := []apikeys.Status{
		{Provider: "replicate", Source: "config"},
		{Provider: "elevenlabs", Source: "none"},
		{Provider: "google", Source: "user"},
		{Provider: "openrouter", Source: "none"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("statuses mismatch (-want +got):\n%s", diff)
	}
}
