package services_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"reelsmith/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "replicate", "create prediction", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"replicate", "create prediction", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

func TestDetailsStripsMarker(t *testing.T) {
	err := services.Wrap(services.ErrValidation, "campaign", "update", "only draft campaigns can be edited", nil)
	details := services.Details(err)
	if details.Kind != "validation" {
		t.Fatalf("unexpected kind %q", details.Kind)
	}
	if details.Message != "campaign: update: only draft campaigns can be edited" {
		t.Fatalf("unexpected message %q", details.Message)
	}

	plain := services.Details(errors.New("network down"))
	if plain.Kind != "unknown" || plain.Message != "network down" {
		t.Fatalf("unexpected details for plain error: %+v", plain)
	}
	if got := services.Details(nil); got.Message != "" {
		t.Fatalf("expected empty details for nil error, got %+v", got)
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{services.Wrap(services.ErrNotFound, "campaign", "get", "missing", nil), http.StatusNotFound},
		{services.Wrap(services.ErrValidation, "", "", "", nil), http.StatusBadRequest},
		{services.Wrap(services.ErrConflict, "campaign", "execute", "already running", nil), http.StatusConflict},
		{services.Wrap(services.ErrConfiguration, "pipeline", "api key", "missing", nil), http.StatusUnprocessableEntity},
		{fmt.Errorf("outer: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{errors.New("mystery"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := services.HTTPStatus(tc.err); got != tc.want {
			t.Fatalf("HTTPStatus(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestMarkerForKindRoundTrips(t *testing.T) {
	for _, marker := range []error{services.ErrNotFound, services.ErrConflict, services.ErrConfiguration, services.ErrExternalTool} {
		kind := services.Details(services.Wrap(marker, "", "", "x", nil)).Kind
		if got := services.MarkerForKind(kind); got != marker {
			t.Fatalf("MarkerForKind(%q) = %v, want %v", kind, got, marker)
		}
	}
	if got := services.MarkerForKind("bogus"); got != services.ErrTransient {
		t.Fatalf("unknown kind mapped to %v", got)
	}
}
