package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"reelsmith/internal/config"
	"reelsmith/internal/notifications"
)

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	if err := svc.Publish(context.Background(), notifications.EventCampaignCompleted, notifications.Payload{"name": "Example"}); err != nil {
		t.Fatalf("expected noop notifier to return nil, got %v", err)
	}
}

func TestNtfyServiceFormatsPayloads(t *testing.T) {
	tests := []struct {
		name           string
		event          notifications.Event
		payload        notifications.Payload
		expectTitle    string
		expectMessage  string
		expectTags     string
		expectPriority string
	}{
		{
			name:          "campaign completed",
			event:         notifications.EventCampaignCompleted,
			payload:       notifications.Payload{"name": "Mug launch", "skipped": 2},
			expectTitle:   "reelsmith - Campaign Complete",
			expectMessage: "✅ Campaign complete: Mug launch (2 steps skipped)",
			expectTags:    "reelsmith,campaign,completed",
		},
		{
			name:           "campaign failed",
			event:          notifications.EventCampaignFailed,
			payload:        notifications.Payload{"name": "Mug launch", "error": "[video] provider down"},
			expectTitle:    "reelsmith - Campaign Failed",
			expectMessage:  "❌ Campaign failed: Mug launch\n[video] provider down",
			expectTags:     "reelsmith,campaign,failed",
			expectPriority: "high",
		},
		{
			name:          "batch completed with failures",
			event:         notifications.EventBatchCompleted,
			payload:       notifications.Payload{"name": "Spring", "total": 5, "failed": 1, "duration": 90 * time.Second},
			expectTitle:   "reelsmith - Batch Complete (with errors)",
			expectMessage: "📦 Batch Spring: 4 succeeded, 1 failed in 1m30s",
			expectTags:    "reelsmith,batch,completed",
		},
		{
			name:  "error",
			event: notifications.EventError,
			payload: notifications.Payload{
				"context": "campaign abc",
				"error":   errors.New("database locked"),
			},
			expectTitle:    "reelsmith - Error",
			expectMessage:  "❌ Error with campaign abc: database locked",
			expectTags:     "reelsmith,error,alert",
			expectPriority: "high",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			type request struct {
				title, tags, priority, body string
			}
			captured := make(chan request, 1)

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost {
					t.Errorf("unexpected method: %s", r.Method)
				}
				body, _ := io.ReadAll(r.Body)
				captured <- request{
					title:    r.Header.Get("Title"),
					tags:     r.Header.Get("Tags"),
					priority: r.Header.Get("Priority"),
					body:     string(body),
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer server.Close()

			cfg := config.Default()
			cfg.Notifications.NtfyTopic = server.URL
			cfg.Notifications.RequestTimeout = 5

			svc := notifications.NewService(&cfg)
			if err := svc.Publish(context.Background(), tc.event, tc.payload); err != nil {
				t.Fatalf("notification returned error: %v", err)
			}
			got := <-captured
			if got.title != tc.expectTitle {
				t.Fatalf("expected title %q, got %q", tc.expectTitle, got.title)
			}
			if got.body != tc.expectMessage {
				t.Fatalf("expected message %q, got %q", tc.expectMessage, got.body)
			}
			if got.tags != tc.expectTags {
				t.Fatalf("expected tags %q, got %q", tc.expectTags, got.tags)
			}
			if got.priority != tc.expectPriority {
				t.Fatalf("expected priority %q, got %q", tc.expectPriority, got.priority)
			}
		})
	}
}

func TestNtfyServiceIgnoresDisabledEvents(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected call for suppressed event: %s", r.URL.String())
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.CampaignCompleted = false
	cfg.Notifications.Batch = false

	svc := notifications.NewService(&cfg)
	for _, event := range []notifications.Event{notifications.EventCampaignCompleted, notifications.EventBatchCompleted, "unknown"} {
		if err := svc.Publish(context.Background(), event, notifications.Payload{"name": "ignored"}); err != nil {
			t.Fatalf("expected no error for suppressed event %s, got %v", event, err)
		}
	}
}

func TestNtfyServiceReportsHTTPErrors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "topic forbidden", http.StatusForbidden)
	}))
	defer server.Close()

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	err := notifications.NewService(&cfg).Publish(context.Background(), notifications.EventTest, nil)
	if err == nil || !strings.Contains(err.Error(), "ntfy returned 403") {
		t.Fatalf("expected 403 error, got %v", err)
	}
}
