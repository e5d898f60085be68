// Package notifications delivers campaign and batch events via ntfy.
//
// NewService returns a no-op implementation when no topic is configured.
// Per-event toggles in the [notifications] config section suppress whole
// event classes, so callers can publish unconditionally.
package notifications
