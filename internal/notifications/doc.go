// Package notifications pushes import events to ntfy.
//
// NewService returns a no-op implementation when no topic is configured, so
// callers publish unconditionally. Per-event toggles in the notifications
// config section silence individual events; the test event is always sent.
package notifications
