package sse

import (
	"github.com/launchdarkly/go-sdk-common/v3/ldvalue"
)

const (
	// DefaultEventType is the type of an event whose "event" field was absent or empty.
	DefaultEventType = "message"

	// CommentEventType is the type of the synthetic event produced for a comment line.
	CommentEventType = "comment"
)

// Event is a single dispatched server-sent event.
type Event struct {
	// Type is the event type, "message" by default.
	Type string
	// Data is the event data. Multiple data lines are joined with "\n", without a trailing newline.
	Data string
	// ID is the last event ID that was in effect when this event was dispatched.
	ID ldvalue.OptionalString
}

// IsComment returns true if this event represents a comment line rather than a real event.
func (e Event) IsComment() bool {
	return e.Type == CommentEventType
}
