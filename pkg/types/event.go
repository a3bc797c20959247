package types

import "time"

// EventType identifies a context change broadcast to subscribers.
type EventType string

const (
	SourceAdded          EventType = "source_added"
	SourceUpdated        EventType = "source_updated"
	SourceDeleted        EventType = "source_deleted"
	ActiveContextChanged EventType = "active_context_changed"
	ContentUpdated       EventType = "content_updated"
	ContentCleared       EventType = "content_cleared"
)

// ContextEvent describes a single change to the context state. It is
// the payload of every server-originated event envelope.
type ContextEvent struct {
	Type       EventType      `json:"type"`
	SourceID   string         `json:"sourceId,omitempty"`
	SourceType SourceType     `json:"sourceType,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	Data       map[string]any `json:"data,omitempty"`

	// OriginID names the client whose request caused the change, when
	// there is one. It never goes over the wire; the broadcaster uses
	// it to skip echoing an event back to its originator.
	OriginID string `json:"-"`
}
