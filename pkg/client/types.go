package client

import (
	"encoding/json"
	"time"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// message is an outbound request envelope.
type message struct {
	Type      string `json:"type"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// response is the server's reply to one request.
type response struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// welcomeID is the reserved response ID of the greeting frame.
const welcomeID = "welcome"

type welcomeData struct {
	ClientID string `json:"clientId"`
}

// Event is a context change pushed by the server after SubscribeEvents.
type Event struct {
	Type      string             `json:"type"`
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   types.ContextEvent `json:"payload"`
}

// NewSource describes a source to register.
type NewSource struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Path        string   `json:"path,omitempty"`
	Content     string   `json:"content,omitempty"`
	ContentType string   `json:"contentType,omitempty"`
	URL         string   `json:"url,omitempty"`
	Description string   `json:"description,omitempty"`
	Children    []string `json:"children,omitempty"`
}

// SourceContent is the result of GetSourceContent. Content is empty
// for source types whose content lives on the record instead of in the
// workspace.
type SourceContent struct {
	SourceID string `json:"sourceId"`
	Path     string `json:"path,omitempty"`
	Content  string `json:"content,omitempty"`
}

// Health is the server's health snapshot.
type Health struct {
	Status  string `json:"status"`
	Clients int    `json:"clients"`
	Sources int    `json:"sources"`
}

// RequestError is a request the server answered with success=false.
type RequestError struct {
	RequestID string
	Message   string
}

func (e *RequestError) Error() string {
	return e.Message
}
