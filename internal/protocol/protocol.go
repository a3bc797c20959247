// Package protocol defines the wire format spoken over each
// websocket: client request envelopes, per-request responses, and
// server-originated event envelopes, plus the codec that parses
// inbound frames.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/oklog/ulid/v2"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// MessageType identifies a client request or the server event frame.
type MessageType string

const (
	MessageTypeGetSources          MessageType = "get_sources"
	MessageTypeAddSource           MessageType = "add_source"
	MessageTypeUpdateSource        MessageType = "update_source"
	MessageTypeDeleteSource        MessageType = "delete_source"
	MessageTypeGetActiveContext    MessageType = "get_active_context"
	MessageTypeSetActiveContext    MessageType = "set_active_context"
	MessageTypeGetSourceContent    MessageType = "get_source_content"
	MessageTypeUpdateSourceContent MessageType = "update_source_content"
	MessageTypeClearSourceContent  MessageType = "clear_source_content"
	MessageTypeSubscribeEvents     MessageType = "subscribe_events"

	// MessageTypeEvent is the only server-originated frame type.
	MessageTypeEvent MessageType = "event"
)

// Reserved response IDs for frames that do not answer a parsed
// request.
const (
	ResponseIDUnknown = "unknown"
	ResponseIDWelcome = "welcome"
)

// InvalidFormatError is the error string sent when a frame cannot be
// parsed at all.
const InvalidFormatError = "Invalid message format"

// Message is the request envelope. ID is chosen by the caller and
// echoed verbatim on the response.
type Message struct {
	Type      MessageType     `json:"type"`
	ID        string          `json:"id"`
	Timestamp Timestamp       `json:"timestamp,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// Response answers exactly one request. Data is omitted when nil, so
// handlers that want an explicit empty list must pass a non-nil
// empty slice.
type Response struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Event is the envelope wrapping a broadcast context event. Its ID is
// minted by the server, never correlated with any request.
type Event struct {
	Type      MessageType        `json:"type"`
	ID        string             `json:"id"`
	Timestamp Timestamp          `json:"timestamp"`
	Payload   types.ContextEvent `json:"payload"`
}

// DecodeError reports an inbound frame that could not be parsed into
// a Message. It is answered with an "unknown" response, never by
// closing the connection.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid message: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// ValidationError reports a payload that parsed but failed handler
// validation. Its reason is sent to the client verbatim.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// Decode parses a raw frame into a Message. A missing ID is replaced
// with the reserved "unknown" ID so the eventual response still
// correlates the way clients expect.
func Decode(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if msg.Type == "" {
		return nil, &DecodeError{Err: errors.New("missing message type")}
	}
	if msg.ID == "" {
		msg.ID = ResponseIDUnknown
	}
	return &msg, nil
}

// validator is implemented by payloads that check their own fields.
type validator interface {
	Validate() error
}

// UnmarshalPayload parses a request payload into v and runs its
// validation. A missing payload is treated as an empty object so
// required-field errors surface instead of JSON errors.
func UnmarshalPayload(raw json.RawMessage, v any) error {
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, v); err != nil {
			return &ValidationError{Reason: "Invalid payload"}
		}
	}
	if val, ok := v.(validator); ok {
		return val.Validate()
	}
	return nil
}

// SuccessResponse builds a success response for a request ID.
func SuccessResponse(id string, data any) Response {
	return Response{ID: id, Success: true, Data: data}
}

// ErrorResponse builds a failure response for a request ID.
func ErrorResponse(id string, message string) Response {
	return Response{ID: id, Success: false, Error: message}
}

// InvalidMessageResponse answers a frame that never parsed.
func InvalidMessageResponse() Response {
	return ErrorResponse(ResponseIDUnknown, InvalidFormatError)
}

// WelcomeResponse is the first frame sent on every new connection,
// carrying the server-assigned client ID.
func WelcomeResponse(clientID string) Response {
	return SuccessResponse(ResponseIDWelcome, map[string]any{
		"message":  "Connected to ctxhub",
		"clientId": clientID,
	})
}

// NewEvent wraps a context event in a wire envelope with a fresh ULID.
func NewEvent(evt types.ContextEvent) Event {
	return Event{
		Type:      MessageTypeEvent,
		ID:        "evt_" + ulid.Make().String(),
		Timestamp: Now(),
		Payload:   evt,
	}
}
