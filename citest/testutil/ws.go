package testutil

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// WireResponse is a raw response envelope read off the socket.
type WireResponse struct {
	ID      string          `json:"id"`
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// WireEvent is a raw event envelope read off the socket.
type WireEvent struct {
	Type      string             `json:"type"`
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Payload   types.ContextEvent `json:"payload"`
}

// Welcome is the admission frame every connection receives first.
type Welcome struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Data    struct {
		ClientID string `json:"clientId"`
	} `json:"data"`
}

// DialWS opens a raw WebSocket connection and reads the welcome frame.
// The caller owns the connection and must Close it.
func DialWS(wsURL string) (*websocket.Conn, *Welcome, error) {
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return nil, nil, err
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var w Welcome
	if err := conn.ReadJSON(&w); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("failed to read welcome: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	return conn, &w, nil
}

// SendRequest writes a request envelope.
func SendRequest(conn *websocket.Conn, msgType, id string, payload any) error {
	msg := map[string]any{"type": msgType, "id": id}
	if payload != nil {
		msg["payload"] = payload
	}
	return conn.WriteJSON(msg)
}

// SendRaw writes arbitrary bytes as a single text frame.
func SendRaw(conn *websocket.Conn, data []byte) error {
	return conn.WriteMessage(websocket.TextMessage, data)
}

// ReadFrame reads the next frame within the timeout.
func ReadFrame(conn *websocket.Conn, timeout time.Duration) ([]byte, error) {
	conn.SetReadDeadline(time.Now().Add(timeout))
	defer conn.SetReadDeadline(time.Time{})

	_, data, err := conn.ReadMessage()
	return data, err
}

// ReadResponse reads the next frame and decodes it as a response.
func ReadResponse(conn *websocket.Conn, timeout time.Duration) (*WireResponse, error) {
	data, err := ReadFrame(conn, timeout)
	if err != nil {
		return nil, err
	}
	var resp WireResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode response %q: %w", data, err)
	}
	return &resp, nil
}

// ReadEvent reads the next frame and decodes it as an event envelope.
func ReadEvent(conn *websocket.Conn, timeout time.Duration) (*WireEvent, error) {
	data, err := ReadFrame(conn, timeout)
	if err != nil {
		return nil, err
	}
	var evt WireEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		return nil, fmt.Errorf("failed to decode event %q: %w", data, err)
	}
	return &evt, nil
}
