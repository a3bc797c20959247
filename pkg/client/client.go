// Package client provides a Go SDK for the context hub. It correlates
// requests with responses over one WebSocket connection, surfaces
// server-pushed events on a channel, and reconnects with exponential
// backoff when the connection drops.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/logging"
)

// Options configures the client.
type Options struct {
	// URL is the server base URL (e.g. "http://localhost:8180").
	URL string
	// Timeout bounds each request (default: 30s).
	Timeout time.Duration
	// AutoReconnect re-dials after a dropped connection.
	AutoReconnect bool
	// MaxReconnectAttempts limits one reconnect cycle (default: 5).
	MaxReconnectAttempts int
	// ReconnectDelay is the initial backoff delay (default: 1s).
	ReconnectDelay time.Duration
}

// ConnectionState is the client's view of the connection.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
)

var (
	ErrNotConnected   = errors.New("not connected")
	ErrTimeout        = errors.New("request timed out")
	ErrClosed         = errors.New("client closed")
	ErrConnectionLost = errors.New("connection lost")
)

// eventBufferSize bounds the Events channel. Events beyond it are
// dropped, mirroring the server's fire-and-forget delivery.
const eventBufferSize = 64

// Client talks to a context hub server.
type Client struct {
	opts       Options
	httpClient *http.Client

	ws   *websocket.Conn
	wsMu sync.Mutex

	state   ConnectionState
	stateMu sync.RWMutex

	clientID string
	idMu     sync.RWMutex

	pending   map[string]chan response
	pendingMu sync.Mutex

	events     chan Event
	wantEvents bool
	wantMu     sync.Mutex

	done      chan struct{}
	closeOnce sync.Once

	log zerolog.Logger
}

// New creates a client. No connection is made until Connect or the
// first request.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxReconnectAttempts == 0 {
		opts.MaxReconnectAttempts = 5
	}
	if opts.ReconnectDelay == 0 {
		opts.ReconnectDelay = time.Second
	}

	return &Client{
		opts:       opts,
		httpClient: &http.Client{Timeout: opts.Timeout},
		state:      StateDisconnected,
		pending:    make(map[string]chan response),
		events:     make(chan Event, eventBufferSize),
		done:       make(chan struct{}),
		log:        logging.Component("client"),
	}
}

// State returns the current connection state.
func (c *Client) State() ConnectionState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

func (c *Client) setState(state ConnectionState) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}

// ClientID returns the identifier the server assigned in its welcome,
// or empty before the first successful Connect.
func (c *Client) ClientID() string {
	c.idMu.RLock()
	defer c.idMu.RUnlock()
	return c.clientID
}

// Events returns the channel server-pushed events arrive on. The
// channel is never closed; stop reading it after Close.
func (c *Client) Events() <-chan Event {
	return c.events
}

// wsURL converts the base URL into the WebSocket endpoint.
func (c *Client) wsURL() (string, error) {
	u, err := url.Parse(c.opts.URL)
	if err != nil {
		return "", err
	}

	scheme := "ws"
	if u.Scheme == "https" {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host), nil
}

// Connect dials the server and waits for its welcome. Connecting an
// already-connected client is a no-op.
func (c *Client) Connect() error {
	state := c.State()
	if state == StateConnected || state == StateConnecting {
		return nil
	}

	c.setState(StateConnecting)
	if err := c.dial(); err != nil {
		c.setState(StateDisconnected)
		return err
	}
	return nil
}

// dial performs one connection attempt: socket, welcome, read loop.
func (c *Client) dial() error {
	wsURL, err := c.wsURL()
	if err != nil {
		return err
	}

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	// The welcome is always the first frame.
	_ = conn.SetReadDeadline(time.Now().Add(c.opts.Timeout))
	var welcome response
	if err := conn.ReadJSON(&welcome); err != nil {
		conn.Close()
		return fmt.Errorf("failed to read welcome: %w", err)
	}
	_ = conn.SetReadDeadline(time.Time{})
	if welcome.ID != welcomeID || !welcome.Success {
		conn.Close()
		return fmt.Errorf("unexpected greeting frame: id=%q", welcome.ID)
	}

	var data welcomeData
	if err := json.Unmarshal(welcome.Data, &data); err != nil || data.ClientID == "" {
		conn.Close()
		return errors.New("welcome carries no client ID")
	}
	c.idMu.Lock()
	c.clientID = data.ClientID
	c.idMu.Unlock()

	c.wsMu.Lock()
	c.ws = conn
	c.wsMu.Unlock()
	c.setState(StateConnected)

	go c.readLoop(conn)

	c.log.Debug().Str("clientId", data.ClientID).Msg("connected")
	return nil
}

// Disconnect closes the connection and fails everything in flight.
func (c *Client) Disconnect() {
	c.wsMu.Lock()
	if c.ws != nil {
		c.ws.Close()
		c.ws = nil
	}
	c.wsMu.Unlock()

	c.setState(StateDisconnected)
	c.failPending()
}

// Close shuts the client down for good. No reconnects afterwards.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
	c.Disconnect()
}

// request sends one message and waits for its correlated response.
func (c *Client) request(ctx context.Context, msgType string, payload any) (json.RawMessage, error) {
	if c.State() != StateConnected {
		if err := c.Connect(); err != nil {
			return nil, err
		}
	}

	id := uuid.NewString()
	msg := message{
		Type:      msgType,
		ID:        id,
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Payload:   payload,
	}

	respCh := make(chan response, 1)
	c.pendingMu.Lock()
	c.pending[id] = respCh
	c.pendingMu.Unlock()
	defer func() {
		c.pendingMu.Lock()
		delete(c.pending, id)
		c.pendingMu.Unlock()
	}()

	c.wsMu.Lock()
	ws := c.ws
	if ws == nil {
		c.wsMu.Unlock()
		return nil, ErrNotConnected
	}
	err := ws.WriteJSON(msg)
	c.wsMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}

	timer := time.NewTimer(c.opts.Timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-respCh:
		if !ok {
			return nil, ErrConnectionLost
		}
		if !resp.Success {
			return nil, &RequestError{RequestID: id, Message: resp.Error}
		}
		return resp.Data, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, ErrTimeout
	case <-c.done:
		return nil, ErrClosed
	}
}

// readLoop demultiplexes inbound frames: events go to the events
// channel, responses to whoever is waiting on their ID.
func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn)
			return
		}

		var probe struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(raw, &probe); err != nil {
			c.log.Debug().Err(err).Msg("undecodable frame")
			continue
		}

		if probe.Type == "event" {
			var evt Event
			if err := json.Unmarshal(raw, &evt); err != nil {
				c.log.Debug().Err(err).Msg("undecodable event")
				continue
			}
			select {
			case c.events <- evt:
			default:
				c.log.Warn().Str("eventType", string(evt.Payload.Type)).Msg("event buffer full, dropping event")
			}
			continue
		}

		var resp response
		if err := json.Unmarshal(raw, &resp); err != nil {
			c.log.Debug().Err(err).Msg("undecodable response")
			continue
		}
		c.pendingMu.Lock()
		if ch, ok := c.pending[resp.ID]; ok {
			ch <- resp
			delete(c.pending, resp.ID)
		}
		c.pendingMu.Unlock()
	}
}

// handleDisconnect reacts to a dead socket. Reads racing a deliberate
// Disconnect find the socket already replaced and back off.
func (c *Client) handleDisconnect(conn *websocket.Conn) {
	conn.Close()

	c.wsMu.Lock()
	current := c.ws == conn
	if current {
		c.ws = nil
	}
	c.wsMu.Unlock()
	if !current {
		return
	}

	wasConnected := c.State() == StateConnected
	c.setState(StateDisconnected)
	c.failPending()

	select {
	case <-c.done:
		return
	default:
	}

	if wasConnected && c.opts.AutoReconnect {
		c.setState(StateReconnecting)
		go c.reconnect()
	}
}

// reconnect re-dials with exponential backoff, then restores the
// event subscription if one was active.
func (c *Client) reconnect() {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.opts.ReconnectDelay
	bo.MaxElapsedTime = 0

	op := func() error {
		select {
		case <-c.done:
			return backoff.Permanent(ErrClosed)
		default:
		}
		return c.dial()
	}

	if err := backoff.Retry(op, backoff.WithMaxRetries(bo, uint64(c.opts.MaxReconnectAttempts))); err != nil {
		c.log.Warn().Err(err).Msg("reconnect failed")
		c.setState(StateDisconnected)
		return
	}

	c.log.Info().Str("clientId", c.ClientID()).Msg("reconnected")
	if c.wantsEvents() {
		if err := c.SubscribeEvents(context.Background()); err != nil {
			c.log.Warn().Err(err).Msg("failed to restore event subscription")
		}
	}
}

func (c *Client) failPending() {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	for _, ch := range c.pending {
		close(ch)
	}
	c.pending = make(map[string]chan response)
}

func (c *Client) wantsEvents() bool {
	c.wantMu.Lock()
	defer c.wantMu.Unlock()
	return c.wantEvents
}

// Health fetches the server's health snapshot over plain HTTP.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.opts.URL+"/health", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("health check failed: %s", resp.Status)
	}

	var h Health
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		return nil, fmt.Errorf("failed to decode health: %w", err)
	}
	return &h, nil
}
