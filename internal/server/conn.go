package server

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Maximum message size allowed from peer. Content updates carry
	// whole file bodies, so this is generous.
	maxMessageSize = 1 << 20

	// Outbound queue depth per connection. When the queue is full the
	// frame is dropped rather than blocking the sender.
	sendQueueSize = 256
)

// ConnState tracks where a connection is in its lifecycle.
type ConnState int32

const (
	StateConnecting ConnState = iota
	StateOpen
	StateClosing
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// frameHandler processes one inbound frame. It runs on the connection's
// read goroutine, so frames from a single client are handled in order.
type frameHandler func(c *Conn, data []byte)

// Conn wraps a WebSocket connection with an outbound queue, a liveness
// flag and an event subscription flag. All outbound traffic goes
// through the queue so only the write pump touches the socket.
type Conn struct {
	id   string
	sock *websocket.Conn

	send chan []byte
	done chan struct{}

	state atomic.Int32

	mu         sync.Mutex
	alive      bool
	subscribed bool

	onFrame   frameHandler
	onClose   func(*Conn)
	closeOnce sync.Once

	log zerolog.Logger
}

func newConn(id string, sock *websocket.Conn, onFrame frameHandler, onClose func(*Conn)) *Conn {
	c := &Conn{
		id:      id,
		sock:    sock,
		send:    make(chan []byte, sendQueueSize),
		done:    make(chan struct{}),
		alive:   true,
		onFrame: onFrame,
		onClose: onClose,
		log:     logging.Component("conn").With().Str("clientId", id).Logger(),
	}
	c.state.Store(int32(StateConnecting))
	return c
}

// ID returns the server-assigned client identifier.
func (c *Conn) ID() string { return c.id }

// State returns the connection's current lifecycle state.
func (c *Conn) State() ConnState { return ConnState(c.state.Load()) }

func (c *Conn) setState(s ConnState) { c.state.Store(int32(s)) }

// Alive reports whether the peer answered the most recent probe.
func (c *Conn) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.alive
}

// MarkAlive records the outcome of a liveness probe cycle.
func (c *Conn) MarkAlive(alive bool) {
	c.mu.Lock()
	c.alive = alive
	c.mu.Unlock()
}

// Subscribed reports whether the client asked to receive context events.
func (c *Conn) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// SetSubscribed toggles event delivery for this connection.
func (c *Conn) SetSubscribed(on bool) {
	c.mu.Lock()
	c.subscribed = on
	c.mu.Unlock()
}

// Send marshals v and queues it for delivery.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.SendRaw(data)
	return nil
}

// SendRaw queues a pre-encoded frame. Frames are dropped when the
// connection is closed or its queue is full; neither case blocks.
func (c *Conn) SendRaw(data []byte) {
	if c.State() == StateClosed {
		return
	}
	select {
	case c.send <- data:
	case <-c.done:
	default:
		c.log.Warn().Int("queued", len(c.send)).Msg("send queue full, dropping frame")
	}
}

// Ping sends a control ping. Safe to call concurrently with the write
// pump; gorilla serializes control frames internally.
func (c *Conn) Ping() error {
	return c.sock.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// Terminate force-closes the connection. A close frame is attempted on
// a best-effort basis before the socket is torn down.
func (c *Conn) Terminate(code int, reason string) {
	c.setState(StateClosing)
	msg := websocket.FormatCloseMessage(code, reason)
	_ = c.sock.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
	c.close()
}

// close tears down the socket exactly once and unblocks both pumps.
func (c *Conn) close() {
	c.closeOnce.Do(func() {
		c.setState(StateClosed)
		close(c.done)
		_ = c.sock.Close()
	})
}

// readPump reads frames off the socket and hands each one to the frame
// handler. Running handlers inline keeps responses in request order.
func (c *Conn) readPump() {
	defer func() {
		if c.onClose != nil {
			c.onClose(c)
		}
		c.close()
	}()

	c.sock.SetReadLimit(maxMessageSize)
	c.sock.SetPongHandler(func(string) error {
		c.MarkAlive(true)
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.log.Debug().Err(err).Msg("read failed")
			}
			return
		}
		c.onFrame(c, data)
	}
}

// writePump drains the outbound queue onto the socket.
func (c *Conn) writePump() {
	defer c.close()

	for {
		select {
		case data := <-c.send:
			_ = c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.TextMessage, data); err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				return
			}
		case <-c.done:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.sock.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		}
	}
}
