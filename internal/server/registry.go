package server

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/logging"
	"github.com/ctxhub-ai/ctxhub/internal/protocol"
)

// Registry tracks the set of admitted connections. All map access is
// serialized behind the mutex; iteration works on a snapshot so
// callbacks never run with the lock held.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
	log   zerolog.Logger
}

func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
		log:   logging.Component("registry"),
	}
}

// Admit wraps an upgraded socket, assigns it a client ID, starts its
// pumps and greets it. The welcome frame is queued before the read
// pump starts, so it is always the first thing the client receives.
func (r *Registry) Admit(sock *websocket.Conn, onFrame frameHandler) *Conn {
	id := "cli_" + ulid.Make().String()
	c := newConn(id, sock, onFrame, func(c *Conn) {
		r.Remove(c.ID())
	})

	r.mu.Lock()
	r.conns[id] = c
	total := len(r.conns)
	r.mu.Unlock()

	go c.writePump()
	welcome, err := json.Marshal(protocol.WelcomeResponse(id))
	if err != nil {
		r.log.Error().Err(err).Msg("failed to encode welcome")
	} else {
		c.SendRaw(welcome)
	}
	c.setState(StateOpen)
	go c.readPump()

	r.log.Info().Str("clientId", id).Int("clients", total).Msg("client connected")
	return c
}

// Remove drops a connection from the registry. Removing an unknown ID
// is a no-op, so close paths can call it unconditionally.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	_, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	total := len(r.conns)
	r.mu.Unlock()

	if ok {
		r.log.Info().Str("clientId", id).Int("clients", total).Msg("client disconnected")
	}
}

// Get looks up a connection by client ID.
func (r *Registry) Get(id string) (*Conn, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[id]
	return c, ok
}

// Count returns the number of admitted connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// Snapshot returns the current connections as a slice. The slice is a
// copy; connections admitted or removed afterwards are not reflected.
func (r *Registry) Snapshot() []*Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	return conns
}

// ForEach invokes fn for every connection in the current snapshot.
func (r *Registry) ForEach(fn func(*Conn)) {
	for _, c := range r.Snapshot() {
		fn(c)
	}
}

// CloseAll terminates every connection and empties the registry. Used
// during server shutdown.
func (r *Registry) CloseAll() {
	conns := r.Snapshot()
	for _, c := range conns {
		c.Terminate(websocket.CloseGoingAway, "server shutting down")
	}

	r.mu.Lock()
	r.conns = make(map[string]*Conn)
	r.mu.Unlock()

	if len(conns) > 0 {
		r.log.Info().Int("closed", len(conns)).Msg("all clients disconnected")
	}
}
