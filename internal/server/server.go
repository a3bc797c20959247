// Package server implements the WebSocket endpoint that clients use to
// read and mutate shared context state. Every admitted connection gets
// a welcome frame, request/response traffic in arrival order, and, once
// subscribed, a feed of context events originated by other clients.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/bridge"
	"github.com/ctxhub-ai/ctxhub/internal/event"
	"github.com/ctxhub-ai/ctxhub/internal/logging"
	"github.com/ctxhub-ai/ctxhub/internal/protocol"
	"github.com/ctxhub-ai/ctxhub/internal/store"
)

// Config holds server configuration.
type Config struct {
	Host           string
	Port           int
	Workspace      string
	EnableCORS     bool
	AllowedOrigins []string
	PingInterval   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
}

// DefaultConfig returns default server configuration.
func DefaultConfig() *Config {
	return &Config{
		Port:         8080,
		EnableCORS:   true,
		PingInterval: DefaultPingInterval,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // WebSocket connections outlive any write timeout
	}
}

// Server is the context hub server.
type Server struct {
	config      *Config
	router      *chi.Mux
	httpSrv     *http.Server
	store       *store.Store
	bridge      *bridge.Bridge
	bus         *event.Bus
	registry    *Registry
	dispatcher  *Dispatcher
	broadcaster *Broadcaster
	liveness    *Monitor
	started     time.Time
	baseCtx     context.Context
	cancel      context.CancelFunc
	log         zerolog.Logger
}

// New creates a new Server instance.
func New(cfg *Config, st *store.Store, br *bridge.Bridge, bus *event.Bus) *Server {
	r := chi.NewRouter()
	registry := NewRegistry()
	ctx, cancel := context.WithCancel(context.Background())

	s := &Server{
		config:      cfg,
		router:      r,
		store:       st,
		bridge:      br,
		bus:         bus,
		registry:    registry,
		dispatcher:  NewDispatcher(st, br, bus),
		broadcaster: NewBroadcaster(bus, registry),
		liveness:    NewMonitor(registry, cfg.PingInterval),
		started:     time.Now(),
		baseCtx:     ctx,
		cancel:      cancel,
		log:         logging.Component("server"),
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

// setupMiddleware configures middleware for the server.
func (s *Server) setupMiddleware() {
	// Request ID
	s.router.Use(middleware.RequestID)

	// Logging
	s.router.Use(middleware.Logger)

	// Recover from panics
	s.router.Use(middleware.Recoverer)

	// Real IP
	s.router.Use(middleware.RealIP)

	// CORS
	if s.config.EnableCORS {
		origins := s.config.AllowedOrigins
		if len(origins) == 0 {
			origins = []string{"*"}
		}
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"Link", "X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
}

// setupRoutes configures the server's routes.
func (s *Server) setupRoutes() {
	s.router.Get("/ws", s.serveWS)
	s.router.Get("/health", s.health)
	s.router.Get("/stats", s.stats)
}

// health reports server status for probes and the CLI.
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.registry.Count(),
		"sources": len(s.store.List()),
	})
}

// stats reports a point-in-time view of hub state.
func (s *Server) stats(w http.ResponseWriter, r *http.Request) {
	subscribers := 0
	for _, c := range s.registry.Snapshot() {
		if c.Subscribed() {
			subscribers++
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"clients":       s.registry.Count(),
		"subscribers":   subscribers,
		"sources":       len(s.store.List()),
		"activeContext": len(s.store.ActiveIDs()),
		"uptimeSeconds": int(time.Since(s.started).Seconds()),
	})
}

// handleFrame is the per-frame entry point for every connection. A
// frame that cannot be decoded gets an error response and nothing
// else; the connection stays up.
func (s *Server) handleFrame(c *Conn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		s.log.Debug().Str("clientId", c.ID()).Err(err).Msg("undecodable frame")
		if err := c.Send(protocol.InvalidMessageResponse()); err != nil {
			s.log.Error().Str("clientId", c.ID()).Err(err).Msg("failed to encode response")
		}
		return
	}

	resp := s.dispatcher.Dispatch(s.baseCtx, c, msg)
	if err := c.Send(resp); err != nil {
		s.log.Error().Str("clientId", c.ID()).Err(err).Msg("failed to encode response")
	}
}

// Start runs the server until Shutdown is called. It returns
// http.ErrServerClosed after a graceful stop.
func (s *Server) Start() error {
	s.broadcaster.Start()
	s.liveness.Start()

	s.httpSrv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Info().
		Str("addr", s.httpSrv.Addr).
		Str("workspace", s.config.Workspace).
		Msg("server listening")
	return s.httpSrv.ListenAndServe()
}

// Shutdown stops probing, closes the listener, then drops every
// connection.
func (s *Server) Shutdown(ctx context.Context) error {
	s.liveness.Stop()

	var err error
	if s.httpSrv != nil {
		err = s.httpSrv.Shutdown(ctx)
	}

	s.registry.CloseAll()
	s.broadcaster.Stop()
	s.cancel()
	return err
}

// Router returns the Chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Registry returns the connection registry.
func (s *Server) Registry() *Registry {
	return s.registry
}
