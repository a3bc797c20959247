package server

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/logging"
)

const (
	// DefaultPingInterval is how often clients are probed when the
	// configuration does not say otherwise.
	DefaultPingInterval = 30 * time.Second

	// minPingInterval is the floor for configured probe intervals.
	minPingInterval = time.Second
)

// Monitor probes every connection on a fixed interval. Each sweep
// evicts connections that never answered the previous probe, then
// arms the next one. A client therefore has a full interval to pong
// before it is considered gone; two silent sweeps are fatal.
type Monitor struct {
	registry *Registry
	interval time.Duration

	mu      sync.Mutex
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool

	log zerolog.Logger
}

// NewMonitor creates a liveness monitor. Intervals at or below zero
// fall back to the default; positive ones are clamped to the floor.
func NewMonitor(registry *Registry, interval time.Duration) *Monitor {
	if interval <= 0 {
		interval = DefaultPingInterval
	} else if interval < minPingInterval {
		interval = minPingInterval
	}
	return &Monitor{
		registry: registry,
		interval: interval,
		log:      logging.Component("liveness"),
	}
}

// Interval returns the effective probe interval.
func (m *Monitor) Interval() time.Duration { return m.interval }

// Start launches the probe loop. Calling Start on a running monitor
// is a no-op.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.started = true
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})
	go m.run(m.stopCh, m.doneCh)
	m.log.Debug().Dur("interval", m.interval).Msg("liveness monitor started")
}

// Stop halts the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	m.started = false
	stop, done := m.stopCh, m.doneCh
	m.mu.Unlock()

	close(stop)
	<-done
}

func (m *Monitor) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep evicts dead connections and probes the rest.
func (m *Monitor) sweep() {
	for _, c := range m.registry.Snapshot() {
		if !c.Alive() {
			m.log.Info().Str("clientId", c.ID()).Msg("client unresponsive, terminating")
			c.Terminate(websocket.CloseNormalClosure, "liveness check failed")
			m.registry.Remove(c.ID())
			continue
		}
		c.MarkAlive(false)
		if err := c.Ping(); err != nil {
			m.log.Debug().Str("clientId", c.ID()).Err(err).Msg("ping failed")
		}
	}
}
