package server

import (
	"encoding/json"

	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/event"
	"github.com/ctxhub-ai/ctxhub/internal/logging"
	"github.com/ctxhub-ai/ctxhub/internal/protocol"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// Broadcaster fans context events out to subscribed connections. Each
// event is wrapped in one envelope, encoded once, and queued on every
// eligible connection. Delivery is fire-and-forget: a slow client
// drops frames instead of holding up the rest.
type Broadcaster struct {
	registry *Registry
	bus      *event.Bus
	unsub    func()
	log      zerolog.Logger
}

func NewBroadcaster(bus *event.Bus, registry *Registry) *Broadcaster {
	return &Broadcaster{
		registry: registry,
		bus:      bus,
		log:      logging.Component("broadcaster"),
	}
}

// Start subscribes the broadcaster to the event bus.
func (b *Broadcaster) Start() {
	b.unsub = b.bus.SubscribeAll(b.broadcast)
}

// Stop detaches the broadcaster from the bus.
func (b *Broadcaster) Stop() {
	if b.unsub != nil {
		b.unsub()
		b.unsub = nil
	}
}

// broadcast delivers one event to every subscribed connection except
// the one whose request caused it.
func (b *Broadcaster) broadcast(evt types.ContextEvent) {
	env := protocol.NewEvent(evt)
	data, err := json.Marshal(env)
	if err != nil {
		b.log.Error().Err(err).Str("eventType", string(evt.Type)).Msg("failed to encode event")
		return
	}

	sent := 0
	b.registry.ForEach(func(c *Conn) {
		if !c.Subscribed() || c.ID() == evt.OriginID {
			return
		}
		c.SendRaw(data)
		sent++
	})

	b.log.Trace().
		Str("eventType", string(evt.Type)).
		Str("sourceId", evt.SourceID).
		Int("recipients", sent).
		Msg("event broadcast")
}
