package server

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"

	"github.com/rs/zerolog"

	"github.com/ctxhub-ai/ctxhub/internal/bridge"
	"github.com/ctxhub-ai/ctxhub/internal/event"
	"github.com/ctxhub-ai/ctxhub/internal/logging"
	"github.com/ctxhub-ai/ctxhub/internal/protocol"
	"github.com/ctxhub-ai/ctxhub/internal/store"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// HandlerFunc processes one client request. It returns the response
// data and, for mutations, the context event to broadcast. Errors
// become error responses on the originating connection; they never
// close it.
type HandlerFunc func(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error)

// Dispatcher routes decoded messages to their handlers. The routing
// table is fixed at construction; there is no dynamic registration.
type Dispatcher struct {
	handlers map[protocol.MessageType]HandlerFunc
	bus      *event.Bus
	log      zerolog.Logger
}

func NewDispatcher(st *store.Store, br *bridge.Bridge, bus *event.Bus) *Dispatcher {
	h := &handlers{store: st, bridge: br}
	return &Dispatcher{
		handlers: map[protocol.MessageType]HandlerFunc{
			protocol.MessageTypeGetSources:          h.getSources,
			protocol.MessageTypeAddSource:           h.addSource,
			protocol.MessageTypeUpdateSource:        h.updateSource,
			protocol.MessageTypeDeleteSource:        h.deleteSource,
			protocol.MessageTypeGetActiveContext:    h.getActiveContext,
			protocol.MessageTypeSetActiveContext:    h.setActiveContext,
			protocol.MessageTypeGetSourceContent:    h.getSourceContent,
			protocol.MessageTypeUpdateSourceContent: h.updateSourceContent,
			protocol.MessageTypeClearSourceContent:  h.clearSourceContent,
			protocol.MessageTypeSubscribeEvents:     h.subscribeEvents,
		},
		bus: bus,
		log: logging.Component("dispatcher"),
	}
}

// Dispatch runs the handler for msg and returns the response to send
// back on the originating connection. A handler panic is contained to
// this one message: it is logged and turned into an error response.
func (d *Dispatcher) Dispatch(ctx context.Context, c *Conn, msg *protocol.Message) (resp protocol.Response) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("clientId", c.ID()).
				Str("type", string(msg.Type)).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("handler panicked")
			resp = protocol.ErrorResponse(msg.ID, "Internal server error")
		}
	}()

	handler, ok := d.handlers[msg.Type]
	if !ok {
		return protocol.ErrorResponse(msg.ID, fmt.Sprintf("Unknown message type: %s", msg.Type))
	}

	data, evt, err := handler(ctx, c, msg.Payload)
	if err != nil {
		d.log.Debug().
			Str("clientId", c.ID()).
			Str("type", string(msg.Type)).
			Err(err).
			Msg("request failed")
		return protocol.ErrorResponse(msg.ID, err.Error())
	}

	if evt != nil {
		evt.OriginID = c.ID()
		d.bus.Publish(*evt)
	}
	return protocol.SuccessResponse(msg.ID, data)
}
