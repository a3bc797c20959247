package server

import (
	"context"
	"encoding/json"

	"github.com/ctxhub-ai/ctxhub/internal/bridge"
	"github.com/ctxhub-ai/ctxhub/internal/event"
	"github.com/ctxhub-ai/ctxhub/internal/protocol"
	"github.com/ctxhub-ai/ctxhub/internal/store"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// handlers implements the request handlers behind the dispatcher's
// routing table.
type handlers struct {
	store  *store.Store
	bridge *bridge.Bridge
}

// getSources returns every registered source in creation order.
func (h *handlers) getSources(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	return h.store.List(), nil, nil
}

// addSource registers a new source and announces it.
func (h *handlers) addSource(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	var p protocol.AddSourcePayload
	if err := protocol.UnmarshalPayload(payload, &p); err != nil {
		return nil, nil, err
	}

	created, err := h.store.Add(p.Source())
	if err != nil {
		return nil, nil, err
	}

	evt := event.New(types.SourceAdded, created.ID, created.Type, map[string]any{
		"name": created.Name,
	})
	return created, &evt, nil
}

// updateSource applies a partial update to an existing source.
func (h *handlers) updateSource(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	var p protocol.UpdateSourcePayload
	if err := protocol.UnmarshalPayload(payload, &p); err != nil {
		return nil, nil, err
	}

	updated, err := h.store.Update(p.SourceID, p.Updates)
	if err != nil {
		return nil, nil, err
	}

	evt := event.New(types.SourceUpdated, updated.ID, updated.Type, map[string]any{
		"name": updated.Name,
	})
	return updated, &evt, nil
}

// deleteSource removes a source from the registry.
func (h *handlers) deleteSource(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	var p protocol.DeleteSourcePayload
	if err := protocol.UnmarshalPayload(payload, &p); err != nil {
		return nil, nil, err
	}

	src, err := h.store.Get(p.SourceID)
	if err != nil {
		return nil, nil, err
	}
	if err := h.store.Delete(src.ID); err != nil {
		return nil, nil, err
	}

	evt := event.New(types.SourceDeleted, src.ID, src.Type, map[string]any{
		"name": src.Name,
	})
	return map[string]any{"sourceId": src.ID, "deleted": true}, &evt, nil
}

// getActiveContext returns the sources currently in the active set.
func (h *handlers) getActiveContext(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	return h.store.ActiveSources(), nil, nil
}

// setActiveContext replaces the active set wholesale. An empty list
// clears it.
func (h *handlers) setActiveContext(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	var p protocol.SetActiveContextPayload
	if err := protocol.UnmarshalPayload(payload, &p); err != nil {
		return nil, nil, err
	}

	sources, err := h.store.SetActive(p.SourceIDs)
	if err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(sources))
	for _, src := range sources {
		ids = append(ids, src.ID)
	}
	evt := event.New(types.ActiveContextChanged, "", "", map[string]any{
		"sourceIds": ids,
	})
	return sources, &evt, nil
}
