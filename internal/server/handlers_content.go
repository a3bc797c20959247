package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/ctxhub-ai/ctxhub/internal/bridge"
	"github.com/ctxhub-ai/ctxhub/internal/event"
	"github.com/ctxhub-ai/ctxhub/internal/protocol"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// getSourceContent reads the backing file of a file source. For other
// source types the response carries no content field; inline content
// already travels on the source record itself.
func (h *handlers) getSourceContent(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	var p protocol.GetSourceContentPayload
	if err := protocol.UnmarshalPayload(payload, &p); err != nil {
		return nil, nil, err
	}

	src, err := h.store.Get(p.SourceID)
	if err != nil {
		return nil, nil, err
	}

	data := map[string]any{"sourceId": src.ID}
	if src.Type == types.SourceTypeFile {
		content, err := h.bridge.ReadFile(src.Path)
		if err != nil {
			return nil, nil, err
		}
		data["path"] = src.Path
		data["content"] = content
	}
	return data, nil, nil
}

// updateSourceContent replaces a source's content. File sources write
// through to the workspace; everything else updates the record inline.
func (h *handlers) updateSourceContent(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	var p protocol.UpdateSourceContentPayload
	if err := protocol.UnmarshalPayload(payload, &p); err != nil {
		return nil, nil, err
	}

	src, err := h.store.Get(p.SourceID)
	if err != nil {
		return nil, nil, err
	}

	content := *p.Content
	old, err := h.writeContent(src, content)
	if err != nil {
		return nil, nil, err
	}

	added, removed := bridge.DiffStats(old, content)
	evt := event.New(types.ContentUpdated, src.ID, src.Type, map[string]any{
		"linesAdded":    added,
		"linesRemoved":  removed,
		"contentLength": len(content),
	})
	return map[string]any{"sourceId": src.ID, "updated": true}, &evt, nil
}

// clearSourceContent empties a source's content. The backing file of a
// file source is truncated, not deleted.
func (h *handlers) clearSourceContent(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	var p protocol.ClearSourceContentPayload
	if err := protocol.UnmarshalPayload(payload, &p); err != nil {
		return nil, nil, err
	}

	src, err := h.store.Get(p.SourceID)
	if err != nil {
		return nil, nil, err
	}

	old, err := h.writeContent(src, "")
	if err != nil {
		return nil, nil, err
	}

	_, removed := bridge.DiffStats(old, "")
	evt := event.New(types.ContentCleared, src.ID, src.Type, map[string]any{
		"linesRemoved": removed,
	})
	return map[string]any{"sourceId": src.ID, "cleared": true}, &evt, nil
}

// writeContent stores new content for a source and returns what it
// replaced. A missing backing file counts as previously empty.
func (h *handlers) writeContent(src *types.Source, content string) (old string, err error) {
	if src.Type == types.SourceTypeFile {
		old, err = h.bridge.ReadFile(src.Path)
		if err != nil {
			var nf *bridge.NotFoundError
			if !errors.As(err, &nf) {
				return "", err
			}
			old = ""
		}
		if err := h.bridge.WriteFile(src.Path, content); err != nil {
			return "", err
		}
		if _, err := h.store.Touch(src.ID); err != nil {
			return "", err
		}
		return old, nil
	}

	old = src.Content
	if _, err := h.store.SetInlineContent(src.ID, content); err != nil {
		return "", err
	}
	return old, nil
}

// subscribeEvents opts the connection in to context event broadcasts.
func (h *handlers) subscribeEvents(ctx context.Context, c *Conn, payload json.RawMessage) (any, *types.ContextEvent, error) {
	c.SetSubscribed(true)
	return map[string]any{"subscribed": true}, nil, nil
}
