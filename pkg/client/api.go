package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// GetSources lists every registered source.
func (c *Client) GetSources(ctx context.Context) ([]types.Source, error) {
	data, err := c.request(ctx, "get_sources", nil)
	if err != nil {
		return nil, err
	}
	var sources []types.Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to decode sources: %w", err)
	}
	return sources, nil
}

// AddSource registers a new source and returns the stored record.
func (c *Client) AddSource(ctx context.Context, src NewSource) (*types.Source, error) {
	data, err := c.request(ctx, "add_source", src)
	if err != nil {
		return nil, err
	}
	var created types.Source
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to decode source: %w", err)
	}
	return &created, nil
}

// UpdateSource applies a partial update and returns the new record.
func (c *Client) UpdateSource(ctx context.Context, id string, patch types.SourcePatch) (*types.Source, error) {
	data, err := c.request(ctx, "update_source", map[string]any{
		"sourceId": id,
		"updates":  patch,
	})
	if err != nil {
		return nil, err
	}
	var updated types.Source
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, fmt.Errorf("failed to decode source: %w", err)
	}
	return &updated, nil
}

// DeleteSource removes a source.
func (c *Client) DeleteSource(ctx context.Context, id string) error {
	_, err := c.request(ctx, "delete_source", map[string]any{"sourceId": id})
	return err
}

// GetActiveContext returns the sources in the active set, in order.
func (c *Client) GetActiveContext(ctx context.Context) ([]types.Source, error) {
	data, err := c.request(ctx, "get_active_context", nil)
	if err != nil {
		return nil, err
	}
	var sources []types.Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to decode active context: %w", err)
	}
	return sources, nil
}

// SetActiveContext replaces the active set. An empty (non-nil) list
// clears it.
func (c *Client) SetActiveContext(ctx context.Context, sourceIDs []string) ([]types.Source, error) {
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	data, err := c.request(ctx, "set_active_context", map[string]any{"sourceIds": sourceIDs})
	if err != nil {
		return nil, err
	}
	var sources []types.Source
	if err := json.Unmarshal(data, &sources); err != nil {
		return nil, fmt.Errorf("failed to decode active context: %w", err)
	}
	return sources, nil
}

// GetSourceContent reads the text behind a source.
func (c *Client) GetSourceContent(ctx context.Context, id string) (*SourceContent, error) {
	data, err := c.request(ctx, "get_source_content", map[string]any{"sourceId": id})
	if err != nil {
		return nil, err
	}
	var content SourceContent
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("failed to decode content: %w", err)
	}
	return &content, nil
}

// UpdateSourceContent replaces the text behind a source.
func (c *Client) UpdateSourceContent(ctx context.Context, id, content string) error {
	_, err := c.request(ctx, "update_source_content", map[string]any{
		"sourceId": id,
		"content":  content,
	})
	return err
}

// ClearSourceContent empties the text behind a source.
func (c *Client) ClearSourceContent(ctx context.Context, id string) error {
	_, err := c.request(ctx, "clear_source_content", map[string]any{"sourceId": id})
	return err
}

// SubscribeEvents opts in to the server's event feed. The subscription
// survives reconnects.
func (c *Client) SubscribeEvents(ctx context.Context) error {
	c.wantMu.Lock()
	c.wantEvents = true
	c.wantMu.Unlock()

	_, err := c.request(ctx, "subscribe_events", nil)
	return err
}
