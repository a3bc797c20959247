package mcpbridge

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// SourceContentTool handles the get_source_content MCP tool.
type SourceContentTool struct {
	hub Hub
}

// NewSourceContentTool creates a SourceContentTool.
func NewSourceContentTool(hub Hub) *SourceContentTool {
	return &SourceContentTool{hub: hub}
}

// Definition returns the MCP tool definition for get_source_content.
func (t *SourceContentTool) Definition() mcp.Tool {
	return mcp.NewTool("get_source_content",
		mcp.WithDescription("Read the full text behind one context source, by id."),
		mcp.WithString("source_id",
			mcp.Required(),
			mcp.Description("The source id, as shown by list_sources"),
		),
	)
}

// Handle processes the get_source_content tool call.
func (t *SourceContentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := req.GetString("source_id", "")
	if id == "" {
		return mcp.NewToolResultError("source_id argument is required"), nil
	}

	// The record decides where the text lives, so look it up first.
	sources, err := t.hub.GetSources(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to look up source: %v", err)), nil
	}
	var src *types.Source
	for i := range sources {
		if sources[i].ID == id {
			src = &sources[i]
			break
		}
	}
	if src == nil {
		return mcp.NewToolResultError(fmt.Sprintf("no source with id %s", id)), nil
	}

	text, err := sourceText(ctx, t.hub, src)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to read content: %v", err)), nil
	}
	if text == "" {
		return mcp.NewToolResultText(fmt.Sprintf("Source %q is empty.", src.Name)), nil
	}
	return mcp.NewToolResultText(text), nil
}
