package mcpbridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ActiveContextTool handles the get_active_context MCP tool.
type ActiveContextTool struct {
	hub Hub
}

// NewActiveContextTool creates an ActiveContextTool.
func NewActiveContextTool(hub Hub) *ActiveContextTool {
	return &ActiveContextTool{hub: hub}
}

// Definition returns the MCP tool definition for get_active_context.
func (t *ActiveContextTool) Definition() mcp.Tool {
	return mcp.NewTool("get_active_context",
		mcp.WithDescription(
			"Get the sources currently staged in the active context, in "+
				"order. Set include_content to also fetch each source's text "+
				"in the same call.",
		),
		mcp.WithBoolean("include_content",
			mcp.Description("Inline the content of every active source (default: false)"),
		),
	)
}

// Handle processes the get_active_context tool call.
func (t *ActiveContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := t.hub.GetActiveContext(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to get active context: %v", err)), nil
	}

	if len(sources) == 0 {
		return mcp.NewToolResultText("The active context is empty."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d sources in the active context:\n\n", len(sources))
	for i := range sources {
		fmt.Fprintf(&b, "%d. %s\n", i+1, describeSource(&sources[i]))
	}

	if !boolArg(req, "include_content", false) {
		return mcp.NewToolResultText(b.String()), nil
	}

	for i := range sources {
		src := &sources[i]
		text, err := sourceText(ctx, t.hub, src)
		if err != nil {
			fmt.Fprintf(&b, "\n--- %s (%s) ---\nunreadable: %v\n", src.Name, src.ID, err)
			continue
		}
		fmt.Fprintf(&b, "\n--- %s (%s) ---\n%s\n", src.Name, src.ID, text)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// SetActiveContextTool handles the set_active_context MCP tool.
type SetActiveContextTool struct {
	hub Hub
}

// NewSetActiveContextTool creates a SetActiveContextTool.
func NewSetActiveContextTool(hub Hub) *SetActiveContextTool {
	return &SetActiveContextTool{hub: hub}
}

// Definition returns the MCP tool definition for set_active_context.
func (t *SetActiveContextTool) Definition() mcp.Tool {
	return mcp.NewTool("set_active_context",
		mcp.WithDescription(
			"Replace the active context with the given source ids, in order. "+
				"An empty list clears it. Ids come from list_sources.",
		),
		mcp.WithArray("source_ids",
			mcp.Required(),
			mcp.Description("Source ids for the new active set, in the order they should appear"),
			mcp.Items(map[string]any{
				"type": "string",
			}),
		),
	)
}

// Handle processes the set_active_context tool call.
func (t *SetActiveContextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	idsArg, ok := req.GetArguments()["source_ids"]
	if !ok {
		return mcp.NewToolResultError("source_ids argument is required"), nil
	}
	ids, err := toStringSlice(idsArg)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid source_ids: %v", err)), nil
	}

	active, err := t.hub.SetActiveContext(ctx, ids)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to set active context: %v", err)), nil
	}

	if len(active) == 0 {
		return mcp.NewToolResultText("Active context cleared."), nil
	}

	names := make([]string, len(active))
	for i := range active {
		names[i] = active[i].Name
	}
	return mcp.NewToolResultText(fmt.Sprintf(
		"Active context set to %d sources: %s.",
		len(active), strings.Join(names, ", "),
	)), nil
}
