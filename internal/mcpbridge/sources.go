package mcpbridge

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/ctxhub-ai/ctxhub/pkg/client"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// ListSourcesTool handles the list_sources MCP tool.
type ListSourcesTool struct {
	hub Hub
}

// NewListSourcesTool creates a ListSourcesTool.
func NewListSourcesTool(hub Hub) *ListSourcesTool {
	return &ListSourcesTool{hub: hub}
}

// Definition returns the MCP tool definition for list_sources.
func (t *ListSourcesTool) Definition() mcp.Tool {
	return mcp.NewTool("list_sources",
		mcp.WithDescription(
			"List every context source registered on the hub, with its id, "+
				"type, and location. Use get_source_content to read one.",
		),
	)
}

// Handle processes the list_sources tool call.
func (t *ListSourcesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sources, err := t.hub.GetSources(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to list sources: %v", err)), nil
	}

	if len(sources) == 0 {
		return mcp.NewToolResultText("No sources registered."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d sources registered:\n\n", len(sources))
	for i := range sources {
		fmt.Fprintf(&b, "- %s\n", describeSource(&sources[i]))
	}
	return mcp.NewToolResultText(b.String()), nil
}

// AddSnippetTool handles the add_snippet MCP tool.
type AddSnippetTool struct {
	hub Hub
}

// NewAddSnippetTool creates an AddSnippetTool.
func NewAddSnippetTool(hub Hub) *AddSnippetTool {
	return &AddSnippetTool{hub: hub}
}

// Definition returns the MCP tool definition for add_snippet.
func (t *AddSnippetTool) Definition() mcp.Tool {
	return mcp.NewTool("add_snippet",
		mcp.WithDescription(
			"Save a free-form text snippet as a new context source so every "+
				"tool connected to the hub can see it. Good for decisions, "+
				"findings, and constraints worth keeping.",
		),
		mcp.WithString("name",
			mcp.Required(),
			mcp.Description("Short, searchable name for the snippet"),
		),
		mcp.WithString("content",
			mcp.Required(),
			mcp.Description("The snippet text"),
		),
		mcp.WithString("description",
			mcp.Description("Optional one-line description of what the snippet covers"),
		),
	)
}

// Handle processes the add_snippet tool call.
func (t *AddSnippetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name := req.GetString("name", "")
	if name == "" {
		return mcp.NewToolResultError("name argument is required"), nil
	}
	content := req.GetString("content", "")
	if content == "" {
		return mcp.NewToolResultError("content argument is required"), nil
	}

	created, err := t.hub.AddSource(ctx, client.NewSource{
		Name:        name,
		Type:        string(types.SourceTypeSnippet),
		Content:     content,
		Description: req.GetString("description", ""),
	})
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to add snippet: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Added snippet %q with id %s.", created.Name, created.ID)), nil
}
