// Package mcpbridge exposes the shared context to MCP hosts over stdio.
//
// Each tool follows the same pattern: a struct holding the hub
// connection injected via constructor, Definition() returning the
// mcp.Tool schema, Handle() serving the call. Results are plain text
// shaped for an LLM reader.
package mcpbridge

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/ctxhub-ai/ctxhub/pkg/client"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// Hub is the slice of the client SDK the tools rely on. *client.Client
// satisfies it.
type Hub interface {
	GetSources(ctx context.Context) ([]types.Source, error)
	GetActiveContext(ctx context.Context) ([]types.Source, error)
	SetActiveContext(ctx context.Context, sourceIDs []string) ([]types.Source, error)
	GetSourceContent(ctx context.Context, id string) (*client.SourceContent, error)
	AddSource(ctx context.Context, src client.NewSource) (*types.Source, error)
}

// NewServer creates the MCP server with every context tool registered.
func NewServer(hub Hub, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"ctxhub",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions),
	)

	list := NewListSourcesTool(hub)
	s.AddTool(list.Definition(), list.Handle)

	active := NewActiveContextTool(hub)
	s.AddTool(active.Definition(), active.Handle)

	setActive := NewSetActiveContextTool(hub)
	s.AddTool(setActive.Definition(), setActive.Handle)

	content := NewSourceContentTool(hub)
	s.AddTool(content.Definition(), content.Handle)

	snippet := NewAddSnippetTool(hub)
	s.AddTool(snippet.Definition(), snippet.Handle)

	return s
}

// ServeStdio runs the bridge on stdin/stdout until the host closes it.
func ServeStdio(hub Hub, version string) error {
	return server.ServeStdio(NewServer(hub, version))
}

const instructions = `You have access to ctxhub, a shared context hub for AI coding tools.

Other tools connected to the same hub (editors, browser extensions, CLIs)
register sources (workspace files, diffs, text snippets) and curate an
"active context": the subset that matters for the current task.

How to use it:
- Call get_active_context at the start of a task to see what the user has
  staged for you. Pass include_content to pull the text in one call.
- Call list_sources to see everything registered, then get_source_content
  to read a specific source.
- Call add_snippet to share knowledge worth keeping: decisions, findings,
  constraints. Every connected tool sees it immediately.
- Call set_active_context to restage the working set when the task shifts.

Sources are shared, live state: another tool may change them between your
calls, so re-read rather than assuming earlier results still hold.`
