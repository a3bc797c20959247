package commands

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ctxhub-ai/ctxhub/internal/mcpbridge"
	"github.com/ctxhub-ai/ctxhub/pkg/client"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Expose the hub as an MCP server on stdio",
	Long: `Run a Model Context Protocol server on stdin/stdout, backed by the
hub named by --server. Register this command in an MCP-capable tool to
give it the shared context:

  {"command": "ctxhub", "args": ["mcp", "--server", "http://localhost:8180"]}

Logs go to stderr so the stdio transport stays clean.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load()

		c := client.New(client.Options{
			URL:           serverURL,
			AutoReconnect: true,
		})
		if err := c.Connect(); err != nil {
			return fmt.Errorf("cannot reach hub at %s: %w", serverURL, err)
		}
		defer c.Close()

		return mcpbridge.ServeStdio(c, Version)
	},
}
