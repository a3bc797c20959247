// Package commands provides the CLI commands for ctxhub.
package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ctxhub-ai/ctxhub/internal/logging"
	"github.com/ctxhub-ai/ctxhub/pkg/client"
)

var (
	// Version information set at build time
	Version   = "0.1.0"
	BuildTime = "dev"
)

// Global flags
var (
	printLogs bool
	logLevel  string
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "ctxhub",
	Short: "ctxhub - shared context hub for AI coding tools",
	Long: `ctxhub keeps several AI coding tools looking at the same context:
named sources (files, diffs, snippets) plus an ordered "active" subset,
synchronized in real time over WebSocket.

Run 'ctxhub serve' to start the hub, then point your tools at it. The
other commands talk to a running hub: manage sources, curate the active
context, read and write content, or stream change events.`,
	Version: Version,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		initLogging(false)
	},
}

func init() {
	// Global flags available to all commands
	rootCmd.PersistentFlags().BoolVar(&printLogs, "print-logs", false, "Print logs to stderr")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "INFO", "Log level (DEBUG|INFO|WARN|ERROR)")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8180", "Hub URL for client commands")

	// Version template
	rootCmd.SetVersionTemplate(fmt.Sprintf("ctxhub %s (%s)\n", Version, BuildTime))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(sourcesCmd)
	rootCmd.AddCommand(activeCmd)
	rootCmd.AddCommand(contentCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(mcpCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// initLogging configures the global logger from the persistent flags.
// Client commands stay silent unless --print-logs; the serve command
// passes force to always log.
func initLogging(force bool) {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(logLevel)
	if !printLogs && !force {
		cfg.Output = io.Discard
	}
	logging.Init(cfg)
}

// GetWorkDir returns the working directory from flag or current directory.
func GetWorkDir(dir string) (string, error) {
	if dir != "" {
		return dir, nil
	}
	return os.Getwd()
}

// dial connects to the hub named by --server.
func dial() (*client.Client, error) {
	c := client.New(client.Options{URL: serverURL})
	if err := c.Connect(); err != nil {
		return nil, fmt.Errorf("cannot reach hub at %s: %w", serverURL, err)
	}
	return c, nil
}
