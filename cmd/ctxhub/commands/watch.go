package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ctxhub-ai/ctxhub/pkg/client"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream change events from the hub",
	Long: `Subscribe to the hub's change feed and print one JSON event per
line until interrupted. Reconnects automatically if the hub restarts.

Use --jq to project each event, e.g. --jq .payload.type`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c := client.New(client.Options{
			URL:           serverURL,
			AutoReconnect: true,
		})
		if err := c.Connect(); err != nil {
			return fmt.Errorf("cannot reach hub at %s: %w", serverURL, err)
		}
		defer c.Close()

		if err := c.SubscribeEvents(cmd.Context()); err != nil {
			return err
		}

		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

		out := cmd.OutOrStdout()
		for {
			select {
			case ev, ok := <-c.Events():
				if !ok {
					return nil
				}
				if jqFilter != "" {
					if err := fprintJSON(out, ev, jqFilter); err != nil {
						return err
					}
					continue
				}
				line, err := json.Marshal(ev)
				if err != nil {
					continue
				}
				fmt.Fprintln(out, string(line))
			case <-quit:
				return nil
			}
		}
	},
}

func init() {
	watchCmd.Flags().StringVar(&jqFilter, "jq", "", "Filter each event through a jq expression")
}
