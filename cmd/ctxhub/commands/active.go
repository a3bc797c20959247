package commands

import (
	"github.com/spf13/cobra"
)

var activeCmd = &cobra.Command{
	Use:   "active",
	Short: "Manage the active context",
	Long:  `The active context is the ordered subset of sources tools should read right now.`,
}

var activeGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the active context in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		sources, err := c.GetActiveContext(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(sources)
	},
}

var activeSetCmd = &cobra.Command{
	Use:   "set [id...]",
	Short: "Replace the active context with the given sources, in order",
	Long: `Replace the active context with the given source ids, in the order
given. With no arguments the active context is cleared.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		sources, err := c.SetActiveContext(cmd.Context(), args)
		if err != nil {
			return err
		}
		return printJSON(sources)
	},
}

func init() {
	activeGetCmd.Flags().StringVar(&jqFilter, "jq", "", "Filter output through a jq expression")
	activeSetCmd.Flags().StringVar(&jqFilter, "jq", "", "Filter output through a jq expression")

	activeCmd.AddCommand(activeGetCmd)
	activeCmd.AddCommand(activeSetCmd)
}
