package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var contentCmd = &cobra.Command{
	Use:   "content",
	Short: "Read and write source content",
}

var contentGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Print a source's content",
	Long: `Print a source's content. File sources are read from the server
workspace; other types carry their content inline. Prints raw text by
default; with --jq the full content record is filtered as JSON.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		content, err := c.GetSourceContent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if jqFilter != "" {
			return printJSON(content)
		}
		out := cmd.OutOrStdout()
		fmt.Fprint(out, content.Content)
		if content.Content != "" && !strings.HasSuffix(content.Content, "\n") {
			fmt.Fprintln(out)
		}
		return nil
	},
}

var contentPutCmd = &cobra.Command{
	Use:   "put [id] [text]",
	Short: "Replace a source's content",
	Long: `Replace a source's content with the given text. When the text
argument is missing or "-", content is read from stdin.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		text := ""
		if len(args) == 2 {
			text = args[1]
		}
		if len(args) == 1 || text == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			text = string(data)
		}

		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.UpdateSourceContent(cmd.Context(), args[0], text); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "updated %s\n", args[0])
		return nil
	},
}

var contentClearCmd = &cobra.Command{
	Use:   "clear [id]",
	Short: "Clear a source's content",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.ClearSourceContent(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "cleared %s\n", args[0])
		return nil
	},
}

func init() {
	contentGetCmd.Flags().StringVar(&jqFilter, "jq", "", "Filter the content record through a jq expression")

	contentCmd.AddCommand(contentGetCmd)
	contentCmd.AddCommand(contentPutCmd)
	contentCmd.AddCommand(contentClearCmd)
}
