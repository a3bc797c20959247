package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ctxhub-ai/ctxhub/pkg/client"
	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

var (
	addName        string
	addType        string
	addPath        string
	addContent     string
	addURL         string
	addDescription string
	addChildren    []string

	updateName        string
	updatePath        string
	updateURL         string
	updateDescription string
	updateChildren    []string
)

var sourcesCmd = &cobra.Command{
	Use:   "sources",
	Short: "Manage context sources",
	Long:  `List, add, update, inspect, and remove the sources registered on the hub.`,
}

var sourcesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		sources, err := c.GetSources(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(sources)
	},
}

var sourcesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new source",
	Long: `Register a new source on the hub.

Content is inline text for snippet and diff sources; pass "-" to read it
from stdin. File sources take --path relative to the server workspace.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if addName == "" {
			return fmt.Errorf("--name is required")
		}
		content := addContent
		if content == "-" {
			data, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("failed to read stdin: %w", err)
			}
			content = string(data)
		}

		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		src, err := c.AddSource(cmd.Context(), client.NewSource{
			Name:        addName,
			Type:        addType,
			Path:        addPath,
			Content:     content,
			URL:         addURL,
			Description: addDescription,
			Children:    addChildren,
		})
		if err != nil {
			return err
		}
		return printJSON(src)
	},
}

var sourcesUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update a source's metadata",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch types.SourcePatch
		if cmd.Flags().Changed("name") {
			patch.Name = &updateName
		}
		if cmd.Flags().Changed("path") {
			patch.Path = &updatePath
		}
		if cmd.Flags().Changed("url") {
			patch.URL = &updateURL
		}
		if cmd.Flags().Changed("description") {
			patch.Description = &updateDescription
		}
		if cmd.Flags().Changed("children") {
			patch.Children = &updateChildren
		}
		if patch.Empty() {
			return fmt.Errorf("nothing to update, pass at least one of --name, --path, --url, --description, --children")
		}

		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		src, err := c.UpdateSource(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}
		return printJSON(src)
	},
}

var sourcesShowCmd = &cobra.Command{
	Use:   "show [id|name]",
	Short: "Show a single source by id or exact name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		sources, err := c.GetSources(cmd.Context())
		if err != nil {
			return err
		}
		src := findSource(sources, args[0])
		if src == nil {
			return fmt.Errorf("no source matching %q", args[0])
		}
		return printJSON(src)
	},
}

var sourcesRmCmd = &cobra.Command{
	Use:     "rm [id]",
	Aliases: []string{"remove", "delete"},
	Short:   "Remove a source",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := dial()
		if err != nil {
			return err
		}
		defer c.Close()

		if err := c.DeleteSource(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
		return nil
	},
}

// findSource matches by id first, then by exact name.
func findSource(sources []types.Source, key string) *types.Source {
	for i := range sources {
		if sources[i].ID == key {
			return &sources[i]
		}
	}
	for i := range sources {
		if strings.EqualFold(sources[i].Name, key) {
			return &sources[i]
		}
	}
	return nil
}

func init() {
	sourcesAddCmd.Flags().StringVar(&addName, "name", "", "Display name (required)")
	sourcesAddCmd.Flags().StringVar(&addType, "type", "snippet", "Source type (file|diff|snippet|group)")
	sourcesAddCmd.Flags().StringVar(&addPath, "path", "", "Workspace-relative path for file sources")
	sourcesAddCmd.Flags().StringVar(&addContent, "content", "", "Inline content, or - for stdin")
	sourcesAddCmd.Flags().StringVar(&addURL, "url", "", "Origin URL")
	sourcesAddCmd.Flags().StringVar(&addDescription, "description", "", "Short description")
	sourcesAddCmd.Flags().StringSliceVar(&addChildren, "children", nil, "Child source ids for group sources")

	sourcesUpdateCmd.Flags().StringVar(&updateName, "name", "", "New display name")
	sourcesUpdateCmd.Flags().StringVar(&updatePath, "path", "", "New workspace-relative path")
	sourcesUpdateCmd.Flags().StringVar(&updateURL, "url", "", "New origin URL")
	sourcesUpdateCmd.Flags().StringVar(&updateDescription, "description", "", "New description")
	sourcesUpdateCmd.Flags().StringSliceVar(&updateChildren, "children", nil, "New child source ids")

	sourcesListCmd.Flags().StringVar(&jqFilter, "jq", "", "Filter output through a jq expression")
	sourcesShowCmd.Flags().StringVar(&jqFilter, "jq", "", "Filter output through a jq expression")

	sourcesCmd.AddCommand(sourcesListCmd)
	sourcesCmd.AddCommand(sourcesAddCmd)
	sourcesCmd.AddCommand(sourcesUpdateCmd)
	sourcesCmd.AddCommand(sourcesShowCmd)
	sourcesCmd.AddCommand(sourcesRmCmd)
}
