package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/reefs-ai/reefs-backend/internal/tools"
)

var toolsPrompt bool

// toolsCmd lists the Factory tool catalog
var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools workflows may reference",
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog := tools.Default()
		out := cmd.OutOrStdout()

		if toolsPrompt {
			_, err := fmt.Fprintln(out, catalog.PromptSection(time.Now()))
			return err
		}
		for _, group := range catalog.ByCategory() {
			fmt.Fprintf(out, "%s\n", group.Category)
			for _, def := range group.Tools {
				fmt.Fprintf(out, "  %-32s %s\n", def.ToolName, def.Description)
			}
		}
		return nil
	},
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsPrompt, "prompt", false, "print the catalog section of the assistant system prompt")
}
