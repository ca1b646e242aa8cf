package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/orchestrator"
	"github.com/jeanpaul/gbagent/internal/tui"
)

var promptsCmd = &cobra.Command{
	Use:   "prompts",
	Short: "Work with prompt override files",
}

var promptsExportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Write the built-in prompts to a YAML file to edit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := config.SavePromptPack(args[0], orchestrator.DefaultPromptPack()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.OKStyle.Render("  ✓ Wrote "+args[0]))
		fmt.Fprintln(cmd.OutOrStdout(), tui.HelpStyle.Render("  Set prompts_file in config.yaml to use it"))
		return nil
	},
}

var promptsCheckCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Parse a prompt override file and report template errors",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfg.PromptsFile
		if len(args) == 1 {
			path = args[0]
		}
		pack, err := config.LoadPromptPack(path)
		if err != nil {
			return err
		}
		if _, err := orchestrator.NewPrompts(pack); err != nil {
			return err
		}
		if path == "" {
			path = "built-in prompts"
		}
		fmt.Fprintln(cmd.OutOrStdout(), tui.OKStyle.Render("  ✓ "+path))
		return nil
	},
}

func init() {
	promptsCmd.AddCommand(promptsExportCmd, promptsCheckCmd)
	rootCmd.AddCommand(promptsCmd)
}
