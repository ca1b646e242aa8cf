package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/jeanpaul/gbagent/internal/tui"
)

var memoryPlain bool

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Show what the agent remembers",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showMemory(cmd.OutOrStdout(), memoryPlain || !isTerminal())
	},
}

func init() {
	memoryCmd.Flags().BoolVar(&memoryPlain, "plain", false, "print markdown without styling")
	rootCmd.AddCommand(memoryCmd)
}

func showMemory(out io.Writer, plain bool) error {
	entries := newMemoryStore(nil, nil, nil).Load()
	text, err := tui.RenderMemory(entries, 100, plain)
	if err != nil {
		return err
	}
	fmt.Fprint(out, text)
	if !plain {
		fmt.Fprintln(out, tui.HelpStyle.Render(fmt.Sprintf("  %d entries in %s", len(entries), cfg.Memory.File)))
	}
	return nil
}
