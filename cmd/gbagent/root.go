package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jeanpaul/gbagent/internal/config"
	"github.com/jeanpaul/gbagent/internal/observability"
	"github.com/jeanpaul/gbagent/internal/tui"
)

var (
	cfgFile string
	cfg     *config.Config

	// osExit is swapped in tests.
	osExit = os.Exit
)

var rootCmd = &cobra.Command{
	Use:   "gbagent",
	Short: "gbagent plays Pokemon Fire Red in a browser emulator using Grok",
	Long: `gbagent boots a GBA emulator page in Chrome, looks at the screen,
asks Grok what to do and presses the buttons. With no subcommand it shows
a start menu.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := loadConfig()
		if err != nil {
			observability.InitializeLogger(config.DefaultConfig().Logger)
			return err
		}
		cfg = loaded
		observability.InitializeLogger(cfg.Logger)
		tui.ApplyTheme(cfg.Theme)
		observability.GetLogger().Debug("starting gbagent", zap.String("version", Version))
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if !isTerminal() {
			return play(cmd.Context(), cmd.OutOrStdout())
		}
		return menu(cmd)
	},
}

// Execute runs the command tree and exits non-zero on failure.
func Execute() {
	err := rootCmd.Execute()
	observability.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, tui.ErrorStyle.Render("error: "+err.Error()))
		osExit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "gbagent %s\n" .Version}}`)
}

func loadConfig() (*config.Config, error) {
	if cfgFile != "" {
		return config.LoadFile(cfgFile)
	}
	return config.Load()
}

// menu loops on the start menu until the user starts a run or quits.
func menu(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	fmt.Fprint(out, tui.RenderBanner("Pokemon Fire Red, played by Grok"))
	for {
		choice, err := tui.RunMenu(cmd.InOrStdin(), out)
		if err != nil {
			return err
		}
		switch choice {
		case tui.ChoiceStart:
			return play(cmd.Context(), out)
		case tui.ChoiceMemory:
			if err := showMemory(out, false); err != nil {
				return err
			}
		default:
			fmt.Fprintln(out, tui.HelpStyle.Render("  bye"))
			return nil
		}
	}
}

// isTerminal checks if stdin is a terminal
func isTerminal() bool {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fi.Mode() & os.ModeCharDevice) != 0
}
