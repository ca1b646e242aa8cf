package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeanpaul/gbagent/internal/health"
	"github.com/jeanpaul/gbagent/internal/provider"
	"github.com/jeanpaul/gbagent/internal/tui"
)

var errUnhealthy = errors.New("some checks failed")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the ROM, emulator page, browser and reasoning service",
	RunE: func(cmd *cobra.Command, args []string) error {
		var prov provider.Provider
		if key := cfg.Provider().APIKey; key != "" && !strings.HasPrefix(key, "$") {
			prov = newProvider()
		}
		report := health.Doctor(cmd.Context(), cfg, prov)
		printReport(cmd.OutOrStdout(), report)
		if !report.OK() {
			return errUnhealthy
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func printReport(out io.Writer, report health.Report) {
	fmt.Fprint(out, tui.RenderBanner("Health check"))
	fmt.Fprintln(out)
	for _, it := range report.Items {
		fmt.Fprintf(out, "  %s %s ... ", tui.PlanStyle.Render("●"), it.Name)
		if it.OK {
			fmt.Fprintln(out, tui.OKStyle.Render("✓ "+it.Detail))
		} else {
			fmt.Fprintln(out, tui.ErrorStyle.Render("✗ "+it.Detail))
		}
	}
	fmt.Fprintln(out)
	if report.OK() {
		fmt.Fprintln(out, tui.OKStyle.Render("  Ready to play!"))
		return
	}
	fmt.Fprintln(out, tui.HelpStyle.Render("  Fix the items above, then run: gbagent run"))
}
