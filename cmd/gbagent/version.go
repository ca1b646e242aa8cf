package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is set at build time:
// go build -ldflags "-X main.Version=1.2.0" ./cmd/gbagent
var Version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	// no config needed to print a version
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "gbagent "+Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
