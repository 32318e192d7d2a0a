package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "gatectl: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "gatectl",
		Short: "Run and control gateway bot sessions",
		Long: `gatectl keeps one long-lived gateway session per configured bot.

Each session handshakes (identify or resume), then runs heartbeat,
receive and send pumps until the server or an operator ends it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(
		runCmd(),
		configCmd(),
		versionCmd(),
	)
	return root
}
