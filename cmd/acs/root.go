package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "acs",
	Short: "Rodistaa anti-fraud and compliance service",
	Long: `acs is the Rodistaa anti-fraud and compliance service.

It evaluates operational submissions against a declarative rule file and
enforces the outcome:
  - Quick-rejects submissions from blocked entities and duplicate content
  - Evaluates prioritized fraud rules with an expression language
  - Freezes shipments and blocks entities on violations
  - Raises ops tickets and publishes compliance events
  - Records every decision on a tamper-evident audit ledger`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
