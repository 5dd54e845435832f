package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/cli"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger/storage"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/logging"
)

var verifyFlags struct {
	stream string
	format string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify the audit chain",
	Long: `Verify the hash chain of an audit stream.

Walks the stream from its first entry, checking that sequence numbers
are dense, that each entry's prevHash matches its predecessor, and that
every stored hash matches a recomputation over the entry's canonical
form. Any mutation, deletion, or insertion breaks the chain at a
reportable sequence number.

Examples:
  # Verify the default stream
  acs verify

  # Verify a specific stream with JSON output
  acs verify --stream acs --format json`,
	RunE: verifyChain,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().StringVarP(&verifyFlags.stream, "stream", "s", ledger.DefaultStream, "audit stream to verify")
	verifyCmd.Flags().StringVar(&verifyFlags.format, "format", "text", "output format: text, json")
}

// verifyOutput is the wire shape of a verification report.
type verifyOutput struct {
	Stream   string `json:"stream"`
	Entries  int    `json:"entries"`
	OK       bool   `json:"ok"`
	BrokenAt int64  `json:"brokenAt,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

func verifyChain(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	if cfg.Ledger.Backend != "sqlite" {
		return cli.NewConfigError("ledger.backend", "verify requires the sqlite backend")
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stderr)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}

	led, err := storage.NewSQLiteLedger(&storage.SQLiteConfig{
		Path:        cfg.Ledger.SQLite.Path,
		WALMode:     true,
		BusyTimeout: cfg.Ledger.SQLite.BusyTimeout,
	}, logger)
	if err != nil {
		return cli.NewCommandError("verify", fmt.Errorf("open ledger: %w", err))
	}
	defer led.Close()

	audit := ledger.NewAudit(led, ledger.AuditConfig{}, logger)
	result, err := audit.VerifyChain(cmd.Context(), verifyFlags.stream)
	if err != nil {
		return cli.NewCommandError("verify", err)
	}

	out := verifyOutput{
		Stream:  result.Stream,
		Entries: result.Entries,
		OK:      result.OK,
	}
	if result.Broken != nil {
		out.BrokenAt = result.Broken.Seq
		out.Reason = result.Broken.Reason
	}

	if verifyFlags.format == "json" {
		if err := cli.NewFormatter(cli.FormatJSON).FormatTo(os.Stdout, out); err != nil {
			return err
		}
	} else if out.OK {
		fmt.Printf("✓ stream %s: %d entries, chain intact\n", out.Stream, out.Entries)
	} else {
		fmt.Printf("✗ stream %s: chain broken at seq %d: %s\n", out.Stream, out.BrokenAt, out.Reason)
	}

	if !out.OK {
		return fmt.Errorf("audit chain verification failed")
	}
	return nil
}
