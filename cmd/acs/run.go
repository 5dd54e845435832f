package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/actions"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/cli"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/collab/eventbus"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/collab/ticketing"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/config"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/dedup"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/engine"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/gateway"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger/storage"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/rules"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/sweep"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/logging"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/metrics"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	rulesPath     string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the enforcement gateway",
	Long: `Start the enforcement gateway with the specified configuration.

The gateway listens on the configured address and evaluates submissions
through the quick-reject gate, the rule engine, and the action
dispatcher, recording every decision on the audit ledger.

Examples:
  # Start with default config
  acs run

  # Start with custom config
  acs run --config /etc/acs/config.yaml

  # Override listen address and rule file
  acs run --listen 0.0.0.0:8440 --rules /etc/acs/rules.yaml

  # Validate config and rules without starting
  acs run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().StringVar(&runFlags.rulesPath, "rules", "", "override rule file path")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config and rules without starting")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Gateway.ListenAddress = runFlags.listenAddress
	}
	if runFlags.rulesPath != "" {
		cfg.Rules.Path = runFlags.rulesPath
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, os.Stdout)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		if _, err := rules.LoadFile(cfg.Rules.Path); err != nil {
			return cli.NewCommandError("run", err)
		}
		fmt.Println("✓ Configuration valid")
		fmt.Printf("✓ Rule file valid: %s\n", cfg.Rules.Path)
		return nil
	}

	ctx := cli.SetupSignalHandler()
	collector := metrics.NewCollector(nil)

	// Ledger backend
	var blockStore ledger.BlockStore
	var auditStore ledger.AuditStore
	switch cfg.Ledger.Backend {
	case "sqlite":
		led, err := storage.NewSQLiteLedger(&storage.SQLiteConfig{
			Path:         cfg.Ledger.SQLite.Path,
			MaxOpenConns: cfg.Ledger.SQLite.MaxOpenConns,
			MaxIdleConns: cfg.Ledger.SQLite.MaxIdleConns,
			WALMode:      true,
			BusyTimeout:  cfg.Ledger.SQLite.BusyTimeout,
		}, logger)
		if err != nil {
			return cli.NewCommandError("run", fmt.Errorf("open ledger: %w", err))
		}
		defer led.Close()
		blockStore, auditStore = led, led
	case "memory":
		mem := storage.NewMemoryLedger()
		blockStore, auditStore = mem, mem
		logger.Warn("using in-memory ledger, blocks and audit entries do not survive restart")
	default:
		return cli.NewConfigError("ledger.backend", "unsupported backend "+cfg.Ledger.Backend)
	}

	audit := ledger.NewAudit(auditStore, ledger.AuditConfig{
		Signer:       cfg.Engine.NodeID,
		WriteTimeout: cfg.Ledger.AuditWriteTimeout,
	}, logger)

	// Duplicate-content index
	var idx dedup.Index
	if cfg.Dedup.Enabled {
		switch cfg.Dedup.Backend {
		case "sqlite":
			sqlIdx, err := dedup.NewSQLiteIndex(dedup.SQLiteIndexConfig{
				DBPath: cfg.Dedup.Path,
				Window: cfg.Dedup.Window,
			})
			if err != nil {
				return cli.NewCommandError("run", fmt.Errorf("open dedup index: %w", err))
			}
			defer sqlIdx.Close()
			idx = sqlIdx
		case "memory":
			idx = dedup.NewMemoryIndex(cfg.Dedup.Window)
		default:
			return cli.NewConfigError("dedup.backend", "unsupported backend "+cfg.Dedup.Backend)
		}
	}

	// Rule store with hot reload
	store, err := rules.NewStore(cfg.Rules.Path, logger)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("load rules: %w", err))
	}
	store.OnReload(func(reloadErr error, set *rules.RuleSet) {
		if reloadErr != nil {
			collector.RecordRuleReload("failure", 0)
			return
		}
		collector.RecordRuleReload("success", set.Len())
		if _, err := audit.Append(ctx, &ledger.AuditEntry{
			Stream: ledger.DefaultStream,
			Source: "rules",
			Kind:   ledger.KindRulesReloaded,
			Actor:  cfg.Engine.NodeID,
			Event: map[string]interface{}{
				"version":   set.Version(),
				"ruleCount": set.Len(),
			},
		}); err != nil {
			logger.Error("failed to audit rule reload", "error", err)
		}
	})
	collector.RecordRuleReload("success", store.Current().Len())
	if cfg.Rules.Watch {
		go func() {
			err := store.Watch(ctx, &rules.FileWatcherConfig{
				Path:             cfg.Rules.Path,
				DebounceInterval: cfg.Rules.DebounceInterval,
			})
			if err != nil && ctx.Err() == nil {
				logger.Error("rule watcher stopped", "error", err)
			}
		}()
	}

	// Outbound collaborators. Both degrade to logged no-ops when not
	// configured so one rule file works across environments.
	var ticketClient ticketing.Client
	if cfg.Collab.Ticketing.BaseURL != "" {
		ticketClient = ticketing.NewHTTPClient(cfg.Collab.Ticketing, logger)
	}
	var publisher eventbus.Publisher
	if cfg.Collab.EventBus.Enabled {
		kafkaPub := eventbus.NewKafkaPublisher(cfg.Collab.EventBus, logger)
		defer kafkaPub.Close()
		publisher = kafkaPub
	}

	registry := actions.NewRegistry(logger)
	registry.Register(actions.NewFreezeShipment(blockStore, audit, collector, logger))
	registry.Register(actions.NewBlockEntity(blockStore, audit, collector, logger))
	registry.Register(actions.NewCreateTicket(ticketClient, audit, logger))
	registry.Register(actions.NewEmitEvent(publisher, audit, cfg.Engine.NodeID, logger))

	gate := engine.NewGate(blockStore, idx, audit, collector, logger)
	eng := engine.New(store, gate, registry, audit, collector, cfg.Engine, logger)

	sweeper := sweep.New(blockStore, audit, idx, cfg.Dedup.Window, collector, cfg.Sweep, logger)
	if err := sweeper.Start(ctx); err != nil {
		return cli.NewCommandError("run", fmt.Errorf("start sweeper: %w", err))
	}
	defer sweeper.Stop()

	printBanner(cfg, store)

	srv := gateway.NewServer(cfg.Gateway, cfg.Telemetry.Metrics, eng, blockStore, audit, store, collector, logger)
	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
	return nil
}

// loadConfig reads the config file, falling back to defaults when the
// default path does not exist. An explicitly passed --config that cannot
// be read is an error.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	if _, err := os.Stat(cfgFile); err != nil {
		if os.IsNotExist(err) && !cmd.Root().PersistentFlags().Changed("config") {
			return config.DefaultConfig(), nil
		}
		return nil, cli.NewConfigError("", fmt.Sprintf("cannot read config file %s: %v", cfgFile, err))
	}

	cfg, err := config.LoadWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError("", err.Error())
	}
	return cfg, nil
}

func printBanner(cfg *config.Config, store *rules.Store) {
	set := store.Current()
	fmt.Printf("Rodistaa ACS v%s\n", Version)
	fmt.Printf("✓ Rule set %s loaded (%d rules)\n", set.Version(), set.Len())
	fmt.Printf("✓ Ledger backend: %s\n", cfg.Ledger.Backend)
	fmt.Printf("✓ Gateway listening on %s\n", cfg.Gateway.ListenAddress)
	if cfg.Telemetry.Metrics.Enabled {
		fmt.Printf("✓ Metrics endpoint: http://%s%s\n", cfg.Gateway.ListenAddress, cfg.Telemetry.Metrics.Path)
	}
	fmt.Println("\nPress Ctrl+C to stop")
}
