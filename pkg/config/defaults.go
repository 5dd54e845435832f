package config

import "time"

// Default values for configuration fields.
const (
	// Gateway defaults
	DefaultListenAddress   = "127.0.0.1:8440"
	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 120 * time.Second
	DefaultShutdownTimeout = 30 * time.Second
	DefaultMaxBodyBytes    = int64(1048576) // 1MB

	// Rules defaults
	DefaultRulesPath        = "config/rules.yaml"
	DefaultRulesWatch       = true
	DefaultRulesDebounce    = 200 * time.Millisecond

	// Engine defaults
	DefaultStopOnCritical = false
	DefaultEvalTimeout    = 5 * time.Second
	DefaultNodeID         = "acs-node"

	// Ledger defaults
	DefaultLedgerBackend      = "sqlite"
	DefaultLedgerSQLitePath   = "data/ledger.db"
	DefaultSQLiteMaxOpenConns = 10
	DefaultSQLiteMaxIdleConns = 5
	DefaultSQLiteBusyTimeout  = 5 * time.Second
	DefaultAuditWriteTimeout  = 5 * time.Second

	// Dedup defaults
	DefaultDedupEnabled = true
	DefaultDedupBackend = "sqlite"
	DefaultDedupPath    = "data/dedup.db"
	DefaultDedupWindow  = 24 * time.Hour

	// Collab defaults
	DefaultTicketingTimeout    = 10 * time.Second
	DefaultEventBusEnabled     = false
	DefaultEventBusTopic       = "acs.events"
	DefaultEventBusWriteTimeout = 10 * time.Second

	// Sweep defaults
	DefaultSweepEnabled  = true
	DefaultSweepSchedule = "*/5 * * * *"

	// Telemetry defaults
	DefaultLoggingLevel   = "info"
	DefaultLoggingFormat  = "json"
	DefaultLoggingRedact  = true
	DefaultMetricsEnabled = true
	DefaultMetricsPath    = "/metrics"
)

// DefaultConfig returns a Config populated with every default. Loading
// unmarshals the file over this, so absent keys keep their defaults and
// explicit false values stick.
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			ListenAddress:   DefaultListenAddress,
			ReadTimeout:     DefaultReadTimeout,
			WriteTimeout:    DefaultWriteTimeout,
			IdleTimeout:     DefaultIdleTimeout,
			ShutdownTimeout: DefaultShutdownTimeout,
			MaxBodyBytes:    DefaultMaxBodyBytes,
		},
		Rules: RulesConfig{
			Path:             DefaultRulesPath,
			Watch:            DefaultRulesWatch,
			DebounceInterval: DefaultRulesDebounce,
		},
		Engine: EngineConfig{
			StopOnCritical: DefaultStopOnCritical,
			EvalTimeout:    DefaultEvalTimeout,
			NodeID:         DefaultNodeID,
		},
		Ledger: LedgerConfig{
			Backend: DefaultLedgerBackend,
			SQLite: SQLiteConfig{
				Path:         DefaultLedgerSQLitePath,
				MaxOpenConns: DefaultSQLiteMaxOpenConns,
				MaxIdleConns: DefaultSQLiteMaxIdleConns,
				BusyTimeout:  DefaultSQLiteBusyTimeout,
			},
			AuditWriteTimeout: DefaultAuditWriteTimeout,
		},
		Dedup: DedupConfig{
			Enabled: DefaultDedupEnabled,
			Backend: DefaultDedupBackend,
			Path:    DefaultDedupPath,
			Window:  DefaultDedupWindow,
		},
		Collab: CollabConfig{
			Ticketing: TicketingConfig{
				Timeout: DefaultTicketingTimeout,
			},
			EventBus: EventBusConfig{
				Enabled:      DefaultEventBusEnabled,
				Topic:        DefaultEventBusTopic,
				WriteTimeout: DefaultEventBusWriteTimeout,
			},
		},
		Sweep: SweepConfig{
			Enabled:  DefaultSweepEnabled,
			Schedule: DefaultSweepSchedule,
		},
		Telemetry: TelemetryConfig{
			Logging: LoggingConfig{
				Level:  DefaultLoggingLevel,
				Format: DefaultLoggingFormat,
				Redact: DefaultLoggingRedact,
			},
			Metrics: MetricsConfig{
				Enabled: DefaultMetricsEnabled,
				Path:    DefaultMetricsPath,
			},
		},
	}
}

// ApplyDefaults fills zero-valued fields. Idempotent; used when a Config
// is built by hand rather than loaded from a file.
func ApplyDefaults(cfg *Config) {
	if cfg.Gateway.ListenAddress == "" {
		cfg.Gateway.ListenAddress = DefaultListenAddress
	}
	if cfg.Gateway.ReadTimeout == 0 {
		cfg.Gateway.ReadTimeout = DefaultReadTimeout
	}
	if cfg.Gateway.WriteTimeout == 0 {
		cfg.Gateway.WriteTimeout = DefaultWriteTimeout
	}
	if cfg.Gateway.IdleTimeout == 0 {
		cfg.Gateway.IdleTimeout = DefaultIdleTimeout
	}
	if cfg.Gateway.ShutdownTimeout == 0 {
		cfg.Gateway.ShutdownTimeout = DefaultShutdownTimeout
	}
	if cfg.Gateway.MaxBodyBytes == 0 {
		cfg.Gateway.MaxBodyBytes = DefaultMaxBodyBytes
	}

	if cfg.Rules.Path == "" {
		cfg.Rules.Path = DefaultRulesPath
	}
	if cfg.Rules.DebounceInterval == 0 {
		cfg.Rules.DebounceInterval = DefaultRulesDebounce
	}

	if cfg.Engine.EvalTimeout == 0 {
		cfg.Engine.EvalTimeout = DefaultEvalTimeout
	}
	if cfg.Engine.NodeID == "" {
		cfg.Engine.NodeID = DefaultNodeID
	}

	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = DefaultLedgerBackend
	}
	if cfg.Ledger.SQLite.Path == "" {
		cfg.Ledger.SQLite.Path = DefaultLedgerSQLitePath
	}
	if cfg.Ledger.SQLite.MaxOpenConns == 0 {
		cfg.Ledger.SQLite.MaxOpenConns = DefaultSQLiteMaxOpenConns
	}
	if cfg.Ledger.SQLite.MaxIdleConns == 0 {
		cfg.Ledger.SQLite.MaxIdleConns = DefaultSQLiteMaxIdleConns
	}
	if cfg.Ledger.SQLite.BusyTimeout == 0 {
		cfg.Ledger.SQLite.BusyTimeout = DefaultSQLiteBusyTimeout
	}
	if cfg.Ledger.AuditWriteTimeout == 0 {
		cfg.Ledger.AuditWriteTimeout = DefaultAuditWriteTimeout
	}

	if cfg.Dedup.Backend == "" {
		cfg.Dedup.Backend = DefaultDedupBackend
	}
	if cfg.Dedup.Path == "" {
		cfg.Dedup.Path = DefaultDedupPath
	}
	if cfg.Dedup.Window == 0 {
		cfg.Dedup.Window = DefaultDedupWindow
	}

	if cfg.Collab.Ticketing.Timeout == 0 {
		cfg.Collab.Ticketing.Timeout = DefaultTicketingTimeout
	}
	if cfg.Collab.EventBus.Topic == "" {
		cfg.Collab.EventBus.Topic = DefaultEventBusTopic
	}
	if cfg.Collab.EventBus.WriteTimeout == 0 {
		cfg.Collab.EventBus.WriteTimeout = DefaultEventBusWriteTimeout
	}

	if cfg.Sweep.Schedule == "" {
		cfg.Sweep.Schedule = DefaultSweepSchedule
	}

	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLoggingLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLoggingFormat
	}
	if cfg.Telemetry.Metrics.Path == "" {
		cfg.Telemetry.Metrics.Path = DefaultMetricsPath
	}
}
