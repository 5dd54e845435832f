package config

import "time"

// Config is the root configuration structure for the ACS.
type Config struct {
	// Gateway contains the HTTP enforcement gateway configuration.
	Gateway GatewayConfig `yaml:"gateway"`

	// Rules contains the rule store configuration: where the rule file
	// lives and whether to hot-reload it.
	Rules RulesConfig `yaml:"rules"`

	// Engine contains evaluator and dispatcher settings.
	Engine EngineConfig `yaml:"engine"`

	// Ledger contains block and audit storage settings.
	Ledger LedgerConfig `yaml:"ledger"`

	// Dedup contains the duplicate-content index settings.
	Dedup DedupConfig `yaml:"dedup"`

	// Collab contains outbound collaborator settings: the ticketing
	// service and the event bus.
	Collab CollabConfig `yaml:"collab"`

	// Sweep contains the expired-block sweeper settings.
	Sweep SweepConfig `yaml:"sweep"`

	// Telemetry contains logging and metrics settings.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// GatewayConfig contains configuration for the HTTP gateway.
type GatewayConfig struct {
	// ListenAddress is the address and port to listen on.
	// Default: "127.0.0.1:8440"
	ListenAddress string `yaml:"listen_address"`

	// ReadTimeout is the maximum duration for reading the entire request.
	// Default: 15s
	ReadTimeout time.Duration `yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out response
	// writes. Default: 15s
	WriteTimeout time.Duration `yaml:"write_timeout"`

	// IdleTimeout is the keep-alive idle timeout.
	// Default: 120s
	IdleTimeout time.Duration `yaml:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown.
	// Default: 30s
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	// MaxBodyBytes limits the enforce request body size.
	// Default: 1048576 (1MB)
	MaxBodyBytes int64 `yaml:"max_body_bytes"`
}

// RulesConfig contains configuration for the rule store.
type RulesConfig struct {
	// Path is the YAML rule document to load.
	// Default: "config/rules.yaml"
	Path string `yaml:"path"`

	// Watch enables hot reload on file change.
	// Default: true
	Watch bool `yaml:"watch"`

	// DebounceInterval coalesces rapid file events into one reload.
	// Default: 200ms
	DebounceInterval time.Duration `yaml:"debounce_interval"`
}

// EngineConfig contains evaluator and dispatcher settings.
type EngineConfig struct {
	// StopOnCritical stops evaluating lower-priority rules once a
	// critical rule has matched.
	// Default: false (all matching rules run)
	StopOnCritical bool `yaml:"stop_on_critical"`

	// EvalTimeout bounds a single enforcement evaluation end to end.
	// Default: 5s
	EvalTimeout time.Duration `yaml:"eval_timeout"`

	// NodeID identifies this engine instance in audit entries.
	// Default: "acs-node"
	NodeID string `yaml:"node_id"`
}

// LedgerConfig contains block and audit storage settings.
type LedgerConfig struct {
	// Backend selects the storage backend: "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// SQLite configures the sqlite backend.
	SQLite SQLiteConfig `yaml:"sqlite"`

	// AuditWriteTimeout bounds each durable audit append.
	// Default: 5s
	AuditWriteTimeout time.Duration `yaml:"audit_write_timeout"`
}

// SQLiteConfig configures a SQLite database file.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string `yaml:"path"`

	// MaxOpenConns is the maximum number of open connections.
	// Default: 10
	MaxOpenConns int `yaml:"max_open_conns"`

	// MaxIdleConns is the maximum number of idle connections.
	// Default: 5
	MaxIdleConns int `yaml:"max_idle_conns"`

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// DedupConfig contains duplicate-content index settings.
type DedupConfig struct {
	// Enabled turns the duplicate-content quick-reject check on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Backend selects the index backend: "sqlite" or "memory".
	// Default: "sqlite"
	Backend string `yaml:"backend"`

	// Path is the sqlite database file path.
	// Default: "data/dedup.db"
	Path string `yaml:"path"`

	// Window is how long a sighting counts as a duplicate.
	// Default: 24h
	Window time.Duration `yaml:"window"`
}

// CollabConfig contains outbound collaborator settings.
type CollabConfig struct {
	// Ticketing configures the ops ticketing service client.
	Ticketing TicketingConfig `yaml:"ticketing"`

	// EventBus configures the Kafka event publisher.
	EventBus EventBusConfig `yaml:"event_bus"`
}

// TicketingConfig configures the ops ticketing client.
type TicketingConfig struct {
	// BaseURL is the ticketing service endpoint. Empty disables the
	// client; createTicket actions then log-and-continue.
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates ticket creation.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each ticket creation call.
	// Default: 10s
	Timeout time.Duration `yaml:"timeout"`
}

// EventBusConfig configures the Kafka publisher used by emitEvent.
type EventBusConfig struct {
	// Enabled turns publishing on. When disabled emitEvent actions
	// log-and-continue.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Brokers is the list of Kafka broker addresses.
	Brokers []string `yaml:"brokers"`

	// Topic is the topic compliance events are published to.
	// Default: "acs.events"
	Topic string `yaml:"topic"`

	// WriteTimeout bounds each publish.
	// Default: 10s
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// SweepConfig contains the expired-block sweeper settings.
type SweepConfig struct {
	// Enabled turns the sweeper on.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Schedule is a cron expression for sweep runs.
	// Default: "*/5 * * * *" (every five minutes)
	Schedule string `yaml:"schedule"`
}

// TelemetryConfig contains logging and metrics settings.
type TelemetryConfig struct {
	// Logging configures structured logging.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: "info"
	Level string `yaml:"level"`

	// Format is "json" or "text".
	// Default: "json"
	Format string `yaml:"format"`

	// Redact enables masking of sensitive identifiers in log output.
	// Default: true
	Redact bool `yaml:"redact"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled exposes /metrics on the gateway.
	// Default: true
	Enabled bool `yaml:"enabled"`

	// Path is the metrics endpoint path.
	// Default: "/metrics"
	Path string `yaml:"path"`
}
