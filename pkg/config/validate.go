package config

import (
	"fmt"
	"net"
	"strings"
)

// ValidationError describes one invalid configuration field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config field %s: %s", e.Field, e.Message)
}

// Validate checks the configuration for invalid values. It returns the
// first problem found.
func Validate(cfg *Config) error {
	if _, _, err := net.SplitHostPort(cfg.Gateway.ListenAddress); err != nil {
		return &ValidationError{
			Field:   "gateway.listen_address",
			Message: fmt.Sprintf("must be host:port, got %q", cfg.Gateway.ListenAddress),
		}
	}
	if cfg.Gateway.MaxBodyBytes <= 0 {
		return &ValidationError{
			Field:   "gateway.max_body_bytes",
			Message: "must be positive",
		}
	}

	if cfg.Rules.Path == "" {
		return &ValidationError{
			Field:   "rules.path",
			Message: "rule file path is required",
		}
	}
	if cfg.Rules.DebounceInterval < 0 {
		return &ValidationError{
			Field:   "rules.debounce_interval",
			Message: "must not be negative",
		}
	}

	if cfg.Engine.EvalTimeout <= 0 {
		return &ValidationError{
			Field:   "engine.eval_timeout",
			Message: "must be positive",
		}
	}

	switch cfg.Ledger.Backend {
	case "sqlite":
		if cfg.Ledger.SQLite.Path == "" {
			return &ValidationError{
				Field:   "ledger.sqlite.path",
				Message: "database path is required for the sqlite backend",
			}
		}
	case "memory":
	default:
		return &ValidationError{
			Field:   "ledger.backend",
			Message: fmt.Sprintf("must be sqlite or memory, got %q", cfg.Ledger.Backend),
		}
	}

	if cfg.Dedup.Enabled {
		switch cfg.Dedup.Backend {
		case "sqlite":
			if cfg.Dedup.Path == "" {
				return &ValidationError{
					Field:   "dedup.path",
					Message: "database path is required for the sqlite backend",
				}
			}
		case "memory":
		default:
			return &ValidationError{
				Field:   "dedup.backend",
				Message: fmt.Sprintf("must be sqlite or memory, got %q", cfg.Dedup.Backend),
			}
		}
		if cfg.Dedup.Window <= 0 {
			return &ValidationError{
				Field:   "dedup.window",
				Message: "must be positive",
			}
		}
	}

	if cfg.Collab.Ticketing.BaseURL != "" &&
		!strings.HasPrefix(cfg.Collab.Ticketing.BaseURL, "http://") &&
		!strings.HasPrefix(cfg.Collab.Ticketing.BaseURL, "https://") {
		return &ValidationError{
			Field:   "collab.ticketing.base_url",
			Message: "must start with http:// or https://",
		}
	}
	if cfg.Collab.EventBus.Enabled && len(cfg.Collab.EventBus.Brokers) == 0 {
		return &ValidationError{
			Field:   "collab.event_bus.brokers",
			Message: "at least one broker is required when the event bus is enabled",
		}
	}

	if cfg.Sweep.Enabled && cfg.Sweep.Schedule == "" {
		return &ValidationError{
			Field:   "sweep.schedule",
			Message: "cron schedule is required when the sweeper is enabled",
		}
	}

	switch cfg.Telemetry.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be debug, info, warn or error, got %q", cfg.Telemetry.Logging.Level),
		}
	}
	switch cfg.Telemetry.Logging.Format {
	case "json", "text":
	default:
		return &ValidationError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Telemetry.Logging.Format),
		}
	}
	if cfg.Telemetry.Metrics.Enabled && !strings.HasPrefix(cfg.Telemetry.Metrics.Path, "/") {
		return &ValidationError{
			Field:   "telemetry.metrics.path",
			Message: "must start with /",
		}
	}

	return nil
}
