package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load reads configuration from a YAML file. Defaults are applied for any
// field the file leaves unset and the result is validated. Environment
// variables are not consulted; use LoadWithEnvOverrides for that.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	// Unmarshal over a fully-defaulted config so absent keys keep their
	// defaults and explicit false values stick.
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// LoadWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Variables follow the naming convention
// RODISTAA_ACS_SECTION_FIELD (e.g. RODISTAA_ACS_GATEWAY_LISTEN_ADDRESS)
// and always take precedence over file values.
func LoadWithEnvOverrides(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}
	return cfg, nil
}

const envPrefix = "RODISTAA_ACS_"

func applyEnvOverrides(cfg *Config) {
	// Gateway overrides
	envStr("GATEWAY_LISTEN_ADDRESS", &cfg.Gateway.ListenAddress)
	envDur("GATEWAY_READ_TIMEOUT", &cfg.Gateway.ReadTimeout)
	envDur("GATEWAY_WRITE_TIMEOUT", &cfg.Gateway.WriteTimeout)
	envDur("GATEWAY_IDLE_TIMEOUT", &cfg.Gateway.IdleTimeout)
	envDur("GATEWAY_SHUTDOWN_TIMEOUT", &cfg.Gateway.ShutdownTimeout)
	envInt64("GATEWAY_MAX_BODY_BYTES", &cfg.Gateway.MaxBodyBytes)

	// Rules overrides
	envStr("RULES_PATH", &cfg.Rules.Path)
	envBool("RULES_WATCH", &cfg.Rules.Watch)
	envDur("RULES_DEBOUNCE_INTERVAL", &cfg.Rules.DebounceInterval)

	// Engine overrides
	envBool("ENGINE_STOP_ON_CRITICAL", &cfg.Engine.StopOnCritical)
	envDur("ENGINE_EVAL_TIMEOUT", &cfg.Engine.EvalTimeout)
	envStr("ENGINE_NODE_ID", &cfg.Engine.NodeID)

	// Ledger overrides
	envStr("LEDGER_BACKEND", &cfg.Ledger.Backend)
	envStr("LEDGER_SQLITE_PATH", &cfg.Ledger.SQLite.Path)
	envDur("LEDGER_AUDIT_WRITE_TIMEOUT", &cfg.Ledger.AuditWriteTimeout)

	// Dedup overrides
	envBool("DEDUP_ENABLED", &cfg.Dedup.Enabled)
	envStr("DEDUP_BACKEND", &cfg.Dedup.Backend)
	envStr("DEDUP_PATH", &cfg.Dedup.Path)
	envDur("DEDUP_WINDOW", &cfg.Dedup.Window)

	// Collab overrides
	envStr("TICKETING_BASE_URL", &cfg.Collab.Ticketing.BaseURL)
	envStr("TICKETING_API_KEY", &cfg.Collab.Ticketing.APIKey)
	envDur("TICKETING_TIMEOUT", &cfg.Collab.Ticketing.Timeout)
	envBool("EVENT_BUS_ENABLED", &cfg.Collab.EventBus.Enabled)
	if val := os.Getenv(envPrefix + "EVENT_BUS_BROKERS"); val != "" {
		brokers := []string{}
		for _, b := range strings.Split(val, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
		cfg.Collab.EventBus.Brokers = brokers
	}
	envStr("EVENT_BUS_TOPIC", &cfg.Collab.EventBus.Topic)

	// Sweep overrides
	envBool("SWEEP_ENABLED", &cfg.Sweep.Enabled)
	envStr("SWEEP_SCHEDULE", &cfg.Sweep.Schedule)

	// Telemetry overrides
	envStr("LOGGING_LEVEL", &cfg.Telemetry.Logging.Level)
	envStr("LOGGING_FORMAT", &cfg.Telemetry.Logging.Format)
	envBool("LOGGING_REDACT", &cfg.Telemetry.Logging.Redact)
	envBool("METRICS_ENABLED", &cfg.Telemetry.Metrics.Enabled)
	envStr("METRICS_PATH", &cfg.Telemetry.Metrics.Path)
}

func envStr(name string, dst *string) {
	if val := os.Getenv(envPrefix + name); val != "" {
		*dst = val
	}
}

func envBool(name string, dst *bool) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			*dst = b
		}
	}
}

func envDur(name string, dst *time.Duration) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			*dst = d
		}
	}
}

func envInt64(name string, dst *int64) {
	if val := os.Getenv(envPrefix + name); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			*dst = i
		}
	}
}
