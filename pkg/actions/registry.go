// Package actions implements the builtin enforcement actions and the
// registry the engine dispatches through.
//
// Builtins: freezeShipment and blockEntity write blocks to the ledger and
// deny the submission; createTicket opens an ops-review ticket; emitEvent
// publishes a compliance event. A rule naming an unregistered action gets
// a logging no-op so one bad rule file cannot take down enforcement.
package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/engine"
)

// Registry maps action names to handlers.
type Registry struct {
	handlers map[string]engine.ActionHandler
	logger   *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		handlers: make(map[string]engine.ActionHandler),
		logger:   logger.With("component", "actions"),
	}
}

// Register adds a handler under its name. Re-registering a name replaces
// the previous handler.
func (r *Registry) Register(h engine.ActionHandler) {
	r.handlers[h.Name()] = h
}

// Handler returns the handler for the name, or a logging no-op for
// unknown names.
func (r *Registry) Handler(name string) engine.ActionHandler {
	if h, ok := r.handlers[name]; ok {
		return h
	}
	return &noopHandler{name: name, logger: r.logger}
}

// noopHandler stands in for unregistered action names.
type noopHandler struct {
	name   string
	logger *slog.Logger
}

func (h *noopHandler) Name() string { return h.name }

func (h *noopHandler) Execute(ctx context.Context, inv *engine.ActionInvocation) (*engine.ActionOutcome, error) {
	h.logger.Warn("unknown action, skipping",
		"action", h.name,
		"rule_id", inv.Rule.ID)
	return &engine.ActionOutcome{
		Name:    h.name,
		Success: true,
		Message: fmt.Sprintf("action %q is not registered, skipped", h.name),
	}, nil
}

// paramString reads a string parameter, with a fallback.
func paramString(params map[string]interface{}, key, fallback string) string {
	if v, ok := params[key]; ok {
		if s, ok := v.(string); ok && s != "" {
			return s
		}
	}
	return fallback
}

// paramMap reads a map parameter.
func paramMap(params map[string]interface{}, key string) map[string]interface{} {
	if v, ok := params[key]; ok {
		if m, ok := v.(map[string]interface{}); ok {
			return m
		}
	}
	return nil
}
