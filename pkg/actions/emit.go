package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/collab/eventbus"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/engine"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
)

// EmitEvent publishes a compliance event to the bus. With no publisher
// configured it degrades to a logged no-op.
type EmitEvent struct {
	publisher eventbus.Publisher
	audit     *ledger.Audit
	nodeID    string
	logger    *slog.Logger
}

// NewEmitEvent creates the handler. publisher may be nil.
func NewEmitEvent(publisher eventbus.Publisher, audit *ledger.Audit, nodeID string, logger *slog.Logger) *EmitEvent {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmitEvent{
		publisher: publisher,
		audit:     audit,
		nodeID:    nodeID,
		logger:    logger.With("component", "actions.emit"),
	}
}

func (h *EmitEvent) Name() string { return "emitEvent" }

func (h *EmitEvent) Execute(ctx context.Context, inv *engine.ActionInvocation) (*engine.ActionOutcome, error) {
	eventType := paramString(inv.Params, "type", "acs.rule.matched")

	if h.publisher == nil {
		h.logger.Warn("event bus not configured, event skipped",
			"rule_id", inv.Rule.ID,
			"event_type", eventType)
		return &engine.ActionOutcome{
			Name:    h.Name(),
			Success: true,
			Message: "event bus not configured, event skipped",
		}, nil
	}

	payload := paramMap(inv.Params, "payload")
	if payload == nil {
		payload = map[string]interface{}{}
	}
	payload["entityType"] = inv.Submission.EntityType
	payload["entityId"] = inv.Submission.EntityID
	payload["eventType"] = inv.Submission.EventType

	evt := eventbus.Event{
		Type:    eventType,
		Source:  h.nodeID,
		RuleID:  inv.Rule.ID,
		AuditID: inv.AuditID,
		Payload: payload,
	}
	if err := h.publisher.Publish(ctx, evt); err != nil {
		return nil, fmt.Errorf("publish event: %w", err)
	}

	if _, err := h.audit.Append(ctx, &ledger.AuditEntry{
		Source: "actions",
		Kind:   ledger.KindEventEmitted,
		RuleID: inv.Rule.ID,
		Actor:  inv.Submission.Actor,
		Event: map[string]interface{}{
			"type":       eventType,
			"entityType": inv.Submission.EntityType,
			"entityId":   inv.Submission.EntityID,
			"ruleHitId":  inv.AuditID,
		},
	}); err != nil {
		return nil, fmt.Errorf("audit event %s: %w", eventType, err)
	}

	return &engine.ActionOutcome{
		Name:    h.Name(),
		Success: true,
		Message: fmt.Sprintf("event %s published", eventType),
	}, nil
}
