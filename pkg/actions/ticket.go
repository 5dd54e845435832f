package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/collab/ticketing"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/engine"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
)

// CreateTicket opens an ops-review ticket for the matched rule. With no
// ticketing service configured it degrades to a logged no-op so rules
// stay valid across environments.
type CreateTicket struct {
	client ticketing.Client
	audit  *ledger.Audit
	queue  string
	logger *slog.Logger
}

// NewCreateTicket creates the handler. client may be nil.
func NewCreateTicket(client ticketing.Client, audit *ledger.Audit, logger *slog.Logger) *CreateTicket {
	if logger == nil {
		logger = slog.Default()
	}
	return &CreateTicket{
		client: client,
		audit:  audit,
		logger: logger.With("component", "actions.ticket"),
	}
}

func (h *CreateTicket) Name() string { return "createTicket" }

func (h *CreateTicket) Execute(ctx context.Context, inv *engine.ActionInvocation) (*engine.ActionOutcome, error) {
	title := paramString(inv.Params, "title", fmt.Sprintf("manual review: rule %s matched", inv.Rule.ID))

	if h.client == nil {
		h.logger.Warn("ticketing not configured, ticket skipped",
			"rule_id", inv.Rule.ID,
			"title", title)
		return &engine.ActionOutcome{
			Name:    h.Name(),
			Success: true,
			Message: "ticketing not configured, ticket skipped",
		}, nil
	}

	result, err := h.client.Create(ctx, &ticketing.Ticket{
		Title:      title,
		Body:       paramString(inv.Params, "body", ""),
		Severity:   paramString(inv.Params, "severity", string(inv.Rule.Severity)),
		Queue:      paramString(inv.Params, "queue", ""),
		RuleID:     inv.Rule.ID,
		AuditID:    inv.AuditID,
		EntityType: inv.Submission.EntityType,
		EntityID:   inv.Submission.EntityID,
		Details:    paramMap(inv.Params, "details"),
	})
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}

	// The created ticket goes on the chain next to the rule hit it
	// answers. A ticket nobody can trace back is not worth a success.
	if _, err := h.audit.Append(ctx, &ledger.AuditEntry{
		Source: "actions",
		Kind:   ledger.KindTicketCreated,
		RuleID: inv.Rule.ID,
		Actor:  inv.Submission.Actor,
		Event: map[string]interface{}{
			"ticketId":   result.TicketID,
			"title":      title,
			"entityType": inv.Submission.EntityType,
			"entityId":   inv.Submission.EntityID,
			"ruleHitId":  inv.AuditID,
		},
	}); err != nil {
		return nil, fmt.Errorf("audit ticket %s: %w", result.TicketID, err)
	}

	return &engine.ActionOutcome{
		Name:    h.Name(),
		Success: true,
		Message: fmt.Sprintf("ticket %s created", result.TicketID),
		Details: map[string]interface{}{"ticketId": result.TicketID, "url": result.URL},
	}, nil
}
