package actions

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/engine"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/metrics"
)

// blocker is shared machinery for the two block-writing actions.
type blocker struct {
	blocks  ledger.BlockStore
	audit   *ledger.Audit
	metrics *metrics.Collector
	logger  *slog.Logger
}

// createBlock audits the block, writes it, and returns the block ID. The
// audit entry goes first: a block row must never exist without its trace,
// so a failed append refuses the block entirely.
func (b *blocker) createBlock(ctx context.Context, inv *engine.ActionInvocation, blk *ledger.ACSBlock) (string, error) {
	blk.ID = uuid.New().String()
	blk.CreatedBy = "rule:" + inv.Rule.ID
	blk.CreatedAt = time.Now().UTC()
	blk.AuditID = inv.AuditID
	blk.Active = true

	if _, err := b.audit.Append(ctx, &ledger.AuditEntry{
		Source: "actions",
		Kind:   ledger.KindBlockCreated,
		RuleID: inv.Rule.ID,
		Actor:  inv.Submission.Actor,
		Event: map[string]interface{}{
			"blockId":    blk.ID,
			"entityType": blk.EntityType,
			"entityId":   blk.EntityID,
			"reason":     blk.Reason,
			"severity":   blk.Severity,
			"ruleHitId":  inv.AuditID,
		},
	}); err != nil {
		return "", fmt.Errorf("audit block creation: %w", err)
	}

	if err := b.blocks.Insert(ctx, blk); err != nil {
		return "", fmt.Errorf("insert block: %w", err)
	}

	if b.metrics != nil {
		b.metrics.RecordBlockCreated(blk.EntityType)
	}
	b.logger.Info("block created",
		"block_id", blk.ID,
		"entity_type", blk.EntityType,
		"entity_id", blk.EntityID,
		"reason", blk.Reason,
		"rule_id", inv.Rule.ID)
	return blk.ID, nil
}

// FreezeShipment blocks the shipment named by the rule's shipmentId
// parameter. The frozen shipment fails every subsequent quick-reject
// check until ops lift the block.
type FreezeShipment struct {
	blocker
}

// NewFreezeShipment creates the handler.
func NewFreezeShipment(blocks ledger.BlockStore, audit *ledger.Audit, collector *metrics.Collector, logger *slog.Logger) *FreezeShipment {
	if logger == nil {
		logger = slog.Default()
	}
	return &FreezeShipment{blocker{
		blocks:  blocks,
		audit:   audit,
		metrics: collector,
		logger:  logger.With("component", "actions.freeze"),
	}}
}

func (h *FreezeShipment) Name() string { return "freezeShipment" }

func (h *FreezeShipment) Execute(ctx context.Context, inv *engine.ActionInvocation) (*engine.ActionOutcome, error) {
	shipmentID := paramString(inv.Params, "shipmentId", "")
	if shipmentID == "" {
		return nil, fmt.Errorf("freezeShipment requires a shipmentId parameter")
	}

	blockID, err := h.createBlock(ctx, inv, &ledger.ACSBlock{
		EntityType: "shipment",
		EntityID:   shipmentID,
		Reason:     paramString(inv.Params, "reason", ledger.ReasonFraudSuspected),
		Severity:   ledger.SeverityCritical,
		Scope: map[string]interface{}{
			"eventType": inv.Submission.EventType,
		},
	})
	if err != nil {
		return nil, err
	}

	return &engine.ActionOutcome{
		Name:     h.Name(),
		Success:  true,
		Blocking: true,
		Message:  fmt.Sprintf("shipment %s frozen", shipmentID),
		Details:  map[string]interface{}{"blockId": blockID, "shipmentId": shipmentID},
	}, nil
}

// BlockEntity blocks an entity, by default the submission's own.
type BlockEntity struct {
	blocker
}

// NewBlockEntity creates the handler.
func NewBlockEntity(blocks ledger.BlockStore, audit *ledger.Audit, collector *metrics.Collector, logger *slog.Logger) *BlockEntity {
	if logger == nil {
		logger = slog.Default()
	}
	return &BlockEntity{blocker{
		blocks:  blocks,
		audit:   audit,
		metrics: collector,
		logger:  logger.With("component", "actions.block"),
	}}
}

func (h *BlockEntity) Name() string { return "blockEntity" }

func (h *BlockEntity) Execute(ctx context.Context, inv *engine.ActionInvocation) (*engine.ActionOutcome, error) {
	entityType := paramString(inv.Params, "entityType", inv.Submission.EntityType)
	entityID := paramString(inv.Params, "entityId", inv.Submission.EntityID)
	if entityType == "" || entityID == "" {
		return nil, fmt.Errorf("blockEntity has no entity to block")
	}

	blk := &ledger.ACSBlock{
		EntityType: entityType,
		EntityID:   entityID,
		Reason:     paramString(inv.Params, "reason", ledger.ReasonPolicyViolation),
		Severity:   paramString(inv.Params, "severity", string(inv.Rule.Severity)),
	}
	if ttl := paramString(inv.Params, "expiresIn", ""); ttl != "" {
		d, err := time.ParseDuration(ttl)
		if err != nil {
			return nil, fmt.Errorf("invalid expiresIn %q: %w", ttl, err)
		}
		t := time.Now().UTC().Add(d)
		blk.ExpiresAt = &t
	}

	blockID, err := h.createBlock(ctx, inv, blk)
	if err != nil {
		return nil, err
	}

	return &engine.ActionOutcome{
		Name:     h.Name(),
		Success:  true,
		Blocking: true,
		Message:  fmt.Sprintf("%s %s blocked", entityType, entityID),
		Details:  map[string]interface{}{"blockId": blockID},
	}, nil
}
