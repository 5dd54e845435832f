package engine

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/dedup"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/metrics"
)

// Gate performs the pre-evaluation checks: is the entity blocked, and has
// this exact content been submitted before. Both are index lookups; no
// rule evaluation happens here.
type Gate struct {
	blocks  ledger.BlockStore
	dedup   dedup.Index
	audit   *ledger.Audit
	metrics *metrics.Collector
	logger  *slog.Logger
}

// NewGate creates the gate. dedupIdx may be nil to disable the duplicate
// check; metrics may be nil.
func NewGate(blocks ledger.BlockStore, dedupIdx dedup.Index, audit *ledger.Audit, collector *metrics.Collector, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		blocks:  blocks,
		dedup:   dedupIdx,
		audit:   audit,
		metrics: collector,
		logger:  logger.With("component", "quickreject"),
	}
}

// Check runs the gate. A rejected submission yields a blocked Decision
// backed by exactly one audit entry. A nil Decision means the submission
// may proceed to rule evaluation.
//
// A failed lookup or a failed audit write is an error: the caller must
// fail the submission rather than guess.
func (g *Gate) Check(ctx context.Context, sub *Submission) (*Decision, error) {
	for _, ref := range blockTargets(sub) {
		active, err := g.blocks.ListActive(ctx, ref.entityType, ref.entityID)
		if err != nil {
			return nil, &QuickRejectError{Check: "block", Cause: err}
		}
		if len(active) > 0 {
			return g.reject(ctx, sub, CodeEntityBlocked, map[string]interface{}{
				"blockedType": ref.entityType,
				"blockedId":   ref.entityID,
				"blockId":     active[0].ID,
				"blockReason": active[0].Reason,
				"blockCount":  len(active),
			})
		}
	}

	if g.dedup != nil && sub.ContentHash != "" {
		seen, err := g.dedup.CheckAndRecord(ctx, sub.ContentHash, sub.ReceivedAt)
		if err != nil {
			return nil, &QuickRejectError{Check: "dedup", Cause: err}
		}
		if seen {
			return g.reject(ctx, sub, CodeDuplicateContent, map[string]interface{}{
				"contentHash": sub.ContentHash,
			})
		}
	}

	return nil, nil
}

type blockTarget struct {
	entityType string
	entityID   string
}

// blockTargets lists every identity the gate checks for active blocks:
// the submission's primary entity plus the caller's user and device ids
// when the context carries them. A blocked user stays blocked no matter
// which truck or shipment the submission names.
func blockTargets(sub *Submission) []blockTarget {
	targets := []blockTarget{{sub.EntityType, sub.EntityID}}
	for _, c := range []struct {
		key        string
		entityType string
	}{{"userId", "user"}, {"deviceId", "device"}} {
		id, ok := sub.Context[c.key].(string)
		if !ok || id == "" {
			continue
		}
		if c.entityType == sub.EntityType && id == sub.EntityID {
			continue
		}
		targets = append(targets, blockTarget{c.entityType, id})
	}
	return targets
}

func (g *Gate) reject(ctx context.Context, sub *Submission, code string, detail map[string]interface{}) (*Decision, error) {
	event := map[string]interface{}{
		"reason":     code,
		"eventType":  sub.EventType,
		"entityType": sub.EntityType,
		"entityId":   sub.EntityID,
	}
	for k, v := range detail {
		event[k] = v
	}

	auditID, err := g.audit.Append(ctx, &ledger.AuditEntry{
		Source: "quickreject",
		Kind:   ledger.KindQuickReject,
		Actor:  sub.Actor,
		Event:  event,
	})
	if err != nil {
		if g.metrics != nil {
			g.metrics.RecordAuditAppend("failure")
		}
		return nil, &AuditWriteError{Cause: err}
	}
	if g.metrics != nil {
		g.metrics.RecordAuditAppend("success")
		g.metrics.RecordQuickReject(code)
	}

	g.logger.Info("submission quick-rejected",
		"reason", code,
		"entity_type", sub.EntityType,
		"entity_id", sub.EntityID,
		"audit_id", auditID)

	return &Decision{
		Allowed: false,
		Status:  http.StatusForbidden,
		Code:    code,
		Message: rejectMessage(code, sub),
		AuditID: auditID,
	}, nil
}

func rejectMessage(code string, sub *Submission) string {
	switch code {
	case CodeEntityBlocked:
		return fmt.Sprintf("%s %s is blocked", sub.EntityType, sub.EntityID)
	case CodeDuplicateContent:
		return "identical content was already submitted"
	default:
		return "submission rejected"
	}
}
