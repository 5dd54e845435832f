package ledger

import (
	"context"
	"time"
)

// Block severities. These mirror the rule severities so a block created by
// a rule hit carries the rule's severity through.
const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

// Block reasons recorded by the builtin actions and the quick-reject gate.
const (
	ReasonFraudSuspected  = "FRAUD_SUSPECTED"
	ReasonManualReview    = "MANUAL_REVIEW"
	ReasonPolicyViolation = "POLICY_VIOLATION"
)

// ACSBlock is one block record. A block never disappears; lifting it sets
// Active to false and records who lifted it and when.
type ACSBlock struct {
	ID         string                 `json:"id"`
	EntityType string                 `json:"entityType"`
	EntityID   string                 `json:"entityId"`
	Reason     string                 `json:"reason"`
	Severity   string                 `json:"severity"`
	Scope      map[string]interface{} `json:"scope,omitempty"`
	CreatedBy  string                 `json:"createdBy"`
	CreatedAt  time.Time              `json:"createdAt"`
	AuditID    string                 `json:"auditId,omitempty"`
	Active     bool                   `json:"active"`
	ExpiresAt  *time.Time             `json:"expiresAt,omitempty"`

	UnblockedBy string     `json:"unblockedBy,omitempty"`
	UnblockedAt *time.Time `json:"unblockedAt,omitempty"`
}

// Expired reports whether the block has an expiry in the past as of now.
func (b *ACSBlock) Expired(now time.Time) bool {
	return b.ExpiresAt != nil && !b.ExpiresAt.After(now)
}

// AuditEntry is one link in an audit stream. Seq, PrevHash and Hash are
// assigned by the Audit appender; callers populate the rest.
type AuditEntry struct {
	ID          string                 `json:"id"`
	Stream      string                 `json:"stream"`
	Seq         int64                  `json:"seq"`
	Source      string                 `json:"source"`
	Kind        string                 `json:"kind"`
	Event       map[string]interface{} `json:"event,omitempty"`
	RuleID      string                 `json:"ruleId,omitempty"`
	RuleVersion string                 `json:"ruleVersion,omitempty"`
	Actor       string                 `json:"actor,omitempty"`
	CreatedAt   time.Time              `json:"createdAt"`
	PrevHash    string                 `json:"prevHash"`
	Hash        string                 `json:"hash"`
	Signer      string                 `json:"signer,omitempty"`
}

// Audit entry kinds written by the engine, the actions and the gateway.
const (
	KindDecision      = "DECISION"
	KindRuleHit       = "RULE_HIT"
	KindQuickReject   = "QUICK_REJECT"
	KindBlockCreated  = "BLOCK_CREATED"
	KindBlockLifted   = "BLOCK_LIFTED"
	KindBlockExpired  = "BLOCK_EXPIRED"
	KindTicketCreated = "TICKET_CREATED"
	KindEventEmitted  = "EVENT_EMITTED"
	KindActionFailed  = "ACTION_FAILED"
	KindRulesReloaded = "RULES_RELOADED"
)

// BlockStore persists blocks.
type BlockStore interface {
	// Insert stores a new block. The block ID must be unique.
	Insert(ctx context.Context, b *ACSBlock) error

	// ListActive returns all active blocks for the entity, newest first.
	// An entity with no blocks yields an empty slice, not an error.
	ListActive(ctx context.Context, entityType, entityID string) ([]*ACSBlock, error)

	// Get returns the block by ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*ACSBlock, error)

	// Deactivate lifts an active block. Lifting an already-inactive block
	// returns ErrNotFound.
	Deactivate(ctx context.Context, id, liftedBy string, at time.Time) error

	// ListExpired returns active blocks whose expiry is at or before asOf.
	ListExpired(ctx context.Context, asOf time.Time) ([]*ACSBlock, error)
}

// AuditStore persists audit entries. It stores what it is given; chain
// linkage is the appender's job.
type AuditStore interface {
	// Append stores an entry. A duplicate entry ID or (stream, seq) pair
	// returns ErrDuplicateEntry.
	Append(ctx context.Context, e *AuditEntry) error

	// Tail returns the entry with the highest Seq in the stream, or nil
	// when the stream is empty.
	Tail(ctx context.Context, stream string) (*AuditEntry, error)

	// List returns entries in the stream with Seq >= fromSeq in ascending
	// Seq order, at most limit entries (limit <= 0 means no limit).
	List(ctx context.Context, stream string, fromSeq int64, limit int) ([]*AuditEntry, error)
}
