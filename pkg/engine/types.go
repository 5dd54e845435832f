package engine

import (
	"context"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/rules"
)

// Submission is one incoming operation to enforce: a booking, a POD
// upload, a KYC document, a GPS trace segment.
type Submission struct {
	// EventType names the operation, e.g. "pod.upload", "booking.create".
	EventType string

	// EntityType and EntityID identify the acting entity.
	EntityType string
	EntityID   string

	// Actor identifies who triggered the operation, for audit entries.
	Actor string

	// ContentHash is the hex SHA-256 of the submitted content. Empty
	// skips the duplicate check.
	ContentHash string

	// Event is the operation payload, addressed in conditions as
	// event.*.
	Event map[string]interface{}

	// Context is enrichment data (entity profile, trip state), addressed
	// as ctx.*.
	Context map[string]interface{}

	// ReceivedAt is when the gateway accepted the submission.
	ReceivedAt time.Time
}

// Decision codes.
const (
	CodeOK               = "OK"
	CodeEntityBlocked    = "ENTITY_BLOCKED"
	CodeDuplicateContent = "DUPLICATE_CONTENT"
	CodeRuleBlocked      = "RULE_BLOCKED"
)

// Decision is the outcome of enforcing one submission.
type Decision struct {
	// Allowed reports whether the operation may proceed.
	Allowed bool `json:"allowed"`

	// Status is the HTTP status the gateway should return.
	Status int `json:"status"`

	// Code is a stable machine-readable decision code.
	Code string `json:"code"`

	// Message is a human-readable explanation.
	Message string `json:"message,omitempty"`

	// AuditID references the audit entry recording this decision: the
	// quick-reject entry when the gate fired, the decision entry
	// otherwise. Always set on a decision returned without error.
	AuditID string `json:"auditId,omitempty"`

	// RuleSetVersion is the version of the rule set that produced the
	// decision.
	RuleSetVersion string `json:"ruleSetVersion,omitempty"`

	// Matches lists every rule that matched, in evaluation order.
	Matches []*RuleMatch `json:"matches,omitempty"`

	// SkippedRules lists rules whose condition failed to evaluate.
	SkippedRules []string `json:"skippedRules,omitempty"`

	// EvaluationTime is the end-to-end enforcement duration.
	EvaluationTime time.Duration `json:"-"`
}

// RuleMatch records one matched rule and its dispatched actions.
type RuleMatch struct {
	RuleID   string          `json:"ruleId"`
	Severity string          `json:"severity"`
	AuditID  string          `json:"auditId,omitempty"`
	Actions  []*ActionOutcome `json:"actions,omitempty"`
}

// ActionOutcome is the result of executing one action.
type ActionOutcome struct {
	// Name is the action name from the rule.
	Name string `json:"name"`

	// Success reports whether the action completed.
	Success bool `json:"success"`

	// Blocking marks actions that deny the submission (freezeShipment,
	// blockEntity). Non-blocking actions never flip a decision.
	Blocking bool `json:"blocking,omitempty"`

	// Message carries action detail for the decision response.
	Message string `json:"message,omitempty"`

	// Details carries action-specific output (ticket id, block id).
	Details map[string]interface{} `json:"details,omitempty"`

	// Err is the execution failure, if any. Not serialized; the
	// dispatcher records it in the audit trail.
	Err error `json:"-"`
}

// ActionInvocation is everything a handler gets to work with.
type ActionInvocation struct {
	// Rule is the matched rule.
	Rule *rules.Rule

	// Submission is the submission under enforcement.
	Submission *Submission

	// Params are the rule's action parameters with templates resolved.
	Params map[string]interface{}

	// AuditID is the audit entry recording the rule hit. Handlers that
	// create ledger records reference it.
	AuditID string
}

// ActionHandler executes one kind of action.
type ActionHandler interface {
	// Name is the action name rules refer to.
	Name() string

	// Execute performs the action. Returning an error marks the outcome
	// failed; the dispatcher continues with the rule's remaining
	// actions either way.
	Execute(ctx context.Context, inv *ActionInvocation) (*ActionOutcome, error)
}

// Registry resolves action names to handlers. Implementations must return
// a usable handler for every name; unknown actions get a logging no-op.
type Registry interface {
	Handler(name string) ActionHandler
}
