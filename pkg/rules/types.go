package rules

import (
	"fmt"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/expr"
)

// Severity grades how serious a rule violation is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity validates and normalizes a severity string.
func ParseSeverity(s string) (Severity, error) {
	switch Severity(s) {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return Severity(s), nil
	default:
		return "", fmt.Errorf("unknown severity %q", s)
	}
}

// ActionDef is one named action attached to a rule, with a payload whose
// string values may contain {{...}} templates.
type ActionDef struct {
	// Name is the action name dispatched through the registry
	// (freezeShipment, blockEntity, createTicket, emitEvent, or an
	// operator-defined name).
	Name string

	// Raw holds the payload as declared in the rule file.
	Raw map[string]interface{}

	// templates holds compiled templates for the string-valued payload
	// entries, keyed by payload key.
	templates map[string]*expr.Template
}

// ResolveParams renders the action payload against the evaluation
// environment. Non-string payload values pass through unchanged; string
// values are rendered as templates against the same environment the rule
// condition was evaluated with.
func (a *ActionDef) ResolveParams(env expr.Env) (map[string]interface{}, error) {
	resolved := make(map[string]interface{}, len(a.Raw))
	for key, raw := range a.Raw {
		tmpl, ok := a.templates[key]
		if !ok {
			resolved[key] = raw
			continue
		}
		v, err := tmpl.Render(env)
		if err != nil {
			return nil, fmt.Errorf("param %q: %w", key, err)
		}
		resolved[key] = v
	}
	return resolved, nil
}

// Rule is a single compiled policy statement. Rules are immutable once
// compiled; a changed condition requires a full reload, which recompiles
// the whole set.
type Rule struct {
	// ID uniquely identifies the rule within a rule file.
	ID string

	// Priority orders evaluation: higher evaluates first. Ties keep the
	// declaration order from the rule file.
	Priority int

	// Severity grades the violation this rule detects.
	Severity Severity

	// Description is operator-facing documentation.
	Description string

	// Condition is the expression source as declared.
	Condition string

	// Actions run in declaration order when the condition is true.
	Actions []*ActionDef

	// AuditRequired forces an audit entry even for rules whose actions
	// produce none of their own.
	AuditRequired bool

	compiled *expr.Expr
}

// Eval evaluates the rule's compiled condition against the environment.
func (r *Rule) Eval(env expr.Env) (bool, error) {
	return r.compiled.EvalBool(env)
}

// RuleSet is an immutable, priority-sorted collection of compiled rules.
// A RuleSet is never mutated after construction; reload builds a new one.
type RuleSet struct {
	rules    []*Rule
	version  string
	loadedAt time.Time
}

// Rules returns the rules in evaluation order (priority descending, ties in
// declaration order). Callers must not modify the returned slice.
func (rs *RuleSet) Rules() []*Rule {
	return rs.rules
}

// Len returns the number of rules in the set.
func (rs *RuleSet) Len() int {
	return len(rs.rules)
}

// Version identifies the rule source this set was compiled from (a digest
// of the raw document). It is recorded on audit entries so a decision can
// be traced back to the exact rules that produced it.
func (rs *RuleSet) Version() string {
	return rs.version
}

// LoadedAt is when this set was compiled.
func (rs *RuleSet) LoadedAt() time.Time {
	return rs.loadedAt
}

// Find returns the rule with the given id, or nil.
func (rs *RuleSet) Find(id string) *Rule {
	for _, r := range rs.rules {
		if r.ID == id {
			return r
		}
	}
	return nil
}
