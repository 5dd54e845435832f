package engine

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/config"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/expr"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/rules"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/metrics"
)

// Engine evaluates submissions against the current rule set and dispatches
// actions for every match.
type Engine struct {
	store    *rules.Store
	gate     *Gate
	registry Registry
	audit    *ledger.Audit
	metrics  *metrics.Collector
	cfg      config.EngineConfig
	logger   *slog.Logger
}

// New creates the engine. collector may be nil.
func New(store *rules.Store, gate *Gate, registry Registry, audit *ledger.Audit, collector *metrics.Collector, cfg config.EngineConfig, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.EvalTimeout <= 0 {
		cfg.EvalTimeout = config.DefaultEvalTimeout
	}
	return &Engine{
		store:    store,
		gate:     gate,
		registry: registry,
		audit:    audit,
		metrics:  collector,
		cfg:      cfg,
		logger:   logger.With("component", "engine"),
	}
}

// Enforce runs the full enforcement pipeline for one submission: the
// quick-reject gate, then every rule of the current snapshot in priority
// order. The returned error is fatal for the submission; the gateway maps
// it to a failure response. A blocked Decision is a normal outcome, not an
// error.
func (e *Engine) Enforce(ctx context.Context, sub *Submission) (*Decision, error) {
	start := time.Now()
	if sub.ReceivedAt.IsZero() {
		sub.ReceivedAt = start.UTC()
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.EvalTimeout)
	defer cancel()

	if d, err := e.gate.Check(ctx, sub); err != nil {
		e.recordEvaluation("error", start)
		return nil, err
	} else if d != nil {
		d.EvaluationTime = time.Since(start)
		e.recordEvaluation("quick_reject", start)
		return d, nil
	}

	// Every rule in this evaluation sees the same snapshot; a reload
	// mid-flight affects only subsequent submissions.
	snapshot := e.store.Current()
	env := buildEnv(sub, snapshot.Version(), e.cfg.NodeID, start)

	decision := &Decision{
		Allowed:        true,
		Status:         http.StatusOK,
		Code:           CodeOK,
		RuleSetVersion: snapshot.Version(),
	}
	var blockedBy string

	for _, rule := range snapshot.Rules() {
		if ctx.Err() != nil {
			e.recordEvaluation("error", start)
			return nil, ctx.Err()
		}

		matched, err := rule.Eval(env)
		if err != nil {
			// A broken condition disables the rule for this
			// submission, never the whole evaluation.
			e.logger.Warn("rule condition failed, skipping rule",
				"rule_id", rule.ID,
				"error", err)
			if e.metrics != nil {
				e.metrics.RecordRuleError(rule.ID)
			}
			decision.SkippedRules = append(decision.SkippedRules, rule.ID)
			continue
		}
		if !matched {
			continue
		}

		if e.metrics != nil {
			e.metrics.RecordRuleHit(rule.ID, string(rule.Severity))
		}

		match, err := e.dispatch(ctx, snapshot, rule, sub, env)
		if err != nil {
			e.recordEvaluation("error", start)
			return nil, err
		}
		decision.Matches = append(decision.Matches, match)
		e.applyOutcomes(decision, rule, match)
		if !decision.Allowed && blockedBy == "" {
			blockedBy = rule.ID
		}

		if e.cfg.StopOnCritical && rule.Severity == rules.SeverityCritical {
			e.logger.Info("critical rule matched, stopping evaluation",
				"rule_id", rule.ID)
			break
		}
	}

	// The decision itself goes on the chain, matched or not. An allow
	// with no audit trace is indistinguishable from a request that never
	// reached the engine, so a failed write here fails the submission.
	matched := make([]string, 0, len(decision.Matches))
	for _, m := range decision.Matches {
		matched = append(matched, m.RuleID)
	}
	auditID, err := e.audit.Append(ctx, &ledger.AuditEntry{
		Source:      "engine",
		Kind:        ledger.KindDecision,
		RuleID:      blockedBy,
		RuleVersion: snapshot.Version(),
		Actor:       sub.Actor,
		Event: map[string]interface{}{
			"eventType":    sub.EventType,
			"entityType":   sub.EntityType,
			"entityId":     sub.EntityID,
			"allowed":      decision.Allowed,
			"code":         decision.Code,
			"matchedRules": matched,
		},
	})
	if err != nil {
		if e.metrics != nil {
			e.metrics.RecordAuditAppend("failure")
		}
		e.recordEvaluation("error", start)
		return nil, &AuditWriteError{RuleID: blockedBy, Cause: err}
	}
	if e.metrics != nil {
		e.metrics.RecordAuditAppend("success")
	}
	decision.AuditID = auditID

	decision.EvaluationTime = time.Since(start)
	outcome := "allowed"
	if !decision.Allowed {
		outcome = "blocked"
	}
	e.recordEvaluation(outcome, start)

	e.logger.Info("enforcement decision",
		"event_type", sub.EventType,
		"entity_type", sub.EntityType,
		"entity_id", sub.EntityID,
		"allowed", decision.Allowed,
		"code", decision.Code,
		"matches", len(decision.Matches),
		"ruleset_version", decision.RuleSetVersion,
		"duration_ms", decision.EvaluationTime.Milliseconds())
	return decision, nil
}

// dispatch audits the rule hit and runs the rule's actions sequentially in
// declaration order. A handler failure is recorded and the remaining
// actions still run. Only a failed audit write aborts.
func (e *Engine) dispatch(ctx context.Context, snapshot *rules.RuleSet, rule *rules.Rule, sub *Submission, env expr.MapEnv) (*RuleMatch, error) {
	match := &RuleMatch{
		RuleID:   rule.ID,
		Severity: string(rule.Severity),
	}

	if rule.AuditRequired {
		auditID, err := e.audit.Append(ctx, &ledger.AuditEntry{
			Source:      "engine",
			Kind:        ledger.KindRuleHit,
			RuleID:      rule.ID,
			RuleVersion: snapshot.Version(),
			Actor:       sub.Actor,
			Event: map[string]interface{}{
				"eventType":  sub.EventType,
				"entityType": sub.EntityType,
				"entityId":   sub.EntityID,
				"severity":   string(rule.Severity),
			},
		})
		if err != nil {
			if e.metrics != nil {
				e.metrics.RecordAuditAppend("failure")
			}
			return nil, &AuditWriteError{RuleID: rule.ID, Cause: err}
		}
		if e.metrics != nil {
			e.metrics.RecordAuditAppend("success")
		}
		match.AuditID = auditID
	}

	for _, action := range rule.Actions {
		outcome := e.runAction(ctx, rule, action, sub, env, match.AuditID)
		match.Actions = append(match.Actions, outcome)

		status := "success"
		if !outcome.Success {
			status = "failure"
		}
		if e.metrics != nil {
			e.metrics.RecordActionDispatch(action.Name, status)
		}
	}
	return match, nil
}

func (e *Engine) runAction(ctx context.Context, rule *rules.Rule, action *rules.ActionDef, sub *Submission, env expr.MapEnv, auditID string) *ActionOutcome {
	params, err := action.ResolveParams(env)
	if err != nil {
		e.logger.Error("action parameter resolution failed",
			"rule_id", rule.ID,
			"action", action.Name,
			"error", err)
		e.auditActionFailure(ctx, rule, action.Name, sub, auditID, err)
		return &ActionOutcome{
			Name: action.Name,
			Err:  &ActionExecutionError{RuleID: rule.ID, Action: action.Name, Cause: err},
		}
	}

	handler := e.registry.Handler(action.Name)
	outcome, err := handler.Execute(ctx, &ActionInvocation{
		Rule:       rule,
		Submission: sub,
		Params:     params,
		AuditID:    auditID,
	})
	if err != nil {
		wrapped := &ActionExecutionError{RuleID: rule.ID, Action: action.Name, Cause: err}
		e.logger.Error("action execution failed",
			"rule_id", rule.ID,
			"action", action.Name,
			"error", err)
		e.auditActionFailure(ctx, rule, action.Name, sub, auditID, err)
		if outcome == nil {
			outcome = &ActionOutcome{Name: action.Name}
		}
		outcome.Success = false
		outcome.Err = wrapped
		return outcome
	}
	if outcome == nil {
		outcome = &ActionOutcome{Name: action.Name, Success: true}
	}
	return outcome
}

// auditActionFailure records a failed action attempt on the chain. The
// append is best effort: the decision entry is the durable record, this
// one carries the failure detail for ops.
func (e *Engine) auditActionFailure(ctx context.Context, rule *rules.Rule, action string, sub *Submission, ruleHitID string, cause error) {
	if _, err := e.audit.Append(ctx, &ledger.AuditEntry{
		Source: "engine",
		Kind:   ledger.KindActionFailed,
		RuleID: rule.ID,
		Actor:  sub.Actor,
		Event: map[string]interface{}{
			"action":     action,
			"entityType": sub.EntityType,
			"entityId":   sub.EntityID,
			"ruleHitId":  ruleHitID,
			"error":      cause.Error(),
		},
	}); err != nil {
		e.logger.Error("action failure audit entry failed",
			"rule_id", rule.ID,
			"action", action,
			"error", err)
	}
}

// applyOutcomes flips the decision on the first successful blocking
// action. Later matches never un-block a decision.
func (e *Engine) applyOutcomes(decision *Decision, rule *rules.Rule, match *RuleMatch) {
	for _, out := range match.Actions {
		if !out.Blocking || !out.Success || !decision.Allowed {
			continue
		}
		decision.Allowed = false
		decision.Status = http.StatusForbidden
		decision.Code = CodeRuleBlocked
		if out.Message != "" {
			decision.Message = out.Message
		} else if rule.Description != "" {
			decision.Message = rule.Description
		} else {
			decision.Message = "blocked by rule " + rule.ID
		}
	}
}

func (e *Engine) recordEvaluation(outcome string, start time.Time) {
	if e.metrics != nil {
		e.metrics.RecordEvaluation(outcome, time.Since(start))
	}
}
