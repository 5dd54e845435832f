package engine

import "fmt"

// QuickRejectError reports that the gate could not complete its checks.
// The gateway treats it as fatal for the submission (fail closed).
type QuickRejectError struct {
	Check string
	Cause error
}

func (e *QuickRejectError) Error() string {
	return fmt.Sprintf("quick-reject %s check failed: %v", e.Check, e.Cause)
}

func (e *QuickRejectError) Unwrap() error { return e.Cause }

// AuditWriteError reports that a decision could not be durably audited.
// The decision must not stand: the gateway fails the submission.
type AuditWriteError struct {
	RuleID string
	Cause  error
}

func (e *AuditWriteError) Error() string {
	if e.RuleID != "" {
		return fmt.Sprintf("audit write failed for rule %s: %v", e.RuleID, e.Cause)
	}
	return fmt.Sprintf("audit write failed: %v", e.Cause)
}

func (e *AuditWriteError) Unwrap() error { return e.Cause }

// ActionExecutionError wraps a handler failure. It is recorded on the
// outcome and in the audit trail, never propagated out of the dispatcher.
type ActionExecutionError struct {
	RuleID string
	Action string
	Cause  error
}

func (e *ActionExecutionError) Error() string {
	return fmt.Sprintf("action %s of rule %s failed: %v", e.Action, e.RuleID, e.Cause)
}

func (e *ActionExecutionError) Unwrap() error { return e.Cause }
