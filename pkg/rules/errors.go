package rules

import "fmt"

// RuleCompileError indicates a single rule failed to compile during load.
// It fails the whole load attempt: the previous rule set keeps serving.
type RuleCompileError struct {
	RuleID string
	Field  string // "condition", "severity", or "actions[i].param"
	Cause  error
}

// Error returns the error message.
func (e *RuleCompileError) Error() string {
	return fmt.Sprintf("rule %q: %s: %v", e.RuleID, e.Field, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *RuleCompileError) Unwrap() error {
	return e.Cause
}

// LoadError indicates a rule document could not be read or parsed.
type LoadError struct {
	Path  string
	Cause error
}

// Error returns the error message.
func (e *LoadError) Error() string {
	return fmt.Sprintf("rule load failed for %q: %v", e.Path, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *LoadError) Unwrap() error {
	return e.Cause
}
