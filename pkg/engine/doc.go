// Package engine evaluates compliance rules against incoming submissions
// and dispatches the actions of every matching rule.
//
// Enforcement runs in two phases. The quick-reject gate checks the block
// ledger and the duplicate-content index before any rule runs; a rejection
// there writes exactly one audit entry and short-circuits the evaluation.
// Submissions that pass the gate are evaluated against the current rule
// set snapshot in priority order. A rule whose condition fails to evaluate
// is recorded and skipped; it never aborts the evaluation. Actions of a
// matched rule run sequentially in declaration order.
//
// Failures to durably audit a decision fail the decision: the caller
// receives an AuditWriteError and must not let the submission through.
package engine
