package ledger

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a block or audit entry does not exist.
var ErrNotFound = errors.New("ledger: not found")

// ErrDuplicateEntry is returned when an audit entry ID is inserted twice.
var ErrDuplicateEntry = errors.New("ledger: duplicate audit entry")

// AppendError wraps a failure to durably append an audit entry. Callers on
// the enforcement path treat it as fatal for the decision.
type AppendError struct {
	Stream string
	Cause  error
}

func (e *AppendError) Error() string {
	return fmt.Sprintf("audit append failed on stream %q: %v", e.Stream, e.Cause)
}

func (e *AppendError) Unwrap() error { return e.Cause }

// ChainError describes the first broken link found by VerifyChain.
type ChainError struct {
	Stream string
	Seq    int64
	Reason string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("audit chain broken on stream %q at seq %d: %s", e.Stream, e.Seq, e.Reason)
}
