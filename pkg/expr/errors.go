package expr

import "fmt"

// SyntaxError indicates the expression source failed to compile.
type SyntaxError struct {
	// Source is the expression text that failed to parse.
	Source string

	// Pos is the byte offset of the offending token.
	Pos int

	// Message describes what the parser expected.
	Message string
}

// Error returns the error message.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("expression syntax error at offset %d: %s", e.Pos, e.Message)
}

// FieldNotFoundError indicates an expression referenced a field that is not
// present in the evaluation environment.
type FieldNotFoundError struct {
	Path string
}

// Error returns the error message.
func (e *FieldNotFoundError) Error() string {
	return fmt.Sprintf("field not found: %q", e.Path)
}

// TypeError indicates an operator or function was applied to operands of an
// unsupported type.
type TypeError struct {
	Op      string
	Message string
}

// Error returns the error message.
func (e *TypeError) Error() string {
	return fmt.Sprintf("type error in %q: %s", e.Op, e.Message)
}
