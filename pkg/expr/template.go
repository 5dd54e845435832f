package expr

import (
	"fmt"
	"strings"
)

// Template is a compiled action payload template. Literal text is kept
// verbatim; {{...}} placeholders are compiled expressions evaluated against
// the same environment as the rule condition that triggered the action.
type Template struct {
	source   string
	segments []segment
}

// segment is either literal text or a compiled placeholder expression.
type segment struct {
	literal string
	expr    *Expr
}

// CompileTemplate compiles a payload string that may contain {{...}}
// placeholders. A string with no placeholders compiles to a constant
// template. Malformed placeholders fail compilation, which in turn fails
// the whole rule load.
func CompileTemplate(source string) (*Template, error) {
	t := &Template{source: source}

	rest := source
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			break
		}
		closing := strings.Index(rest[open:], "}}")
		if closing < 0 {
			return nil, &SyntaxError{Source: source, Pos: len(source) - len(rest) + open, Message: "unterminated {{ placeholder"}
		}
		closing += open

		if open > 0 {
			t.segments = append(t.segments, segment{literal: rest[:open]})
		}

		inner := rest[open+2 : closing]
		compiled, err := Compile(inner)
		if err != nil {
			return nil, fmt.Errorf("template placeholder %q: %w", inner, err)
		}
		t.segments = append(t.segments, segment{expr: compiled})

		rest = rest[closing+2:]
	}
	if rest != "" {
		t.segments = append(t.segments, segment{literal: rest})
	}

	return t, nil
}

// Source returns the original template text.
func (t *Template) Source() string {
	return t.source
}

// IsConstant reports whether the template contains no placeholders.
func (t *Template) IsConstant() bool {
	for _, s := range t.segments {
		if s.expr != nil {
			return false
		}
	}
	return true
}

// Render evaluates the template against the environment. A template that is
// exactly one placeholder yields the placeholder's typed value; mixed
// templates yield the concatenated string.
func (t *Template) Render(env Env) (interface{}, error) {
	if len(t.segments) == 1 && t.segments[0].expr != nil {
		return t.segments[0].expr.Eval(env)
	}

	var sb strings.Builder
	for _, s := range t.segments {
		if s.expr == nil {
			sb.WriteString(s.literal)
			continue
		}
		v, err := s.expr.Eval(env)
		if err != nil {
			return nil, err
		}
		sb.WriteString(stringify(v))
	}
	return sb.String(), nil
}
