package expr

import (
	"fmt"
	"strings"
)

// node is an AST node of a compiled expression.
type node interface {
	eval(env Env) (interface{}, error)
}

// litNode is a literal value (number, string, bool, null).
type litNode struct {
	value interface{}
}

// pathNode is a dotted field reference (event.gps.deltaDistanceKm).
type pathNode struct {
	parts []string
}

func (p *pathNode) String() string {
	return strings.Join(p.parts, ".")
}

// unaryNode is a prefix operator application (!x, -x).
type unaryNode struct {
	op string
	x  node
}

// binaryNode is an infix operator application.
type binaryNode struct {
	op   string
	l, r node
}

// callNode is a builtin function call.
type callNode struct {
	name string
	args []node
}

// maxParseDepth bounds condition nesting so that malformed or hostile rule
// files cannot blow the stack at compile time.
const maxParseDepth = 64

// Binding powers, low to high. Higher binds tighter.
var bindingPower = map[string]int{
	"||": 10,
	"&&": 20,
	"==": 30, "!=": 30,
	"<": 40, "<=": 40, ">": 40, ">=": 40,
	"+": 50, "-": 50,
	"*": 60, "/": 60, "%": 60,
}

// parser implements a Pratt parser over the token stream.
type parser struct {
	src    string
	tokens []token
	pos    int
}

func (p *parser) peek() token {
	return p.tokens[p.pos]
}

func (p *parser) next() token {
	t := p.tokens[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) errorAt(t token, format string, args ...interface{}) error {
	return &SyntaxError{Source: p.src, Pos: t.pos, Message: fmt.Sprintf(format, args...)}
}

// parseExpr parses an expression with at least the given minimum binding power.
func (p *parser) parseExpr(minBP, depth int) (node, error) {
	if depth > maxParseDepth {
		return nil, p.errorAt(p.peek(), "expression nesting exceeds depth %d", maxParseDepth)
	}

	left, err := p.parsePrefix(depth)
	if err != nil {
		return nil, err
	}

	for {
		t := p.peek()
		if t.kind != tokOp {
			break
		}
		bp, ok := bindingPower[t.text]
		if !ok || bp < minBP {
			break
		}
		p.next()

		right, err := p.parseExpr(bp+1, depth+1)
		if err != nil {
			return nil, err
		}
		left = &binaryNode{op: t.text, l: left, r: right}
	}

	return left, nil
}

// parsePrefix parses a prefix operator, literal, path, call, or
// parenthesized subexpression.
func (p *parser) parsePrefix(depth int) (node, error) {
	t := p.next()

	switch t.kind {
	case tokNumber:
		return &litNode{value: t.num}, nil

	case tokString:
		return &litNode{value: t.text}, nil

	case tokKeyword:
		switch t.text {
		case "true":
			return &litNode{value: true}, nil
		case "false":
			return &litNode{value: false}, nil
		default: // null
			return &litNode{value: nil}, nil
		}

	case tokIdent:
		// Function call or dotted path
		if p.peek().kind == tokOp && p.peek().text == "(" {
			return p.parseCall(t, depth)
		}
		return p.parsePath(t)

	case tokOp:
		switch t.text {
		case "!", "-":
			x, err := p.parsePrefix(depth + 1)
			if err != nil {
				return nil, err
			}
			return &unaryNode{op: t.text, x: x}, nil
		case "(":
			inner, err := p.parseExpr(0, depth+1)
			if err != nil {
				return nil, err
			}
			if closing := p.next(); closing.kind != tokOp || closing.text != ")" {
				return nil, p.errorAt(closing, "expected ')'")
			}
			return inner, nil
		}
	}

	return nil, p.errorAt(t, "unexpected token %q", t.text)
}

// parsePath consumes the remaining ".ident" segments after the first
// identifier.
func (p *parser) parsePath(first token) (node, error) {
	parts := []string{first.text}
	for p.peek().kind == tokOp && p.peek().text == "." {
		p.next()
		seg := p.next()
		if seg.kind != tokIdent && seg.kind != tokKeyword {
			return nil, p.errorAt(seg, "expected identifier after '.'")
		}
		parts = append(parts, seg.text)
	}
	return &pathNode{parts: parts}, nil
}

// parseCall parses a builtin function call. The function name must be one of
// the known builtins; unknown names fail at compile time rather than at
// evaluation time.
func (p *parser) parseCall(name token, depth int) (node, error) {
	if _, ok := builtins[name.text]; !ok {
		return nil, p.errorAt(name, "unknown function %q", name.text)
	}

	p.next() // consume '('

	var args []node
	if p.peek().kind == tokOp && p.peek().text == ")" {
		p.next()
	} else {
		for {
			arg, err := p.parseExpr(0, depth+1)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			t := p.next()
			if t.kind == tokOp && t.text == ")" {
				break
			}
			if t.kind != tokOp || t.text != "," {
				return nil, p.errorAt(t, "expected ',' or ')' in argument list")
			}
		}
	}

	if want := builtins[name.text].arity; len(args) != want {
		return nil, p.errorAt(name, "function %q expects %d argument(s), got %d", name.text, want, len(args))
	}

	return &callNode{name: name.text, args: args}, nil
}

// Expr is a compiled, immutable expression. It is safe for concurrent
// evaluation by multiple goroutines.
type Expr struct {
	source string
	root   node
}

// Compile parses and compiles an expression source string.
func Compile(source string) (*Expr, error) {
	if strings.TrimSpace(source) == "" {
		return nil, &SyntaxError{Source: source, Pos: 0, Message: "empty expression"}
	}

	tokens, err := lex(source)
	if err != nil {
		return nil, err
	}

	p := &parser{src: source, tokens: tokens}
	root, err := p.parseExpr(0, 0)
	if err != nil {
		return nil, err
	}

	if trailing := p.peek(); trailing.kind != tokEOF {
		return nil, p.errorAt(trailing, "unexpected trailing token %q", trailing.text)
	}

	return &Expr{source: source, root: root}, nil
}

// Source returns the original expression text.
func (e *Expr) Source() string {
	return e.source
}
