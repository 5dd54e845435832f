package expr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// tokenKind classifies lexer tokens.
type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp     // operators and punctuation: && || ! == != < <= > >= + - * / % ( ) , .
	tokKeyword // true, false, null
)

// token is a single lexical unit of an expression.
type token struct {
	kind tokenKind
	text string
	num  float64 // valid when kind == tokNumber
	pos  int     // byte offset in source
}

// maxTokens bounds expression size. Conditions are short formulas; anything
// larger is either generated or abusive.
const maxTokens = 512

// lex splits an expression source string into tokens.
func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]

		// Skip whitespace
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		start := i
		switch {
		case isDigit(c):
			j := i
			for j < len(src) && (isDigit(src[j]) || src[j] == '.') {
				j++
			}
			text := src[i:j]
			num, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &SyntaxError{Source: src, Pos: start, Message: fmt.Sprintf("invalid number %q", text)}
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: num, pos: start})
			i = j

		case c == '\'' || c == '"':
			quote := c
			j := i + 1
			var sb strings.Builder
			for j < len(src) && src[j] != quote {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				sb.WriteByte(src[j])
				j++
			}
			if j >= len(src) {
				return nil, &SyntaxError{Source: src, Pos: start, Message: "unterminated string literal"}
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), pos: start})
			i = j + 1

		case isIdentStart(rune(c)):
			j := i
			for j < len(src) && isIdentPart(rune(src[j])) {
				j++
			}
			text := src[i:j]
			kind := tokIdent
			if text == "true" || text == "false" || text == "null" {
				kind = tokKeyword
			}
			tokens = append(tokens, token{kind: kind, text: text, pos: start})
			i = j

		default:
			// Two-character operators first
			if i+1 < len(src) {
				two := src[i : i+2]
				switch two {
				case "&&", "||", "==", "!=", "<=", ">=":
					tokens = append(tokens, token{kind: tokOp, text: two, pos: start})
					i += 2
					continue
				}
			}
			switch c {
			case '!', '<', '>', '+', '-', '*', '/', '%', '(', ')', ',', '.':
				tokens = append(tokens, token{kind: tokOp, text: string(c), pos: start})
				i++
			default:
				return nil, &SyntaxError{Source: src, Pos: start, Message: fmt.Sprintf("unexpected character %q", string(c))}
			}
		}

		if len(tokens) > maxTokens {
			return nil, &SyntaxError{Source: src, Pos: start, Message: fmt.Sprintf("expression exceeds %d tokens", maxTokens)}
		}
	}

	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
