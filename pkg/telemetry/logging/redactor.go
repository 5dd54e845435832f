package logging

import (
	"regexp"
)

// Common sensitive pattern names.
const (
	PatternEmail       = "email"
	PatternPhone       = "phone"
	PatternPAN         = "pan"
	PatternAadhaar     = "aadhaar"
	PatternBearerToken = "bearer_token"
	PatternAPIKey      = "api_key"
)

// Redactor masks sensitive identifiers in strings. Events flowing through
// the engine carry KYC and contact details that must not land in logs.
type Redactor struct {
	patterns []redactPattern
}

type redactPattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string
}

// NewRedactor creates a Redactor with the builtin patterns.
func NewRedactor() *Redactor {
	mk := func(name, expr, repl string) redactPattern {
		return redactPattern{name: name, regex: regexp.MustCompile(expr), replacement: repl}
	}
	return &Redactor{
		patterns: []redactPattern{
			// Bearer tokens and API keys before anything else so the
			// narrower patterns below never see them.
			mk(PatternBearerToken, `(?i)bearer\s+[a-zA-Z0-9._\-]+`, "Bearer ***"),
			mk(PatternAPIKey, `(?i)(api[-_]?key[=:]\s*)[a-zA-Z0-9\-_]+`, "${1}***"),

			// Email addresses keep the domain.
			mk(PatternEmail, `[a-zA-Z0-9._%+\-]+(@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,})`, "***${1}"),

			// PAN: five letters, four digits, one letter.
			mk(PatternPAN, `\b[A-Z]{5}[0-9]{4}[A-Z]\b`, "PAN-***"),

			// Aadhaar: twelve digits, optionally space-grouped in fours.
			mk(PatternAadhaar, `\b\d{4}\s?\d{4}\s?\d{4}\b`, "AADHAAR-***"),

			// Indian mobile numbers with optional +91 prefix.
			mk(PatternPhone, `(\+91[\-\s]?)?\b[6-9]\d{9}\b`, "PHONE-***"),
		},
	}
}

// Redact masks every sensitive pattern in s.
func (r *Redactor) Redact(s string) string {
	for _, p := range r.patterns {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}
