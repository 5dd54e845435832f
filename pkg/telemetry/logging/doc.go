// Package logging builds the structured slog logger used across the ACS.
//
// Log output is JSON or text per configuration. When redaction is enabled,
// string attribute values are passed through a redactor that masks phone
// numbers, email addresses, bank account numbers and identity-document
// numbers before they reach the output.
package logging
