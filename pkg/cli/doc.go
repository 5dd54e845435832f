// Package cli provides shared helpers for the acs command line:
// typed command errors, output formatting, and signal handling.
package cli
