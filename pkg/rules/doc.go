// Package rules implements the ACS rule store.
//
// Rules are declared in a YAML document and compiled into an immutable,
// priority-sorted RuleSet. Loading is all-or-nothing: a single rule with a
// malformed condition or action template fails the whole load, so a bad
// rule file can never silently disable enforcement.
//
// The Store publishes the active RuleSet behind an atomic pointer.
// Evaluations capture a snapshot and keep using it for their whole pass;
// hot-reload builds a brand-new set and swaps the pointer, so readers never
// block and never observe a partially updated set. A reload that fails to
// compile leaves the previous good set serving.
package rules
