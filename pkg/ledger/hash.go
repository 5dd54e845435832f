package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// canonicalEntry is the exact byte layout that gets hashed. Field order is
// fixed by the struct, map keys are sorted by encoding/json, and timestamps
// are normalized to UTC nanosecond precision, so the same entry always
// serializes to the same bytes. The Hash field itself is excluded.
type canonicalEntry struct {
	ID          string                 `json:"id"`
	Stream      string                 `json:"stream"`
	Seq         int64                  `json:"seq"`
	Source      string                 `json:"source"`
	Kind        string                 `json:"kind"`
	Event       map[string]interface{} `json:"event,omitempty"`
	RuleID      string                 `json:"ruleId,omitempty"`
	RuleVersion string                 `json:"ruleVersion,omitempty"`
	Actor       string                 `json:"actor,omitempty"`
	CreatedAt   string                 `json:"createdAt"`
	PrevHash    string                 `json:"prevHash"`
	Signer      string                 `json:"signer,omitempty"`
}

// ComputeHash returns the hex-encoded SHA-256 of the entry's canonical
// serialization. PrevHash is part of the serialization, which is what links
// consecutive entries into a chain.
func ComputeHash(e *AuditEntry) (string, error) {
	data, err := json.Marshal(canonicalEntry{
		ID:          e.ID,
		Stream:      e.Stream,
		Seq:         e.Seq,
		Source:      e.Source,
		Kind:        e.Kind,
		Event:       e.Event,
		RuleID:      e.RuleID,
		RuleVersion: e.RuleVersion,
		Actor:       e.Actor,
		CreatedAt:   e.CreatedAt.UTC().Format(time.RFC3339Nano),
		PrevHash:    e.PrevHash,
		Signer:      e.Signer,
	})
	if err != nil {
		return "", fmt.Errorf("canonicalize audit entry %s: %w", e.ID, err)
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
