// Package dedup provides a duplicate-content index for the quick-reject
// gate. Submissions carry a content hash (POD scans, KYC documents,
// booking payloads); resubmitting the same bytes within the window is
// rejected before any rule runs.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Index answers "has this content been seen within the window" in O(1)
// lookups.
type Index interface {
	// CheckAndRecord reports whether the hash was already seen within the
	// window and records this sighting. The check and the record are one
	// operation so two concurrent submissions of the same content cannot
	// both pass.
	CheckAndRecord(ctx context.Context, hash string, at time.Time) (seen bool, err error)

	// Cleanup removes entries last seen before the cutoff.
	Cleanup(ctx context.Context, cutoff time.Time) (removed int64, err error)

	// Close releases the index.
	Close() error
}

// HashContent returns the hex-encoded SHA-256 of the content. Empty
// content hashes to the empty string, which the gate treats as "no
// dedup check".
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}
