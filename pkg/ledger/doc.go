// Package ledger defines the durable state of the ACS: blocks and the
// tamper-evident audit chain.
//
// A block makes an entity (user, truck, shipment, device) ineligible for
// sensitive operations until explicitly lifted. Multiple concurrent blocks
// may exist for one entity; "blocked" means at least one active block.
//
// The audit ledger is append-only. Every entry carries the SHA-256 hash of
// its own canonical serialization, which includes the hash of the previous
// entry in the same stream. Recomputing the hashes over a stored range
// therefore detects any insertion, deletion or mutation after the fact.
// Appends to one stream are serialized by the Audit appender; see Audit.
package ledger
