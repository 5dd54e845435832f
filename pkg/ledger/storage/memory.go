package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
)

var errBlocksUnavailable = errors.New("block store unavailable")

// MemoryLedger is an in-memory BlockStore and AuditStore. Used in tests and
// for local development without a database file.
type MemoryLedger struct {
	mu         sync.RWMutex
	blocks     map[string]*ledger.ACSBlock
	audit      map[string]*ledger.AuditEntry
	streams    map[string][]*ledger.AuditEntry
	failBlocks bool
}

// NewMemoryLedger creates an empty in-memory ledger.
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		blocks:  make(map[string]*ledger.ACSBlock),
		audit:   make(map[string]*ledger.AuditEntry),
		streams: make(map[string][]*ledger.AuditEntry),
	}
}

// FailBlocks makes subsequent block reads fail. Test hook for outage
// behavior.
func (m *MemoryLedger) FailBlocks(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failBlocks = fail
}

// Insert stores a new block.
func (m *MemoryLedger) Insert(ctx context.Context, b *ledger.ACSBlock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *b
	m.blocks[b.ID] = &cp
	return nil
}

// ListActive returns active blocks for the entity, newest first.
func (m *MemoryLedger) ListActive(ctx context.Context, entityType, entityID string) ([]*ledger.ACSBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.failBlocks {
		return nil, errBlocksUnavailable
	}
	out := []*ledger.ACSBlock{}
	for _, b := range m.blocks {
		if b.Active && b.EntityType == entityType && b.EntityID == entityID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Get returns the block by ID.
func (m *MemoryLedger) Get(ctx context.Context, id string) (*ledger.ACSBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[id]
	if !ok {
		return nil, ledger.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

// Deactivate lifts an active block.
func (m *MemoryLedger) Deactivate(ctx context.Context, id, liftedBy string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.blocks[id]
	if !ok || !b.Active {
		return ledger.ErrNotFound
	}
	b.Active = false
	b.UnblockedBy = liftedBy
	t := at.UTC()
	b.UnblockedAt = &t
	return nil
}

// ListExpired returns active blocks expired as of asOf.
func (m *MemoryLedger) ListExpired(ctx context.Context, asOf time.Time) ([]*ledger.ACSBlock, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*ledger.ACSBlock{}
	for _, b := range m.blocks {
		if b.Active && b.Expired(asOf) {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ExpiresAt.Before(*out[j].ExpiresAt)
	})
	return out, nil
}

// Append stores an audit entry.
func (m *MemoryLedger) Append(ctx context.Context, e *ledger.AuditEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.audit[e.ID]; ok {
		return ledger.ErrDuplicateEntry
	}
	for _, existing := range m.streams[e.Stream] {
		if existing.Seq == e.Seq {
			return ledger.ErrDuplicateEntry
		}
	}
	cp := *e
	m.audit[e.ID] = &cp
	m.streams[e.Stream] = append(m.streams[e.Stream], &cp)
	return nil
}

// Tail returns the highest-seq entry in the stream, or nil when empty.
func (m *MemoryLedger) Tail(ctx context.Context, stream string) (*ledger.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.streams[stream]
	if len(entries) == 0 {
		return nil, nil
	}
	var tail *ledger.AuditEntry
	for _, e := range entries {
		if tail == nil || e.Seq > tail.Seq {
			tail = e
		}
	}
	cp := *tail
	return &cp, nil
}

// List returns entries with seq >= fromSeq in ascending order.
func (m *MemoryLedger) List(ctx context.Context, stream string, fromSeq int64, limit int) ([]*ledger.AuditEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*ledger.AuditEntry{}
	for _, e := range m.streams[stream] {
		if e.Seq >= fromSeq {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Tamper mutates a stored audit entry in place. Test hook for chain
// verification; the SQLite backend has no equivalent.
func (m *MemoryLedger) Tamper(stream string, seq int64, mutate func(*ledger.AuditEntry)) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.streams[stream] {
		if e.Seq == seq {
			mutate(e)
			m.audit[e.ID] = e
			return true
		}
	}
	return false
}
