package storage

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
)

type ledgerStore interface {
	ledger.BlockStore
	ledger.AuditStore
}

// backends returns each storage implementation under test.
func backends(t *testing.T) map[string]ledgerStore {
	t.Helper()

	sq, err := NewSQLiteLedger(&SQLiteConfig{
		Path:         filepath.Join(t.TempDir(), "ledger.db"),
		MaxOpenConns: 2,
		MaxIdleConns: 1,
		WALMode:      true,
		BusyTimeout:  time.Second,
	}, nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { sq.Close() })

	return map[string]ledgerStore{
		"sqlite": sq,
		"memory": NewMemoryLedger(),
	}
}

func testBlock(id, entityType, entityID string) *ledger.ACSBlock {
	return &ledger.ACSBlock{
		ID:         id,
		EntityType: entityType,
		EntityID:   entityID,
		Reason:     ledger.ReasonFraudSuspected,
		Severity:   ledger.SeverityCritical,
		Scope:      map[string]interface{}{"shipmentId": "S-77"},
		CreatedBy:  "rule:R1",
		CreatedAt:  time.Now().UTC().Truncate(time.Millisecond),
		Active:     true,
	}
}

func TestBlockLifecycle(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			if err := store.Insert(ctx, testBlock("b-1", "user", "U-1")); err != nil {
				t.Fatalf("insert: %v", err)
			}
			if err := store.Insert(ctx, testBlock("b-2", "user", "U-1")); err != nil {
				t.Fatalf("insert: %v", err)
			}
			if err := store.Insert(ctx, testBlock("b-3", "truck", "T-9")); err != nil {
				t.Fatalf("insert: %v", err)
			}

			active, err := store.ListActive(ctx, "user", "U-1")
			if err != nil {
				t.Fatalf("list active: %v", err)
			}
			if len(active) != 2 {
				t.Fatalf("expected 2 active blocks for U-1, got %d", len(active))
			}

			got, err := store.Get(ctx, "b-1")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.Scope["shipmentId"] != "S-77" {
				t.Errorf("scope round-trip: %v", got.Scope)
			}
			if got.Reason != ledger.ReasonFraudSuspected || got.Severity != ledger.SeverityCritical {
				t.Errorf("fields round-trip: %+v", got)
			}

			if err := store.Deactivate(ctx, "b-1", "ops:mehta", time.Now()); err != nil {
				t.Fatalf("deactivate: %v", err)
			}
			active, err = store.ListActive(ctx, "user", "U-1")
			if err != nil {
				t.Fatalf("list active: %v", err)
			}
			if len(active) != 1 || active[0].ID != "b-2" {
				t.Fatalf("after lift expected only b-2 active, got %v", active)
			}

			lifted, err := store.Get(ctx, "b-1")
			if err != nil {
				t.Fatalf("get lifted: %v", err)
			}
			if lifted.Active || lifted.UnblockedBy != "ops:mehta" || lifted.UnblockedAt == nil {
				t.Errorf("lifted block not recorded: %+v", lifted)
			}

			// Lifting again is an error, the row stays put.
			if err := store.Deactivate(ctx, "b-1", "ops:mehta", time.Now()); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("double lift: expected ErrNotFound, got %v", err)
			}

			if _, err := store.Get(ctx, "no-such"); !errors.Is(err, ledger.ErrNotFound) {
				t.Errorf("get missing: expected ErrNotFound, got %v", err)
			}

			none, err := store.ListActive(ctx, "user", "U-unknown")
			if err != nil {
				t.Fatalf("list unknown entity: %v", err)
			}
			if len(none) != 0 {
				t.Errorf("unknown entity should have no blocks, got %d", len(none))
			}
		})
	}
}

func TestListExpired(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			now := time.Now().UTC()

			past := now.Add(-time.Hour)
			future := now.Add(time.Hour)

			expired := testBlock("exp-1", "device", "D-1")
			expired.ExpiresAt = &past
			fresh := testBlock("exp-2", "device", "D-2")
			fresh.ExpiresAt = &future
			forever := testBlock("exp-3", "device", "D-3")

			for _, b := range []*ledger.ACSBlock{expired, fresh, forever} {
				if err := store.Insert(ctx, b); err != nil {
					t.Fatalf("insert: %v", err)
				}
			}

			got, err := store.ListExpired(ctx, now)
			if err != nil {
				t.Fatalf("list expired: %v", err)
			}
			if len(got) != 1 || got[0].ID != "exp-1" {
				t.Fatalf("expected only exp-1 expired, got %v", got)
			}
		})
	}
}

func TestAuditAppendAndList(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			prev := ""
			for i := int64(1); i <= 3; i++ {
				e := &ledger.AuditEntry{
					ID:        uuidLike("e", i),
					Stream:    "acs",
					Seq:       i,
					Source:    "engine",
					Kind:      ledger.KindRuleHit,
					Event:     map[string]interface{}{"seq": i},
					RuleID:    "R1",
					CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
					PrevHash:  prev,
				}
				h, err := ledger.ComputeHash(e)
				if err != nil {
					t.Fatalf("hash: %v", err)
				}
				e.Hash = h
				if err := store.Append(ctx, e); err != nil {
					t.Fatalf("append %d: %v", i, err)
				}
				prev = h
			}

			tail, err := store.Tail(ctx, "acs")
			if err != nil {
				t.Fatalf("tail: %v", err)
			}
			if tail == nil || tail.Seq != 3 {
				t.Fatalf("tail = %+v, want seq 3", tail)
			}

			entries, err := store.List(ctx, "acs", 2, 0)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(entries) != 2 || entries[0].Seq != 2 || entries[1].Seq != 3 {
				t.Fatalf("list from seq 2: %v", entries)
			}
			if entries[0].Event["seq"] != float64(2) && entries[0].Event["seq"] != int64(2) {
				t.Errorf("event round-trip: %v", entries[0].Event)
			}

			empty, err := store.Tail(ctx, "other")
			if err != nil {
				t.Fatalf("tail other: %v", err)
			}
			if empty != nil {
				t.Errorf("empty stream tail should be nil, got %+v", empty)
			}
		})
	}
}

func TestAuditDuplicateRejected(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			e := &ledger.AuditEntry{
				ID: "dup-1", Stream: "acs", Seq: 1,
				Source: "engine", Kind: ledger.KindRuleHit,
				CreatedAt: time.Now().UTC(), Hash: "h",
			}
			if err := store.Append(ctx, e); err != nil {
				t.Fatalf("first append: %v", err)
			}
			if err := store.Append(ctx, e); !errors.Is(err, ledger.ErrDuplicateEntry) {
				t.Errorf("duplicate id: expected ErrDuplicateEntry, got %v", err)
			}

			same := &ledger.AuditEntry{
				ID: "dup-2", Stream: "acs", Seq: 1,
				Source: "engine", Kind: ledger.KindRuleHit,
				CreatedAt: time.Now().UTC(), Hash: "h",
			}
			if err := store.Append(ctx, same); !errors.Is(err, ledger.ErrDuplicateEntry) {
				t.Errorf("duplicate (stream, seq): expected ErrDuplicateEntry, got %v", err)
			}
		})
	}
}

func uuidLike(prefix string, n int64) string {
	return fmt.Sprintf("%s-%d", prefix, n)
}
