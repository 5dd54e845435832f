package ledger_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger/storage"
)

func newTestAudit(t *testing.T) (*ledger.Audit, *storage.MemoryLedger) {
	t.Helper()
	store := storage.NewMemoryLedger()
	audit := ledger.NewAudit(store, ledger.AuditConfig{Signer: "node-1"}, nil)
	return audit, store
}

func appendN(t *testing.T, audit *ledger.Audit, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_, err := audit.Append(context.Background(), &ledger.AuditEntry{
			Source: "engine",
			Kind:   ledger.KindRuleHit,
			RuleID: fmt.Sprintf("R%d", i+1),
			Event:  map[string]interface{}{"n": i + 1},
		})
		if err != nil {
			t.Fatalf("append %d: %v", i+1, err)
		}
	}
}

func TestAudit_AppendChainsEntries(t *testing.T) {
	audit, store := newTestAudit(t)
	appendN(t, audit, 3)

	entries, err := store.List(context.Background(), ledger.DefaultStream, 1, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}

	prevHash := ""
	for i, e := range entries {
		if e.Seq != int64(i+1) {
			t.Errorf("entry %d: seq = %d, want %d", i, e.Seq, i+1)
		}
		if e.PrevHash != prevHash {
			t.Errorf("entry %d: prevHash = %q, want %q", i, e.PrevHash, prevHash)
		}
		want, err := ledger.ComputeHash(e)
		if err != nil {
			t.Fatalf("compute hash: %v", err)
		}
		if e.Hash != want {
			t.Errorf("entry %d: stored hash does not match recomputation", i)
		}
		if e.Signer != "node-1" {
			t.Errorf("entry %d: signer = %q", i, e.Signer)
		}
		if e.ID == "" || e.CreatedAt.IsZero() {
			t.Errorf("entry %d: id or timestamp not assigned", i)
		}
		prevHash = e.Hash
	}
}

func TestAudit_AppendSurvivesCanceledContext(t *testing.T) {
	audit, _ := newTestAudit(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := audit.Append(ctx, &ledger.AuditEntry{Source: "engine", Kind: ledger.KindRuleHit}); err != nil {
		t.Fatalf("append with canceled context: %v", err)
	}
}

func TestAudit_ConcurrentAppendsStayDense(t *testing.T) {
	audit, store := newTestAudit(t)

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := audit.Append(context.Background(), &ledger.AuditEntry{
				Source: "engine",
				Kind:   ledger.KindRuleHit,
			})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	res, err := audit.VerifyChain(context.Background(), ledger.DefaultStream)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.OK {
		t.Fatalf("chain broken after concurrent appends: %v", res.Broken)
	}
	if res.Entries != n {
		t.Fatalf("entries = %d, want %d", res.Entries, n)
	}
}

func TestAudit_VerifyChain_Empty(t *testing.T) {
	audit, _ := newTestAudit(t)
	res, err := audit.VerifyChain(context.Background(), ledger.DefaultStream)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.OK || res.Entries != 0 {
		t.Fatalf("empty stream should verify clean, got %+v", res)
	}
}

func TestAudit_VerifyChain_DetectsMutation(t *testing.T) {
	audit, store := newTestAudit(t)
	appendN(t, audit, 4)

	if !store.Tamper(ledger.DefaultStream, 2, func(e *ledger.AuditEntry) {
		e.RuleID = "R-FORGED"
	}) {
		t.Fatal("tamper target not found")
	}

	res, err := audit.VerifyChain(context.Background(), ledger.DefaultStream)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.OK {
		t.Fatal("mutation not detected")
	}
	if res.Broken == nil || res.Broken.Seq != 2 {
		t.Fatalf("broken link = %+v, want seq 2", res.Broken)
	}
}

func TestAudit_VerifyChain_DetectsRewrittenHash(t *testing.T) {
	audit, store := newTestAudit(t)
	appendN(t, audit, 4)

	// Recompute the hash after mutating, as an attacker covering their
	// tracks would. The next entry's prev hash no longer matches.
	store.Tamper(ledger.DefaultStream, 2, func(e *ledger.AuditEntry) {
		e.RuleID = "R-FORGED"
		h, _ := ledger.ComputeHash(e)
		e.Hash = h
	})

	res, err := audit.VerifyChain(context.Background(), ledger.DefaultStream)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.OK {
		t.Fatal("rewritten hash not detected")
	}
	if res.Broken == nil || res.Broken.Seq != 3 {
		t.Fatalf("broken link = %+v, want seq 3", res.Broken)
	}
}

func TestAudit_VerifyChain_DetectsGap(t *testing.T) {
	audit, store := newTestAudit(t)
	appendN(t, audit, 3)

	store.Tamper(ledger.DefaultStream, 2, func(e *ledger.AuditEntry) {
		e.Seq = 99
	})

	res, err := audit.VerifyChain(context.Background(), ledger.DefaultStream)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.OK {
		t.Fatal("sequence gap not detected")
	}
	if res.Broken == nil || res.Broken.Seq != 3 {
		t.Fatalf("broken link = %+v, want gap at seq 3", res.Broken)
	}
}

func TestAudit_IndependentStreams(t *testing.T) {
	audit, _ := newTestAudit(t)

	for i := 0; i < 2; i++ {
		for _, stream := range []string{"alpha", "beta"} {
			_, err := audit.Append(context.Background(), &ledger.AuditEntry{
				Stream: stream,
				Source: "engine",
				Kind:   ledger.KindRuleHit,
			})
			if err != nil {
				t.Fatalf("append to %s: %v", stream, err)
			}
		}
	}

	for _, stream := range []string{"alpha", "beta"} {
		res, err := audit.VerifyChain(context.Background(), stream)
		if err != nil {
			t.Fatalf("verify %s: %v", stream, err)
		}
		if !res.OK || res.Entries != 2 {
			t.Fatalf("stream %s: %+v", stream, res)
		}
	}
}

func TestComputeHash_Deterministic(t *testing.T) {
	e := &ledger.AuditEntry{
		ID:        "e-1",
		Stream:    "acs",
		Seq:       1,
		Source:    "engine",
		Kind:      ledger.KindRuleHit,
		Event:     map[string]interface{}{"b": 2, "a": 1, "nested": map[string]interface{}{"y": true, "x": false}},
		RuleID:    "R1",
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
		PrevHash:  "",
	}
	h1, err := ledger.ComputeHash(e)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	h2, err := ledger.ComputeHash(e)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("hash not deterministic: %s vs %s", h1, h2)
	}
	if len(h1) != 64 {
		t.Fatalf("expected hex sha256, got %q", h1)
	}

	e2 := *e
	e2.PrevHash = "deadbeef"
	h3, _ := ledger.ComputeHash(&e2)
	if h3 == h1 {
		t.Fatal("prev hash must affect the entry hash")
	}
}

func TestAudit_DuplicateStoreAppendDetected(t *testing.T) {
	store := storage.NewMemoryLedger()
	e := &ledger.AuditEntry{ID: "dup", Stream: "acs", Seq: 1, Source: "engine", Kind: ledger.KindRuleHit}
	if err := store.Append(context.Background(), e); err != nil {
		t.Fatalf("first append: %v", err)
	}
	err := store.Append(context.Background(), e)
	if !errors.Is(err, ledger.ErrDuplicateEntry) {
		t.Fatalf("expected ErrDuplicateEntry, got %v", err)
	}
}
