package rules

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeRuleFile(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing rule file: %v", err)
	}
	return path
}

const storeRuleDoc = `
rules:
  - id: R1
    priority: 100
    severity: critical
    condition: 'event.gps.deltaDistanceKm > 200'
    actions:
      - action: freezeShipment
        params:
          shipmentId: '{{event.shipment.id}}'
          reason: GPS_JUMP
`

const storeRuleDocUpdated = `
rules:
  - id: R1
    priority: 100
    severity: critical
    condition: 'event.gps.deltaDistanceKm > 500'
    actions:
      - action: freezeShipment
        params:
          shipmentId: '{{event.shipment.id}}'
          reason: GPS_JUMP
`

const storeRuleDocBroken = `
rules:
  - id: R1
    priority: 100
    severity: critical
    condition: 'event.gps.deltaDistanceKm >'
`

func TestStore_InitialLoad(t *testing.T) {
	path := writeRuleFile(t, t.TempDir(), storeRuleDoc)

	store, err := NewStore(path, slog.Default())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}

	set := store.Current()
	if set == nil {
		t.Fatal("Current() = nil")
	}
	if set.Len() != 1 {
		t.Errorf("Len() = %d, want 1", set.Len())
	}
	if set.Version() == "" {
		t.Error("Version() is empty")
	}
}

func TestStore_InitialLoadFailure(t *testing.T) {
	path := writeRuleFile(t, t.TempDir(), storeRuleDocBroken)

	if _, err := NewStore(path, slog.Default()); err == nil {
		t.Fatal("NewStore succeeded with broken rule file, want error")
	}
}

func TestStore_ReloadSwapsAtomically(t *testing.T) {
	dir := t.TempDir()
	path := writeRuleFile(t, dir, storeRuleDoc)

	store, err := NewStore(path, slog.Default())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	before := store.Current()

	if err := os.WriteFile(path, []byte(storeRuleDocUpdated), 0o644); err != nil {
		t.Fatalf("rewriting rule file: %v", err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}

	after := store.Current()
	if after == before {
		t.Fatal("Reload did not publish a new rule set")
	}
	if after.Version() == before.Version() {
		t.Error("reloaded set has same version as original")
	}
	// The captured snapshot stays intact for in-flight evaluations.
	if before.Find("R1").Condition != "event.gps.deltaDistanceKm > 200" {
		t.Error("previous snapshot was mutated by reload")
	}
	if after.Find("R1").Condition != "event.gps.deltaDistanceKm > 500" {
		t.Error("new snapshot does not carry the updated condition")
	}
}

func TestStore_ReloadFailureKeepsPreviousSet(t *testing.T) {
	dir := t.TempDir()
	path := writeRuleFile(t, dir, storeRuleDoc)

	store, err := NewStore(path, slog.Default())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	before := store.Current()

	if err := os.WriteFile(path, []byte(storeRuleDocBroken), 0o644); err != nil {
		t.Fatalf("rewriting rule file: %v", err)
	}
	if err := store.Reload(); err == nil {
		t.Fatal("Reload succeeded with broken rule file, want error")
	}

	if store.Current() != before {
		t.Error("failed reload replaced the active rule set")
	}
}

func TestStore_OnReloadObservesBothOutcomes(t *testing.T) {
	dir := t.TempDir()
	path := writeRuleFile(t, dir, storeRuleDoc)

	store, err := NewStore(path, slog.Default())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}

	var gotErr error
	var gotSet *RuleSet
	store.OnReload(func(err error, set *RuleSet) {
		gotErr, gotSet = err, set
	})

	if err := os.WriteFile(path, []byte(storeRuleDocUpdated), 0o644); err != nil {
		t.Fatalf("rewriting rule file: %v", err)
	}
	if err := store.Reload(); err != nil {
		t.Fatalf("Reload error: %v", err)
	}
	if gotErr != nil || gotSet == nil {
		t.Fatalf("hook on success: err=%v set=%v", gotErr, gotSet)
	}
	if gotSet != store.Current() {
		t.Error("hook did not receive the published set")
	}

	if err := os.WriteFile(path, []byte(storeRuleDocBroken), 0o644); err != nil {
		t.Fatalf("rewriting rule file: %v", err)
	}
	if err := store.Reload(); err == nil {
		t.Fatal("Reload succeeded with broken rule file, want error")
	}
	if gotErr == nil || gotSet != nil {
		t.Errorf("hook on failure: err=%v set=%v", gotErr, gotSet)
	}
}

func TestStore_WatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := writeRuleFile(t, dir, storeRuleDoc)

	store, err := NewStore(path, slog.Default())
	if err != nil {
		t.Fatalf("NewStore error: %v", err)
	}
	before := store.Current()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- store.Watch(ctx, &FileWatcherConfig{DebounceInterval: 50 * time.Millisecond, Extensions: []string{".yaml"}})
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(200 * time.Millisecond)
	if err := os.WriteFile(path, []byte(storeRuleDocUpdated), 0o644); err != nil {
		t.Fatalf("rewriting rule file: %v", err)
	}

	deadline := time.After(5 * time.Second)
	for store.Current() == before {
		select {
		case <-deadline:
			t.Fatal("watcher did not reload the rule set within deadline")
		case <-time.After(50 * time.Millisecond):
		}
	}

	cancel()
	if err := <-watchDone; err != nil {
		t.Fatalf("Watch returned error: %v", err)
	}
}
