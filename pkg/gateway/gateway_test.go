package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/actions"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/config"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/dedup"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/engine"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger/storage"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/rules"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/telemetry/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

const testRuleDoc = `
version: "2026-08-21"
rules:
  - id: R-GPS-JUMP
    priority: 100
    severity: critical
    description: "GPS position jump exceeds plausible speed"
    condition: "event.deltaDistanceKm / (event.deltaTimeSec / 3600) > 160"
    audit: true
    actions:
      - name: freezeShipment
        params:
          shipmentId: "{{event.shipment.id}}"
`

type harness struct {
	server  *Server
	ledger  *storage.MemoryLedger
	audit   *ledger.Audit
	dedup   *dedup.MemoryIndex
	handler http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	dir := t.TempDir()
	rulePath := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(rulePath, []byte(testRuleDoc), 0o644); err != nil {
		t.Fatalf("write rules: %v", err)
	}
	store, err := rules.NewStore(rulePath, logger)
	if err != nil {
		t.Fatalf("rule store: %v", err)
	}

	mem := storage.NewMemoryLedger()
	audit := ledger.NewAudit(mem, ledger.AuditConfig{Signer: "test-node"}, logger)
	idx := dedup.NewMemoryIndex(time.Hour)
	collector := metrics.NewCollector(prometheus.NewRegistry())
	gate := engine.NewGate(mem, idx, audit, collector, logger)

	registry := actions.NewRegistry(logger)
	registry.Register(actions.NewFreezeShipment(mem, audit, collector, logger))
	registry.Register(actions.NewBlockEntity(mem, audit, collector, logger))

	cfg := config.DefaultConfig()
	eng := engine.New(store, gate, registry, audit, collector, cfg.Engine, logger)

	srv := NewServer(cfg.Gateway, cfg.Telemetry.Metrics, eng, mem, audit, store, collector, logger)

	return &harness{
		server:  srv,
		ledger:  mem,
		audit:   audit,
		dedup:   idx,
		handler: srv.Routes(),
	}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rd)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func cleanSubmission() map[string]interface{} {
	return map[string]interface{}{
		"eventType":  "gps.trace",
		"entityType": "truck",
		"entityId":   "T-42",
		"actor":      "device:gps-7",
		"event": map[string]interface{}{
			"deltaDistanceKm": 2.0,
			"deltaTimeSec":    300.0,
			"shipment":        map[string]interface{}{"id": "S-77"},
		},
	}
}

func jumpSubmission() map[string]interface{} {
	sub := cleanSubmission()
	sub["event"].(map[string]interface{})["deltaDistanceKm"] = 250.0
	sub["event"].(map[string]interface{})["deltaTimeSec"] = 200.0
	return sub
}

func TestEnforce_Allowed(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/enforce", cleanSubmission())
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["allowed"] != true {
		t.Errorf("allowed = %v, want true", body["allowed"])
	}
	if body["code"] != engine.CodeOK {
		t.Errorf("code = %v, want %s", body["code"], engine.CodeOK)
	}
	if body["auditId"] == nil || body["auditId"] == "" {
		t.Error("allowed decision carries no auditId")
	}
}

func TestEnforce_RuleBlocked(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/enforce", jumpSubmission())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["allowed"] != false {
		t.Errorf("allowed = %v, want false", body["allowed"])
	}
	if body["code"] != engine.CodeRuleBlocked {
		t.Errorf("code = %v, want %s", body["code"], engine.CodeRuleBlocked)
	}
	if body["auditId"] == nil || body["auditId"] == "" {
		t.Error("blocked decision carries no auditId")
	}

	// The freeze creates a shipment block visible through the API.
	rec = h.do(t, http.MethodGet, "/v1/blocks?entityType=shipment&entityId=S-77", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("blocks status = %d: %s", rec.Code, rec.Body.String())
	}
	list := decodeBody(t, rec)
	if list["count"] != float64(1) {
		t.Errorf("count = %v, want 1", list["count"])
	}
}

func TestEnforce_BlockedEntityQuickRejected(t *testing.T) {
	h := newHarness(t)

	// First submission trips the rule and freezes the shipment; a second
	// submission from the same truck still passes because the block is on
	// the shipment. Insert a truck block and verify the quick reject.
	now := time.Now().UTC()
	err := h.ledger.Insert(context.Background(), &ledger.ACSBlock{
		ID:         "blk-1",
		EntityType: "truck",
		EntityID:   "T-42",
		Reason:     ledger.ReasonFraudSuspected,
		Severity:   ledger.SeverityHigh,
		CreatedBy:  "ops:priya",
		CreatedAt:  now,
		Active:     true,
	})
	if err != nil {
		t.Fatalf("insert block: %v", err)
	}

	rec := h.do(t, http.MethodPost, "/v1/enforce", cleanSubmission())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["code"] != engine.CodeEntityBlocked {
		t.Errorf("code = %v, want %s", body["code"], engine.CodeEntityBlocked)
	}
}

func TestEnforce_DuplicateContentRejected(t *testing.T) {
	h := newHarness(t)

	sub := cleanSubmission()
	sub["contentHash"] = "deadbeef00112233"

	rec := h.do(t, http.MethodPost, "/v1/enforce", sub)
	if rec.Code != http.StatusOK {
		t.Fatalf("first submission status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = h.do(t, http.MethodPost, "/v1/enforce", sub)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("duplicate status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["code"] != engine.CodeDuplicateContent {
		t.Errorf("code = %v, want %s", body["code"], engine.CodeDuplicateContent)
	}
}

func TestEnforce_BadRequests(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		name   string
		method string
		body   interface{}
		want   int
	}{
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed},
		{"missing entity", http.MethodPost, map[string]interface{}{"eventType": "pod.upload"}, http.StatusBadRequest},
		{"unknown field", http.MethodPost, map[string]interface{}{"eventType": "x", "entityType": "t", "entityId": "1", "bogus": 1}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := h.do(t, tt.method, "/v1/enforce", tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestEnforce_MalformedJSON(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/enforce", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestEnforce_FailsClosedOnGateOutage(t *testing.T) {
	h := newHarness(t)
	h.ledger.FailBlocks(true)

	rec := h.do(t, http.MethodPost, "/v1/enforce", cleanSubmission())
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503: %s", rec.Code, rec.Body.String())
	}
}

func TestUnblock_LiftsBlockAndWritesAudit(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/enforce", jumpSubmission())
	if rec.Code != http.StatusForbidden {
		t.Fatalf("enforce status = %d: %s", rec.Code, rec.Body.String())
	}

	blocks, err := h.ledger.ListActive(context.Background(), "shipment", "S-77")
	if err != nil || len(blocks) != 1 {
		t.Fatalf("ListActive = %v blocks, err %v", len(blocks), err)
	}
	blockID := blocks[0].ID

	rec = h.do(t, http.MethodPost, "/v1/blocks/"+blockID+"/unblock",
		map[string]interface{}{"liftedBy": "ops:priya", "reason": "verified with driver"})
	if rec.Code != http.StatusOK {
		t.Fatalf("unblock status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["unblockedBy"] != "ops:priya" {
		t.Errorf("unblockedBy = %v", body["unblockedBy"])
	}

	blocks, err = h.ledger.ListActive(context.Background(), "shipment", "S-77")
	if err != nil || len(blocks) != 0 {
		t.Fatalf("block still active after unblock: %v, err %v", len(blocks), err)
	}

	entries, err := h.ledger.List(context.Background(), ledger.DefaultStream, 0, 100)
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	var lifted bool
	for _, e := range entries {
		if e.Kind == ledger.KindBlockLifted && e.Actor == "ops:priya" {
			lifted = true
		}
	}
	if !lifted {
		t.Error("no BLOCK_LIFTED audit entry written")
	}
}

func TestUnblock_Conflicts(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodPost, "/v1/blocks/no-such-id/unblock",
		map[string]interface{}{"liftedBy": "ops:priya"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("unknown block status = %d, want 404", rec.Code)
	}

	now := time.Now().UTC()
	err := h.ledger.Insert(context.Background(), &ledger.ACSBlock{
		ID: "blk-2", EntityType: "driver", EntityID: "D-9",
		Reason: ledger.ReasonManualReview, Severity: ledger.SeverityLow,
		CreatedBy: "ops:priya", CreatedAt: now, Active: true,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := h.ledger.Deactivate(context.Background(), "blk-2", "ops:priya", now); err != nil {
		t.Fatalf("deactivate: %v", err)
	}

	rec = h.do(t, http.MethodPost, "/v1/blocks/blk-2/unblock",
		map[string]interface{}{"liftedBy": "ops:anand"})
	if rec.Code != http.StatusConflict {
		t.Errorf("lifted block status = %d, want 409", rec.Code)
	}

	rec = h.do(t, http.MethodPost, "/v1/blocks/blk-2/unblock", map[string]interface{}{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("missing liftedBy status = %d, want 400", rec.Code)
	}
}

func TestGetBlock(t *testing.T) {
	h := newHarness(t)

	now := time.Now().UTC()
	err := h.ledger.Insert(context.Background(), &ledger.ACSBlock{
		ID: "blk-3", EntityType: "operator", EntityID: "OP-11",
		Reason: ledger.ReasonPolicyViolation, Severity: ledger.SeverityMedium,
		CreatedBy: "rule:R-KYC", CreatedAt: now, Active: true,
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	rec := h.do(t, http.MethodGet, "/v1/blocks/blk-3", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["entityId"] != "OP-11" {
		t.Errorf("entityId = %v", body["entityId"])
	}

	rec = h.do(t, http.MethodGet, "/v1/blocks/missing", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("missing block status = %d, want 404", rec.Code)
	}
}

func TestListBlocks_RequiresEntity(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/blocks", nil)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestRulesEndpoint(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/rules", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["version"] != "2026-08-21" {
		t.Errorf("version = %v", body["version"])
	}
	if body["count"] != float64(1) {
		t.Errorf("count = %v, want 1", body["count"])
	}
}

func TestHealthAndReady(t *testing.T) {
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("healthz status = %d", rec.Code)
	}

	rec = h.do(t, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("readyz status = %d: %s", rec.Code, rec.Body.String())
	}

	h.ledger.FailBlocks(true)
	rec = h.do(t, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("readyz with ledger down status = %d, want 503", rec.Code)
	}
}

func TestRequestIDPropagation(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "req-abc-123")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get(RequestIDHeader); got != "req-abc-123" {
		t.Errorf("request id = %q, want echoed client id", got)
	}

	rec = h.do(t, http.MethodGet, "/healthz", nil)
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("no request id generated")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h := newHarness(t)

	h.do(t, http.MethodPost, "/v1/enforce", cleanSubmission())

	rec := h.do(t, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte("rodistaa_acs_evaluations_total")) {
		t.Error("exposition missing evaluation counter")
	}
}
