package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollector_Counters(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordEvaluation("blocked", 2*time.Millisecond)
	c.RecordEvaluation("allowed", time.Millisecond)
	c.RecordEvaluation("allowed", time.Millisecond)
	c.RecordRuleHit("R1", "critical")
	c.RecordQuickReject("ENTITY_BLOCKED")
	c.RecordActionDispatch("freezeShipment", "success")
	c.RecordAuditAppend("success")
	c.RecordBlockCreated("user")
	c.RecordBlockLifted()

	cases := []struct {
		metric string
		labels []string
		want   float64
	}{
		{"rodistaa_acs_evaluations_total", []string{"allowed"}, 2},
		{"rodistaa_acs_evaluations_total", []string{"blocked"}, 1},
		{"rodistaa_acs_rule_hits_total", []string{"R1", "critical"}, 1},
		{"rodistaa_acs_quick_rejects_total", []string{"ENTITY_BLOCKED"}, 1},
		{"rodistaa_acs_action_dispatch_total", []string{"freezeShipment", "success"}, 1},
		{"rodistaa_acs_audit_appends_total", []string{"success"}, 1},
		{"rodistaa_acs_blocks_created_total", []string{"user"}, 1},
	}

	for _, tt := range cases {
		var got float64
		switch tt.metric {
		case "rodistaa_acs_evaluations_total":
			got = testutil.ToFloat64(c.evaluationsTotal.WithLabelValues(tt.labels...))
		case "rodistaa_acs_rule_hits_total":
			got = testutil.ToFloat64(c.ruleHitsTotal.WithLabelValues(tt.labels...))
		case "rodistaa_acs_quick_rejects_total":
			got = testutil.ToFloat64(c.quickRejectsTotal.WithLabelValues(tt.labels...))
		case "rodistaa_acs_action_dispatch_total":
			got = testutil.ToFloat64(c.actionDispatchTotal.WithLabelValues(tt.labels...))
		case "rodistaa_acs_audit_appends_total":
			got = testutil.ToFloat64(c.auditAppendsTotal.WithLabelValues(tt.labels...))
		case "rodistaa_acs_blocks_created_total":
			got = testutil.ToFloat64(c.blocksCreated.WithLabelValues(tt.labels...))
		}
		if got != tt.want {
			t.Errorf("%s%v = %v, want %v", tt.metric, tt.labels, got, tt.want)
		}
	}

	if got := testutil.ToFloat64(c.blocksLifted); got != 1 {
		t.Errorf("blocks lifted = %v", got)
	}
}

func TestCollector_RuleReloadGauge(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())

	c.RecordRuleReload("success", 12)
	if got := testutil.ToFloat64(c.rulesLoaded); got != 12 {
		t.Errorf("rules loaded = %v, want 12", got)
	}

	// A failed reload keeps the previous count.
	c.RecordRuleReload("failure", 0)
	if got := testutil.ToFloat64(c.rulesLoaded); got != 12 {
		t.Errorf("rules loaded after failed reload = %v, want 12", got)
	}
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector(prometheus.NewRegistry())
	c.RecordQuickReject("DUPLICATE_CONTENT")

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "rodistaa_acs_quick_rejects_total") {
		t.Errorf("metric missing from exposition:\n%s", body)
	}
}
