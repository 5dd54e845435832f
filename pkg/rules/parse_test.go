package rules

import (
	"errors"
	"testing"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/expr"
)

const validRuleDoc = `
rules:
  - id: R-LOW
    priority: 10
    severity: low
    description: tag low-speed events
    condition: 'event.gps.deltaDistanceKm < 5'
    actions:
      - action: emitEvent
        params:
          topic: acs.telemetry
  - id: R1
    priority: 100
    severity: critical
    description: GPS jump detection
    condition: 'event.gps.deltaDistanceKm > 200 && event.gps.deltaTimeSec < 300'
    audit: true
    actions:
      - action: freezeShipment
        params:
          shipmentId: '{{event.shipment.id}}'
          reason: GPS_JUMP
  - id: R2
    priority: 100
    severity: high
    description: same priority as R1, declared later
    condition: 'event.type == "pod.upload"'
    actions:
      - blockEntity:
          entityType: device
          entityId: '{{ctx.deviceId}}'
          reason: SUSPECT_DEVICE
          severity: high
`

func TestParse_SortsByPriorityWithStableTies(t *testing.T) {
	set, err := Parse([]byte(validRuleDoc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	if set.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", set.Len())
	}

	var order []string
	for _, r := range set.Rules() {
		order = append(order, r.ID)
	}

	// Priority descending; R1 and R2 share priority 100 and must keep
	// their declaration order.
	want := []string{"R1", "R2", "R-LOW"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("evaluation order = %v, want %v", order, want)
		}
	}
}

func TestParse_CompilesConditionsAndTemplates(t *testing.T) {
	set, err := Parse([]byte(validRuleDoc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}

	env := expr.MapEnv{
		"event": map[string]interface{}{
			"type":     "pod.upload",
			"gps":      map[string]interface{}{"deltaDistanceKm": 250.0, "deltaTimeSec": 200.0},
			"shipment": map[string]interface{}{"id": "S-1"},
		},
		"ctx": map[string]interface{}{"deviceId": "D-9"},
	}

	r1 := set.Find("R1")
	if r1 == nil {
		t.Fatal("Find(R1) = nil")
	}
	matched, err := r1.Eval(env)
	if err != nil {
		t.Fatalf("R1.Eval error: %v", err)
	}
	if !matched {
		t.Error("R1.Eval = false, want true")
	}

	params, err := r1.Actions[0].ResolveParams(env)
	if err != nil {
		t.Fatalf("ResolveParams error: %v", err)
	}
	if params["shipmentId"] != "S-1" {
		t.Errorf("shipmentId = %v, want S-1", params["shipmentId"])
	}
	if params["reason"] != "GPS_JUMP" {
		t.Errorf("reason = %v, want GPS_JUMP", params["reason"])
	}

	// Shorthand action form
	r2 := set.Find("R2")
	if r2 == nil {
		t.Fatal("Find(R2) = nil")
	}
	if r2.Actions[0].Name != "blockEntity" {
		t.Errorf("R2 action name = %q, want blockEntity", r2.Actions[0].Name)
	}
	params2, err := r2.Actions[0].ResolveParams(env)
	if err != nil {
		t.Fatalf("ResolveParams error: %v", err)
	}
	if params2["entityId"] != "D-9" {
		t.Errorf("entityId = %v, want D-9", params2["entityId"])
	}
}

func TestParse_DefaultsAuditTrue(t *testing.T) {
	set, err := Parse([]byte(validRuleDoc))
	if err != nil {
		t.Fatalf("Parse error: %v", err)
	}
	if !set.Find("R2").AuditRequired {
		t.Error("AuditRequired = false for rule without audit key, want true")
	}
}

func TestParse_FailsWholeDocument(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "invalid condition syntax",
			doc: `
rules:
  - id: OK
    priority: 10
    severity: low
    condition: 'event.x > 1'
  - id: BROKEN
    priority: 5
    severity: low
    condition: 'event.x >'
`,
		},
		{
			name: "unknown severity",
			doc: `
rules:
  - id: R
    priority: 1
    severity: catastrophic
    condition: 'true'
`,
		},
		{
			name: "duplicate id",
			doc: `
rules:
  - id: R
    priority: 1
    severity: low
    condition: 'true'
  - id: R
    priority: 2
    severity: low
    condition: 'true'
`,
		},
		{
			name: "missing id",
			doc: `
rules:
  - priority: 1
    severity: low
    condition: 'true'
`,
		},
		{
			name: "malformed action template",
			doc: `
rules:
  - id: R
    priority: 1
    severity: low
    condition: 'true'
    actions:
      - action: createTicket
        params:
          subject: '{{event.'
`,
		},
		{
			name: "empty document",
			doc:  "rules: []",
		},
		{
			name: "not yaml",
			doc:  "{{{{",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("Parse succeeded, want error")
			}
		})
	}
}

func TestParse_CompileErrorCarriesRuleID(t *testing.T) {
	doc := `
rules:
  - id: BAD-COND
    priority: 1
    severity: medium
    condition: 'event.x &&'
`
	_, err := Parse([]byte(doc))
	if err == nil {
		t.Fatal("Parse succeeded, want error")
	}

	var compileErr *RuleCompileError
	if !errors.As(err, &compileErr) {
		t.Fatalf("error = %v, want RuleCompileError", err)
	}
	if compileErr.RuleID != "BAD-COND" {
		t.Errorf("RuleID = %q, want BAD-COND", compileErr.RuleID)
	}
}
