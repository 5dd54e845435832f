package engine

import (
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/expr"
)

// buildEnv assembles the expression environment for a submission. The
// payload maps are shared, not copied; conditions only read them.
func buildEnv(sub *Submission, ruleSetVersion, nodeID string, now time.Time) expr.MapEnv {
	event := make(map[string]interface{}, len(sub.Event)+3)
	for k, v := range sub.Event {
		event[k] = v
	}
	// Submission metadata is addressable alongside the payload.
	event["type"] = sub.EventType
	event["entityType"] = sub.EntityType
	event["entityId"] = sub.EntityID

	ctx := sub.Context
	if ctx == nil {
		ctx = map[string]interface{}{}
	}

	return expr.MapEnv{
		"event": event,
		"ctx":   ctx,
		"system": map[string]interface{}{
			"now":            now.UTC().Format(time.RFC3339),
			"hour":           now.UTC().Hour(),
			"nodeId":         nodeID,
			"rulesetVersion": ruleSetVersion,
		},
	}
}
