// Package eventbus publishes compliance events to downstream consumers.
//
// The emitEvent action and the engine's lifecycle notifications go through
// a Publisher. The Kafka publisher is the production implementation; the
// memory publisher backs tests and deployments without a broker.
package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is one compliance event on the bus.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	RuleID    string                 `json:"ruleId,omitempty"`
	AuditID   string                 `json:"auditId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// Publisher delivers events to the bus.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// fill assigns the event's ID and timestamp if unset and returns its wire
// encoding.
func fill(evt *Event) ([]byte, error) {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return nil, fmt.Errorf("marshal event %s: %w", evt.ID, err)
	}
	return data, nil
}
