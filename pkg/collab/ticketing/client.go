// Package ticketing creates ops-review tickets in the external ticketing
// service. The createTicket action uses it for manual-review workflows.
package ticketing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/config"
)

// Ticket is a manual-review request.
type Ticket struct {
	Title      string                 `json:"title"`
	Body       string                 `json:"body,omitempty"`
	Severity   string                 `json:"severity"`
	Queue      string                 `json:"queue,omitempty"`
	RuleID     string                 `json:"ruleId,omitempty"`
	AuditID    string                 `json:"auditId,omitempty"`
	EntityType string                 `json:"entityType,omitempty"`
	EntityID   string                 `json:"entityId,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// CreateResult is the service's response to a created ticket.
type CreateResult struct {
	TicketID string `json:"ticketId"`
	URL      string `json:"url,omitempty"`
}

// Client creates tickets.
type Client interface {
	Create(ctx context.Context, t *Ticket) (*CreateResult, error)
}

// ServiceError is a non-2xx response from the ticketing service.
type ServiceError struct {
	StatusCode int
	Body       string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("ticketing service returned %d: %s", e.StatusCode, e.Body)
}

// HTTPClient talks to the ticketing service over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger
}

// NewHTTPClient creates a client for the configured service.
func NewHTTPClient(cfg config.TicketingConfig, logger *slog.Logger) *HTTPClient {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.With("component", "ticketing"),
	}
}

// Create posts the ticket to the service.
func (c *HTTPClient) Create(ctx context.Context, t *Ticket) (*CreateResult, error) {
	payload, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal ticket: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/tickets", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build ticket request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("create ticket: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return nil, fmt.Errorf("read ticket response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ServiceError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result CreateResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode ticket response: %w", err)
	}
	c.logger.Info("ticket created", "ticket_id", result.TicketID, "rule_id", t.RuleID)
	return &result, nil
}
