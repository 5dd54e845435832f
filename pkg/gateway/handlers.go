package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/engine"
	"github.com/RodistaaApps/Rodistaa-V2-sub003/pkg/ledger"
)

// enforceRequest is the wire shape of one submission.
type enforceRequest struct {
	EventType   string                 `json:"eventType"`
	EntityType  string                 `json:"entityType"`
	EntityID    string                 `json:"entityId"`
	Actor       string                 `json:"actor"`
	ContentHash string                 `json:"contentHash"`
	Event       map[string]interface{} `json:"event"`
	Context     map[string]interface{} `json:"ctx"`
}

// handleEnforce evaluates one submission and returns the decision.
// Infrastructure failures return 503: when the gate or the audit trail
// is down the operation is denied, never waved through.
func (s *Server) handleEnforce(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req enforceRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, http.StatusRequestEntityTooLarge, "body_too_large", "request body exceeds limit")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed enforce request: "+err.Error())
		return
	}

	if req.EventType == "" || req.EntityType == "" || req.EntityID == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "eventType, entityType and entityId are required")
		return
	}

	sub := &engine.Submission{
		EventType:   req.EventType,
		EntityType:  req.EntityType,
		EntityID:    req.EntityID,
		Actor:       req.Actor,
		ContentHash: req.ContentHash,
		Event:       req.Event,
		Context:     req.Context,
		ReceivedAt:  time.Now().UTC(),
	}

	decision, err := s.engine.Enforce(r.Context(), sub)
	if err != nil {
		var qrErr *engine.QuickRejectError
		var auditErr *engine.AuditWriteError
		switch {
		case errors.As(err, &qrErr):
			s.logger.Error("quick-reject check unavailable", "check", qrErr.Check, "error", err,
				"request_id", GetRequestID(r.Context()))
			writeError(w, http.StatusServiceUnavailable, "enforcement_unavailable", "enforcement checks unavailable, submission denied")
		case errors.As(err, &auditErr):
			s.logger.Error("audit trail unavailable", "rule_id", auditErr.RuleID, "error", err,
				"request_id", GetRequestID(r.Context()))
			writeError(w, http.StatusServiceUnavailable, "audit_unavailable", "audit trail unavailable, submission denied")
		default:
			s.logger.Error("enforcement failed", "error", err, "request_id", GetRequestID(r.Context()))
			writeError(w, http.StatusInternalServerError, "internal_error", "enforcement failed")
		}
		return
	}

	writeJSON(w, decision.Status, decision)
}

// handleListBlocks returns active blocks for one entity.
func (s *Server) handleListBlocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	entityType := r.URL.Query().Get("entityType")
	entityID := r.URL.Query().Get("entityId")
	if entityType == "" || entityID == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "entityType and entityId query parameters are required")
		return
	}

	blocks, err := s.blocks.ListActive(r.Context(), entityType, entityID)
	if err != nil {
		s.logger.Error("block lookup failed", "error", err, "entity_type", entityType, "entity_id", entityID)
		writeError(w, http.StatusServiceUnavailable, "ledger_unavailable", "block ledger unavailable")
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blocks": blocks,
		"count":  len(blocks),
	})
}

// liftRequest is the wire shape of a manual unblock.
type liftRequest struct {
	LiftedBy string `json:"liftedBy"`
	Reason   string `json:"reason"`
}

// handleBlockByID serves GET /v1/blocks/{id} and POST
// /v1/blocks/{id}/unblock.
func (s *Server) handleBlockByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/blocks/")
	id, tail, _ := strings.Cut(rest, "/")
	if id == "" {
		writeError(w, http.StatusNotFound, "not_found", "block id required")
		return
	}

	switch {
	case tail == "" && r.Method == http.MethodGet:
		s.getBlock(w, r, id)
	case tail == "unblock" && r.Method == http.MethodPost:
		s.unblock(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method for this path")
	}
}

func (s *Server) getBlock(w http.ResponseWriter, r *http.Request, id string) {
	block, err := s.blocks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such block")
			return
		}
		s.logger.Error("block lookup failed", "error", err, "block_id", id)
		writeError(w, http.StatusServiceUnavailable, "ledger_unavailable", "block ledger unavailable")
		return
	}
	writeJSON(w, http.StatusOK, block)
}

// unblock lifts an active block and records the override on the audit
// trail. The lift is rejected when the audit entry cannot be written,
// so every manual override leaves a trace.
func (s *Server) unblock(w http.ResponseWriter, r *http.Request, id string) {
	r.Body = http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)

	var req liftRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_body", "malformed unblock request: "+err.Error())
		return
	}
	if req.LiftedBy == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "liftedBy is required")
		return
	}

	block, err := s.blocks.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "no such block")
			return
		}
		s.logger.Error("block lookup failed", "error", err, "block_id", id)
		writeError(w, http.StatusServiceUnavailable, "ledger_unavailable", "block ledger unavailable")
		return
	}
	if !block.Active {
		writeError(w, http.StatusConflict, "already_lifted", "block is not active")
		return
	}

	now := time.Now().UTC()
	auditID, err := s.audit.Append(r.Context(), &ledger.AuditEntry{
		Stream: ledger.DefaultStream,
		Source: "gateway",
		Kind:   ledger.KindBlockLifted,
		Actor:  req.LiftedBy,
		Event: map[string]interface{}{
			"blockId":    block.ID,
			"entityType": block.EntityType,
			"entityId":   block.EntityID,
			"reason":     req.Reason,
		},
	})
	if err != nil {
		s.logger.Error("audit append failed, refusing unblock", "error", err, "block_id", id)
		writeError(w, http.StatusServiceUnavailable, "audit_unavailable", "audit trail unavailable, unblock refused")
		return
	}

	if err := s.blocks.Deactivate(r.Context(), id, req.LiftedBy, now); err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			writeError(w, http.StatusConflict, "already_lifted", "block is not active")
			return
		}
		s.logger.Error("block deactivate failed", "error", err, "block_id", id)
		writeError(w, http.StatusServiceUnavailable, "ledger_unavailable", "block ledger unavailable")
		return
	}

	if s.collector != nil {
		s.collector.RecordBlockLifted()
	}
	s.logger.Info("block lifted", "block_id", id, "entity_type", block.EntityType,
		"entity_id", block.EntityID, "lifted_by", req.LiftedBy, "audit_id", auditID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"blockId":     id,
		"active":      false,
		"unblockedBy": req.LiftedBy,
		"unblockedAt": now,
		"auditId":     auditID,
	})
}

// handleRules reports the currently loaded rule set.
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	rs := s.ruleStore.Current()
	summaries := make([]map[string]interface{}, 0, rs.Len())
	for _, rule := range rs.Rules() {
		summaries = append(summaries, map[string]interface{}{
			"id":       rule.ID,
			"priority": rule.Priority,
			"severity": rule.Severity,
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"version":  rs.Version(),
		"loadedAt": rs.LoadedAt(),
		"count":    rs.Len(),
		"rules":    summaries,
	})
}

// handleHealth is the liveness probe.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

// handleReady is the readiness probe: the gateway is ready once a rule
// set is loaded and the block ledger answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
		return
	}

	status := "ready"
	statusCode := http.StatusOK
	rs := s.ruleStore.Current()

	if rs == nil || rs.Version() == "" {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	} else if _, err := s.blocks.ListActive(r.Context(), "probe", "probe"); err != nil {
		status = "not_ready"
		statusCode = http.StatusServiceUnavailable
	}

	resp := map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Unix(),
	}
	if rs != nil {
		resp["rulesetVersion"] = rs.Version()
	}
	writeJSON(w, statusCode, resp)
}
