// Package metrics registers and records the ACS Prometheus metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "rodistaa"
	subsystem = "acs"
)

// Collector owns every ACS metric and the registry they live in.
type Collector struct {
	registry *prometheus.Registry

	// Engine metrics
	evaluationsTotal   *prometheus.CounterVec
	evaluationDuration prometheus.Histogram
	ruleHitsTotal      *prometheus.CounterVec
	ruleErrorsTotal    *prometheus.CounterVec
	quickRejectsTotal  *prometheus.CounterVec

	// Action metrics
	actionDispatchTotal *prometheus.CounterVec

	// Ledger metrics
	auditAppendsTotal *prometheus.CounterVec
	blocksCreated     *prometheus.CounterVec
	blocksLifted      prometheus.Counter

	// Gateway metrics
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec

	// Rule store metrics
	ruleReloadsTotal *prometheus.CounterVec
	rulesLoaded      prometheus.Gauge
}

// NewCollector creates the collector and registers every metric. If
// registry is nil a fresh one is created, including the standard Go and
// process collectors.
func NewCollector(registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}

	c := &Collector{
		registry: registry,

		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evaluations_total",
				Help:      "Total enforcement evaluations by decision outcome",
			},
			[]string{"outcome"},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "evaluation_duration_seconds",
				Help:      "End-to-end enforcement evaluation duration",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 14), // 100µs to ~1.6s
			},
		),
		ruleHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_hits_total",
				Help:      "Rule matches by rule and severity",
			},
			[]string{"rule_id", "severity"},
		),
		ruleErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_errors_total",
				Help:      "Rules skipped because their condition failed to evaluate",
			},
			[]string{"rule_id"},
		),
		quickRejectsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "quick_rejects_total",
				Help:      "Submissions rejected before rule evaluation, by reason",
			},
			[]string{"reason"},
		),
		actionDispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "action_dispatch_total",
				Help:      "Action executions by action name and status",
			},
			[]string{"action", "status"},
		),
		auditAppendsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "audit_appends_total",
				Help:      "Audit ledger appends by status",
			},
			[]string{"status"},
		),
		blocksCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "blocks_created_total",
				Help:      "Blocks created by entity type",
			},
			[]string{"entity_type"},
		),
		blocksLifted: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "blocks_lifted_total",
				Help:      "Blocks lifted, by expiry sweep or manual unblock",
			},
		),
		requestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Gateway requests by route and status code",
			},
			[]string{"route", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Gateway request duration by route",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"route"},
		),
		ruleReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rule_reloads_total",
				Help:      "Rule set reload attempts by result",
			},
			[]string{"result"},
		),
		rulesLoaded: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "rules_loaded",
				Help:      "Number of rules in the active rule set",
			},
		),
	}

	registry.MustRegister(
		c.evaluationsTotal,
		c.evaluationDuration,
		c.ruleHitsTotal,
		c.ruleErrorsTotal,
		c.quickRejectsTotal,
		c.actionDispatchTotal,
		c.auditAppendsTotal,
		c.blocksCreated,
		c.blocksLifted,
		c.requestsTotal,
		c.requestDuration,
		c.ruleReloadsTotal,
		c.rulesLoaded,
	)
	return c
}

// Handler returns the HTTP handler serving the registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// RecordEvaluation records one completed enforcement evaluation.
func (c *Collector) RecordEvaluation(outcome string, d time.Duration) {
	c.evaluationsTotal.WithLabelValues(outcome).Inc()
	c.evaluationDuration.Observe(d.Seconds())
}

// RecordRuleHit records a rule match.
func (c *Collector) RecordRuleHit(ruleID, severity string) {
	c.ruleHitsTotal.WithLabelValues(ruleID, severity).Inc()
}

// RecordRuleError records a rule whose condition failed to evaluate.
func (c *Collector) RecordRuleError(ruleID string) {
	c.ruleErrorsTotal.WithLabelValues(ruleID).Inc()
}

// RecordQuickReject records a pre-evaluation rejection.
func (c *Collector) RecordQuickReject(reason string) {
	c.quickRejectsTotal.WithLabelValues(reason).Inc()
}

// RecordActionDispatch records one action execution.
func (c *Collector) RecordActionDispatch(action, status string) {
	c.actionDispatchTotal.WithLabelValues(action, status).Inc()
}

// RecordAuditAppend records an audit ledger append attempt.
func (c *Collector) RecordAuditAppend(status string) {
	c.auditAppendsTotal.WithLabelValues(status).Inc()
}

// RecordBlockCreated records a new block.
func (c *Collector) RecordBlockCreated(entityType string) {
	c.blocksCreated.WithLabelValues(entityType).Inc()
}

// RecordBlockLifted records a lifted block.
func (c *Collector) RecordBlockLifted() {
	c.blocksLifted.Inc()
}

// RecordRequest records one gateway request.
func (c *Collector) RecordRequest(route, status string, d time.Duration) {
	c.requestsTotal.WithLabelValues(route, status).Inc()
	c.requestDuration.WithLabelValues(route).Observe(d.Seconds())
}

// RecordRuleReload records a rule set reload attempt.
func (c *Collector) RecordRuleReload(result string, rules int) {
	c.ruleReloadsTotal.WithLabelValues(result).Inc()
	if result == "success" {
		c.rulesLoaded.Set(float64(rules))
	}
}
