// Package telemetry groups the observability building blocks of the ACS:
// structured logging with redaction (logging) and Prometheus metrics
// (metrics).
package telemetry
