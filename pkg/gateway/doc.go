// Package gateway provides the HTTP enforcement gateway. Upstream
// services submit operations to POST /v1/enforce and act on the
// decision; the gateway also exposes block inspection and lifting,
// health probes, and the Prometheus metrics endpoint.
package gateway
