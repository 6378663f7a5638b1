// Package api hosts the HTTP server, middleware, and REST handlers for the
// review intelligence service. Notable routes:
//   - GET / for the HTML dashboard.
//   - GET /healthz and /readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/analyses to start an analysis run.
//   - GET /v1/runs/{run_id} and /v1/runs/{run_id}/result for run polling.
//   - GET /v1/products/... for the cached history.
package api
