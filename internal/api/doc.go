// Package api hosts the operator HTTP server. Routes:
//   - GET /healthz and /readyz for health checks; readyz runs the registered checks.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/runs lists the most recent harvest and download runs.
package api
