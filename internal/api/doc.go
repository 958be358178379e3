// Package api hosts the operational HTTP server. Routes:
//   - GET /healthz and /readyz for probes; readyz pings the article store.
//   - GET /metrics for Prometheus scraping.
//   - GET /v1/sources lists the source registry.
//   - GET /v1/runs/latest returns the most recent run report.
//   - GET /v1/runs/events lists recent progress events, filtered by run_id.
//   - POST /v1/runs starts a run in the background.
package api
