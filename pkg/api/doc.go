// Package api exposes the control plane over HTTP. It is the only
// process boundary clients see; everything else in this repository sits
// behind the manager it fronts.
//
// # Architecture
//
// One chi router serves two audiences on the same listener:
//
//	               ┌───────────────────────────────┐
//	 clients ────▶ │ /api/v1/containers/...        │──▶ manager
//	               │   bearer token (optional)     │
//	               ├───────────────────────────────┤
//	 operators ──▶ │ /health /ready /metrics       │──▶ metrics
//	               │   always open                 │
//	               └───────────────────────────────┘
//
// The container routes are guarded by a static bearer token when the
// configuration carries one. Two exceptions stay open on purpose:
//
//   - POST /containers/{id}/inactivity-shutdown, called by the agent
//     inside the workspace container, which has no operator token
//   - the operational endpoints, polled by load balancers and Prometheus
//
// Handlers are thin. They decode, delegate to the manager, and translate
// the error taxonomy onto statuses: invalid input and bad buckets map to
// 400, unknown ids to 404, an exhausted host to 503, launch and attach
// failures to 500. Every non-2xx body is an ErrorResponse envelope.
//
// GET /containers/{id} augments the persisted record with computed
// uptime and, when the health monitor has probed the workspace, its
// probe state. A workspace the monitor has not seen yet simply has no
// health block.
//
// # Usage
//
//	srv := api.NewServer(mgr, cfg.Listen).
//	    WithAuthToken(cfg.AuthToken).
//	    WithCORSOrigins(cfg.CORSOrigins).
//	    WithHealthSource(healthMonitor)
//
//	errCh := make(chan error, 1)
//	go func() {
//	    if err := srv.Start(); err != nil {
//	        errCh <- err
//	    }
//	}()
//	defer srv.Shutdown(ctx)
//
// Router is exported separately so tests drive the full middleware stack
// through httptest without binding a port.
//
// # Integration Points
//
//   - pkg/manager: Assign, Stop, Get, List, Count behind the handlers
//   - pkg/monitor: HealthSource for the per-workspace health block
//   - pkg/metrics: request counters, duration histogram, /health /ready
//     /metrics handlers
//   - pkg/errdefs: error kind to status code mapping
//
// # See Also
//
//   - pkg/client: the Go client for this API
package api
