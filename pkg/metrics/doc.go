// Package metrics provides Prometheus instrumentation and process health
// endpoints for the Slipway control plane.
//
// # Architecture
//
// Metrics flow through two paths. Counters and histograms are incremented
// inline at the point where the event happens (an assignment, a probe, an
// API request). Gauges describing current state are refreshed by a
// background Collector that polls the store, the pool registry, and the
// resource probe:
//
//	┌─────────┐  Count()     ┌───────────┐
//	│  Store  │─────────────▶│           │
//	└─────────┘              │           │      ┌────────────┐
//	┌─────────┐  Stats()     │ Collector │─────▶│ Prometheus │
//	│  Pool   │─────────────▶│  (15s)    │ Set  │  registry  │
//	└─────────┘              │           │      └────────────┘
//	┌─────────┐  Snapshot()  │           │            │
//	│Resources│─────────────▶│           │            ▼
//	└─────────┘              └───────────┘       GET /metrics
//
// All metrics register on the default registry in init(), so importing the
// package is enough to expose them through Handler().
//
// # Metric Catalog
//
// Fleet state (gauges, refreshed by the Collector):
//
//	slipway_workspaces_total{status}     persisted workspaces by lifecycle status
//	slipway_runtime_workspaces           containers visible to the runtime
//	slipway_pool_workspaces{state}       pool occupancy (pre_warmed, assigned, running)
//	slipway_pool_target                  configured pool size
//	slipway_host_cpu_used_percent        host CPU usage
//	slipway_host_memory_used_percent     host memory usage
//	slipway_host_disk_used_percent       data directory filesystem usage
//
// Lifecycle activity (counters and histograms, incremented inline):
//
//	slipway_assignments_total{source}          successful assignments (pool, fresh)
//	slipway_assignment_failures_total{reason}  rejected assignment requests
//	slipway_startup_duration_seconds           request-to-editor latency histogram
//	slipway_pool_spawns_total{result}          maintainer launches (ok, failed)
//	slipway_probes_total{result}               health probes (healthy, unhealthy)
//	slipway_recoveries_total                   monitor-triggered failure handling
//	slipway_api_requests_total{method,status}  API traffic
//	slipway_api_request_duration_seconds       API latency by method
//
// # Startup Histogram
//
// ObserveStartupDuration is handed to the stats recorder as its startup
// observer. The duration is measured from the moment the assignment request
// entered the handler to the first successful editor probe, the same span
// persisted as startup_ms, so the histogram and the per-workspace record
// never disagree.
//
// # Health Endpoints
//
// The package also carries the /health and /ready handlers. Subsystems
// report in through RegisterComponent as the serve command brings them up;
// readiness requires the store and the container runtime, while /health
// reflects every registered component.
//
//	metrics.RegisterComponent("store", true, "")
//	metrics.RegisterComponent("runtime", true, "")
//	mux.Handle("/health", metrics.HealthHandler())
//	mux.Handle("/ready", metrics.ReadyHandler())
//	mux.Handle("/metrics", metrics.Handler())
//
// # Usage
//
//	collector := metrics.NewCollector(store, pool, probe)
//	collector.Start()
//	defer collector.Stop()
//
//	metrics.AssignmentsTotal.WithLabelValues("pool").Inc()
//
//	timer := metrics.NewTimer()
//	defer timer.ObserveDurationVec(metrics.APIRequestDuration, r.Method)
//
// # Integration Points
//
//   - pkg/manager: assignment counters and failure reasons
//   - pkg/monitor: probe results and recovery counter
//   - pkg/maintainer: pool spawn results
//   - pkg/stats: startup duration observer
//   - pkg/api: request counters, latency timer, health endpoints
//
// # See Also
//
//   - pkg/resources: the host snapshot the Collector publishes
//   - pkg/pool: the occupancy stats behind the pool gauges
package metrics
