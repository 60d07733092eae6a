// Package monitor probes workspace endpoints and drives the health side
// of the lifecycle: starting workspaces are promoted to running on their
// first fully healthy sweep, and workspaces that keep failing are marked
// failed exactly once.
//
// # Architecture
//
// A single sweep loop reads the active fleet from the store and probes
// each workspace's three endpoints (editor, desktop, web) through the
// reverse proxy:
//
//	┌───────┐  status ∈ {starting,running}   ┌─────────┐
//	│ Store │───────────────────────────────▶│ Monitor │
//	└───────┘                                └────┬────┘
//	    ▲                                         │ GET ×3, 3s timeout
//	    │ promote / fail                          ▼
//	    │                                    ┌─────────┐
//	    └────────────────────────────────────│  Proxy  │──▶ workspace
//	                                         └─────────┘
//
// A probe succeeds when the response status is below 500; 404 and 401
// count as healthy because they prove the route resolves to a serving
// process. Redirects are reported, not followed.
//
// # State Machine
//
// Per-workspace HealthState lives only in memory:
//
//   - every endpoint healthy: failures reset, recovery latch cleared; a
//     starting workspace is promoted to running with started_at, the pool
//     entry (if any) is marked running, and workspace.running is published
//   - any endpoint failing: consecutive_failures increments
//   - consecutive_failures reaches the budget (default 3): the workspace is
//     written failed, recovery.triggered and workspace.failed are published,
//     and the failure handler evicts it from the pool. The latch guarantees
//     this happens once; the runtime's own restart policy does the actual
//     restarting
//   - first successful editor probe after assignment: the editor-available
//     latch fires the stats hook and editor.available exactly once per id.
//     Unassigned pool members are swept for failure detection only
//
// States are pruned as workspaces leave the starting/running statuses.
//
// # Usage
//
//	m := monitor.NewMonitor(st, registry, broker, recorder).
//	    WithMaxFailures(cfg.Health.MaxConsecutiveFailures).
//	    WithFailureHandler(maintainer)
//	m.Start()
//	defer m.Stop()
//
//	m.ProbeNow(id) // eager probe right after assignment
//
// Sweeps are non-reentrant: a tick that fires while the previous sweep is
// still running is skipped.
//
// # Integration Points
//
//   - pkg/manager: calls ProbeNow after assignment and Forget on stop
//   - pkg/maintainer: implements FailureHandler; calls ProbeNow after spawn
//   - pkg/api: serves Health(id) as the workspace health block
//   - pkg/stats: receives the exactly-once editor-available hook
//   - pkg/events: receives promotion, failure, and recovery events
//
// # See Also
//
//   - pkg/health: the probe client and result classification
//   - pkg/reaper: removes the records failed workspaces leave behind
package monitor
