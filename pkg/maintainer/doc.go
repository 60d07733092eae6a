// Package maintainer keeps the pre-warmed workspace pool at its target
// size so assignment requests can be served by handing out an already
// booted container instead of launching one.
//
// # Architecture
//
// One tick loop reconciles, then spawns:
//
//	┌─────────┐ list live      ┌────────────┐ deficit      ┌──────────┐
//	│ Runtime │───────────────▶│ Maintainer │─────────────▶│ Registry │
//	└─────────┘                └─────┬──────┘ drop / adopt └──────────┘
//	     ▲                           │
//	     │ create (no bucket)        │ gate check once per tick
//	     ▼                           ▼
//	 workspace ◀── readiness ──┌───────────┐
//	 container     probes      │ Resources │
//	                           └───────────┘
//
// Reconciliation runs first on every tick: registry entries whose
// containers vanished are dropped, and running containers that carry no
// bucket label are adopted as pre-warmed. A bucket label means a user owns
// the container, so those are never adopted no matter what the registry
// thinks.
//
// Spawning closes the remaining deficit one workspace at a time with a
// delay between launches. The resource gate is consulted once per tick;
// when it refuses, the whole tick's spawns are held and retried next tick.
// A spawned workspace joins the registry only after its editor endpoint
// answers a readiness probe, so a concurrent claim can never receive a
// container that is still booting. 404 responses keep the wait alive
// because the proxy route may not be installed yet; the wait gives up
// after a cap (default 2 minutes), stops the container, and leaves the
// record marked failed.
//
// # Usage
//
//	m := maintainer.NewMaintainer(rt, registry, st, probe, broker,
//	    cfg.Proxy.Domain, cfg.Workspace.VNCPassword).
//	    WithInterval(cfg.Loops.Queue.Std()).
//	    WithProber(healthMonitor)
//	m.Start()
//	defer m.Stop()
//
// The first tick runs at start, not one interval later, so a restarted
// control plane refills its pool immediately. Ticks are non-reentrant: a
// tick that fires while the previous one is still waiting on readiness is
// skipped.
//
// # Integration Points
//
//   - pkg/pool: the registry being kept at target
//   - pkg/runtime: container create, list, and stop
//   - pkg/resources: implements Gate for the per-tick headroom check
//   - pkg/monitor: implements Prober for eager post-spawn probes, and
//     calls HandleFailure to evict workspaces that failed health checks
//   - pkg/events: receives pool.spawned and pool.spawn_failed
//
// # See Also
//
//   - pkg/manager: the assignment path that claims what this pool holds
//   - pkg/health: readiness probe classification
package maintainer
