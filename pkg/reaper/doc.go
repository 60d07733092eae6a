// Package reaper reconciles the durable workspace table with the
// container runtime and disposes of finished workspaces.
//
// # Architecture
//
// One tick loop (default 60s) runs three passes in a fixed order:
//
//	┌─────────┐ 1. archive_old(24h)            ┌──────────────────┐
//	│  Store  │───────────────────────────────▶│ workspaces_archive│
//	│         │                                └──────────────────┘
//	│         │ 2. ghost sweep                 ┌─────────┐
//	│         │◀───── delete if Get NotFound ──│ Runtime │
//	│         │                                │         │
//	│         │ 3. reap stopped                │         │
//	└─────────┘◀───── delete after Stop ───────└─────────┘
//
// The ghost sweep covers records in starting, running, and stopped: a
// record whose container no longer exists is deleted, which repairs the
// drift left behind when an operator removes containers while the store
// survives. Only a definite NotFound deletes; a runtime that cannot
// answer keeps every record it was asked about.
//
// Failed records are never swept; they hold the evidence of what went
// wrong. They leave when a client stops them, which marks them stopped
// and hands them to the reap pass on the next tick.
//
// Reaping turns a stopped record into nothing: the container is removed
// (already-gone counts as success), then the record. A stop error parks
// the record for the next tick; if stops keep failing, the archive pass
// eventually moves the record out of the live table anyway.
//
// # Usage
//
//	r := reaper.NewReaper(st, rt).
//	    WithInterval(cfg.Loops.Cleanup.Std())
//	r.Start()
//	defer r.Stop()
//
// The first tick runs at start. Ticks are non-reentrant and idempotent:
// running two back-to-back yields the same store state.
//
// # Integration Points
//
//   - pkg/store: List, Delete, and ArchiveOld
//   - pkg/runtime: Get for ghost detection, Stop for teardown
//
// # See Also
//
//   - pkg/maintainer: the registry-side half of runtime reconciliation
package reaper
