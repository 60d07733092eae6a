/*
Package pool tracks the pre-warmed workspace pool and hands out members
atomically during assignment.

The pool package implements the in-memory registry of pool membership. Every
workspace container that exists for pooling purposes has exactly one entry
here, in one of three states, and every state transition happens inside one
mutex-guarded critical section.

# Architecture

	┌──────────────────── POOL REGISTRY ───────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │              Registry                       │           │
	│  │  map[id]*QueuedEntry  guarded by sync.Mutex │           │
	│  │  target: desired pre-warmed count           │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              Entry States                   │           │
	│  │                                              │           │
	│  │   Insert ──▶ pre-warmed ──ClaimOne──▶ assigned│          │
	│  │                  ▲                       │    │          │
	│  │                  └─────ReturnToPool──────┤    │          │
	│  │                                          ▼    │          │
	│  │                                  MarkRunning  │          │
	│  │                                          │    │          │
	│  │                                       running │          │
	│  │                                              │           │
	│  │   Remove drops an entry from any state      │           │
	│  └─────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Entry States

pre-warmed:
  - Container exists and is warming or ready, not owned by anyone
  - Counted against the configured target
  - The only state ClaimOne will hand out

assigned:
  - Claimed by an in-flight assignment request
  - Bucket may be bound while the attach is underway
  - Rolled back to pre-warmed by ReturnToPool if the claim aborts early

running:
  - Assignment completed, the workspace belongs to a developer
  - Kept in the registry so sync and stats see the full population

# Operations

ClaimOne:
  - Finds any pre-warmed entry, marks it assigned, stamps AssignedAt
  - Find-and-mark is one critical section, so two concurrent claims can
    never return the same entry
  - Returns a copy; callers cannot mutate registry state through it
  - Returns nil when no pre-warmed entry exists

Insert:
  - Registers a pre-warmed entry with CreatedAt set to now
  - No-op when the id is already tracked, safe for blind re-insertion
    during the maintainer's sync pass

BindBucket / ReturnToPool / MarkRunning:
  - Valid only on assigned entries; anything else is refused or ignored

Deficit / Stats / Snapshot / SetTarget:
  - Read-side helpers for the maintainer loop, the stats endpoint, and
    runtime target changes

# Usage

	reg := pool.NewRegistry(2)

	// Maintainer replenishes
	reg.Insert("a1b2c3d4", types.ServiceName("a1b2c3d4"))

	// Assignment path
	entry := reg.ClaimOne()
	if entry != nil {
		if !reg.BindBucket(entry.ID, "team-artifacts") {
			reg.ReturnToPool(entry.ID)
		}
		// ... attach bucket, persist record ...
		reg.MarkRunning(entry.ID)
	}

	// Replenishment math
	if n := reg.Deficit(); n > 0 {
		// spawn n replacements
	}

# Integration Points

This package integrates with:

  - pkg/manager: Claims entries during workspace assignment
  - pkg/maintainer: Syncs membership with the runtime and replenishes
  - pkg/monitor: Removes entries whose containers died
  - pkg/metrics: Publishes Stats() as pool gauges
  - pkg/types: QueuedEntry and PoolStats definitions

# Concurrency

A single plain mutex guards the whole map. Operations are short (no I/O
under the lock), so contention is negligible at the pool sizes this serves.
The registry is process-local state; the persistent record of a workspace
lives in pkg/store, and the maintainer reconciles the two against the
runtime every tick.

# See Also

  - pkg/maintainer for the replenishment loop
  - pkg/manager for the assignment path
  - pkg/types for QueuedEntry
*/
package pool
