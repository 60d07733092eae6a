/*
Package types defines the core data structures used throughout Slipway.

This package contains the fundamental types that represent Slipway's domain
model: workspaces, queued pool entries, runtime service records, resource
snapshots, and the closed enumerations for lifecycle status, shutdown reason,
and queue state. These types are used by all other packages for state
management, API responses, and control-loop logic.

# Architecture

The types package is the foundation of Slipway's data model. It defines:

  - Workspace lifecycle records (the durable entity)
  - Queue pool entries (in-memory only)
  - Runtime service records (the orchestrator's live view)
  - Assignment and creation request options
  - Resource and pool statistics snapshots

All types are designed to be:
  - Serializable (JSON, both for storage and for the HTTP API)
  - Owned by exactly one component (single-writer discipline)
  - Self-documenting (clear field names and comments)
  - Validated (typed constants for enums, validation helpers)

# Core Types

Lifecycle:
  - Workspace: Durable record of one developer environment
  - WorkspaceStatus: starting, running, stopping, stopped, failed
  - ShutdownReason: inactivity, manual, error, resource_limit

Pool:
  - QueuedEntry: In-memory pool member, never persisted
  - QueueState: pre-warmed, assigned, running

Boundary:
  - ServiceRecord: The runtime's authoritative view of a service
  - CreateConfig: Enumerated launch options
  - AssignRequest: Incoming client request
  - Credentials: Object-storage access keys

Statistics:
  - PoolStats: Pre-warm pool summary
  - ResourceSnapshot: Host CPU/memory/disk point-in-time view

# Identifier Scheme

Workspace ids are short DNS-safe tokens: 4-32 lowercase alphanumerics with
interior hyphens only. The runtime service name is always derived as

	service_name = "ide-" + id

via ServiceName; the reverse mapping IDFromServiceName filters out services
that are not workspaces (the proxy, the control plane itself). ValidateID
enforces the pattern at every trust boundary.

# State Machine

Workspaces follow a lifecycle:

	starting → running → stopping → stopped
	    ↓         ↓
	  failed    failed

Valid transitions:
  - starting → running (first fully successful health probe)
  - starting|running → failed (N consecutive probe failures)
  - running → stopping (stop requested)
  - stopping → stopped (runtime object removed)

Queued entries follow:

	pre-warmed → assigned → running

The only backwards edge is assigned → pre-warmed, taken when bucket
attachment fails mid-assignment and the container is returned to the pool.

# Usage

Deriving names and validating ids:

	id := "a1b2c3d4e5f6"
	if err := types.ValidateID(id); err != nil {
		return err
	}
	name := types.ServiceName(id) // "ide-a1b2c3d4e5f6"

Building a workspace record:

	ws := &types.Workspace{
		ID:          id,
		ServiceName: types.ServiceName(id),
		Bucket:      "team-artifacts",
		Status:      types.StatusStarting,
		IsPreWarmed: true,
		CreatedAt:   time.Now(),
	}

# Ownership

Mutation ownership is strict:

  - pkg/pool exclusively mutates QueuedEntry
  - pkg/store exclusively mutates persisted Workspace rows
  - pkg/monitor exclusively owns per-workspace health state

Other packages read through those components' operations; nothing in this
package is synchronized.

# Integration Points

This package integrates with:

  - pkg/store: Persists Workspace rows as JSON in bbolt
  - pkg/runtime: Produces ServiceRecord views, consumes CreateConfig
  - pkg/pool: Manages QueuedEntry state transitions
  - pkg/manager: Drives assignment with AssignRequest
  - pkg/api: Serializes Workspace and PoolStats into responses

# See Also

  - pkg/store for the persistence layer
  - pkg/proxy for the URL scheme behind ServiceURLs
  - pkg/manager for lifecycle orchestration
*/
package types
