/*
Package store provides BoltDB-backed persistence for workspace lifecycle records.

The store package implements the Store interface using BoltDB as the underlying
database, keeping one durable row per workspace across its whole lifecycle plus
an archive of long-stopped rows. All data is serialized as JSON and stored in
separate buckets, with two small index buckets maintained inside the same write
transaction as every row mutation.

# Architecture

Slipway uses BoltDB (bbolt) for embedded, transactional storage with zero
external dependencies:

	┌──────────────────── BOLTDB STORAGE ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │            BoltStore                        │           │
	│  │  - File: <dataDir>/slipway.db               │           │
	│  │  - Format: B+tree with MVCC                 │           │
	│  │  - Transactions: ACID with fsync            │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │              Bucket Structure               │           │
	│  │  ┌──────────────────────────────────────┐  │           │
	│  │  │ workspaces          (workspace ID)   │  │           │
	│  │  │ workspaces_archive  (workspace ID)   │  │           │
	│  │  │ idx_status       (status/ID → ID)    │  │           │
	│  │  │ idx_stopped_at   (stamp/ID → ID)     │  │           │
	│  │  └──────────────────────────────────────┘  │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │        Transaction Management               │           │
	│  │  - Read: db.View() - Concurrent reads       │           │
	│  │  - Write: db.Update() - Serialized writes   │           │
	│  │  - Row + indexes mutate in one transaction  │           │
	│  └─────────────────────────────────────────────┘          │
	└────────────────────────────────────────────────────────────┘

# Core Components

BoltStore:
  - Implements Store interface using BoltDB
  - Single database file per control plane instance
  - Automatic bucket creation on initialization
  - Thread-safe via BoltDB's transaction model

Buckets:
  - workspaces: Live lifecycle rows, keyed by workspace ID
  - workspaces_archive: Rows moved out of the live set by ArchiveOld
  - idx_status: Composite keys "<status>/<id>" for cheap status scans
  - idx_stopped_at: Composite keys "<stamp>/<id>" ordered by stop time

Index Keys:
  - idx_status entries exist for every live row
  - idx_stopped_at entries exist only for rows with a StoppedAt time
  - Stop timestamps use a fixed-width layout so byte order equals
    chronological order, letting ArchiveOld stop scanning at the cutoff

# Operations

Save:
  - Upsert by workspace ID (create and update are the same call)
  - Drops the previous row's index entries and writes the new ones
  - Atomic commit via a single write transaction

Get:
  - Key lookup by workspace ID
  - Returns errdefs.ErrNotFound when absent

List:
  - Status filter walks the idx_status prefix, otherwise a full scan
  - Results sorted by CreatedAt descending (newest first)
  - Offset and Limit applied after sorting

UpdateLifecycle:
  - Partial update of lifecycle fields (nil pointer fields untouched)
  - Read-modify-write inside one transaction, indexes kept consistent
  - Returns errdefs.ErrNotFound for a missing row

Delete:
  - Removes the row and its index entries
  - No error if the row doesn't exist (idempotent)

Count:
  - Empty status counts every live row via bucket stats
  - Specific status walks the idx_status prefix

ArchiveOld:
  - Walks idx_stopped_at in chronological order up to the cutoff
  - Moves stopped rows to workspaces_archive and clears their indexes
  - Returns the number of rows moved

# Usage

Creating a Store:

	st, err := store.NewBoltStore("/var/lib/slipway")
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

Workspace Operations:

	// Persist a new workspace row
	ws := &types.Workspace{
		ID:          "a1b2c3d4",
		ServiceName: types.ServiceName("a1b2c3d4"),
		Status:      types.StatusStarting,
		CreatedAt:   time.Now().UTC(),
	}
	err := st.Save(ws)

	// Fetch it back
	ws, err := st.Get("a1b2c3d4")

	// Move it to running without touching other fields
	running := types.StatusRunning
	now := time.Now().UTC()
	err = st.UpdateLifecycle("a1b2c3d4", store.LifecycleUpdate{
		Status:    &running,
		StartedAt: &now,
	})

	// Page through running workspaces, newest first
	rows, err := st.List(store.Filter{
		Status: types.StatusRunning,
		Limit:  20,
	})

	// Archive rows stopped more than 24h ago
	moved, err := st.ArchiveOld(time.Now().Add(-24 * time.Hour))

# Integration Points

This package integrates with:

  - pkg/manager: Writes rows on assignment, reads them for API responses
  - pkg/monitor: Flips status on promotion and repeated probe failure
  - pkg/reaper: Calls ArchiveOld and Delete during periodic cleanup
  - pkg/maintainer: Reconciles rows against the live container set
  - pkg/types: Workspace and status definitions

# Design Patterns

Upsert Pattern:
  - Create and Update use the same Save call
  - No separate "exists" check needed
  - Atomic replacement including index maintenance

Idempotent Deletes:
  - Delete returns no error if the row doesn't exist
  - Safe to call from multiple cleanup paths

Partial Updates:
  - LifecycleUpdate uses pointer fields to express "leave unchanged"
  - Callers never need to read-modify-write themselves
  - Prevents lost updates between concurrent loops

Error Wrapping:
  - All errors wrapped with context: fmt.Errorf("op failed: %w", err)
  - errdefs sentinels preserved through the wrap for errors.Is checks

# Performance Characteristics

Read Operations:
  - Get by key: O(log n) via B+tree, typically < 1ms
  - List by status: prefix walk over idx_status, O(matches)
  - Full list: O(n) scan, ~1ms per 1000 entries
  - Concurrent reads: Supported via MVCC snapshots

Write Operations:
  - Save/UpdateLifecycle: O(log n) plus index touches, ~1-5ms with fsync
  - ArchiveOld: O(rows past cutoff), early exit at the first fresh row
  - Serialized: Only one writer at a time (BoltDB limitation)

The live set stays small (pre-warm pool plus active developers), so full
scans stay cheap even without further indexing.

# Troubleshooting

Database Locked:
  - Symptom: "database is locked" error at startup
  - Cause: Another slipway process holds the exclusive file lock
  - Solution: Ensure a single control plane instance per data dir

Database Corruption:
  - Symptom: "invalid database" or checksum errors
  - Cause: Unclean shutdown, disk failure
  - Solution: Restore the database file from backup
  - Prevention: fsync is enabled by default

Index Drift:
  - Symptom: List by status disagrees with Get results
  - Cause: Database written by an older build without index buckets
  - Solution: Run slipway-migrate to rebuild idx_status/idx_stopped_at

# Data Integrity

Transaction Guarantees:
  - Atomicity: Row and index entries commit together or not at all
  - Consistency: JSON round trip validated by Go types
  - Isolation: Snapshot reads, serialized writes
  - Durability: fsync ensures crash recovery

Backup and Restore:
  - Database is a single file (easy to copy)
  - Backup: Copy the file while the process is stopped
  - Restore: Replace the file and restart

File Permissions:
  - Database file: 0600 (owner read/write only)
  - Contains service credentials for attached buckets

# See Also

  - pkg/types for the Workspace definition and status values
  - pkg/reaper for the archive and cleanup policy
  - cmd/slipway-migrate for index backfill on old databases
  - BoltDB documentation: https://github.com/etcd-io/bbolt
*/
package store
