package store

import (
	"time"

	"github.com/slipway-sh/slipway/pkg/types"
)

// Filter narrows List results. Zero values mean "no constraint".
type Filter struct {
	Status types.WorkspaceStatus
	Limit  int
	Offset int
}

// LifecycleUpdate is a partial update: only non-nil fields are written.
type LifecycleUpdate struct {
	Status         *types.WorkspaceStatus
	StartedAt      *time.Time
	StoppedAt      *time.Time
	LastActivity   *time.Time
	ShutdownReason *types.ShutdownReason
}

// Store is the durable record of every workspace the control plane has
// created. Implemented by the bbolt-backed store.
type Store interface {
	// Save upserts a workspace row by id.
	Save(ws *types.Workspace) error

	// Get returns the row for id, or an error wrapping errdefs.ErrNotFound.
	Get(id string) (*types.Workspace, error)

	// List returns rows matching the filter, ordered created_at descending.
	List(filter Filter) ([]*types.Workspace, error)

	// UpdateLifecycle applies a partial update to the named fields only.
	UpdateLifecycle(id string, update LifecycleUpdate) error

	// Delete removes the row. Deleting a missing row is not an error.
	Delete(id string) error

	// Count returns the number of rows, optionally restricted to a status.
	Count(status types.WorkspaceStatus) (int, error)

	// ArchiveOld moves rows with status=stopped and stopped_at before the
	// cutoff into the archive, returning the count moved.
	ArchiveOld(cutoff time.Time) (int, error)

	Close() error
}
