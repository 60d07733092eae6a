package runtime

import (
	"context"
	"encoding/hex"

	"github.com/google/uuid"

	"github.com/slipway-sh/slipway/pkg/types"
)

// Service states as reported by List and Get.
const (
	StateRunning = "running"
	StateCreated = "created"
	StateStopped = "stopped"
	StateUnknown = "unknown"
)

// Orchestrator is the contract over the container runtime. The control
// plane never talks to containerd directly; everything goes through this
// interface so tests can swap in the Memory implementation.
type Orchestrator interface {
	// Create launches a workspace service with a fresh id and returns its
	// record. Errors wrap errdefs.ErrLaunchFailed.
	Create(ctx context.Context, cfg types.CreateConfig) (*types.ServiceRecord, error)

	// AttachBucket binds bucket credentials to a running service. It is
	// idempotent. Errors wrap errdefs.ErrAttachFailed.
	AttachBucket(ctx context.Context, id, bucket, region string, creds types.Credentials) error

	// Stop tears the service down. A service that is already gone returns
	// an error wrapping errdefs.ErrNotFound, which callers may treat as
	// success.
	Stop(ctx context.Context, id string) error

	// List returns every live workspace service. The result is
	// authoritative over the persistent store during reconciliation.
	List(ctx context.Context) ([]types.ServiceRecord, error)

	// Get returns one service, or an error wrapping errdefs.ErrNotFound.
	Get(ctx context.Context, id string) (*types.ServiceRecord, error)

	// Close releases the runtime connection.
	Close() error
}

// newWorkspaceID derives a fresh 12-character lowercase hex id from a
// random UUID. Short enough for URLs, long enough that collisions are a
// retry, not a design concern.
func newWorkspaceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:6])
}
