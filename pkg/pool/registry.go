package pool

import (
	"sync"
	"time"

	"github.com/slipway-sh/slipway/pkg/types"
)

// Registry tracks pool membership in memory. Every mutation happens inside
// one critical section, which is what makes ClaimOne safe to call from
// concurrent assignment requests.
type Registry struct {
	mu      sync.Mutex
	entries map[string]*types.QueuedEntry
	target  int
}

// NewRegistry creates an empty registry with the given pre-warm target.
func NewRegistry(target int) *Registry {
	return &Registry{
		entries: make(map[string]*types.QueuedEntry),
		target:  target,
	}
}

// Insert adds a pre-warmed entry. Inserting an id that is already tracked is
// a no-op, so the maintainer's sync pass can call it blindly.
func (r *Registry) Insert(id, serviceName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; ok {
		return
	}
	r.entries[id] = &types.QueuedEntry{
		ID:          id,
		ServiceName: serviceName,
		State:       types.QueuePreWarmed,
		CreatedAt:   time.Now().UTC(),
	}
}

// ClaimOne atomically picks any pre-warmed entry, marks it assigned, and
// returns a copy. Returns nil when the pool has no pre-warmed entry.
// Concurrent callers never receive the same entry.
func (r *Registry) ClaimOne() *types.QueuedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, entry := range r.entries {
		if entry.State != types.QueuePreWarmed {
			continue
		}
		now := time.Now().UTC()
		entry.State = types.QueueAssigned
		entry.AssignedAt = &now
		return copyEntry(entry)
	}
	return nil
}

// BindBucket records the bucket an assigned entry was claimed for. Returns
// false if the entry is absent or not in the assigned state.
func (r *Registry) BindBucket(id, bucket string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok || entry.State != types.QueueAssigned {
		return false
	}
	entry.Bucket = bucket
	return true
}

// ReturnToPool moves an assigned entry back to pre-warmed, clearing its
// bucket and assignment time. Used when a claim is rolled back before the
// container was touched.
func (r *Registry) ReturnToPool(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok || entry.State != types.QueueAssigned {
		return
	}
	entry.State = types.QueuePreWarmed
	entry.Bucket = ""
	entry.AssignedAt = nil
}

// MarkRunning promotes an assigned entry to running.
func (r *Registry) MarkRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	entry, ok := r.entries[id]
	if !ok || entry.State != types.QueueAssigned {
		return
	}
	entry.State = types.QueueRunning
}

// Remove drops an entry regardless of state. Removing an unknown id is a
// no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, id)
}

// Contains reports whether the registry tracks the given id.
func (r *Registry) Contains(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[id]
	return ok
}

// Stats returns current pool counts by state.
func (r *Registry) Stats() types.PoolStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	stats := types.PoolStats{
		Total:  len(r.entries),
		Target: r.target,
	}
	for _, entry := range r.entries {
		switch entry.State {
		case types.QueuePreWarmed:
			stats.PreWarmed++
		case types.QueueAssigned:
			stats.Assigned++
		case types.QueueRunning:
			stats.Running++
		}
	}
	return stats
}

// Deficit returns how many pre-warmed entries are missing against the
// target. Never negative.
func (r *Registry) Deficit() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	preWarmed := 0
	for _, entry := range r.entries {
		if entry.State == types.QueuePreWarmed {
			preWarmed++
		}
	}
	if preWarmed >= r.target {
		return 0
	}
	return r.target - preWarmed
}

// SetTarget changes the pre-warm target at runtime.
func (r *Registry) SetTarget(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n < 0 {
		n = 0
	}
	r.target = n
}

// Target returns the configured pre-warm target.
func (r *Registry) Target() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.target
}

// Snapshot returns copies of all entries, for reconciliation and
// diagnostics. Mutating the result does not affect the registry.
func (r *Registry) Snapshot() []*types.QueuedEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make([]*types.QueuedEntry, 0, len(r.entries))
	for _, entry := range r.entries {
		snapshot = append(snapshot, copyEntry(entry))
	}
	return snapshot
}

func copyEntry(entry *types.QueuedEntry) *types.QueuedEntry {
	dup := *entry
	if entry.AssignedAt != nil {
		at := *entry.AssignedAt
		dup.AssignedAt = &at
	}
	return &dup
}
