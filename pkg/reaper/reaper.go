package reaper

import (
	"context"
	"sync"
	"time"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/runtime"
	"github.com/slipway-sh/slipway/pkg/store"
	"github.com/slipway-sh/slipway/pkg/types"
)

const (
	// DefaultInterval between cleanup ticks.
	DefaultInterval = 60 * time.Second

	// DefaultRetention keeps stopped records in the live table this long
	// before they move to the archive.
	DefaultRetention = 24 * time.Hour
)

// ghostStatuses are swept for records whose containers vanished. Failed
// records are kept for inspection, and stopping records belong to an
// in-flight stop call that will finish the transition itself.
var ghostStatuses = []types.WorkspaceStatus{
	types.StatusStarting,
	types.StatusRunning,
	types.StatusStopped,
}

// Reaper reconciles the durable store with the container runtime. Each
// tick it archives old stopped records, deletes records whose containers
// no longer exist, and tears down containers for records marked stopped.
type Reaper struct {
	store   store.Store
	runtime runtime.Orchestrator

	interval  time.Duration
	retention time.Duration

	tickMu sync.Mutex
	stopCh chan struct{}
}

// NewReaper creates a cleanup reaper over the given store and runtime.
func NewReaper(st store.Store, rt runtime.Orchestrator) *Reaper {
	return &Reaper{
		store:     st,
		runtime:   rt,
		interval:  DefaultInterval,
		retention: DefaultRetention,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval overrides the tick interval
func (r *Reaper) WithInterval(interval time.Duration) *Reaper {
	r.interval = interval
	return r
}

// WithRetention overrides how long stopped records stay before archival
func (r *Reaper) WithRetention(retention time.Duration) *Reaper {
	r.retention = retention
	return r
}

// Start launches the cleanup loop. The first tick runs immediately so
// drift accumulated while the control plane was down is repaired at
// startup, not one interval later.
func (r *Reaper) Start() {
	go r.run()
	log.WithComponent("reaper").Info().
		Dur("interval", r.interval).
		Dur("retention", r.retention).
		Msg("Cleanup reaper started")
}

// Stop terminates the cleanup loop.
func (r *Reaper) Stop() {
	close(r.stopCh)
	log.WithComponent("reaper").Info().Msg("Cleanup reaper stopped")
}

func (r *Reaper) run() {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.Tick(context.Background())
	for {
		select {
		case <-ticker.C:
			r.Tick(context.Background())
		case <-r.stopCh:
			return
		}
	}
}

// Tick runs one cleanup pass: archive, then ghost reconciliation, then
// stopped-record teardown. Overlapping ticks are skipped, and the whole
// pass is idempotent.
func (r *Reaper) Tick(ctx context.Context) {
	if !r.tickMu.TryLock() {
		log.WithComponent("reaper").Debug().Msg("Previous tick still running, skipping")
		return
	}
	defer r.tickMu.Unlock()

	r.archive()
	r.reconcile(ctx)
	r.reapStopped(ctx)
}

// archive moves stopped records older than the retention window into the
// archive table.
func (r *Reaper) archive() {
	cutoff := time.Now().UTC().Add(-r.retention)
	moved, err := r.store.ArchiveOld(cutoff)
	if err != nil {
		log.WithComponent("reaper").Warn().Err(err).Msg("Failed to archive stopped workspaces")
		return
	}
	if moved > 0 {
		log.WithComponent("reaper").Info().
			Int("count", moved).
			Msg("Archived stopped workspaces")
	}
}

// reconcile deletes records whose containers no longer exist. Only a
// definite NotFound deletes; any other runtime error leaves the record
// alone until the runtime can answer again.
func (r *Reaper) reconcile(ctx context.Context) {
	for _, status := range ghostStatuses {
		records, err := r.store.List(store.Filter{Status: status})
		if err != nil {
			log.WithComponent("reaper").Warn().Err(err).
				Str("status", string(status)).
				Msg("Failed to list records for reconciliation")
			continue
		}
		for _, ws := range records {
			_, err := r.runtime.Get(ctx, ws.ID)
			if err == nil {
				continue
			}
			if !errdefs.IsNotFound(err) {
				log.WithComponent("reaper").Debug().Err(err).
					Str("workspace_id", ws.ID).
					Msg("Runtime lookup failed, keeping record")
				continue
			}
			if err := r.store.Delete(ws.ID); err != nil {
				log.WithComponent("reaper").Warn().Err(err).
					Str("workspace_id", ws.ID).
					Msg("Failed to delete ghost record")
				continue
			}
			log.WithComponent("reaper").Info().
				Str("workspace_id", ws.ID).
				Str("status", string(status)).
				Msg("Deleted ghost record, container is gone")
		}
	}
}

// reapStopped removes the containers of stopped records and then the
// records themselves. An already-gone container counts as success; any
// other stop error leaves the record for the next tick.
func (r *Reaper) reapStopped(ctx context.Context) {
	records, err := r.store.List(store.Filter{Status: types.StatusStopped})
	if err != nil {
		log.WithComponent("reaper").Warn().Err(err).Msg("Failed to list stopped records")
		return
	}
	for _, ws := range records {
		if err := r.runtime.Stop(ctx, ws.ID); err != nil && !errdefs.IsNotFound(err) {
			log.WithComponent("reaper").Warn().Err(err).
				Str("workspace_id", ws.ID).
				Msg("Failed to remove stopped service, will retry next tick")
			continue
		}
		if err := r.store.Delete(ws.ID); err != nil {
			log.WithComponent("reaper").Warn().Err(err).
				Str("workspace_id", ws.ID).
				Msg("Failed to delete reaped record")
			continue
		}
		log.WithComponent("reaper").Info().
			Str("workspace_id", ws.ID).
			Msg("Reaped stopped workspace")
	}
}
