package metrics

import (
	"time"

	"github.com/slipway-sh/slipway/pkg/types"
)

// fleetStatuses are swept on every collection cycle. Setting every label
// each pass keeps gauges from going stale when a status empties out.
var fleetStatuses = []types.WorkspaceStatus{
	types.StatusStarting,
	types.StatusRunning,
	types.StatusStopping,
	types.StatusStopped,
	types.StatusFailed,
}

// RowCounter counts persisted workspaces by lifecycle status.
type RowCounter interface {
	Count(status types.WorkspaceStatus) (int, error)
}

// PoolSource reports pre-warm pool occupancy.
type PoolSource interface {
	Stats() types.PoolStats
}

// ResourceSource samples host resource usage.
type ResourceSource interface {
	Snapshot() (types.ResourceSnapshot, error)
}

// Collector periodically refreshes the fleet, pool, and host gauges.
type Collector struct {
	store     RowCounter
	pool      PoolSource
	resources ResourceSource
	interval  time.Duration
	stopCh    chan struct{}
}

// NewCollector creates a collector polling the given sources.
func NewCollector(store RowCounter, pool PoolSource, resources ResourceSource) *Collector {
	return &Collector{
		store:     store,
		pool:      pool,
		resources: resources,
		interval:  15 * time.Second,
		stopCh:    make(chan struct{}),
	}
}

// WithInterval overrides the collection interval
func (c *Collector) WithInterval(interval time.Duration) *Collector {
	c.interval = interval
	return c
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(c.interval)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectFleet()
	c.collectPool()
	c.collectResources()
}

func (c *Collector) collectFleet() {
	for _, status := range fleetStatuses {
		count, err := c.store.Count(status)
		if err != nil {
			return
		}
		WorkspacesTotal.WithLabelValues(string(status)).Set(float64(count))
	}
}

func (c *Collector) collectPool() {
	stats := c.pool.Stats()
	PoolWorkspaces.WithLabelValues("pre_warmed").Set(float64(stats.PreWarmed))
	PoolWorkspaces.WithLabelValues("assigned").Set(float64(stats.Assigned))
	PoolWorkspaces.WithLabelValues("running").Set(float64(stats.Running))
	PoolTarget.Set(float64(stats.Target))
}

func (c *Collector) collectResources() {
	snap, err := c.resources.Snapshot()
	if err != nil {
		return
	}
	HostCPUPercent.Set(snap.CPUUsagePct)
	HostMemoryPercent.Set(snap.MemPct)
	HostDiskPercent.Set(snap.DiskPct)
	RuntimeWorkspaces.Set(float64(snap.LiveWorkspaces))
}
