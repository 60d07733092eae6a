package maintainer

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/health"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/pool"
	"github.com/slipway-sh/slipway/pkg/proxy"
	"github.com/slipway-sh/slipway/pkg/runtime"
	"github.com/slipway-sh/slipway/pkg/store"
	"github.com/slipway-sh/slipway/pkg/types"
)

const (
	// DefaultInterval between maintenance ticks.
	DefaultInterval = 30 * time.Second

	// DefaultSpawnDelay spaces consecutive spawns inside one tick so a
	// large deficit does not stampede the container runtime.
	DefaultSpawnDelay = 2 * time.Second

	// DefaultReadinessInterval between editor readiness probes of a
	// freshly spawned workspace.
	DefaultReadinessInterval = 2 * time.Second

	// DefaultReadinessCap bounds the readiness wait. A spawn that is not
	// serving its editor by then is abandoned.
	DefaultReadinessCap = 120 * time.Second
)

// Gate decides whether the host has headroom for another workspace. The
// resource probe implements it.
type Gate interface {
	CanLaunch() (bool, string)
}

// Prober hands a workspace to the health monitor for an immediate check
// instead of waiting for the next sweep.
type Prober interface {
	ProbeNow(id string)
}

// Maintainer keeps the pre-warmed pool at its target size. Each tick it
// reconciles the registry against the live container list, then spawns
// workspaces one at a time until the deficit is closed. Spawned workspaces
// enter the registry only after their editor endpoint answers, so a claim
// can never hand out a workspace that is still booting.
type Maintainer struct {
	runtime  runtime.Orchestrator
	registry *pool.Registry
	store    store.Store
	gate     Gate
	broker   *events.Broker
	prober   Prober

	domain      string
	vncPassword string

	interval          time.Duration
	spawnDelay        time.Duration
	readinessInterval time.Duration
	readinessCap      time.Duration
	client            *http.Client

	tickMu sync.Mutex
	stopCh chan struct{}
}

// NewMaintainer creates a pool maintainer. The domain and VNC password are
// baked into every spawned workspace.
func NewMaintainer(rt runtime.Orchestrator, registry *pool.Registry, st store.Store, gate Gate, broker *events.Broker, domain, vncPassword string) *Maintainer {
	return &Maintainer{
		runtime:           rt,
		registry:          registry,
		store:             st,
		gate:              gate,
		broker:            broker,
		domain:            domain,
		vncPassword:       vncPassword,
		interval:          DefaultInterval,
		spawnDelay:        DefaultSpawnDelay,
		readinessInterval: DefaultReadinessInterval,
		readinessCap:      DefaultReadinessCap,
		client:            health.NewProbeClient(health.DefaultProbeTimeout),
		stopCh:            make(chan struct{}),
	}
}

// WithInterval overrides the tick interval
func (m *Maintainer) WithInterval(interval time.Duration) *Maintainer {
	m.interval = interval
	return m
}

// WithSpawnDelay overrides the pause between spawns inside one tick
func (m *Maintainer) WithSpawnDelay(delay time.Duration) *Maintainer {
	m.spawnDelay = delay
	return m
}

// WithReadiness overrides the readiness probe interval and the total wait
func (m *Maintainer) WithReadiness(interval, cap time.Duration) *Maintainer {
	m.readinessInterval = interval
	m.readinessCap = cap
	return m
}

// WithProber wires the health monitor for immediate post-spawn probes
func (m *Maintainer) WithProber(p Prober) *Maintainer {
	m.prober = p
	return m
}

// Start launches the maintenance loop. The first tick runs immediately so
// a restart refills the pool without waiting a full interval.
func (m *Maintainer) Start() {
	go m.run()
	log.WithComponent("maintainer").Info().
		Dur("interval", m.interval).
		Int("target", m.registry.Target()).
		Msg("Queue maintainer started")
}

// Stop terminates the maintenance loop and any in-flight readiness wait.
func (m *Maintainer) Stop() {
	close(m.stopCh)
	log.WithComponent("maintainer").Info().Msg("Queue maintainer stopped")
}

func (m *Maintainer) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.Tick(context.Background())
	for {
		select {
		case <-ticker.C:
			m.Tick(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Tick runs one maintenance pass. A pass still in flight when the next
// tick fires causes the tick to be skipped, not queued, so slow spawns
// never stack up.
func (m *Maintainer) Tick(ctx context.Context) {
	if !m.tickMu.TryLock() {
		log.WithComponent("maintainer").Debug().Msg("Previous tick still running, skipping")
		return
	}
	defer m.tickMu.Unlock()

	m.sync(ctx)

	deficit := m.registry.Deficit()
	if deficit <= 0 {
		return
	}

	if ok, reason := m.gate.CanLaunch(); !ok {
		log.WithComponent("maintainer").Warn().
			Int("deficit", deficit).
			Str("reason", reason).
			Msg("Holding pool spawns, host resources exhausted")
		return
	}

	for i := 0; i < deficit; i++ {
		if i > 0 {
			select {
			case <-time.After(m.spawnDelay):
			case <-m.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
		if err := m.spawnOne(ctx); err != nil {
			log.WithComponent("maintainer").Error().Err(err).Msg("Pool spawn failed")
		}
	}
}

// sync reconciles the registry against the live container list. Entries
// whose containers are gone are dropped, and running containers that carry
// no bucket label are adopted as pre-warmed. Bucket-bound containers are
// never adopted; they belong to a user even if the registry forgot them.
func (m *Maintainer) sync(ctx context.Context) {
	records, err := m.runtime.List(ctx)
	if err != nil {
		log.WithComponent("maintainer").Warn().Err(err).Msg("Failed to list live services")
		return
	}

	live := make(map[string]types.ServiceRecord, len(records))
	for _, record := range records {
		live[record.ID] = record
	}

	for _, entry := range m.registry.Snapshot() {
		if _, ok := live[entry.ID]; ok {
			continue
		}
		m.registry.Remove(entry.ID)
		log.WithComponent("maintainer").Warn().
			Str("workspace_id", entry.ID).
			Str("state", string(entry.State)).
			Msg("Dropped pool entry, container is gone")
	}

	for id, svc := range live {
		if svc.Bucket != "" || svc.Status != runtime.StateRunning || m.registry.Contains(id) {
			continue
		}
		m.registry.Insert(id, svc.ServiceName)
		log.WithComponent("maintainer").Info().
			Str("workspace_id", id).
			Msg("Adopted unclaimed running workspace into pool")
	}
}

// spawnOne creates a workspace without a bucket, waits for its editor to
// answer, and only then inserts it into the registry.
func (m *Maintainer) spawnOne(ctx context.Context) error {
	record, err := m.runtime.Create(ctx, types.CreateConfig{
		SkipBucketAttachment: true,
		VNCPassword:          m.vncPassword,
		Domain:               m.domain,
	})
	if err != nil {
		metrics.PoolSpawnsTotal.WithLabelValues("failed").Inc()
		m.broker.Publish(events.New(events.EventPoolSpawnFailed, "", "runtime create failed").
			WithMeta("error", err.Error()))
		return fmt.Errorf("create pre-warmed workspace: %w", err)
	}

	urls := proxy.URLs(m.domain, record.ID)
	ws := &types.Workspace{
		ID:          record.ID,
		ServiceName: record.ServiceName,
		Status:      types.StatusStarting,
		URLs:        urls,
		CPUCores:    record.CPUCores,
		MemoryBytes: record.MemoryBytes,
		IsPreWarmed: true,
		CreatedAt:   record.CreatedAt,
	}
	if err := m.store.Save(ws); err != nil {
		log.WithComponent("maintainer").Error().Err(err).
			Str("workspace_id", record.ID).
			Msg("Failed to persist spawned workspace")
	}

	if !m.waitReady(ctx, urls.Editor) {
		m.abandonSpawn(ctx, record.ID)
		return fmt.Errorf("workspace %s editor never became ready", record.ID)
	}

	m.registry.Insert(record.ID, record.ServiceName)

	now := time.Now().UTC()
	running := types.StatusRunning
	if err := m.store.UpdateLifecycle(record.ID, store.LifecycleUpdate{Status: &running, StartedAt: &now}); err != nil {
		log.WithComponent("maintainer").Warn().Err(err).
			Str("workspace_id", record.ID).
			Msg("Failed to mark spawned workspace running")
	}

	metrics.PoolSpawnsTotal.WithLabelValues("ok").Inc()
	m.broker.Publish(events.New(events.EventPoolSpawned, record.ID, "pre-warmed workspace ready"))
	if m.prober != nil {
		m.prober.ProbeNow(record.ID)
	}

	log.WithComponent("maintainer").Info().
		Str("workspace_id", record.ID).
		Str("service_name", record.ServiceName).
		Msg("Pre-warmed workspace joined the pool")
	return nil
}

// waitReady polls the editor endpoint until it answers, the cap elapses,
// or the maintainer shuts down. 404 keeps polling since the proxy route
// may not be installed yet.
func (m *Maintainer) waitReady(ctx context.Context, editorURL string) bool {
	checker := health.NewHTTPChecker(editorURL).WithClient(m.client)
	deadline := time.Now().Add(m.readinessCap)

	for {
		if health.ClassifyReadiness(checker.Check(ctx)) == health.Ready {
			return true
		}
		if time.Now().After(deadline) {
			return false
		}
		select {
		case <-time.After(m.readinessInterval):
		case <-m.stopCh:
			return false
		case <-ctx.Done():
			return false
		}
	}
}

// abandonSpawn tears down a workspace that never became ready. The record
// is kept as failed for inspection; the reaper will not touch it.
func (m *Maintainer) abandonSpawn(ctx context.Context, id string) {
	metrics.PoolSpawnsTotal.WithLabelValues("failed").Inc()
	m.registry.Remove(id)

	failed := types.StatusFailed
	if err := m.store.UpdateLifecycle(id, store.LifecycleUpdate{Status: &failed}); err != nil {
		log.WithComponent("maintainer").Warn().Err(err).
			Str("workspace_id", id).
			Msg("Failed to mark abandoned spawn failed")
	}
	if err := m.runtime.Stop(ctx, id); err != nil && !errdefs.IsNotFound(err) {
		log.WithComponent("maintainer").Warn().Err(err).
			Str("workspace_id", id).
			Msg("Failed to stop abandoned spawn")
	}

	m.broker.Publish(events.New(events.EventPoolSpawnFailed, id, "readiness wait exhausted").
		WithMeta("cap", m.readinessCap.String()))
	log.WithComponent("maintainer").Error().
		Str("workspace_id", id).
		Dur("cap", m.readinessCap).
		Msg("Abandoned spawn, editor never became ready")
}

// HandleFailure evicts a workspace from the registry after the health
// monitor marks it failed. The next tick refills the slot.
func (m *Maintainer) HandleFailure(id string, wasPreWarmed bool) {
	if !m.registry.Contains(id) {
		return
	}
	m.registry.Remove(id)
	log.WithComponent("maintainer").Warn().
		Str("workspace_id", id).
		Bool("pre_warmed", wasPreWarmed).
		Msg("Evicted failed workspace from pool")
}
