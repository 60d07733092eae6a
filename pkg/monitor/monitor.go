package monitor

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/health"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/pool"
	"github.com/slipway-sh/slipway/pkg/stats"
	"github.com/slipway-sh/slipway/pkg/store"
	"github.com/slipway-sh/slipway/pkg/types"
)

const (
	// DefaultInterval between probe sweeps.
	DefaultInterval = 5 * time.Second

	// DefaultMaxFailures is the consecutive-failure budget before a
	// workspace is marked failed.
	DefaultMaxFailures = 3

	// maxConcurrentSweeps bounds how many workspaces are probed at once.
	maxConcurrentSweeps = 4
)

// HealthState is the in-memory probe history for one workspace.
type HealthState struct {
	ID                  string    `json:"id"`
	Healthy             bool      `json:"healthy"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	LastCheck           time.Time `json:"last_check"`
	RecoveryAttempted   bool      `json:"recovery_attempted"`
	EditorAvailable     bool      `json:"editor_available"`
}

// FailureHandler is notified when a workspace exhausts its failure budget.
// The queue maintainer implements it to evict the workspace from the pool.
type FailureHandler interface {
	HandleFailure(id string, wasPreWarmed bool)
}

// Monitor probes the endpoints of every active workspace, promotes
// starting workspaces to running on their first fully healthy sweep, and
// marks workspaces failed after repeated probe failures.
type Monitor struct {
	store    store.Store
	registry *pool.Registry
	broker   *events.Broker
	recorder stats.Recorder

	interval    time.Duration
	maxFailures int
	client      *http.Client

	failureHandler FailureHandler

	tickMu sync.Mutex

	mu     sync.Mutex
	states map[string]*HealthState

	stopCh chan struct{}
}

// NewMonitor creates a health monitor over the given store and registry.
func NewMonitor(st store.Store, registry *pool.Registry, broker *events.Broker, recorder stats.Recorder) *Monitor {
	return &Monitor{
		store:       st,
		registry:    registry,
		broker:      broker,
		recorder:    recorder,
		interval:    DefaultInterval,
		maxFailures: DefaultMaxFailures,
		client:      health.NewProbeClient(health.DefaultProbeTimeout),
		states:      make(map[string]*HealthState),
		stopCh:      make(chan struct{}),
	}
}

// WithInterval overrides the sweep interval
func (m *Monitor) WithInterval(interval time.Duration) *Monitor {
	m.interval = interval
	return m
}

// WithMaxFailures overrides the consecutive-failure budget
func (m *Monitor) WithMaxFailures(n int) *Monitor {
	m.maxFailures = n
	return m
}

// WithProbeTimeout overrides the per-request probe timeout
func (m *Monitor) WithProbeTimeout(timeout time.Duration) *Monitor {
	m.client = health.NewProbeClient(timeout)
	return m
}

// WithFailureHandler wires the pool eviction callback
func (m *Monitor) WithFailureHandler(h FailureHandler) *Monitor {
	m.failureHandler = h
	return m
}

// Start launches the probe loop.
func (m *Monitor) Start() {
	go m.run()
	log.WithComponent("monitor").Info().
		Dur("interval", m.interval).
		Int("max_failures", m.maxFailures).
		Msg("Health monitor started")
}

// Stop terminates the probe loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
	log.WithComponent("monitor").Info().Msg("Health monitor stopped")
}

func (m *Monitor) run() {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep(context.Background())
		case <-m.stopCh:
			return
		}
	}
}

// Sweep probes every active workspace once. A sweep still in flight when
// the next tick fires causes the tick to be skipped, not queued.
func (m *Monitor) Sweep(ctx context.Context) {
	if !m.tickMu.TryLock() {
		log.WithComponent("monitor").Debug().Msg("Previous sweep still running, skipping tick")
		return
	}
	defer m.tickMu.Unlock()

	active, err := m.listActive()
	if err != nil {
		log.WithComponent("monitor").Warn().Err(err).Msg("Failed to list active workspaces")
		return
	}

	m.prune(active)

	sem := make(chan struct{}, maxConcurrentSweeps)
	var wg sync.WaitGroup
	for _, ws := range active {
		wg.Add(1)
		sem <- struct{}{}
		go func(ws *types.Workspace) {
			defer wg.Done()
			defer func() { <-sem }()
			m.probeWorkspace(ctx, ws)
		}(ws)
	}
	wg.Wait()
}

// ProbeNow triggers an eager asynchronous probe, used right after
// assignment so a pool hit can reach running without waiting for the next
// sweep.
func (m *Monitor) ProbeNow(id string) {
	go func() {
		ws, err := m.store.Get(id)
		if err != nil {
			log.WithComponent("monitor").Debug().Err(err).
				Str("workspace_id", id).
				Msg("Eager probe skipped, workspace not found")
			return
		}
		if !ws.Status.Active() {
			return
		}
		m.probeWorkspace(context.Background(), ws)
	}()
}

// Forget drops the health state for a workspace that left the active
// statuses.
func (m *Monitor) Forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, id)
}

// Health returns a copy of the workspace's probe state, or nil when the
// monitor has not probed it yet.
func (m *Monitor) Health(id string) *HealthState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[id]
	if !ok {
		return nil
	}
	copied := *state
	return &copied
}

func (m *Monitor) listActive() ([]*types.Workspace, error) {
	starting, err := m.store.List(store.Filter{Status: types.StatusStarting})
	if err != nil {
		return nil, err
	}
	running, err := m.store.List(store.Filter{Status: types.StatusRunning})
	if err != nil {
		return nil, err
	}
	return append(starting, running...), nil
}

// prune drops states for workspaces that left the active statuses.
func (m *Monitor) prune(active []*types.Workspace) {
	keep := make(map[string]bool, len(active))
	for _, ws := range active {
		keep[ws.ID] = true
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for id := range m.states {
		if !keep[id] {
			delete(m.states, id)
		}
	}
}

func (m *Monitor) probeWorkspace(ctx context.Context, ws *types.Workspace) {
	outcome := m.probeEndpoints(ctx, ws.URLs)
	now := time.Now().UTC()

	m.mu.Lock()
	state, ok := m.states[ws.ID]
	if !ok {
		state = &HealthState{ID: ws.ID, Healthy: true}
		m.states[ws.ID] = state
	}
	state.LastCheck = now

	var promote, firstEditor, triggerRecovery bool
	if outcome.allHealthy {
		state.ConsecutiveFailures = 0
		state.RecoveryAttempted = false
		state.Healthy = true
		promote = ws.Status == types.StatusStarting
	} else {
		state.ConsecutiveFailures++
		if state.ConsecutiveFailures >= m.maxFailures {
			state.Healthy = false
			if !state.RecoveryAttempted {
				state.RecoveryAttempted = true
				triggerRecovery = true
			}
		}
	}
	// Unassigned pool members are probed for failure detection, but the
	// editor event waits for a bucket: startup is measured against the
	// request that claims the workspace, and the event fires once per id.
	if ws.Bucket != "" && outcome.editorHealthy && !state.EditorAvailable {
		state.EditorAvailable = true
		firstEditor = true
	}
	failures := state.ConsecutiveFailures
	m.mu.Unlock()

	result := "healthy"
	if !outcome.allHealthy {
		result = "unhealthy"
	}
	metrics.ProbesTotal.WithLabelValues(result).Inc()

	if firstEditor {
		m.recorder.OnCodeEditorAvailable(ws.ID, now)
		m.broker.Publish(events.New(events.EventEditorAvailable, ws.ID, "code editor answered its first probe"))
	}
	if promote {
		m.promote(ws, now)
	}
	if triggerRecovery {
		m.failWorkspace(ws, failures)
	} else if !outcome.allHealthy {
		log.WithComponent("monitor").Warn().
			Str("workspace_id", ws.ID).
			Int("consecutive_failures", failures).
			Msg("Workspace probe failed")
	}
}

type probeOutcome struct {
	allHealthy    bool
	editorHealthy bool
}

// probeEndpoints checks the three service URLs in parallel. The workspace
// is healthy only when every endpoint answers below 500.
func (m *Monitor) probeEndpoints(ctx context.Context, urls types.ServiceURLs) probeOutcome {
	targets := []string{urls.Editor, urls.Desktop, urls.Web}
	results := make([]health.Result, len(targets))

	var wg sync.WaitGroup
	for i, url := range targets {
		wg.Add(1)
		go func(i int, url string) {
			defer wg.Done()
			results[i] = health.NewHTTPChecker(url).WithClient(m.client).Check(ctx)
		}(i, url)
	}
	wg.Wait()

	outcome := probeOutcome{allHealthy: true, editorHealthy: results[0].Healthy}
	for _, r := range results {
		if !r.Healthy {
			outcome.allHealthy = false
		}
	}
	return outcome
}

// promote flips a starting workspace to running once every endpoint
// answers.
func (m *Monitor) promote(ws *types.Workspace, now time.Time) {
	status := types.StatusRunning
	if err := m.store.UpdateLifecycle(ws.ID, store.LifecycleUpdate{
		Status:    &status,
		StartedAt: &now,
	}); err != nil {
		log.WithComponent("monitor").Warn().Err(err).
			Str("workspace_id", ws.ID).
			Msg("Failed to promote workspace to running")
		return
	}

	m.registry.MarkRunning(ws.ID)
	m.broker.Publish(events.New(events.EventWorkspaceRunning, ws.ID, "all endpoints healthy"))

	log.WithComponent("monitor").Info().
		Str("workspace_id", ws.ID).
		Msg("Workspace promoted to running")
}

// failWorkspace marks a workspace failed after it exhausts the failure
// budget. The runtime's restart policy is trusted to bring the container
// back; the control plane only flips the record and evicts the pool entry.
func (m *Monitor) failWorkspace(ws *types.Workspace, failures int) {
	status := types.StatusFailed
	if err := m.store.UpdateLifecycle(ws.ID, store.LifecycleUpdate{Status: &status}); err != nil {
		log.WithComponent("monitor").Error().Err(err).
			Str("workspace_id", ws.ID).
			Msg("Failed to mark workspace failed")
	}

	metrics.RecoveriesTotal.Inc()

	recovery := events.New(events.EventRecoveryTriggered, ws.ID,
		fmt.Sprintf("%d consecutive probe failures", failures))
	if ws.Bucket != "" {
		recovery = recovery.WithMeta("bucket", ws.Bucket)
	}
	m.broker.Publish(recovery)
	m.broker.Publish(events.New(events.EventWorkspaceFailed, ws.ID, "endpoints unreachable, marked failed"))

	if m.failureHandler != nil {
		m.failureHandler.HandleFailure(ws.ID, ws.IsPreWarmed)
	}

	log.WithComponent("monitor").Error().
		Str("workspace_id", ws.ID).
		Int("consecutive_failures", failures).
		Msg("Workspace failed health checks")
}
