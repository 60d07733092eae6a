package manager

import (
	"context"
	"fmt"
	"time"

	"github.com/slipway-sh/slipway/pkg/bucket"
	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/pool"
	"github.com/slipway-sh/slipway/pkg/proxy"
	"github.com/slipway-sh/slipway/pkg/runtime"
	"github.com/slipway-sh/slipway/pkg/stats"
	"github.com/slipway-sh/slipway/pkg/store"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Gate decides whether the host has headroom for a fresh launch. The
// resource probe implements it.
type Gate interface {
	CanLaunch() (bool, string)
}

// Prober is the slice of the health monitor the manager drives: an eager
// probe right after assignment and state cleanup on stop.
type Prober interface {
	ProbeNow(id string)
	Forget(id string)
}

// Config carries the scalar assignment defaults.
type Config struct {
	Domain        string
	DefaultRegion string
	DefaultCreds  types.Credentials
	VNCPassword   string
}

// AssignRequest is one client request for a workspace.
type AssignRequest struct {
	Bucket      string
	Region      string
	Credentials types.Credentials
	VNCPassword string
	UserID      string
}

// Manager serves the synchronous workspace lifecycle: assignment of a
// pooled or fresh workspace to a bucket, and the shared stop path.
type Manager struct {
	runtime   runtime.Orchestrator
	store     store.Store
	registry  *pool.Registry
	validator bucket.Validator
	gate      Gate
	broker    *events.Broker
	recorder  stats.Recorder
	prober    Prober

	cfg Config
}

// NewManager wires the assignment path. All dependencies are required
// except the prober, set with WithProber.
func NewManager(rt runtime.Orchestrator, st store.Store, registry *pool.Registry, validator bucket.Validator, gate Gate, broker *events.Broker, recorder stats.Recorder, cfg Config) *Manager {
	return &Manager{
		runtime:   rt,
		store:     st,
		registry:  registry,
		validator: validator,
		gate:      gate,
		broker:    broker,
		recorder:  recorder,
		cfg:       cfg,
	}
}

// WithProber wires the health monitor for eager probes and stop cleanup
func (m *Manager) WithProber(p Prober) *Manager {
	m.prober = p
	return m
}

// Assign hands the caller a workspace bound to the requested bucket,
// claiming a pre-warmed container when one is available and launching
// fresh otherwise.
func (m *Manager) Assign(ctx context.Context, req AssignRequest) (*types.Workspace, error) {
	receivedAt := time.Now().UTC()

	region := req.Region
	if region == "" {
		region = m.cfg.DefaultRegion
	}
	creds := req.Credentials
	if creds.Empty() {
		creds = m.cfg.DefaultCreds
	}
	vncPassword := req.VNCPassword
	if vncPassword == "" {
		vncPassword = m.cfg.VNCPassword
	}

	region, err := m.validator.Validate(ctx, req.Bucket, region, creds)
	if err != nil {
		metrics.AssignmentFailures.WithLabelValues("invalid_bucket").Inc()
		return nil, err
	}

	var ws *types.Workspace
	if entry := m.registry.ClaimOne(); entry != nil {
		ws = m.attachPooled(ctx, entry, req.Bucket, region, creds)
	}

	usedQueue := ws != nil
	if ws == nil {
		ws, err = m.launchFresh(ctx, req.Bucket, region, creds, vncPassword)
		if err != nil {
			return nil, err
		}
	}

	m.recorder.OnRequestReceived(ws.ID, req.Bucket, req.UserID, receivedAt)

	ws.Status = types.StatusStarting
	ws.IsPreWarmed = usedQueue
	if err := m.store.Save(ws); err != nil {
		log.WithComponent("manager").Error().Err(err).
			Str("workspace_id", ws.ID).
			Msg("Failed to persist assigned workspace")
		return nil, err
	}

	source := "fresh"
	if usedQueue {
		source = "pool"
	}
	metrics.AssignmentsTotal.WithLabelValues(source).Inc()
	m.broker.Publish(events.New(events.EventWorkspaceAssigned, ws.ID, "workspace assigned").
		WithMeta("bucket", req.Bucket).
		WithMeta("source", source))

	if m.prober != nil {
		m.prober.ProbeNow(ws.ID)
	}

	log.WithComponent("manager").Info().
		Str("workspace_id", ws.ID).
		Str("bucket", req.Bucket).
		Str("region", region).
		Bool("pre_warmed", usedQueue).
		Msg("Workspace assigned")
	return ws, nil
}

// attachPooled binds a claimed pool entry to the bucket. A failed attach
// evicts the entry rather than returning it; something is wrong with that
// container and the caller falls back to a fresh launch.
func (m *Manager) attachPooled(ctx context.Context, entry *types.QueuedEntry, bucketName, region string, creds types.Credentials) *types.Workspace {
	if err := m.runtime.AttachBucket(ctx, entry.ID, bucketName, region, creds); err != nil {
		m.registry.Remove(entry.ID)
		log.WithComponent("manager").Warn().Err(err).
			Str("workspace_id", entry.ID).
			Msg("Bucket attach to pooled workspace failed, falling back to fresh launch")
		return nil
	}
	m.registry.BindBucket(entry.ID, bucketName)

	createdAt := entry.CreatedAt
	var cpuCores float64
	var memoryBytes int64
	if record, err := m.runtime.Get(ctx, entry.ID); err == nil {
		createdAt = record.CreatedAt
		cpuCores = record.CPUCores
		memoryBytes = record.MemoryBytes
	}

	return &types.Workspace{
		ID:          entry.ID,
		ServiceName: entry.ServiceName,
		Bucket:      bucketName,
		Region:      region,
		URLs:        proxy.URLs(m.cfg.Domain, entry.ID),
		CPUCores:    cpuCores,
		MemoryBytes: memoryBytes,
		CreatedAt:   createdAt,
	}
}

// launchFresh creates a workspace with the bucket attached at boot.
func (m *Manager) launchFresh(ctx context.Context, bucketName, region string, creds types.Credentials, vncPassword string) (*types.Workspace, error) {
	if ok, reason := m.gate.CanLaunch(); !ok {
		metrics.AssignmentFailures.WithLabelValues("resource_exhausted").Inc()
		return nil, fmt.Errorf("%w: %s", errdefs.ErrResourceExhausted, reason)
	}

	record, err := m.runtime.Create(ctx, types.CreateConfig{
		Bucket:      bucketName,
		Region:      region,
		Credentials: creds,
		VNCPassword: vncPassword,
		Domain:      m.cfg.Domain,
	})
	if err != nil {
		metrics.AssignmentFailures.WithLabelValues("launch_failed").Inc()
		return nil, err
	}

	return &types.Workspace{
		ID:          record.ID,
		ServiceName: record.ServiceName,
		Bucket:      bucketName,
		Region:      region,
		URLs:        proxy.URLs(m.cfg.Domain, record.ID),
		CPUCores:    record.CPUCores,
		MemoryBytes: record.MemoryBytes,
		CreatedAt:   record.CreatedAt,
	}, nil
}

// Stop tears down a workspace and records why. Stopping an already
// stopped workspace is a no-op, and a runtime service that is already
// gone counts as success.
func (m *Manager) Stop(ctx context.Context, id string, reason types.ShutdownReason) (*types.Workspace, error) {
	if err := types.ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidInput, err)
	}
	ws, err := m.store.Get(id)
	if err != nil {
		return nil, err
	}
	if ws.Status == types.StatusStopped {
		return ws, nil
	}

	stopping := types.StatusStopping
	if err := m.store.UpdateLifecycle(id, store.LifecycleUpdate{Status: &stopping}); err != nil {
		log.WithComponent("manager").Warn().Err(err).
			Str("workspace_id", id).
			Msg("Failed to mark workspace stopping")
	}

	if err := m.runtime.Stop(ctx, id); err != nil && !errdefs.IsNotFound(err) {
		return nil, fmt.Errorf("stop workspace %s: %w", id, err)
	}

	now := time.Now().UTC()
	stopped := types.StatusStopped
	if err := m.store.UpdateLifecycle(id, store.LifecycleUpdate{
		Status:         &stopped,
		StoppedAt:      &now,
		ShutdownReason: &reason,
	}); err != nil {
		return nil, err
	}

	m.registry.Remove(id)
	if m.prober != nil {
		m.prober.Forget(id)
	}
	m.recorder.OnStopped(id, reason, now)
	m.broker.Publish(events.New(events.EventWorkspaceStopped, id, "workspace stopped").
		WithMeta("reason", string(reason)))

	log.WithComponent("manager").Info().
		Str("workspace_id", id).
		Str("reason", string(reason)).
		Msg("Workspace stopped")

	ws.Status = types.StatusStopped
	ws.StoppedAt = &now
	ws.ShutdownReason = reason
	return ws, nil
}

// Get returns one workspace record.
func (m *Manager) Get(id string) (*types.Workspace, error) {
	if err := types.ValidateID(id); err != nil {
		return nil, fmt.Errorf("%w: %v", errdefs.ErrInvalidInput, err)
	}
	return m.store.Get(id)
}

// List returns workspace records matching the filter, newest first.
func (m *Manager) List(filter store.Filter) ([]*types.Workspace, error) {
	return m.store.List(filter)
}

// Count returns how many records match the status, all records when the
// status is empty.
func (m *Manager) Count(status types.WorkspaceStatus) (int, error) {
	return m.store.Count(status)
}
