package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/types"
)

// Memory is the in-process Orchestrator used by tests. Failure hooks let a
// test make any operation fail without a real runtime in the loop.
type Memory struct {
	mu       sync.Mutex
	services map[string]*types.ServiceRecord

	// Hooks run before the operation; a non-nil return aborts it with
	// that error. All are optional.
	CreateHook func(cfg types.CreateConfig) error
	AttachHook func(id, bucket string) error
	StopHook   func(id string) error
	GetHook    func(id string) error

	cpuCoresLimit    float64
	memoryBytesLimit int64

	createCalls int
	stopCalls   int
}

// NewMemory creates an empty in-memory orchestrator.
func NewMemory() *Memory {
	return &Memory{
		services: make(map[string]*types.ServiceRecord),
	}
}

// WithLimits mirrors the production adapter's per-workspace caps.
func (m *Memory) WithLimits(cpuCores float64, memoryBytes int64) *Memory {
	m.cpuCoresLimit = cpuCores
	m.memoryBytesLimit = memoryBytes
	return m
}

// Create registers a fake running service.
func (m *Memory) Create(ctx context.Context, cfg types.CreateConfig) (*types.ServiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createCalls++

	if m.CreateHook != nil {
		if err := m.CreateHook(cfg); err != nil {
			return nil, fmt.Errorf("%w: %v", errdefs.ErrLaunchFailed, err)
		}
	}

	id := newWorkspaceID()
	bucket := ""
	if !cfg.SkipBucketAttachment {
		bucket = cfg.Bucket
	}
	record := &types.ServiceRecord{
		ID:          id,
		ServiceName: types.ServiceName(id),
		Status:      StateRunning,
		Bucket:      bucket,
		CPUCores:    m.cpuCoresLimit,
		MemoryBytes: m.memoryBytesLimit,
		CreatedAt:   time.Now().UTC(),
	}
	m.services[id] = record

	dup := *record
	return &dup, nil
}

// AttachBucket binds a bucket to an existing service.
func (m *Memory) AttachBucket(ctx context.Context, id, bucket, region string, creds types.Credentials) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.AttachHook != nil {
		if err := m.AttachHook(id, bucket); err != nil {
			return fmt.Errorf("%w: %v", errdefs.ErrAttachFailed, err)
		}
	}

	record, ok := m.services[id]
	if !ok {
		return fmt.Errorf("%w: service for %s missing", errdefs.ErrAttachFailed, id)
	}
	record.Bucket = bucket
	return nil
}

// Stop removes a service. Missing services report ErrNotFound like the
// production adapter.
func (m *Memory) Stop(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++

	if m.StopHook != nil {
		if err := m.StopHook(id); err != nil {
			return err
		}
	}

	if _, ok := m.services[id]; !ok {
		return fmt.Errorf("service %s: %w", types.ServiceName(id), errdefs.ErrNotFound)
	}
	delete(m.services, id)
	return nil
}

// List returns copies of all live service records.
func (m *Memory) List(ctx context.Context) ([]types.ServiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	records := make([]types.ServiceRecord, 0, len(m.services))
	for _, record := range m.services {
		records = append(records, *record)
	}
	return records, nil
}

// Get returns one service record copy.
func (m *Memory) Get(ctx context.Context, id string) (*types.ServiceRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetHook != nil {
		if err := m.GetHook(id); err != nil {
			return nil, err
		}
	}

	record, ok := m.services[id]
	if !ok {
		return nil, fmt.Errorf("service %s: %w", types.ServiceName(id), errdefs.ErrNotFound)
	}
	dup := *record
	return &dup, nil
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

// Add seeds a service record directly, for tests that need a known id.
func (m *Memory) Add(record types.ServiceRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if record.ServiceName == "" {
		record.ServiceName = types.ServiceName(record.ID)
	}
	if record.Status == "" {
		record.Status = StateRunning
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	m.services[record.ID] = &record
}

// Exists reports whether the fake still tracks the id.
func (m *Memory) Exists(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.services[id]
	return ok
}

// CreateCalls returns how many Create attempts were made.
func (m *Memory) CreateCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createCalls
}

// StopCalls returns how many Stop attempts were made.
func (m *Memory) StopCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopCalls
}
