package maintainer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/pool"
	"github.com/slipway-sh/slipway/pkg/runtime"
	"github.com/slipway-sh/slipway/pkg/store"
	"github.com/slipway-sh/slipway/pkg/types"
)

// editorServer answers readiness probes for any workspace path. Codes are
// consumed in request order; the last one repeats forever, and an empty
// sequence means always 200.
type editorServer struct {
	srv *httptest.Server

	mu    sync.Mutex
	codes []int
}

func newEditorServer(t *testing.T, codes ...int) *editorServer {
	t.Helper()
	e := &editorServer{codes: codes}
	e.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(e.next())
	}))
	t.Cleanup(e.srv.Close)
	return e
}

func (e *editorServer) next() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.codes) == 0 {
		return http.StatusOK
	}
	code := e.codes[0]
	if len(e.codes) > 1 {
		e.codes = e.codes[1:]
	}
	return code
}

// domain returns host:port so spawned workspace URLs point at this server.
func (e *editorServer) domain() string {
	return strings.TrimPrefix(e.srv.URL, "http://")
}

type fakeGate struct {
	mu     sync.Mutex
	allow  bool
	reason string
}

func (g *fakeGate) CanLaunch() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.allow, g.reason
}

func (g *fakeGate) deny(reason string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.allow = false
	g.reason = reason
}

type fakeProber struct {
	mu  sync.Mutex
	ids []string
}

func (p *fakeProber) ProbeNow(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
}

func (p *fakeProber) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.ids)
}

type maintainerFixture struct {
	maintainer *Maintainer
	rt         *runtime.Memory
	registry   *pool.Registry
	store      *store.BoltStore
	broker     *events.Broker
	gate       *fakeGate
	prober     *fakeProber
}

func newFixture(t *testing.T, target int, domain string) *maintainerFixture {
	t.Helper()

	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	rt := runtime.NewMemory()
	registry := pool.NewRegistry(target)
	gate := &fakeGate{allow: true}
	prober := &fakeProber{}

	m := NewMaintainer(rt, registry, st, gate, broker, domain, "hunter2").
		WithInterval(time.Hour).
		WithSpawnDelay(time.Millisecond).
		WithReadiness(5*time.Millisecond, 250*time.Millisecond).
		WithProber(prober)

	return &maintainerFixture{
		maintainer: m,
		rt:         rt,
		registry:   registry,
		store:      st,
		broker:     broker,
		gate:       gate,
		prober:     prober,
	}
}

func countEvents(sub events.Subscriber, eventType events.EventType) int {
	count := 0
	for {
		select {
		case event := <-sub:
			if event.Type == eventType {
				count++
			}
		case <-time.After(100 * time.Millisecond):
			return count
		}
	}
}

func TestTickFillsDeficit(t *testing.T) {
	editor := newEditorServer(t)
	f := newFixture(t, 2, editor.domain())
	f.rt.WithLimits(1.5, 512*1024*1024)
	sub := f.broker.Subscribe()

	f.maintainer.Tick(context.Background())

	poolStats := f.registry.Stats()
	assert.Equal(t, 2, poolStats.PreWarmed)
	assert.Equal(t, 2, poolStats.Total)
	assert.Equal(t, 2, f.rt.CreateCalls())
	assert.Equal(t, 2, f.prober.count())

	records, err := f.store.List(store.Filter{Status: types.StatusRunning})
	require.NoError(t, err)
	require.Len(t, records, 2)
	for _, ws := range records {
		assert.True(t, ws.IsPreWarmed)
		assert.NotNil(t, ws.StartedAt)
		assert.Contains(t, ws.URLs.Editor, editor.domain())
		assert.Equal(t, 1.5, ws.CPUCores)
		assert.Equal(t, int64(512*1024*1024), ws.MemoryBytes)
	}

	assert.Equal(t, 2, countEvents(sub, events.EventPoolSpawned))
}

func TestTickWithoutDeficitSpawnsNothing(t *testing.T) {
	editor := newEditorServer(t)
	f := newFixture(t, 0, editor.domain())

	f.maintainer.Tick(context.Background())

	assert.Equal(t, 0, f.rt.CreateCalls())
}

func TestGateRefusalHoldsAllSpawns(t *testing.T) {
	editor := newEditorServer(t)
	f := newFixture(t, 3, editor.domain())
	f.gate.deny("memory usage 91.2% above threshold 85.0%")

	f.maintainer.Tick(context.Background())

	assert.Equal(t, 0, f.rt.CreateCalls())
	assert.Equal(t, 0, f.registry.Stats().Total)
}

func TestSpawnConfig(t *testing.T) {
	editor := newEditorServer(t)
	f := newFixture(t, 1, editor.domain())

	var mu sync.Mutex
	var captured []types.CreateConfig
	f.rt.CreateHook = func(cfg types.CreateConfig) error {
		mu.Lock()
		defer mu.Unlock()
		captured = append(captured, cfg)
		return nil
	}

	f.maintainer.Tick(context.Background())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, captured, 1)
	assert.True(t, captured[0].SkipBucketAttachment)
	assert.Equal(t, "hunter2", captured[0].VNCPassword)
	assert.Equal(t, editor.domain(), captured[0].Domain)
}

func TestSyncDropsEntriesWithoutContainers(t *testing.T) {
	f := newFixture(t, 0, "pool.example.com")
	f.registry.Insert("gone00000001", types.ServiceName("gone00000001"))
	f.rt.Add(types.ServiceRecord{ID: "kept00000002"})
	f.registry.Insert("kept00000002", types.ServiceName("kept00000002"))

	f.maintainer.Tick(context.Background())

	assert.False(t, f.registry.Contains("gone00000001"))
	assert.True(t, f.registry.Contains("kept00000002"))
}

func TestSyncAdoptsOnlyUnbucketedRunning(t *testing.T) {
	f := newFixture(t, 0, "pool.example.com")
	f.rt.Add(types.ServiceRecord{ID: "adopt0000001"})
	f.rt.Add(types.ServiceRecord{ID: "bound0000002", Bucket: "team-data"})
	f.rt.Add(types.ServiceRecord{ID: "boot00000003", Status: runtime.StateCreated})

	f.maintainer.Tick(context.Background())

	assert.True(t, f.registry.Contains("adopt0000001"))
	assert.False(t, f.registry.Contains("bound0000002"))
	assert.False(t, f.registry.Contains("boot00000003"))
	assert.Equal(t, 1, f.registry.Stats().PreWarmed)
}

func TestAbandonsSpawnThatNeverBecomesReady(t *testing.T) {
	editor := newEditorServer(t, http.StatusInternalServerError)
	f := newFixture(t, 1, editor.domain())
	f.maintainer.WithReadiness(5*time.Millisecond, 30*time.Millisecond)
	sub := f.broker.Subscribe()

	f.maintainer.Tick(context.Background())

	assert.Equal(t, 0, f.registry.Stats().Total)
	assert.Equal(t, 1, f.rt.CreateCalls())
	assert.Equal(t, 1, f.rt.StopCalls())

	records, err := f.store.List(store.Filter{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, types.StatusFailed, records[0].Status)
	assert.False(t, f.rt.Exists(records[0].ID))

	assert.Equal(t, 1, countEvents(sub, events.EventPoolSpawnFailed))
}

func TestSpawnFailureDoesNotAbortTick(t *testing.T) {
	editor := newEditorServer(t)
	f := newFixture(t, 2, editor.domain())
	sub := f.broker.Subscribe()

	var mu sync.Mutex
	failed := false
	f.rt.CreateHook = func(types.CreateConfig) error {
		mu.Lock()
		defer mu.Unlock()
		if !failed {
			failed = true
			return assert.AnError
		}
		return nil
	}

	f.maintainer.Tick(context.Background())

	assert.Equal(t, 2, f.rt.CreateCalls())
	assert.Equal(t, 1, f.registry.Stats().PreWarmed)
	assert.Equal(t, 1, countEvents(sub, events.EventPoolSpawnFailed))
}

func TestReadinessPollsThroughMissingRoute(t *testing.T) {
	editor := newEditorServer(t, http.StatusNotFound, http.StatusNotFound, http.StatusOK)
	f := newFixture(t, 1, editor.domain())

	f.maintainer.Tick(context.Background())

	assert.Equal(t, 1, f.registry.Stats().PreWarmed)
	assert.Equal(t, 0, f.rt.StopCalls())
}

func TestHandleFailureEvictsPoolEntry(t *testing.T) {
	f := newFixture(t, 0, "pool.example.com")
	f.registry.Insert("evict0000001", types.ServiceName("evict0000001"))

	f.maintainer.HandleFailure("evict0000001", true)
	assert.False(t, f.registry.Contains("evict0000001"))

	f.maintainer.HandleFailure("missing00002", false)
	assert.Equal(t, 0, f.registry.Stats().Total)
}
