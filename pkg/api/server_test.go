package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/bucket"
	"github.com/slipway-sh/slipway/pkg/events"
	"github.com/slipway-sh/slipway/pkg/manager"
	"github.com/slipway-sh/slipway/pkg/metrics"
	"github.com/slipway-sh/slipway/pkg/monitor"
	"github.com/slipway-sh/slipway/pkg/pool"
	"github.com/slipway-sh/slipway/pkg/runtime"
	"github.com/slipway-sh/slipway/pkg/stats"
	"github.com/slipway-sh/slipway/pkg/store"
	"github.com/slipway-sh/slipway/pkg/types"
)

// dummyCreds make the real S3 validator skip its remote check.
var dummyCreds = types.Credentials{AccessKeyID: "dummy", SecretAccessKey: "dummy"}

type fakeGate struct {
	allow  bool
	reason string
}

func (g *fakeGate) CanLaunch() (bool, string) {
	return g.allow, g.reason
}

type fakeHealth struct {
	states map[string]*monitor.HealthState
}

func (f *fakeHealth) Health(id string) *monitor.HealthState {
	return f.states[id]
}

type apiFixture struct {
	router   http.Handler
	manager  *manager.Manager
	rt       *runtime.Memory
	store    *store.BoltStore
	registry *pool.Registry
	gate     *fakeGate
	health   *fakeHealth
	token    string
}

func newFixture(t *testing.T, token string) *apiFixture {
	t.Helper()

	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	rt := runtime.NewMemory()
	registry := pool.NewRegistry(2)
	gate := &fakeGate{allow: true}
	health := &fakeHealth{states: map[string]*monitor.HealthState{}}

	mgr := manager.NewManager(rt, st, registry, bucket.NewS3Validator(), gate, broker, stats.Disabled{}, manager.Config{
		Domain:        "ide.example.com",
		DefaultRegion: "us-east-1",
		DefaultCreds:  dummyCreds,
		VNCPassword:   "hunter2",
	})

	srv := NewServer(mgr, ":0").
		WithAuthToken(token).
		WithHealthSource(health)

	return &apiFixture{
		router:   srv.Router(),
		manager:  mgr,
		rt:       rt,
		store:    st,
		registry: registry,
		gate:     gate,
		health:   health,
		token:    token,
	}
}

// request sends one request through the router, attaching the fixture's
// bearer token when it has one.
func (f *apiFixture) request(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if f.token != "" {
		req.Header.Set("Authorization", "Bearer "+f.token)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), "body: %s", rec.Body.String())
	return out
}

func (f *apiFixture) saveRecord(t *testing.T, id string, status types.WorkspaceStatus) *types.Workspace {
	t.Helper()
	ws := &types.Workspace{
		ID:          id,
		ServiceName: types.ServiceName(id),
		Bucket:      "team-data",
		Status:      status,
		URLs:        types.ServiceURLs{Editor: "https://ide.example.com/editor/" + id},
		CreatedAt:   time.Now().UTC().Add(-time.Hour),
	}
	require.NoError(t, f.store.Save(ws))
	return ws
}

func TestStartAssignsWorkspace(t *testing.T) {
	f := newFixture(t, "")

	rec := f.request(t, http.MethodPost, "/api/v1/containers/start", `{"bucket":"team-data","user_id":"u-7"}`)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decodeBody[StartResponse](t, rec)
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, types.ServiceName(resp.ID), resp.ServiceName)
	assert.Equal(t, "starting", resp.Status)
	assert.Contains(t, resp.URLs.Editor, "/editor/"+resp.ID)
	assert.Contains(t, resp.URLs.Desktop, "/desktop/"+resp.ID)
	assert.Contains(t, resp.URLs.Web, "/web/"+resp.ID)
	assert.NotEmpty(t, resp.Message)

	ws, err := f.store.Get(resp.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StatusStarting, ws.Status)
	assert.Equal(t, "team-data", ws.Bucket)
}

func TestStartClaimsPooledWorkspace(t *testing.T) {
	f := newFixture(t, "")
	f.rt.Add(types.ServiceRecord{ID: "pool00000001"})
	f.registry.Insert("pool00000001", types.ServiceName("pool00000001"))

	rec := f.request(t, http.MethodPost, "/api/v1/containers/start", `{"bucket":"team-data"}`)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	resp := decodeBody[StartResponse](t, rec)
	assert.Equal(t, "pool00000001", resp.ID)
	assert.Equal(t, 0, f.rt.CreateCalls(), "pool hit must not launch a fresh container")
}

func TestStartRejectsInvalidBucket(t *testing.T) {
	f := newFixture(t, "")

	rec := f.request(t, http.MethodPost, "/api/v1/containers/start", `{"bucket":"NOT_A_BUCKET"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_bucket", resp.Error)
	assert.Equal(t, 0, f.rt.CreateCalls())
}

func TestStartWhenHostExhausted(t *testing.T) {
	f := newFixture(t, "")
	f.gate.allow = false
	f.gate.reason = "memory at 95%"

	rec := f.request(t, http.MethodPost, "/api/v1/containers/start", `{"bucket":"team-data"}`)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "resource_exhausted", resp.Error)
	assert.Contains(t, resp.Message, "memory at 95%")
}

func TestStartRejectsMalformedBody(t *testing.T) {
	f := newFixture(t, "")

	rec := f.request(t, http.MethodPost, "/api/v1/containers/start", `{"bucket":`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "invalid_request", resp.Error)
}

func TestListFiltersByStatus(t *testing.T) {
	f := newFixture(t, "")
	f.saveRecord(t, "ws0000000001", types.StatusRunning)
	f.saveRecord(t, "ws0000000002", types.StatusRunning)
	f.saveRecord(t, "ws0000000003", types.StatusStopped)

	rec := f.request(t, http.MethodGet, "/api/v1/containers?status=running", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[ListResponse](t, rec)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 2, resp.Total)
	assert.Len(t, resp.Containers, 2)
	for _, ws := range resp.Containers {
		assert.Equal(t, types.StatusRunning, ws.Status)
	}
}

func TestListPaginates(t *testing.T) {
	f := newFixture(t, "")
	for i := 1; i <= 3; i++ {
		f.saveRecord(t, fmt.Sprintf("ws%010d", i), types.StatusRunning)
	}

	rec := f.request(t, http.MethodGet, "/api/v1/containers?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[ListResponse](t, rec)
	assert.Equal(t, 2, resp.Count)
	assert.Equal(t, 3, resp.Total)

	rec = f.request(t, http.MethodGet, "/api/v1/containers?limit=2&offset=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp = decodeBody[ListResponse](t, rec)
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, 3, resp.Total)
}

func TestListEmptyFleet(t *testing.T) {
	f := newFixture(t, "")

	rec := f.request(t, http.MethodGet, "/api/v1/containers", "")
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Contains(t, rec.Body.String(), `"containers":[]`)
	resp := decodeBody[ListResponse](t, rec)
	assert.Equal(t, 0, resp.Count)
	assert.Equal(t, 0, resp.Total)
}

func TestListRejectsBadQuery(t *testing.T) {
	f := newFixture(t, "")

	for _, target := range []string{
		"/api/v1/containers?status=bogus",
		"/api/v1/containers?limit=abc",
		"/api/v1/containers?limit=-1",
		"/api/v1/containers?offset=-5",
		"/api/v1/containers?offset=1.5",
	} {
		rec := f.request(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, "target %s", target)
		resp := decodeBody[ErrorResponse](t, rec)
		assert.Equal(t, "invalid_request", resp.Error, "target %s", target)
	}
}

func TestGetReturnsRecordWithHealthAndUptime(t *testing.T) {
	f := newFixture(t, "")
	ws := f.saveRecord(t, "ws0000000001", types.StatusRunning)
	startedAt := time.Now().UTC().Add(-90 * time.Second)
	ws.StartedAt = &startedAt
	require.NoError(t, f.store.Save(ws))

	f.health.states["ws0000000001"] = &monitor.HealthState{
		ID:                  "ws0000000001",
		Healthy:             true,
		ConsecutiveFailures: 0,
		LastCheck:           time.Now().UTC(),
		EditorAvailable:     true,
	}

	rec := f.request(t, http.MethodGet, "/api/v1/containers/ws0000000001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[ContainerResponse](t, rec)
	assert.Equal(t, "ws0000000001", resp.Workspace.ID)
	assert.GreaterOrEqual(t, resp.Uptime, int64(89))
	require.NotNil(t, resp.Health)
	assert.True(t, resp.Health.Healthy)
	assert.True(t, resp.Health.EditorAvailable)
	assert.False(t, resp.Health.RecoveryAttempted)
}

func TestGetOmitsHealthWhenUnprobed(t *testing.T) {
	f := newFixture(t, "")
	f.saveRecord(t, "ws0000000001", types.StatusStopped)

	rec := f.request(t, http.MethodGet, "/api/v1/containers/ws0000000001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[ContainerResponse](t, rec)
	assert.Nil(t, resp.Health)
	assert.Zero(t, resp.Uptime, "uptime only counts for running workspaces")
}

func TestGetUnknownID(t *testing.T) {
	f := newFixture(t, "")

	rec := f.request(t, http.MethodGet, "/api/v1/containers/nope00000001", "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := decodeBody[ErrorResponse](t, rec)
	assert.Equal(t, "not_found", resp.Error)
}

func TestMalformedIDGets400NotLookedUp(t *testing.T) {
	f := newFixture(t, "")

	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		rec := f.request(t, method, "/api/v1/containers/NOT-AN-ID-01", "")
		require.Equal(t, http.StatusBadRequest, rec.Code, method)

		resp := decodeBody[ErrorResponse](t, rec)
		assert.Equal(t, "invalid_request", resp.Error, method)
	}
}

func TestDeleteStopsWorkspace(t *testing.T) {
	f := newFixture(t, "")
	f.rt.Add(types.ServiceRecord{ID: "ws0000000001", Bucket: "team-data"})
	f.saveRecord(t, "ws0000000001", types.StatusRunning)

	rec := f.request(t, http.MethodDelete, "/api/v1/containers/ws0000000001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decodeBody[StopResponse](t, rec)
	assert.Equal(t, "ws0000000001", resp.ID)
	assert.Equal(t, "stopped", resp.Status)

	ws, err := f.store.Get("ws0000000001")
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, ws.Status)
	assert.Equal(t, types.ShutdownManual, ws.ShutdownReason)
	assert.Equal(t, 1, f.rt.StopCalls())
}

func TestDeleteIsIdempotent(t *testing.T) {
	f := newFixture(t, "")
	f.saveRecord(t, "ws0000000001", types.StatusRunning)

	// No runtime container at all: NotFound from the runtime is success.
	rec := f.request(t, http.MethodDelete, "/api/v1/containers/ws0000000001", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.request(t, http.MethodDelete, "/api/v1/containers/ws0000000001", "")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeBody[StopResponse](t, rec)
	assert.Equal(t, "stopped", resp.Status)
}

func TestDeleteUnknownID(t *testing.T) {
	f := newFixture(t, "")

	rec := f.request(t, http.MethodDelete, "/api/v1/containers/nope00000001", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInactivityShutdownNeedsNoToken(t *testing.T) {
	f := newFixture(t, "sekrit")
	f.rt.Add(types.ServiceRecord{ID: "ws0000000001", Bucket: "team-data"})
	f.saveRecord(t, "ws0000000001", types.StatusRunning)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/containers/ws0000000001/inactivity-shutdown", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, "body: %s", rec.Body.String())

	ws, err := f.store.Get("ws0000000001")
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, ws.Status)
	assert.Equal(t, types.ShutdownInactivity, ws.ShutdownReason)
}

func TestAuthGuardsContainerRoutes(t *testing.T) {
	f := newFixture(t, "sekrit")

	send := func(header string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/containers", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusUnauthorized, send("Bearer wrong"))
	assert.Equal(t, http.StatusUnauthorized, send("sekrit"), "token without Bearer scheme is rejected")
	assert.Equal(t, http.StatusOK, send("Bearer sekrit"))
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	f := newFixture(t, "")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/containers", nil)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestOperationalEndpointsStayOpen(t *testing.T) {
	f := newFixture(t, "sekrit")
	metrics.RegisterComponent("store", true, "")
	metrics.RegisterComponent("runtime", true, "")

	for _, target := range []string{"/health", "/ready", "/metrics"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		rec := httptest.NewRecorder()
		f.router.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "target %s", target)
	}
}
