package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/types"
)

func newTestStore(t *testing.T) *BoltStore {
	t.Helper()
	s, err := NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func testWorkspace(id string, status types.WorkspaceStatus, createdAt time.Time) *types.Workspace {
	return &types.Workspace{
		ID:          id,
		ServiceName: types.ServiceName(id),
		Status:      status,
		CreatedAt:   createdAt,
	}
}

// TestSaveAndGet tests the basic row round trip
func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)

	ws := testWorkspace("a1b2c3d4", types.StatusStarting, time.Now())
	ws.Bucket = "team-artifacts"
	ws.IsPreWarmed = true
	require.NoError(t, s.Save(ws))

	got, err := s.Get("a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, "a1b2c3d4", got.ID)
	assert.Equal(t, "ide-a1b2c3d4", got.ServiceName)
	assert.Equal(t, "team-artifacts", got.Bucket)
	assert.Equal(t, types.StatusStarting, got.Status)
	assert.True(t, got.IsPreWarmed)
}

// TestGetNotFound tests the not-found taxonomy kind
func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get("missing1")
	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))
}

// TestSaveUpsert tests that Save replaces an existing row and keeps the
// status index consistent
func TestSaveUpsert(t *testing.T) {
	s := newTestStore(t)

	ws := testWorkspace("a1b2c3d4", types.StatusStarting, time.Now())
	require.NoError(t, s.Save(ws))

	ws.Status = types.StatusRunning
	require.NoError(t, s.Save(ws))

	starting, err := s.Count(types.StatusStarting)
	require.NoError(t, err)
	assert.Equal(t, 0, starting)

	running, err := s.Count(types.StatusRunning)
	require.NoError(t, err)
	assert.Equal(t, 1, running)
}

// TestList tests filtering, ordering, and pagination
func TestList(t *testing.T) {
	s := newTestStore(t)

	base := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		status := types.StatusRunning
		if i%2 == 1 {
			status = types.StatusStopped
		}
		ws := testWorkspace(fmt.Sprintf("wksp%04d", i), status, base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Save(ws))
	}

	t.Run("all rows newest first", func(t *testing.T) {
		all, err := s.List(Filter{})
		require.NoError(t, err)
		require.Len(t, all, 5)
		assert.Equal(t, "wksp0004", all[0].ID)
		assert.Equal(t, "wksp0000", all[4].ID)
	})

	t.Run("status filter", func(t *testing.T) {
		running, err := s.List(Filter{Status: types.StatusRunning})
		require.NoError(t, err)
		require.Len(t, running, 3)
		for _, ws := range running {
			assert.Equal(t, types.StatusRunning, ws.Status)
		}
	})

	t.Run("limit and offset", func(t *testing.T) {
		page, err := s.List(Filter{Limit: 2, Offset: 1})
		require.NoError(t, err)
		require.Len(t, page, 2)
		assert.Equal(t, "wksp0003", page[0].ID)
		assert.Equal(t, "wksp0002", page[1].ID)
	})

	t.Run("offset past end", func(t *testing.T) {
		page, err := s.List(Filter{Offset: 10})
		require.NoError(t, err)
		assert.Empty(t, page)
	})
}

// TestUpdateLifecycle tests the partial update semantics
func TestUpdateLifecycle(t *testing.T) {
	s := newTestStore(t)

	ws := testWorkspace("a1b2c3d4", types.StatusStarting, time.Now())
	ws.Bucket = "team-artifacts"
	require.NoError(t, s.Save(ws))

	started := time.Now().UTC()
	running := types.StatusRunning
	require.NoError(t, s.UpdateLifecycle("a1b2c3d4", LifecycleUpdate{
		Status:    &running,
		StartedAt: &started,
	}))

	got, err := s.Get("a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, types.StatusRunning, got.Status)
	require.NotNil(t, got.StartedAt)
	assert.WithinDuration(t, started, *got.StartedAt, time.Second)
	// Untouched fields survive
	assert.Equal(t, "team-artifacts", got.Bucket)
	assert.Nil(t, got.StoppedAt)

	stopped := types.StatusStopped
	stoppedAt := time.Now().UTC()
	reason := types.ShutdownManual
	require.NoError(t, s.UpdateLifecycle("a1b2c3d4", LifecycleUpdate{
		Status:         &stopped,
		StoppedAt:      &stoppedAt,
		ShutdownReason: &reason,
	}))

	got, err = s.Get("a1b2c3d4")
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, got.Status)
	assert.Equal(t, types.ShutdownManual, got.ShutdownReason)
	require.NotNil(t, got.StartedAt, "earlier partial update must survive")

	t.Run("missing row", func(t *testing.T) {
		err := s.UpdateLifecycle("missing1", LifecycleUpdate{Status: &running})
		assert.True(t, errdefs.IsNotFound(err))
	})
}

// TestDelete tests removal and idempotence
func TestDelete(t *testing.T) {
	s := newTestStore(t)

	ws := testWorkspace("a1b2c3d4", types.StatusStopped, time.Now())
	now := time.Now()
	ws.StoppedAt = &now
	require.NoError(t, s.Save(ws))

	require.NoError(t, s.Delete("a1b2c3d4"))
	_, err := s.Get("a1b2c3d4")
	assert.True(t, errdefs.IsNotFound(err))

	// Index entries must be gone too
	count, err := s.Count(types.StatusStopped)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Second delete is a no-op
	assert.NoError(t, s.Delete("a1b2c3d4"))
}

// TestCount tests total and per-status counting
func TestCount(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Save(testWorkspace("wksp0001", types.StatusRunning, time.Now())))
	require.NoError(t, s.Save(testWorkspace("wksp0002", types.StatusRunning, time.Now())))
	require.NoError(t, s.Save(testWorkspace("wksp0003", types.StatusFailed, time.Now())))

	total, err := s.Count("")
	require.NoError(t, err)
	assert.Equal(t, 3, total)

	running, err := s.Count(types.StatusRunning)
	require.NoError(t, err)
	assert.Equal(t, 2, running)

	stopped, err := s.Count(types.StatusStopped)
	require.NoError(t, err)
	assert.Equal(t, 0, stopped)
}

// TestArchiveOld tests the 24h archive cutoff behavior
func TestArchiveOld(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	old := testWorkspace("oldstop1", types.StatusStopped, now.Add(-48*time.Hour))
	oldStopped := now.Add(-30 * time.Hour)
	old.StoppedAt = &oldStopped
	require.NoError(t, s.Save(old))

	fresh := testWorkspace("newstop1", types.StatusStopped, now.Add(-2*time.Hour))
	freshStopped := now.Add(-1 * time.Hour)
	fresh.StoppedAt = &freshStopped
	require.NoError(t, s.Save(fresh))

	live := testWorkspace("running1", types.StatusRunning, now)
	require.NoError(t, s.Save(live))

	moved, err := s.ArchiveOld(now.Add(-24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, moved)

	// Old row moved to the archive
	_, err = s.Get("oldstop1")
	assert.True(t, errdefs.IsNotFound(err))
	archived, err := s.GetArchived("oldstop1")
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, archived.Status)

	// Fresh stopped row and running row stay
	_, err = s.Get("newstop1")
	assert.NoError(t, err)
	_, err = s.Get("running1")
	assert.NoError(t, err)

	t.Run("idempotent", func(t *testing.T) {
		moved, err := s.ArchiveOld(now.Add(-24 * time.Hour))
		require.NoError(t, err)
		assert.Equal(t, 0, moved)
	})
}
