package reaper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/runtime"
	"github.com/slipway-sh/slipway/pkg/store"
	"github.com/slipway-sh/slipway/pkg/types"
)

type reaperFixture struct {
	reaper *Reaper
	store  *store.BoltStore
	rt     *runtime.Memory
}

func newFixture(t *testing.T) *reaperFixture {
	t.Helper()

	st, err := store.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	rt := runtime.NewMemory()
	r := NewReaper(st, rt).WithInterval(time.Hour)

	return &reaperFixture{reaper: r, store: st, rt: rt}
}

func (f *reaperFixture) addRecord(t *testing.T, id string, status types.WorkspaceStatus, stoppedAt *time.Time) {
	t.Helper()
	err := f.store.Save(&types.Workspace{
		ID:          id,
		ServiceName: types.ServiceName(id),
		Status:      status,
		CreatedAt:   time.Now().UTC().Add(-48 * time.Hour),
		StoppedAt:   stoppedAt,
	})
	require.NoError(t, err)
}

func (f *reaperFixture) exists(t *testing.T, id string) bool {
	t.Helper()
	_, err := f.store.Get(id)
	if err == nil {
		return true
	}
	require.True(t, errdefs.IsNotFound(err))
	return false
}

func hoursAgo(h int) *time.Time {
	at := time.Now().UTC().Add(-time.Duration(h) * time.Hour)
	return &at
}

func TestTickDeletesGhostRecords(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "ghost0000001", types.StatusRunning, nil)
	f.addRecord(t, "ghost0000002", types.StatusStarting, nil)
	f.addRecord(t, "ghost0000003", types.StatusStopped, hoursAgo(1))
	f.addRecord(t, "backd0000004", types.StatusRunning, nil)
	f.rt.Add(types.ServiceRecord{ID: "backd0000004"})

	f.reaper.Tick(context.Background())

	assert.False(t, f.exists(t, "ghost0000001"))
	assert.False(t, f.exists(t, "ghost0000002"))
	assert.False(t, f.exists(t, "ghost0000003"))
	assert.True(t, f.exists(t, "backd0000004"))
}

func TestTickIsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "ghost0000001", types.StatusRunning, nil)
	f.addRecord(t, "backd0000002", types.StatusRunning, nil)
	f.rt.Add(types.ServiceRecord{ID: "backd0000002"})

	f.reaper.Tick(context.Background())
	first, err := f.store.List(store.Filter{})
	require.NoError(t, err)

	f.reaper.Tick(context.Background())
	second, err := f.store.List(store.Filter{})
	require.NoError(t, err)

	require.Len(t, first, 1)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, first[0].Status, second[0].Status)
	assert.True(t, f.rt.Exists("backd0000002"))
}

func TestReapStoppedRemovesContainerAndRecord(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "stopd0000001", types.StatusStopped, hoursAgo(1))
	f.rt.Add(types.ServiceRecord{ID: "stopd0000001"})

	f.reaper.Tick(context.Background())

	assert.False(t, f.rt.Exists("stopd0000001"))
	assert.False(t, f.exists(t, "stopd0000001"))
	assert.Equal(t, 1, f.rt.StopCalls())
}

func TestReapRetriesAfterStopError(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "stuck0000001", types.StatusStopped, hoursAgo(1))
	f.rt.Add(types.ServiceRecord{ID: "stuck0000001"})
	f.rt.StopHook = func(string) error { return errors.New("containerd unavailable") }

	f.reaper.Tick(context.Background())

	assert.True(t, f.exists(t, "stuck0000001"))
	assert.True(t, f.rt.Exists("stuck0000001"))

	f.rt.StopHook = nil
	f.reaper.Tick(context.Background())

	assert.False(t, f.exists(t, "stuck0000001"))
	assert.False(t, f.rt.Exists("stuck0000001"))
}

func TestAncientStoppedIsArchivedNotReaped(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "ancnt0000001", types.StatusStopped, hoursAgo(25))
	f.rt.Add(types.ServiceRecord{ID: "ancnt0000001"})

	f.reaper.Tick(context.Background())

	assert.False(t, f.exists(t, "ancnt0000001"))
	archived, err := f.store.GetArchived("ancnt0000001")
	require.NoError(t, err)
	assert.Equal(t, types.StatusStopped, archived.Status)

	// Archive ran before reap saw the record, so the container survives.
	assert.Equal(t, 0, f.rt.StopCalls())
	assert.True(t, f.rt.Exists("ancnt0000001"))
}

func TestFreshStoppedIsReapedNotArchived(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "fresh0000001", types.StatusStopped, hoursAgo(1))
	f.rt.Add(types.ServiceRecord{ID: "fresh0000001"})

	f.reaper.Tick(context.Background())

	assert.False(t, f.exists(t, "fresh0000001"))
	_, err := f.store.GetArchived("fresh0000001")
	require.Error(t, err)
	assert.True(t, errdefs.IsNotFound(err))
	assert.Equal(t, 1, f.rt.StopCalls())
}

func TestGhostSweepSparesFailedAndStopping(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "faild0000001", types.StatusFailed, nil)
	f.addRecord(t, "stpng0000002", types.StatusStopping, nil)

	f.reaper.Tick(context.Background())

	assert.True(t, f.exists(t, "faild0000001"))
	assert.True(t, f.exists(t, "stpng0000002"))
}

func TestRuntimeErrorKeepsRecord(t *testing.T) {
	f := newFixture(t)
	f.addRecord(t, "maybe0000001", types.StatusRunning, nil)
	f.rt.GetHook = func(string) error { return errors.New("containerd unavailable") }

	f.reaper.Tick(context.Background())
	assert.True(t, f.exists(t, "maybe0000001"))

	f.rt.GetHook = nil
	f.reaper.Tick(context.Background())
	assert.False(t, f.exists(t, "maybe0000001"))
}
