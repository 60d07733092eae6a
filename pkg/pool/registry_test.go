package pool

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/types"
)

// TestInsertAndClaim tests the basic pre-warm/assign cycle
func TestInsertAndClaim(t *testing.T) {
	r := NewRegistry(2)
	r.Insert("a1b2c3d4", "ide-a1b2c3d4")

	entry := r.ClaimOne()
	require.NotNil(t, entry)
	assert.Equal(t, "a1b2c3d4", entry.ID)
	assert.Equal(t, "ide-a1b2c3d4", entry.ServiceName)
	assert.Equal(t, types.QueueAssigned, entry.State)
	require.NotNil(t, entry.AssignedAt)

	// Pool is now empty of pre-warmed entries
	assert.Nil(t, r.ClaimOne())
}

// TestInsertIdempotent tests that re-inserting a tracked id does not reset it
func TestInsertIdempotent(t *testing.T) {
	r := NewRegistry(2)
	r.Insert("a1b2c3d4", "ide-a1b2c3d4")
	require.NotNil(t, r.ClaimOne())

	// Insert again while assigned; state must not regress to pre-warmed
	r.Insert("a1b2c3d4", "ide-a1b2c3d4")
	assert.Nil(t, r.ClaimOne())
	assert.Equal(t, 1, r.Stats().Assigned)
}

// TestClaimReturnsCopy tests that callers cannot mutate registry state
// through the returned entry
func TestClaimReturnsCopy(t *testing.T) {
	r := NewRegistry(1)
	r.Insert("a1b2c3d4", "ide-a1b2c3d4")

	entry := r.ClaimOne()
	require.NotNil(t, entry)
	entry.Bucket = "tampered"
	entry.State = types.QueuePreWarmed

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Empty(t, snapshot[0].Bucket)
	assert.Equal(t, types.QueueAssigned, snapshot[0].State)
}

// TestConcurrentClaims tests that concurrent ClaimOne calls never hand out
// the same entry twice
func TestConcurrentClaims(t *testing.T) {
	const poolSize = 8
	const claimers = 32

	r := NewRegistry(poolSize)
	for i := 0; i < poolSize; i++ {
		id := fmt.Sprintf("wksp%04d", i)
		r.Insert(id, types.ServiceName(id))
	}

	results := make(chan *types.QueuedEntry, claimers)
	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- r.ClaimOne()
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[string]bool)
	claimed := 0
	for entry := range results {
		if entry == nil {
			continue
		}
		claimed++
		assert.False(t, seen[entry.ID], "entry %s claimed twice", entry.ID)
		seen[entry.ID] = true
	}
	assert.Equal(t, poolSize, claimed, "every pre-warmed entry claimed exactly once")
	assert.Equal(t, 0, r.Stats().PreWarmed)
	assert.Equal(t, poolSize, r.Stats().Assigned)
}

// TestBindBucket tests bucket binding on assigned entries only
func TestBindBucket(t *testing.T) {
	r := NewRegistry(2)
	r.Insert("a1b2c3d4", "ide-a1b2c3d4")

	assert.False(t, r.BindBucket("a1b2c3d4", "team-artifacts"), "pre-warmed entry must refuse bind")
	assert.False(t, r.BindBucket("missing1", "team-artifacts"))

	require.NotNil(t, r.ClaimOne())
	assert.True(t, r.BindBucket("a1b2c3d4", "team-artifacts"))

	snapshot := r.Snapshot()
	require.Len(t, snapshot, 1)
	assert.Equal(t, "team-artifacts", snapshot[0].Bucket)
}

// TestReturnToPool tests claim rollback
func TestReturnToPool(t *testing.T) {
	r := NewRegistry(1)
	r.Insert("a1b2c3d4", "ide-a1b2c3d4")
	require.NotNil(t, r.ClaimOne())
	require.True(t, r.BindBucket("a1b2c3d4", "team-artifacts"))

	r.ReturnToPool("a1b2c3d4")

	entry := r.ClaimOne()
	require.NotNil(t, entry, "returned entry is claimable again")
	assert.Empty(t, entry.Bucket, "bucket cleared on return")
}

// TestMarkRunning tests the assigned to running promotion
func TestMarkRunning(t *testing.T) {
	r := NewRegistry(1)
	r.Insert("a1b2c3d4", "ide-a1b2c3d4")

	// Not assigned yet, promotion is a no-op
	r.MarkRunning("a1b2c3d4")
	assert.Equal(t, 1, r.Stats().PreWarmed)

	require.NotNil(t, r.ClaimOne())
	r.MarkRunning("a1b2c3d4")

	stats := r.Stats()
	assert.Equal(t, 0, stats.Assigned)
	assert.Equal(t, 1, stats.Running)

	// Running entries are not claimable and not returnable
	assert.Nil(t, r.ClaimOne())
	r.ReturnToPool("a1b2c3d4")
	assert.Equal(t, 1, r.Stats().Running)
}

// TestRemove tests removal in any state
func TestRemove(t *testing.T) {
	r := NewRegistry(2)
	r.Insert("a1b2c3d4", "ide-a1b2c3d4")
	r.Insert("e5f6a7b8", "ide-e5f6a7b8")
	require.NotNil(t, r.ClaimOne())

	r.Remove("a1b2c3d4")
	r.Remove("e5f6a7b8")
	r.Remove("missing1")

	assert.Equal(t, 0, r.Stats().Total)
	assert.False(t, r.Contains("a1b2c3d4"))
}

// TestStatsAndDeficit tests count and deficit math
func TestStatsAndDeficit(t *testing.T) {
	r := NewRegistry(3)
	assert.Equal(t, 3, r.Deficit(), "empty pool has full deficit")

	r.Insert("wksp0001", "ide-wksp0001")
	r.Insert("wksp0002", "ide-wksp0002")
	assert.Equal(t, 1, r.Deficit())

	require.NotNil(t, r.ClaimOne())
	assert.Equal(t, 2, r.Deficit(), "assigned entries do not count toward target")

	stats := r.Stats()
	assert.Equal(t, 1, stats.PreWarmed)
	assert.Equal(t, 1, stats.Assigned)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 3, stats.Target)

	t.Run("set target", func(t *testing.T) {
		r.SetTarget(0)
		assert.Equal(t, 0, r.Deficit())
		r.SetTarget(-5)
		assert.Equal(t, 0, r.Target())
	})
}
