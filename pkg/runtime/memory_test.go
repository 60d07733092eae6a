package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/types"
)

// TestMemoryCreate tests id generation and record shape
func TestMemoryCreate(t *testing.T) {
	m := NewMemory().WithLimits(2, 1024*1024*1024)

	record, err := m.Create(context.Background(), types.CreateConfig{
		Bucket: "team-artifacts",
		Domain: "ide.example.com",
	})
	require.NoError(t, err)

	assert.NoError(t, types.ValidateID(record.ID), "generated ids satisfy the id rules")
	assert.Len(t, record.ID, 12)
	assert.Equal(t, types.ServiceName(record.ID), record.ServiceName)
	assert.Equal(t, StateRunning, record.Status)
	assert.Equal(t, "team-artifacts", record.Bucket)
	assert.Equal(t, 2.0, record.CPUCores)
	assert.Equal(t, int64(1024*1024*1024), record.MemoryBytes)
	assert.False(t, record.CreatedAt.IsZero())
}

// TestMemoryCreateUniqueIDs tests that successive launches never collide
func TestMemoryCreateUniqueIDs(t *testing.T) {
	m := NewMemory()
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		record, err := m.Create(context.Background(), types.CreateConfig{SkipBucketAttachment: true})
		require.NoError(t, err)
		assert.False(t, seen[record.ID], "duplicate id %s", record.ID)
		seen[record.ID] = true
	}
}

// TestMemoryPreWarmSkipsBucket tests that pool launches carry no bucket
func TestMemoryPreWarmSkipsBucket(t *testing.T) {
	m := NewMemory()
	record, err := m.Create(context.Background(), types.CreateConfig{
		SkipBucketAttachment: true,
		Bucket:               "should-be-ignored",
	})
	require.NoError(t, err)
	assert.Empty(t, record.Bucket)
}

// TestMemoryAttach tests bucket binding and its failure taxonomy
func TestMemoryAttach(t *testing.T) {
	m := NewMemory()
	record, err := m.Create(context.Background(), types.CreateConfig{SkipBucketAttachment: true})
	require.NoError(t, err)

	require.NoError(t, m.AttachBucket(context.Background(), record.ID, "team-artifacts", "us-east-1", types.Credentials{}))

	got, err := m.Get(context.Background(), record.ID)
	require.NoError(t, err)
	assert.Equal(t, "team-artifacts", got.Bucket)

	t.Run("missing service", func(t *testing.T) {
		err := m.AttachBucket(context.Background(), "missing1", "b", "", types.Credentials{})
		assert.True(t, errdefs.IsAttachFailed(err))
	})

	t.Run("hook failure", func(t *testing.T) {
		m.AttachHook = func(id, bucket string) error { return errors.New("agent rejected env") }
		err := m.AttachBucket(context.Background(), record.ID, "other", "", types.Credentials{})
		assert.True(t, errdefs.IsAttachFailed(err))
	})
}

// TestMemoryStop tests teardown and the already-gone contract
func TestMemoryStop(t *testing.T) {
	m := NewMemory()
	record, err := m.Create(context.Background(), types.CreateConfig{SkipBucketAttachment: true})
	require.NoError(t, err)

	require.NoError(t, m.Stop(context.Background(), record.ID))
	assert.False(t, m.Exists(record.ID))

	err = m.Stop(context.Background(), record.ID)
	assert.True(t, errdefs.IsNotFound(err), "second stop reports not found")
}

// TestMemoryCreateHook tests injected launch failures
func TestMemoryCreateHook(t *testing.T) {
	m := NewMemory()
	m.CreateHook = func(cfg types.CreateConfig) error { return errors.New("no capacity") }

	_, err := m.Create(context.Background(), types.CreateConfig{})
	require.Error(t, err)
	assert.True(t, errdefs.IsLaunchFailed(err))
	assert.Equal(t, 1, m.CreateCalls())
}

// TestMemoryList tests listing copies
func TestMemoryList(t *testing.T) {
	m := NewMemory()
	m.Add(types.ServiceRecord{ID: "a1b2c3d4e5f6"})
	m.Add(types.ServiceRecord{ID: "b2c3d4e5f6a1", Status: StateStopped})

	records, err := m.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)

	// Mutating returned records must not leak into the fake
	records[0].Bucket = "tampered"
	got, err := m.Get(context.Background(), records[0].ID)
	require.NoError(t, err)
	assert.Empty(t, got.Bucket)
}
