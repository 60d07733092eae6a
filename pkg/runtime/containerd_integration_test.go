package runtime

import (
	"context"
	"testing"
	"time"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/types"
)

// TestContainerdLifecycle drives the real adapter through the pool flow:
// create unbucketed, inspect, attach a bucket, stop. It needs a containerd
// socket and pulls a small public image, so it skips under -short and when
// the daemon is unreachable.
func TestContainerdLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test")
	}

	rt, err := NewContainerd("", "slipway-test", "docker.io/library/nginx:alpine")
	if err != nil {
		t.Skipf("Containerd not available: %v", err)
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	t.Log("Step 1: Creating pre-warmed workspace (pulls image on first run)...")
	record, err := rt.Create(ctx, types.CreateConfig{
		SkipBucketAttachment: true,
		VNCPassword:          "integration",
		Domain:               "localhost",
	})
	if err != nil {
		t.Fatalf("Failed to create workspace: %v", err)
	}
	t.Cleanup(func() {
		_ = rt.Stop(context.Background(), record.ID)
	})
	t.Logf("✓ Workspace %s created", record.ID)

	if record.ServiceName != types.ServiceName(record.ID) {
		t.Errorf("Service name %q does not derive from id %q", record.ServiceName, record.ID)
	}
	if record.Bucket != "" {
		t.Errorf("Pre-warmed workspace must have no bucket, got %q", record.Bucket)
	}

	t.Log("Step 2: Reading the workspace back...")
	got, err := rt.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Failed to get workspace: %v", err)
	}
	if got.Status != StateRunning {
		t.Errorf("Expected running task, got %q", got.Status)
	}
	t.Log("✓ Workspace visible with a running task")

	records, err := rt.List(ctx)
	if err != nil {
		t.Fatalf("Failed to list workspaces: %v", err)
	}
	found := false
	for _, r := range records {
		if r.ID == record.ID {
			found = true
		}
	}
	if !found {
		t.Errorf("List does not contain workspace %s", record.ID)
	}

	t.Log("Step 3: Attaching a bucket (twice, attach is idempotent)...")
	for i := 0; i < 2; i++ {
		if err := rt.AttachBucket(ctx, record.ID, "integration-bucket", "us-east-1", types.Credentials{
			AccessKeyID:     "dummy",
			SecretAccessKey: "dummy",
		}); err != nil {
			t.Fatalf("Attach attempt %d failed: %v", i+1, err)
		}
	}
	got, err = rt.Get(ctx, record.ID)
	if err != nil {
		t.Fatalf("Failed to get workspace after attach: %v", err)
	}
	if got.Bucket != "integration-bucket" {
		t.Errorf("Expected bucket label update, got %q", got.Bucket)
	}
	t.Log("✓ Bucket attached and visible in labels")

	t.Log("Step 4: Stopping the workspace...")
	if err := rt.Stop(ctx, record.ID); err != nil {
		t.Fatalf("Failed to stop workspace: %v", err)
	}
	if err := rt.Stop(ctx, record.ID); !errdefs.IsNotFound(err) {
		t.Errorf("Second stop should report not found, got %v", err)
	}
	if _, err := rt.Get(ctx, record.ID); !errdefs.IsNotFound(err) {
		t.Errorf("Stopped workspace should be gone, got %v", err)
	}
	t.Log("✓ Workspace stopped and removed")
}
