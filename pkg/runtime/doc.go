/*
Package runtime adapts the container runtime behind the Orchestrator
interface.

The runtime package is the only place that talks to containerd. Everything
above it (manager, maintainer, monitor, reaper) sees five operations:
Create, AttachBucket, Stop, List, Get. Tests swap in the Memory
implementation and inject failures through its hooks.

# Architecture

	┌──────────────────── RUNTIME ADAPTER ──────────────────────┐
	│                                                             │
	│   Orchestrator interface                                    │
	│   ┌──────────────┬───────────────────────────┐              │
	│   │ Containerd   │ Memory                    │              │
	│   │ (production) │ (tests, failure hooks)    │              │
	│   └──────┬───────┴───────────────────────────┘              │
	│          │                                                  │
	│   ┌──────▼──────────────────────────────────┐               │
	│   │ containerd client                        │               │
	│   │  - namespaced context ("slipway")        │               │
	│   │  - image pull-if-absent                  │               │
	│   │  - NewContainer + snapshot + OCI spec    │               │
	│   │  - task lifecycle (start, kill, delete)  │               │
	│   │  - exec for bucket attach                │               │
	│   └──────────────────────────────────────────┘               │
	└─────────────────────────────────────────────────────────────┘

# Workspace Containers

Every workspace runs the same image. A container is named after its
service name ("ide-" + 12 hex chars from a UUID) and carries:

  - Routing labels from pkg/proxy: three Traefik path-prefix routers
    (editor, desktop, web), strip-prefix middlewares, priority, TLS
    resolver for public domains.
  - Identity labels: slipway.managed, slipway.id, slipway.domain,
    slipway.bucket.
  - Optional CPU and memory caps via OCI cgroup settings (WithLimits).
  - A tmpfs on the agent env directory so attached credentials never
    reach the container snapshot.

# Environment Contract

The workspace image reads these variables at launch:

	WORKSPACE_ID           the 12-char workspace id
	VNC_PASSWORD           desktop password, when configured
	WORKSPACE_BUCKET       bucket name, when bound at launch
	AWS_DEFAULT_REGION     bucket region, when known
	AWS_ACCESS_KEY_ID      bucket credentials, when supplied
	AWS_SECRET_ACCESS_KEY  bucket credentials, when supplied

Pre-warmed launches (SkipBucketAttachment) omit the bucket variables.
When a pool container is later assigned, AttachBucket writes the same
variables as KEY=VALUE lines to /etc/slipway/agent.env inside the running
container (exec of a small shell script, atomic rename). The in-container
agent watches that file and reconfigures the mounted bucket without a
restart.

# Lifecycle Operations

Create:
  - Pulls the workspace image if absent (WithPullUnpack)
  - Generates a fresh id; retries with a new id if the service name is
    taken by a stale container
  - NewContainer with labels, new snapshot, OCI spec (image config, env,
    hostname, tmpfs mount, resource caps)
  - Starts the task; a partial launch is torn down before the error
    returns
  - Errors wrap errdefs.ErrLaunchFailed

AttachBucket:
  - Merges the bucket into the container labels
  - Execs the env-file write; non-zero exit fails the attach
  - Idempotent; errors wrap errdefs.ErrAttachFailed

Stop:
  - SIGTERM, then SIGKILL when the 10s grace period expires
  - Deletes the task and the container with snapshot cleanup
  - A service that is already gone returns errdefs.ErrNotFound; callers
    on shutdown paths treat that as success

List / Get:
  - Read labels, task status, and creation time into ServiceRecords,
    stamped with the adapter's configured resource caps
  - Containers without the managed label are invisible to the control
    plane even inside the namespace

# Usage

	rt, err := runtime.NewContainerd(cfg.Runtime.Socket, cfg.Runtime.Namespace, cfg.Runtime.Image)
	if err != nil {
		return err
	}
	rt.WithLimits(cfg.Resources.CPUCoresLimit, cfg.Resources.MemoryBytesLimit)
	defer rt.Close()

	record, err := rt.Create(ctx, types.CreateConfig{
		SkipBucketAttachment: true,
		Domain:               cfg.Domain,
		VNCPassword:          cfg.VNCPassword,
	})

In tests:

	m := runtime.NewMemory()
	m.CreateHook = func(types.CreateConfig) error { return errors.New("boom") }
	_, err := m.Create(ctx, types.CreateConfig{}) // wraps ErrLaunchFailed

# Integration Points

This package integrates with:

  - pkg/proxy: Label and URL scheme for the three endpoints
  - pkg/manager: Create/AttachBucket/Stop on the assignment and stop paths
  - pkg/maintainer: List during sync, Create for replenishment
  - pkg/monitor: Get/Stop when probes flip a workspace to failed
  - pkg/reaper: List for ghost detection, Stop for cleanup

# Troubleshooting

Connection refused on startup:
  - Check the containerd socket path and that the daemon runs
  - The control plane needs access to /run/containerd/containerd.sock

Launch failures with "already exists":
  - A stale container holds the service name; Create retries with fresh
    ids, so repeated failures point at namespace-wide duplication

Attach exits non-zero:
  - The workspace image must ship /bin/sh and a writable agent env dir
  - Check the image's agent logs for why the env write failed

# See Also

  - pkg/proxy for the exact label scheme
  - pkg/manager for who calls which operation when
  - containerd client docs: https://pkg.go.dev/github.com/containerd/containerd
*/
package runtime
