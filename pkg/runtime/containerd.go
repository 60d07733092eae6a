package runtime

import (
	"context"
	"fmt"
	"strings"
	"syscall"
	"time"

	"github.com/containerd/containerd"
	"github.com/containerd/containerd/cio"
	cerrdefs "github.com/containerd/containerd/errdefs"
	"github.com/containerd/containerd/namespaces"
	"github.com/containerd/containerd/oci"
	specs "github.com/opencontainers/runtime-spec/specs-go"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/proxy"
	"github.com/slipway-sh/slipway/pkg/types"
)

const (
	// DefaultNamespace is the containerd namespace for Slipway
	DefaultNamespace = "slipway"

	// DefaultSocketPath is the default containerd socket
	DefaultSocketPath = "/run/containerd/containerd.sock"

	// stopGracePeriod is how long SIGTERM gets before SIGKILL
	stopGracePeriod = 10 * time.Second

	// agentEnvFile is where AttachBucket drops credentials for the
	// in-container agent to pick up
	agentEnvFile = "/etc/slipway/agent.env"

	// cfsPeriod is the CFS scheduler period used for CPU quotas
	cfsPeriod = uint64(100000)
)

// Containerd implements Orchestrator against a containerd daemon
type Containerd struct {
	client    *containerd.Client
	namespace string
	image     string

	cpuCoresLimit    float64
	memoryBytesLimit int64
}

// NewContainerd connects to containerd and returns the production
// orchestrator. image is the workspace image every service runs.
func NewContainerd(socketPath, namespace, image string) (*Containerd, error) {
	if socketPath == "" {
		socketPath = DefaultSocketPath
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	client, err := containerd.New(socketPath)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to containerd: %w", err)
	}

	return &Containerd{
		client:    client,
		namespace: namespace,
		image:     image,
	}, nil
}

// WithLimits sets per-workspace CPU and memory caps. Zero disables a cap.
func (r *Containerd) WithLimits(cpuCores float64, memoryBytes int64) *Containerd {
	r.cpuCoresLimit = cpuCores
	r.memoryBytesLimit = memoryBytes
	return r
}

// Close closes the containerd client connection
func (r *Containerd) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Create launches a workspace container with routing labels and returns
// its record. The image is pulled on first use.
func (r *Containerd) Create(ctx context.Context, cfg types.CreateConfig) (*types.ServiceRecord, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	image, err := r.client.GetImage(ctx, r.image)
	if err != nil {
		if !cerrdefs.IsNotFound(err) {
			return nil, fmt.Errorf("%w: get image %s: %v", errdefs.ErrLaunchFailed, r.image, err)
		}
		image, err = r.client.Pull(ctx, r.image, containerd.WithPullUnpack)
		if err != nil {
			return nil, fmt.Errorf("%w: pull image %s: %v", errdefs.ErrLaunchFailed, r.image, err)
		}
	}

	// uuid collisions are near-impossible but a stale container with the
	// same name is not, so retry with a fresh id
	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		id := newWorkspaceID()
		serviceName := types.ServiceName(id)

		labelBucket := ""
		if !cfg.SkipBucketAttachment {
			labelBucket = cfg.Bucket
		}
		labels := proxy.Labels(id, cfg.Domain, labelBucket)

		// Credentials land in the agent env dir at attach time; tmpfs keeps
		// them out of the container snapshot.
		opts := []oci.SpecOpts{
			oci.WithImageConfig(image),
			oci.WithEnv(buildEnv(id, cfg)),
			oci.WithHostname(serviceName),
			oci.WithMounts([]specs.Mount{{
				Destination: agentEnvDir(),
				Type:        "tmpfs",
				Source:      "tmpfs",
				Options:     []string{"nosuid", "nodev", "mode=700"},
			}}),
		}
		if r.cpuCoresLimit > 0 {
			opts = append(opts, oci.WithCPUCFS(int64(r.cpuCoresLimit*float64(cfsPeriod)), cfsPeriod))
		}
		if r.memoryBytesLimit > 0 {
			opts = append(opts, oci.WithMemoryLimit(uint64(r.memoryBytesLimit)))
		}

		container, err := r.client.NewContainer(
			ctx,
			serviceName,
			containerd.WithImage(image),
			containerd.WithNewSnapshot(serviceName+"-snapshot", image),
			containerd.WithNewSpec(opts...),
			containerd.WithContainerLabels(labels),
		)
		if err != nil {
			if cerrdefs.IsAlreadyExists(err) {
				lastErr = err
				continue
			}
			return nil, fmt.Errorf("%w: create container %s: %v", errdefs.ErrLaunchFailed, serviceName, err)
		}

		task, err := container.NewTask(ctx, cio.NullIO)
		if err != nil {
			r.cleanupFailedLaunch(ctx, container, nil)
			return nil, fmt.Errorf("%w: create task for %s: %v", errdefs.ErrLaunchFailed, serviceName, err)
		}
		if err := task.Start(ctx); err != nil {
			r.cleanupFailedLaunch(ctx, container, task)
			return nil, fmt.Errorf("%w: start task for %s: %v", errdefs.ErrLaunchFailed, serviceName, err)
		}

		log.WithComponent("runtime").Info().
			Str("workspace_id", id).
			Str("service", serviceName).
			Bool("pre_warm", cfg.SkipBucketAttachment).
			Msg("Workspace container started")

		return &types.ServiceRecord{
			ID:          id,
			ServiceName: serviceName,
			Status:      StateRunning,
			Bucket:      labelBucket,
			CPUCores:    r.cpuCoresLimit,
			MemoryBytes: r.memoryBytesLimit,
			CreatedAt:   time.Now().UTC(),
		}, nil
	}

	return nil, fmt.Errorf("%w: could not allocate a free service name: %v", errdefs.ErrLaunchFailed, lastErr)
}

// cleanupFailedLaunch tears down the partial container so a failed Create
// leaves nothing behind.
func (r *Containerd) cleanupFailedLaunch(ctx context.Context, container containerd.Container, task containerd.Task) {
	if task != nil {
		_, _ = task.Delete(ctx, containerd.WithProcessKill)
	}
	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		log.WithComponent("runtime").Warn().Err(err).
			Str("service", container.ID()).
			Msg("Failed to clean up after aborted launch")
	}
}

// AttachBucket updates the service labels and writes the agent env file
// inside the running container. Safe to call twice with the same bucket.
func (r *Containerd) AttachBucket(ctx context.Context, id, bucket, region string, creds types.Credentials) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	serviceName := types.ServiceName(id)

	container, err := r.client.LoadContainer(ctx, serviceName)
	if err != nil {
		return fmt.Errorf("%w: load container %s: %v", errdefs.ErrAttachFailed, serviceName, err)
	}

	if _, err := container.SetLabels(ctx, map[string]string{proxy.LabelBucket: bucket}); err != nil {
		return fmt.Errorf("%w: set bucket label on %s: %v", errdefs.ErrAttachFailed, serviceName, err)
	}

	task, err := container.Task(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: no running task for %s: %v", errdefs.ErrAttachFailed, serviceName, err)
	}

	spec, err := container.Spec(ctx)
	if err != nil {
		return fmt.Errorf("%w: read spec of %s: %v", errdefs.ErrAttachFailed, serviceName, err)
	}
	pspec := *spec.Process
	pspec.Args = []string{"/bin/sh", "-c", attachScript(bucket, region, creds)}

	execID := fmt.Sprintf("attach-%d", time.Now().UnixNano())
	process, err := task.Exec(ctx, execID, &pspec, cio.NullIO)
	if err != nil {
		return fmt.Errorf("%w: exec in %s: %v", errdefs.ErrAttachFailed, serviceName, err)
	}
	defer func() {
		if _, err := process.Delete(ctx); err != nil {
			log.WithComponent("runtime").Debug().Err(err).Msg("Failed to delete attach exec process")
		}
	}()

	waitCh, err := process.Wait(ctx)
	if err != nil {
		return fmt.Errorf("%w: wait on exec in %s: %v", errdefs.ErrAttachFailed, serviceName, err)
	}
	if err := process.Start(ctx); err != nil {
		return fmt.Errorf("%w: start exec in %s: %v", errdefs.ErrAttachFailed, serviceName, err)
	}

	select {
	case status := <-waitCh:
		code, _, err := status.Result()
		if err != nil {
			return fmt.Errorf("%w: exec result for %s: %v", errdefs.ErrAttachFailed, serviceName, err)
		}
		if code != 0 {
			return fmt.Errorf("%w: agent env write in %s exited %d", errdefs.ErrAttachFailed, serviceName, code)
		}
	case <-ctx.Done():
		return fmt.Errorf("%w: exec in %s: %v", errdefs.ErrAttachFailed, serviceName, ctx.Err())
	}

	log.WithComponent("runtime").Info().
		Str("workspace_id", id).
		Str("bucket", bucket).
		Msg("Bucket attached to running workspace")
	return nil
}

// Stop kills the task (SIGTERM, then SIGKILL after the grace period) and
// deletes the container with its snapshot.
func (r *Containerd) Stop(ctx context.Context, id string) error {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	serviceName := types.ServiceName(id)

	container, err := r.client.LoadContainer(ctx, serviceName)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return fmt.Errorf("service %s: %w", serviceName, errdefs.ErrNotFound)
		}
		return fmt.Errorf("failed to load container %s: %w", serviceName, err)
	}

	task, err := container.Task(ctx, nil)
	if err == nil {
		if err := r.stopTask(ctx, task); err != nil {
			return fmt.Errorf("failed to stop task for %s: %w", serviceName, err)
		}
	} else if !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("failed to get task for %s: %w", serviceName, err)
	}

	if err := container.Delete(ctx, containerd.WithSnapshotCleanup); err != nil {
		return fmt.Errorf("failed to delete container %s: %w", serviceName, err)
	}

	log.WithComponent("runtime").Info().
		Str("workspace_id", id).
		Msg("Workspace container removed")
	return nil
}

// stopTask tries graceful shutdown first, then escalates.
func (r *Containerd) stopTask(ctx context.Context, task containerd.Task) error {
	stopCtx, cancel := context.WithTimeout(ctx, stopGracePeriod)
	defer cancel()

	if err := task.Kill(stopCtx, syscall.SIGTERM); err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("failed to signal task: %w", err)
	}

	statusC, err := task.Wait(stopCtx)
	if err != nil {
		return fmt.Errorf("failed to wait for task: %w", err)
	}

	select {
	case <-statusC:
		// Task exited within the grace period
	case <-stopCtx.Done():
		if err := task.Kill(ctx, syscall.SIGKILL); err != nil && !cerrdefs.IsNotFound(err) {
			return fmt.Errorf("failed to force kill task: %w", err)
		}
	}

	if _, err := task.Delete(ctx, containerd.WithProcessKill); err != nil && !cerrdefs.IsNotFound(err) {
		return fmt.Errorf("failed to delete task: %w", err)
	}
	return nil
}

// List returns every managed workspace service in the namespace.
func (r *Containerd) List(ctx context.Context) ([]types.ServiceRecord, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)

	containers, err := r.client.Containers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	records := make([]types.ServiceRecord, 0, len(containers))
	for _, c := range containers {
		record, err := r.record(ctx, c)
		if err != nil {
			log.WithComponent("runtime").Warn().Err(err).
				Str("service", c.ID()).
				Msg("Skipping unreadable container")
			continue
		}
		if record != nil {
			records = append(records, *record)
		}
	}
	return records, nil
}

// Get returns one managed service by workspace id.
func (r *Containerd) Get(ctx context.Context, id string) (*types.ServiceRecord, error) {
	ctx = namespaces.WithNamespace(ctx, r.namespace)
	serviceName := types.ServiceName(id)

	container, err := r.client.LoadContainer(ctx, serviceName)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, fmt.Errorf("service %s: %w", serviceName, errdefs.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load container %s: %w", serviceName, err)
	}

	record, err := r.record(ctx, container)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, fmt.Errorf("service %s not managed: %w", serviceName, errdefs.ErrNotFound)
	}
	return record, nil
}

// record builds a ServiceRecord from a container, or nil if the container
// is not one of ours.
func (r *Containerd) record(ctx context.Context, container containerd.Container) (*types.ServiceRecord, error) {
	labels, err := container.Labels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read labels: %w", err)
	}
	if !proxy.IsManaged(labels) {
		return nil, nil
	}

	id := labels[proxy.LabelID]
	if id == "" {
		derived, ok := types.IDFromServiceName(container.ID())
		if !ok {
			return nil, nil
		}
		id = derived
	}

	info, err := container.Info(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read container info: %w", err)
	}

	// Caps are uniform across the fleet, so the adapter's configured
	// limits stand in for reading them back out of the OCI spec.
	return &types.ServiceRecord{
		ID:          id,
		ServiceName: container.ID(),
		Status:      r.taskState(ctx, container),
		Bucket:      labels[proxy.LabelBucket],
		CPUCores:    r.cpuCoresLimit,
		MemoryBytes: r.memoryBytesLimit,
		CreatedAt:   info.CreatedAt,
	}, nil
}

// taskState maps the containerd task status onto service states.
func (r *Containerd) taskState(ctx context.Context, container containerd.Container) string {
	task, err := container.Task(ctx, nil)
	if err != nil {
		// No task means the container exists but nothing runs
		return StateStopped
	}
	status, err := task.Status(ctx)
	if err != nil {
		return StateUnknown
	}
	switch status.Status {
	case containerd.Running, containerd.Paused, containerd.Pausing:
		return StateRunning
	case containerd.Created:
		return StateCreated
	case containerd.Stopped:
		return StateStopped
	default:
		return StateUnknown
	}
}

// buildEnv assembles the container environment for a new workspace.
func buildEnv(id string, cfg types.CreateConfig) []string {
	env := []string{"WORKSPACE_ID=" + id}
	if cfg.VNCPassword != "" {
		env = append(env, "VNC_PASSWORD="+cfg.VNCPassword)
	}
	if !cfg.SkipBucketAttachment && cfg.Bucket != "" {
		env = append(env, bucketEnv(cfg.Bucket, cfg.Region, cfg.Credentials)...)
	}
	return env
}

// bucketEnv is the environment contract shared by launch-time env and the
// agent env file written on attach.
func bucketEnv(bucket, region string, creds types.Credentials) []string {
	env := []string{"WORKSPACE_BUCKET=" + bucket}
	if region != "" {
		env = append(env, "AWS_DEFAULT_REGION="+region)
	}
	if !creds.Empty() {
		env = append(env,
			"AWS_ACCESS_KEY_ID="+creds.AccessKeyID,
			"AWS_SECRET_ACCESS_KEY="+creds.SecretAccessKey,
		)
	}
	return env
}

// attachScript writes the agent env file atomically inside the container.
func attachScript(bucket, region string, creds types.Credentials) string {
	var b strings.Builder
	b.WriteString("mkdir -p ")
	b.WriteString(agentEnvDir())
	b.WriteString(" && { ")
	for _, line := range bucketEnv(bucket, region, creds) {
		b.WriteString("echo ")
		b.WriteString(shellQuote(line))
		b.WriteString("; ")
	}
	b.WriteString("} > ")
	b.WriteString(agentEnvFile + ".tmp")
	b.WriteString(" && mv ")
	b.WriteString(agentEnvFile + ".tmp ")
	b.WriteString(agentEnvFile)
	return b.String()
}

func agentEnvDir() string {
	idx := strings.LastIndex(agentEnvFile, "/")
	return agentEnvFile[:idx]
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
