/*
Package resources samples host capacity and gates workspace launches.

The resources package reads memory and CPU pressure from /proc via
prometheus/procfs, disk usage via statfs on the data directory, and the
live workspace count from an injected counter. Launch paths call CanLaunch
before creating containers; everything else consumes Snapshot for
reporting.

# Architecture

	┌──────────────── RESOURCE PROBE ─────────────────┐
	│                                                   │
	│   /proc/meminfo ──┐                               │
	│   /proc/stat ─────┼──▶ Snapshot() ──▶ CanLaunch() │
	│   statfs(dataDir)─┤        │                      │
	│   liveCount() ────┘        ▼                      │
	│                     pkg/metrics gauges            │
	└───────────────────────────────────────────────────┘

# Launch Gate

CanLaunch applies two thresholds, both percentages and both adjustable at
runtime via SetThresholds:

  - Memory at or above its threshold (default 90) refuses the launch and
    returns a human-readable reason for the API error body.
  - CPU at or above its threshold (default 90) logs a warning but allows
    the launch. CPU spikes are transient on developer workloads; memory
    exhaustion is not.

A probe failure (unreadable /proc, bad mount) allows the launch with a
warning. The gate exists to shed load gracefully, not to take the control
plane down with it.

# CPU Sampling

CPU usage needs two /proc/stat samples: the probe keeps the previous
busy/total tick counters and reports the usage over the interval between
calls. The first call after startup reports zero. The metrics collector
polls Snapshot on a fixed interval, which keeps the deltas meaningful.

# Usage

	probe, err := resources.NewProbe(cfg.DataDir,
		cfg.Resources.MemThresholdPct,
		cfg.Resources.CPUThresholdPct,
		func() int { return registry.Stats().Total })
	if err != nil {
		return err
	}

	if ok, reason := probe.CanLaunch(); !ok {
		return errdefs.ErrResourceExhausted // reason goes in the response
	}

# Integration Points

This package integrates with:

  - pkg/manager: Gates fresh launches during assignment
  - pkg/maintainer: Gates pool replenishment spawns
  - pkg/metrics: Publishes snapshots as slipway_host_* gauges
  - pkg/pool: Supplies the live workspace count

# See Also

  - pkg/maintainer for the replenishment loop that honors the gate
  - prometheus/procfs documentation: https://github.com/prometheus/procfs
*/
package resources
