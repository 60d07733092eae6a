/*
Package health provides HTTP endpoint probing for workspace containers.

The health package implements the single-shot probe primitives the monitor
and maintainer loops are built on: an HTTP checker with workspace-appropriate
semantics and the readiness classification used while a fresh container
warms up.

# Probe Semantics

A workspace is a black box behind the path-prefix proxy. The probe hits the
editor endpoint and interprets the response pessimistically about transport
and optimistically about HTTP:

  - Any HTTP status below 500 is healthy. The editor's login flow answers
    401 or 302 to anonymous probes, and both prove a serving process.
  - 5xx means the process behind the route is broken.
  - Transport errors and timeouts mean nobody is listening.
  - Redirects are never followed. The 302 itself is the evidence.

The probe timeout defaults to 3 seconds (DefaultProbeTimeout).

# Readiness vs Liveness

The same HTTP probe serves two different questions:

Liveness (pkg/monitor):
  - Is a running workspace still alive?
  - Result.Healthy feeds the monitor's failure counter; N consecutive
    failures flip the workspace to failed.

Readiness (pkg/maintainer):
  - Is a freshly launched container serving yet?
  - ClassifyReadiness distinguishes Ready (200/302/401) from
    RoutingPending (404, the proxy route is not installed yet) from
    NotReady (5xx or transport failure), so the readiness wait knows
    whether to keep polling or count the attempt as failing.

# Usage

Single probe:

	checker := health.NewHTTPChecker(urls.Editor)
	result := checker.Check(ctx)
	if !result.Healthy {
		// transport failure or 5xx
	}

Readiness wait:

	switch health.ClassifyReadiness(checker.Check(ctx)) {
	case health.Ready:
		// promote to running
	case health.RoutingPending:
		// keep polling, route not installed yet
	case health.NotReady:
		// counts against the readiness cap
	}

# Integration Points

This package integrates with:

  - pkg/monitor: Periodic liveness probes and failure thresholds
  - pkg/maintainer: Readiness polling for fresh pool containers
  - pkg/proxy: Supplies the editor URLs that get probed

# See Also

  - pkg/monitor for the probe loop and failure policy
  - pkg/maintainer for the readiness wait
*/
package health
