// Package manager implements the synchronous workspace lifecycle: the
// assignment path that serves a client request and the stop path shared
// by manual deletion and inactivity shutdown.
//
// # Architecture
//
// Assignment prefers the pre-warmed pool and falls back to a fresh
// launch:
//
//	          validate bucket (syntax, then S3)
//	                      │
//	                  ClaimOne ──── nil ────────┐
//	                      │                     │
//	              AttachBucket            CanLaunch gate
//	                │         │                 │
//	             success   failure ──▶ evict    │
//	                │                  └──────▶ Create (bucket at boot)
//	                │                           │
//	                └──────────┬────────────────┘
//	                           ▼
//	          persist starting, stats row, eager probe
//
// A pool hit binds the bucket to a container that is already booted, so
// the editor is typically reachable within seconds. A failed attach
// evicts the entry instead of returning it; that container mounted
// nothing and cannot be trusted with the next bucket either. The
// eviction leaves a deficit the maintainer refills on its next tick.
//
// Pool-hit records keep the container's original created_at and restart
// their health cycle at starting, since the attach restarts the services
// inside the container. The per-request VNC password only affects fresh
// launches; a pooled container was created with the default.
//
// The stop path marks stopping, removes the runtime service (already
// gone counts as success), marks stopped with the reason, and then fans
// out: pool eviction, monitor cleanup, stats, event. Stopping a stopped
// workspace is a no-op that preserves the original stopped_at.
//
// # Usage
//
//	mgr := manager.NewManager(rt, st, registry, validator, probe, broker,
//	    recorder, manager.Config{
//	        Domain:        cfg.Domain,
//	        DefaultRegion: cfg.RegionDefault,
//	        DefaultCreds:  cfg.CredentialsDefault,
//	        VNCPassword:   cfg.VNCPassword,
//	    }).WithProber(healthMonitor)
//
//	ws, err := mgr.Assign(ctx, manager.AssignRequest{Bucket: "team-data"})
//
// # Integration Points
//
//   - pkg/api: calls Assign, Stop, Get, List, Count from its handlers
//   - pkg/bucket: validates names and bucket reachability before claiming
//   - pkg/pool: ClaimOne/BindBucket/Remove around attachment
//   - pkg/monitor: Prober for the eager post-assign probe and Forget
//   - pkg/stats: request-received and stopped hooks
//   - pkg/events: workspace.assigned and workspace.stopped
//
// # See Also
//
//   - pkg/maintainer: fills the pool this package claims from
package manager
