/*
Package stats records per-workspace lifecycle timelines.

Every assigned workspace gets one row: when the request arrived, when the
editor first answered, when it stopped, and the two derived durations
(startup and active time). Rows live in their own bbolt file (stats.db)
with a single "lifecycle" bucket, keyed by workspace id.

# Best Effort, Always

Stats must never hurt the control plane. Every hook on the Recorder
interface absorbs failures: a failed write is logged and dropped, a hook
for an unknown id is ignored, and if stats.db cannot open at startup the
process runs with the Disabled recorder instead of refusing to start.

# Row Lifecycle

	OnRequestReceived     inserts the row (assignment path, fire-and-forget
	                      goroutine, carries the handler-entry timestamp)
	OnCodeEditorAvailable sets code_editor_available_at and startup_ms,
	                      first call only; later calls are ignored
	OnStopped             sets stopped_at, shutdown_reason, and active_ms

Active time is measured from editor-available; for workspaces that never
got healthy it falls back to request-received, so failed launches still
show how long they lingered.

The startup duration additionally feeds the Prometheus histogram through
the observer registered with WithStartupObserver, firing at most once per
workspace.

# Integration Points

This package integrates with:

  - pkg/manager: OnRequestReceived during assignment, OnStopped on stop
  - pkg/monitor: OnCodeEditorAvailable at the first successful probe of
    an assigned workspace
  - pkg/metrics: Startup histogram via the observer hook

# See Also

  - pkg/store for the operational workspace rows (separate database)
  - pkg/monitor for the promotion that defines "editor available"
*/
package stats
