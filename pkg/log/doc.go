/*
Package log provides structured logging for Slipway using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers and configurable log levels. All logs include
timestamps and support filtering by severity level.

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init(); a stderr fallback exists before that
  - Thread-safe for concurrent writes

Log Levels:
  - Debug: Detailed control-loop tracing (tick boundaries, probe results)
  - Info: Lifecycle transitions, assignments, spawns
  - Warn: Degraded conditions (resource gate refusals, probe failures)
  - Error: Failed boundary operations

Context Loggers:
  - WithComponent: Tag all logs with the owning subsystem

# Usage

Initializing:

	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

Component loggers (the standard pattern for every subsystem):

	logger := log.WithComponent("maintainer")
	logger.Info().Int("deficit", 2).Msg("spawning pool replacements")

	logger.Error().
		Err(err).
		Str("workspace_id", id).
		Msg("readiness wait exceeded cap")

# Log Output Examples

JSON format (production):

	{"level":"info","component":"maintainer","deficit":2,"time":"2026-03-02T10:30:00Z","message":"spawning pool replacements"}
	{"level":"warn","component":"monitor","workspace_id":"a1b2c3d4e5f6","failures":2,"time":"2026-03-02T10:30:05Z","message":"health probe failed"}

Console format (development):

	10:30:00 INF spawning pool replacements component=maintainer deficit=2
	10:30:05 WRN health probe failed component=monitor workspace_id=a1b2c3d4e5f6 failures=2

# Integration Points

Every long-lived component holds a component-tagged child logger:

  - pkg/maintainer: "maintainer"
  - pkg/monitor: "monitor"
  - pkg/reaper: "reaper"
  - pkg/manager: "manager"
  - pkg/api: "api"
  - pkg/runtime: "runtime"
  - pkg/alert: "alert"

# Best Practices

Do:
  - Use Info level in production
  - Use typed fields (.Str, .Int, .Err) for queryable data
  - Create component-specific loggers once, at construction
  - Include workspace_id on every per-workspace message

Don't:
  - Log credentials or bucket access keys
  - Log at Info inside probe loops (use Debug)
  - Concatenate values into the message string

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
*/
package log
