// Package events provides a lightweight publish/subscribe broker for
// workspace lifecycle notifications.
//
// # Architecture
//
// The broker decouples the components that detect lifecycle transitions
// (manager, monitor, maintainer) from the components that react to them
// (webhook alerter, API event streams, logging sinks):
//
//	┌─────────────┐
//	│   Manager   │──┐
//	└─────────────┘  │
//	┌─────────────┐  │   ┌─────────────┐     ┌──────────────┐
//	│   Monitor   │──┼──▶│   Broker    │────▶│ Subscriber 1 │
//	└─────────────┘  │   │  (eventCh)  │────▶│ Subscriber 2 │
//	┌─────────────┐  │   └─────────────┘     └──────────────┘
//	│ Maintainer  │──┘
//	└─────────────┘
//
// Publishers never block: Publish drops the event if the broker's internal
// queue is full, and broadcast skips any subscriber whose buffer is full.
// A slow consumer therefore loses events rather than stalling lifecycle
// operations. Subscribers that need a complete record should persist state
// elsewhere and treat events as hints.
//
// # Event Types
//
//   - workspace.assigned: a workspace was bound to a bucket and handed to a user
//   - workspace.running: a workspace passed its first health probe
//   - workspace.failed: a workspace exhausted its probe failure budget
//   - workspace.stopped: a workspace was shut down
//   - editor.available: the code editor endpoint answered for the first time
//   - pool.spawned: the maintainer launched a pre-warmed workspace
//   - pool.spawn_failed: a pre-warm launch or its readiness wait failed
//   - recovery.triggered: the monitor initiated failure handling
//
// # Usage
//
//	broker := events.NewBroker()
//	broker.Start()
//	defer broker.Stop()
//
//	sub := broker.Subscribe()
//	go func() {
//	    for event := range sub {
//	        fmt.Printf("[%s] %s: %s\n", event.Type, event.WorkspaceID, event.Message)
//	    }
//	}()
//
//	broker.Publish(events.New(events.EventWorkspaceStopped, id, "user requested stop").
//	    WithMeta("reason", "user_request"))
//
// # Integration Points
//
//   - pkg/manager: publishes workspace.assigned and workspace.stopped
//   - pkg/monitor: publishes workspace.running, workspace.failed,
//     editor.available, and recovery.triggered
//   - pkg/maintainer: publishes pool.spawned and pool.spawn_failed
//   - pkg/alert: subscribes and forwards failure events to a webhook
//
// # See Also
//
//   - pkg/alert: webhook delivery with per-key cooldown
//   - pkg/monitor: health transitions that feed the broker
package events
