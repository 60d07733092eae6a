// Package alert delivers lifecycle failure notifications to a
// Discord-compatible webhook.
//
// # Architecture
//
// The alerter is a broker subscriber. It filters the event stream down to
// the types an operator should wake up for, applies a per-key cooldown so
// a flapping workspace cannot flood the channel, and posts the remainder
// as JSON:
//
//	┌─────────┐    subscribe    ┌──────────┐    POST     ┌──────────┐
//	│ Broker  │────────────────▶│ Alerter  │────────────▶│ Webhook  │
//	└─────────┘                 │ cooldown │             └──────────┘
//	                            └──────────┘
//
// Forwarded event types:
//
//   - workspace.failed: a workspace exhausted its probe failure budget
//   - pool.spawn_failed: the maintainer could not replenish the pool
//   - recovery.triggered: the monitor initiated failure handling
//
// Everything else (assignments, stops, pool spawns) is routine and dropped.
//
// # Cooldown
//
// The suppression key is "<event type>/<workspace id>". Once an alert for a
// key is attempted, further alerts for that key are dropped until the
// cooldown (default 5 minutes) elapses. Distinct workspaces never suppress
// each other. The timestamp is recorded at the attempt, not on delivery
// success, so a broken webhook does not amplify retries.
//
// # Usage
//
//	alerter := alert.NewAlerter(broker, cfg.Alerts.WebhookURL, cfg.Alerts.Cooldown.Std())
//	alerter.Start()
//	defer alerter.Stop()
//
// An empty webhook URL disables the alerter; Start logs and returns without
// subscribing.
//
// # Delivery
//
// The request body is {"content": "..."} with the event type, workspace id,
// message, and sorted metadata. Delivery is best-effort with a 10 second
// timeout; non-2xx responses and transport errors are logged and dropped.
//
// # See Also
//
//   - pkg/events: the broker this package subscribes to
//   - pkg/config: alerts.webhook_url and alerts.cooldown settings
package alert
