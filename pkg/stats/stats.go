package stats

import (
	"time"

	"github.com/slipway-sh/slipway/pkg/types"
)

// Row is one workspace's lifecycle timeline. A row is inserted once at
// request time, updated once when the editor first answers, and updated
// once more at stop.
type Row struct {
	ContainerID           string               `json:"container_id"`
	UserID                string               `json:"user_id,omitempty"`
	Bucket                string               `json:"bucket"`
	RequestReceivedAt     time.Time            `json:"request_received_at"`
	CodeEditorAvailableAt *time.Time           `json:"code_editor_available_at,omitempty"`
	StoppedAt             *time.Time           `json:"stopped_at,omitempty"`
	StartupMs             *int64               `json:"startup_ms,omitempty"`
	ActiveMs              *int64               `json:"active_ms,omitempty"`
	ShutdownReason        types.ShutdownReason `json:"shutdown_reason,omitempty"`
}

// Recorder receives lifecycle hooks. Every implementation is best-effort:
// hooks never return errors and never block the caller's path on stats
// problems.
type Recorder interface {
	// OnRequestReceived inserts the row for a fresh assignment. receivedAt
	// is the moment the request entered the handler, not when the id
	// became known.
	OnRequestReceived(id, bucket, userID string, receivedAt time.Time)

	// OnCodeEditorAvailable records first-healthy. Only the first call per
	// id takes effect; the monitor may race itself on promotion.
	OnCodeEditorAvailable(id string, at time.Time)

	// OnStopped closes the row with the active duration and the reason.
	OnStopped(id string, reason types.ShutdownReason, at time.Time)

	// Close releases the backing store.
	Close() error
}

// Disabled is the Recorder used when stats are off or their database
// cannot open. Every hook is a no-op.
type Disabled struct{}

func (Disabled) OnRequestReceived(string, string, string, time.Time) {}

func (Disabled) OnCodeEditorAvailable(string, time.Time) {}

func (Disabled) OnStopped(string, types.ShutdownReason, time.Time) {}

func (Disabled) Close() error { return nil }
