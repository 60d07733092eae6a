package stats

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/log"
	"github.com/slipway-sh/slipway/pkg/types"
)

var bucketLifecycle = []byte("lifecycle")

// Bolt persists lifecycle rows in a bbolt file of its own, separate from
// the workspace store, so stats loss can never take lifecycle data with
// it.
type Bolt struct {
	db             *bolt.DB
	observeStartup func(time.Duration)
}

// NewBolt opens (or creates) stats.db under dataDir.
func NewBolt(dataDir string) (*Bolt, error) {
	dbPath := filepath.Join(dataDir, "stats.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open stats database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketLifecycle)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create lifecycle bucket: %w", err)
	}

	return &Bolt{db: db}, nil
}

// WithStartupObserver registers a callback fired once per workspace with
// its request-to-editor duration, used to feed the Prometheus histogram.
func (b *Bolt) WithStartupObserver(fn func(time.Duration)) *Bolt {
	b.observeStartup = fn
	return b
}

// Close closes the database
func (b *Bolt) Close() error {
	return b.db.Close()
}

// OnRequestReceived inserts the row for a fresh assignment.
func (b *Bolt) OnRequestReceived(id, bucket, userID string, receivedAt time.Time) {
	row := Row{
		ContainerID:       id,
		UserID:            userID,
		Bucket:            bucket,
		RequestReceivedAt: receivedAt.UTC(),
	}
	if err := b.put(&row); err != nil {
		b.absorb("request-received", id, err)
	}
}

// OnCodeEditorAvailable records first-healthy exactly once per row.
func (b *Bolt) OnCodeEditorAvailable(id string, at time.Time) {
	var startup time.Duration
	observed := false

	err := b.update(id, func(row *Row) bool {
		if row.CodeEditorAvailableAt != nil {
			return false
		}
		at := at.UTC()
		row.CodeEditorAvailableAt = &at
		ms := at.Sub(row.RequestReceivedAt).Milliseconds()
		row.StartupMs = &ms
		startup = time.Duration(ms) * time.Millisecond
		observed = true
		return true
	})
	if err != nil {
		b.absorb("editor-available", id, err)
		return
	}
	if observed && b.observeStartup != nil {
		b.observeStartup(startup)
	}
}

// OnStopped closes the row. Active time counts from editor-available, or
// from request-received when the workspace never got healthy.
func (b *Bolt) OnStopped(id string, reason types.ShutdownReason, at time.Time) {
	err := b.update(id, func(row *Row) bool {
		at := at.UTC()
		row.StoppedAt = &at
		row.ShutdownReason = reason

		base := row.RequestReceivedAt
		if row.CodeEditorAvailableAt != nil {
			base = *row.CodeEditorAvailableAt
		}
		ms := at.Sub(base).Milliseconds()
		row.ActiveMs = &ms
		return true
	})
	if err != nil {
		b.absorb("stopped", id, err)
	}
}

// Get returns one row, mainly for tests and ad-hoc inspection.
func (b *Bolt) Get(id string) (*Row, error) {
	var row Row
	err := b.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketLifecycle).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("stats row %s: %w", id, errdefs.ErrNotFound)
		}
		return json.Unmarshal(data, &row)
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (b *Bolt) put(row *Row) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(row)
		if err != nil {
			return fmt.Errorf("failed to marshal stats row: %w", err)
		}
		return tx.Bucket(bucketLifecycle).Put([]byte(row.ContainerID), data)
	})
}

// update applies fn to an existing row inside one transaction. fn returns
// false to leave the row untouched. A missing row is not an error; pool
// pre-warms have no stats row until assignment.
func (b *Bolt) update(id string, fn func(*Row) bool) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bkt := tx.Bucket(bucketLifecycle)
		data := bkt.Get([]byte(id))
		if data == nil {
			return nil
		}
		var row Row
		if err := json.Unmarshal(data, &row); err != nil {
			return fmt.Errorf("failed to unmarshal stats row: %w", err)
		}
		if !fn(&row) {
			return nil
		}
		updated, err := json.Marshal(&row)
		if err != nil {
			return fmt.Errorf("failed to marshal stats row: %w", err)
		}
		return bkt.Put([]byte(id), updated)
	})
}

// absorb logs a stats failure without letting it near the caller.
func (b *Bolt) absorb(hook, id string, err error) {
	log.WithComponent("stats").Warn().
		Err(err).
		Str("hook", hook).
		Str("workspace_id", id).
		Msg("Stats write failed")
}
