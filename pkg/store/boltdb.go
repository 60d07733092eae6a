package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/slipway-sh/slipway/pkg/errdefs"
	"github.com/slipway-sh/slipway/pkg/types"
)

var (
	// Bucket names
	bucketWorkspaces = []byte("workspaces")
	bucketArchive    = []byte("workspaces_archive")
	bucketIdxStatus  = []byte("idx_status")
	bucketIdxStopped = []byte("idx_stopped_at")
)

// stoppedAtLayout is fixed-width so index keys sort chronologically.
const stoppedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

// BoltStore implements Store using bbolt.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (or creates) slipway.db under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "slipway.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", errdefs.ErrStoreUnavailable)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketWorkspaces,
			bucketArchive,
			bucketIdxStatus,
			bucketIdxStopped,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the database
func (s *BoltStore) Close() error {
	return s.db.Close()
}

// Save upserts a workspace row and maintains both indexes in the same
// transaction.
func (s *BoltStore) Save(ws *types.Workspace) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkspaces)

		if prev := b.Get([]byte(ws.ID)); prev != nil {
			var old types.Workspace
			if err := json.Unmarshal(prev, &old); err == nil {
				if err := dropIndexes(tx, &old); err != nil {
					return err
				}
			}
		}

		data, err := json.Marshal(ws)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(ws.ID), data); err != nil {
			return err
		}
		return putIndexes(tx, ws)
	})
}

// Get returns the row for id.
func (s *BoltStore) Get(id string) (*types.Workspace, error) {
	var ws types.Workspace
	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkspaces)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("workspace %s: %w", id, errdefs.ErrNotFound)
		}
		return json.Unmarshal(data, &ws)
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

// List returns rows matching the filter, newest first.
func (s *BoltStore) List(filter Filter) ([]*types.Workspace, error) {
	var workspaces []*types.Workspace

	err := s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkspaces)

		if filter.Status != "" {
			// Prefix scan on the status index, then fetch rows.
			idx := tx.Bucket(bucketIdxStatus)
			prefix := []byte(string(filter.Status) + "/")
			c := idx.Cursor()
			for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
				data := b.Get(v)
				if data == nil {
					continue
				}
				var ws types.Workspace
				if err := json.Unmarshal(data, &ws); err != nil {
					return err
				}
				workspaces = append(workspaces, &ws)
			}
			return nil
		}

		return b.ForEach(func(k, v []byte) error {
			var ws types.Workspace
			if err := json.Unmarshal(v, &ws); err != nil {
				return err
			}
			workspaces = append(workspaces, &ws)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(workspaces, func(i, j int) bool {
		return workspaces[i].CreatedAt.After(workspaces[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(workspaces) {
			return []*types.Workspace{}, nil
		}
		workspaces = workspaces[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(workspaces) {
		workspaces = workspaces[:filter.Limit]
	}
	return workspaces, nil
}

// UpdateLifecycle applies a partial update to the named fields only.
func (s *BoltStore) UpdateLifecycle(id string, update LifecycleUpdate) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkspaces)
		data := b.Get([]byte(id))
		if data == nil {
			return fmt.Errorf("workspace %s: %w", id, errdefs.ErrNotFound)
		}

		var ws types.Workspace
		if err := json.Unmarshal(data, &ws); err != nil {
			return err
		}
		if err := dropIndexes(tx, &ws); err != nil {
			return err
		}

		if update.Status != nil {
			ws.Status = *update.Status
		}
		if update.StartedAt != nil {
			ws.StartedAt = update.StartedAt
		}
		if update.StoppedAt != nil {
			ws.StoppedAt = update.StoppedAt
		}
		if update.LastActivity != nil {
			ws.LastActivity = update.LastActivity
		}
		if update.ShutdownReason != nil {
			ws.ShutdownReason = *update.ShutdownReason
		}

		updated, err := json.Marshal(&ws)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(id), updated); err != nil {
			return err
		}
		return putIndexes(tx, &ws)
	})
}

// Delete removes a row and its index entries. Missing rows are a no-op.
func (s *BoltStore) Delete(id string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkspaces)
		data := b.Get([]byte(id))
		if data == nil {
			return nil
		}
		var ws types.Workspace
		if err := json.Unmarshal(data, &ws); err == nil {
			if err := dropIndexes(tx, &ws); err != nil {
				return err
			}
		}
		return b.Delete([]byte(id))
	})
}

// Count returns the row count, optionally restricted to a status.
func (s *BoltStore) Count(status types.WorkspaceStatus) (int, error) {
	count := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if status == "" {
			count = tx.Bucket(bucketWorkspaces).Stats().KeyN
			return nil
		}
		idx := tx.Bucket(bucketIdxStatus)
		prefix := []byte(string(status) + "/")
		c := idx.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			count++
		}
		return nil
	})
	return count, err
}

// ArchiveOld moves stopped rows older than the cutoff into the archive
// bucket and returns how many moved.
func (s *BoltStore) ArchiveOld(cutoff time.Time) (int, error) {
	moved := 0
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketWorkspaces)
		archive := tx.Bucket(bucketArchive)
		idx := tx.Bucket(bucketIdxStopped)

		var candidates []types.Workspace

		c := idx.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			stampEnd := bytes.LastIndexByte(k, '/')
			if stampEnd < 0 {
				continue
			}
			stoppedAt, err := time.Parse(stoppedAtLayout, string(k[:stampEnd]))
			if err != nil {
				continue
			}
			if !stoppedAt.Before(cutoff) {
				// Keys sort chronologically; everything after is newer.
				break
			}
			data := b.Get(v)
			if data == nil {
				continue
			}
			var ws types.Workspace
			if err := json.Unmarshal(data, &ws); err != nil {
				return err
			}
			if ws.Status != types.StatusStopped {
				continue
			}
			candidates = append(candidates, ws)
		}

		for i := range candidates {
			ws := &candidates[i]
			data, err := json.Marshal(ws)
			if err != nil {
				return err
			}
			if err := archive.Put([]byte(ws.ID), data); err != nil {
				return err
			}
			if err := dropIndexes(tx, ws); err != nil {
				return err
			}
			if err := b.Delete([]byte(ws.ID)); err != nil {
				return err
			}
			moved++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return moved, nil
}

// GetArchived returns an archived row, used by the migration tool and tests.
func (s *BoltStore) GetArchived(id string) (*types.Workspace, error) {
	var ws types.Workspace
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketArchive).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("archived workspace %s: %w", id, errdefs.ErrNotFound)
		}
		return json.Unmarshal(data, &ws)
	})
	if err != nil {
		return nil, err
	}
	return &ws, nil
}

func statusKey(ws *types.Workspace) []byte {
	return []byte(string(ws.Status) + "/" + ws.ID)
}

func stoppedKey(ws *types.Workspace) []byte {
	return []byte(ws.StoppedAt.UTC().Format(stoppedAtLayout) + "/" + ws.ID)
}

func putIndexes(tx *bolt.Tx, ws *types.Workspace) error {
	if err := tx.Bucket(bucketIdxStatus).Put(statusKey(ws), []byte(ws.ID)); err != nil {
		return err
	}
	if ws.StoppedAt != nil {
		return tx.Bucket(bucketIdxStopped).Put(stoppedKey(ws), []byte(ws.ID))
	}
	return nil
}

func dropIndexes(tx *bolt.Tx, ws *types.Workspace) error {
	if err := tx.Bucket(bucketIdxStatus).Delete(statusKey(ws)); err != nil {
		return err
	}
	if ws.StoppedAt != nil {
		return tx.Bucket(bucketIdxStopped).Delete(stoppedKey(ws))
	}
	return nil
}
