package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	bolt "go.etcd.io/bbolt"

	"github.com/slipway-sh/slipway/pkg/types"
)

var (
	dataDir    = flag.String("data-dir", "/var/lib/slipway", "Slipway data directory")
	dryRun     = flag.Bool("dry-run", false, "Show what would be migrated without making changes")
	backupPath = flag.String("backup", "", "Path to backup the database before migration (default: <data-dir>/slipway.db.backup)")
)

// Index layout shared with pkg/store. The status index keys rows by
// "{status}/{id}", the stopped index by "{stopped_at}/{id}" with a
// fixed-width timestamp so keys sort chronologically.
var (
	bucketWorkspaces = []byte("workspaces")
	bucketIdxStatus  = []byte("idx_status")
	bucketIdxStopped = []byte("idx_stopped_at")
)

const stoppedAtLayout = "2006-01-02T15:04:05.000000000Z07:00"

func main() {
	flag.Parse()

	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Slipway Database Migration Tool - Index Backfill")
	log.Println("================================================")

	dbPath := filepath.Join(*dataDir, "slipway.db")
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		log.Fatalf("Database not found at %s", dbPath)
	}

	log.Printf("Database: %s", dbPath)
	log.Printf("Dry run: %v", *dryRun)

	// Create backup unless in dry-run mode
	if !*dryRun {
		backupFile := *backupPath
		if backupFile == "" {
			backupFile = dbPath + ".backup"
		}
		log.Printf("Creating backup: %s", backupFile)
		if err := copyFile(dbPath, backupFile); err != nil {
			log.Fatalf("Failed to create backup: %v", err)
		}
		log.Println("✓ Backup created successfully")
	}

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	if err := backfillIndexes(db, *dryRun); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	if *dryRun {
		log.Println("\nDry run completed. No changes made.")
		log.Println("Run without --dry-run to perform the migration.")
	} else {
		log.Println("\n✓ Migration completed successfully!")
		log.Println("The server can now serve filtered lists from the indexes.")
	}
}

func backfillIndexes(db *bolt.DB, dryRun bool) error {
	var rowCount int
	var indexedCount int

	// First, inspect what exists
	err := db.View(func(tx *bolt.Tx) error {
		rows := tx.Bucket(bucketWorkspaces)
		if rows == nil {
			log.Println("✓ No 'workspaces' bucket found - nothing to index")
			return nil
		}

		rows.ForEach(func(k, v []byte) error {
			rowCount++
			return nil
		})

		if idx := tx.Bucket(bucketIdxStatus); idx != nil {
			idx.ForEach(func(k, v []byte) error {
				indexedCount++
				return nil
			})
		}

		log.Printf("Found %d workspace rows, %d existing status index entries", rowCount, indexedCount)
		return nil
	})
	if err != nil {
		return err
	}

	if rowCount == 0 {
		log.Println("✓ No workspace rows found to index")
		return nil
	}

	return db.Update(func(tx *bolt.Tx) error {
		if dryRun {
			log.Println("\n[DRY RUN] Would perform the following operations:")
			log.Println("1. Drop and recreate 'idx_status' and 'idx_stopped_at'")
			log.Printf("2. Index %d workspace rows by status", rowCount)
			log.Println("3. Index stopped rows by stopped_at")
			return nil
		}

		// Rebuild from scratch so entries for rows whose status changed
		// before indexing existed do not linger.
		for _, name := range [][]byte{bucketIdxStatus, bucketIdxStopped} {
			if tx.Bucket(name) != nil {
				if err := tx.DeleteBucket(name); err != nil {
					return fmt.Errorf("failed to drop index %s: %w", name, err)
				}
			}
			if _, err := tx.CreateBucket(name); err != nil {
				return fmt.Errorf("failed to create index %s: %w", name, err)
			}
		}

		idxStatus := tx.Bucket(bucketIdxStatus)
		idxStopped := tx.Bucket(bucketIdxStopped)

		log.Println("\nIndexing workspace rows...")
		migrated := 0
		err := tx.Bucket(bucketWorkspaces).ForEach(func(k, v []byte) error {
			var ws types.Workspace
			if err := json.Unmarshal(v, &ws); err != nil {
				log.Printf("⚠ Warning: Skipping invalid JSON for key %s: %v", k, err)
				return nil
			}

			statusKey := []byte(string(ws.Status) + "/" + ws.ID)
			if err := idxStatus.Put(statusKey, []byte(ws.ID)); err != nil {
				return fmt.Errorf("failed to index %s by status: %w", ws.ID, err)
			}

			if ws.StoppedAt != nil {
				stoppedKey := []byte(ws.StoppedAt.UTC().Format(stoppedAtLayout) + "/" + ws.ID)
				if err := idxStopped.Put(stoppedKey, []byte(ws.ID)); err != nil {
					return fmt.Errorf("failed to index %s by stopped_at: %w", ws.ID, err)
				}
			}

			migrated++
			if migrated%10 == 0 {
				log.Printf("  Indexed %d/%d...", migrated, rowCount)
			}
			return nil
		})
		if err != nil {
			return err
		}

		log.Printf("✓ Indexed %d/%d workspace rows", migrated, rowCount)
		return nil
	})
}

func copyFile(src, dst string) error {
	input, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, input, 0600)
}
