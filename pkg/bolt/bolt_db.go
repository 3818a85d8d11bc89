// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package bolt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	bolt "go.etcd.io/bbolt"
)

// Bucket names for the identifier-keyed keyspace.
const (
	// BucketRecords holds primary records keyed by ULID.
	BucketRecords = "records"
	// BucketLookups holds secondary-index sub-buckets.
	BucketLookups = "lookups"
	// SubBucketNameIndex maps name hashes to ULIDs for name-based queries.
	SubBucketNameIndex = "name-to-ulid"
	// BucketLogs is a separate top-level island for log entries.
	BucketLogs = "LOGS"
)

// DB wraps a BoltDB instance with lifecycle management. It is a thin client:
// callers hand it opaque fixed-length identifier text as keys, and its
// failures collapse into the four error kinds in errors.go.
type DB struct {
	db     *bolt.DB
	dbPath string
}

// Options for BoltDB initialization
type Options struct {
	// Path is the path where BoltDB will store its data.
	// If empty, a temporary directory will be created.
	Path string

	// Timeout bounds the wait for the file lock when another process holds
	// the database open. Zero waits indefinitely. When the wait expires the
	// open fails with ErrBusy.
	Timeout time.Duration
}

// DefaultOptions returns default options for BoltDB.
func DefaultOptions() Options {
	return Options{}
}

// Open creates and opens a new BoltDB instance.
// The database will be created at the specified path.
// Call Close() when done to ensure proper cleanup.
func Open(opts Options) (*DB, error) {
	dbPath := opts.Path
	if dbPath == "" {
		// Create temporary directory
		tmpDir, err := os.MkdirTemp("", "sylos-uid-*")
		if err != nil {
			return nil, fmt.Errorf("failed to create temp directory: %w", err)
		}
		dbPath = filepath.Join(tmpDir, "keys.db")
	} else {
		// Ensure directory exists
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create bolt directory: %w", err)
		}
	}

	// Open Bolt database
	boltDB, err := bolt.Open(dbPath, 0600, &bolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", Translate(err))
	}

	database := &DB{
		db:     boltDB,
		dbPath: dbPath,
	}

	// Initialize bucket structure
	if err := database.initializeBuckets(); err != nil {
		boltDB.Close()
		return nil, fmt.Errorf("failed to initialize buckets: %w", err)
	}

	return database, nil
}

// initializeBuckets creates the core bucket structure.
// This is called once when the database is first opened.
func (db *DB) initializeBuckets() error {
	return db.Update(func(tx *bolt.Tx) error {
		// Primary records bucket; its persistent sequence doubles as the
		// last-insert counter.
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketRecords)); err != nil {
			return fmt.Errorf("failed to create %s bucket: %w", BucketRecords, err)
		}

		// Lookups bucket with the name-to-ulid secondary index
		lookupsBucket, err := tx.CreateBucketIfNotExists([]byte(BucketLookups))
		if err != nil {
			return fmt.Errorf("failed to create %s bucket: %w", BucketLookups, err)
		}
		if _, err := lookupsBucket.CreateBucketIfNotExists([]byte(SubBucketNameIndex)); err != nil {
			return fmt.Errorf("failed to create %s/%s bucket: %w", BucketLookups, SubBucketNameIndex, err)
		}

		// Create LOGS bucket as separate top-level (its own island).
		// Individual level buckets are created on demand.
		if _, err := tx.CreateBucketIfNotExists([]byte(BucketLogs)); err != nil {
			return fmt.Errorf("failed to create %s bucket: %w", BucketLogs, err)
		}

		return nil
	})
}

// GetDB returns the underlying BoltDB instance for direct operations.
func (db *DB) GetDB() *bolt.DB {
	return db.db
}

// Close closes the BoltDB instance.
// This does NOT delete the database file.
func (db *DB) Close() error {
	if db.db == nil {
		return nil
	}
	return db.db.Close()
}

// Cleanup closes the database and deletes the entire database file.
func (db *DB) Cleanup() error {
	if db.db != nil {
		if err := db.db.Close(); err != nil {
			return fmt.Errorf("failed to close bolt db: %w", err)
		}
		db.db = nil
	}

	if db.dbPath != "" {
		if err := os.Remove(db.dbPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove bolt database: %w", err)
		}
	}

	return nil
}

// Path returns the path to the BoltDB file.
func (db *DB) Path() string {
	return db.dbPath
}

// Update executes a read-write transaction.
func (db *DB) Update(fn func(*bolt.Tx) error) error {
	return db.db.Update(fn)
}

// View executes a read-only transaction.
func (db *DB) View(fn func(*bolt.Tx) error) error {
	return db.db.View(fn)
}

// Get retrieves a value by key from a bucket path.
// bucketPath should be like []string{"lookups", "name-to-ulid"}.
func (db *DB) Get(bucketPath []string, key []byte) ([]byte, error) {
	var value []byte
	err := db.View(func(tx *bolt.Tx) error {
		bucket := getBucket(tx, bucketPath)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %v", bucketPath)
		}
		val := bucket.Get(key)
		if val != nil {
			value = make([]byte, len(val))
			copy(value, val)
		}
		return nil
	})
	return value, err
}

// Set stores a key-value pair in a bucket.
func (db *DB) Set(bucketPath []string, key, value []byte) error {
	return db.Update(func(tx *bolt.Tx) error {
		bucket := getBucket(tx, bucketPath)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %v", bucketPath)
		}
		return bucket.Put(key, value)
	})
}

// Delete removes a key from a bucket.
func (db *DB) Delete(bucketPath []string, key []byte) error {
	return db.Update(func(tx *bolt.Tx) error {
		bucket := getBucket(tx, bucketPath)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %v", bucketPath)
		}
		return bucket.Delete(key)
	})
}

// Exists checks if a key exists in a bucket.
func (db *DB) Exists(bucketPath []string, key []byte) (bool, error) {
	var exists bool
	err := db.View(func(tx *bolt.Tx) error {
		bucket := getBucket(tx, bucketPath)
		if bucket == nil {
			return fmt.Errorf("bucket not found: %v", bucketPath)
		}
		exists = bucket.Get(key) != nil
		return nil
	})
	return exists, err
}

// IsTemporary returns true if the database was created in a temporary directory.
func (db *DB) IsTemporary() bool {
	if db.dbPath == "" {
		return false
	}
	return strings.Contains(db.dbPath, os.TempDir()) ||
		strings.Contains(filepath.Base(filepath.Dir(db.dbPath)), "sylos-uid-")
}

// ValidateCoreSchema validates that all core buckets exist.
// Log level buckets are created on demand when entries are written, so their
// absence is not an error.
func (db *DB) ValidateCoreSchema() error {
	return db.View(func(tx *bolt.Tx) error {
		if tx.Bucket([]byte(BucketRecords)) == nil {
			return fmt.Errorf("missing top-level bucket: %s", BucketRecords)
		}

		lookupsBucket := tx.Bucket([]byte(BucketLookups))
		if lookupsBucket == nil {
			return fmt.Errorf("missing top-level bucket: %s", BucketLookups)
		}
		if lookupsBucket.Bucket([]byte(SubBucketNameIndex)) == nil {
			return fmt.Errorf("missing %s/%s bucket", BucketLookups, SubBucketNameIndex)
		}

		if tx.Bucket([]byte(BucketLogs)) == nil {
			return fmt.Errorf("missing top-level bucket: %s", BucketLogs)
		}

		return nil
	})
}

// getBucket navigates to a nested bucket given a path.
// Returns nil if any bucket in the path doesn't exist.
func getBucket(tx *bolt.Tx, bucketPath []string) *bolt.Bucket {
	if len(bucketPath) == 0 {
		return nil
	}

	bucket := tx.Bucket([]byte(bucketPath[0]))
	if bucket == nil {
		return nil
	}

	for i := 1; i < len(bucketPath); i++ {
		bucket = bucket.Bucket([]byte(bucketPath[i]))
		if bucket == nil {
			return nil
		}
	}

	return bucket
}
