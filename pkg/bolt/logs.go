// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package bolt

import (
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// LogEntry represents a single log entry stored in BoltDB.
// The ID is a ULID minted by the caller; because ULIDs sort by generation
// time, a cursor scan over a level bucket yields entries in time order.
type LogEntry struct {
	ID        string `json:"id"`        // ULID
	Timestamp string `json:"timestamp"` // RFC3339Nano format
	Level     string `json:"level"`     // "trace", "debug", "info", "warning", "error", "critical"
	Entity    string `json:"entity"`    // "store", "generator", etc.
	EntityID  string `json:"entity_id"` // Specific entity identifier
	Message   string `json:"message"`   // Log message
}

// SerializeLogEntry converts a LogEntry to bytes.
func SerializeLogEntry(entry LogEntry) ([]byte, error) {
	return json.Marshal(entry)
}

// DeserializeLogEntry converts bytes to a LogEntry.
func DeserializeLogEntry(data []byte) (*LogEntry, error) {
	var entry LogEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("failed to deserialize log entry: %w", err)
	}
	return &entry, nil
}

// GetLogLevelBucketPath returns the bucket path for a specific log level.
// Returns: ["LOGS", "info"] or ["LOGS", "error"], etc.
func GetLogLevelBucketPath(level string) []string {
	return []string{BucketLogs, level}
}

// GetOrCreateLogLevelBucket returns or creates the log level bucket.
func GetOrCreateLogLevelBucket(tx *bolt.Tx, level string) (*bolt.Bucket, error) {
	logsBucket := tx.Bucket([]byte(BucketLogs))
	if logsBucket == nil {
		return nil, fmt.Errorf("%s bucket not found", BucketLogs)
	}

	levelBucket, err := logsBucket.CreateBucketIfNotExists([]byte(level))
	if err != nil {
		return nil, fmt.Errorf("failed to create log level bucket %s: %w", level, err)
	}

	return levelBucket, nil
}

// GetLogLevelBucket returns the log level bucket (read-only).
func GetLogLevelBucket(tx *bolt.Tx, level string) *bolt.Bucket {
	logsBucket := tx.Bucket([]byte(BucketLogs))
	if logsBucket == nil {
		return nil
	}
	return logsBucket.Bucket([]byte(level))
}

// InsertLogEntryTx inserts a log entry under the appropriate level bucket
// within the caller's transaction.
func InsertLogEntryTx(tx *bolt.Tx, entry LogEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("log entry ID (ULID) cannot be empty")
	}

	data, err := SerializeLogEntry(entry)
	if err != nil {
		return fmt.Errorf("failed to serialize log entry: %w", err)
	}

	levelBucket, err := GetOrCreateLogLevelBucket(tx, entry.Level)
	if err != nil {
		return err
	}

	return levelBucket.Put([]byte(entry.ID), data)
}

// InsertLogEntry inserts a single log entry in its own transaction.
func InsertLogEntry(db *DB, entry LogEntry) error {
	return db.Update(func(tx *bolt.Tx) error {
		return InsertLogEntryTx(tx, entry)
	})
}

// GetLogEntry retrieves a log entry by ID and level.
func GetLogEntry(db *DB, level string, id string) (*LogEntry, error) {
	var entry *LogEntry

	err := db.View(func(tx *bolt.Tx) error {
		levelBucket := GetLogLevelBucket(tx, level)
		if levelBucket == nil {
			return nil // Bucket doesn't exist
		}

		data := levelBucket.Get([]byte(id))
		if data == nil {
			return nil // Not found
		}

		var err error
		entry, err = DeserializeLogEntry(data)
		return err
	})

	return entry, err
}

// GetLogsByLevel retrieves log entries for a specific level in ID (time)
// order. limit bounds the result (0 = no limit).
func GetLogsByLevel(db *DB, level string, limit int) ([]*LogEntry, error) {
	var logs []*LogEntry

	err := db.View(func(tx *bolt.Tx) error {
		levelBucket := GetLogLevelBucket(tx, level)
		if levelBucket == nil {
			return nil // No logs at this level yet
		}

		cursor := levelBucket.Cursor()
		for k, v := cursor.First(); k != nil; k, v = cursor.Next() {
			if limit > 0 && len(logs) >= limit {
				break
			}
			entry, err := DeserializeLogEntry(v)
			if err != nil {
				continue // Skip invalid entries
			}
			logs = append(logs, entry)
		}

		return nil
	})

	return logs, err
}
