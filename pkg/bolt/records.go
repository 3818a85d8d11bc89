// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package bolt

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// Record represents a row stored in BoltDB, keyed by its ULID.
// The persistence layer treats the ID as opaque fixed-length text; it has no
// knowledge of the timestamp/random decomposition.
type Record struct {
	ID        string            `json:"id"`             // ULID, minted by the caller
	Name      string            `json:"name,omitempty"` // Optional name for lookup queries
	Kind      string            `json:"kind,omitempty"` // Caller-defined record kind
	Attrs     map[string]string `json:"attrs,omitempty"`
	CreatedAt string            `json:"created_at"` // RFC3339Nano format
}

// Serialize converts a Record to bytes for storage in BoltDB.
func (r *Record) Serialize() ([]byte, error) {
	return json.Marshal(r)
}

// DeserializeRecord creates a Record from bytes stored in BoltDB.
func DeserializeRecord(data []byte) (*Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to deserialize record: %w", err)
	}
	return &r, nil
}

// HashName creates a SHA-256 hash of a name for use as a lookup key.
// This allows name-based queries while using ULIDs as primary keys.
func HashName(name string) string {
	hash := sha256.Sum256([]byte(name))
	return hex.EncodeToString(hash[:])
}

// GetNameIndexBucketPath returns the bucket path for the name-to-ulid lookup.
func GetNameIndexBucketPath() []string {
	return []string{BucketLookups, SubBucketNameIndex}
}

// InsertRecordTx inserts a record, indexes its name, and advances the
// persistent insert sequence, all within the caller's transaction. Returns
// the sequence number assigned to the insert (the analog of a last-inserted
// row id).
func InsertRecordTx(tx *bolt.Tx, rec *Record) (uint64, error) {
	if rec.ID == "" {
		return 0, fmt.Errorf("record ID (ULID) cannot be empty")
	}

	data, err := rec.Serialize()
	if err != nil {
		return 0, fmt.Errorf("failed to serialize record: %w", err)
	}

	recordsBucket := tx.Bucket([]byte(BucketRecords))
	if recordsBucket == nil {
		return 0, fmt.Errorf("%s bucket not found", BucketRecords)
	}

	if err := recordsBucket.Put([]byte(rec.ID), data); err != nil {
		return 0, fmt.Errorf("failed to insert record: %w", err)
	}

	seq, err := recordsBucket.NextSequence()
	if err != nil {
		return 0, fmt.Errorf("failed to advance insert sequence: %w", err)
	}

	if rec.Name != "" {
		indexBucket := getBucket(tx, GetNameIndexBucketPath())
		if indexBucket == nil {
			return 0, fmt.Errorf("%s bucket not found", SubBucketNameIndex)
		}
		if err := indexBucket.Put([]byte(HashName(rec.Name)), []byte(rec.ID)); err != nil {
			return 0, fmt.Errorf("failed to index record name: %w", err)
		}
	}

	return seq, nil
}

// InsertRecordWithLookup atomically inserts a record in its own transaction.
// See InsertRecordTx.
func InsertRecordWithLookup(db *DB, rec *Record) (uint64, error) {
	var seq uint64
	err := db.Update(func(tx *bolt.Tx) error {
		var err error
		seq, err = InsertRecordTx(tx, rec)
		return err
	})
	if err != nil {
		return 0, err
	}
	return seq, nil
}

// GetRecord retrieves a record by its ULID.
// Returns nil if the record does not exist.
func GetRecord(db *DB, id string) (*Record, error) {
	data, err := db.Get([]string{BucketRecords}, []byte(id))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}
	return DeserializeRecord(data)
}

// GetRecordIDByName resolves a name to the ULID of the record it indexes.
// Returns "" if no record carries the name.
func GetRecordIDByName(db *DB, name string) (string, error) {
	data, err := db.Get(GetNameIndexBucketPath(), []byte(HashName(name)))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DeleteRecordWithLookup atomically removes a record and its name index entry.
func DeleteRecordWithLookup(db *DB, id string) error {
	return db.Update(func(tx *bolt.Tx) error {
		recordsBucket := tx.Bucket([]byte(BucketRecords))
		if recordsBucket == nil {
			return fmt.Errorf("%s bucket not found", BucketRecords)
		}

		data := recordsBucket.Get([]byte(id))
		if data == nil {
			return nil
		}

		rec, err := DeserializeRecord(data)
		if err != nil {
			return err
		}

		if err := recordsBucket.Delete([]byte(id)); err != nil {
			return fmt.Errorf("failed to delete record: %w", err)
		}

		if rec.Name != "" {
			indexBucket := getBucket(tx, GetNameIndexBucketPath())
			if indexBucket == nil {
				return fmt.Errorf("%s bucket not found", SubBucketNameIndex)
			}
			if err := indexBucket.Delete([]byte(HashName(rec.Name))); err != nil {
				return fmt.Errorf("failed to delete name index entry: %w", err)
			}
		}

		return nil
	})
}

// LastInsertSequence returns the persistent sequence number of the most
// recent insert.
func LastInsertSequence(db *DB) (uint64, error) {
	var seq uint64
	err := db.View(func(tx *bolt.Tx) error {
		recordsBucket := tx.Bucket([]byte(BucketRecords))
		if recordsBucket == nil {
			return fmt.Errorf("%s bucket not found", BucketRecords)
		}
		seq = recordsBucket.Sequence()
		return nil
	})
	return seq, err
}
