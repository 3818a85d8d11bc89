// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package bolt

import (
	"bytes"
	"fmt"
	"strconv"

	bolt "go.etcd.io/bbolt"
)

// Stmt is a prepared scan over one bucket, mirroring a prepare/step/finalize
// statement lifecycle over BoltDB's cursor model. A read transaction is held
// open from Prepare until Finalize, so statements should be short-lived and
// must always be finalized.
//
// Typical use:
//
//	stmt, err := db.Prepare([]string{bolt.BucketRecords})
//	if err != nil { ... }
//	defer stmt.Finalize()
//	for {
//		if err := stmt.Step(); err != nil {
//			if errors.Is(err, bolt.ErrDone) {
//				break
//			}
//			return err
//		}
//		key, value := stmt.Key(), stmt.Text()
//		...
//	}
type Stmt struct {
	tx      *bolt.Tx
	cursor  *bolt.Cursor
	prefix  []byte
	started bool
	key     []byte
	value   []byte
}

// Prepare opens a read transaction and positions a statement at the start of
// the bucket at bucketPath. The caller must Finalize the statement.
func (db *DB) Prepare(bucketPath []string) (*Stmt, error) {
	tx, err := db.db.Begin(false)
	if err != nil {
		return nil, fmt.Errorf("failed to begin read transaction: %w", Translate(err))
	}

	bucket := getBucket(tx, bucketPath)
	if bucket == nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("bucket not found: %v", bucketPath)
	}

	return &Stmt{tx: tx, cursor: bucket.Cursor()}, nil
}

// BindText restricts the scan to keys with the given text prefix. The text is
// bound length-delimited: embedded NUL bytes are preserved, and there is no
// dependency on NUL termination. Binding resets the scan position.
func (s *Stmt) BindText(prefix string) {
	s.prefix = []byte(prefix)
	s.started = false
}

// Step advances the statement to the next row. It returns nil when a row is
// available, ErrDone when the scan is exhausted, and an ErrStep-kind error if
// the underlying transaction can no longer be advanced.
func (s *Stmt) Step() error {
	if s.tx == nil {
		return fmt.Errorf("%w: statement already finalized", ErrStep)
	}

	if !s.started {
		s.started = true
		if len(s.prefix) > 0 {
			s.key, s.value = s.cursor.Seek(s.prefix)
		} else {
			s.key, s.value = s.cursor.First()
		}
	} else {
		s.key, s.value = s.cursor.Next()
	}

	if s.key == nil || (len(s.prefix) > 0 && !bytes.HasPrefix(s.key, s.prefix)) {
		s.key, s.value = nil, nil
		return ErrDone
	}
	return nil
}

// Key returns the current row's key as text.
// Valid only after a Step that returned nil.
func (s *Stmt) Key() string {
	return string(s.key)
}

// Text returns the current row's value as text.
func (s *Stmt) Text() string {
	return string(s.value)
}

// Bytes returns a copy of the current row's value. The copy remains valid
// after the statement is finalized.
func (s *Stmt) Bytes() []byte {
	if s.value == nil {
		return nil
	}
	out := make([]byte, len(s.value))
	copy(out, s.value)
	return out
}

// Int64 parses the current row's value as a base-10 integer.
func (s *Stmt) Int64() (int64, error) {
	n, err := strconv.ParseInt(string(s.value), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("value is not an integer: %w", err)
	}
	return n, nil
}

// Finalize releases the statement's read transaction. It is safe to call
// more than once.
func (s *Stmt) Finalize() error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx, s.cursor, s.key, s.value = nil, nil, nil, nil
	if err := tx.Rollback(); err != nil {
		return Translate(err)
	}
	return nil
}
