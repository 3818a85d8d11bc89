// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package store

import (
	"fmt"
	"time"

	"github.com/Project-Sylos/Sylos-UID/pkg/bolt"
	bbolt "go.etcd.io/bbolt"
)

// RecordLog writes a log entry to the database. The entry is keyed by a
// freshly minted ULID, so entries within a level scan in time order.
// Logs are buffered and flushed with record writes.
func (s *Store) RecordLog(level, entity, entityID, message string) error {
	if level == "" || message == "" {
		return fmt.Errorf("level and message cannot be empty")
	}

	entry := bolt.LogEntry{
		ID:        s.mintID(),
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     level,
		Entity:    entity,
		EntityID:  entityID,
		Message:   message,
	}

	s.buffer.queue(func(tx *bbolt.Tx) error {
		return bolt.InsertLogEntryTx(tx, entry)
	})
	return nil
}

// QueryLogs retrieves log entries for a level in time order.
// limit bounds the result (0 = no limit).
func (s *Store) QueryLogs(level string, limit int) ([]*bolt.LogEntry, error) {
	if err := s.buffer.flush(); err != nil {
		return nil, err
	}
	return bolt.GetLogsByLevel(s.db, level, limit)
}
