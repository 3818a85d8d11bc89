// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package store

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Project-Sylos/Sylos-UID/pkg/bolt"
	"github.com/Project-Sylos/Sylos-UID/pkg/uid"
	bbolt "go.etcd.io/bbolt"
)

// Store provides a domain-focused API over the persistence layer. It mints a
// ULID for every record and log entry it writes and binds the identifier as
// the primary key, so cursor order is generation order. Writes are buffered
// and flushed by size threshold, timer, or any read (read-your-writes).
type Store struct {
	db *bolt.DB

	// idMu serializes access to the generator, which is single-owner and
	// not safe for concurrent use on its own.
	idMu   sync.Mutex
	gen    *uid.Generator
	lastID string

	buffer *writeBuffer
}

// Options configures a Store.
type Options struct {
	// Path is where the database file lives. Empty uses a temp directory.
	Path string

	// Seed seeds the identifier generator. Zero means "seed from system
	// entropy"; supply a fixed non-zero seed for deterministic tests.
	Seed uint64

	// BatchSize is the number of buffered writes that triggers a flush.
	BatchSize int

	// FlushInterval is the period of the timer-based flush.
	FlushInterval time.Duration
}

// DefaultOptions returns default store configuration.
func DefaultOptions() Options {
	return Options{
		BatchSize:     1000,
		FlushInterval: 2 * time.Second,
	}
}

// writeBuffer batches write operations into single transactions.
// Flush triggers: size threshold, timer tick, explicit flush.
type writeBuffer struct {
	db         *bolt.DB
	mu         sync.Mutex
	operations []func(*bbolt.Tx) error
	batchSize  int
	ticker     *time.Ticker
	stopChan   chan struct{}
	wg         sync.WaitGroup
	paused     bool
}

// Open creates a Store over the database at opts.Path.
func Open(opts Options) (*Store, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultOptions().BatchSize
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultOptions().FlushInterval
	}

	seed := opts.Seed
	if seed == 0 {
		seed = entropySeed()
	}

	db, err := bolt.Open(bolt.Options{Path: opts.Path})
	if err != nil {
		return nil, fmt.Errorf("failed to open store database: %w", err)
	}

	s := &Store{
		db:  db,
		gen: uid.New(seed),
		buffer: &writeBuffer{
			db:         db,
			operations: make([]func(*bbolt.Tx) error, 0, opts.BatchSize),
			batchSize:  opts.BatchSize,
			ticker:     time.NewTicker(opts.FlushInterval),
			stopChan:   make(chan struct{}),
		},
	}

	s.buffer.wg.Add(1)
	go s.buffer.flushLoop()

	return s, nil
}

// entropySeed draws a generator seed from system entropy.
func entropySeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Degraded but functional: fall back to wall-clock seeding.
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(b[:])
}

// Close flushes any pending writes and closes the underlying database.
func (s *Store) Close() error {
	close(s.buffer.stopChan)
	s.buffer.wg.Wait()

	var errs []error
	if err := s.buffer.flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to flush on close: %w", err))
	}
	if err := s.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close database: %w", err))
	}
	return errors.Join(errs...)
}

// DB returns the underlying persistence handle for direct operations.
func (s *Store) DB() *bolt.DB {
	return s.db
}

// mintID generates the next identifier under the store's mutex and records
// it as the most recently minted one.
func (s *Store) mintID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	id := s.gen.NextNow()
	s.lastID = id
	return id
}

// LastID returns the most recently minted identifier, or "" if none has been
// minted yet. The analog of a last-inserted row id for ULID-keyed rows.
func (s *Store) LastID() string {
	s.idMu.Lock()
	defer s.idMu.Unlock()
	return s.lastID
}

// PutRecord mints an identifier, binds it as the record's primary key, and
// queues the insert. Returns the minted identifier immediately; the write
// becomes visible to reads on the next flush, which every read forces.
func (s *Store) PutRecord(name, kind string, attrs map[string]string) (string, error) {
	rec := &bolt.Record{
		ID:        s.mintID(),
		Name:      name,
		Kind:      kind,
		Attrs:     attrs,
		CreatedAt: time.Now().Format(time.RFC3339Nano),
	}

	// Serialize up front so a malformed record fails the caller, not the
	// background flush.
	if _, err := rec.Serialize(); err != nil {
		return "", fmt.Errorf("failed to serialize record: %w", err)
	}

	s.buffer.queue(func(tx *bbolt.Tx) error {
		_, err := bolt.InsertRecordTx(tx, rec)
		return err
	})
	return rec.ID, nil
}

// GetRecord retrieves a record by its identifier.
// Returns nil if the record does not exist.
func (s *Store) GetRecord(id string) (*bolt.Record, error) {
	if err := s.buffer.flush(); err != nil {
		return nil, err
	}
	return bolt.GetRecord(s.db, id)
}

// GetRecordByName resolves a name through the lookup index.
// Returns nil if no record carries the name.
func (s *Store) GetRecordByName(name string) (*bolt.Record, error) {
	if err := s.buffer.flush(); err != nil {
		return nil, err
	}

	id, err := bolt.GetRecordIDByName(s.db, name)
	if err != nil {
		return nil, err
	}
	if id == "" {
		return nil, nil
	}
	return bolt.GetRecord(s.db, id)
}

// DeleteRecord removes a record and its lookup entry.
func (s *Store) DeleteRecord(id string) error {
	if err := s.buffer.flush(); err != nil {
		return err
	}
	return bolt.DeleteRecordWithLookup(s.db, id)
}

// ListRecords returns records in key order, which is generation order.
// limit bounds the result (0 = no limit).
func (s *Store) ListRecords(limit int) ([]*bolt.Record, error) {
	if err := s.buffer.flush(); err != nil {
		return nil, err
	}

	stmt, err := s.db.Prepare([]string{bolt.BucketRecords})
	if err != nil {
		return nil, err
	}
	defer stmt.Finalize()

	var records []*bolt.Record
	for {
		err := stmt.Step()
		if errors.Is(err, bolt.ErrDone) {
			break
		}
		if err != nil {
			return nil, err
		}
		if limit > 0 && len(records) >= limit {
			break
		}

		rec, err := bolt.DeserializeRecord(stmt.Bytes())
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

// Flush forces all buffered writes into the database.
func (s *Store) Flush() error {
	return s.buffer.flush()
}

// PauseFlush stops timer-based flushing after forcing a flush.
// Threshold and read-triggered flushes still apply.
func (s *Store) PauseFlush() error {
	err := s.buffer.flush()
	s.buffer.mu.Lock()
	s.buffer.paused = true
	s.buffer.mu.Unlock()
	return err
}

// ResumeFlush resumes timer-based flushing.
func (s *Store) ResumeFlush() {
	s.buffer.mu.Lock()
	s.buffer.paused = false
	s.buffer.mu.Unlock()
}

// queue adds a write operation to the buffer, flushing if the size
// threshold is reached.
func (b *writeBuffer) queue(fn func(*bbolt.Tx) error) {
	b.mu.Lock()
	b.operations = append(b.operations, fn)
	shouldFlush := len(b.operations) >= b.batchSize
	b.mu.Unlock()

	if shouldFlush {
		_ = b.flush()
	}
}

// flush writes all buffered operations in a single transaction, in the order
// they were queued. On failure the batch is re-queued for retry.
func (b *writeBuffer) flush() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.operations) == 0 {
		return nil
	}

	batch := b.operations
	b.operations = make([]func(*bbolt.Tx) error, 0, b.batchSize)

	err := b.db.Update(func(tx *bbolt.Tx) error {
		for i, fn := range batch {
			if err := fn(tx); err != nil {
				return fmt.Errorf("failed to execute operation %d of %d: %w", i+1, len(batch), err)
			}
		}
		return nil
	})
	if err != nil {
		b.operations = append(batch, b.operations...)
		return err
	}
	return nil
}

// flushLoop runs in a goroutine and periodically flushes the buffer.
func (b *writeBuffer) flushLoop() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ticker.C:
			b.mu.Lock()
			paused := b.paused
			b.mu.Unlock()
			if !paused {
				_ = b.flush()
			}
		case <-b.stopChan:
			b.ticker.Stop()
			return
		}
	}
}
