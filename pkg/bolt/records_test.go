// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package bolt

import (
	"testing"
	"time"

	"github.com/Project-Sylos/Sylos-UID/pkg/uid"
	"github.com/stretchr/testify/require"
)

func testRecord(g *uid.Generator, name string) *Record {
	return &Record{
		ID:        g.NextNow(),
		Name:      name,
		Kind:      "test",
		CreatedAt: time.Now().Format(time.RFC3339Nano),
	}
}

func TestInsertAndGetRecord(t *testing.T) {
	db := openTestDB(t)
	g := uid.New(1)

	rec := testRecord(g, "alpha")
	seq, err := InsertRecordWithLookup(db, rec)
	require.NoError(t, err)
	require.Equal(t, uint64(1), seq)

	got, err := GetRecord(db, rec.ID)
	require.NoError(t, err)
	require.Equal(t, rec, got)

	seq, err = InsertRecordWithLookup(db, testRecord(g, "beta"))
	require.NoError(t, err)
	require.Equal(t, uint64(2), seq)

	last, err := LastInsertSequence(db)
	require.NoError(t, err)
	require.Equal(t, uint64(2), last)
}

func TestInsertRecordRequiresID(t *testing.T) {
	db := openTestDB(t)

	_, err := InsertRecordWithLookup(db, &Record{Name: "no-id"})
	require.Error(t, err)
}

func TestNameLookup(t *testing.T) {
	db := openTestDB(t)
	g := uid.New(1)

	rec := testRecord(g, "alpha")
	_, err := InsertRecordWithLookup(db, rec)
	require.NoError(t, err)

	id, err := GetRecordIDByName(db, "alpha")
	require.NoError(t, err)
	require.Equal(t, rec.ID, id)

	id, err = GetRecordIDByName(db, "unknown")
	require.NoError(t, err)
	require.Empty(t, id)
}

func TestDeleteRecordWithLookup(t *testing.T) {
	db := openTestDB(t)
	g := uid.New(1)

	rec := testRecord(g, "alpha")
	_, err := InsertRecordWithLookup(db, rec)
	require.NoError(t, err)

	require.NoError(t, DeleteRecordWithLookup(db, rec.ID))

	got, err := GetRecord(db, rec.ID)
	require.NoError(t, err)
	require.Nil(t, got)

	id, err := GetRecordIDByName(db, "alpha")
	require.NoError(t, err)
	require.Empty(t, id)

	// Deleting a missing record is a no-op.
	require.NoError(t, DeleteRecordWithLookup(db, rec.ID))
}

func TestRecordKeysSortByGenerationOrder(t *testing.T) {
	db := openTestDB(t)
	g := uid.New(7)

	// Mint with a fixed timestamp so ordering rests entirely on the
	// payload increment.
	var want []string
	for i := 0; i < 5; i++ {
		rec := &Record{ID: g.Next(1000), CreatedAt: time.Now().Format(time.RFC3339Nano)}
		_, err := InsertRecordWithLookup(db, rec)
		require.NoError(t, err)
		want = append(want, rec.ID)
	}

	stmt, err := db.Prepare([]string{BucketRecords})
	require.NoError(t, err)
	defer stmt.Finalize()

	var got []string
	for stmt.Step() == nil {
		got = append(got, stmt.Key())
	}
	require.Equal(t, want, got, "cursor order must match generation order")
}

func TestLogEntries(t *testing.T) {
	db := openTestDB(t)
	g := uid.New(1)

	first := LogEntry{
		ID:        g.NextNow(),
		Timestamp: time.Now().Format(time.RFC3339Nano),
		Level:     "info",
		Entity:    "store",
		EntityID:  "s1",
		Message:   "first",
	}
	second := first
	second.ID = g.NextNow()
	second.Message = "second"

	require.NoError(t, InsertLogEntry(db, first))
	require.NoError(t, InsertLogEntry(db, second))

	got, err := GetLogEntry(db, "info", first.ID)
	require.NoError(t, err)
	require.Equal(t, "first", got.Message)

	logs, err := GetLogsByLevel(db, "info", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "first", logs[0].Message)
	require.Equal(t, "second", logs[1].Message)

	logs, err = GetLogsByLevel(db, "info", 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	logs, err = GetLogsByLevel(db, "error", 0)
	require.NoError(t, err)
	require.Empty(t, logs)

	require.Error(t, InsertLogEntry(db, LogEntry{Level: "info"}), "missing ID is rejected")
}
