// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/Project-Sylos/Sylos-UID/pkg/bolt"
	"github.com/Project-Sylos/Sylos-UID/pkg/uid"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T, opts Options) *Store {
	t.Helper()
	if opts.Path == "" {
		opts.Path = filepath.Join(t.TempDir(), "keys.db")
	}
	if opts.Seed == 0 {
		opts.Seed = 1
	}
	s, err := Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndGetRecord(t *testing.T) {
	s := openTestStore(t, Options{})

	id, err := s.PutRecord("alpha", "task", map[string]string{"owner": "sylos"})
	require.NoError(t, err)
	require.Len(t, id, uid.EncodedLen)

	// Reads force a flush, so the buffered write is already visible.
	rec, err := s.GetRecord(id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, id, rec.ID)
	require.Equal(t, "alpha", rec.Name)
	require.Equal(t, "task", rec.Kind)
	require.Equal(t, "sylos", rec.Attrs["owner"])
	require.NotEmpty(t, rec.CreatedAt)

	missing, err := s.GetRecord("01ARZ3NDEKTSV4RRFFQ69G5FAV")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestMintedIDsIncrease(t *testing.T) {
	s := openTestStore(t, Options{})

	var ids []string
	for i := 0; i < 20; i++ {
		id, err := s.PutRecord("", "", nil)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	for i := 1; i < len(ids); i++ {
		require.Less(t, ids[i-1], ids[i], "identifiers must mint in increasing order")
	}
	require.Equal(t, ids[len(ids)-1], s.LastID())
}

func TestGetRecordByName(t *testing.T) {
	s := openTestStore(t, Options{})

	id, err := s.PutRecord("alpha", "task", nil)
	require.NoError(t, err)

	rec, err := s.GetRecordByName("alpha")
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, id, rec.ID)

	rec, err = s.GetRecordByName("unknown")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestDeleteRecord(t *testing.T) {
	s := openTestStore(t, Options{})

	id, err := s.PutRecord("alpha", "task", nil)
	require.NoError(t, err)

	require.NoError(t, s.DeleteRecord(id))

	rec, err := s.GetRecord(id)
	require.NoError(t, err)
	require.Nil(t, rec)

	rec, err = s.GetRecordByName("alpha")
	require.NoError(t, err)
	require.Nil(t, rec)
}

func TestListRecordsInGenerationOrder(t *testing.T) {
	s := openTestStore(t, Options{})

	var want []string
	for i := 0; i < 5; i++ {
		id, err := s.PutRecord("", "", nil)
		require.NoError(t, err)
		want = append(want, id)
	}

	records, err := s.ListRecords(0)
	require.NoError(t, err)
	require.Len(t, records, 5)
	for i, rec := range records {
		require.Equal(t, want[i], rec.ID)
	}

	limited, err := s.ListRecords(2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	require.Equal(t, want[0], limited[0].ID)
	require.Equal(t, want[1], limited[1].ID)
}

func TestRecordLogAndQuery(t *testing.T) {
	s := openTestStore(t, Options{})

	require.Error(t, s.RecordLog("", "store", "s1", "message"))
	require.Error(t, s.RecordLog("info", "store", "s1", ""))

	require.NoError(t, s.RecordLog("info", "store", "s1", "first"))
	require.NoError(t, s.RecordLog("info", "store", "s1", "second"))
	require.NoError(t, s.RecordLog("error", "store", "s1", "boom"))

	logs, err := s.QueryLogs("info", 0)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	require.Equal(t, "first", logs[0].Message)
	require.Equal(t, "second", logs[1].Message)

	logs, err = s.QueryLogs("info", 1)
	require.NoError(t, err)
	require.Len(t, logs, 1)

	logs, err = s.QueryLogs("warning", 0)
	require.NoError(t, err)
	require.Empty(t, logs)
}

func TestWritesAreBufferedUntilFlush(t *testing.T) {
	s := openTestStore(t, Options{FlushInterval: time.Hour})
	require.NoError(t, s.PauseFlush())

	id, err := s.PutRecord("alpha", "task", nil)
	require.NoError(t, err)

	// Bypass the store's read path: the write is still sitting in the buffer.
	rec, err := bolt.GetRecord(s.DB(), id)
	require.NoError(t, err)
	require.Nil(t, rec)

	require.NoError(t, s.Flush())

	rec, err = bolt.GetRecord(s.DB(), id)
	require.NoError(t, err)
	require.NotNil(t, rec)

	s.ResumeFlush()
}

func TestThresholdFlush(t *testing.T) {
	s := openTestStore(t, Options{BatchSize: 2, FlushInterval: time.Hour})

	id1, err := s.PutRecord("", "", nil)
	require.NoError(t, err)
	id2, err := s.PutRecord("", "", nil)
	require.NoError(t, err)

	// The second queue hit the threshold and flushed both writes.
	rec, err := bolt.GetRecord(s.DB(), id1)
	require.NoError(t, err)
	require.NotNil(t, rec)
	rec, err = bolt.GetRecord(s.DB(), id2)
	require.NoError(t, err)
	require.NotNil(t, rec)
}

func TestCloseFlushesAndPersists(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "keys.db")

	s, err := Open(Options{Path: dbPath, Seed: 1, FlushInterval: time.Hour})
	require.NoError(t, err)

	id, err := s.PutRecord("alpha", "task", nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	reopened := openTestStore(t, Options{Path: dbPath, Seed: 2})
	rec, err := reopened.GetRecord(id)
	require.NoError(t, err)
	require.NotNil(t, rec)
	require.Equal(t, "alpha", rec.Name)
}
