// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package utils

import (
	"crypto/rand"
	"encoding/binary"
	"sync"
	"time"

	"github.com/Project-Sylos/Sylos-UID/pkg/uid"
)

// The process-wide generator is shared across goroutines, so every call is
// serialized by an explicit mutex. Callers that mint identifiers in a hot
// path should own a uid.Generator per goroutine instead.
var (
	mu  sync.Mutex
	gen = uid.New(processSeed())
)

func processSeed() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		// Degraded but functional: fall back to wall-clock seeding.
		return uint64(time.Now().UnixNano())
	}
	return binary.BigEndian.Uint64(b[:])
}

// GenerateULID generates a new ULID (Universally Unique Lexicographically Sortable Identifier).
// ULIDs are used as database keys and identifiers throughout the Sylos system.
func GenerateULID() string {
	mu.Lock()
	defer mu.Unlock()
	return gen.NextNow()
}
