// Copyright 2025 Sylos contributors
// SPDX-License-Identifier: LGPL-2.1-or-later

package bolt

import (
	"errors"
	"fmt"

	bolt "go.etcd.io/bbolt"
)

// The thin client collapses the underlying library's many failure codes into
// a closed set of four kinds: generic, step failure, done, and busy/locked.
var (
	// ErrDone signals normal exhaustion: a statement stepped past its last row.
	ErrDone = errors.New("bolt: done")
	// ErrBusy signals lock contention on the database file or handle.
	ErrBusy = errors.New("bolt: busy")
	// ErrStep signals that advancing a statement or transaction failed.
	ErrStep = errors.New("bolt: step failed")
)

// Kind identifies which of the four error kinds an error belongs to.
type Kind int

const (
	KindGeneric Kind = iota
	KindStep
	KindDone
	KindBusy
)

// String returns the string representation of the error kind.
func (k Kind) String() string {
	switch k {
	case KindStep:
		return "step"
	case KindDone:
		return "done"
	case KindBusy:
		return "busy"
	default:
		return "generic"
	}
}

// Translate collapses an underlying library error into the closed error-kind
// set. The two lock-contention codes (file-lock timeout, handle already open)
// map to ErrBusy; transaction stepping failures map to ErrStep; everything
// else passes through as a generic error. Already-translated errors and nil
// pass through unchanged.
func Translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrDone) || errors.Is(err, ErrBusy) || errors.Is(err, ErrStep):
		return err
	case errors.Is(err, bolt.ErrTimeout) || errors.Is(err, bolt.ErrDatabaseOpen):
		return fmt.Errorf("%w: %s", ErrBusy, err)
	case errors.Is(err, bolt.ErrTxClosed) || errors.Is(err, bolt.ErrTxNotWritable) || errors.Is(err, bolt.ErrDatabaseNotOpen):
		return fmt.Errorf("%w: %s", ErrStep, err)
	default:
		return err
	}
}

// KindOf reports the kind of a (possibly wrapped) translated error.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrDone):
		return KindDone
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrStep):
		return KindStep
	default:
		return KindGeneric
	}
}
