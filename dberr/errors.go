// Package dberr holds the error kinds shared by every layer of the engine.
//
// Callers match kinds with errors.Is. Lower layers wrap a kind together with
// the underlying cause, e.g. fmt.Errorf("%w: read page %d: %w", ErrIO, idx, err).
package dberr

import "errors"

var (
	ErrUnrecognizedCommand = errors.New("unrecognized command")
	ErrParse               = errors.New("parse error")
	ErrRowLimit            = errors.New("max number of rows for this table is reached")
	ErrIO                  = errors.New("io error")
	ErrSerialization       = errors.New("serialization error")

	ErrRowNotFound   = errors.New("row not found")
	ErrDuplicateKey  = errors.New("duplicate key")
	ErrPageLimit     = errors.New("page limit reached")
	ErrClosed        = errors.New("table is closed")
	ErrLocked        = errors.New("table file is locked by another handle")
	ErrSchemaInvalid = errors.New("invalid schema")
)

// Fatal kinds. ErrCorrupted means the bytes on disk violate the format,
// ErrMisuse means a caller broke an invariant the engine relies on.
var (
	ErrCorrupted = errors.New("corrupted table file")
	ErrMisuse    = errors.New("invariant violated by caller")
)

// IsFatal reports whether err should terminate the process instead of being
// surfaced to the user and skipped.
func IsFatal(err error) bool {
	return errors.Is(err, ErrCorrupted) || errors.Is(err, ErrMisuse)
}
