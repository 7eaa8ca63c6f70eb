package ffindex

import "github.com/standardbeagle/ffindex/internal/fferrors"

// Sentinel errors callers branch on with errors.Is. Re-exported from
// internal/fferrors so callers never need to import an internal package.
var (
	ErrUnsupported = fferrors.ErrUnsupported
	ErrPoolFull    = fferrors.ErrPoolFull
	ErrCancelled   = fferrors.ErrCancelled
	ErrBusy        = fferrors.ErrBusy
	ErrNotFound    = fferrors.ErrNotFound
	ErrUnavailable = fferrors.ErrUnavailable
	ErrFormat      = fferrors.ErrFormat
	ErrWatcherLost = fferrors.ErrWatcherLost
)

// IndexingError, FileError, QueryError, ConfigError and SnapshotError are
// re-exported so callers can type-assert on the concrete error a failed
// operation returned without reaching into an internal package.
type (
	IndexingError  = fferrors.IndexingError
	FileError      = fferrors.FileError
	QueryError     = fferrors.QueryError
	ConfigError    = fferrors.ConfigError
	SnapshotError  = fferrors.SnapshotError
	VolumeIOError  = fferrors.VolumeIOError
	MultiError     = fferrors.MultiError
)
