// Package fferrors defines the typed error hierarchy surfaced by the
// engine. Each concrete type wraps an underlying cause and carries enough
// context (path, operation, pattern) to make a log line self-contained;
// sentinels are used for the handful of conditions callers are expected to
// branch on with errors.Is.
package fferrors

import (
	"errors"
	"fmt"
	"time"
)

// Kind classifies the broad category of an error for callers that want
// to branch on it without type-asserting.
type Kind string

const (
	KindUnsupported     Kind = "unsupported"
	KindPermissionDenied Kind = "permission_denied"
	KindNotFound        Kind = "not_found"
	KindIO              Kind = "io_error"
	KindFormat          Kind = "format_error"
	KindPoolFull        Kind = "pool_full"
	KindCancelled       Kind = "cancelled"
	KindBusy            Kind = "busy"
	KindInvalidQuery    Kind = "invalid_query"
)

// Sentinels for errors.Is comparisons. Concrete error types below wrap one
// of these as their Unwrap() target when no richer underlying cause exists.
var (
	ErrUnsupported  = errors.New("operation not supported on this backend")
	ErrPoolFull     = errors.New("string pool id space exhausted")
	ErrCancelled    = errors.New("operation cancelled")
	ErrBusy         = errors.New("indexing already in progress")
	ErrNotFound     = errors.New("not found")
	ErrUnavailable  = errors.New("engine unavailable after fatal error")
	ErrFormat       = errors.New("malformed or mismatched format")
	ErrDuplicate    = errors.New("full_path_id already present")
	ErrWatcherLost  = errors.New("file watcher lost its connection to the filesystem")
)

// IndexingError reports a failure enumerating or reconciling one path.
type IndexingError struct {
	Kind       Kind
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
	Recoverable bool
}

func NewIndexingError(op string, err error) *IndexingError {
	return &IndexingError{Kind: KindIO, Operation: op, Underlying: err, Timestamp: time.Now()}
}

func (e *IndexingError) WithPath(path string) *IndexingError {
	e.Path = path
	return e
}

func (e *IndexingError) WithRecoverable(r bool) *IndexingError {
	e.Recoverable = r
	return e
}

func (e *IndexingError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s %s failed for %s: %v", e.Kind, e.Operation, e.Path, e.Underlying)
	}
	return fmt.Sprintf("%s %s failed: %v", e.Kind, e.Operation, e.Underlying)
}

func (e *IndexingError) Unwrap() error { return e.Underlying }

// VolumeIOError reports an unrecoverable failure reading an NTFS volume
// mid-enumeration.
type VolumeIOError struct {
	Drive      string
	Underlying error
	Timestamp  time.Time
}

func NewVolumeIOError(drive string, err error) *VolumeIOError {
	return &VolumeIOError{Drive: drive, Underlying: err, Timestamp: time.Now()}
}

func (e *VolumeIOError) Error() string {
	return fmt.Sprintf("volume io error on %s: %v", e.Drive, e.Underlying)
}

func (e *VolumeIOError) Unwrap() error { return e.Underlying }

// FileError reports a failure operating on a single filesystem path.
type FileError struct {
	Kind       Kind
	Path       string
	Operation  string
	Underlying error
	Timestamp  time.Time
}

func NewFileError(op, path string, err error) *FileError {
	kind := KindIO
	if errors.Is(err, ErrNotFound) {
		kind = KindNotFound
	} else if isPermissionError(err) {
		kind = KindPermissionDenied
	}
	return &FileError{Kind: kind, Path: path, Operation: op, Underlying: err, Timestamp: time.Now()}
}

func isPermissionError(err error) bool {
	return errors.Is(err, errPermissionMarker)
}

// errPermissionMarker is wrapped by callers (os.IsPermission checks happen
// at the call site; this marker lets FileError classify without importing
// the os package error variety zoo).
var errPermissionMarker = errors.New("permission denied")

// MarkPermission wraps err so NewFileError classifies it as KindPermissionDenied.
func MarkPermission(err error) error {
	return fmt.Errorf("%w: %w", errPermissionMarker, err)
}

func (e *FileError) Error() string {
	return fmt.Sprintf("file %s failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *FileError) Unwrap() error { return e.Underlying }

// QueryError reports a failed query compilation or execution
// the InvalidQuery kind).
type QueryError struct {
	Reason     string
	Underlying error
	Timestamp  time.Time
}

func NewQueryError(reason string, err error) *QueryError {
	return &QueryError{Reason: reason, Underlying: err, Timestamp: time.Now()}
}

func (e *QueryError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("invalid query (%s): %v", e.Reason, e.Underlying)
	}
	return fmt.Sprintf("invalid query: %s", e.Reason)
}

func (e *QueryError) Unwrap() error { return e.Underlying }

// ConfigError reports a malformed EngineConfig field.
type ConfigError struct {
	Field      string
	Value      string
	Underlying error
	Timestamp  time.Time
}

func NewConfigError(field, value string, err error) *ConfigError {
	return &ConfigError{Field: field, Value: value, Underlying: err, Timestamp: time.Now()}
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config error for field %s (value %q): %v", e.Field, e.Value, e.Underlying)
}

func (e *ConfigError) Unwrap() error { return e.Underlying }

// SnapshotError reports a malformed or mismatched snapshot file,
// FormatError kind).
type SnapshotError struct {
	Reason     string
	Underlying error
	Timestamp  time.Time
}

func NewSnapshotError(reason string, err error) *SnapshotError {
	return &SnapshotError{Reason: reason, Underlying: err, Timestamp: time.Now()}
}

// NewSnapshotFormatError builds a SnapshotError wrapping the ErrFormat
// sentinel, for callers that want to errors.Is against it regardless of
// the specific reason text.
func NewSnapshotFormatError(reason string) *SnapshotError {
	return &SnapshotError{Reason: reason, Underlying: ErrFormat, Timestamp: time.Now()}
}

func (e *SnapshotError) Error() string {
	if e.Underlying != nil {
		return fmt.Sprintf("snapshot format error (%s): %v", e.Reason, e.Underlying)
	}
	return fmt.Sprintf("snapshot format error: %s", e.Reason)
}

func (e *SnapshotError) Unwrap() error { return e.Underlying }

// MultiError aggregates several independent failures (e.g. per-record
// parse errors collected during one enumeration pass) into one error value.
type MultiError struct {
	Errors []error
}

func NewMultiError(errs []error) *MultiError {
	filtered := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			filtered = append(filtered, err)
		}
	}
	return &MultiError{Errors: filtered}
}

func (e *MultiError) Error() string {
	switch len(e.Errors) {
	case 0:
		return "no errors"
	case 1:
		return e.Errors[0].Error()
	default:
		return fmt.Sprintf("%d errors: %v", len(e.Errors), e.Errors)
	}
}

func (e *MultiError) Unwrap() []error { return e.Errors }
