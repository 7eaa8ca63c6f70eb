// Package enumerate defines the Enumerator contract shared by every
// filesystem backend (POSIX directory walking, the NTFS MFT reader) and
// the options that parameterize a walk.
package enumerate

import (
	"context"

	"github.com/standardbeagle/ffindex/internal/ffconfig"
	"github.com/standardbeagle/ffindex/internal/record"
)

// Sink receives one discovered record at a time. A non-nil return value
// from Sink aborts the walk.
type Sink func(record.FileRecord) error

// Enumerator produces FileRecords for a set of roots, honoring the
// filtering knobs carried on cfg (excluded paths/extensions, max depth,
// hidden/system visibility, max file size).
type Enumerator interface {
	// Enumerate walks cfg.Roots, calling sink once per discovered entry.
	// It returns after every root has been fully walked, ctx is
	// cancelled, or sink returns an error.
	Enumerate(ctx context.Context, cfg *ffconfig.Config, sink Sink) error

	// AvailableRoots lists the roots this backend can enumerate on the
	// current host (drive letters on Windows NTFS, mount points on
	// POSIX), independent of any configured Roots filter.
	AvailableRoots() ([]string, error)
}
