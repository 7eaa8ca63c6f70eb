//go:build !windows
// +build !windows

package ntfs

import (
	"context"

	"github.com/standardbeagle/ffindex/internal/enumerate"
	"github.com/standardbeagle/ffindex/internal/ffconfig"
	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/stringpool"
)

// Enumerator is the NTFS backend's unavailable stand-in on non-Windows
// hosts: the volume-access preconditions in §4.3a (administrator rights,
// an NTFS volume, \\.\<drive>: backup-semantics open) can never hold
// here, so every call reports Unsupported immediately and the engine
// falls back to the POSIX walker per the availability-probe contract.
type Enumerator struct {
	pool *stringpool.Pool
}

// New builds an Enumerator. Its pool argument is accepted only to keep
// the constructor signature identical across build tags.
func New(pool *stringpool.Pool) *Enumerator {
	return &Enumerator{pool: pool}
}

func (e *Enumerator) Enumerate(ctx context.Context, cfg *ffconfig.Config, sink enumerate.Sink) error {
	return fferrors.ErrUnsupported
}

func (e *Enumerator) AvailableRoots() ([]string, error) {
	return nil, nil
}

var _ enumerate.Enumerator = (*Enumerator)(nil)
