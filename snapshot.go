package ffindex

import (
	"os"

	"github.com/standardbeagle/ffindex/internal/enumerate/ntfs"
	"github.com/standardbeagle/ffindex/internal/enumerate/posix"
	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/indexstore"
	"github.com/standardbeagle/ffindex/internal/queryexec"
	"github.com/standardbeagle/ffindex/internal/snapshot"
	"github.com/standardbeagle/ffindex/internal/stringpool"
)

// SaveSnapshot serializes the current index state to path in the wire
// format documented on internal/snapshot. Both backends support
// persistence: the snapshot is a pure index/pool encoding with no
// platform-specific content, so there is nothing for the NTFS-vs-POSIX
// split to gate here.
func (e *Engine) SaveSnapshot(path string) error {
	if e.poisoned.Load() {
		return fferrors.ErrUnavailable
	}

	f, err := os.Create(path)
	if err != nil {
		return fferrors.NewSnapshotError("create file", err)
	}
	defer f.Close()

	if err := snapshot.Encode(f, e.idx.Export()); err != nil {
		return fferrors.NewSnapshotError("encode", err)
	}
	return f.Close()
}

// LoadSnapshot replaces the engine's entire in-memory state (pool,
// index, executor) with the contents of path. It fails with a
// SnapshotError wrapping ErrFormat on a magic/version/CRC mismatch,
// leaving the engine's prior state untouched; it refuses to run
// alongside an active indexing pass.
func (e *Engine) LoadSnapshot(path string) error {
	if e.poisoned.Load() {
		return fferrors.ErrUnavailable
	}
	if e.indexing.Load() {
		return fferrors.ErrBusy
	}

	f, err := os.Open(path)
	if err != nil {
		return fferrors.NewSnapshotError("open file", err)
	}
	defer f.Close()

	data, err := snapshot.Decode(f)
	if err != nil {
		return err // already a *fferrors.SnapshotError wrapping ErrFormat
	}

	pool := stringpool.New()
	idx := indexstore.New(pool, max(len(data.Records), expectedNameHint))
	if err := idx.Restore(data); err != nil {
		return fferrors.NewSnapshotError("restore", err)
	}

	e.lifecycleMu.Lock()
	e.pool = pool
	e.idx = idx
	e.executor = queryexec.New(idx, pool)
	e.posixEnum = posix.New(pool)
	e.ntfsEnum = ntfs.New(pool)
	e.lifecycleMu.Unlock()

	e.totalIndexed.Store(int64(len(data.Records)))
	return nil
}
