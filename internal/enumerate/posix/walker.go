// Package posix implements a bounded-concurrency directory walker for
// POSIX filesystems.
//
// Grounded on FileScanner.ScanDirectory
// (internal/indexing/pipeline.go, internal/indexing/pipeline_scanner.go):
// symlink-cycle detection via filepath.EvalSymlinks plus a visited set,
// exclude-pattern matching before any stat call, and a task-channel
// handoff to worker goroutines — restructured here from a
// single sequential filepath.Walk into a genuine bounded worker pool:
// the first two directory levels fan out across workers, everything
// deeper is walked inline by whichever worker reached it, and
// golang.org/x/sync/errgroup propagates the first worker error (or a
// sink error) and cancels the rest.
package posix

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/sync/errgroup"

	"github.com/standardbeagle/ffindex/internal/enumerate"
	"github.com/standardbeagle/ffindex/internal/ffconfig"
	"github.com/standardbeagle/ffindex/internal/ffdebug"
	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/stringpool"
	"github.com/standardbeagle/ffindex/internal/types"
)

// channelCapacity bounds how many directories can be queued for a free
// worker before producers block.
const channelCapacity = 1000

// inlineDepthThreshold is the directory depth (root = 0) below which a
// worker keeps walking in its own call stack instead of handing the
// subdirectory back to the channel. Fanning out every level would spend
// more time on channel handoffs than on actual directory reads once the
// tree gets deep; the first couple of levels are where the parallelism
// actually pays off.
const inlineDepthThreshold = 2

// Walker enumerates POSIX directory trees, interning every discovered
// path through pool.
type Walker struct {
	pool *stringpool.Pool

	// mountsPath is the mounts table AvailableRoots reads, overridable by
	// tests; production code always uses defaultMountsPath.
	mountsPath string
}

// New builds a Walker that interns discovered paths into pool.
func New(pool *stringpool.Pool) *Walker {
	return &Walker{pool: pool, mountsPath: defaultMountsPath}
}

type workItem struct {
	path  string
	depth int
}

type visitedSet struct {
	mu   sync.Mutex
	seen map[string]bool
}

func newVisitedSet() *visitedSet {
	return &visitedSet{seen: make(map[string]bool)}
}

// claim returns true the first time realPath is seen.
func (v *visitedSet) claim(realPath string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.seen[realPath] {
		return false
	}
	v.seen[realPath] = true
	return true
}

// Enumerate walks every root in cfg.Roots, emitting one FileRecord per
// discovered file and directory that survives the configured filters.
func (w *Walker) Enumerate(ctx context.Context, cfg *ffconfig.Config, sink enumerate.Sink) error {
	if len(cfg.Roots) == 0 {
		return fferrors.NewIndexingError("enumerate", fferrors.ErrNotFound)
	}

	excludeExts := make(map[string]bool, len(cfg.ExcludedExtensions))
	for _, e := range cfg.ExcludedExtensions {
		excludeExts[strings.ToLower(e)] = true
	}

	g, gctx := errgroup.WithContext(ctx)
	work := make(chan workItem, channelCapacity)
	visited := newVisitedSet()
	var wg sync.WaitGroup

	workers := cfg.Workers()
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for item := range work {
				err := w.walkDir(gctx, item.path, item.depth, cfg, excludeExts, visited, sink, work, &wg)
				wg.Done()
				if err != nil {
					return err
				}
			}
			return nil
		})
	}

	for _, root := range cfg.Roots {
		realRoot, err := filepath.EvalSymlinks(root)
		if err != nil {
			ffdebug.LogIndexing("skipping unresolvable root %s: %v", root, err)
			continue
		}
		if !visited.claim(realRoot) {
			continue
		}
		wg.Add(1)
		select {
		case work <- workItem{path: root, depth: 0}:
		case <-gctx.Done():
			wg.Done()
		}
	}

	go func() {
		wg.Wait()
		close(work)
	}()

	return g.Wait()
}

// walkDir reads one directory, emits records for its entries, and either
// enqueues or inline-recurses into subdirectories depending on depth.
func (w *Walker) walkDir(
	ctx context.Context,
	dirPath string,
	depth int,
	cfg *ffconfig.Config,
	excludeExts map[string]bool,
	visited *visitedSet,
	sink enumerate.Sink,
	work chan<- workItem,
	wg *sync.WaitGroup,
) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if err := w.emitDir(dirPath, sink); err != nil {
		return err
	}

	if cfg.MaxDepth > 0 && depth >= cfg.MaxDepth {
		return nil // this directory's own record was emitted; its contents are past the depth bound
	}

	entries, err := os.ReadDir(dirPath)
	if err != nil {
		if os.IsPermission(err) {
			ffdebug.LogIndexing("permission denied reading %s: %v", dirPath, err)
			return nil
		}
		ffdebug.LogIndexing("failed to read directory %s: %v", dirPath, err)
		return nil
	}

	for _, d := range entries {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fullPath := filepath.Join(dirPath, d.Name())
		if isExcludedPath(fullPath, cfg.ExcludedPaths) {
			continue
		}
		if !cfg.IncludeHidden && isHidden(d.Name()) {
			continue
		}

		if d.IsDir() {
			if cfg.MaxDepth > 0 && depth+1 > cfg.MaxDepth {
				continue
			}
			realPath, err := resolveDir(fullPath, d)
			if err != nil {
				ffdebug.LogIndexing("skipping unresolvable directory %s: %v", fullPath, err)
				continue
			}
			if !visited.claim(realPath) {
				continue // symlink cycle
			}

			if depth < inlineDepthThreshold {
				wg.Add(1)
				select {
				case work <- workItem{path: fullPath, depth: depth + 1}:
				case <-ctx.Done():
					wg.Done()
					return ctx.Err()
				}
			} else if err := w.walkDir(ctx, fullPath, depth+1, cfg, excludeExts, visited, sink, work, wg); err != nil {
				return err
			}
			continue
		}

		if err := w.emitFile(fullPath, d, cfg, excludeExts, sink); err != nil {
			return err
		}
	}

	return nil
}

// emitDir sinks a FileRecord for the directory itself, so it is
// searchable alongside its contents.
func (w *Walker) emitDir(dirPath string, sink enumerate.Sink) error {
	comps, err := w.pool.InternPathComponents(dirPath)
	if err != nil {
		return err
	}
	info, err := os.Lstat(dirPath)
	if err != nil {
		ffdebug.LogIndexing("failed to stat directory %s: %v", dirPath, err)
		return nil
	}
	rec := record.FileRecord{
		FullPathID: comps.FullPathID,
		NameID:     comps.NameID,
		DirID:      comps.DirID,
		ExtID:      comps.ExtID,
		Size:       0,
		Modified:   info.ModTime().UnixNano(),
		Accessed:   info.ModTime().UnixNano(),
		Created:    info.ModTime().UnixNano(),
		Attrs:      attrsFor(info),
	}
	return sink(rec)
}

func (w *Walker) emitFile(fullPath string, d fs.DirEntry, cfg *ffconfig.Config, excludeExts map[string]bool, sink enumerate.Sink) error {
	ext := strings.ToLower(filepath.Ext(fullPath))
	if ext != "" && excludeExts[ext] {
		return nil
	}

	info, err := d.Info()
	if err != nil {
		ffdebug.LogIndexing("failed to stat %s: %v", fullPath, err)
		return nil
	}

	if cfg.MaxFileSize > 0 && info.Size() > cfg.MaxFileSize {
		return nil
	}

	comps, err := w.pool.InternPathComponents(fullPath)
	if err != nil {
		return err
	}

	attrs := attrsFor(info)
	rec := record.FileRecord{
		FullPathID: comps.FullPathID,
		NameID:     comps.NameID,
		DirID:      comps.DirID,
		ExtID:      comps.ExtID,
		Size:       info.Size(),
		Modified:   info.ModTime().UnixNano(),
		Accessed:   info.ModTime().UnixNano(),
		Created:    info.ModTime().UnixNano(),
		Attrs:      attrs,
	}
	return sink(rec)
}

func attrsFor(info os.FileInfo) types.Attrs {
	var attrs types.Attrs
	if info.IsDir() {
		attrs |= types.AttrDirectory
	}
	if info.Mode()&fs.ModeSymlink != 0 {
		attrs |= types.AttrSymlink
	}
	if info.Mode().Perm()&0o200 == 0 {
		attrs |= types.AttrReadonly
	}
	if isHidden(info.Name()) {
		attrs |= types.AttrHidden
	}
	return attrs
}

func isHidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}

func isExcludedPath(path string, patterns []string) bool {
	normalized := strings.TrimPrefix(filepath.ToSlash(path), "/")
	for _, pattern := range patterns {
		if matched, _ := doublestar.Match(pattern, normalized); matched {
			return true
		}
	}
	return false
}

// resolveDir returns d's real path, following one level of symlink
// resolution for cycle detection. Non-symlink directories resolve to
// themselves without a syscall.
func resolveDir(fullPath string, d fs.DirEntry) (string, error) {
	if d.Type()&fs.ModeSymlink == 0 {
		return fullPath, nil
	}
	return filepath.EvalSymlinks(fullPath)
}

// defaultMountsPath is the mounts table read in production.
const defaultMountsPath = "/proc/mounts"

// virtualFilesystemTypes are excluded from AvailableRoots unless the
// caller explicitly lists one of them as a root elsewhere; cgroup2 and
// the legacy per-controller cgroup mounts are matched by the "cgroup"
// prefix.
var virtualFilesystemTypes = map[string]bool{
	"proc":    true,
	"sysfs":   true,
	"tmpfs":   true,
	"devpts":  true,
	"overlay": true,
}

// AvailableRoots lists the filesystem mount points this host exposes,
// parsed from the mounts table (normally /proc/mounts), filtered by
// filesystem type rather than mount path: a mount's fstype, not where it
// happens to be mounted, is what marks it virtual.
func (w *Walker) AvailableRoots() ([]string, error) {
	data, err := os.ReadFile(w.mountsPath)
	if err != nil {
		return []string{"/"}, nil
	}
	var roots []string
	for _, line := range strings.Split(string(data), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}
		mountPoint, fsType := fields[1], fields[2]
		if strings.HasPrefix(fsType, "cgroup") || virtualFilesystemTypes[fsType] {
			continue
		}
		roots = append(roots, mountPoint)
	}
	if len(roots) == 0 {
		roots = []string{"/"}
	}
	return roots, nil
}
