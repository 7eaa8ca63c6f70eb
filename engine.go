package ffindex

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/standardbeagle/ffindex/internal/change"
	"github.com/standardbeagle/ffindex/internal/enumerate/ntfs"
	"github.com/standardbeagle/ffindex/internal/enumerate/posix"
	"github.com/standardbeagle/ffindex/internal/ffconfig"
	"github.com/standardbeagle/ffindex/internal/ffdebug"
	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/indexstore"
	"github.com/standardbeagle/ffindex/internal/monitor"
	"github.com/standardbeagle/ffindex/internal/queryexec"
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/stringpool"
	"github.com/standardbeagle/ffindex/internal/types"
)

// expectedNameHint seeds the Index's Bloom filter. It is a sizing hint,
// not a cap: the filter degrades gracefully (more false positives, never
// false negatives) if the real tree is larger.
const expectedNameHint = 1 << 16

// Engine is the C8 component: it owns a StringPool, an Index, the
// enumerator backends, and an optional ChangeMonitor, and exposes the
// one set of operations a caller needs to index a tree, search it, and
// keep it live.
//
// A poisoned Engine (string-pool exhaustion, a fatal error kind with no
// recovery short of a full reindex) rejects every subsequent operation
// with ErrUnavailable until the caller constructs a new Engine.
type Engine struct {
	cfg *ffconfig.Config

	pool      *stringpool.Pool
	idx       *indexstore.Index
	executor  *queryexec.Executor
	posixEnum *posix.Walker
	ntfsEnum  *ntfs.Enumerator

	indexing     atomic.Bool
	monitoring   atomic.Bool
	poisoned     atomic.Bool
	totalIndexed atomic.Int64

	lifecycleMu sync.Mutex // serializes Start/Stop transitions against each other
	indexCancel context.CancelFunc
	indexWG     sync.WaitGroup

	mon       *monitor.Monitor
	monMask   ChangeMask
	monCancel context.CancelFunc
	monWG     sync.WaitGroup
}

// New constructs an Engine from cfg. A nil cfg uses ffconfig.Default().
// cfg is copied by reference and normalized in place; the caller should
// not mutate it afterward.
func New(cfg *ffconfig.Config) *Engine {
	if cfg == nil {
		cfg = ffconfig.Default()
	}
	cfg.Normalize()

	pool := stringpool.New()
	idx := indexstore.New(pool, expectedNameHint)
	return &Engine{
		cfg:       cfg,
		pool:      pool,
		idx:       idx,
		executor:  queryexec.New(idx, pool),
		posixEnum: posix.New(pool),
		ntfsEnum:  ntfs.New(pool),
	}
}

// StartIndexing begins a background enumeration pass over opts.Roots,
// inserting every surviving record into the index. It returns
// immediately; indexing continues in the background until the tree is
// fully walked, ctx is cancelled, or StopIndexing is called. If
// opts.EnableMonitoring is set, a ChangeMonitor is started over the same
// roots once enumeration completes.
func (e *Engine) StartIndexing(ctx context.Context, opts IndexingOptions) error {
	if e.poisoned.Load() {
		return fferrors.ErrUnavailable
	}
	if !e.indexing.CompareAndSwap(false, true) {
		return fferrors.ErrBusy
	}

	cfg := opts.toConfig(e.cfg)
	runCtx, cancel := context.WithCancel(ctx)

	e.lifecycleMu.Lock()
	e.indexCancel = cancel
	e.lifecycleMu.Unlock()

	e.indexWG.Add(1)
	go func() {
		defer e.indexWG.Done()
		defer cancel()
		defer e.indexing.Store(false)

		if err := e.runEnumeration(runCtx, cfg); err != nil {
			if errors.Is(err, fferrors.ErrPoolFull) {
				e.poisoned.Store(true)
			}
			ffdebug.LogIndexing("indexing run failed: %v", err)
			return
		}

		if cfg.EnableMonitoring {
			if err := e.startMonitoring(cfg, DefaultMonitoringOptions()); err != nil {
				ffdebug.LogMonitor("failed to start monitoring after indexing: %v", err)
			}
		}
	}()
	return nil
}

// StopIndexing cancels any in-progress indexing run and waits for it to
// unwind. It is a no-op if no run is in progress.
func (e *Engine) StopIndexing() error {
	e.lifecycleMu.Lock()
	cancel := e.indexCancel
	e.lifecycleMu.Unlock()

	if cancel != nil {
		cancel()
	}
	e.indexWG.Wait()
	return nil
}

// runEnumeration tries the NTFS MFT backend first; when it reports
// Unsupported (no administrator rights, not an NTFS volume, or simply
// not running on Windows) it falls back to the POSIX walker, matching
// the availability-probe contract both backends implement.
func (e *Engine) runEnumeration(ctx context.Context, cfg *ffconfig.Config) error {
	sink := func(rec record.FileRecord) error {
		if err := e.idx.Insert(rec); err != nil {
			if errors.Is(err, fferrors.ErrDuplicate) {
				return nil
			}
			return err
		}
		e.totalIndexed.Add(1)
		return nil
	}

	err := e.ntfsEnum.Enumerate(ctx, cfg, sink)
	if errors.Is(err, fferrors.ErrUnsupported) {
		ffdebug.LogIndexing("ntfs backend unavailable, falling back to posix walker")
		return e.posixEnum.Enumerate(ctx, cfg, sink)
	}
	return err
}

// Refresh re-enumerates the given roots and reconciles the index
// against what it finds: everything previously indexed under each root
// is tombstoned first, then the root is walked again. Roots that don't
// exist or can't be read contribute their error to the returned
// MultiError but don't stop the remaining roots from being refreshed.
func (e *Engine) Refresh(ctx context.Context, roots []string) error {
	if e.poisoned.Load() {
		return fferrors.ErrUnavailable
	}

	var errs []error
	for _, root := range roots {
		if err := e.idx.Apply(change.Event{Kind: change.Resync, NewPath: root, TimeNs: time.Now().UnixNano()}, nil); err != nil {
			errs = append(errs, err)
			continue
		}
		rootCfg := *e.cfg
		rootCfg.Roots = []string{root}
		if err := e.runEnumeration(ctx, &rootCfg); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fferrors.NewMultiError(errs)
}

// Optimize compacts tombstoned slots out of the index and rebuilds its
// extension buckets.
func (e *Engine) Optimize() {
	e.idx.Optimize()
}

// Search compiles and runs q against the current index, returning up to
// q.MaxResults matches in index order.
func (e *Engine) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if e.poisoned.Load() {
		return nil, fferrors.ErrUnavailable
	}
	return e.executor.Search(ctx, q)
}

// SearchRealtime streams query results for a channel of incoming
// queries, debouncing and cancelling superseded searches as described on
// queryexec.Executor.SearchRealtime. A debounce of 0 uses
// DefaultRealtimeDebounce.
func (e *Engine) SearchRealtime(ctx context.Context, queries <-chan SearchQuery, debounce time.Duration) <-chan *SearchResult {
	return e.executor.SearchRealtime(ctx, queries, debounce)
}

// Stats reports a point-in-time snapshot of engine-wide counters.
type Stats struct {
	LiveRecords       int64
	TombstonedSlots   int64
	ExtensionBuckets  int
	PooledStrings     int
	PooledBytes       int64
	RawBytes          int64
	CompressionRatio  float64
	Indexing          bool
	Monitoring        bool
	TotalIndexedFiles int64
}

// Stats gathers index and pool counters into one snapshot.
func (e *Engine) Stats() Stats {
	idxStats := e.idx.Stats()
	poolStats := e.pool.Stats()
	return Stats{
		LiveRecords:       idxStats.LiveRecords,
		TombstonedSlots:   idxStats.TombstonedSlots,
		ExtensionBuckets:  idxStats.ExtensionBuckets,
		PooledStrings:     poolStats.TotalStrings,
		PooledBytes:       poolStats.TotalPooledBytes,
		RawBytes:          poolStats.RawInputBytes,
		CompressionRatio:  poolStats.CompressionRatio,
		Indexing:          e.indexing.Load(),
		Monitoring:        e.monitoring.Load(),
		TotalIndexedFiles: e.totalIndexed.Load(),
	}
}

// IsIndexing reports whether a background indexing run is in progress.
func (e *Engine) IsIndexing() bool { return e.indexing.Load() }

// IsMonitoring reports whether a background ChangeMonitor is active.
func (e *Engine) IsMonitoring() bool { return e.monitoring.Load() }

// TotalIndexedFiles reports the cumulative number of records this
// engine has inserted since construction (or since the last
// LoadSnapshot reset the counter).
func (e *Engine) TotalIndexedFiles() int64 { return e.totalIndexed.Load() }

// startMonitoring starts a ChangeMonitor over cfg.Roots and a goroutine
// that folds its events into the index. It is idempotent: a second call
// while monitoring is already active returns ErrBusy.
func (e *Engine) startMonitoring(cfg *ffconfig.Config, opts MonitoringOptions) error {
	if !e.monitoring.CompareAndSwap(false, true) {
		return fferrors.ErrBusy
	}

	mon, err := monitor.New(monitor.Options{
		IncludeSubdirectories: opts.IncludeSubdirectories,
		ExcludedPaths:         cfg.ExcludedPaths,
		DebounceInterval:      opts.DebounceInterval,
	})
	if err != nil {
		e.monitoring.Store(false)
		return err
	}

	for _, root := range cfg.Roots {
		if err := mon.Start(root); err != nil {
			e.monitoring.Store(false)
			return err
		}
	}

	monCtx, cancel := context.WithCancel(context.Background())
	e.lifecycleMu.Lock()
	e.mon = mon
	e.monMask = opts.ChangeMask
	e.monCancel = cancel
	e.lifecycleMu.Unlock()

	e.monWG.Add(1)
	go func() {
		defer e.monWG.Done()
		e.processMonitorEvents(monCtx, mon)
	}()
	return nil
}

// StopMonitoring stops the background ChangeMonitor, if one is running.
func (e *Engine) StopMonitoring() error {
	e.lifecycleMu.Lock()
	mon := e.mon
	cancel := e.monCancel
	e.lifecycleMu.Unlock()

	if mon == nil {
		return nil
	}
	if cancel != nil {
		cancel()
	}
	err := mon.Stop()
	e.monWG.Wait()
	e.monitoring.Store(false)
	return err
}

// processMonitorEvents folds every event the monitor delivers into the
// index until ctx is cancelled or the monitor's event channel closes.
// Resync events additionally trigger a background Refresh of the
// affected root, per the monitor's backpressure contract.
func (e *Engine) processMonitorEvents(ctx context.Context, mon *monitor.Monitor) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-mon.Events():
			if !ok {
				return
			}
			if !maskAllows(e.monMask, ev.Kind) {
				continue
			}
			e.applyMonitorEvent(ctx, ev)
		case err, ok := <-mon.Errors():
			if !ok {
				continue
			}
			ffdebug.LogMonitor("watcher error: %v", err)
		}
	}
}

func (e *Engine) applyMonitorEvent(ctx context.Context, ev change.Event) {
	if ev.Kind == change.Resync {
		if err := e.idx.Apply(ev, nil); err != nil {
			ffdebug.LogMonitor("resync tombstone failed for %s: %v", ev.NewPath, err)
		}
		go func() {
			if err := e.Refresh(ctx, []string{ev.NewPath}); err != nil {
				ffdebug.LogMonitor("resync re-enumeration failed for %s: %v", ev.NewPath, err)
			}
		}()
		return
	}

	if err := e.idx.Apply(ev, e.resolveRecord); err != nil {
		ffdebug.LogMonitor("failed to apply %s event for %s: %v", ev.Kind, ev.NewPath, err)
	}
}

func maskAllows(mask ChangeMask, kind change.Kind) bool {
	switch kind {
	case change.Created:
		return mask&MaskCreated != 0
	case change.Modified:
		return mask&MaskModified != 0
	case change.Deleted:
		return mask&MaskDeleted != 0
	case change.Renamed:
		return mask&MaskRenamed != 0
	default:
		return true
	}
}

// resolveRecord stats path and interns its components, producing the
// FileRecord a Created/Modified monitor event needs. Index itself never
// touches the filesystem; this closure is its only source of fresh
// metadata.
func (e *Engine) resolveRecord(path string) (record.FileRecord, error) {
	info, err := os.Lstat(path)
	if err != nil {
		return record.FileRecord{}, fferrors.NewFileError("stat", path, err)
	}

	comps, err := e.pool.InternPathComponents(path)
	if err != nil {
		return record.FileRecord{}, err
	}

	size := info.Size()
	if info.IsDir() {
		size = 0
	}

	return record.FileRecord{
		FullPathID: comps.FullPathID,
		NameID:     comps.NameID,
		DirID:      comps.DirID,
		ExtID:      comps.ExtID,
		Size:       size,
		Created:    info.ModTime().UnixNano(),
		Modified:   info.ModTime().UnixNano(),
		Accessed:   info.ModTime().UnixNano(),
		Attrs:      attrsForFileInfo(info),
	}, nil
}

func attrsForFileInfo(info os.FileInfo) types.Attrs {
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
	if isHiddenName(info.Name()) {
		attrs |= types.AttrHidden
	}
	return attrs
}

func isHiddenName(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
