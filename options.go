package ffindex

import (
	"time"

	"github.com/standardbeagle/ffindex/internal/ffconfig"
	"github.com/standardbeagle/ffindex/internal/queryexec"
)

// SearchQuery and SearchResult are re-exported from internal/queryexec
// unchanged: the compiled-plan representation is an implementation
// detail, but the request/response shape is the engine's public
// contract and gains nothing from being wrapped a second time.
type (
	SearchQuery  = queryexec.SearchQuery
	SearchResult = queryexec.SearchResult
)

// DefaultSearchQuery returns a SearchQuery with the engine's defaults:
// both files and directories included, hidden and system entries
// excluded, no bound on size or time, and an unbounded max_results.
func DefaultSearchQuery() SearchQuery { return queryexec.Default() }

// DefaultRealtimeDebounce is the coalescing window SearchRealtime
// applies when callers pass 0.
const DefaultRealtimeDebounce = queryexec.DefaultRealtimeDebounce

// IndexingOptions configures one call to StartIndexing: the set of
// roots to enumerate and the filters applied while walking them.
type IndexingOptions struct {
	Roots              []string
	ExcludedPaths      []string
	ExcludedExtensions []string
	MaxFileSize        int64
	IncludeHidden      bool
	IncludeSystem      bool
	SkipSystemFiles    bool
	MaxDepth           int
	BatchSize          int
	ParallelWorkers    int
	EnableMonitoring   bool
	MFTBufferBytes     int
}

// toConfig merges opts onto base, producing the ffconfig.Config an
// enumeration pass actually runs against. base supplies defaults for
// any field opts leaves at its zero value where zero is ambiguous
// (BatchSize, MFTBufferBytes); Roots/ExcludedPaths/ExcludedExtensions
// always come from opts since an empty slice there is a meaningful
// "no filters", not "keep the engine's previous ones".
func (o IndexingOptions) toConfig(base *ffconfig.Config) *ffconfig.Config {
	cfg := &ffconfig.Config{
		Roots:              o.Roots,
		ExcludedPaths:      o.ExcludedPaths,
		ExcludedExtensions: o.ExcludedExtensions,
		MaxFileSize:        o.MaxFileSize,
		IncludeHidden:      o.IncludeHidden,
		IncludeSystem:      o.IncludeSystem,
		SkipSystemFiles:    o.SkipSystemFiles,
		MaxDepth:           o.MaxDepth,
		BatchSize:          o.BatchSize,
		ParallelWorkers:    o.ParallelWorkers,
		EnableMonitoring:   o.EnableMonitoring,
		WatchDebounceMs:    base.WatchDebounceMs,
		MFTBufferBytes:     o.MFTBufferBytes,
	}
	if cfg.MaxFileSize == 0 {
		cfg.MaxFileSize = base.MaxFileSize
	}
	if len(cfg.ExcludedPaths) == 0 {
		cfg.ExcludedPaths = base.ExcludedPaths
	}
	cfg.Normalize()
	return cfg
}

// ChangeMask selects which change.Event kinds a monitor delivers to the
// index. Resync events always pass through regardless of the mask: they
// are a control signal, not a filterable change kind.
type ChangeMask uint8

const (
	MaskCreated ChangeMask = 1 << iota
	MaskModified
	MaskDeleted
	MaskRenamed

	MaskAll = MaskCreated | MaskModified | MaskDeleted | MaskRenamed
)

// MonitoringOptions configures StartIndexing's background ChangeMonitor
// when IndexingOptions.EnableMonitoring is set.
type MonitoringOptions struct {
	IncludeSubdirectories bool
	ChangeMask            ChangeMask
	DebounceInterval      time.Duration
}

// DefaultMonitoringOptions mirrors the ffconfig defaults: recursive
// watching, every change kind delivered, and the configured debounce.
func DefaultMonitoringOptions() MonitoringOptions {
	return MonitoringOptions{
		IncludeSubdirectories: true,
		ChangeMask:            MaskAll,
		DebounceInterval:      time.Duration(ffconfig.DefaultWatchDebounceMs) * time.Millisecond,
	}
}
