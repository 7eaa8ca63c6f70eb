// Package queryexec implements the QueryExecutor: compiling a SearchQuery
// into a plan, running that plan against an Index, and streaming matches.
//
// Grounded on MasterIndex.SearchWithOptions
// (internal/indexing/master_index_search.go): validate inputs, pick a
// candidate source narrower than a full scan when one is available,
// then apply the remaining predicates to each candidate in order.
package queryexec

// SearchQuery mirrors the engine's public search options. Bounds that
// can legitimately be absent (no minimum, no maximum) are pointers so a
// caller can distinguish "unset" from "zero".
type SearchQuery struct {
	SearchText         string
	UseRegex           bool
	UseWildcard         bool
	CaseSensitive       bool
	SearchFilenameOnly bool

	BasePath        string
	ExtensionFilter string

	MinSize *int64
	MaxSize *int64

	MinCreated  *int64
	MaxCreated  *int64
	MinModified *int64
	MaxModified *int64

	IncludeFiles       bool
	IncludeDirectories bool
	IncludeHidden      bool
	IncludeSystem      bool

	MaxResults int
}

// Default returns a SearchQuery with the engine's defaults: both files
// and directories included, hidden and system entries excluded, no
// bound on size or time, and a max_results of 0 meaning unbounded.
func Default() SearchQuery {
	return SearchQuery{
		IncludeFiles:       true,
		IncludeDirectories: true,
	}
}
