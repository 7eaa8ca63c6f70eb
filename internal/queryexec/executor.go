package queryexec

import (
	"context"
	"iter"
	"regexp"
	"strings"
	"time"

	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/indexstore"
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/simdmatch"
	"github.com/standardbeagle/ffindex/internal/stringpool"
	"github.com/standardbeagle/ffindex/internal/types"
)

// SearchResult is the response to a single Search call: a lazily
// evaluated match stream plus the count actually produced and how long
// compiling and draining the scan took.
type SearchResult struct {
	Files        iter.Seq[record.FileRecord]
	TotalMatches int
	Elapsed      time.Duration
}

// Executor is the C7 QueryExecutor: it compiles a SearchQuery once and
// runs it against a fixed Index/Pool pair.
type Executor struct {
	idx  *indexstore.Index
	pool *stringpool.Pool
}

// New builds an Executor over idx, resolving string filters against pool.
func New(idx *indexstore.Index, pool *stringpool.Pool) *Executor {
	return &Executor{idx: idx, pool: pool}
}

// compiledQuery is the result of validating and resolving a SearchQuery
// against the current Pool: everything that can be decided once, before
// any record is visited.
type compiledQuery struct {
	original SearchQuery

	hasText    bool
	text       string // already folded if CaseSensitive is false
	foldedText string // lowercase form of SearchText, used only for the Bloom probe
	wildcard   bool
	regex      *regexp.Regexp

	hasExtFilter bool
	extNeverSeen bool // extension_filter resolved to no known id: nothing can match
	extID        types.StringID

	hasBasePath bool
}

func (e *Executor) compile(q SearchQuery) (*compiledQuery, error) {
	if q.UseRegex && q.UseWildcard {
		return nil, fferrors.NewQueryError("use_regex and use_wildcard are mutually exclusive", nil)
	}
	if q.MaxResults < 0 {
		return nil, fferrors.NewQueryError("max_results cannot be negative", nil)
	}

	cq := &compiledQuery{original: q}

	if q.SearchText != "" {
		cq.hasText = true
		cq.foldedText = strings.ToLower(q.SearchText)
		if q.UseRegex {
			pattern := q.SearchText
			if !q.CaseSensitive {
				pattern = "(?i)" + pattern
			}
			re, err := regexp.Compile(pattern)
			if err != nil {
				return nil, fferrors.NewQueryError("regex compile failed", err)
			}
			cq.regex = re
		} else {
			text := q.SearchText
			if !q.CaseSensitive {
				text = strings.ToLower(text)
			}
			cq.text = text
			cq.wildcard = q.UseWildcard || simdmatch.HasWildcardChars(text)
		}
	}

	if q.ExtensionFilter != "" {
		ext := strings.ToLower(q.ExtensionFilter)
		cq.hasExtFilter = true
		id, ok := e.pool.Lookup(ext)
		if !ok {
			cq.extNeverSeen = true
		} else {
			cq.extID = id
		}
	}

	if q.BasePath != "" {
		cq.hasBasePath = true
	}

	return cq, nil
}

// matches applies every predicate in cq to rec, in increasing order of
// cost: cheap integer/bitset comparisons first, the name-Bloom fast
// reject next, and the real text matcher last.
func (e *Executor) matches(cq *compiledQuery, rec record.FileRecord) bool {
	q := &cq.original

	if rec.IsDirectory() {
		if !q.IncludeDirectories {
			return false
		}
	} else if !q.IncludeFiles {
		return false
	}

	if !q.IncludeHidden && rec.Attrs.Has(types.AttrHidden) {
		return false
	}
	if !q.IncludeSystem && rec.Attrs.Has(types.AttrSystem) {
		return false
	}

	if q.MinSize != nil && rec.Size != types.UnknownSize && rec.Size < *q.MinSize {
		return false
	}
	if q.MaxSize != nil && rec.Size != types.UnknownSize && rec.Size > *q.MaxSize {
		return false
	}
	if (q.MinSize != nil || q.MaxSize != nil) && rec.Size == types.UnknownSize {
		return false
	}

	if q.MinCreated != nil && rec.Created < *q.MinCreated {
		return false
	}
	if q.MaxCreated != nil && rec.Created > *q.MaxCreated {
		return false
	}
	if q.MinModified != nil && rec.Modified < *q.MinModified {
		return false
	}
	if q.MaxModified != nil && rec.Modified > *q.MaxModified {
		return false
	}

	if cq.hasExtFilter {
		if cq.extNeverSeen || rec.ExtID != cq.extID {
			return false
		}
	}

	if cq.hasBasePath {
		full, ok := e.pool.Get(rec.FullPathID)
		if !ok || !strings.HasPrefix(full, q.BasePath) {
			return false
		}
	}

	if cq.hasText && !e.matchesText(cq, rec) {
		return false
	}

	return true
}

func (e *Executor) matchesText(cq *compiledQuery, rec record.FileRecord) bool {
	targetID := rec.FullPathID
	if cq.original.SearchFilenameOnly {
		targetID = rec.NameID
	}

	if cq.regex != nil {
		target, ok := e.pool.Get(targetID)
		if !ok {
			return false
		}
		return cq.regex.MatchString(target)
	}

	if !cq.wildcard && !e.idx.MayContainSubstring(cq.foldedText) {
		return false
	}

	var target string
	var ok bool
	if cq.original.CaseSensitive {
		target, ok = e.pool.Get(targetID)
	} else {
		target, ok = e.pool.GetFolded(targetID)
	}
	if !ok {
		return false
	}

	if cq.wildcard {
		return simdmatch.MatchesWildcard(target, cq.text, false)
	}
	return simdmatch.ContainsString(target, cq.text, false)
}

// candidates picks the narrowest available source: an extension bucket
// when the query filters on one unambiguous extension, otherwise a full
// scan.
func (e *Executor) candidates(cq *compiledQuery) iter.Seq[record.FileRecord] {
	if cq.hasExtFilter && !cq.extNeverSeen {
		return e.idx.ScanByExtension(cq.extID)
	}
	return e.idx.Scan()
}

// Search compiles and runs q against the Index, returning up to
// q.MaxResults matches (0 means unbounded) in scan order.
func (e *Executor) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	start := time.Now()

	cq, err := e.compile(q)
	if err != nil {
		return nil, err
	}

	if cq.hasExtFilter && cq.extNeverSeen {
		return &SearchResult{Files: func(func(record.FileRecord) bool) {}, Elapsed: time.Since(start)}, nil
	}

	var matched []record.FileRecord
	source := e.candidates(cq)
scan:
	for rec := range source {
		select {
		case <-ctx.Done():
			break scan
		default:
		}
		if !e.matches(cq, rec) {
			continue
		}
		matched = append(matched, rec)
		if q.MaxResults > 0 && len(matched) >= q.MaxResults {
			break
		}
	}

	return &SearchResult{
		Files: func(yield func(record.FileRecord) bool) {
			for _, rec := range matched {
				if !yield(rec) {
					return
				}
			}
		},
		TotalMatches: len(matched),
		Elapsed:      time.Since(start),
	}, nil
}
