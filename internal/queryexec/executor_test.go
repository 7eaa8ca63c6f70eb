package queryexec

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ffindex/internal/change"
	"github.com/standardbeagle/ffindex/internal/indexstore"
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/stringpool"
)

func newFixture(t *testing.T) (*indexstore.Index, *stringpool.Pool, *Executor) {
	t.Helper()
	pool := stringpool.New()
	idx := indexstore.New(pool, 100)
	return idx, pool, New(idx, pool)
}

func mustInsert(t *testing.T, idx *indexstore.Index, pool *stringpool.Pool, path string, size int64) {
	t.Helper()
	comps, err := pool.InternPathComponents(path)
	require.NoError(t, err)
	require.NoError(t, idx.Insert(record.FileRecord{
		FullPathID: comps.FullPathID,
		NameID:     comps.NameID,
		DirID:      comps.DirID,
		ExtID:      comps.ExtID,
		Size:       size,
	}))
}

func names(t *testing.T, pool *stringpool.Pool, result *SearchResult) []string {
	t.Helper()
	var out []string
	for rec := range result.Files {
		full, ok := pool.Get(rec.FullPathID)
		require.True(t, ok)
		out = append(out, full)
	}
	return out
}

func TestSearchExtensionFilterCaseInsensitive(t *testing.T) {
	idx, pool, ex := newFixture(t)
	mustInsert(t, idx, pool, "/a/foo.txt", 1)
	mustInsert(t, idx, pool, "/a/bar.cs", 2)
	mustInsert(t, idx, pool, "/a/baz.TXT", 3)

	q := Default()
	q.ExtensionFilter = ".txt"
	result, err := ex.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalMatches)
	require.ElementsMatch(t, []string{"/a/foo.txt", "/a/baz.TXT"}, names(t, pool, result))
}

func TestSearchSubstringCaseInsensitiveFilenameOnly(t *testing.T) {
	idx, pool, ex := newFixture(t)
	mustInsert(t, idx, pool, "/proj/ReadMe.md", 1)
	mustInsert(t, idx, pool, "/proj/readme.txt", 2)
	mustInsert(t, idx, pool, "/proj/other.md", 3)

	q := Default()
	q.SearchText = "readme"
	q.SearchFilenameOnly = true
	result, err := ex.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalMatches)
	require.ElementsMatch(t, []string{"/proj/ReadMe.md", "/proj/readme.txt"}, names(t, pool, result))
}

func TestSearchWildcard(t *testing.T) {
	idx, pool, ex := newFixture(t)
	mustInsert(t, idx, pool, "/src/a.cs", 1)
	mustInsert(t, idx, pool, "/src/ab.cs", 2)
	mustInsert(t, idx, pool, "/src/abc.cpp", 3)

	q := Default()
	q.SearchText = "a*.cs"
	result, err := ex.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, 2, result.TotalMatches)
	require.ElementsMatch(t, []string{"/src/a.cs", "/src/ab.cs"}, names(t, pool, result))
}

func TestSearchSizeRange(t *testing.T) {
	idx, pool, ex := newFixture(t)
	mustInsert(t, idx, pool, "/f/small.bin", 100)
	mustInsert(t, idx, pool, "/f/mid.bin", 200)
	mustInsert(t, idx, pool, "/f/big.bin", 500)

	min, max := int64(150), int64(300)
	q := Default()
	q.MinSize = &min
	q.MaxSize = &max
	result, err := ex.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, 1, result.TotalMatches)
	require.Equal(t, []string{"/f/mid.bin"}, names(t, pool, result))
}

func TestSearchAfterRenamePropagation(t *testing.T) {
	idx, pool, ex := newFixture(t)
	mustInsert(t, idx, pool, "/x/old.txt", 1)

	require.NoError(t, idx.Apply(change.Event{Kind: change.Renamed, OldPath: "/x/old.txt", NewPath: "/x/new.txt"}, nil))

	oldQ := Default()
	oldQ.SearchText = "old"
	oldResult, err := ex.Search(context.Background(), oldQ)
	require.NoError(t, err)
	require.Equal(t, 0, oldResult.TotalMatches)

	newQ := Default()
	newQ.SearchText = "new"
	newResult, err := ex.Search(context.Background(), newQ)
	require.NoError(t, err)
	require.Equal(t, 1, newResult.TotalMatches)
	require.Equal(t, []string{"/x/new.txt"}, names(t, pool, newResult))
}

func TestSearchMaxResultsCapsOutput(t *testing.T) {
	idx, pool, ex := newFixture(t)
	for i := 0; i < 10; i++ {
		mustInsert(t, idx, pool, "/many/file"+string(rune('a'+i))+".txt", int64(i))
	}

	q := Default()
	q.MaxResults = 3
	result, err := ex.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, 3, result.TotalMatches)
}

func TestSearchRejectsRegexAndWildcardTogether(t *testing.T) {
	_, _, ex := newFixture(t)
	q := Default()
	q.SearchText = "a*"
	q.UseRegex = true
	q.UseWildcard = true
	_, err := ex.Search(context.Background(), q)
	require.Error(t, err)
}

func TestSearchExtensionFilterNeverSeenReturnsEmptyWithoutScanning(t *testing.T) {
	idx, pool, ex := newFixture(t)
	mustInsert(t, idx, pool, "/a/foo.txt", 1)

	q := Default()
	q.ExtensionFilter = ".zzz"
	result, err := ex.Search(context.Background(), q)
	require.NoError(t, err)
	require.Equal(t, 0, result.TotalMatches)
}

func TestSearchRealtimeCoalescesRapidQueries(t *testing.T) {
	idx, pool, ex := newFixture(t)
	mustInsert(t, idx, pool, "/proj/alpha.txt", 1)
	mustInsert(t, idx, pool, "/proj/beta.txt", 2)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	queries := make(chan SearchQuery, 4)
	results := ex.SearchRealtime(ctx, queries, 20*time.Millisecond)

	q1 := Default()
	q1.SearchText = "alp"
	queries <- q1
	q2 := Default()
	q2.SearchText = "bet"
	queries <- q2

	select {
	case result := <-results:
		require.Equal(t, 1, result.TotalMatches)
		require.Equal(t, []string{"/proj/beta.txt"}, names(t, pool, result))
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for realtime search result")
	}

	cancel()
}
