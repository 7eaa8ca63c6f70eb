package stringpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ffindex/internal/types"
)

func TestInternIsIdempotent(t *testing.T) {
	p := New()
	id1, err := p.Intern("hello")
	require.NoError(t, err)
	id2, err := p.Intern("hello")
	require.NoError(t, err)
	require.Equal(t, id1, id2)

	id3, err := p.Intern("world")
	require.NoError(t, err)
	require.NotEqual(t, id1, id3)
}

func TestInternEmptyStringIsZero(t *testing.T) {
	p := New()
	id, err := p.Intern("")
	require.NoError(t, err)
	require.Zero(t, id)

	s, ok := p.Get(0)
	require.True(t, ok)
	require.Equal(t, "", s)
}

func TestGetRoundTrips(t *testing.T) {
	p := New()
	id, err := p.Intern("/a/b/c.go")
	require.NoError(t, err)

	got, ok := p.Get(id)
	require.True(t, ok)
	require.Equal(t, "/a/b/c.go", got)
}

func TestGetUnknownIDFails(t *testing.T) {
	p := New()
	_, ok := p.Get(types.StringID(12345))
	require.False(t, ok)
}

func TestGetFoldedIsCachedAndCorrect(t *testing.T) {
	p := New()
	id, err := p.Intern("ReadMe.MD")
	require.NoError(t, err)

	folded, ok := p.GetFolded(id)
	require.True(t, ok)
	require.Equal(t, "readme.md", folded)

	// Second call should hit the cache path and return the same value.
	folded2, ok := p.GetFolded(id)
	require.True(t, ok)
	require.Equal(t, folded, folded2)
}

func TestCleanupInvalidatesOldIDs(t *testing.T) {
	p := New()
	id, err := p.Intern("stale")
	require.NoError(t, err)
	require.True(t, p.IsCurrent(id))

	p.Cleanup()

	require.False(t, p.IsCurrent(id))
	_, ok := p.Get(id)
	require.False(t, ok)

	// Pool is usable again after cleanup.
	newID, err := p.Intern("stale")
	require.NoError(t, err)
	require.True(t, p.IsCurrent(newID))
}

func TestInternPathComponentsSplitsCorrectly(t *testing.T) {
	p := New()
	c, err := p.InternPathComponents("/proj/src/Main.GO")
	require.NoError(t, err)

	dir, _ := p.Get(c.DirID)
	name, _ := p.Get(c.NameID)
	ext, _ := p.Get(c.ExtID)
	full, _ := p.Get(c.FullPathID)

	require.Equal(t, "/proj/src", dir)
	require.Equal(t, "Main.GO", name)
	require.Equal(t, ".go", ext)
	require.Equal(t, "/proj/src/Main.GO", full)
}

func TestInternPathComponentsDotfileHasNoExtension(t *testing.T) {
	p := New()
	c, err := p.InternPathComponents("/home/user/.gitignore")
	require.NoError(t, err)

	ext, _ := p.Get(c.ExtID)
	require.Equal(t, "", ext)
	require.Zero(t, c.ExtID)
}

func TestInternConcurrentSafe(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	ids := make([]uint32, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, err := p.Intern("shared-value")
			require.NoError(t, err)
			ids[i] = uint32(id)
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(ids); i++ {
		require.Equal(t, ids[0], ids[i])
	}
}

func TestLookupFindsInternedValueWithoutAllocating(t *testing.T) {
	p := New()
	id, err := p.Intern(".txt")
	require.NoError(t, err)

	got, ok := p.Lookup(".txt")
	require.True(t, ok)
	require.Equal(t, id, got)

	statsBefore := p.Stats()
	_, ok = p.Lookup(".neverinterned")
	require.False(t, ok)
	statsAfter := p.Stats()
	require.Equal(t, statsBefore.TotalStrings, statsAfter.TotalStrings)
}

func TestExportOrderedReplayReproducesIds(t *testing.T) {
	p := New()
	values := []string{"/a", "/a/b", "/a/b/c.go", "readme.md", "x", "y", "z", "longer-name-here"}
	original := make(map[string]uint32, len(values))
	for _, v := range values {
		id, err := p.Intern(v)
		require.NoError(t, err)
		original[v] = uint32(id)
	}

	dump := p.ExportOrdered()

	fresh := New()
	for _, s := range dump {
		id, err := fresh.Intern(s)
		require.NoError(t, err)
		require.Equal(t, original[s], uint32(id), "replayed id for %q must match original", s)
	}
}

func TestStatsReportsCompressionRatio(t *testing.T) {
	p := New()
	_, _ = p.Intern("abc")
	_, _ = p.Intern("abc")
	_, _ = p.Intern("defgh")

	stats := p.Stats()
	require.Equal(t, 2, stats.TotalStrings)
	require.Equal(t, int64(8), stats.TotalPooledBytes) // "abc" + "defgh"
	require.Equal(t, int64(11), stats.RawInputBytes)   // "abc"+"abc"+"defgh"
	require.InDelta(t, 8.0/11.0, stats.CompressionRatio, 0.0001)
}
