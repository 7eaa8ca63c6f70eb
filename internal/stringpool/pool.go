// Package stringpool implements a shard-striped,
// xxHash64-keyed intern table that deduplicates path fragments (full
// paths, directories, names, extensions) down to 32-bit ids.
//
// The id layout packs three fields so a lookup never has to consult a
// global table: the top bits select the shard (so concurrent interners on
// different shards never contend), the next nibble carries the pool's
// generation at the time of allocation (so a Cleanup() invalidates every
// outstanding id without a scan), and the low bits are a per-shard
// monotonic offset.
package stringpool

import (
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"

	"github.com/standardbeagle/ffindex/internal/ffdebug"
	"github.com/standardbeagle/ffindex/internal/fferrors"
	"github.com/standardbeagle/ffindex/internal/types"
)

const (
	shardBits     = 6
	shardCount    = 1 << shardBits
	shardMask     = shardCount - 1
	genBits       = 4
	genMask       = (1 << genBits) - 1
	offsetBits    = 32 - shardBits - genBits
	offsetMask    = (1 << offsetBits) - 1
	maxOffset     = offsetMask // per-shard exhaustion point
)

func packID(shard uint32, gen uint32, offset uint32) types.StringID {
	return types.StringID((shard&shardMask)<<(32-shardBits) | (gen&genMask)<<offsetBits | (offset & offsetMask))
}

func unpackID(id types.StringID) (shard, gen, offset uint32) {
	v := uint32(id)
	shard = v >> (32 - shardBits)
	gen = (v >> offsetBits) & genMask
	offset = v & offsetMask
	return
}

type entry struct {
	bytes  string
	folded string
	hasFolded bool
}

type shard struct {
	mu      sync.RWMutex
	lookup  map[string]types.StringID
	entries []entry // indexed by offset-1 (offset 0 unused within a shard)
}

// Stats reports pool-wide size and dedup counters.
type Stats struct {
	TotalStrings     int
	TotalPooledBytes int64
	RawInputBytes    int64
	CompressionRatio float64
	PeakMemoryBytes  int64
}

// Pool is the C1 StringPool.
type Pool struct {
	shards     [shardCount]*shard
	generation atomic.Uint32

	rawBytes    atomic.Int64 // sum of len(s) across every Intern call, including repeats
	pooledBytes atomic.Int64 // sum of len(s) across unique entries only
	peakBytes   atomic.Int64
}

// New creates an empty Pool.
func New() *Pool {
	p := &Pool{}
	for i := range p.shards {
		p.shards[i] = &shard{lookup: make(map[string]types.StringID)}
	}
	return p
}

func (p *Pool) shardFor(s string) (*shard, uint32) {
	h := xxhash.Sum64String(s)
	idx := uint32(h>>58) & shardMask // top 6 bits of the 64-bit hash select the shard
	return p.shards[idx], idx
}

// Intern deduplicates s and returns its id. Id 0 is reserved for "".
func (p *Pool) Intern(s string) (types.StringID, error) {
	p.rawBytes.Add(int64(len(s)))

	if s == "" {
		return 0, nil
	}

	sh, shardIdx := p.shardFor(s)

	sh.mu.RLock()
	if id, ok := sh.lookup[s]; ok {
		sh.mu.RUnlock()
		return id, nil
	}
	sh.mu.RUnlock()

	sh.mu.Lock()
	defer sh.mu.Unlock()

	if id, ok := sh.lookup[s]; ok {
		return id, nil
	}

	offset := uint32(len(sh.entries)) + 1
	if offset > maxOffset {
		ffdebug.LogPool("shard %d exhausted at offset %d", shardIdx, offset)
		return 0, fferrors.ErrPoolFull
	}

	id := packID(shardIdx, p.generation.Load(), offset)
	sh.entries = append(sh.entries, entry{bytes: s})
	sh.lookup[s] = id

	p.pooledBytes.Add(int64(len(s)))
	if pooled := p.pooledBytes.Load(); pooled > p.peakBytes.Load() {
		p.peakBytes.Store(pooled)
	}

	return id, nil
}

// Lookup returns s's id without interning it. It is the read-only
// counterpart to Intern, used by query compilation to resolve a filter
// value (an extension, a base path) to an id: if the value was never
// interned, no record can possibly carry it, and the caller can treat
// the filter as an always-empty match instead of polluting the pool
// with a one-off entry.
func (p *Pool) Lookup(s string) (types.StringID, bool) {
	if s == "" {
		return 0, true
	}
	sh, _ := p.shardFor(s)
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	id, ok := sh.lookup[s]
	return id, ok
}

// MustIntern is a convenience for call sites that treat PoolFull as fatal
// (the engine's ingestion path treats pool exhaustion as fatal).
func (p *Pool) MustIntern(s string) types.StringID {
	id, err := p.Intern(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (p *Pool) entryFor(id types.StringID) (*shard, *entry, bool) {
	if id == 0 {
		return nil, nil, true
	}
	shardIdx, gen, offset := unpackID(id)
	if shardIdx >= shardCount || gen != p.generation.Load()&genMask {
		return nil, nil, false
	}
	sh := p.shards[shardIdx]
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	if offset == 0 || int(offset-1) >= len(sh.entries) {
		return nil, nil, false
	}
	return sh, &sh.entries[offset-1], true
}

// Get returns the interned bytes for id, or ok=false if id is unknown or
// belongs to a prior generation.
func (p *Pool) Get(id types.StringID) (string, bool) {
	if id == 0 {
		return "", true
	}
	sh, e, ok := p.entryFor(id)
	if !ok {
		return "", false
	}
	sh.mu.RLock()
	defer sh.mu.RUnlock()
	return e.bytes, true
}

// GetFolded returns the lowercase form of id's string, computing and
// caching it on first access.
func (p *Pool) GetFolded(id types.StringID) (string, bool) {
	if id == 0 {
		return "", true
	}
	shardIdx, gen, offset := unpackID(id)
	if shardIdx >= shardCount || gen != p.generation.Load()&genMask {
		return "", false
	}
	sh := p.shards[shardIdx]

	sh.mu.RLock()
	if offset == 0 || int(offset-1) >= len(sh.entries) {
		sh.mu.RUnlock()
		return "", false
	}
	e := &sh.entries[offset-1]
	if e.hasFolded {
		folded := e.folded
		sh.mu.RUnlock()
		return folded, true
	}
	raw := e.bytes
	sh.mu.RUnlock()

	folded := foldCase(raw)

	sh.mu.Lock()
	e.folded = folded
	e.hasFolded = true
	sh.mu.Unlock()

	return folded, true
}

// IsCurrent reports whether id belongs to the pool's current generation.
func (p *Pool) IsCurrent(id types.StringID) bool {
	if id == 0 {
		return true
	}
	_, gen, _ := unpackID(id)
	return gen == p.generation.Load()&genMask
}

// Stats reports pool-wide counters.
func (p *Pool) Stats() Stats {
	total := 0
	for _, sh := range p.shards {
		sh.mu.RLock()
		total += len(sh.entries)
		sh.mu.RUnlock()
	}
	pooled := p.pooledBytes.Load()
	raw := p.rawBytes.Load()
	ratio := 1.0
	if raw > 0 {
		ratio = float64(pooled) / float64(raw)
	}
	return Stats{
		TotalStrings:     total,
		TotalPooledBytes: pooled,
		RawInputBytes:    raw,
		CompressionRatio: ratio,
		PeakMemoryBytes:  p.peakBytes.Load(),
	}
}

// ExportOrdered returns every interned string ordered shard-major, then
// by insertion offset within each shard. Re-Interning the result in the
// same order into a fresh, empty Pool reproduces the identical ids: shard
// selection is a pure function of the string and each shard's offset
// counter only depends on how many entries have already landed in that
// shard, so replaying shard-major order is sufficient even though it
// isn't global insertion order.
func (p *Pool) ExportOrdered() []string {
	var out []string
	for _, sh := range p.shards {
		sh.mu.RLock()
		for _, e := range sh.entries {
			out = append(out, e.bytes)
		}
		sh.mu.RUnlock()
	}
	return out
}

// Cleanup discards every mapping and bumps the generation counter. Every
// id issued before this call becomes invalid; callers must have released
// all outstanding FileRecords first.
func (p *Pool) Cleanup() {
	for _, sh := range p.shards {
		sh.mu.Lock()
		sh.lookup = make(map[string]types.StringID)
		sh.entries = nil
		sh.mu.Unlock()
	}
	p.generation.Add(1)
	p.rawBytes.Store(0)
	p.pooledBytes.Store(0)
	p.peakBytes.Store(0)
}

// foldCase applies full Unicode lowercase, locale-independent. It is
// the single fold function used both for cached per-id folded forms and
// for query text, so the two are always
// comparable.
func foldCase(s string) string {
	return strings.ToLower(s)
}
