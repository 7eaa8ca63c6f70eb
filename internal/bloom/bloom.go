// Package bloom implements a small fixed-size Bloom filter over interned
// name ids, used by the query executor to fast-reject substring searches
// that cannot possibly match any indexed name.
//
// Hashing reuses xxHash64 the same way the string pool does for shard
// selection (internal/stringpool/pool.go), splitting one 64-bit hash into
// two independent halves and deriving k probe positions from them via the
// standard double-hashing construction (Kirsch-Mitzenmacher), avoiding k
// separate hash computations per insert/test.
package bloom

import (
	"math"

	"github.com/cespare/xxhash/v2"
)

// Filter is a fixed-bit-array Bloom filter.
type Filter struct {
	bits []uint64
	m    uint64 // total bits
	k    int    // number of hash probes
}

// New sizes a filter for expectedItems at falsePositiveRate, per the
// standard Bloom-filter sizing formulas:
//
//	m = -n*ln(p) / (ln2)^2
//	k = (m/n) * ln2
func New(expectedItems int, falsePositiveRate float64) *Filter {
	if expectedItems < 1 {
		expectedItems = 1
	}
	if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
		falsePositiveRate = 0.01
	}

	n := float64(expectedItems)
	ln2 := math.Ln2
	m := math.Ceil(-n * math.Log(falsePositiveRate) / (ln2 * ln2))
	if m < 64 {
		m = 64
	}
	k := int(math.Round((m / n) * ln2))
	if k < 1 {
		k = 1
	}
	if k > 16 {
		k = 16
	}

	words := (uint64(m) + 63) / 64
	return &Filter{
		bits: make([]uint64, words),
		m:    words * 64,
		k:    k,
	}
}

func (f *Filter) probes(data []byte) (h1, h2 uint64) {
	sum := xxhash.Sum64(data)
	h1 = sum
	h2 = (sum >> 32) | (sum << 32) // rotate so h2 is never zero when h1 isn't
	if h2 == 0 {
		h2 = 0x9e3779b97f4a7c15 // golden-ratio constant, never zero
	}
	return h1, h2
}

// AddUint32 inserts a uint32 key (a StringID/name_id) into the filter.
func (f *Filter) AddUint32(v uint32) {
	var buf [4]byte
	le32(buf[:], v)
	f.Add(buf[:])
}

// Add inserts an arbitrary byte key into the filter.
func (f *Filter) Add(data []byte) {
	h1, h2 := f.probes(data)
	for i := 0; i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.m
		f.bits[bit/64] |= 1 << (bit % 64)
	}
}

// MayContainUint32 reports whether v might have been added. False means
// definitely not added; true means possibly added.
func (f *Filter) MayContainUint32(v uint32) bool {
	var buf [4]byte
	le32(buf[:], v)
	return f.MayContain(buf[:])
}

// MayContain reports whether data might have been added.
func (f *Filter) MayContain(data []byte) bool {
	h1, h2 := f.probes(data)
	for i := 0; i < f.k; i++ {
		bit := (h1 + uint64(i)*h2) % f.m
		if f.bits[bit/64]&(1<<(bit%64)) == 0 {
			return false
		}
	}
	return true
}

// Reset clears every bit, leaving sizing untouched.
func (f *Filter) Reset() {
	for i := range f.bits {
		f.bits[i] = 0
	}
}

// Trigrams splits s (case-folded by the caller beforehand, if desired)
// into its overlapping 3-byte windows. Strings shorter than 3 bytes yield
// no trigrams, since the index's fast-reject path only applies when the
// search text is at least that long.
func Trigrams(s string) [][]byte {
	if len(s) < 3 {
		return nil
	}
	out := make([][]byte, 0, len(s)-2)
	for i := 0; i+3 <= len(s); i++ {
		out = append(out, []byte(s[i:i+3]))
	}
	return out
}

// AddTrigramsOf inserts every trigram of s into the filter.
func (f *Filter) AddTrigramsOf(s string) {
	for _, tg := range Trigrams(s) {
		f.Add(tg)
	}
}

// MayContainSubstring reports whether the needle could occur in some
// indexed name. A needle shorter than 3 bytes always returns true (the
// filter has no signal for it); otherwise every trigram of the needle
// must be present for the filter to admit a possible match.
func (f *Filter) MayContainSubstring(needle string) bool {
	trigrams := Trigrams(needle)
	if len(trigrams) == 0 {
		return true
	}
	for _, tg := range trigrams {
		if !f.MayContain(tg) {
			return false
		}
	}
	return true
}

func le32(buf []byte, v uint32) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
	buf[3] = byte(v >> 24)
}
