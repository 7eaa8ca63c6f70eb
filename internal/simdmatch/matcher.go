// Package simdmatch implements C2: vectorized substring, wildcard, and
// case-insensitive comparisons over byte spans.
//
// Go has no portable SIMD intrinsics in its standard library, so "vector
// lane width" here means the chunk stride the contains scan advances by;
// golang.org/x/sys/cpu picks the stride once at process start the same way
// a cgo/asm backend would pick an instruction set, and every chunk is then
// scanned with a broadcast-compare-then-verify strategy: compare the
// chunk's first and last bytes against the needle's first and last bytes,
// and only pay for an interior byte-by-byte check on a candidate
// alignment.
package simdmatch

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/sys/cpu"
)

// Tier identifies the chunk stride selected at startup.
type Tier int

const (
	TierScalar Tier = iota
	Tier128 // 16-byte stride
	Tier256 // 32-byte stride
)

func (t Tier) String() string {
	switch t {
	case Tier256:
		return "256-bit"
	case Tier128:
		return "128-bit"
	default:
		return "scalar"
	}
}

// activeTier is selected once at process startup and cached; re-detecting
// per call would cost more than the scan it gates.
var activeTier = detectTier()

func detectTier() Tier {
	if cpu.X86.HasAVX2 {
		return Tier256
	}
	if cpu.X86.HasSSE2 {
		return Tier128
	}
	return TierScalar
}

// ActiveTier reports the dispatch tier chosen for this process.
func ActiveTier() Tier { return activeTier }

func chunkSize(t Tier) int {
	switch t {
	case Tier256:
		return 32
	case Tier128:
		return 16
	default:
		return 1
	}
}

// Contains reports whether needle occurs in haystack.
func Contains(haystack, needle []byte, caseInsensitive bool) bool {
	if len(needle) == 0 {
		return true
	}
	if len(needle) > len(haystack) {
		return false
	}

	if caseInsensitive {
		haystack = foldBytes(haystack)
		needle = foldBytes(needle)
	}

	return containsTier(haystack, needle, activeTier)
}

// containsTier runs the broadcast-compare scan at the given chunk stride,
// falling back to a scalar byte-by-byte check inside each chunk once a
// first/last byte alignment candidate is found. tier is a parameter
// (rather than always reading activeTier) so tests can assert every tier
// agrees on the same inputs regardless of which CPU the test runs on.
func containsTier(haystack, needle []byte, tier Tier) bool {
	n := len(needle)
	first, last := needle[0], needle[n-1]
	stride := chunkSize(tier)

	limit := len(haystack) - n + 1
	i := 0
	for ; i+stride <= limit; i += stride {
		for j := 0; j < stride; j++ {
			pos := i + j
			if haystack[pos] != first {
				continue
			}
			if pos+n-1 < len(haystack) && haystack[pos+n-1] == last && bytesEqual(haystack[pos:pos+n], needle) {
				return true
			}
		}
	}
	// Tail: remaining positions that didn't fill a whole chunk.
	for ; i < limit; i++ {
		if haystack[i] == first && haystack[i+n-1] == last && bytesEqual(haystack[i:i+n], needle) {
			return true
		}
	}
	return false
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func foldBytes(b []byte) []byte {
	if isASCII(b) {
		out := make([]byte, len(b))
		for i, c := range b {
			if c >= 'A' && c <= 'Z' {
				c += 'a' - 'A'
			}
			out[i] = c
		}
		return out
	}
	return []byte(strings.ToLower(string(b)))
}

func isASCII(b []byte) bool {
	for _, c := range b {
		if c >= utf8.RuneSelf {
			return false
		}
	}
	return true
}

// EqualsIgnoreCase compares a and b under full Unicode case folding.
func EqualsIgnoreCase(a, b string) bool {
	return strings.EqualFold(a, b)
}

// ContainsString is the string-typed convenience wrapper over Contains.
func ContainsString(haystack, needle string, caseInsensitive bool) bool {
	return Contains([]byte(haystack), []byte(needle), caseInsensitive)
}
