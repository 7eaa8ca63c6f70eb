package simdmatch

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestContainsFindsSubstring(t *testing.T) {
	require.True(t, ContainsString("the quick brown fox", "quick", false))
	require.True(t, ContainsString("the quick brown fox", "fox", false))
	require.False(t, ContainsString("the quick brown fox", "slow", false))
}

func TestContainsEmptyNeedleAlwaysMatches(t *testing.T) {
	require.True(t, ContainsString("anything", "", false))
	require.True(t, ContainsString("", "", false))
}

func TestContainsNeedleLongerThanHaystack(t *testing.T) {
	require.False(t, ContainsString("hi", "hello", false))
}

func TestContainsCaseInsensitive(t *testing.T) {
	require.True(t, ContainsString("README.MD", "readme", true))
	require.False(t, ContainsString("README.MD", "readme", false))
}

func TestContainsAgreesAcrossTiers(t *testing.T) {
	haystack := []byte(strings.Repeat("abcdefgh", 20) + "NEEDLE" + strings.Repeat("ijklmnop", 20))
	needle := []byte("NEEDLE")

	for _, tier := range []Tier{TierScalar, Tier128, Tier256} {
		require.True(t, containsTier(haystack, needle, tier), "tier %s should find needle", tier)
	}

	missing := []byte("ABSENT")
	for _, tier := range []Tier{TierScalar, Tier128, Tier256} {
		require.False(t, containsTier(haystack, missing, tier), "tier %s should not find missing needle", tier)
	}
}

func TestContainsAgreesAcrossTiersAtChunkBoundary(t *testing.T) {
	// Needle straddling a 16/32-byte chunk boundary exercises the tail path.
	haystack := []byte(strings.Repeat("x", 30) + "boundary-needle" + strings.Repeat("y", 30))
	needle := []byte("boundary-needle")
	for _, tier := range []Tier{TierScalar, Tier128, Tier256} {
		require.True(t, containsTier(haystack, needle, tier), "tier %s", tier)
	}
}

func TestEqualsIgnoreCase(t *testing.T) {
	require.True(t, EqualsIgnoreCase("Hello", "hello"))
	require.False(t, EqualsIgnoreCase("Hello", "world"))
}

func TestMatchesWildcardPrefixSuffix(t *testing.T) {
	require.True(t, MatchesWildcard("report.pdf", "report.*", false))
	require.True(t, MatchesWildcard("report.pdf", "*.pdf", false))
	require.False(t, MatchesWildcard("report.pdf", "*.docx", false))
}

func TestMatchesWildcardMiddleStar(t *testing.T) {
	require.True(t, MatchesWildcard("a.cs", "a*.cs", false))
	require.True(t, MatchesWildcard("ab.cs", "a*.cs", false))
	require.False(t, MatchesWildcard("abc.cpp", "a*.cs", false))
}

func TestMatchesWildcardQuestionMark(t *testing.T) {
	require.True(t, MatchesWildcard("cat", "c?t", false))
	require.True(t, MatchesWildcard("cot", "c?t", false))
	require.False(t, MatchesWildcard("ct", "c?t", false))
	require.False(t, MatchesWildcard("care", "c?t", false))
}

func TestMatchesWildcardCombinedStarAndQuestion(t *testing.T) {
	require.True(t, MatchesWildcard("config.test.go", "*.?est.go", false))
	require.False(t, MatchesWildcard("config.best.go", "*.?est.go", false))
}

func TestMatchesWildcardCaseInsensitive(t *testing.T) {
	require.True(t, MatchesWildcard("REPORT.PDF", "*.pdf", true))
	require.False(t, MatchesWildcard("REPORT.PDF", "*.pdf", false))
}

func TestMatchesWildcardExactNoWildcards(t *testing.T) {
	require.True(t, MatchesWildcard("exact", "exact", false))
	require.False(t, MatchesWildcard("exact", "exacter", false))
}

func TestMatchesWildcardAllStars(t *testing.T) {
	require.True(t, MatchesWildcard("anything at all", "***", false))
}

func TestHasWildcardChars(t *testing.T) {
	require.True(t, HasWildcardChars("*.go"))
	require.True(t, HasWildcardChars("fo?bar"))
	require.False(t, HasWildcardChars("literal"))
}
