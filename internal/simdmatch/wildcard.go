package simdmatch

import "strings"

// MatchesWildcard matches text against a glob-style pattern: the pattern is
// conceptually a sequence of literal runs separated by '*' (zero or more
// chars) and '?' (exactly one char). Runs are anchored at the start unless
// the pattern begins with '*', anchored at the end unless it ends with
// '*', and matched left-to-right in between using Contains — with a
// single-segment backtrack, i.e. each interior run is found at its
// leftmost occurrence at-or-after the current cursor and the cursor never
// rewinds past a prior run's start.
func MatchesWildcard(text, pattern string, caseInsensitive bool) bool {
	if caseInsensitive {
		text = strings.ToLower(text)
		pattern = strings.ToLower(pattern)
	}
	if strings.ContainsRune(pattern, '?') {
		return matchGreedy(text, pattern)
	}
	return matchLiteralRuns(text, pattern)
}

// matchLiteralRuns handles the '?'-free case by splitting on '*' and
// anchoring/searching each resulting literal run, using Contains-style
// substring search for interior runs.
func matchLiteralRuns(text, pattern string) bool {
	if !strings.Contains(pattern, "*") {
		return text == pattern
	}

	leadingStar := strings.HasPrefix(pattern, "*")
	trailingStar := strings.HasSuffix(pattern, "*")

	var runs []string
	for _, part := range strings.Split(pattern, "*") {
		if part != "" {
			runs = append(runs, part)
		}
	}
	if len(runs) == 0 {
		return true // pattern is all '*'
	}

	cursor := 0
	for i, run := range runs {
		isFirst := i == 0
		isLast := i == len(runs)-1

		switch {
		case isFirst && !leadingStar:
			if !strings.HasPrefix(text[cursor:], run) {
				return false
			}
			cursor += len(run)
			if isLast && !trailingStar && cursor != len(text) {
				return false
			}
		case isLast && !trailingStar:
			start := len(text) - len(run)
			if start < cursor || !strings.HasSuffix(text, run) {
				return false
			}
			cursor = len(text)
		default:
			idx := strings.Index(text[cursor:], run)
			if idx < 0 {
				return false
			}
			cursor += idx + len(run)
		}
	}
	return true
}

// matchGreedy handles patterns containing '?' with the classic two-pointer
// greedy-with-single-backtrack scan: '*' remembers the furthest point it
// could retry from, '?' always consumes exactly one character.
func matchGreedy(text, pattern string) bool {
	ti, pi := 0, 0
	starIdx, starMatch := -1, 0

	for ti < len(text) {
		switch {
		case pi < len(pattern) && (pattern[pi] == '?' || pattern[pi] == text[ti]):
			ti++
			pi++
		case pi < len(pattern) && pattern[pi] == '*':
			starIdx = pi
			starMatch = ti
			pi++
		case starIdx != -1:
			pi = starIdx + 1
			starMatch++
			ti = starMatch
		default:
			return false
		}
	}

	for pi < len(pattern) && pattern[pi] == '*' {
		pi++
	}
	return pi == len(pattern)
}

// HasWildcardChars reports whether s contains '*' or '?', used by the
// query compiler to auto-detect wildcard mode when the caller didn't
// explicitly request it.
func HasWildcardChars(s string) bool {
	return strings.ContainsAny(s, "*?")
}
