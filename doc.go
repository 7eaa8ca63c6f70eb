// Package ffindex is a high-throughput local file search and indexing
// engine: NTFS MFT/USN enumeration on Windows, a POSIX directory walker
// everywhere else, a compact interned-string index, a SIMD-tiered text
// matcher, and an fsnotify-backed change monitor that keeps the index
// live after the initial scan completes.
//
// Engine is the single entry point. Construct one with New, call
// StartIndexing to populate it, and Search or SearchRealtime against it
// while it (optionally) keeps itself current via StartMonitoring.
package ffindex
