// Package ffconfig holds EngineConfig, the set of caller-facing knobs that
// parameterize an Engine, and its on-disk KDL representation. It is scoped
// to indexing and monitoring concerns only: no search-ranking or
// semantic-scoring fields, since those belong to the UI/CLI layer, out of
// scope for this package.
package ffconfig

import (
	"fmt"
	"runtime"
)

const (
	DefaultMaxFileSize     int64 = 512 * 1024 * 1024
	DefaultBatchSize             = 4096
	DefaultWatchDebounceMs       = 300
	DefaultMFTBufferBytes        = 1 << 20 // 1 MiB default
	MinMFTBufferBytes            = 64 << 10
	MaxMFTBufferBytes            = 4 << 20
	mftBufferAlignment           = 4096
)

// Config is the engine's caller-facing configuration, EngineConfig.
type Config struct {
	Roots              []string
	ExcludedPaths      []string
	ExcludedExtensions []string
	MaxFileSize        int64
	IncludeHidden      bool
	IncludeSystem      bool
	SkipSystemFiles    bool
	MaxDepth           int
	BatchSize          int
	ParallelWorkers    int
	EnableMonitoring   bool
	WatchDebounceMs    int
	MFTBufferBytes     int
}

// Default returns the baseline configuration new engines start from.
func Default() *Config {
	return &Config{
		Roots:              nil,
		ExcludedPaths:      []string{"**/.git/**", "**/node_modules/**"},
		ExcludedExtensions: nil,
		MaxFileSize:        DefaultMaxFileSize,
		IncludeHidden:      false,
		IncludeSystem:      false,
		SkipSystemFiles:    true,
		MaxDepth:           0,
		BatchSize:          DefaultBatchSize,
		ParallelWorkers:    0,
		EnableMonitoring:   true,
		WatchDebounceMs:    DefaultWatchDebounceMs,
		MFTBufferBytes:     DefaultMFTBufferBytes,
	}
}

// Workers resolves ParallelWorkers, substituting runtime.NumCPU() for the
// auto-detect sentinel of 0.
func (c *Config) Workers() int {
	if c.ParallelWorkers > 0 {
		return c.ParallelWorkers
	}
	return runtime.NumCPU()
}

// Normalize clamps and defaults fields so the engine always sees a
// MFT buffer ("Invalid values are clamped, not rejected") and fills in
// zero-valued knobs with their defaults.
func (c *Config) Normalize() {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.WatchDebounceMs <= 0 {
		c.WatchDebounceMs = DefaultWatchDebounceMs
	}
	c.MFTBufferBytes = ClampMFTBuffer(c.MFTBufferBytes)
}

// ClampMFTBuffer enforces the valid range [64 KiB, 4 MiB], aligned down
// to 4 KiB.
func ClampMFTBuffer(bytes int) int {
	if bytes <= 0 {
		bytes = DefaultMFTBufferBytes
	}
	if bytes < MinMFTBufferBytes {
		bytes = MinMFTBufferBytes
	}
	if bytes > MaxMFTBufferBytes {
		bytes = MaxMFTBufferBytes
	}
	bytes -= bytes % mftBufferAlignment
	if bytes < mftBufferAlignment {
		bytes = mftBufferAlignment
	}
	return bytes
}

// Validate reports the first structurally invalid field.
func (c *Config) Validate() error {
	if c.MaxFileSize < 0 {
		return fmt.Errorf("MaxFileSize must be >= 0, got %d", c.MaxFileSize)
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("MaxDepth must be >= 0, got %d", c.MaxDepth)
	}
	if c.ParallelWorkers < 0 {
		return fmt.Errorf("ParallelWorkers must be >= 0, got %d", c.ParallelWorkers)
	}
	return nil
}
