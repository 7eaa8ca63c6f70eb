// Package ffdebug is a minimal gated diagnostic logger. The engine is a
// library embedded into other processes, so it never owns stdout/stderr by
// default: callers opt in with SetOutput, gating everything behind an
// enabled flag and a settable writer instead of importing a logging
// framework.
package ffdebug

import (
	"fmt"
	"io"
	"sync"
	"time"
)

var (
	mu      sync.Mutex
	out     io.Writer
	enabled bool
)

// SetOutput directs diagnostic output to w. Passing nil disables output.
func SetOutput(w io.Writer) {
	mu.Lock()
	defer mu.Unlock()
	out = w
	enabled = w != nil
}

// Enabled reports whether diagnostic output is currently active.
func Enabled() bool {
	mu.Lock()
	defer mu.Unlock()
	return enabled
}

func writer() io.Writer {
	mu.Lock()
	defer mu.Unlock()
	return out
}

// Log writes a timestamped, component-tagged line if output is enabled.
func Log(component, format string, args ...interface{}) {
	w := writer()
	if w == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintf(w, "[%s] %s: %s\n", time.Now().Format(time.RFC3339Nano), component, msg)
}

// LogIndexing logs under the "indexing" component tag.
func LogIndexing(format string, args ...interface{}) { Log("indexing", format, args...) }

// LogSearch logs under the "search" component tag.
func LogSearch(format string, args ...interface{}) { Log("search", format, args...) }

// LogMonitor logs under the "monitor" component tag.
func LogMonitor(format string, args ...interface{}) { Log("monitor", format, args...) }

// LogPool logs under the "pool" component tag.
func LogPool(format string, args ...interface{}) { Log("pool", format, args...) }
