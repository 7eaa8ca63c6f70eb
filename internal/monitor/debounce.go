package monitor

import (
	"sync"
	"time"
)

// pendingKind is the most recent fsnotify operation seen for a path
// during the current debounce window.
type pendingKind int

const (
	pendingCreated pendingKind = iota
	pendingModified
	pendingRemoved
	pendingRenamedFrom
)

// coalesce resolves two pendingKinds seen for the same path within one
// debounce window into the single kind that should survive: a later
// Removed always wins (the path is gone, nothing else matters), and a
// Created followed by a Modified collapses back to Created since the
// caller never saw the file before this window opened.
func coalesce(prev, next pendingKind) pendingKind {
	if next == pendingRemoved {
		return pendingRemoved
	}
	if prev == pendingCreated && next == pendingModified {
		return pendingCreated
	}
	return next
}

type pendingEvent struct {
	path string
	kind pendingKind
}

// debouncer coalesces bursts of per-path events into periodic batches,
// grounded on DebouncedRebuilder
// (internal/indexing/debounced_rebuilder.go): a single reset timer fires
// flush once no new event has arrived for interval, carrying whatever
// accumulated in the meantime. Generalized here from a single pending
// set to an ordered, per-path-coalesced batch, since flush needs to
// pair Rename/Create events in arrival order.
type debouncer struct {
	interval time.Duration
	flush    func([]pendingEvent)

	mu      sync.Mutex
	order   []string
	pending map[string]pendingKind
	timer   *time.Timer
}

func newDebouncer(interval time.Duration, flush func([]pendingEvent)) *debouncer {
	return &debouncer{
		interval: interval,
		flush:    flush,
		pending:  make(map[string]pendingKind),
	}
}

// add records one event for path, coalescing it with any event already
// pending for the same path in this window, and (re)starts the debounce
// timer.
func (d *debouncer) add(path string, kind pendingKind) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if prev, ok := d.pending[path]; ok {
		d.pending[path] = coalesce(prev, kind)
	} else {
		d.pending[path] = kind
		d.order = append(d.order, path)
	}

	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.interval, d.fire)
}

// fire snapshots and clears the pending batch, then hands it to flush.
// Called off the timer goroutine, never while the debouncer's own lock
// is held elsewhere.
func (d *debouncer) fire() {
	d.mu.Lock()
	if len(d.order) == 0 {
		d.mu.Unlock()
		return
	}
	batch := make([]pendingEvent, 0, len(d.order))
	for _, path := range d.order {
		batch = append(batch, pendingEvent{path: path, kind: d.pending[path]})
	}
	d.order = nil
	d.pending = make(map[string]pendingKind)
	d.mu.Unlock()

	d.flush(batch)
}

// run blocks until done is closed, then stops any in-flight timer so it
// cannot fire (and call flush) after the Monitor has shut down.
func (d *debouncer) run(done <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()
	<-done

	d.mu.Lock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.mu.Unlock()
}
