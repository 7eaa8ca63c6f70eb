// Package monitor implements the ChangeMonitor: a fsnotify-backed watcher
// that recursively watches a set of roots and emits debounced change.Event
// values.
//
// Grounded on FileWatcher/eventDebouncer
// (internal/indexing/watcher.go): recursive watch registration with
// symlink-cycle detection, doublestar-based exclude matching before a
// directory is watched, and a per-path debounce timer that coalesces
// bursts of events before anything downstream sees them. Reworked here
// from per-FileEventType callbacks into a single change.Event channel so
// the caller (the engine) owns how events are folded into the Index.
package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/standardbeagle/ffindex/internal/change"
	"github.com/standardbeagle/ffindex/internal/ffdebug"
	"github.com/standardbeagle/ffindex/internal/fferrors"
)

// outChannelCapacity bounds the Monitor's output channel. Once full,
// new events evict the oldest queued event and replace it with a Resync
// for the affected root: a caller that has fallen this far behind needs
// a full re-enumeration more than it needs the exact event sequence.
const outChannelCapacity = 4096

// Options configures a Monitor.
type Options struct {
	IncludeSubdirectories bool
	ExcludedPaths         []string
	DebounceInterval      time.Duration
}

func (o Options) debounce() time.Duration {
	if o.DebounceInterval <= 0 {
		return 300 * time.Millisecond
	}
	return o.DebounceInterval
}

// Monitor is the C5 ChangeMonitor.
type Monitor struct {
	opts    Options
	watcher *fsnotify.Watcher
	deb     *debouncer

	out chan change.Event
	err chan error

	mu       sync.Mutex
	roots    []string
	visited  map[string]bool
	watching map[string]bool

	closeOnce sync.Once
	startOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a Monitor. Start must be called before any events appear
// on Events().
func New(opts Options) (*Monitor, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	m := &Monitor{
		opts:     opts,
		watcher:  w,
		out:      make(chan change.Event, outChannelCapacity),
		err:      make(chan error, 16),
		visited:  make(map[string]bool),
		watching: make(map[string]bool),
		done:     make(chan struct{}),
	}
	m.deb = newDebouncer(opts.debounce(), m.flush)
	return m, nil
}

// Events returns the channel change.Events are published on.
func (m *Monitor) Events() <-chan change.Event { return m.out }

// Errors returns the channel non-fatal watcher errors are published on,
// after the monitor's one reconnect attempt for the affected root has
// already failed.
func (m *Monitor) Errors() <-chan error { return m.err }

// Start begins watching root and every subdirectory beneath it (subject
// to opts.IncludeSubdirectories and opts.ExcludedPaths). It may be called
// more than once to add additional roots to a single Monitor; the event
// pump and debouncer goroutines are started only on the first call.
func (m *Monitor) Start(root string) error {
	m.mu.Lock()
	m.roots = append(m.roots, root)
	m.mu.Unlock()

	if err := m.addWatches(root); err != nil {
		return err
	}

	m.startOnce.Do(func() {
		m.wg.Add(2)
		go m.processEvents()
		go m.deb.run(m.done, &m.wg)
	})
	return nil
}

// Stop releases the underlying watcher and stops emitting events.
func (m *Monitor) Stop() error {
	m.closeOnce.Do(func() { close(m.done) })
	err := m.watcher.Close()
	m.wg.Wait()
	return err
}

func (m *Monitor) addWatches(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, walkErr error) error {
		if walkErr != nil {
			return nil // skip unreadable entries, keep walking
		}
		if !info.IsDir() {
			return nil
		}

		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return nil
		}
		m.mu.Lock()
		seen := m.visited[realPath]
		m.visited[realPath] = true
		m.mu.Unlock()
		if seen {
			return filepath.SkipDir
		}

		if path != root && m.isExcluded(path) {
			return filepath.SkipDir
		}
		if path != root && !m.opts.IncludeSubdirectories {
			return filepath.SkipDir
		}

		if err := m.watcher.Add(path); err != nil {
			ffdebug.LogMonitor("failed to watch %s: %v", path, err)
			return nil
		}
		m.mu.Lock()
		m.watching[path] = true
		m.mu.Unlock()
		return nil
	})
}

func (m *Monitor) isExcluded(path string) bool {
	normalized := strings.TrimPrefix(filepath.ToSlash(path), "/")
	for _, pattern := range m.opts.ExcludedPaths {
		if matched, _ := doublestar.Match(pattern, normalized); matched {
			return true
		}
	}
	return false
}

func (m *Monitor) processEvents() {
	defer m.wg.Done()

	reconnected := false
	for {
		select {
		case <-m.done:
			return

		case ev, ok := <-m.watcher.Events:
			if !ok {
				return
			}
			m.handleFsEvent(ev)

		case werr, ok := <-m.watcher.Errors:
			if !ok {
				return
			}
			ffdebug.LogMonitor("watcher error: %v", werr)
			if reconnected {
				m.surfaceWatcherLost(werr)
				continue
			}
			if err := m.reconnect(); err != nil {
				reconnected = true
				m.surfaceWatcherLost(werr)
				continue
			}
		}
	}
}

// reconnect rebuilds the underlying fsnotify.Watcher and re-adds every
// previously watched root, the one retry the propagation policy allows
// before a watcher error is treated as fatal to monitoring.
func (m *Monitor) reconnect() error {
	_ = m.watcher.Close()

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	m.watcher = w

	m.mu.Lock()
	roots := append([]string(nil), m.roots...)
	m.visited = make(map[string]bool)
	m.watching = make(map[string]bool)
	m.mu.Unlock()

	for _, root := range roots {
		if err := m.addWatches(root); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) surfaceWatcherLost(cause error) {
	werr := fferrors.NewIndexingError("watch", fferrors.ErrWatcherLost).WithRecoverable(false)
	select {
	case m.err <- werr:
	default:
	}
	m.mu.Lock()
	roots := append([]string(nil), m.roots...)
	m.mu.Unlock()
	for _, root := range roots {
		m.enqueue(change.Event{Kind: change.Resync, NewPath: root, TimeNs: time.Now().UnixNano()})
	}
	_ = cause
}

func (m *Monitor) handleFsEvent(ev fsnotify.Event) {
	if m.isExcluded(ev.Name) {
		return
	}

	switch {
	case ev.Op&fsnotify.Create != 0:
		info, err := os.Stat(ev.Name)
		if err == nil && info.IsDir() && m.opts.IncludeSubdirectories {
			if err := m.watcher.Add(ev.Name); err != nil {
				ffdebug.LogMonitor("failed to watch new directory %s: %v", ev.Name, err)
			}
		}
		m.deb.add(ev.Name, pendingCreated)

	case ev.Op&fsnotify.Write != 0:
		m.deb.add(ev.Name, pendingModified)

	case ev.Op&fsnotify.Remove != 0:
		m.deb.add(ev.Name, pendingRemoved)

	case ev.Op&fsnotify.Rename != 0:
		// fsnotify reports a rename as this event for the old name; the
		// new name (if still inside a watched directory) arrives as a
		// separate Create event, paired up in flush.
		m.deb.add(ev.Name, pendingRenamedFrom)

	case ev.Op&fsnotify.Chmod != 0:
		// attribute-only change; treated the same as a write, since
		// nothing downstream distinguishes metadata-only updates.
		m.deb.add(ev.Name, pendingModified)
	}
}

// flush is the debouncer's callback: it turns one coalesced batch of
// pending path events into change.Event values and enqueues them. A
// rename-tagged removal and a create seen in the same batch are paired,
// in arrival order, into a single Renamed event; anything left over
// emits as a plain Deleted or Created.
func (m *Monitor) flush(batch []pendingEvent) {
	now := time.Now().UnixNano()

	var renamesFrom, creates []string
	for _, pe := range batch {
		switch pe.kind {
		case pendingRenamedFrom:
			renamesFrom = append(renamesFrom, pe.path)
		case pendingCreated:
			creates = append(creates, pe.path)
		}
	}

	pairs := min(len(renamesFrom), len(creates))
	for i := 0; i < pairs; i++ {
		m.enqueue(change.Event{Kind: change.Renamed, OldPath: renamesFrom[i], NewPath: creates[i], TimeNs: now})
	}
	for _, old := range renamesFrom[pairs:] {
		m.enqueue(change.Event{Kind: change.Deleted, NewPath: old, TimeNs: now})
	}
	for _, created := range creates[pairs:] {
		m.enqueue(change.Event{Kind: change.Created, NewPath: created, TimeNs: now})
	}

	for _, pe := range batch {
		switch pe.kind {
		case pendingModified:
			m.enqueue(change.Event{Kind: change.Modified, NewPath: pe.path, TimeNs: now})
		case pendingRemoved:
			m.enqueue(change.Event{Kind: change.Deleted, NewPath: pe.path, TimeNs: now})
		}
	}
}

// enqueue publishes ev, dropping the oldest queued event and
// substituting a Resync for the affected root if the output channel is
// saturated.
func (m *Monitor) enqueue(ev change.Event) {
	select {
	case m.out <- ev:
		return
	default:
	}

	select {
	case <-m.out:
	default:
	}

	root := m.rootFor(ev)
	resync := change.Event{Kind: change.Resync, NewPath: root, TimeNs: ev.TimeNs}
	select {
	case m.out <- resync:
	default:
	}
}

func (m *Monitor) rootFor(ev change.Event) string {
	path := ev.NewPath
	if path == "" {
		path = ev.OldPath
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, root := range m.roots {
		if strings.HasPrefix(path, root) {
			return root
		}
	}
	if len(m.roots) > 0 {
		return m.roots[0]
	}
	return path
}
