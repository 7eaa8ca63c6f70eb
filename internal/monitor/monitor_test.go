package monitor

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ffindex/internal/change"
)

const testTimeout = 5 * time.Second
const testTick = 10 * time.Millisecond

func drain(t *testing.T, events <-chan change.Event, want change.Kind, pathSuffix string) change.Event {
	t.Helper()
	deadline := time.After(testTimeout)
	for {
		select {
		case ev := <-events:
			if ev.Kind == want && (pathSuffix == "" || strings.HasSuffix(ev.NewPath, pathSuffix) || strings.HasSuffix(ev.OldPath, pathSuffix)) {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s event matching %q", want, pathSuffix)
		}
	}
}

func newTestMonitorAt(t *testing.T, root string, opts Options) *Monitor {
	t.Helper()
	m, err := New(opts)
	require.NoError(t, err)
	require.NoError(t, m.Start(root))
	t.Cleanup(func() { require.NoError(t, m.Stop()) })
	return m
}

func newTestMonitor(t *testing.T, opts Options) (*Monitor, string) {
	t.Helper()
	root := t.TempDir()
	return newTestMonitorAt(t, root, opts), root
}

func TestStartReportsNewFileAsCreated(t *testing.T) {
	m, root := newTestMonitor(t, Options{IncludeSubdirectories: true, DebounceInterval: 20 * time.Millisecond})

	path := filepath.Join(root, "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	ev := drain(t, m.Events(), change.Created, "watched.txt")
	require.Equal(t, path, ev.NewPath)
}

func TestWriteToExistingFileReportsModified(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "watched.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	m := newTestMonitorAt(t, root, Options{IncludeSubdirectories: true, DebounceInterval: 20 * time.Millisecond})

	require.NoError(t, os.WriteFile(path, []byte("hello again"), 0o644))

	ev := drain(t, m.Events(), change.Modified, "watched.txt")
	require.Equal(t, path, ev.NewPath)
}

func TestStartWatchesSubdirectoriesRecursively(t *testing.T) {
	m, root := newTestMonitor(t, Options{IncludeSubdirectories: true, DebounceInterval: 20 * time.Millisecond})

	// Create "sub" and wait for the monitor to register a watch on it
	// before creating anything inside it: a directory created and
	// populated in the same instant can outrun the Create-event-driven
	// watch registration, which is an inherent race in any fsnotify-based
	// recursive watcher, not something worth asserting on here.
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.watching[sub]
	}, testTimeout, testTick, "expected sub to become watched once its Create event is processed")

	deeper := filepath.Join(sub, "deeper")
	require.NoError(t, os.Mkdir(deeper, 0o755))
	require.Eventually(t, func() bool {
		m.mu.Lock()
		defer m.mu.Unlock()
		return m.watching[deeper]
	}, testTimeout, testTick, "expected deeper to become watched once its Create event is processed")

	path := filepath.Join(deeper, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	ev := drain(t, m.Events(), change.Modified, "f.txt")
	require.Equal(t, path, ev.NewPath)
}

func TestExcludedPathsAreNeverWatchedOrReported(t *testing.T) {
	root := t.TempDir()
	m, err := New(Options{
		IncludeSubdirectories: true,
		ExcludedPaths:         []string{"**/ignored/**"},
		DebounceInterval:      20 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "ignored"), 0o755))
	require.NoError(t, m.Start(root))
	t.Cleanup(func() { require.NoError(t, m.Stop()) })

	require.NoError(t, os.WriteFile(filepath.Join(root, "ignored", "x.txt"), []byte("x"), 0o644))
	// and a file that should be seen, to prove the monitor is alive and
	// the absence of an event above isn't just a slow watcher.
	watched := filepath.Join(root, "seen.txt")
	require.NoError(t, os.WriteFile(watched, []byte("x"), 0o644))

	ev := drain(t, m.Events(), change.Created, "seen.txt")
	require.Equal(t, watched, ev.NewPath)

	select {
	case ev := <-m.Events():
		t.Fatalf("unexpected event for excluded path: %+v", ev)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestRenameIsReconstructedFromPairedEvents(t *testing.T) {
	m, root := newTestMonitor(t, Options{IncludeSubdirectories: true, DebounceInterval: 30 * time.Millisecond})

	oldPath := filepath.Join(root, "old.txt")
	newPath := filepath.Join(root, "new.txt")
	require.NoError(t, os.WriteFile(oldPath, []byte("x"), 0o644))
	// drain the Created event for old.txt before renaming, so the rename
	// pairing below sees only the Rename+Create pair for this move.
	drain(t, m.Events(), change.Created, "old.txt")

	require.NoError(t, os.Rename(oldPath, newPath))

	ev := drain(t, m.Events(), change.Renamed, "new.txt")
	require.Equal(t, oldPath, ev.OldPath)
	require.Equal(t, newPath, ev.NewPath)
}

func TestCoalesceRemovedAlwaysWins(t *testing.T) {
	require.Equal(t, pendingRemoved, coalesce(pendingCreated, pendingRemoved))
	require.Equal(t, pendingRemoved, coalesce(pendingModified, pendingRemoved))
	require.Equal(t, pendingRemoved, coalesce(pendingRemoved, pendingRemoved))
}

func TestCoalesceCreatedThenModifiedStaysCreated(t *testing.T) {
	require.Equal(t, pendingCreated, coalesce(pendingCreated, pendingModified))
}

func TestCoalesceModifiedThenModifiedStaysModified(t *testing.T) {
	require.Equal(t, pendingModified, coalesce(pendingModified, pendingModified))
}

func TestDebouncerCoalescesBurstIntoOneBatchEntry(t *testing.T) {
	var mu sync.Mutex
	var batches [][]pendingEvent
	d := newDebouncer(20*time.Millisecond, func(batch []pendingEvent) {
		mu.Lock()
		defer mu.Unlock()
		batches = append(batches, batch)
	})

	d.add("/a", pendingCreated)
	d.add("/a", pendingModified)
	d.add("/a", pendingModified)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(batches) == 1
	}, testTimeout, testTick)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, batches[0], 1)
	require.Equal(t, pendingCreated, batches[0][0].kind)
}

func TestEnqueueDropsOldestAndSubstitutesResyncWhenSaturated(t *testing.T) {
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	m := &Monitor{
		watcher: w,
		out:     make(chan change.Event, 2),
		err:     make(chan error, 1),
		roots:   []string{"/root"},
		visited: make(map[string]bool),
	}

	m.enqueue(change.Event{Kind: change.Created, NewPath: "/root/a"})
	m.enqueue(change.Event{Kind: change.Created, NewPath: "/root/b"})
	// channel is now full; this one must evict the oldest and substitute Resync
	m.enqueue(change.Event{Kind: change.Created, NewPath: "/root/c"})

	first := <-m.out
	require.Equal(t, "/root/b", first.NewPath)
	second := <-m.out
	require.Equal(t, change.Resync, second.Kind)
	require.Equal(t, "/root", second.NewPath)
}
