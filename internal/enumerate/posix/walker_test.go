package posix

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/ffindex/internal/enumerate"
	"github.com/standardbeagle/ffindex/internal/ffconfig"
	"github.com/standardbeagle/ffindex/internal/record"
	"github.com/standardbeagle/ffindex/internal/stringpool"
)

func buildTree(t *testing.T, root string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".hidden"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "node_modules", "pkg"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "top.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "sub", "nested.go"), []byte("package x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, ".hidden", "secret.txt"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "node_modules", "pkg", "dep.js"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "big.bin"), make([]byte, 1024), 0o644))
}

func collect(t *testing.T, root string, cfg *ffconfig.Config) []string {
	t.Helper()
	pool := stringpool.New()
	w := New(pool)
	cfg.Roots = []string{root}

	var paths []string
	err := w.Enumerate(context.Background(), cfg, func(rec record.FileRecord) error {
		p, ok := pool.Get(rec.FullPathID)
		require.True(t, ok)
		paths = append(paths, p)
		return nil
	})
	require.NoError(t, err)
	sort.Strings(paths)
	return paths
}

func baseNames(paths []string) []string {
	out := make([]string, len(paths))
	for i, p := range paths {
		out[i] = filepath.Base(p)
	}
	sort.Strings(out)
	return out
}

func TestEnumerateFindsFilesAndDirectories(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	cfg := ffconfig.Default()
	cfg.ExcludedPaths = nil
	paths := collect(t, root, cfg)

	names := baseNames(paths)
	require.Contains(t, names, "top.txt")
	require.Contains(t, names, "nested.go")
	require.Contains(t, names, "sub")
}

func TestEnumerateSkipsHiddenByDefault(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	cfg := ffconfig.Default()
	cfg.ExcludedPaths = nil
	paths := collect(t, root, cfg)

	for _, p := range paths {
		require.NotContains(t, p, ".hidden")
	}
}

func TestEnumerateIncludesHiddenWhenRequested(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	cfg := ffconfig.Default()
	cfg.ExcludedPaths = nil
	cfg.IncludeHidden = true
	paths := collect(t, root, cfg)

	found := false
	for _, p := range paths {
		if filepath.Base(p) == "secret.txt" {
			found = true
		}
	}
	require.True(t, found)
}

func TestEnumerateRespectsExcludedPathPatterns(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	cfg := ffconfig.Default() // default excludes **/node_modules/**
	paths := collect(t, root, cfg)

	for _, p := range paths {
		require.NotContains(t, p, "node_modules")
	}
}

func TestEnumerateRespectsExcludedExtensions(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	cfg := ffconfig.Default()
	cfg.ExcludedPaths = nil
	cfg.ExcludedExtensions = []string{".go"}
	paths := collect(t, root, cfg)

	names := baseNames(paths)
	require.NotContains(t, names, "nested.go")
	require.Contains(t, names, "top.txt")
}

func TestEnumerateRespectsMaxFileSize(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	cfg := ffconfig.Default()
	cfg.ExcludedPaths = nil
	cfg.MaxFileSize = 10
	paths := collect(t, root, cfg)

	names := baseNames(paths)
	require.NotContains(t, names, "big.bin")
	require.Contains(t, names, "top.txt")
}

func TestEnumerateRespectsMaxDepth(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	cfg := ffconfig.Default()
	cfg.ExcludedPaths = nil
	cfg.MaxDepth = 1
	paths := collect(t, root, cfg)

	names := baseNames(paths)
	require.Contains(t, names, "sub") // depth 1: the directory itself is visible
	require.NotContains(t, names, "nested.go") // depth 2: its contents are not
}

func TestEnumerateSinkErrorAbortsWalk(t *testing.T) {
	root := t.TempDir()
	buildTree(t, root)

	pool := stringpool.New()
	w := New(pool)
	cfg := ffconfig.Default()
	cfg.ExcludedPaths = nil
	cfg.Roots = []string{root}
	cfg.ParallelWorkers = 1

	boom := errStop("stop")
	err := w.Enumerate(context.Background(), cfg, func(rec record.FileRecord) error {
		return boom
	})
	require.ErrorIs(t, err, boom)
}

type errStop string

func (e errStop) Error() string { return string(e) }

func TestAvailableRootsReturnsAtLeastOne(t *testing.T) {
	pool := stringpool.New()
	w := New(pool)
	roots, err := w.AvailableRoots()
	require.NoError(t, err)
	require.NotEmpty(t, roots)
}

func TestAvailableRootsFiltersByFilesystemTypeNotPath(t *testing.T) {
	mounts := `overlay / overlay rw,relatime 0 0
proc /proc proc rw,nosuid,nodev,noexec,relatime 0 0
sysfs /sys sysfs rw,nosuid,nodev,noexec,relatime 0 0
tmpfs /run tmpfs rw,nosuid,nodev,size=819200k,mode=755 0 0
tmpfs /tmp tmpfs rw,nosuid,nodev 0 0
devpts /dev/pts devpts rw,nosuid,noexec,relatime 0 0
cgroup2 /sys/fs/cgroup cgroup2 rw,nosuid,nodev,noexec,relatime 0 0
/dev/sda1 /data ext4 rw,relatime 0 0
/dev/sdb1 /proc-backup ext4 rw,relatime 0 0
`
	mountsFile := filepath.Join(t.TempDir(), "mounts")
	require.NoError(t, os.WriteFile(mountsFile, []byte(mounts), 0o644))

	pool := stringpool.New()
	w := New(pool)
	w.mountsPath = mountsFile

	roots, err := w.AvailableRoots()
	require.NoError(t, err)
	// overlay "/" and cgroup2 are excluded by fstype even though their
	// mountpoints don't start with /proc, /sys, or /dev; "/proc-backup"
	// is a real ext4 mount that happens to start with "/proc" and must
	// survive.
	require.ElementsMatch(t, []string{"/data", "/proc-backup"}, roots)
}

var _ enumerate.Enumerator = (*Walker)(nil)
