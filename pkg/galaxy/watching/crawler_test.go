package watching

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gmunoz/galaxy/pkg/galaxy/registry"
)

func newTestCrawler(t *testing.T, prune []string) (*Crawler, *registry.Registry, func()) {
	t.Helper()
	notify, err := OpenInotify()
	if err != nil {
		t.Skipf("inotify unavailable: %v", err)
	}
	reg := registry.New()
	c := NewCrawler(notify, reg, prune, nil)
	return c, reg, func() { notify.Close() }
}

func TestCrawlerInstallOneRegistersWatch(t *testing.T) {
	c, reg, cleanup := newTestCrawler(t, nil)
	defer cleanup()

	dir := t.TempDir()
	id, err := c.InstallOne(dir)
	if err != nil {
		t.Fatalf("InstallOne() failed: %v", err)
	}
	if path, ok := reg.Lookup(id); !ok || path != dir {
		t.Errorf("registry lookup = (%q, %v), want (%q, true)", path, ok, dir)
	}
}

func TestCrawlerInstallOneIsIdempotent(t *testing.T) {
	c, reg, cleanup := newTestCrawler(t, nil)
	defer cleanup()

	dir := t.TempDir()
	first, err := c.InstallOne(dir)
	if err != nil {
		t.Fatalf("InstallOne() failed: %v", err)
	}
	second, err := c.InstallOne(dir)
	if err != nil {
		t.Fatalf("second InstallOne() failed: %v", err)
	}
	if first != second {
		t.Errorf("InstallOne() returned different ids for the same path: %d, %d", first, second)
	}
	if reg.Len() != 1 {
		t.Errorf("registry has %d entries, want 1", reg.Len())
	}
}

func TestCrawlerInstallOneRejectsPrunedPath(t *testing.T) {
	dir := t.TempDir()
	c, _, cleanup := newTestCrawler(t, []string{dir})
	defer cleanup()

	if _, err := c.InstallOne(dir); err == nil {
		t.Fatal("InstallOne() accepted a pruned path")
	}
}

func TestCrawlerInstallOneCachesFailures(t *testing.T) {
	c, _, cleanup := newTestCrawler(t, nil)
	defer cleanup()

	missing := filepath.Join(t.TempDir(), "does-not-exist")
	if _, err := c.InstallOne(missing); err == nil {
		t.Fatal("InstallOne() accepted a nonexistent path")
	}

	if _, recentlyFailed := c.failures.Get(missing); !recentlyFailed {
		t.Fatal("failed install was not cached")
	}
}

func TestCrawlerInstallOneRejectsStaleRoot(t *testing.T) {
	c, reg, cleanup := newTestCrawler(t, nil)
	defer cleanup()

	dir := t.TempDir()
	reg.MarkStale(dir)

	if _, err := c.InstallOne(dir); err == nil {
		t.Fatal("InstallOne() accepted a root marked stale by an UNMOUNT event")
	}
}

func TestCrawlerWalkInstallsSubdirectories(t *testing.T) {
	c, reg, cleanup := newTestCrawler(t, nil)
	defer cleanup()

	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0700); err != nil {
		t.Fatalf("unable to create subdirectory: %v", err)
	}

	c.Walk(root)

	if _, ok := reg.LookupPath(root); !ok {
		t.Error("Walk() did not install a watch for the root")
	}
	if _, ok := reg.LookupPath(sub); !ok {
		t.Error("Walk() did not install a watch for the subdirectory")
	}
}

func TestCrawlerWalkSkipsPrunedSubtree(t *testing.T) {
	root := t.TempDir()
	pruned := filepath.Join(root, "skip")
	if err := os.Mkdir(pruned, 0700); err != nil {
		t.Fatalf("unable to create subdirectory: %v", err)
	}

	c, reg, cleanup := newTestCrawler(t, []string{pruned})
	defer cleanup()

	c.Walk(root)

	if _, ok := reg.LookupPath(pruned); ok {
		t.Error("Walk() installed a watch under a pruned directory")
	}
}

func TestCrawlerCrawlNonRecursiveOnlyWatchesRoots(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	if err := os.Mkdir(sub, 0700); err != nil {
		t.Fatalf("unable to create subdirectory: %v", err)
	}

	c, reg, cleanup := newTestCrawler(t, nil)
	defer cleanup()

	c.Crawl([]string{root}, false)

	if _, ok := reg.LookupPath(root); !ok {
		t.Error("Crawl() did not install a watch for the root")
	}
	if _, ok := reg.LookupPath(sub); ok {
		t.Error("Crawl() installed a watch for a subdirectory in non-recursive mode")
	}
}
