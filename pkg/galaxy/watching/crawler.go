package watching

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/golang/groupcache/lru"
	"github.com/pkg/errors"

	"github.com/gmunoz/galaxy/pkg/galaxy"
	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/logging"
	"github.com/gmunoz/galaxy/pkg/galaxy/registry"
)

// watchMask is the event set installed on every directory the crawler
// visits: the union of all user-space inotify events.
const watchMask = event.All

// failureCacheSize bounds how many recently failed install attempts the
// crawler remembers. A directory that churns CREATE events while its
// watch install keeps failing (permission denied, vanished before the
// syscall landed) would otherwise drive one syscall per event; a repeat
// within the cache's window skips the syscall and returns an error at
// once. The error is still returned to the caller, so the dispatcher
// still logs one warning per repeat. This is purely a bookkeeping bound —
// the registry of live watches stays unbounded, as it must.
const failureCacheSize = 4096

// Crawler walks configured root directories, installing watches into a
// Registry, honoring a prune list, and re-registering on the fly as
// directories are created or removed.
type Crawler struct {
	notify   *Inotify
	registry *registry.Registry
	prune    []string
	logger   *logging.Logger

	mu       sync.Mutex
	failures *lru.Cache
}

// NewCrawler creates a Crawler over notify and registry. prune is the set
// of directories (and their subtrees) that must never be watched.
func NewCrawler(notify *Inotify, reg *registry.Registry, prune []string, logger *logging.Logger) *Crawler {
	cleaned := make([]string, len(prune))
	for i, p := range prune {
		cleaned[i] = filepath.Clean(p)
	}
	c := &Crawler{notify: notify, registry: reg, prune: cleaned, logger: logger, failures: lru.New(failureCacheSize)}
	c.failures.OnEvicted = func(key lru.Key, _ interface{}) {
		logger.Debugf("forgetting failed install attempt for %v", key)
	}
	return c
}

// Pruned reports whether path equals or descends from any configured
// prune directory.
func (c *Crawler) Pruned(path string) bool {
	clean := filepath.Clean(path)
	for _, p := range c.prune {
		if clean == p || strings.HasPrefix(clean, p+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// InstallOne installs a single watch for path (not recursive), returning
// the assigned watch id. Duplicate installs return the existing id
// without re-registering with the kernel. Pruned paths are rejected
// without ever reaching the kernel or the registry.
func (c *Crawler) InstallOne(path string) (int32, error) {
	if c.Pruned(path) {
		return 0, errors.Errorf("path %q is pruned", path)
	}
	if c.registry.IsStale(path) {
		return 0, errors.Errorf("path %q was unmounted; not reinstalling until it is marked current again", path)
	}
	if id, ok := c.registry.LookupPath(path); ok {
		return id, nil
	}

	c.mu.Lock()
	_, recentlyFailed := c.failures.Get(path)
	c.mu.Unlock()
	if recentlyFailed {
		return 0, errors.Errorf("path %q recently failed to install; not retrying yet", path)
	}

	id, err := c.notify.AddWatch(path, watchMask)
	if err != nil {
		c.mu.Lock()
		c.failures.Add(path, struct{}{})
		c.mu.Unlock()
		return 0, fmt.Errorf("%w: unable to install watch for %q: %w", galaxy.ErrWatchInstallFailed, path, err)
	}

	existing, inserted := c.registry.Insert(id, path)
	if !inserted {
		// Lost a race with another install of the same path: drop our
		// kernel watch and keep the winner's id.
		_ = c.notify.RemoveWatch(id)
		return existing, nil
	}
	return id, nil
}

// Remove removes the watch mapping for id. It does not attempt to remove
// the kernel watch, since Remove is called in response to DELETE_SELF or
// IGNORED, at which point the kernel has already retired the watch
// itself.
func (c *Crawler) Remove(id int32) {
	c.registry.Remove(id)
}

// Walk performs a depth-first traversal of root, installing a watch on
// every directory encountered. Per-directory install failures are logged
// and traversal continues; pruned subtrees are never entered.
func (c *Crawler) Walk(root string) {
	root = filepath.Clean(root)
	if c.Pruned(root) {
		return
	}

	info, err := os.Lstat(root)
	if err != nil || !info.IsDir() {
		return
	}

	if _, err := c.InstallOne(root); err != nil {
		if !IsNotExist(err) {
			c.logger.Warnf("unable to install watch for %q: %v", root, err)
		}
		return
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		c.logger.Warnf("unable to read directory %q: %v", root, err)
		return
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		c.Walk(filepath.Join(root, entry.Name()))
	}
}

// Crawl walks every root in roots. If recursive is false, only the root
// directories themselves are watched (no descent).
func (c *Crawler) Crawl(roots []string, recursive bool) {
	for _, root := range roots {
		if recursive {
			c.Walk(root)
		} else {
			root = filepath.Clean(root)
			if c.Pruned(root) {
				continue
			}
			if _, err := c.InstallOne(root); err != nil {
				c.logger.Warnf("unable to install watch for %q: %v", root, err)
			}
		}
	}
}
