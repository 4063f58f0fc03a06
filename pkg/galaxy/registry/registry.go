// Package registry implements the watch registry: a thread-safe
// bidirectional mapping between kernel watch ids and the absolute
// directory paths they name. It is reified as a struct owning its own
// lock rather than package-level maps.
package registry

import "sync"

// Registry maps kernel watch ids to absolute directory paths under a
// single multi-reader/single-writer lock, as required by concurrent access
// from the crawler, kernel event reader, dispatcher, and per-client
// workers.
type Registry struct {
	mu       sync.RWMutex
	pathByID map[int32]string
	idByPath map[string]int32
	stale    map[string]struct{}
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		pathByID: make(map[int32]string),
		idByPath: make(map[string]int32),
		stale:    make(map[string]struct{}),
	}
}

// Insert records that id names path. If path is already registered, the
// existing id is left in place and ok reports false so callers (the
// crawler) can detect the duplicate-install case directly and
// avoid re-registering with the kernel.
//
// Insert does not itself talk to the kernel; the caller is responsible for
// allocating the kernel watch before calling Insert, and for not calling it
// at all if that allocation failed.
func (r *Registry) Insert(id int32, path string) (existing int32, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existingID, found := r.idByPath[path]; found {
		return existingID, false
	}
	r.pathByID[id] = path
	r.idByPath[path] = id
	return id, true
}

// Remove deletes the mapping for id, if any. It is idempotent.
func (r *Registry) Remove(id int32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	path, ok := r.pathByID[id]
	if !ok {
		return
	}
	delete(r.pathByID, id)
	delete(r.idByPath, path)
}

// Lookup returns the path registered for id. ok is false for an unknown id
// (e.g. an IGNORED event that arrives after the mapping was already
// removed) — callers must tolerate this rather than treating it as an
// error.
func (r *Registry) Lookup(id int32) (path string, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok = r.pathByID[id]
	return path, ok
}

// LookupPath returns the watch id registered for path, used by the
// crawler's duplicate-install check.
func (r *Registry) LookupPath(path string) (id int32, ok bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok = r.idByPath[path]
	return id, ok
}

// Len returns the number of live watches.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.pathByID)
}

// Range calls fn for every (id, path) pair under the read lock. fn must not
// call back into the Registry.
func (r *Registry) Range(fn func(id int32, path string)) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for id, path := range r.pathByID {
		fn(id, path)
	}
}

// MarkStale records that root is no longer reachable (its filesystem was
// unmounted out from under a live watch). A stale root stays marked until
// Unstale is called for it; the dispatcher never calls Unstale itself, since
// it has no signal that a root has been remounted.
func (r *Registry) MarkStale(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stale[root] = struct{}{}
}

// Unstale clears root's stale marking, for callers (not currently any in
// this daemon) that can detect a remount.
func (r *Registry) Unstale(root string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.stale, root)
}

// IsStale reports whether root was previously marked stale by MarkStale.
func (r *Registry) IsStale(root string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, stale := r.stale[root]
	return stale
}
