package registry

import "testing"

func TestInsertAndLookup(t *testing.T) {
	r := New()

	id, inserted := r.Insert(1, "/tmp/a")
	if !inserted || id != 1 {
		t.Fatalf("Insert() = (%d, %v), want (1, true)", id, inserted)
	}

	path, ok := r.Lookup(1)
	if !ok || path != "/tmp/a" {
		t.Fatalf("Lookup(1) = (%q, %v), want (/tmp/a, true)", path, ok)
	}

	watchID, ok := r.LookupPath("/tmp/a")
	if !ok || watchID != 1 {
		t.Fatalf("LookupPath(/tmp/a) = (%d, %v), want (1, true)", watchID, ok)
	}
}

func TestInsertDuplicatePathKeepsWinner(t *testing.T) {
	r := New()
	r.Insert(1, "/tmp/a")

	existing, inserted := r.Insert(2, "/tmp/a")
	if inserted {
		t.Fatal("Insert() reported success for a duplicate path")
	}
	if existing != 1 {
		t.Fatalf("Insert() returned existing id %d, want 1", existing)
	}
	if _, ok := r.Lookup(2); ok {
		t.Fatal("Lookup(2) found an entry that should never have been registered")
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	r := New()
	r.Insert(1, "/tmp/a")

	r.Remove(1)
	if _, ok := r.Lookup(1); ok {
		t.Fatal("Lookup(1) succeeded after Remove")
	}
	if _, ok := r.LookupPath("/tmp/a"); ok {
		t.Fatal("LookupPath(/tmp/a) succeeded after Remove")
	}

	// Removing again must not panic or otherwise misbehave.
	r.Remove(1)
}

func TestLenAndRange(t *testing.T) {
	r := New()
	r.Insert(1, "/tmp/a")
	r.Insert(2, "/tmp/b")

	if got := r.Len(); got != 2 {
		t.Fatalf("Len() = %d, want 2", got)
	}

	seen := make(map[int32]string)
	r.Range(func(id int32, path string) {
		seen[id] = path
	})
	if len(seen) != 2 || seen[1] != "/tmp/a" || seen[2] != "/tmp/b" {
		t.Fatalf("Range() produced unexpected contents: %v", seen)
	}
}

func TestMarkStaleAndUnstale(t *testing.T) {
	r := New()

	if r.IsStale("/mnt/usb") {
		t.Fatal("IsStale() reported true before MarkStale")
	}

	r.MarkStale("/mnt/usb")
	if !r.IsStale("/mnt/usb") {
		t.Fatal("IsStale() reported false after MarkStale")
	}
	if r.IsStale("/mnt/other") {
		t.Fatal("IsStale() reported true for an unrelated path")
	}

	r.Unstale("/mnt/usb")
	if r.IsStale("/mnt/usb") {
		t.Fatal("IsStale() reported true after Unstale")
	}
}
