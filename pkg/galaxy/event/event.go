package event

import "time"

// Raw is a single kernel notification record, as produced by the kernel
// event reader and consumed exactly once by the dispatcher. It carries the
// watch id the kernel reported the event against, not a resolved path:
// resolving (watch id, name) into an absolute path is the dispatcher's job,
// since the registry may have already been mutated by the time a queued
// event is processed.
type Raw struct {
	// WatchID is the kernel watch descriptor the event was reported
	// against.
	WatchID int32
	// Mask is the set of event bits the kernel reported.
	Mask Mask
	// Cookie associates MOVED_FROM/MOVED_TO pairs for the same rename.
	Cookie uint32
	// Name is the child name for events on a directory's contents. It is
	// empty when the event concerns the watched directory itself.
	Name string
	// Time is when the reader observed the event.
	Time time.Time
}

// Delivered is the serialized form of an event sent to a single client over
// a delivery socket.
type Delivered struct {
	Mask      Mask
	Timestamp time.Time
	Path      string
}
