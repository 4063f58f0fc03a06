// Package event defines the kernel event mask, the raw event record
// produced by the kernel event reader, and the delivered-event wire form
// sent to clients. Mask values are taken directly from inotify(7) via
// golang.org/x/sys/unix.
package event

import (
	"strings"

	"golang.org/x/sys/unix"
)

// Mask is a bitfield over the inotify event classes.
type Mask uint32

// Event bits, mirroring unix.IN_* exactly so that raw kernel masks can be
// used as Mask values without translation.
const (
	Access       Mask = Mask(unix.IN_ACCESS)
	Modify       Mask = Mask(unix.IN_MODIFY)
	Attrib       Mask = Mask(unix.IN_ATTRIB)
	CloseWrite   Mask = Mask(unix.IN_CLOSE_WRITE)
	CloseNoWrite Mask = Mask(unix.IN_CLOSE_NOWRITE)
	Open         Mask = Mask(unix.IN_OPEN)
	MovedFrom    Mask = Mask(unix.IN_MOVED_FROM)
	MovedTo      Mask = Mask(unix.IN_MOVED_TO)
	Create       Mask = Mask(unix.IN_CREATE)
	Delete       Mask = Mask(unix.IN_DELETE)
	DeleteSelf   Mask = Mask(unix.IN_DELETE_SELF)

	// Unmount, QOverflow, Ignored and IsDir are not part of ALL_EVENTS (they
	// aren't things a caller asks to watch for) but do appear on raw kernel
	// events and must be recognized by the dispatcher.
	Unmount   Mask = Mask(unix.IN_UNMOUNT)
	QOverflow Mask = Mask(unix.IN_Q_OVERFLOW)
	Ignored   Mask = Mask(unix.IN_IGNORED)
	IsDir     Mask = Mask(unix.IN_ISDIR)
	OneShot   Mask = Mask(unix.IN_ONESHOT)
)

// All is the union of the eleven user-space event classes
const All = Access | Modify | Attrib | CloseWrite | CloseNoWrite | Open |
	MovedFrom | MovedTo | Create | Delete | DeleteSelf

var names = []struct {
	bit  Mask
	name string
}{
	{Access, "ACCESS"},
	{Modify, "MODIFY"},
	{Attrib, "ATTRIB"},
	{CloseWrite, "CLOSE_WRITE"},
	{CloseNoWrite, "CLOSE_NOWRITE"},
	{Open, "OPEN"},
	{MovedFrom, "MOVED_FROM"},
	{MovedTo, "MOVED_TO"},
	{Create, "CREATE"},
	{Delete, "DELETE"},
	{DeleteSelf, "DELETE_SELF"},
	{Unmount, "UNMOUNT"},
	{QOverflow, "Q_OVERFLOW"},
	{Ignored, "IGNORED"},
	{IsDir, "ISDIR"},
	{OneShot, "ONESHOT"},
}

// String renders the set bits of m as a space-separated list of event
// names, the Go equivalent of the original tool's print_mask().
func (m Mask) String() string {
	if m == 0 {
		return "NONE"
	}
	var parts []string
	for _, n := range names {
		if m&n.bit != 0 {
			parts = append(parts, n.name)
		}
	}
	if len(parts) == 0 {
		return "UNKNOWN"
	}
	return strings.Join(parts, " ")
}
