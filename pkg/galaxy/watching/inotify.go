// Package watching owns the kernel notification file descriptor and
// implements the directory crawler and kernel event reader, built
// directly against golang.org/x/sys/unix's inotify syscalls, the same
// foundation the original tool's inotify_utils.c builds on.
package watching

import (
	"os"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/gmunoz/galaxy/pkg/galaxy/event"
)

// Inotify wraps a single inotify instance. There is exactly one per
// daemon, owning the single kernel notification file descriptor.
type Inotify struct {
	fd int
}

// OpenInotify initializes a new inotify instance, the Go equivalent of the
// original tool's open_dev() (inotify_init()).
func OpenInotify() (*Inotify, error) {
	fd, err := unix.InotifyInit1(unix.IN_CLOEXEC)
	if err != nil {
		return nil, errors.Wrap(err, "inotify_init1 failed")
	}
	return &Inotify{fd: fd}, nil
}

// Fd returns the underlying file descriptor, for use in readiness waits.
func (n *Inotify) Fd() int {
	return n.fd
}

// AddWatch installs or updates a watch for path with the given mask,
// returning the kernel-assigned watch id. This is inotify_add_watch(2);
// callers (the registry's Insert path, via the crawler) decide what to do
// with a non-existence error versus any other failure.
func (n *Inotify) AddWatch(path string, mask event.Mask) (int32, error) {
	wd, err := unix.InotifyAddWatch(n.fd, path, uint32(mask))
	if err != nil {
		return 0, err
	}
	return int32(wd), nil
}

// RemoveWatch removes watch id from the kernel. This is inotify_rm_watch(2).
func (n *Inotify) RemoveWatch(id int32) error {
	_, err := unix.InotifyRmWatch(n.fd, uint32(id))
	return err
}

// Close closes the inotify file descriptor, the equivalent of the original
// tool's close_dev().
func (n *Inotify) Close() error {
	return unix.Close(n.fd)
}

// IsNotExist reports whether err is the "path vanished before we could
// watch it" case, which the crawler treats as a skip rather than a logged
// failure.
func IsNotExist(err error) bool {
	return errors.Is(err, os.ErrNotExist) || errors.Is(err, unix.ENOENT)
}
