package watching

import (
	"strings"
	"sync/atomic"
	"time"
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/logging"
)

// readinessTimeout bounds how long the reader's select() call waits before
// re-checking the stop flag, the Go equivalent of the original tool's
// event_check() 4-second select timeout — shortened here so that
// cancellation is observable promptly.
const readinessTimeout = 250 * time.Millisecond

// readBufferSize is sized for a large batch of raw events per read(2),
// mirroring fsnotify's SizeofInotifyEvent*4096 buffer.
const readBufferSize = unix.SizeofInotifyEvent * 4096

// Reader owns the kernel notification file descriptor and turns raw
// inotify records into event.Raw values. Suspension points are the
// readiness wait and the blocking send into Events. Stop is observed only
// between readiness waits: a send into a full Events channel completes
// only once the dispatcher receives from it.
type Reader struct {
	notify *Inotify
	logger *logging.Logger

	// Events is the bounded FIFO between the reader and the dispatcher.
	// Events must never be silently dropped here: the channel applies
	// backpressure by blocking the reader when full.
	Events chan event.Raw

	stopped int32
}

// NewReader creates a Reader over notify, with an event FIFO of the given
// capacity.
func NewReader(notify *Inotify, queueCapacity int, logger *logging.Logger) *Reader {
	return &Reader{
		notify: notify,
		logger: logger,
		Events: make(chan event.Raw, queueCapacity),
	}
}

// Stop requests that Run return at its next readiness-wait tick.
func (r *Reader) Stop() {
	atomic.StoreInt32(&r.stopped, 1)
}

func (r *Reader) stopRequested() bool {
	return atomic.LoadInt32(&r.stopped) != 0
}

// Run is the reader's main loop. It blocks until Stop is called (observed
// within readinessTimeout) or an unrecoverable read error occurs.
func (r *Reader) Run() error {
	defer close(r.Events)

	fd := r.notify.Fd()
	buf := make([]byte, readBufferSize)

	for {
		if r.stopRequested() {
			return nil
		}

		ready, err := r.waitReadable(fd)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return errors.Wrap(err, "select on inotify fd failed")
		}
		if !ready {
			continue
		}

		n, err := unix.Read(fd, buf)
		if err != nil {
			if err == unix.EINTR || err == unix.EAGAIN {
				continue
			}
			return errors.Wrap(err, "read on inotify fd failed")
		}
		if n < unix.SizeofInotifyEvent {
			continue
		}

		now := time.Now()
		var offset uint32
		for offset <= uint32(n)-unix.SizeofInotifyEvent {
			raw := (*unix.InotifyEvent)(unsafe.Pointer(&buf[offset]))
			nameLen := raw.Len

			var name string
			if nameLen > 0 {
				nameBytes := buf[offset+unix.SizeofInotifyEvent : offset+unix.SizeofInotifyEvent+nameLen]
				name = strings.TrimRight(string(nameBytes), "\x00")
			}

			raw64 := event.Raw{
				WatchID: raw.Wd,
				Mask:    event.Mask(raw.Mask),
				Cookie:  raw.Cookie,
				Name:    name,
				Time:    now,
			}

			// This is the reader's one suspension point beyond the
			// readiness wait: if the dispatcher is behind, this blocks
			// rather than dropping the event.
			r.Events <- raw64

			offset += unix.SizeofInotifyEvent + nameLen
		}
	}
}

// waitReadable blocks for up to readinessTimeout waiting for fd to become
// readable, the Go equivalent of the original tool's event_check().
func (r *Reader) waitReadable(fd int) (bool, error) {
	var rfds unix.FdSet
	fdSet(&rfds, fd)
	timeout := unix.NsecToTimeval(readinessTimeout.Nanoseconds())
	n, err := unix.Select(fd+1, &rfds, nil, nil, &timeout)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func fdSet(set *unix.FdSet, fd int) {
	set.Bits[fd/64] |= 1 << (uint(fd) % 64)
}
