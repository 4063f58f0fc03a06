// Package dispatch implements the event dispatcher directly: it
// drains the reader's event queue one record at a time, resolves each
// record's absolute path, evaluates every live session's rule set against
// it, and fans out matching events over each session's delivery socket.
package dispatch

import (
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/gmunoz/galaxy/pkg/galaxy"
	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/logging"
	"github.com/gmunoz/galaxy/pkg/galaxy/protocol"
	"github.com/gmunoz/galaxy/pkg/galaxy/registry"
	"github.com/gmunoz/galaxy/pkg/galaxy/rule"
	"github.com/gmunoz/galaxy/pkg/galaxy/session"
)

// DefaultWriteTimeout bounds a single delivery-socket write.
const DefaultWriteTimeout = 2 * time.Second

// installer and remover are the crawler operations the dispatcher triggers
// as self-managed side effects. They are narrow interfaces so dispatch
// does not need to import the watching package's full surface.
type installer interface {
	InstallOne(path string) (int32, error)
}

type remover interface {
	Remove(id int32)
}

// Dispatcher wires the watch registry, the session registry, and the
// crawler's install/remove hooks together around a single event queue.
type Dispatcher struct {
	registry     *registry.Registry
	sessions     *session.Registry
	crawler      installer
	remover      remover
	events       <-chan event.Raw
	writeTimeout time.Duration
	logger       *logging.Logger

	dialer func(network, address string, timeout time.Duration) (net.Conn, error)
}

// New creates a Dispatcher. events is the reader's output queue; crawler
// and remover are typically the same *watching.Crawler value.
func New(reg *registry.Registry, sessions *session.Registry, crawler installer, rem remover, events <-chan event.Raw, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		registry:     reg,
		sessions:     sessions,
		crawler:      crawler,
		remover:      rem,
		events:       events,
		writeTimeout: DefaultWriteTimeout,
		logger:       logger,
		dialer:       net.DialTimeout,
	}
}

// Run drains events until the channel is closed (the reader has stopped).
func (d *Dispatcher) Run() {
	for raw := range d.events {
		d.process(raw)
	}
}

func (d *Dispatcher) process(raw event.Raw) {
	if raw.Mask&event.QOverflow != 0 {
		d.broadcast(event.Delivered{Mask: raw.Mask, Timestamp: raw.Time, Path: ""})
		return
	}

	watchPath, known := d.registry.Lookup(raw.WatchID)
	if !known {
		// Tolerate events (typically IGNORED) that arrive after the
		// mapping was already removed.
		watchPath = ""
	}

	path := resolvePath(watchPath, raw.Name)

	if raw.Mask&event.Unmount != 0 {
		d.broadcast(event.Delivered{Mask: raw.Mask, Timestamp: raw.Time, Path: path})
		if path != "" {
			d.registry.MarkStale(path)
		}
	} else {
		d.fanout(raw, path)
	}

	// Self-managed side effects. These run after the fan-outs for this
	// event complete.
	if raw.Mask&event.Create != 0 && raw.Mask&event.IsDir != 0 && d.crawler != nil {
		if _, err := d.crawler.InstallOne(path); err != nil {
			d.logger.Warnf("unable to install watch for new directory %q: %v", path, err)
		}
	}
	if (raw.Mask&event.DeleteSelf != 0 || raw.Mask&event.Ignored != 0) && d.remover != nil {
		d.remover.Remove(raw.WatchID)
	}
}

// resolvePath joins a watch's directory with an event's child name,
// avoiding a duplicated trailing slash when name is empty.
func resolvePath(watchPath, name string) string {
	if name == "" {
		return watchPath
	}
	return filepath.Join(watchPath, name)
}

// fanout delivers raw (resolved to path) to every session whose rules
// accept it.
func (d *Dispatcher) fanout(raw event.Raw, path string) {
	var dead []string
	d.sessions.ForEach(func(s *session.Session) {
		rules, ignoreMask := s.Snapshot()

		effectiveMask := raw.Mask &^ ignoreMask
		if effectiveMask == 0 {
			return
		}

		if rules.Evaluate(effectiveMask, path) != rule.Accepted {
			return
		}

		if !d.deliver(s, event.Delivered{Mask: raw.Mask, Timestamp: raw.Time, Path: path}) {
			dead = append(dead, s.Name)
		}
	})
	for _, name := range dead {
		d.sessions.Unregister(name)
	}
}

// broadcast delivers d unconditionally to every live session, bypassing
// rule matching, for first-class events that must reach every client
// regardless of subscription (Q_OVERFLOW, UNMOUNT).
func (d *Dispatcher) broadcast(delivered event.Delivered) {
	var dead []string
	d.sessions.ForEach(func(s *session.Session) {
		if !d.deliver(s, delivered) {
			dead = append(dead, s.Name)
		}
	})
	for _, name := range dead {
		d.sessions.Unregister(name)
	}
}

// deliver dials s's delivery socket and writes one event, bounded by the
// dispatcher's write timeout. It reports false if the write failed, which
// means the session's delivery socket has died and should be removed.
func (d *Dispatcher) deliver(s *session.Session, delivered event.Delivered) bool {
	conn, err := d.dialer("unix", s.DeliverySocketPath, d.writeTimeout)
	if err != nil {
		d.logger.Warn(fmt.Errorf("%w: session %s: unable to dial delivery socket: %v", galaxy.ErrClientWriteFailed, s.Name, err))
		return false
	}
	defer conn.Close()

	conn.SetWriteDeadline(time.Now().Add(d.writeTimeout))
	if err := protocol.WriteDelivered(conn, delivered); err != nil {
		d.logger.Warn(fmt.Errorf("%w: session %s: delivery write failed: %v", galaxy.ErrClientWriteFailed, s.Name, err))
		return false
	}
	return true
}
