// Package session implements the per-client subscription model: a session
// tracks one connected client's delivery address, its ordered rule set,
// and its session-wide ignore mask, and the registry tracks every live
// session under a single lock.
package session

import (
	"sync"

	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/rule"
)

// Session is the daemon-side state held for one connected client. It is
// created by the command server's handshake handler and destroyed on EXIT
// or delivery failure.
//
// The wire protocol delivers one event per accepted connection to the
// client's delivery socket, so this type does not cache an open delivery
// file descriptor: the dispatcher dials DeliverySocketPath fresh for each
// delivery attempt (see pkg/galaxy/dispatch), which is both simpler and
// matches the original tool's galaxy_receive(), which also opens, reads
// one event, and closes.
type Session struct {
	// Name is the unique session name derived from the client's PID and a
	// monotonic per-process counter, e.g. "12345.0".
	Name string
	// DeliverySocketPath is the client-owned Unix socket the dispatcher
	// dials to hand over one serialized event.
	DeliverySocketPath string

	mu         sync.Mutex
	rules      rule.Set
	ignoreMask event.Mask
}

// New creates a Session with no rules and an empty ignore mask.
func New(name, deliverySocketPath string) *Session {
	return &Session{Name: name, DeliverySocketPath: deliverySocketPath}
}

// AddRule appends r to the session's rule list. Rule ordering is an
// invariant AddRule never breaks: it never reorders or deduplicates.
func (s *Session) AddRule(r rule.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = append(s.rules, r)
}

// SetIgnoreMask ORs bits into the session's ignore mask (IGNORE_MASK is
// cumulative: "session.ignore_mask |= mask").
func (s *Session) SetIgnoreMask(mask event.Mask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreMask |= mask
}

// Snapshot returns the current rule set and ignore mask under the
// session's lock, for the dispatcher to evaluate without holding the lock
// across regex matching.
func (s *Session) Snapshot() (rule.Set, event.Mask) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rules := make(rule.Set, len(s.rules))
	copy(rules, s.rules)
	return rules, s.ignoreMask
}
