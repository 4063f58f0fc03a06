// Package server implements the daemon control socket and per-session
// control sockets: the handshake that creates a client session, and the
// detached per-client worker that thereafter accepts one command per
// connection and mutates that session's rules.
package server

import (
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/gmunoz/galaxy/pkg/galaxy"
	"github.com/gmunoz/galaxy/pkg/galaxy/logging"
	"github.com/gmunoz/galaxy/pkg/galaxy/paths"
	"github.com/gmunoz/galaxy/pkg/galaxy/protocol"
	"github.com/gmunoz/galaxy/pkg/galaxy/rule"
	"github.com/gmunoz/galaxy/pkg/galaxy/session"
	"github.com/gmunoz/galaxy/pkg/must"
)

// Server is the daemon control socket: it accepts handshake connections
// and spins up a per-client worker (with its own listening socket) for
// each one.
type Server struct {
	listener      net.Listener
	controlPrefix string
	sessions      *session.Registry
	logger        *logging.Logger

	mu         sync.Mutex
	workerDone sync.WaitGroup
	workerStop map[string]net.Listener
}

// Listen binds the daemon control socket at path and returns a Server.
// Any stale socket file at path is removed first, so a crashed prior
// instance does not prevent rebinding.
func Listen(path, controlPrefix string, sessions *session.Registry, logger *logging.Logger) (*Server, error) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("unable to remove stale control socket: %w", err)
	}
	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("unable to bind control socket: %w", err)
	}
	return &Server{
		listener:      listener,
		controlPrefix: controlPrefix,
		sessions:      sessions,
		logger:        logger,
		workerStop:    make(map[string]net.Listener),
	}, nil
}

// Serve accepts handshake connections until the listener is closed by
// Stop, at which point the accept loop wakes on the resulting error and
// returns.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.handshake(conn)
	}
}

// Stop closes the control socket and every outstanding per-session control
// socket, causing all acceptors to wake and return.
func (s *Server) Stop() {
	must.Close(s.listener, s.logger)
	s.mu.Lock()
	for _, l := range s.workerStop {
		must.Close(l, s.logger)
	}
	s.mu.Unlock()
	s.workerDone.Wait()
}

func (s *Server) handshake(conn net.Conn) {
	defer conn.Close()

	req, err := protocol.ReadHandshakeRequest(conn)
	if err != nil {
		s.logger.Warnf("malformed handshake: %v", err)
		return
	}

	controlPath := paths.SessionControlPath(s.controlPrefix, req.PID, req.ClientLocalID)

	os.Remove(controlPath)
	listener, err := net.Listen("unix", controlPath)
	if err != nil {
		s.logger.Warnf("unable to create per-session listener at %q: %v", controlPath, err)
		protocol.WriteAck(conn, protocol.AckFail)
		return
	}

	if err := protocol.WriteAck(conn, protocol.AckSuccess); err != nil {
		s.logger.Warnf("unable to ack handshake: %v", err)
		listener.Close()
		return
	}

	name := fmt.Sprintf("%d.%d", req.PID, req.ClientLocalID)
	sess := session.New(name, req.DeliverySocketPath)
	s.sessions.Register(sess)

	s.mu.Lock()
	s.workerStop[name] = listener
	s.mu.Unlock()
	s.workerDone.Add(1)
	go s.worker(sess, listener)
}

// worker is the detached per-client command loop: it accepts one control
// connection at a time for the life of the session.
func (s *Server) worker(sess *session.Session, listener net.Listener) {
	logger := s.logger.Sublogger("worker").Sublogger(sess.Name)
	defer func() {
		s.mu.Lock()
		delete(s.workerStop, sess.Name)
		s.mu.Unlock()
		must.Close(listener, logger)
		s.workerDone.Done()
	}()

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Warnf("accept failed: %v", err)
			return
		}

		exit := s.handleCommand(sess, conn, logger)
		conn.Close()
		if exit {
			s.sessions.Unregister(sess.Name)
			return
		}
	}
}

// handleCommand reads and applies a single control command. It returns
// true if the session should be torn down (EXIT).
func (s *Server) handleCommand(sess *session.Session, conn net.Conn, logger *logging.Logger) bool {
	req, err := protocol.ReadControlRequest(conn)
	if err != nil {
		logger.Warn(fmt.Errorf("%w: %v", galaxy.ErrClientProtocolError, err))
		return false
	}

	switch req.Command {
	case protocol.CommandWatch:
		s.applyRule(sess, conn, rule.Include, req, logger)
	case protocol.CommandIgnoreWatch:
		s.applyRule(sess, conn, rule.Exclude, req, logger)
	case protocol.CommandIgnoreMask:
		sess.SetIgnoreMask(req.Mask)
	case protocol.CommandExit:
		return true
	default:
		logger.Warn(fmt.Errorf("%w: unrecognized command %s", galaxy.ErrClientProtocolError, req.Command))
	}
	return false
}

// applyRule compiles and appends a WATCH/IGNORE_WATCH rule, acknowledging
// a compile failure back to the client so bad regexes are reported
// instead of silently discarded.
func (s *Server) applyRule(sess *session.Session, conn net.Conn, kind rule.Kind, req protocol.ControlRequest, logger *logging.Logger) {
	r, err := rule.Compile(kind, req.Mask, req.Regex)
	if err != nil {
		logger.Warnf("session %s: rejecting command with unparsable regex %q: %v", sess.Name, req.Regex, err)
		protocol.WriteAck(conn, protocol.AckFail)
		return
	}
	sess.AddRule(r)
	protocol.WriteAck(conn, protocol.AckSuccess)
}
