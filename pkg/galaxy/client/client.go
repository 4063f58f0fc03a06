// Package client implements the companion client library:
// connect/watch/ignore_watch/ignore_mask/receive/close, built directly on
// the wire protocol in pkg/galaxy/protocol. It is the Go equivalent of the
// original tool's libgalaxy.c.
//
// A Client is single-threaded per instance: callers that want concurrency
// must serialize externally or use separate Client values.
package client

import (
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/paths"
	"github.com/gmunoz/galaxy/pkg/galaxy/protocol"
)

// nextLocalID is the process-wide monotonic counter the original tool kept
// as a static uint32 in libgalaxy.c. It is process-wide (not per Client)
// so that concurrent Client instances in the same process never collide on
// a socket name.
var nextLocalID uint32

// DialTimeout bounds every short-lived control connection the client
// library opens.
const DialTimeout = 5 * time.Second

// Client is a connected session with the daemon.
type Client struct {
	controlPrefix      string
	daemonSocketPath   string
	pid                uint32
	localID            uint32
	deliverySocketPath string
	deliveryListener   net.Listener
	controlPath        string
}

// Connect performs the daemon control socket handshake: it creates a
// local delivery listener, sends the handshake request, and on success
// computes the canonical per-session control path. The delivery listener
// and the control path are deliberately different paths even though both
// are keyed by the same (pid, localID) pair: the client binds the
// delivery socket itself, while the daemon is about to bind its own
// listener at the control path during this same handshake, and the two
// must never collide on disk. On ACK_FAIL Connect returns an error and
// retains no session state, failing cleanly rather than caching an
// unusable session name.
func Connect(daemonSocketPath string) (*Client, error) {
	pid := uint32(os.Getpid())
	localID := atomic.AddUint32(&nextLocalID, 1) - 1

	controlPrefix := paths.ClientControlPrefix()
	if err := paths.EnsureRoot(); err != nil {
		return nil, errors.Wrap(err, "unable to create galaxy root directory")
	}

	deliverySocketPath := paths.DeliverySocketPath(controlPrefix, pid, localID)
	os.Remove(deliverySocketPath)
	deliveryListener, err := net.Listen("unix", deliverySocketPath)
	if err != nil {
		return nil, errors.Wrap(err, "unable to create delivery listener")
	}

	conn, err := net.DialTimeout("unix", daemonSocketPath, DialTimeout)
	if err != nil {
		deliveryListener.Close()
		return nil, errors.Wrap(err, "unable to connect to daemon")
	}
	defer conn.Close()

	req := protocol.HandshakeRequest{
		DeliverySocketPath: deliverySocketPath,
		PID:                pid,
		ClientLocalID:      localID,
	}
	if err := protocol.WriteHandshakeRequest(conn, req); err != nil {
		deliveryListener.Close()
		return nil, errors.Wrap(err, "unable to send handshake")
	}

	ack, err := protocol.ReadAck(conn)
	if err != nil {
		deliveryListener.Close()
		return nil, errors.Wrap(err, "unable to read handshake ack")
	}
	if ack != protocol.AckSuccess {
		deliveryListener.Close()
		return nil, fmt.Errorf("daemon rejected handshake")
	}

	return &Client{
		controlPrefix:      controlPrefix,
		daemonSocketPath:   daemonSocketPath,
		pid:                pid,
		localID:            localID,
		deliverySocketPath: deliverySocketPath,
		deliveryListener:   deliveryListener,
		controlPath:        paths.SessionControlPath(controlPrefix, pid, localID),
	}, nil
}

// sendCommand opens a short-lived connection to the session's control
// socket and sends req, the Go equivalent of galaxy_send_server_command().
func (c *Client) sendCommand(req protocol.ControlRequest) (net.Conn, error) {
	conn, err := net.DialTimeout("unix", c.controlPath, DialTimeout)
	if err != nil {
		return nil, errors.Wrap(err, "unable to connect to session control socket")
	}
	if err := protocol.WriteControlRequest(conn, req); err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "unable to send command")
	}
	return conn, nil
}

// Watch appends an include rule: events matching mask on paths matching
// regex will be delivered.
func (c *Client) Watch(mask event.Mask, regex string) error {
	return c.sendRuleCommand(protocol.CommandWatch, mask, regex)
}

// IgnoreWatch appends an exclude rule.
func (c *Client) IgnoreWatch(mask event.Mask, regex string) error {
	return c.sendRuleCommand(protocol.CommandIgnoreWatch, mask, regex)
}

func (c *Client) sendRuleCommand(command protocol.Command, mask event.Mask, regex string) error {
	conn, err := c.sendCommand(protocol.ControlRequest{Command: command, Mask: mask, Regex: regex})
	if err != nil {
		return err
	}
	defer conn.Close()

	ack, err := protocol.ReadAck(conn)
	if err != nil {
		return errors.Wrap(err, "unable to read command ack")
	}
	if ack != protocol.AckSuccess {
		return fmt.Errorf("daemon rejected regex %q", regex)
	}
	return nil
}

// IgnoreMask ORs mask into the session's ignore mask. It is not
// acknowledged, since it cannot fail.
func (c *Client) IgnoreMask(mask event.Mask) error {
	conn, err := c.sendCommand(protocol.ControlRequest{Command: protocol.CommandIgnoreMask, Mask: mask})
	if err != nil {
		return err
	}
	return conn.Close()
}

// Receive accepts one delivery connection and reads one event. It blocks
// until the daemon delivers an event.
func (c *Client) Receive() (event.Delivered, error) {
	conn, err := c.deliveryListener.Accept()
	if err != nil {
		return event.Delivered{}, errors.Wrap(err, "unable to accept delivery connection")
	}
	defer conn.Close()

	delivered, err := protocol.ReadDelivered(conn)
	if err != nil {
		return event.Delivered{}, errors.Wrap(err, "unable to read delivered event")
	}
	return delivered, nil
}

// Close sends EXIT and tears down the local delivery listener.
func (c *Client) Close() error {
	conn, err := c.sendCommand(protocol.ControlRequest{Command: protocol.CommandExit})
	if err == nil {
		conn.Close()
	}
	return c.deliveryListener.Close()
}
