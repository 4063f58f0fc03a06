package client

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/paths"
	"github.com/gmunoz/galaxy/pkg/galaxy/protocol"
)

// withTempRoot points pkg/galaxy/paths at a scratch directory for the
// duration of a test, so Connect's socket naming never collides across
// tests or with a real daemon on the machine.
func withTempRoot(t *testing.T) {
	t.Helper()
	previous := paths.Root
	paths.Root = t.TempDir()
	t.Cleanup(func() { paths.Root = previous })
}

// fakeDaemon accepts exactly one handshake connection and replies with ack,
// standing in for the command server during client tests.
func fakeDaemon(t *testing.T, ack protocol.Ack) (socketPath string, handshakes chan protocol.HandshakeRequest) {
	t.Helper()
	socketPath = filepath.Join(t.TempDir(), "galaxyd.sock")
	l, err := net.Listen("unix", socketPath)
	if err != nil {
		t.Fatalf("unable to listen: %v", err)
	}
	handshakes = make(chan protocol.HandshakeRequest, 4)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				req, err := protocol.ReadHandshakeRequest(conn)
				if err != nil {
					return
				}
				protocol.WriteAck(conn, ack)
				handshakes <- req
			}()
		}
	}()
	t.Cleanup(func() { l.Close() })
	return socketPath, handshakes
}

func TestConnectSucceedsOnAck(t *testing.T) {
	withTempRoot(t)
	socketPath, handshakes := fakeDaemon(t, protocol.AckSuccess)

	c, err := Connect(socketPath)
	if err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	defer c.deliveryListener.Close()

	select {
	case <-handshakes:
	case <-time.After(2 * time.Second):
		t.Fatal("daemon never observed a handshake")
	}
}

func TestConnectFailsOnAckFail(t *testing.T) {
	withTempRoot(t)
	socketPath, _ := fakeDaemon(t, protocol.AckFail)

	if _, err := Connect(socketPath); err == nil {
		t.Fatal("Connect() succeeded despite AckFail")
	}
}

// fakeSessionControl accepts per-session control connections on the path
// Connect will have computed, recording each request it receives.
func fakeSessionControl(t *testing.T, controlPath string, ack protocol.Ack) chan protocol.ControlRequest {
	t.Helper()
	l, err := net.Listen("unix", controlPath)
	if err != nil {
		t.Fatalf("unable to listen on control path: %v", err)
	}
	requests := make(chan protocol.ControlRequest, 4)
	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				req, err := protocol.ReadControlRequest(conn)
				if err != nil {
					return
				}
				if req.Command != protocol.CommandIgnoreMask && req.Command != protocol.CommandExit {
					protocol.WriteAck(conn, ack)
				}
				requests <- req
			}()
		}
	}()
	t.Cleanup(func() { l.Close() })
	return requests
}

func connectedClient(t *testing.T) (*Client, chan protocol.ControlRequest) {
	t.Helper()
	withTempRoot(t)
	socketPath, _ := fakeDaemon(t, protocol.AckSuccess)
	c, err := Connect(socketPath)
	if err != nil {
		t.Fatalf("Connect() failed: %v", err)
	}
	t.Cleanup(func() { c.deliveryListener.Close() })
	requests := fakeSessionControl(t, c.controlPath, protocol.AckSuccess)
	return c, requests
}

func TestWatchSendsIncludeCommand(t *testing.T) {
	c, requests := connectedClient(t)

	if err := c.Watch(event.Create, "^/tmp"); err != nil {
		t.Fatalf("Watch() failed: %v", err)
	}

	select {
	case req := <-requests:
		if req.Command != protocol.CommandWatch || req.Regex != "^/tmp" || req.Mask != event.Create {
			t.Fatalf("unexpected request: %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon never observed a WATCH command")
	}
}

func TestIgnoreWatchSendsExcludeCommand(t *testing.T) {
	c, requests := connectedClient(t)

	if err := c.IgnoreWatch(event.All, "^/proc"); err != nil {
		t.Fatalf("IgnoreWatch() failed: %v", err)
	}

	select {
	case req := <-requests:
		if req.Command != protocol.CommandIgnoreWatch || req.Regex != "^/proc" {
			t.Fatalf("unexpected request: %+v", req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("daemon never observed an IGNORE_WATCH command")
	}
}

func TestReceiveReadsDeliveredEvent(t *testing.T) {
	c, _ := connectedClient(t)

	want := event.Delivered{Mask: event.Create, Timestamp: time.Unix(1700000000, 0).UTC(), Path: "/tmp/x"}
	go func() {
		conn, err := net.DialTimeout("unix", c.deliverySocketPath, DialTimeout)
		if err != nil {
			return
		}
		defer conn.Close()
		protocol.WriteDelivered(conn, want)
	}()

	got, err := c.Receive()
	if err != nil {
		t.Fatalf("Receive() failed: %v", err)
	}
	if got != want {
		t.Fatalf("Receive() = %+v, want %+v", got, want)
	}
}
