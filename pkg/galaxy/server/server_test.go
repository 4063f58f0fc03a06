package server

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gmunoz/galaxy/pkg/galaxy/event"
	"github.com/gmunoz/galaxy/pkg/galaxy/paths"
	"github.com/gmunoz/galaxy/pkg/galaxy/protocol"
	"github.com/gmunoz/galaxy/pkg/galaxy/session"
)

func newTestServer(t *testing.T) (*Server, string, *session.Registry) {
	t.Helper()
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "galaxyd.sock")
	sessions := session.NewRegistry()
	s, err := Listen(socketPath, filepath.Join(dir, "cli."), sessions, nil)
	if err != nil {
		t.Fatalf("Listen() failed: %v", err)
	}
	go s.Serve()
	t.Cleanup(s.Stop)
	return s, socketPath, sessions
}

func handshake(t *testing.T, socketPath string, pid, clientLocalID uint32) (net.Conn, string) {
	t.Helper()
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		t.Fatalf("unable to dial control socket: %v", err)
	}
	deliveryPath := filepath.Join(t.TempDir(), "delivery.sock")
	req := protocol.HandshakeRequest{DeliverySocketPath: deliveryPath, PID: pid, ClientLocalID: clientLocalID}
	if err := protocol.WriteHandshakeRequest(conn, req); err != nil {
		t.Fatalf("WriteHandshakeRequest() failed: %v", err)
	}
	ack, err := protocol.ReadAck(conn)
	if err != nil {
		t.Fatalf("ReadAck() failed: %v", err)
	}
	if ack != protocol.AckSuccess {
		t.Fatalf("handshake ack = %v, want AckSuccess", ack)
	}
	conn.Close()
	return conn, deliveryPath
}

func TestHandshakeRegistersSession(t *testing.T) {
	_, socketPath, sessions := newTestServer(t)
	handshake(t, socketPath, 1234, 0)

	name := "1234.0"
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sessions.Lookup(name); ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("session %s was never registered", name)
}

func TestWatchCommandAppliesRule(t *testing.T) {
	_, socketPath, sessions := newTestServer(t)
	handshake(t, socketPath, 5678, 0)

	controlPath := paths.SessionControlPath(filepath.Join(filepath.Dir(socketPath), "cli."), 5678, 0)
	var conn net.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.Dial("unix", controlPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("unable to dial per-session control socket: %v", err)
	}
	defer conn.Close()

	req := protocol.ControlRequest{Command: protocol.CommandWatch, Mask: event.Create, Regex: "^/tmp"}
	if err := protocol.WriteControlRequest(conn, req); err != nil {
		t.Fatalf("WriteControlRequest() failed: %v", err)
	}
	ack, err := protocol.ReadAck(conn)
	if err != nil {
		t.Fatalf("ReadAck() failed: %v", err)
	}
	if ack != protocol.AckSuccess {
		t.Fatalf("watch ack = %v, want AckSuccess", ack)
	}

	sess, ok := sessions.Lookup("5678.0")
	if !ok {
		t.Fatal("session not registered")
	}
	rules, _ := sess.Snapshot()
	if len(rules) != 1 || rules[0].Source != "^/tmp" {
		t.Fatalf("session rules = %+v, want one rule for ^/tmp", rules)
	}
}

func TestWatchCommandRejectsInvalidRegex(t *testing.T) {
	_, socketPath, _ := newTestServer(t)
	handshake(t, socketPath, 9999, 0)

	controlPath := paths.SessionControlPath(filepath.Join(filepath.Dir(socketPath), "cli."), 9999, 0)
	var conn net.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.Dial("unix", controlPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("unable to dial per-session control socket: %v", err)
	}
	defer conn.Close()

	req := protocol.ControlRequest{Command: protocol.CommandWatch, Mask: event.Create, Regex: "("}
	if err := protocol.WriteControlRequest(conn, req); err != nil {
		t.Fatalf("WriteControlRequest() failed: %v", err)
	}
	ack, err := protocol.ReadAck(conn)
	if err != nil {
		t.Fatalf("ReadAck() failed: %v", err)
	}
	if ack != protocol.AckFail {
		t.Fatalf("watch ack = %v, want AckFail for unparsable regex", ack)
	}
}

func TestExitCommandUnregistersSession(t *testing.T) {
	_, socketPath, sessions := newTestServer(t)
	handshake(t, socketPath, 4242, 0)

	controlPath := paths.SessionControlPath(filepath.Join(filepath.Dir(socketPath), "cli."), 4242, 0)
	var conn net.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.Dial("unix", controlPath)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("unable to dial per-session control socket: %v", err)
	}

	if err := protocol.WriteControlRequest(conn, protocol.ControlRequest{Command: protocol.CommandExit}); err != nil {
		t.Fatalf("WriteControlRequest() failed: %v", err)
	}
	conn.Close()

	deadline = time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := sessions.Lookup("4242.0"); !ok {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("session was not unregistered after EXIT")
}

func TestListenRemovesStaleSocket(t *testing.T) {
	dir := t.TempDir()
	socketPath := filepath.Join(dir, "galaxyd.sock")
	if err := os.WriteFile(socketPath, []byte("stale"), 0600); err != nil {
		t.Fatalf("unable to seed stale socket file: %v", err)
	}

	s, err := Listen(socketPath, filepath.Join(dir, "cli."), session.NewRegistry(), nil)
	if err != nil {
		t.Fatalf("Listen() failed to clean up a stale socket: %v", err)
	}
	s.Stop()
}
