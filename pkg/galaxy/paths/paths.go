// Package paths computes the well-known filesystem locations the daemon
// and client library must agree on: a subpath helper under a single root
// directory, applied to the original tool's fixed /tmp locations
// (LOCKFILE, CLI_PATH, GALAXY_SOCKET in galaxyd.c/galaxy.h).
package paths

import (
	"fmt"
	"os"
	"path/filepath"
)

// Root is the directory under which all galaxy IPC endpoints live. It is
// overridable (primarily for tests) via the GALAXY_ROOT environment
// variable, defaulting to a ".galaxy" directory under os.TempDir() (the
// original tool placed these files directly in /tmp).
var Root = defaultRoot()

func defaultRoot() string {
	if root := os.Getenv("GALAXY_ROOT"); root != "" {
		return root
	}
	return filepath.Join(os.TempDir(), ".galaxy")
}

// EnsureRoot creates Root if it does not already exist.
func EnsureRoot() error {
	return os.MkdirAll(Root, 0700)
}

// LockPath is the single-instance advisory lock file, the Go equivalent of
// the original tool's LOCKFILE ("/tmp/galaxyd.pid").
func LockPath() string {
	return filepath.Join(Root, "galaxyd.pid")
}

// DaemonSocketPath is the daemon's well-known control socket, the Go
// equivalent of the original tool's GALAXY_SOCKET.
func DaemonSocketPath() string {
	return filepath.Join(Root, "galaxyd.sock")
}

// ClientControlPrefix is the path prefix shared by a client's delivery
// socket and its per-session control socket, the Go equivalent of the
// original tool's CLI_PATH.
func ClientControlPrefix() string {
	return filepath.Join(Root, "cli.")
}

// controlPathFormat mirrors the original tool's "%s%05d.%d" session-socket
// naming (server_thread.c).
const controlPathFormat = "%s%05d.%d"

// deliveryPathFormat names a client's own event-delivery listener. It is
// keyed by the same (pid, id) pair as SessionControlPath but carries a
// distinct suffix: the delivery socket is bound by the client, the control
// socket at SessionControlPath is bound by the daemon, and the two must
// never collide on disk. The original tool kept these apart by accident,
// deriving the client's listener name from uniqueid before a post-increment
// and the session control name from uniqueid after it; here the separation
// is explicit instead.
const deliveryPathFormat = "%s%05d.%d.rx"

// SessionControlPath computes the canonical per-session control socket
// path for a given client-local id, rooted at prefix. The command server
// and the client library both call this with the same prefix, PID and id
// so they agree on where the daemon's per-session listener lives.
func SessionControlPath(prefix string, pid, id uint32) string {
	return fmt.Sprintf(controlPathFormat, prefix, pid, id)
}

// DeliverySocketPath computes a client's own event-delivery listener path.
// Only the client ever calls this; the daemon receives the resulting path
// verbatim in the handshake and dials it without recomputing it.
func DeliverySocketPath(prefix string, pid, id uint32) string {
	return fmt.Sprintf(deliveryPathFormat, prefix, pid, id)
}
