// Package galaxy holds daemon-wide constants (version, error kinds) shared
// by every subpackage.
package galaxy

import "errors"

// Version components, matching the original tool's -v flag
// (GALAXY_MAJOR.GALAXY_MINOR.GALAXY_RELEASE).
const (
	VersionMajor = 1
	VersionMinor = 0
	VersionPatch = 0
)

// Error kinds shared across components. These are sentinel values for
// errors.Is; concrete errors returned by components wrap one of these,
// typically with fmt.Errorf's %w so callers retain both the
// classification and the underlying cause.
var (
	// ErrNotifyInitFailed indicates the kernel notification interface could
	// not be initialized. Fatal for daemon startup.
	ErrNotifyInitFailed = errors.New("notify init failed")
	// ErrWatchInstallFailed indicates a single directory's watch could not
	// be installed. Recovered per-path by the crawler.
	ErrWatchInstallFailed = errors.New("watch install failed")
	// ErrListenBindFailed indicates a listening socket could not be bound.
	// Fatal for the daemon's control socket; per-session for a client's
	// control socket.
	ErrListenBindFailed = errors.New("listen bind failed")
	// ErrRegexCompileFailed indicates a client-supplied rule regex did not
	// compile. The offending command is rejected.
	ErrRegexCompileFailed = errors.New("regex compile failed")
	// ErrClientWriteFailed indicates a delivery-socket write failed or timed
	// out. The owning session is removed.
	ErrClientWriteFailed = errors.New("client write failed")
	// ErrClientProtocolError indicates a malformed control connection. The
	// connection is closed.
	ErrClientProtocolError = errors.New("client protocol error")
	// ErrAlreadyRunning indicates the single-instance lock could not be
	// acquired because another daemon instance holds it.
	ErrAlreadyRunning = errors.New("galaxyd is already running")
)
