// Package daemon wires together the watch registry, crawler, kernel event
// reader, dispatcher, session registry, and command server into the
// long-running galaxyd process, and owns the process lifecycle:
// single-instance locking, signal-driven cooperative shutdown, and ordered
// teardown of every subsystem.
package daemon

import (
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/gmunoz/galaxy/pkg/galaxy"
	"github.com/gmunoz/galaxy/pkg/galaxy/dispatch"
	"github.com/gmunoz/galaxy/pkg/galaxy/logging"
	"github.com/gmunoz/galaxy/pkg/galaxy/registry"
	"github.com/gmunoz/galaxy/pkg/galaxy/server"
	"github.com/gmunoz/galaxy/pkg/galaxy/session"
	"github.com/gmunoz/galaxy/pkg/galaxy/watching"
)

// DefaultQueueCapacity bounds the reader-to-dispatcher event FIFO.
const DefaultQueueCapacity = 128

// Config holds everything a Daemon needs to start.
type Config struct {
	// Roots are the directory trees to watch.
	Roots []string
	// Prune is the set of directories (and their subtrees) to never
	// watch.
	Prune []string
	// Recursive selects depth-first installation under each root versus
	// watching only the root directories themselves.
	Recursive bool

	// LockPath is the single-instance lock file.
	LockPath string
	// SocketPath is the daemon control socket.
	SocketPath string
	// ControlPrefix is the per-session control/delivery socket path
	// prefix.
	ControlPrefix string

	// QueueCapacity bounds the reader-to-dispatcher event FIFO. Zero
	// selects DefaultQueueCapacity.
	QueueCapacity int

	Logger *logging.Logger
}

// Daemon is one running instance of galaxyd.
type Daemon struct {
	config   Config
	logger   *logging.Logger
	lock     *Lock
	notify   *watching.Inotify
	registry *registry.Registry
	sessions *session.Registry
	crawler  *watching.Crawler
	reader   *watching.Reader
	disp     *dispatch.Dispatcher
	srv      *server.Server
}

// New acquires the single-instance lock, initializes the kernel
// notification interface, performs the initial crawl, and binds the
// control socket. The returned Daemon is ready for Run.
func New(cfg Config) (*Daemon, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.RootLogger
	}
	if cfg.QueueCapacity == 0 {
		cfg.QueueCapacity = DefaultQueueCapacity
	}

	lock, err := AcquireLock(cfg.LockPath)
	if err != nil {
		return nil, err
	}

	notify, err := watching.OpenInotify()
	if err != nil {
		lock.Release()
		return nil, fmt.Errorf("%w: %v", galaxy.ErrNotifyInitFailed, err)
	}

	reg := registry.New()
	crawler := watching.NewCrawler(notify, reg, cfg.Prune, logger.Sublogger("crawler"))
	crawler.Crawl(cfg.Roots, cfg.Recursive)

	reader := watching.NewReader(notify, cfg.QueueCapacity, logger.Sublogger("reader"))
	sessions := session.NewRegistry()
	disp := dispatch.New(reg, sessions, crawler, crawler, reader.Events, logger.Sublogger("dispatch"))

	srv, err := server.Listen(cfg.SocketPath, cfg.ControlPrefix, sessions, logger.Sublogger("server"))
	if err != nil {
		notify.Close()
		lock.Release()
		return nil, fmt.Errorf("%w: %v", galaxy.ErrListenBindFailed, err)
	}

	logger.Printf("instance %s starting (pid %d)", lock.Instance, os.Getpid())

	return &Daemon{
		config:   cfg,
		logger:   logger,
		lock:     lock,
		notify:   notify,
		registry: reg,
		sessions: sessions,
		crawler:  crawler,
		reader:   reader,
		disp:     disp,
		srv:      srv,
	}, nil
}

// Run starts every subsystem and blocks until a shutdown signal arrives
// (or one of the long-lived subsystems fails), then performs ordered
// teardown: acceptors, then the reader, then the dispatcher, then the
// registries.
func (d *Daemon) Run() error {
	var wg sync.WaitGroup
	readerErr := make(chan error, 1)
	serverErr := make(chan error, 1)

	wg.Add(1)
	go func() {
		defer wg.Done()
		readerErr <- d.reader.Run()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		d.disp.Run()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		serverErr <- d.srv.Serve()
	}()

	go d.debugLoop()

	sigCh := make(chan os.Signal, 8)
	signal.Notify(sigCh)
	defer signal.Stop(sigCh)

	shutdown := false
	for !shutdown {
		select {
		case sig := <-sigCh:
			shutdown = d.handleSignal(sig)
		case err := <-readerErr:
			if err != nil {
				d.logger.Errorf("kernel event reader failed: %v", err)
			}
			shutdown = true
		case err := <-serverErr:
			if err != nil {
				d.logger.Errorf("command server failed: %v", err)
			}
			shutdown = true
		}
	}

	d.logger.Print("shutting down")

	// Shutdown order: acceptors, then reader, then dispatcher, then
	// registries. The crawler has no standing background loop of its own
	// in this implementation (installs happen synchronously from the
	// dispatcher), so there is nothing to stop between the acceptors and
	// the reader.
	d.srv.Stop()
	d.reader.Stop()
	wg.Wait()

	if err := d.notify.Close(); err != nil {
		d.logger.Warnf("unable to close inotify fd: %v", err)
	}
	if err := d.lock.Release(); err != nil {
		d.logger.Warnf("unable to release daemon lock: %v", err)
	}

	d.logger.Print("exiting now")
	return nil
}

// handleSignal applies the shutdown policy: SIGINT triggers shutdown,
// SIGQUIT is logged and ignored, anything else produces a warning.
func (d *Daemon) handleSignal(sig os.Signal) (shutdown bool) {
	switch sig {
	case syscall.SIGINT, syscall.SIGTERM:
		d.logger.Print("shutdown signal received")
		return true
	case syscall.SIGQUIT:
		d.logger.Print("SIGQUIT received (ignored)")
		return false
	default:
		d.logger.Warnf("unexpected signal: %v", sig)
		return false
	}
}

// debugLoop periodically logs queue depth and watch/session counts when
// debugging is enabled, the Go equivalent of the original tool's verbose
// DEBUG_* tracing.
func (d *Daemon) debugLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()
	for range ticker.C {
		d.logger.Debugf(
			"watches=%s sessions=%s queue_depth=%s",
			humanize.Comma(int64(d.registry.Len())),
			humanize.Comma(int64(d.sessions.Len())),
			humanize.Comma(int64(len(d.reader.Events))),
		)
	}
}
