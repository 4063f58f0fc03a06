package daemon

import (
	"fmt"
	"os"
	"syscall"

	"github.com/google/uuid"

	"github.com/gmunoz/galaxy/pkg/galaxy"
)

// Lock is the daemon's global single-instance lock: a syscall.Flock_t-based
// advisory write lock on a file, matching the original tool's
// lockfile()/already_running() in galaxyd.c. Lock also writes the
// daemon's PID into the lock file, followed by a cosmetic instance tag,
// matching the original's on-disk contract while giving operators a way
// to tell apart restarts that reused a PID.
type Lock struct {
	file     *os.File
	Instance uuid.UUID
}

// AcquireLock opens (creating if necessary) the lock file at path and
// attempts to acquire an exclusive, non-blocking write lock on it. If
// another process already holds the lock, it returns galaxy.ErrAlreadyRunning.
func AcquireLock(path string) (*Lock, error) {
	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("unable to open lock file: %w", err)
	}

	spec := syscall.Flock_t{
		Type:   syscall.F_WRLCK,
		Whence: int16(os.SEEK_SET),
		Start:  0,
		Len:    0,
	}
	if err := syscall.FcntlFlock(file.Fd(), syscall.F_SETLK, &spec); err != nil {
		file.Close()
		if err == syscall.EACCES || err == syscall.EAGAIN {
			return nil, galaxy.ErrAlreadyRunning
		}
		return nil, fmt.Errorf("unexpected file locking error: %w", err)
	}

	instance := uuid.New()
	if err := file.Truncate(0); err != nil {
		file.Close()
		return nil, fmt.Errorf("unable to truncate lock file: %w", err)
	}
	contents := fmt.Sprintf("%d %s", os.Getpid(), instance)
	if _, err := file.WriteAt([]byte(contents), 0); err != nil {
		file.Close()
		return nil, fmt.Errorf("unable to write pid to lock file: %w", err)
	}

	return &Lock{file: file, Instance: instance}, nil
}

// Release unlocks and closes the lock file.
func (l *Lock) Release() error {
	spec := syscall.Flock_t{
		Type:   syscall.F_UNLCK,
		Whence: int16(os.SEEK_SET),
		Start:  0,
		Len:    0,
	}
	if err := syscall.FcntlFlock(l.file.Fd(), syscall.F_SETLK, &spec); err != nil {
		l.file.Close()
		return fmt.Errorf("unable to release lock: %w", err)
	}
	return l.file.Close()
}
