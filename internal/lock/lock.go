package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/oshokin/channelup/internal/domain/installation"
)

// pollEvery is the retry interval while the lock is held elsewhere.
var pollEvery = 100 * time.Millisecond

// errWouldBlock is returned by tryLock when another holder owns the lock.
var errWouldBlock = errors.New("lock is held")

// Lock is a held installation lock.
type Lock struct {
	file *os.File
}

// Path returns the lock file location for an installation directory.
func Path(installDir string) string {
	abs, err := filepath.Abs(installDir)
	if err != nil {
		abs = filepath.Clean(installDir)
	}

	return filepath.Join(filepath.Dir(abs), "."+filepath.Base(abs)+".lock")
}

// Acquire takes the lock of installDir, polling until timeout. A held lock
// after the timeout yields LockedError.
func Acquire(ctx context.Context, installDir string, timeout time.Duration) (*Lock, error) {
	path := Path(installDir)

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open lock %s: %w", path, err)
	}

	deadline := time.Now().Add(timeout)

	for {
		err = tryLock(file)
		if err == nil {
			return &Lock{file: file}, nil
		}

		if !errors.Is(err, errWouldBlock) {
			_ = file.Close()

			return nil, fmt.Errorf("lock %s: %w", path, err)
		}

		if !time.Now().Before(deadline) {
			_ = file.Close()

			return nil, &installation.LockedError{Dir: installDir}
		}

		select {
		case <-ctx.Done():
			_ = file.Close()

			return nil, ctx.Err()
		case <-time.After(pollEvery):
		}
	}
}

// Release unlocks and closes the lock file. The file itself is left in place.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}

	err := unlock(l.file)
	closeErr := l.file.Close()
	l.file = nil

	if err != nil {
		return err
	}

	return closeErr
}
