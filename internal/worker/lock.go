package worker

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"github.com/cesargomez89/adfreecast/internal/constants"
)

var ErrLocked = errors.New("another adfreecast process is running")

// Lock is the single-coordinator guard. Only one process may dispatch
// episodes against a database at a time.
type Lock struct {
	fl *flock.Flock
}

func AcquireLock(path string) (*Lock, error) {
	if err := os.MkdirAll(filepath.Dir(path), constants.DirPermissions); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("%w (lock %s)", ErrLocked, path)
	}
	return &Lock{fl: fl}, nil
}

func (l *Lock) Path() string {
	return l.fl.Path()
}

func (l *Lock) Release() error {
	return l.fl.Unlock()
}

// EnsureUnlocked fails with ErrLocked while a coordinator holds the lock.
// Commands that rewrite processing state call it before touching the store.
func EnsureUnlocked(path string) error {
	lock, err := AcquireLock(path)
	if err != nil {
		return err
	}
	return lock.Release()
}
