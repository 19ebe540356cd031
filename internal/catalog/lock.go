package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process already holds a conflicting
// lock on the logical name's catalog entries.
var ErrLocked = errors.New("catalog is locked by another process")

// Lock is an advisory file lock scoped to one logical name. Writers
// (archive builder, retention pruning) take it exclusive; readers
// (restore, verify) take it shared.
type Lock struct {
	fl *flock.Flock
}

func lockPath(root, logicalName string) string {
	return filepath.Join(root, "."+logicalName+".lock")
}

// Acquire takes the exclusive lock, failing immediately with ErrLocked if
// any other holder exists. A concurrent backup or prune of the same
// logical name must never interleave, so there is no blocking variant.
func Acquire(root, logicalName string) (*Lock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create backup root %q: %w", root, err)
	}
	fl := flock.New(lockPath(root, logicalName))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %q: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, logicalName)
	}
	return &Lock{fl: fl}, nil
}

// AcquireShared takes the shared lock. Multiple restores may hold it at
// once; it fails with ErrLocked while a writer holds the exclusive lock.
func AcquireShared(root, logicalName string) (*Lock, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create backup root %q: %w", root, err)
	}
	fl := flock.New(lockPath(root, logicalName))
	ok, err := fl.TryRLock()
	if err != nil {
		return nil, fmt.Errorf("rlock %q: %w", fl.Path(), err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, logicalName)
	}
	return &Lock{fl: fl}, nil
}

// Release drops the lock. The lock file itself is left in place.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
