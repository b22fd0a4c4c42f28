package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
)

// BuildLock serializes index builds across processes sharing a cache
// directory. The lock file is <dir>/.build.lock.
type BuildLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewBuildLock creates a lock for the cache directory dir.
func NewBuildLock(dir string) *BuildLock {
	path := filepath.Join(dir, ".build.lock")
	return &BuildLock{path: path, flock: flock.New(path)}
}

// TryLock acquires the lock without blocking. If another process holds it
// the error carries ERR_208_INDEX_LOCKED.
func (l *BuildLock) TryLock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create lock directory: %w", err)
	}

	acquired, err := l.flock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire build lock: %w", err)
	}
	if !acquired {
		return herrors.New(herrors.ErrCodeIndexLocked, "another build-index is running", nil).
			WithDetail("lock", l.path)
	}
	l.locked = true
	return nil
}

// Unlock releases the lock. Safe to call when not held.
func (l *BuildLock) Unlock() error {
	if !l.locked {
		return nil
	}
	l.locked = false
	if err := l.flock.Unlock(); err != nil {
		return fmt.Errorf("release build lock: %w", err)
	}
	return nil
}

// Path returns the lock file path.
func (l *BuildLock) Path() string {
	return l.path
}
