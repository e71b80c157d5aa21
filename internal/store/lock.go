package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// writerLockName is the lock file held for the lifetime of a single writer
// (spec §5: exactly one writer per index directory; readers never block).
const writerLockName = ".writer.lock"

// WriterLock enforces the single-writer-per-index-directory rule using
// gofrs/flock, which works across platforms (Unix, Linux, macOS, Windows)
// and across processes, not just goroutines within one.
type WriterLock struct {
	path   string
	flock  *flock.Flock
	locked bool
}

// NewWriterLock returns a lock for storeDir's writer slot. storeDir is the
// IndexKey-derived directory from spec §3/§6.1.
func NewWriterLock(storeDir string) *WriterLock {
	lockPath := filepath.Join(storeDir, writerLockName)
	return &WriterLock{
		path:  lockPath,
		flock: flock.New(lockPath),
	}
}

// Lock acquires the exclusive writer slot, blocking until available.
func (l *WriterLock) Lock() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create store directory: %w", err)
	}
	if err := l.flock.Lock(); err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}
	l.locked = true
	return nil
}

// TryLock attempts to acquire the writer slot without blocking, returning
// false if another process (or another upsert/build_ann call) holds it.
func (l *WriterLock) TryLock() (bool, error) {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return false, fmt.Errorf("create store directory: %w", err)
	}
	acquired, err := l.flock.TryLock()
	if err != nil {
		return false, fmt.Errorf("acquire writer lock: %w", err)
	}
	if acquired {
		l.locked = true
	}
	return acquired, nil
}

// Unlock releases the writer slot. Safe to call multiple times.
func (l *WriterLock) Unlock() error {
	if !l.locked {
		return nil
	}
	if err := l.flock.Unlock(); err != nil {
		l.locked = false
		return fmt.Errorf("release writer lock: %w", err)
	}
	l.locked = false
	return nil
}

// Path returns the lock file's path.
func (l *WriterLock) Path() string {
	return l.path
}

// IsLocked reports whether this handle currently holds the lock.
func (l *WriterLock) IsLocked() bool {
	return l.locked
}
