package gitcore

import (
	"fmt"
	"os"

	"github.com/rvs-vcs/rvs/internal/rvserr"
)

// fileLock is a scoped handle on a "<path>.lock" exclusive-create lock file,
// following the same coarse-locking model Git uses to serialize mutation of
// a single ref or the index within one worktree.
type fileLock struct {
	path     string // the lock file itself, e.g. ".rvs/index.lock"
	target   string // the file the lock protects, e.g. ".rvs/index"
	file     *os.File
	released bool
}

// acquireLock exclusively creates "<target>.lock". If the lock file already
// exists, the target is considered locked by another in-flight command.
func acquireLock(target string) (*fileLock, error) {
	lockPath := target + ".lock"
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, rvserr.Newf(rvserr.KindIndexLocked, "unable to create %q: file exists", lockPath)
		}
		return nil, rvserr.WithPath(rvserr.KindIOError, lockPath, fmt.Errorf("creating lock file: %w", err))
	}
	return &fileLock{path: lockPath, target: target, file: f}, nil
}

// commit writes payload to the lock file and atomically renames it onto the
// target, publishing the new content and releasing the lock in one step.
func (l *fileLock) commit(payload []byte) error {
	if l.released {
		return fmt.Errorf("lock: commit called after release")
	}
	if _, err := l.file.Write(payload); err != nil {
		_ = l.file.Close()
		_ = os.Remove(l.path)
		l.released = true
		return rvserr.WithPath(rvserr.KindIOError, l.path, fmt.Errorf("writing lock file: %w", err))
	}
	if err := l.file.Close(); err != nil {
		_ = os.Remove(l.path)
		l.released = true
		return rvserr.WithPath(rvserr.KindIOError, l.path, fmt.Errorf("closing lock file: %w", err))
	}
	if err := os.Rename(l.path, l.target); err != nil {
		_ = os.Remove(l.path)
		l.released = true
		return rvserr.WithPath(rvserr.KindIOError, l.target, fmt.Errorf("installing %s: %w", l.target, err))
	}
	l.released = true
	return nil
}

// release discards the lock without committing. Safe to call after commit;
// a no-op once the lock has already been committed or released.
func (l *fileLock) release() {
	if l.released {
		return
	}
	_ = l.file.Close()
	_ = os.Remove(l.path)
	l.released = true
}
