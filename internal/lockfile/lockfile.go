// Package lockfile guards the state directory against concurrent
// mentionbridge processes with an advisory flock. The kernel drops the lock
// when the holder exits, so a crash never leaves the directory wedged; the
// pid recorded in the file is advisory, for diagnostics only.
package lockfile

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
)

// LockFileName is the lock file created inside the state directory.
const LockFileName = "mentionbridge.lock"

// Lock is a held state-directory lock. Release it when shutting down.
type Lock struct {
	file *os.File
	path string
}

// AcquireLock takes an exclusive non-blocking lock on the state directory,
// creating the directory if needed. When another process holds the lock the
// returned error is a *LockError describing the holder.
func AcquireLock(stateDir string) (*Lock, error) {
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory %s: %w", stateDir, err)
	}

	path := filepath.Join(stateDir, LockFileName)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		holder := describeHolder(path)
		slog.Error("lockfile: state directory already locked", "path", path, "holder", holder)
		return nil, &LockError{Path: path, Holder: holder, Cause: err}
	}

	if _, err := fmt.Fprintf(file, "pid=%d\n", os.Getpid()); err != nil {
		syscall.Flock(int(file.Fd()), syscall.LOCK_UN)
		file.Close()
		return nil, fmt.Errorf("failed to record pid in %s: %w", path, err)
	}
	file.Sync()

	slog.Info("lockfile: state directory locked", "path", path, "pid", os.Getpid())
	return &Lock{file: file, path: path}, nil
}

// Release drops the lock and removes the lock file. Calling it again after a
// successful release is a no-op.
func (l *Lock) Release() error {
	if l.file == nil {
		return nil
	}
	syscall.Flock(int(l.file.Fd()), syscall.LOCK_UN)
	l.file.Close()
	l.file = nil
	if err := os.Remove(l.path); err != nil {
		slog.Warn("lockfile: could not remove lock file", "error", err, "path", l.path)
	}
	slog.Info("lockfile: state directory lock released", "path", l.path)
	return nil
}

// LockError reports a lock held by another process.
type LockError struct {
	Path   string
	Holder string
	Cause  error
}

func (e *LockError) Error() string {
	msg := "another mentionbridge instance is already running against this state directory (lock file " + e.Path
	if e.Holder != "" {
		msg += ", held by " + e.Holder
	}
	return msg + "); remove the lock file only if that process is gone"
}

func (e *LockError) Unwrap() error { return e.Cause }

// describeHolder reads the conflicting lock file and reports who holds it,
// including whether the recorded pid is still alive. Best effort: the holder
// may rewrite the file at any moment.
func describeHolder(path string) string {
	data, err := os.ReadFile(path)
	if err != nil || len(data) == 0 {
		return "unknown process"
	}
	pid, ok := scanPID(string(data))
	if !ok {
		return "unknown process (" + strings.TrimSpace(string(data)) + ")"
	}
	if pidAlive(pid) {
		return fmt.Sprintf("pid %d (running)", pid)
	}
	return fmt.Sprintf("pid %d (not running, lock may be stale)", pid)
}

// scanPID finds the first pid= line in lock file content.
func scanPID(content string) (int, bool) {
	sc := bufio.NewScanner(strings.NewReader(content))
	for sc.Scan() {
		rest, found := strings.CutPrefix(sc.Text(), "pid=")
		if !found {
			continue
		}
		pid, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil || pid <= 0 {
			return 0, false
		}
		return pid, true
	}
	return 0, false
}

// pidAlive checks a pid with signal 0.
func pidAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
