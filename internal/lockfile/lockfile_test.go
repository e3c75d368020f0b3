package lockfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAcquireWritesPIDFile(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer lock.Release()

	content, err := os.ReadFile(filepath.Join(dir, LockFileName))
	if err != nil {
		t.Fatalf("lock file not readable: %v", err)
	}
	if want := fmt.Sprintf("pid=%d\n", os.Getpid()); string(content) != want {
		t.Errorf("lock file content = %q, want %q", content, want)
	}
}

func TestAcquireCreatesStateDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "state")
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock must create the directory: %v", err)
	}
	defer lock.Release()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("state directory missing after acquire: %v", err)
	}
}

func TestConflictReportsHolder(t *testing.T) {
	dir := t.TempDir()
	held, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}
	defer held.Release()

	second, err := AcquireLock(dir)
	if err == nil {
		second.Release()
		t.Fatal("second acquisition must fail while the lock is held")
	}
	var lockErr *LockError
	if !errors.As(err, &lockErr) {
		t.Fatalf("expected *LockError, got %T: %v", err, err)
	}
	if lockErr.Path != filepath.Join(dir, LockFileName) {
		t.Errorf("unexpected lock path: %q", lockErr.Path)
	}
	// This process holds the lock, so the holder description names our pid
	// as running.
	if want := fmt.Sprintf("pid %d (running)", os.Getpid()); lockErr.Holder != want {
		t.Errorf("holder = %q, want %q", lockErr.Holder, want)
	}
	if !strings.Contains(err.Error(), "another mentionbridge instance") {
		t.Errorf("error text should name the conflict: %q", err.Error())
	}
}

func TestReleaseRemovesFileAndIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	lock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("AcquireLock failed: %v", err)
	}

	if err := lock.Release(); err != nil {
		t.Errorf("Release failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, LockFileName)); !os.IsNotExist(err) {
		t.Error("lock file must be removed on release")
	}
	if err := lock.Release(); err != nil {
		t.Errorf("repeated Release must be a no-op: %v", err)
	}

	relock, err := AcquireLock(dir)
	if err != nil {
		t.Fatalf("reacquisition after release failed: %v", err)
	}
	relock.Release()
}

func TestScanPID(t *testing.T) {
	tests := []struct {
		content string
		pid     int
		ok      bool
	}{
		{"pid=12345\n", 12345, true},
		{"pid=67890\nother=info\n", 67890, true},
		{"other=info\npid=42\n", 42, true},
		{"other=info", 0, false},
		{"", 0, false},
		{"pid=abc", 0, false},
		{"pid=-3", 0, false},
	}
	for _, tt := range tests {
		pid, ok := scanPID(tt.content)
		if pid != tt.pid || ok != tt.ok {
			t.Errorf("scanPID(%q) = (%d, %v), want (%d, %v)", tt.content, pid, ok, tt.pid, tt.ok)
		}
	}
}

func TestPIDAlive(t *testing.T) {
	if !pidAlive(os.Getpid()) {
		t.Error("our own pid must be alive")
	}
	if pidAlive(1 << 22) {
		t.Log("improbable pid reported alive; environment-dependent")
	}
}
