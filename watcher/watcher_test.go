package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return cond()
}

func TestWatcher(t *testing.T) {
	dir := t.TempDir()

	var runs atomic.Int32
	w, err := New(dir, 50*time.Millisecond, func() { runs.Add(1) })
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	// Several quick writes are debounced into one pass
	for i := 0; i < 3; i++ {
		name := filepath.Join(dir, "photo"+string(rune('a'+i))+".png")
		if err := os.WriteFile(name, []byte("data"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
	}

	if !waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 1 }) {
		t.Fatal("Expected a pass after files were created")
	}

	time.Sleep(200 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Errorf("Expected exactly 1 pass, got %d", got)
	}
}

func TestWatcherIgnoresDotFilesAndRemovals(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.png")
	if err := os.WriteFile(existing, []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	var runs atomic.Int32
	w, err := New(dir, 20*time.Millisecond, func() { runs.Add(1) })
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, ".partial"), []byte("x"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}
	if err := os.Remove(existing); err != nil {
		t.Fatalf("Failed to remove file: %v", err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("Expected no pass, got %d", got)
	}
}

func TestWatcherReactsToRename(t *testing.T) {
	dir := t.TempDir()
	moving := filepath.Join(dir, "move.png")
	if err := os.WriteFile(moving, []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}

	var runs atomic.Int32
	w, err := New(dir, 20*time.Millisecond, func() { runs.Add(1) })
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	// Moving a file out of the folder only produces a rename event
	if err := os.Rename(moving, filepath.Join(t.TempDir(), "move.png")); err != nil {
		t.Fatalf("Failed to move file: %v", err)
	}

	if !waitFor(t, 2*time.Second, func() bool { return runs.Load() == 1 }) {
		t.Fatalf("Expected a pass after a rename, got %d", runs.Load())
	}
}

func TestWatcherSeesNewSubfolders(t *testing.T) {
	dir := t.TempDir()

	var runs atomic.Int32
	w, err := New(dir, 20*time.Millisecond, func() { runs.Add(1) })
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	sub := filepath.Join(dir, "album")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatalf("Failed to create folder: %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return runs.Load() == 1 }) {
		t.Fatal("Expected a pass after folder was created")
	}

	if err := os.WriteFile(filepath.Join(sub, "inside.png"), []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	if !waitFor(t, 2*time.Second, func() bool { return runs.Load() >= 2 }) {
		t.Fatalf("Expected a second pass for a file in the new folder, got %d", runs.Load())
	}
}

func TestStopPreventsPendingPass(t *testing.T) {
	dir := t.TempDir()

	var runs atomic.Int32
	w, err := New(dir, 200*time.Millisecond, func() { runs.Add(1) })
	if err != nil {
		t.Fatalf("Failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Failed to start watcher: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "a.png"), []byte("data"), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	if err := w.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	time.Sleep(400 * time.Millisecond)
	if got := runs.Load(); got != 0 {
		t.Errorf("Expected no pass after Stop, got %d", got)
	}
}
