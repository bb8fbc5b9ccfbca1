// SPDX-License-Identifier: MPL-2.0

package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/envmatrix/envmatrix/internal/testutil"
)

const testDebounce = 50 * time.Millisecond

// startWatcher runs a watcher over dir and returns a channel receiving each
// rerun's changed paths.
func startWatcher(t *testing.T, cfg Config) <-chan []string {
	t.Helper()

	reruns := make(chan []string, 8)
	if cfg.Debounce == 0 {
		cfg.Debounce = testDebounce
	}
	cfg.Rerun = func(_ context.Context, changed []string) { reruns <- changed }

	w, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	ctx, cancel := context.WithCancel(t.Context())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error: %v", err)
		}
	})
	return reruns
}

func waitRerun(t *testing.T, reruns <-chan []string) []string {
	t.Helper()
	select {
	case changed := <-reruns:
		return changed
	case <-time.After(5 * time.Second):
		t.Fatal("no rerun within 5s")
		return nil
	}
}

func expectNoRerun(t *testing.T, reruns <-chan []string) {
	t.Helper()
	select {
	case changed := <-reruns:
		t.Fatalf("unexpected rerun for %v", changed)
	case <-time.After(10 * testDebounce):
	}
}

func TestWatcher_CoalescesBurst(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reruns := startWatcher(t, Config{Root: dir, Debounce: 300 * time.Millisecond})

	testutil.WriteFile(t, dir, "a.py", "a = 1\n")
	testutil.WriteFile(t, dir, "b.py", "b = 1\n")

	changed := waitRerun(t, reruns)
	if len(changed) != 2 || changed[0] != "a.py" || changed[1] != "b.py" {
		t.Errorf("changed = %v, want [a.py b.py]", changed)
	}
}

func TestWatcher_Patterns(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reruns := startWatcher(t, Config{Root: dir, Patterns: []string{"**/*.py", "tox.ini"}})

	testutil.WriteFile(t, dir, "notes.txt", "ignored\n")
	expectNoRerun(t, reruns)

	testutil.WriteFile(t, dir, "tox.ini", "[tox]\n")
	if changed := waitRerun(t, reruns); len(changed) != 1 || changed[0] != "tox.ini" {
		t.Errorf("changed = %v, want [tox.ini]", changed)
	}
}

func TestWatcher_IgnoresWorkDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	testutil.MustMkdirAll(t, filepath.Join(dir, ".envmatrix", "py312-1"), 0o755)
	testutil.MustMkdirAll(t, filepath.Join(dir, "custom-work"), 0o755)
	reruns := startWatcher(t, Config{Root: dir, Ignore: []string{"custom-work/**"}})

	testutil.WriteFile(t, filepath.Join(dir, ".envmatrix", "py312-1"), "marker", "x")
	testutil.WriteFile(t, filepath.Join(dir, "custom-work"), "marker", "x")
	testutil.WriteFile(t, dir, "module.pyc", "x")
	expectNoRerun(t, reruns)
}

func TestWatcher_WatchesNewDirectories(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	reruns := startWatcher(t, Config{Root: dir, Patterns: []string{"**/*.py"}})

	sub := filepath.Join(dir, "pkg")
	testutil.MustMkdirAll(t, sub, 0o755)
	// Give the watcher a moment to register the new directory.
	time.Sleep(2 * testDebounce)
	testutil.WriteFile(t, sub, "mod.py", "x = 1\n")

	if changed := waitRerun(t, reruns); len(changed) != 1 || changed[0] != "pkg/mod.py" {
		t.Errorf("changed = %v, want [pkg/mod.py]", changed)
	}
}

func TestWatcher_NewDirectoryWithContents(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	dir := filepath.Join(base, "project")
	testutil.MustMkdirAll(t, dir, 0o755)
	staged := filepath.Join(base, "staged")
	testutil.MustMkdirAll(t, filepath.Join(staged, "sub"), 0o755)
	testutil.WriteFile(t, staged, "mod.py", "x = 1\n")
	testutil.WriteFile(t, filepath.Join(staged, "sub"), "deep.py", "y = 1\n")
	testutil.WriteFile(t, staged, "notes.txt", "skip\n")

	reruns := startWatcher(t, Config{Root: dir, Patterns: []string{"**/*.py"}})

	// A rename delivers a single create event for the directory itself.
	if err := os.Rename(staged, filepath.Join(dir, "pkg")); err != nil {
		t.Fatal(err)
	}

	changed := waitRerun(t, reruns)
	if len(changed) != 2 || changed[0] != "pkg/mod.py" || changed[1] != "pkg/sub/deep.py" {
		t.Errorf("changed = %v, want [pkg/mod.py pkg/sub/deep.py]", changed)
	}
}

func TestNew_InvalidPattern(t *testing.T) {
	t.Parallel()

	if _, err := New(Config{Root: t.TempDir(), Patterns: []string{"[unclosed"}}); err == nil {
		t.Fatal("New() should reject an invalid pattern")
	}
}

func TestRun_Twice(t *testing.T) {
	t.Parallel()

	w, err := New(Config{Root: t.TempDir()})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	if err := w.Run(ctx); err != nil {
		t.Fatalf("Run() on a canceled context = %v, want nil", err)
	}
	if err := w.Run(ctx); !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("second Run() = %v, want ErrAlreadyRunning", err)
	}
}

func TestFatalWatchError(t *testing.T) {
	t.Parallel()

	if fatalWatchError(os.ErrPermission) {
		t.Error("permission errors are recoverable")
	}
	if !fatalWatchError(syscall.ENOSPC) && !fatalWatchError(syscall.Errno(4)) {
		t.Error("resource exhaustion should be fatal")
	}
}
