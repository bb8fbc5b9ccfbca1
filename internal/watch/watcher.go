// SPDX-License-Identifier: MPL-2.0

// Package watch reruns environments when project files change.
//
// A Watcher registers every non-ignored directory under a project root with
// fsnotify, collects matching events until the tree has been quiet for the
// debounce period, and then calls Rerun with the changed paths. Reruns are
// strictly sequential: events that arrive while Rerun is working are queued
// and trigger the next rerun.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is the quiet period used when Config.Debounce is not set.
const DefaultDebounce = 300 * time.Millisecond

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("watcher is already running")

// defaultIgnores never trigger a rerun: VCS metadata, environment contexts,
// Python build artifacts and editor noise.
var defaultIgnores = []string{
	".git/**",
	".hg/**",
	".envmatrix/**",
	".tox/**",
	"**/__pycache__/**",
	"**/*.py[co]",
	"**/*.egg-info/**",
	".pytest_cache/**",
	".mypy_cache/**",
	".ruff_cache/**",
	"build/**",
	"dist/**",
	"**/*.sw[po]",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Config configures a Watcher.
	Config struct {
		// Root is the project directory. Empty means the working directory.
		Root string
		// Patterns select the files whose changes trigger a rerun, as
		// doublestar globs relative to Root. Empty matches every file.
		Patterns []string
		// Ignore adds patterns to the built-in ignore list. Environment work
		// directories under Root belong here so a run cannot retrigger itself.
		Ignore   []string
		Debounce time.Duration
		// Rerun receives the changed paths, relative to Root and sorted.
		Rerun  func(ctx context.Context, changed []string)
		Logger *slog.Logger
	}

	// Watcher watches a project tree. Create it with New.
	Watcher struct {
		root     string
		patterns []string
		ignores  []string
		debounce time.Duration
		rerun    func(ctx context.Context, changed []string)
		logger   *slog.Logger
		fsw      *fsnotify.Watcher
		running  atomic.Bool
	}
)

// New validates cfg and registers the directory tree under cfg.Root.
func New(cfg Config) (*Watcher, error) {
	root := cfg.Root
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		root = wd
	}
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch root: %w", err)
	}

	for _, pat := range slices.Concat(cfg.Patterns, cfg.Ignore) {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid watch pattern %q", pat)
		}
	}

	w := &Watcher{
		root:     root,
		patterns: slices.Clone(cfg.Patterns),
		ignores:  slices.Concat(defaultIgnores, cfg.Ignore),
		debounce: positiveOr(cfg.Debounce, DefaultDebounce),
		rerun:    cfg.Rerun,
		logger:   cfg.Logger,
	}
	if w.logger == nil {
		w.logger = slog.Default()
	}
	if w.rerun == nil {
		w.rerun = func(context.Context, []string) {}
	}

	if w.fsw, err = fsnotify.NewWatcher(); err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if _, err := w.addTree(root); err != nil {
		_ = w.fsw.Close()
		return nil, err
	}
	return w, nil
}

// Run processes events until ctx is done. It returns nil on cancellation and
// an error when the underlying watcher breaks.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer func() {
		if err := w.fsw.Close(); err != nil {
			w.logger.Warn("failed to close file watcher", "error", err)
		}
	}()

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return errors.New("file watcher closed unexpectedly")
			}
			changed := w.relevant(evt)
			if len(changed) == 0 {
				continue
			}
			for _, rel := range changed {
				pending[rel] = struct{}{}
			}
			timer.Reset(w.debounce)

		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := slices.Sorted(maps.Keys(pending))
			clear(pending)
			w.logger.Debug("rerunning after changes", "paths", changed)
			w.rerun(ctx, changed)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return errors.New("file watcher closed unexpectedly")
			}
			if fatalWatchError(err) {
				return fmt.Errorf("file watcher failed: %w", err)
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

// relevant returns the root-relative paths evt changed that should trigger a
// rerun. A new directory is added to the watch set, and the matching files it
// already holds count as changed since their own events may have been missed.
func (w *Watcher) relevant(evt fsnotify.Event) []string {
	if evt.Op == fsnotify.Chmod {
		return nil
	}
	rel, err := filepath.Rel(w.root, evt.Name)
	if err != nil {
		return nil
	}
	rel = filepath.ToSlash(rel)
	if w.ignored(rel) || w.ignored(rel+"/") {
		return nil
	}

	if evt.Has(fsnotify.Create) {
		if info, err := os.Stat(evt.Name); err == nil && info.IsDir() {
			files, err := w.addTree(evt.Name)
			if err != nil {
				w.logger.Warn("failed to watch new directory", "dir", evt.Name, "error", err)
			}
			return files
		}
	}
	if !w.matches(rel) {
		return nil
	}
	return []string{rel}
}

// addTree registers dir and its non-ignored subdirectories. It returns the
// relative paths of the matching files found along the way.
func (w *Watcher) addTree(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			w.logger.Debug("skipping unreadable path", "path", path, "error", err)
			return nil
		}
		rel, relErr := filepath.Rel(w.root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !d.IsDir() {
			if !w.ignored(rel) && w.matches(rel) {
				files = append(files, rel)
			}
			return nil
		}
		if rel != "." && (w.ignored(rel) || w.ignored(rel+"/")) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			return fmt.Errorf("failed to watch %s: %w", path, err)
		}
		return nil
	})
	return files, err
}

func (w *Watcher) ignored(rel string) bool {
	return matchAny(w.ignores, rel)
}

func (w *Watcher) matches(rel string) bool {
	return len(w.patterns) == 0 || matchAny(w.patterns, rel)
}

func matchAny(patterns []string, rel string) bool {
	for _, pat := range patterns {
		if ok, _ := doublestar.Match(pat, rel); ok {
			return true
		}
	}
	return false
}

func positiveOr(d, def time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return def
}
