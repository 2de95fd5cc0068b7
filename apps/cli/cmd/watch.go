package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/abdul-hamid-achik/drivetest/packages/core/handler"
	"github.com/abdul-hamid-achik/drivetest/packages/manifest"
	"github.com/fsnotify/fsnotify"
)

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

// watch re-runs the tests whenever a watched file changes until ctx is done.
// Runs happen on the watch loop itself, so they never overlap. It returns the
// exit code of the last run.
func (s *runSession) watch(ctx context.Context, code int) (int, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return code, fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	extra := append([]string{s.cfg.TestVarsSchema}, s.cfg.TestVars...)
	for _, dir := range watchDirs(s.cfg.Tests, extra) {
		if err := watcher.Add(dir); err != nil {
			fmt.Fprintf(s.errOut, "warning: failed to watch %s: %v\n", dir, err)
		}
	}

	fmt.Fprintf(s.out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	registry := handler.DefaultRegistry()
	var debounce *time.Timer
	var fire <-chan time.Time
	var changed string

	for {
		select {
		case <-ctx.Done():
			return code, nil

		case event, ok := <-watcher.Events:
			if !ok {
				return code, nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isWatchedFile(registry, event.Name) {
				continue
			}
			changed = event.Name
			if debounce == nil {
				debounce = time.NewTimer(WatchDebounceDelay)
			} else {
				debounce.Reset(WatchDebounceDelay)
			}
			fire = debounce.C

		case <-fire:
			fire = nil
			fmt.Fprintf(s.out, "\n\nFile changed: %s\nRe-running tests...\n\n", changed)
			code = s.run(ctx)
			fmt.Fprintf(s.out, "\nWatching for changes... (press Ctrl+C to stop)\n")

		case err, ok := <-watcher.Errors:
			if !ok {
				return code, nil
			}
			fmt.Fprintf(s.errOut, "warning: watcher error: %v\n", err)
		}
	}
}

// watchDirs returns the directories to watch for the test paths and the
// extra files: every directory below a test directory, and the containing
// directory of each file.
func watchDirs(tests, files []string) []string {
	seen := make(map[string]bool)
	var dirs []string
	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			dirs = append(dirs, dir)
		}
	}

	for _, path := range tests {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if !info.IsDir() {
			add(filepath.Dir(path))
			continue
		}
		_ = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if d.IsDir() {
				add(p)
			}
			return nil
		})
	}

	for _, path := range files {
		if path != "" {
			add(filepath.Dir(path))
		}
	}
	return dirs
}

// isWatchedFile reports whether a change to path should trigger a run.
func isWatchedFile(registry *handler.Registry, path string) bool {
	base := filepath.Base(path)
	return registry.Matches(base) || manifest.IsManifest(path) || filepath.Ext(path) == ".json"
}
