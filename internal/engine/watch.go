package engine

// watch.go - rebuild on file changes

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatchDebounce is how long the watcher waits for changes to settle.
const WatchDebounce = 250 * time.Millisecond

// Watch re-runs the extraction whenever a matching SQL file under the input is
// created, written, removed or renamed, and reports every outcome to onChange.
// It blocks until ctx is cancelled and any rebuild in flight has finished;
// onChange is never called after Watch returns.
func (e *Engine) Watch(ctx context.Context, onChange func(*Result, error)) error {
	resolved, ok := resolveCaseInsensitive(e.input)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNoInput, e.input)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNoInput, e.input)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	single := ""
	root := resolved
	if !info.IsDir() {
		single = filepath.Clean(resolved)
		root = filepath.Dir(resolved)
		err = watcher.Add(root)
	} else {
		err = watchTree(watcher, root)
	}
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", root, err)
	}

	e.logger.Info("watching for changes", slog.String("path", root))

	relevant := func(name string) bool {
		if single != "" {
			return filepath.Clean(name) == single
		}
		ok, _ := filepath.Match(e.glob, filepath.Base(name))
		return ok
	}

	var (
		mu       sync.Mutex
		inFlight sync.WaitGroup
		debounce *time.Timer
	)
	rebuild := func() {
		defer inFlight.Done()
		mu.Lock()
		defer mu.Unlock()
		if ctx.Err() != nil {
			return
		}
		res, err := e.Run(ctx)
		if ctx.Err() != nil {
			return
		}
		onChange(res, err)
	}
	// Each scheduled rebuild is counted once; a timer stopped before firing
	// releases its own count.
	stopPending := func() {
		if debounce != nil && debounce.Stop() {
			inFlight.Done()
		}
	}
	defer func() {
		stopPending()
		inFlight.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			if event.Has(fsnotify.Create) && single == "" {
				if fi, err := os.Stat(event.Name); err == nil && fi.IsDir() {
					_ = watchTree(watcher, event.Name)
					continue
				}
			}

			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !relevant(event.Name) {
				continue
			}

			e.logger.Debug("change detected", slog.String("file", event.Name), slog.String("op", event.Op.String()))

			stopPending()
			inFlight.Add(1)
			debounce = time.AfterFunc(WatchDebounce, rebuild)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			e.logger.Warn("watcher error", slog.String("error", err.Error()))
		}
	}
}

// watchTree recursively adds a directory to the watcher, skipping hidden
// directories.
func watchTree(watcher *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return watcher.Add(path)
	})
}
