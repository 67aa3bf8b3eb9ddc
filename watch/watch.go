// Package watch re-runs an audit when its input pages or policy change.
package watch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/c360studio/uiaudit/source"
)

// DefaultDebounce is how long changes accumulate before a re-run.
const DefaultDebounce = 500 * time.Millisecond

// Config configures a Watcher.
type Config struct {
	// Patterns are input paths or glob patterns. A change to any matching
	// file triggers a run.
	Patterns []string

	// Files are extra files that trigger a run, such as the policy file.
	Files []string

	// DebounceDelay is how long to wait for more changes before running.
	DebounceDelay time.Duration

	// Logger for logging events
	Logger *slog.Logger
}

// RunFunc performs one audit. changed is nil for the initial run.
type RunFunc func(ctx context.Context, changed []string) error

// Watcher watches input and policy files and calls a RunFunc on change.
type Watcher struct {
	config  Config
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	patterns []string
	files    map[string]bool

	// Debouncing: collect changes before processing
	pendingMu sync.Mutex
	pending   map[string]fsnotify.Op // path → most recent operation

	// content hashes of files seen, to skip writes that change nothing
	hashes map[string]string
}

// New creates a Watcher. Nothing is watched until Run.
func New(config Config) (*Watcher, error) {
	if len(config.Patterns) == 0 {
		return nil, errors.New("watch: no input patterns")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create file watcher: %w", err)
	}

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.DebounceDelay <= 0 {
		config.DebounceDelay = DefaultDebounce
	}

	w := &Watcher{
		config:  config,
		watcher: fsw,
		logger:  logger,
		files:   make(map[string]bool),
		pending: make(map[string]fsnotify.Op),
		hashes:  make(map[string]string),
	}
	for _, p := range config.Patterns {
		w.patterns = append(w.patterns, filepath.Clean(p))
	}
	for _, f := range config.Files {
		if f != "" {
			w.files[filepath.Clean(f)] = true
		}
	}
	return w, nil
}

// Run calls fn once, then again after every debounced batch of changes,
// until ctx is cancelled. Errors from fn are logged and watching continues.
func (w *Watcher) Run(ctx context.Context, fn RunFunc) error {
	defer w.watcher.Close()

	if err := w.addWatches(); err != nil {
		return err
	}

	w.logger.Info("Watching for changes",
		"patterns", w.config.Patterns,
		"debounce", w.config.DebounceDelay)

	w.seedHashes()
	w.invoke(ctx, fn, nil)

	ticker := time.NewTicker(w.config.DebounceDelay)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleFSEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", "error", err)

		case <-ticker.C:
			if changed := w.flushPending(); len(changed) > 0 {
				w.invoke(ctx, fn, changed)
			}
		}
	}
}

func (w *Watcher) invoke(ctx context.Context, fn RunFunc, changed []string) {
	if ctx.Err() != nil {
		return
	}
	if err := fn(ctx, changed); err != nil && ctx.Err() == nil {
		w.logger.Error("Audit failed", "changed", changed, "error", err)
	}
}

// addWatches watches the directory of every plain path and file, and the
// static base of every glob. Recursive globs watch their base recursively.
func (w *Watcher) addWatches() error {
	dirs := make(map[string]bool)
	for _, p := range w.patterns {
		if !source.ContainsGlob(p) {
			dirs[filepath.Dir(p)] = false
			continue
		}
		base, _ := doublestar.SplitPattern(filepath.ToSlash(p))
		base = filepath.FromSlash(base)
		recursive := strings.Contains(p, "**")
		dirs[base] = dirs[base] || recursive
	}
	for f := range w.files {
		if _, seen := dirs[filepath.Dir(f)]; !seen {
			dirs[filepath.Dir(f)] = false
		}
	}

	for dir, recursive := range dirs {
		if recursive {
			if err := w.addWatchesRecursive(dir); err != nil {
				return fmt.Errorf("watch %s: %w", dir, err)
			}
			continue
		}
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("Watching directory", "path", dir)
	}
	return nil
}

// addWatchesRecursive adds watches to all directories under root
func (w *Watcher) addWatchesRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}

		if err := w.watcher.Add(path); err != nil {
			w.logger.Warn("Failed to watch directory", "path", path, "error", err)
		} else {
			w.logger.Debug("Watching directory", "path", path)
		}
		return nil
	})
}

// seedHashes records the current content of every watched file.
func (w *Watcher) seedHashes() {
	var paths []string
	for f := range w.files {
		paths = append(paths, f)
	}
	for _, p := range w.patterns {
		if !source.ContainsGlob(p) {
			paths = append(paths, p)
			continue
		}
		matches, _ := doublestar.FilepathGlob(p, doublestar.WithFilesOnly())
		paths = append(paths, matches...)
	}
	for _, path := range paths {
		if hash, ok := hashFile(path); ok {
			w.hashes[path] = hash
		}
	}
}

func hashFile(path string) (string, bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), true
}

// Matches reports whether a change to path should trigger a run.
func (w *Watcher) Matches(path string) bool {
	path = filepath.Clean(path)
	if w.files[path] {
		return true
	}
	for _, p := range w.patterns {
		if !source.ContainsGlob(p) {
			if p == path {
				return true
			}
			continue
		}
		if ok, _ := doublestar.PathMatch(p, path); ok {
			return true
		}
	}
	return false
}

// handleFSEvent processes a single fsnotify event
func (w *Watcher) handleFSEvent(event fsnotify.Event) {
	path := filepath.Clean(event.Name)

	if !w.Matches(path) {
		// New directories under a recursive glob need their own watch
		if event.Has(fsnotify.Create) {
			if info, err := os.Stat(path); err == nil && info.IsDir() && !strings.HasPrefix(filepath.Base(path), ".") {
				if err := w.addWatchesRecursive(path); err != nil {
					w.logger.Warn("Failed to watch new directory", "path", path, "error", err)
				}
			}
		}
		return
	}
	if event.Op == fsnotify.Chmod {
		return
	}

	w.pendingMu.Lock()
	w.pending[path] = event.Op
	w.pendingMu.Unlock()

	w.logger.Debug("File change detected", "path", path, "op", event.Op.String())
}

// flushPending returns the sorted paths whose content changed since the
// last flush.
func (w *Watcher) flushPending() []string {
	w.pendingMu.Lock()
	if len(w.pending) == 0 {
		w.pendingMu.Unlock()
		return nil
	}
	toProcess := w.pending
	w.pending = make(map[string]fsnotify.Op)
	w.pendingMu.Unlock()

	var changed []string
	for path := range toProcess {
		hash, ok := hashFile(path)
		if !ok {
			// removed or renamed away
			if _, had := w.hashes[path]; had {
				delete(w.hashes, path)
				changed = append(changed, path)
			}
			continue
		}

		if old, had := w.hashes[path]; had && old == hash {
			continue
		}
		w.hashes[path] = hash
		changed = append(changed, path)
	}

	sort.Strings(changed)
	return changed
}
