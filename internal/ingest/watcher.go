package ingest

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/spetr/mcp-vecstore/pkg/types"
)

// Watcher watches a directory and re-ingests record files when they change.
type Watcher struct {
	dir            string
	loader         *Loader
	deleteOnRemove bool
	initialLoad    bool
	onIngest       func(*types.IngestStats)
	onRemove       func(path string, ids []string)

	watcher *fsnotify.Watcher

	// Debouncing
	pendingMu    sync.Mutex
	pendingFiles map[string]time.Time
	debounceTime time.Duration

	// IDs last loaded per file, for delete-on-remove.
	loadedMu sync.Mutex
	loaded   map[string][]string
}

// WatcherConfig contains watcher configuration.
type WatcherConfig struct {
	Dir            string
	Loader         *Loader
	DeleteOnRemove bool          // Delete records of removed files
	InitialLoad    bool          // Ingest existing files before watching
	DebounceTime   time.Duration // Default: 500ms
	OnIngest       func(*types.IngestStats)
	OnRemove       func(path string, ids []string)
}

// NewWatcher creates a new directory watcher.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounceTime := cfg.DebounceTime
	if debounceTime == 0 {
		debounceTime = 500 * time.Millisecond
	}

	return &Watcher{
		dir:            cfg.Dir,
		loader:         cfg.Loader,
		deleteOnRemove: cfg.DeleteOnRemove,
		initialLoad:    cfg.InitialLoad,
		onIngest:       cfg.OnIngest,
		onRemove:       cfg.OnRemove,
		watcher:        watcher,
		pendingFiles:   make(map[string]time.Time),
		debounceTime:   debounceTime,
		loaded:         make(map[string][]string),
	}, nil
}

// Watch starts watching for file changes.
// It blocks until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	if err := w.addWatchDirs(); err != nil {
		w.watcher.Close()
		return err
	}

	if w.initialLoad {
		w.loadExisting(ctx)
	}

	slog.Info("watching for record file changes", "dir", w.dir)

	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	defer wg.Wait()
	defer cancel()

	wg.Add(1)
	go func() {
		defer wg.Done()
		w.processDebounced(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			slog.Info("stopping watcher")
			return w.watcher.Close()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher error", "error", err)
		}
	}
}

// addWatchDirs recursively adds directories to watch, skipping hidden ones.
func (w *Watcher) addWatchDirs() error {
	if _, err := os.Stat(w.dir); err != nil {
		return err
	}
	return filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != w.dir && d.Name()[0] == '.' {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			slog.Warn("failed to watch directory", "path", path, "error", err)
		}
		return nil
	})
}

func (w *Watcher) loadExisting(ctx context.Context) {
	var files []string
	filepath.WalkDir(w.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != w.dir && d.Name()[0] == '.' {
				return filepath.SkipDir
			}
			return nil
		}
		if Supported(path) {
			files = append(files, path)
		}
		return nil
	})
	w.processFiles(ctx, files)
}

// handleEvent queues relevant file system events for debounced processing.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				slog.Warn("failed to watch directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) &&
		!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return
	}
	if !Supported(event.Name) {
		return
	}

	w.pendingMu.Lock()
	w.pendingFiles[event.Name] = time.Now()
	w.pendingMu.Unlock()

	slog.Debug("record file changed", "path", event.Name, "op", event.Op.String())
}

// processDebounced processes pending files after the debounce period.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processFiles(ctx, w.takeSettled())
		}
	}
}

// takeSettled removes and returns files unchanged for the debounce period.
func (w *Watcher) takeSettled() []string {
	w.pendingMu.Lock()
	defer w.pendingMu.Unlock()

	now := time.Now()
	var settled []string
	for path, changedAt := range w.pendingFiles {
		if now.Sub(changedAt) >= w.debounceTime {
			settled = append(settled, path)
			delete(w.pendingFiles, path)
		}
	}
	sort.Strings(settled)
	return settled
}

func (w *Watcher) processFiles(ctx context.Context, paths []string) {
	for _, path := range paths {
		if ctx.Err() != nil {
			return
		}

		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			w.removeFile(ctx, path)
			continue
		}
		if err != nil {
			slog.Warn("failed to stat file", "file", path, "error", err)
			continue
		}
		if info.IsDir() {
			continue
		}

		stats, err := w.loader.LoadFile(ctx, path)
		if err != nil {
			slog.Warn("failed to ingest file", "file", path, "error", err)
			continue
		}

		w.loadedMu.Lock()
		w.loaded[path] = stats.IDs
		w.loadedMu.Unlock()

		if w.onIngest != nil {
			w.onIngest(stats)
		}
	}
}

func (w *Watcher) removeFile(ctx context.Context, path string) {
	w.loadedMu.Lock()
	ids := w.loaded[path]
	delete(w.loaded, path)
	w.loadedMu.Unlock()

	if !w.deleteOnRemove || len(ids) == 0 {
		return
	}

	var deleted []string
	for _, id := range ids {
		if err := w.loader.store.Delete(ctx, id); err != nil {
			slog.Warn("failed to delete record", "file", path, "id", id, "error", err)
			continue
		}
		deleted = append(deleted, id)
	}
	slog.Info("removed records of deleted file", "file", path, "count", len(deleted))

	if w.onRemove != nil {
		w.onRemove(path, deleted)
	}
}

// Close closes the watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
