// Package watcher monitors a vault for external edits and funnels
// them into the service mutate path. Events debounce per file so an
// editor's write-then-rename burst lands as one update.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/pvannier/recall/internal/store"
)

// Handler receives debounced note events. The service implements it.
type Handler interface {
	NoteChanged(relPath string, now time.Time) error
	NoteRemoved(relPath string) error
}

// Watcher monitors a vault directory for markdown changes.
type Watcher struct {
	vaultPath string
	handler   Handler
	log       *slog.Logger

	debounceDelay time.Duration

	fsWatcher *fsnotify.Watcher
	pending   map[string]time.Time
	mu        sync.Mutex
}

// Config holds configuration options for the Watcher.
type Config struct {
	VaultPath     string
	Handler       Handler
	DebounceDelay time.Duration // Default: 100ms
	Logger        *slog.Logger
}

// New creates a new Watcher with the given configuration.
func New(cfg Config) (*Watcher, error) {
	if cfg.VaultPath == "" {
		return nil, fmt.Errorf("vault path is required")
	}
	if cfg.Handler == nil {
		return nil, fmt.Errorf("handler is required")
	}

	debounce := cfg.DebounceDelay
	if debounce == 0 {
		debounce = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Watcher{
		vaultPath:     cfg.VaultPath,
		handler:       cfg.Handler,
		log:           cfg.Logger,
		debounceDelay: debounce,
		pending:       make(map[string]time.Time),
	}, nil
}

// Start begins watching the vault for file changes.
// It blocks until the context is cancelled.
func (w *Watcher) Start(ctx context.Context) error {
	var err error
	w.fsWatcher, err = fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create file watcher: %w", err)
	}
	defer w.fsWatcher.Close()

	if err := w.addWatchRecursive(w.vaultPath); err != nil {
		return fmt.Errorf("watch vault: %w", err)
	}

	w.log.Info("watching vault", "path", w.vaultPath)

	go w.processDebounced(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watcher error", "error", err)
		}
	}
}

// handleEvent processes a single filesystem event.
func (w *Watcher) handleEvent(event fsnotify.Event) {
	path := event.Name

	if !strings.HasSuffix(path, ".md") {
		// But watch new directories.
		if event.Op&fsnotify.Create != 0 {
			if info, err := os.Stat(path); err == nil && info.IsDir() {
				w.addWatchRecursive(path)
			}
		}
		return
	}

	if w.shouldIgnore(path) {
		return
	}

	switch {
	case event.Op&fsnotify.Write != 0, event.Op&fsnotify.Create != 0:
		w.scheduleUpdate(path)
	case event.Op&fsnotify.Remove != 0, event.Op&fsnotify.Rename != 0:
		rel, err := filepath.Rel(w.vaultPath, path)
		if err != nil {
			return
		}
		if err := w.handler.NoteRemoved(filepath.ToSlash(rel)); err != nil {
			w.log.Warn("remove failed", "path", rel, "error", err)
		}
	}
}

// scheduleUpdate adds a file to the pending queue with debouncing.
func (w *Watcher) scheduleUpdate(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[path] = time.Now()
}

// processDebounced applies pending updates after the debounce delay.
func (w *Watcher) processDebounced(ctx context.Context) {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.processPending()
		}
	}
}

func (w *Watcher) processPending() {
	w.mu.Lock()
	now := time.Now()
	ready := make([]string, 0)

	for path, scheduledAt := range w.pending {
		if now.Sub(scheduledAt) >= w.debounceDelay {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		rel, err := filepath.Rel(w.vaultPath, path)
		if err != nil {
			continue
		}
		rel = filepath.ToSlash(rel)
		if err := w.handler.NoteChanged(rel, time.Now()); err != nil {
			w.log.Warn("update failed", "path", rel, "error", err)
		} else {
			w.log.Debug("note updated", "path", rel)
		}
	}
}

// addWatchRecursive adds a directory and all subdirectories to the watcher.
func (w *Watcher) addWatchRecursive(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil // Skip errors
		}
		if info.IsDir() {
			if w.shouldIgnoreDir(path) {
				return filepath.SkipDir
			}
			if err := w.fsWatcher.Add(path); err != nil {
				w.log.Warn("watch failed", "path", path, "error", err)
			}
		}
		return nil
	})
}

// shouldIgnore returns true if the path should be ignored.
func (w *Watcher) shouldIgnore(path string) bool {
	rel, err := filepath.Rel(w.vaultPath, path)
	if err != nil {
		return false
	}

	parts := strings.Split(rel, string(filepath.Separator))
	for _, part := range parts {
		if part == store.StoreRelPath || part == ".git" || part == ".trash" || part == "node_modules" {
			return true
		}
	}
	return false
}

// shouldIgnoreDir returns true if the directory should not be watched.
func (w *Watcher) shouldIgnoreDir(path string) bool {
	base := filepath.Base(path)
	return base == store.StoreRelPath || base == ".git" || base == ".trash" || base == "node_modules"
}
