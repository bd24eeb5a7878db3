package watcher

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type collectingHandler struct {
	mu      sync.Mutex
	changed []string
	removed []string
}

func (h *collectingHandler) NoteChanged(relPath string, now time.Time) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.changed = append(h.changed, relPath)
	return nil
}

func (h *collectingHandler) NoteRemoved(relPath string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removed = append(h.removed, relPath)
	return nil
}

func (h *collectingHandler) snapshot() ([]string, []string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.changed...), append([]string(nil), h.removed...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startWatcher(t *testing.T, dir string, h Handler) {
	t.Helper()
	w, err := New(Config{
		VaultPath:     dir,
		Handler:       h,
		DebounceDelay: 30 * time.Millisecond,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go w.Start(ctx)
	// Give the watcher a moment to register directories.
	time.Sleep(100 * time.Millisecond)
}

func TestWatcherDeliversWrites(t *testing.T) {
	dir := t.TempDir()
	h := &collectingHandler{}
	startWatcher(t, dir, h)

	if err := os.WriteFile(filepath.Join(dir, "note.md"), []byte("{{c1::a}}\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	waitFor(t, func() bool {
		changed, _ := h.snapshot()
		return len(changed) >= 1 && changed[0] == "note.md"
	})
}

func TestWatcherDebouncesBursts(t *testing.T) {
	dir := t.TempDir()
	h := &collectingHandler{}
	startWatcher(t, dir, h)

	path := filepath.Join(dir, "burst.md")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte("rev\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(5 * time.Millisecond)
	}

	waitFor(t, func() bool {
		changed, _ := h.snapshot()
		return len(changed) >= 1
	})
	// Settle, then confirm the burst collapsed into few deliveries.
	time.Sleep(200 * time.Millisecond)
	changed, _ := h.snapshot()
	if len(changed) > 2 {
		t.Errorf("deliveries = %d, want burst coalesced", len(changed))
	}
}

func TestWatcherDeliversRemovals(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gone.md")
	if err := os.WriteFile(path, []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	h := &collectingHandler{}
	startWatcher(t, dir, h)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	waitFor(t, func() bool {
		_, removed := h.snapshot()
		return len(removed) >= 1 && removed[0] == "gone.md"
	})
}

func TestWatcherIgnoresNonMarkdown(t *testing.T) {
	dir := t.TempDir()
	h := &collectingHandler{}
	startWatcher(t, dir, h)

	if err := os.WriteFile(filepath.Join(dir, "data.json"), []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)
	changed, removed := h.snapshot()
	if len(changed) != 0 || len(removed) != 0 {
		t.Errorf("events for non-markdown file: %v %v", changed, removed)
	}
}
