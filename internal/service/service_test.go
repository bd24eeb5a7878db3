package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/remote"
	"github.com/pvannier/recall/internal/store"
)

type recordingNotifier struct {
	mu      sync.Mutex
	changed []string
	reviews []remote.ReviewPayload
}

func (n *recordingNotifier) NoteChanged(noteID string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, noteID)
}

func (n *recordingNotifier) SubmitReview(ctx context.Context, p remote.ReviewPayload) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reviews = append(n.reviews, p)
	return nil
}

func newService(t *testing.T) (*Service, string, *recordingNotifier) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { st.Close() })

	notifier := &recordingNotifier{}
	svc, err := New(Options{
		VaultPath: dir,
		Store:     st,
		Notifier:  notifier,
		Logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc, dir, notifier
}

func write(t *testing.T, dir, rel, content string) {
	t.Helper()
	full := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestScanVault(t *testing.T) {
	svc, dir, _ := newService(t)
	write(t, dir, "geo/france.md", "# France\n\nCapital: {{c1::Paris}} on the {{c2::Seine}}.\n")
	write(t, dir, "plain.md", "No cards here.\n")

	now := time.Now()
	res, err := svc.ScanVault(now)
	if err != nil {
		t.Fatal(err)
	}
	if res.Notes != 2 {
		t.Errorf("notes = %d, want 2", res.Notes)
	}
	if res.Cards != 2 || res.NewCards != 2 {
		t.Errorf("cards = %d new = %d, want 2 and 2", res.Cards, res.NewCards)
	}
	if len(res.Errors) != 0 {
		t.Errorf("errors = %v", res.Errors)
	}

	// Identical rescan creates nothing.
	res2, err := svc.ScanVault(now)
	if err != nil {
		t.Fatal(err)
	}
	if res2.Cards != 2 || res2.NewCards != 2 {
		// New counts reps==0 cards, which still have not been reviewed.
		t.Errorf("rescan cards = %d new = %d", res2.Cards, res2.NewCards)
	}

	if _, ok := svc.Note("geo/france"); !ok {
		t.Error("note arena missing geo/france")
	}
}

func TestNoteChangedNotifiesOnContentChange(t *testing.T) {
	svc, dir, notifier := newService(t)
	write(t, dir, "n.md", "{{c1::one}}\n")
	now := time.Now()

	if err := svc.NoteChanged("n.md", now); err != nil {
		t.Fatal(err)
	}
	if len(notifier.changed) != 1 || notifier.changed[0] != "n" {
		t.Fatalf("changed = %v", notifier.changed)
	}

	// Same content again: no new notification.
	if err := svc.NoteChanged("n.md", now); err != nil {
		t.Fatal(err)
	}
	if len(notifier.changed) != 1 {
		t.Errorf("changed = %v, want one entry", notifier.changed)
	}

	write(t, dir, "n.md", "{{c1::one}} and {{c2::two}}\n")
	if err := svc.NoteChanged("n.md", now); err != nil {
		t.Fatal(err)
	}
	if len(notifier.changed) != 2 {
		t.Errorf("changed = %v, want two entries", notifier.changed)
	}
}

func TestReviewPersistsAndSubmits(t *testing.T) {
	svc, dir, notifier := newService(t)
	write(t, dir, "n.md", "{{c1::answer}}\n")
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if _, err := svc.ScanVault(now); err != nil {
		t.Fatal(err)
	}

	key := model.CardKey{NoteID: "n", ClozeIndex: 1}
	updated, err := svc.Review(context.Background(), key, model.Good, now)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Reps != 1 || updated.State != model.Learning {
		t.Errorf("card after review = reps %d state %v", updated.Reps, updated.State)
	}
	if len(notifier.reviews) != 1 {
		t.Fatalf("reviews = %d, want 1", len(notifier.reviews))
	}
	if notifier.reviews[0].Log.Rating != model.Good {
		t.Errorf("log rating = %v", notifier.reviews[0].Log.Rating)
	}
}

func TestConcurrentReviewsSerialize(t *testing.T) {
	svc, dir, notifier := newService(t)
	write(t, dir, "n.md", "{{c1::answer}}\n")
	now := time.Now()
	if _, err := svc.ScanVault(now); err != nil {
		t.Fatal(err)
	}

	// Two simultaneous gradings of one card. Whichever lands second
	// must grade on top of the first's state, not the snapshot both
	// started from.
	key := model.CardKey{NoteID: "n", ClozeIndex: 1}
	results := make([]model.Card, 2)
	var wg sync.WaitGroup
	for i := range results {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := svc.Review(context.Background(), key, model.Good, now)
			if err != nil {
				t.Error(err)
				return
			}
			results[i] = c
		}()
	}
	wg.Wait()

	if got := results[0].Reps + results[1].Reps; got != 3 {
		t.Errorf("reps = %d and %d, want 1 and 2", results[0].Reps, results[1].Reps)
	}
	logs, err := svc.store.ReviewLogs(key)
	if err != nil {
		t.Fatal(err)
	}
	if len(logs) != 2 {
		t.Errorf("review logs = %d, want 2", len(logs))
	}
	card, err := svc.store.Card(key)
	if err != nil {
		t.Fatal(err)
	}
	if card.Reps != 2 {
		t.Errorf("stored reps = %d, want 2", card.Reps)
	}
	if len(notifier.reviews) != 2 {
		t.Errorf("submitted reviews = %d, want 2", len(notifier.reviews))
	}
}

func TestReviewUnknownCard(t *testing.T) {
	svc, _, _ := newService(t)
	_, err := svc.Review(context.Background(), model.CardKey{NoteID: "x", ClozeIndex: 1}, model.Good, time.Now())
	if err == nil {
		t.Fatal("expected error for unknown card")
	}
}

func TestNoteRemovedKeepsCards(t *testing.T) {
	svc, dir, _ := newService(t)
	write(t, dir, "n.md", "{{c1::answer}}\n")
	now := time.Now()
	if _, err := svc.ScanVault(now); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(dir, "n.md")); err != nil {
		t.Fatal(err)
	}
	if err := svc.NoteRemoved("n.md"); err != nil {
		t.Fatal(err)
	}
	if _, ok := svc.Note("n"); ok {
		t.Error("note still in arena after removal")
	}

	q, err := svc.BuildQueue(now)
	if err != nil {
		t.Fatal(err)
	}
	if q.Total() != 1 {
		t.Errorf("cards after note removal = %d, want 1 (history kept)", q.Total())
	}
}

func TestScanVaultPrunesVanishedNotes(t *testing.T) {
	svc, dir, _ := newService(t)
	write(t, dir, "a.md", "{{c1::gone}}\n")
	now := time.Now()
	if _, err := svc.ScanVault(now); err != nil {
		t.Fatal(err)
	}

	if err := os.Remove(filepath.Join(dir, "a.md")); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.ScanVault(now); err != nil {
		t.Fatal(err)
	}

	pending, err := svc.store.PendingNotes()
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("pending after rescan = %v, want none", pending)
	}
	ids, err := svc.store.NoteIDs()
	if err != nil {
		t.Fatal(err)
	}
	if len(ids) != 0 {
		t.Errorf("note rows after rescan = %v, want none", ids)
	}
	if _, ok := svc.Note("a"); ok {
		t.Error("note still in arena after rescan")
	}

	// Review history outlives the file.
	q, err := svc.BuildQueue(now)
	if err != nil {
		t.Fatal(err)
	}
	if q.Total() != 1 {
		t.Errorf("cards after rescan = %d, want 1", q.Total())
	}
}

func TestCheck(t *testing.T) {
	svc, dir, _ := newService(t)
	write(t, dir, "gap.md", "{{c1::a}} {{c3::b}}\n")
	write(t, dir, "broken.md", "{{c1::never closed\n")

	res, err := svc.Check()
	if err != nil {
		t.Fatal(err)
	}
	if got := res.MissingIDs["gap"]; len(got) != 1 || got[0] != 2 {
		t.Errorf("missing ids = %v, want [2]", got)
	}
	if res.Unclosed != 1 {
		t.Errorf("unclosed = %d, want 1", res.Unclosed)
	}
}

func TestNotePayloadReadsLatest(t *testing.T) {
	svc, dir, _ := newService(t)
	write(t, dir, "n.md", "---\ntitle: Note\n---\n{{c1::v1}}\n")
	now := time.Now()
	if _, err := svc.ScanVault(now); err != nil {
		t.Fatal(err)
	}

	// Edit after scan: the payload reads through to disk.
	write(t, dir, "n.md", "---\ntitle: Note\n---\n{{c1::v2}}\n")

	p, contents, err := svc.NotePayload("n")
	if err != nil {
		t.Fatal(err)
	}
	if p.Title != "Note" {
		t.Errorf("title = %q", p.Title)
	}
	if p.Raw != "---\ntitle: Note\n---\n{{c1::v2}}\n" {
		t.Errorf("raw = %q, want latest text", p.Raw)
	}
	if len(contents) != 1 || contents[0].ClozeIndex != 1 {
		t.Errorf("contents = %+v", contents)
	}
}
