package service_test

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/service"
	"github.com/pvannier/recall/internal/store"
	syncpkg "github.com/pvannier/recall/internal/sync"
	"github.com/pvannier/recall/internal/testutil"
)

// Covers the full local-first loop: scan, push, external edit, review.
func TestVaultSyncRoundTrip(t *testing.T) {
	tv := testutil.NewTestVault(t).
		WithNote("geo/france.md", "---\ntitle: France\ntags: [geography]\n---\nCapital: {{c1::Paris}}\n").
		Build()

	st, err := store.Open(tv.Path)
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc, err := service.New(service.Options{
		VaultPath: tv.Path,
		Store:     st,
		Logger:    logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	fr := testutil.NewFakeRemote()
	recon := syncpkg.NewReconciler(fr, st, svc, syncpkg.Options{Logger: logger})
	defer recon.Close()
	svc.SetNotifier(recon)

	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	if _, err := svc.ScanVault(now); err != nil {
		t.Fatal(err)
	}

	pending, err := svc.PendingCount()
	if err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Fatalf("pending after scan = %d, want 1", pending)
	}

	res, err := recon.SyncAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.Synced != 1 || res.Failed != 0 {
		t.Fatalf("sync result = %+v", res)
	}
	if p, ok := fr.Note("geo/france"); !ok || p.Title != "France" {
		t.Fatalf("remote note = %+v ok=%v", p, ok)
	}
	pending, _ = svc.PendingCount()
	if pending != 0 {
		t.Errorf("pending after sync = %d, want 0", pending)
	}

	// External edit funnels through NoteChanged and pushes in the
	// background.
	tv.WriteFile("geo/france.md", "---\ntitle: France\ntags: [geography]\n---\nCapital: {{c1::Paris}} on the {{c2::Seine}}\n")
	if err := svc.NoteChanged("geo/france.md", now); err != nil {
		t.Fatal(err)
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		if p, ok := fr.Note("geo/france"); ok && len(p.Raw) > 0 &&
			p.Raw != "---\ntitle: France\ntags: [geography]\n---\nCapital: {{c1::Paris}}\n" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("background push never delivered the edit")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// Reviewing pushes the grading event.
	key := model.CardKey{NoteID: "geo/france", ClozeIndex: 1}
	updated, err := svc.Review(context.Background(), key, model.Good, now)
	if err != nil {
		t.Fatal(err)
	}
	if updated.Reps != 1 {
		t.Errorf("reps = %d", updated.Reps)
	}
	reviews := fr.Reviews()
	if len(reviews) != 1 || reviews[0].ClozeIndex != 1 {
		t.Fatalf("remote reviews = %+v", reviews)
	}

	// The second cloze became a fresh card; the reviewed one kept its
	// scheduling state.
	q, err := svc.BuildQueue(now)
	if err != nil {
		t.Fatal(err)
	}
	if len(q.New) != 1 {
		t.Errorf("new cards = %d, want 1", len(q.New))
	}
}
