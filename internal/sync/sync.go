// Package sync reconciles the local store with the remote card store.
//
// Content pushes coalesce per note: while a push for a note is in
// flight, further edits mark the job dirty and the job re-reads the
// latest content before finishing, so the newest text always wins and
// at most one push per note runs at a time. Review submissions
// serialize per card. Bulk sync runs with bounded concurrency and
// never lets one note's failure abort the rest.
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/remote"
	"github.com/pvannier/recall/internal/store"
)

// DefaultConcurrency bounds simultaneous note pushes during SyncAll.
const DefaultConcurrency = 4

// Source supplies the current content payload for a note. The
// reconciler re-reads through Source at push time rather than
// capturing content at enqueue time.
type Source interface {
	NotePayload(noteID string) (remote.NotePayload, []remote.CardContent, error)
}

// Result summarizes a bulk sync.
type Result struct {
	Synced int
	Failed int
}

// Reconciler pushes local changes to the remote store.
type Reconciler struct {
	remote remote.Store
	store  *store.Store
	source Source
	log    *slog.Logger
	limit  int

	ctx    context.Context
	cancel context.CancelFunc
	wg     stdsync.WaitGroup

	mu       stdsync.Mutex
	inflight map[string]*noteJob
	cardMu   map[model.CardKey]*stdsync.Mutex
}

type noteJob struct {
	dirty bool
}

// Options configures a Reconciler. Zero values get defaults.
type Options struct {
	Concurrency int
	Logger      *slog.Logger
}

// NewReconciler creates a reconciler. Close releases its background
// work; pushes started after Close are discarded.
func NewReconciler(rs remote.Store, st *store.Store, src Source, opts Options) *Reconciler {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Reconciler{
		remote:   rs,
		store:    st,
		source:   src,
		log:      opts.Logger,
		limit:    opts.Concurrency,
		ctx:      ctx,
		cancel:   cancel,
		inflight: make(map[string]*noteJob),
		cardMu:   make(map[model.CardKey]*stdsync.Mutex),
	}
}

// Close cancels in-flight pushes and waits for their goroutines.
func (r *Reconciler) Close() {
	r.cancel()
	r.wg.Wait()
}

// NoteChanged schedules a content push for the note. If a push is
// already in flight the call coalesces into it; the in-flight job will
// re-read the note before it exits.
func (r *Reconciler) NoteChanged(noteID string) {
	job, ok := r.claimNote(noteID)
	if !ok {
		return
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.drainNote(r.ctx, noteID, job); err != nil {
			r.log.Warn("note push failed", "note", noteID, "error", err)
		}
	}()
}

// claimNote takes the note's in-flight slot. When another job already
// holds it that job is marked dirty instead and ok is false.
func (r *Reconciler) claimNote(noteID string) (job *noteJob, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if held, ok := r.inflight[noteID]; ok {
		held.dirty = true
		return held, false
	}
	job = &noteJob{}
	r.inflight[noteID] = job
	return job, true
}

// drainNote pushes until the job is clean, then releases the slot and
// returns the last push's error.
func (r *Reconciler) drainNote(ctx context.Context, noteID string, job *noteJob) error {
	for {
		err := r.pushNote(ctx, noteID)

		r.mu.Lock()
		if job.dirty {
			job.dirty = false
			r.mu.Unlock()
			continue
		}
		delete(r.inflight, noteID)
		r.mu.Unlock()
		return err
	}
}

// syncNote pushes one note through the same in-flight slot the
// background jobs use, so a bulk sync never overlaps a coalesced push
// for the same note. When a job already holds the slot it covers this
// push: it re-reads the latest content before exiting.
func (r *Reconciler) syncNote(ctx context.Context, noteID string) error {
	job, ok := r.claimNote(noteID)
	if !ok {
		return nil
	}
	return r.drainNote(ctx, noteID, job)
}

// pushNote reads the latest content for the note, upserts it remotely
// and clears the pending flag. MarkSynced only clears the flag when
// the stored hash still matches the pushed hash, so an edit that lands
// mid-push keeps the note pending.
func (r *Reconciler) pushNote(ctx context.Context, noteID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	note, cards, err := r.source.NotePayload(noteID)
	if err != nil {
		return fmt.Errorf("read note %s: %w", noteID, err)
	}
	if err := r.remote.UpsertNote(ctx, note); err != nil {
		return err
	}
	if err := r.remote.UpsertCardContent(ctx, cards); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		// No local state change after cancellation, even though the
		// remote write went through. Pending stays set.
		return err
	}
	if err := r.store.MarkSynced(noteID, note.ContentHash, time.Now()); err != nil {
		return fmt.Errorf("mark synced %s: %w", noteID, err)
	}
	r.log.Debug("note synced", "note", noteID, "cards", len(cards))
	return nil
}

// SubmitReview pushes one grading event. Submissions for the same card
// serialize; submissions for distinct cards run independently.
//
// A transport failure is ambiguous: the server may have applied the
// review. The card is fetched back and the submission is treated as
// acknowledged when the remote rep count has caught up; otherwise the
// payload is resubmitted once.
func (r *Reconciler) SubmitReview(ctx context.Context, p ReviewPayload) error {
	mu := r.cardLock(model.CardKey{NoteID: p.NoteID, ClozeIndex: p.ClozeIndex})
	mu.Lock()
	defer mu.Unlock()

	err := r.remote.SubmitReview(ctx, p)
	if err == nil {
		return nil
	}
	if !errors.Is(err, remote.ErrUnavailable) {
		return err
	}

	key := model.CardKey{NoteID: p.NoteID, ClozeIndex: p.ClozeIndex}
	current, ferr := r.remote.FetchCard(ctx, key)
	if ferr == nil && current.Reps >= p.Reps {
		r.log.Debug("review already applied", "note", p.NoteID, "cloze", p.ClozeIndex)
		return nil
	}
	if rerr := r.remote.SubmitReview(ctx, p); rerr != nil {
		return fmt.Errorf("resubmit review %s#%d: %w", p.NoteID, p.ClozeIndex, rerr)
	}
	return nil
}

// ReviewPayload aliases the remote shape so callers build submissions
// without importing remote directly.
type ReviewPayload = remote.ReviewPayload

func (r *Reconciler) cardLock(key model.CardKey) *stdsync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	mu, ok := r.cardMu[key]
	if !ok {
		mu = &stdsync.Mutex{}
		r.cardMu[key] = mu
	}
	return mu
}

// SyncAll pushes every pending note with bounded concurrency. One
// note's failure is recorded and the rest keep going; the returned
// error is non-nil only when ctx is cancelled.
func (r *Reconciler) SyncAll(ctx context.Context) (Result, error) {
	pending, err := r.store.PendingNotes()
	if err != nil {
		return Result{}, fmt.Errorf("list pending notes: %w", err)
	}
	if len(pending) == 0 {
		return Result{}, nil
	}

	var mu stdsync.Mutex
	var res Result

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.limit)
	for _, noteID := range pending {
		noteID := noteID
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			err := r.syncNote(gctx, noteID)
			mu.Lock()
			if err != nil {
				res.Failed++
			} else {
				res.Synced++
			}
			mu.Unlock()
			if err != nil {
				r.log.Warn("sync failed", "note", noteID, "error", err)
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return err
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}
	r.log.Info("sync complete", "synced", res.Synced, "failed", res.Failed)
	return res, nil
}
