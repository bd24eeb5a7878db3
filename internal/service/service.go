// Package service owns the vault's note and card collections and
// serializes every mutation behind one lock. The watcher, the CLI and
// the sync reconciler all go through the same path, so reads always
// see a consistent view and concurrent file events cannot interleave
// half-applied updates.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"time"

	"github.com/pvannier/recall/internal/cards"
	"github.com/pvannier/recall/internal/checksum"
	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/queue"
	"github.com/pvannier/recall/internal/remote"
	"github.com/pvannier/recall/internal/scheduler"
	"github.com/pvannier/recall/internal/slugs"
	"github.com/pvannier/recall/internal/store"
	"github.com/pvannier/recall/internal/vault"
)

// Notifier receives change notifications after local state has been
// persisted. The sync reconciler implements it.
type Notifier interface {
	NoteChanged(noteID string)
	SubmitReview(ctx context.Context, p remote.ReviewPayload) error
}

// Service is the vault flashcard service.
type Service struct {
	vaultPath string
	store     *store.Store
	engine    *scheduler.Engine
	notifier  Notifier
	log       *slog.Logger

	mu    stdsync.Mutex
	notes map[string]*model.Note
}

// Options configures a Service. Notifier may be nil for offline use.
type Options struct {
	VaultPath string
	Store     *store.Store
	Engine    *scheduler.Engine
	Notifier  Notifier
	Logger    *slog.Logger
}

// New creates a vault service.
func New(opts Options) (*Service, error) {
	if opts.VaultPath == "" {
		return nil, fmt.Errorf("service: vault path is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("service: store is required")
	}
	if opts.Engine == nil {
		eng, err := scheduler.New(scheduler.Params{})
		if err != nil {
			return nil, err
		}
		opts.Engine = eng
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Service{
		vaultPath: opts.VaultPath,
		store:     opts.Store,
		engine:    opts.Engine,
		notifier:  opts.Notifier,
		log:       opts.Logger,
		notes:     make(map[string]*model.Note),
	}, nil
}

// SetNotifier installs the change notifier after construction. The
// reconciler needs the service as its source, so the two are wired in
// two steps.
func (s *Service) SetNotifier(n Notifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

// ScanResult summarizes a full vault scan.
type ScanResult struct {
	Notes     int
	Cards     int
	NewCards  int
	Unclosed  int
	Malformed int
	Errors    []error
}

// ScanVault walks every markdown file, reconciles cards against the
// stored ones and persists the result. Files that fail to read or
// parse are collected, not fatal.
func (s *Service) ScanVault(now time.Time) (ScanResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var res ScanResult
	seen := make(map[string]bool)
	err := vault.WalkNotes(s.vaultPath, func(wr vault.WalkResult) error {
		if wr.Error != nil {
			res.Errors = append(res.Errors, fmt.Errorf("%s: %w", wr.RelativePath, wr.Error))
			return nil
		}
		seen[wr.Result.Note.ID] = true
		applied, err := s.applyNote(wr.Result.Note, now)
		if err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("%s: %w", wr.RelativePath, err))
			return nil
		}
		res.Notes++
		res.Cards += applied.cards
		res.NewCards += applied.newCards
		res.Unclosed += len(wr.Result.Unclosed)
		res.Malformed += len(wr.Result.Malformed)
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walk vault: %w", err)
	}

	ids, err := s.store.NoteIDs()
	if err != nil {
		return res, fmt.Errorf("list notes: %w", err)
	}
	for _, id := range ids {
		if seen[id] {
			continue
		}
		// The file is gone. Drop the note row so a stale pending flag
		// cannot keep failing every sync; cards and logs survive.
		if err := s.store.DeleteNote(id); err != nil {
			res.Errors = append(res.Errors, err)
		}
	}
	for id := range s.notes {
		if !seen[id] {
			delete(s.notes, id)
		}
	}

	s.log.Info("vault scanned",
		"notes", res.Notes, "cards", res.Cards, "new", res.NewCards,
		"errors", len(res.Errors))
	return res, nil
}

type applyResult struct {
	cards    int
	newCards int
	changed  bool
}

// applyNote reconciles one parsed note into the store. Caller holds mu.
func (s *Service) applyNote(note model.Note, now time.Time) (applyResult, error) {
	prev, err := s.store.Cards(note.ID)
	if err != nil {
		return applyResult{}, fmt.Errorf("load cards: %w", err)
	}
	next := cards.Reconcile(prev, &note, now)

	hash := checksum.SumString(note.Raw)
	state, err := s.store.SyncState(note.ID)
	if err != nil && !errors.Is(err, store.ErrNoNote) {
		return applyResult{}, fmt.Errorf("sync state: %w", err)
	}
	changed := errors.Is(err, store.ErrNoNote) || state.ContentHash != hash

	if err := s.store.UpsertNote(note.ID, note.FilePath, hash); err != nil {
		return applyResult{}, fmt.Errorf("upsert note: %w", err)
	}
	if err := s.store.SaveCards(next); err != nil {
		return applyResult{}, fmt.Errorf("save cards: %w", err)
	}
	s.notes[note.ID] = &note

	res := applyResult{cards: len(next), changed: changed}
	for _, c := range next {
		if c.Reps == 0 {
			res.newCards++
		}
	}
	return res, nil
}

// NoteChanged re-reads one note by vault-relative path, applies it and
// notifies the reconciler when the content hash moved. This is the
// single entry point for external edits; the watcher funnels its
// events here.
func (s *Service) NoteChanged(relPath string, now time.Time) error {
	res, err := vault.ReadNote(s.vaultPath, relPath)
	if err != nil {
		return fmt.Errorf("read note %s: %w", relPath, err)
	}

	s.mu.Lock()
	applied, err := s.applyNote(res.Note, now)
	notifier := s.notifier
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("apply note %s: %w", res.Note.ID, err)
	}

	if applied.changed {
		s.log.Debug("note changed", "note", res.Note.ID, "cards", applied.cards)
		if notifier != nil {
			notifier.NoteChanged(res.Note.ID)
		}
	}
	return nil
}

// NoteRemoved drops the note row and the in-memory note. Cards and
// review history survive removal; a note restored later reclaims them
// by id.
func (s *Service) NoteRemoved(relPath string) error {
	id := slugs.NoteID(relPath)
	s.mu.Lock()
	delete(s.notes, id)
	s.mu.Unlock()
	if err := s.store.DeleteNote(id); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	s.log.Debug("note removed", "note", id)
	return nil
}

// Review grades one card and persists the outcome. The updated card
// and its log row are written locally before any remote submission;
// a remote failure never loses the local review.
func (s *Service) Review(ctx context.Context, key model.CardKey, rating model.Rating, now time.Time) (model.Card, error) {
	s.mu.Lock()
	card, err := s.store.Card(key)
	if err != nil {
		s.mu.Unlock()
		return model.Card{}, err
	}

	updated, logEntry, err := s.engine.Grade(card, rating, now)
	if err != nil {
		s.mu.Unlock()
		return model.Card{}, err
	}

	if err := s.store.SaveCard(updated); err != nil {
		s.mu.Unlock()
		return model.Card{}, fmt.Errorf("save card: %w", err)
	}
	if err := s.store.AppendReviewLog(logEntry); err != nil {
		s.mu.Unlock()
		return model.Card{}, fmt.Errorf("append review log: %w", err)
	}
	notifier := s.notifier
	s.mu.Unlock()

	if notifier != nil {
		payload := reviewPayload(updated, logEntry)
		if err := notifier.SubmitReview(ctx, payload); err != nil {
			s.log.Warn("review submission failed",
				"note", key.NoteID, "cloze", key.ClozeIndex, "error", err)
		}
	}
	return updated, nil
}

func reviewPayload(c model.Card, l model.ReviewLog) remote.ReviewPayload {
	return remote.ReviewPayload{
		NoteID:        c.NoteID,
		ClozeIndex:    c.ClozeIndex,
		State:         c.State,
		Due:           c.Due,
		Stability:     c.Stability,
		Difficulty:    c.Difficulty,
		ElapsedDays:   c.ElapsedDays,
		ScheduledDays: c.ScheduledDays,
		Reps:          c.Reps,
		Lapses:        c.Lapses,
		LastReview:    c.LastReview,
		Log:           l,
	}
}

// BuildQueue partitions all stored cards for review at now.
func (s *Service) BuildQueue(now time.Time) (queue.Queue, error) {
	all, err := s.store.AllCards()
	if err != nil {
		return queue.Queue{}, fmt.Errorf("load cards: %w", err)
	}
	return queue.Build(all, s.notePaths(all), now), nil
}

// Forecast returns day-bucketed due counts for the coming days.
func (s *Service) Forecast(days int, now time.Time) ([]queue.Bucket, error) {
	all, err := s.store.AllCards()
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	return queue.Forecast(all, days, now), nil
}

func (s *Service) notePaths(cs []model.Card) map[string]string {
	out := make(map[string]string)
	for _, c := range cs {
		if _, ok := out[c.NoteID]; ok {
			continue
		}
		if p, err := s.store.NotePath(c.NoteID); err == nil {
			out[c.NoteID] = p
		}
	}
	return out
}

// CheckResult aggregates authoring problems across the vault.
type CheckResult struct {
	Notes      int
	Unclosed   int
	Malformed  int
	MissingIDs map[string][]int
	Overloaded map[string][]int
}

// Check walks the vault and reports unclosed or malformed spans,
// missing cloze ids and over-referenced ids, without mutating state.
func (s *Service) Check() (CheckResult, error) {
	res := CheckResult{
		MissingIDs: make(map[string][]int),
		Overloaded: make(map[string][]int),
	}
	err := vault.WalkNotes(s.vaultPath, func(wr vault.WalkResult) error {
		if wr.Error != nil {
			return nil
		}
		res.Notes++
		res.Unclosed += len(wr.Result.Unclosed)
		res.Malformed += len(wr.Result.Malformed)
		report := cards.Inspect(&wr.Result.Note)
		if len(report.MissingIDs) > 0 {
			res.MissingIDs[wr.Result.Note.ID] = report.MissingIDs
		}
		if len(report.Overloaded) > 0 {
			res.Overloaded[wr.Result.Note.ID] = report.Overloaded
		}
		return nil
	})
	if err != nil {
		return res, fmt.Errorf("walk vault: %w", err)
	}
	return res, nil
}

// NotePayload implements the sync source: it reads the note from disk
// at call time so a coalesced push always carries the latest text.
func (s *Service) NotePayload(noteID string) (remote.NotePayload, []remote.CardContent, error) {
	relPath, err := s.store.NotePath(noteID)
	if err != nil {
		return remote.NotePayload{}, nil, err
	}
	res, err := vault.ReadNote(s.vaultPath, relPath)
	if err != nil {
		return remote.NotePayload{}, nil, fmt.Errorf("read note %s: %w", noteID, err)
	}

	cs, err := s.store.Cards(noteID)
	if err != nil {
		return remote.NotePayload{}, nil, fmt.Errorf("load cards %s: %w", noteID, err)
	}
	contents := make([]remote.CardContent, 0, len(cs))
	for _, c := range cs {
		contents = append(contents, remote.CardContent{
			NoteID:      c.NoteID,
			ClozeIndex:  c.ClozeIndex,
			AnswerText:  c.AnswerText,
			SectionPath: c.SectionPath,
			Tags:        c.Tags,
		})
	}

	return remote.NotePayload{
		NoteID:      noteID,
		FilePath:    relPath,
		Title:       res.Note.Frontmatter.Title,
		ContentHash: checksum.SumString(res.Note.Raw),
		Raw:         res.Note.Raw,
	}, contents, nil
}

// PendingCount reports how many notes still await a remote push.
func (s *Service) PendingCount() (int, error) {
	return s.store.PendingCount()
}

// Note returns the in-memory note by id, if the last scan saw it.
func (s *Service) Note(id string) (*model.Note, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.notes[id]
	return n, ok
}
