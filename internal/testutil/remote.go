package testutil

import (
	"context"
	"sync"

	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/remote"
)

// FakeRemote is an in-memory remote store for tests. Safe for
// concurrent use. Set Err to make every call fail with it.
type FakeRemote struct {
	mu      sync.Mutex
	Err     error
	notes   map[string]remote.NotePayload
	content map[model.CardKey]remote.CardContent
	reviews []remote.ReviewPayload
}

// NewFakeRemote creates an empty fake remote store.
func NewFakeRemote() *FakeRemote {
	return &FakeRemote{
		notes:   make(map[string]remote.NotePayload),
		content: make(map[model.CardKey]remote.CardContent),
	}
}

var _ remote.Store = (*FakeRemote)(nil)

// UpsertNote implements remote.Store.
func (f *FakeRemote) UpsertNote(ctx context.Context, p remote.NotePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.notes[p.NoteID] = p
	return nil
}

// UpsertCardContent implements remote.Store.
func (f *FakeRemote) UpsertCardContent(ctx context.Context, cs []remote.CardContent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for _, c := range cs {
		f.content[model.CardKey{NoteID: c.NoteID, ClozeIndex: c.ClozeIndex}] = c
	}
	return nil
}

// SubmitReview implements remote.Store.
func (f *FakeRemote) SubmitReview(ctx context.Context, p remote.ReviewPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	f.reviews = append(f.reviews, p)
	return nil
}

// FetchCard implements remote.Store. It reconstructs the card from the
// latest submitted review, if any.
func (f *FakeRemote) FetchCard(ctx context.Context, key model.CardKey) (model.Card, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.Card{}, f.Err
	}
	var found *remote.ReviewPayload
	for i := range f.reviews {
		p := &f.reviews[i]
		if p.NoteID == key.NoteID && p.ClozeIndex == key.ClozeIndex {
			found = p
		}
	}
	if found == nil {
		return model.Card{}, remote.ErrNotFound
	}
	return model.Card{
		NoteID:     found.NoteID,
		ClozeIndex: found.ClozeIndex,
		State:      found.State,
		Due:        found.Due,
		Stability:  found.Stability,
		Difficulty: found.Difficulty,
		Reps:       found.Reps,
		Lapses:     found.Lapses,
		LastReview: found.LastReview,
	}, nil
}

// Note returns the stored note payload, if present.
func (f *FakeRemote) Note(id string) (remote.NotePayload, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.notes[id]
	return p, ok
}

// Reviews returns a copy of all submitted reviews.
func (f *FakeRemote) Reviews() []remote.ReviewPayload {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]remote.ReviewPayload(nil), f.reviews...)
}
