// Package scheduler advances card scheduling state on review using an
// FSRS-style memory model.
//
// Grade is a pure function over its inputs: identical (card, rating,
// now) always produces identical output. That determinism is what the
// sync layer's conflict-free merge semantics rely on.
package scheduler

import (
	"fmt"
	"math"
	"time"

	"github.com/pvannier/recall/internal/model"
)

// Sub-day intervals used while a card is in a learning state.
const (
	againStep = 1 * time.Minute
	hardStep  = 5 * time.Minute
	goodStep  = 10 * time.Minute
)

// Engine schedules card reviews. It is safe for concurrent use: all
// state is immutable after construction.
type Engine struct {
	mem              memory
	desiredRetention float64
	maximumInterval  int
}

// New creates an Engine from the given params. Zero-value fields are
// filled with defaults; out-of-bounds values return an error.
func New(p Params) (*Engine, error) {
	w := p.Weights
	if w == (Weights{}) {
		w = DefaultWeights
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}

	dr := p.DesiredRetention
	if dr == 0 {
		dr = 0.9
	}
	if dr < 0 || dr > 1 {
		return nil, fmt.Errorf("scheduler: desired retention %f out of range (0, 1]", dr)
	}

	maxIvl := p.MaximumInterval
	if maxIvl == 0 {
		maxIvl = 36500
	}
	if maxIvl < 0 {
		return nil, fmt.Errorf("scheduler: maximum interval %d must be positive", maxIvl)
	}

	return &Engine{
		mem:              newMemory(w),
		desiredRetention: dr,
		maximumInterval:  maxIvl,
	}, nil
}

// Grade processes a review of the card at the given time. It returns
// the updated card and an immutable review log capturing the pre-update
// snapshot plus the rating. The input card is not mutated.
//
// A card with corrupt or missing numeric fields is treated as freshly
// created rather than failing the operation.
func (e *Engine) Grade(card model.Card, rating model.Rating, now time.Time) (model.Card, model.ReviewLog, error) {
	if !rating.IsValid() {
		return model.Card{}, model.ReviewLog{}, fmt.Errorf("grade card %s/%d: %w", card.NoteID, card.ClozeIndex, model.ErrInvalidRating)
	}

	c := card.Clone()
	if corrupt(c) {
		c = resetScheduling(c, now)
	}

	log := model.ReviewLog{
		NoteID:      c.NoteID,
		ClozeIndex:  c.ClozeIndex,
		Rating:      rating,
		StateBefore: c.State,
		Due:         c.Due,
		Stability:   c.Stability,
		Difficulty:  c.Difficulty,
		ReviewedAt:  now,
	}

	var elapsed float64
	if c.LastReview != nil {
		elapsed = now.Sub(*c.LastReview).Hours() / 24.0
		if elapsed < 0 {
			elapsed = 0
		}
	}

	// Memory update.
	if c.Reps == 0 {
		c.Stability = e.mem.initStability(rating)
		c.Difficulty = e.mem.initDifficulty(rating, true)
	} else if elapsed < 1 {
		c.Stability = e.mem.shortTermStability(c.Stability, rating)
		c.Difficulty = e.mem.nextDifficulty(c.Difficulty, rating)
	} else {
		r := e.mem.retrievability(elapsed, c.Stability)
		c.Stability = e.mem.nextStability(c.Difficulty, c.Stability, r, rating)
		c.Difficulty = e.mem.nextDifficulty(c.Difficulty, rating)
	}

	prev := c.State
	if rating == model.Again && prev == model.Review {
		c.Lapses++
	}
	c.Reps++
	c.State = nextState(prev, rating)
	c.ElapsedDays = int(elapsed)

	// Interval: Review cards schedule whole days from stability; cards
	// still in a learning state re-appear within the same day.
	if c.State == model.Review {
		days := e.mem.nextInterval(c.Stability, e.desiredRetention, e.maximumInterval)
		c.ScheduledDays = days
		c.Due = now.Add(time.Duration(days) * 24 * time.Hour)
	} else {
		c.ScheduledDays = 0
		c.Due = now.Add(learningStep(rating))
	}

	c.LastReview = &now
	return c, log, nil
}

// Retrievability returns the estimated probability of recall at the
// given time, 0 for cards that were never reviewed.
func (e *Engine) Retrievability(card model.Card, now time.Time) float64 {
	if card.LastReview == nil || card.Stability <= 0 {
		return 0
	}
	elapsed := now.Sub(*card.LastReview).Hours() / 24.0
	if elapsed < 0 {
		elapsed = 0
	}
	return e.mem.retrievability(elapsed, card.Stability)
}

// nextState implements the state machine:
// New → Learning (Easy jumps straight to Review), Learning → Review on
// Good/Easy, Review → Relearning on Again, Relearning → Review on
// Good/Easy. No state is absorbing.
func nextState(prev model.State, r model.Rating) model.State {
	switch prev {
	case model.New:
		if r == model.Easy {
			return model.Review
		}
		return model.Learning
	case model.Learning:
		if r >= model.Good {
			return model.Review
		}
		return model.Learning
	case model.Review:
		if r == model.Again {
			return model.Relearning
		}
		return model.Review
	default:
		if r >= model.Good {
			return model.Review
		}
		return model.Relearning
	}
}

func learningStep(r model.Rating) time.Duration {
	switch r {
	case model.Again:
		return againStep
	case model.Hard:
		return hardStep
	default:
		return goodStep
	}
}

// corrupt reports whether the card's scheduling fields are unusable:
// non-finite numbers, negative counters, an invalid state, or a
// reviewed card with no positive stability.
func corrupt(c model.Card) bool {
	if math.IsNaN(c.Stability) || math.IsInf(c.Stability, 0) ||
		math.IsNaN(c.Difficulty) || math.IsInf(c.Difficulty, 0) {
		return true
	}
	if c.Stability < 0 || c.Difficulty < 0 || c.Reps < 0 || c.Lapses < 0 {
		return true
	}
	if !c.State.IsValid() {
		return true
	}
	if c.Reps > 0 && (c.Stability <= 0 || c.LastReview == nil) {
		return true
	}
	return false
}

// resetScheduling returns a copy of the card with scheduling fields
// restored to the New initial state. Identity and content-derived
// fields are preserved so no card is lost.
func resetScheduling(c model.Card, now time.Time) model.Card {
	fresh := model.NewCard(c.NoteID, c.ClozeIndex, now)
	fresh.AnswerText = c.AnswerText
	fresh.SectionPath = c.SectionPath
	fresh.Tags = c.Tags
	return fresh
}
