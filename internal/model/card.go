package model

import "time"

// DefaultLeechThreshold is the lapse count above which a card is
// flagged as a leech.
const DefaultLeechThreshold = 5

// CardKey is the stable compound identity of a card: one distinct cloze
// id within one note. It survives edits that preserve the id and is the
// conflict key used by the remote store.
type CardKey struct {
	NoteID     string
	ClozeIndex int
}

// Card is one schedulable unit. Scheduling fields are owned by the
// scheduler; content-derived fields (AnswerText, SectionPath, Tags) are
// refreshed on every re-parse and never carry scheduling meaning.
type Card struct {
	NoteID     string `json:"note_id"`
	ClozeIndex int    `json:"cloze_index"`

	State         State      `json:"state"`
	Due           time.Time  `json:"due"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	ElapsedDays   int        `json:"elapsed_days"`
	ScheduledDays int        `json:"scheduled_days"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	LastReview    *time.Time `json:"last_review"`

	AnswerText  string   `json:"answer_text"`
	SectionPath string   `json:"section_path"`
	Tags        []string `json:"tags"`
}

// NewCard creates a card in the New state, due immediately.
func NewCard(noteID string, clozeIndex int, now time.Time) Card {
	return Card{
		NoteID:     noteID,
		ClozeIndex: clozeIndex,
		State:      New,
		Due:        now,
	}
}

// Key returns the card's compound identity.
func (c Card) Key() CardKey {
	return CardKey{NoteID: c.NoteID, ClozeIndex: c.ClozeIndex}
}

// IsLeech reports whether the card's lapse count exceeds the threshold.
// A threshold <= 0 falls back to DefaultLeechThreshold. Leeches are
// flagged for the user but still scheduled normally.
func (c Card) IsLeech(threshold int) bool {
	if threshold <= 0 {
		threshold = DefaultLeechThreshold
	}
	return c.Lapses > threshold
}

// Clone returns a deep copy of the card. Pointer and slice fields are
// copied by value.
func (c Card) Clone() Card {
	out := c
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	if c.Tags != nil {
		out.Tags = append([]string(nil), c.Tags...)
	}
	return out
}
