// Package model defines the core entities shared across the parsing,
// scheduling and sync layers: notes, blocks, cloze occurrences, cards,
// review logs and queue items.
package model

import "time"

// BlockType classifies a structural unit of a note.
type BlockType string

const (
	BlockHeading   BlockType = "heading"
	BlockParagraph BlockType = "paragraph"
	BlockList      BlockType = "list"
	BlockCode      BlockType = "code"
	BlockMath      BlockType = "math"
	BlockBlank     BlockType = "blank"
)

// Block is one structural unit of a note. Hash is a fast
// non-cryptographic digest of RawContent used purely for change
// detection; equal hashes mean the block may be reused.
type Block struct {
	Hash         uint64
	Type         BlockType
	HeadingLevel int    // 0 unless Type == BlockHeading
	Slug         string // empty unless Type == BlockHeading
	RawContent   string
}

// Cloze is one valid {{cN::answer::hint?}} span in raw text. Offsets
// always point at a well-formed, closed span.
type Cloze struct {
	ID              int
	OccurrenceIndex int // 0-based rank among spans sharing this id, document order
	Answer          string
	Hint            string
	Start           int // byte offset of "{{"
	End             int // byte offset just past "}}"
}

// Frontmatter holds the recognized YAML frontmatter fields of a note.
type Frontmatter struct {
	Title string
	Tags  []string
}

// Note is one markdown file. Raw is the single source of truth; Blocks
// and Clozes are derived, cached views.
type Note struct {
	ID          string
	FilePath    string
	Frontmatter Frontmatter
	Blocks      []Block
	Clozes      []Cloze
	Raw         string
}

// MaxClozeID returns the highest cloze id present in the note, 0 if none.
func (n *Note) MaxClozeID() int {
	max := 0
	for _, c := range n.Clozes {
		if c.ID > max {
			max = c.ID
		}
	}
	return max
}

// ReviewLog is an append-only record of one grading event. The
// scheduling fields capture the card's state before the review was
// applied. Logs are never mutated once written.
type ReviewLog struct {
	NoteID      string    `json:"note_id"`
	ClozeIndex  int       `json:"cloze_index"`
	Rating      Rating    `json:"rating"`
	StateBefore State     `json:"state_before"`
	Due         time.Time `json:"due"`
	Stability   float64   `json:"stability"`
	Difficulty  float64   `json:"difficulty"`
	ReviewedAt  time.Time `json:"reviewed_at"`
}

// QueueItem is the minimal shape handed to a review session consumer.
type QueueItem struct {
	NoteID     string    `json:"note_id"`
	FilePath   string    `json:"filepath"`
	ClozeIndex int       `json:"cloze_index"`
	Due        time.Time `json:"due"`
}

// SyncState is per-note bookkeeping for reconciliation. Pending is set
// whenever local raw text changes and cleared only after a confirmed
// remote upsert.
type SyncState struct {
	ContentHash string
	LastSyncAt  time.Time
	Pending     bool
}
