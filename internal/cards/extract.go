// Package cards maps cloze occurrences onto logical card identities:
// one card per distinct cloze id within a note, regardless of how many
// times the id repeats.
package cards

import (
	"sort"
	"strings"
	"time"

	"github.com/pvannier/recall/internal/model"
)

// OccurrenceWarnThreshold is the occurrence count per id above which a
// report flags the id. Many spans sharing one review event is a design
// smell, not an error; extraction never blocks on it.
const OccurrenceWarnThreshold = 5

// Report carries non-blocking integrity findings from extraction.
type Report struct {
	// MissingIDs lists ids in 1..maxID with no occurrence in the text.
	// Cards previously created for these ids must not be deleted.
	MissingIDs []int

	// Overloaded lists ids whose occurrence count exceeds the warn
	// threshold.
	Overloaded []int
}

// Extract maps the note's cloze occurrences onto cards, one per
// distinct id, each created in the New state.
func Extract(note *model.Note, now time.Time) []model.Card {
	return Reconcile(nil, note, now)
}

// Reconcile re-extracts cards after an edit. A card whose id already
// exists in prev keeps its scheduling fields untouched; only
// content-derived fields are refreshed. Ids new in the text produce New
// cards. Cards in prev whose id vanished from the text are preserved
// as-is: removal of an id is the missing-id condition, not a deletion.
func Reconcile(prev []model.Card, note *model.Note, now time.Time) []model.Card {
	prevByIndex := make(map[int]model.Card, len(prev))
	for _, c := range prev {
		if c.NoteID == note.ID {
			prevByIndex[c.ClozeIndex] = c
		}
	}

	sections := sectionIndex(note)

	byID := make(map[int]model.Card)
	var order []int
	for _, occ := range note.Clozes {
		if _, ok := byID[occ.ID]; ok {
			continue
		}
		order = append(order, occ.ID)

		card, existed := prevByIndex[occ.ID]
		if !existed {
			card = model.NewCard(note.ID, occ.ID, now)
		}
		card.AnswerText = occ.Answer
		card.SectionPath = sections.pathAt(occ.Start)
		card.Tags = append([]string(nil), note.Frontmatter.Tags...)
		byID[occ.ID] = card
	}

	// Preserve prev cards whose id no longer occurs.
	for idx, c := range prevByIndex {
		if _, ok := byID[idx]; !ok {
			byID[idx] = c
			order = append(order, idx)
		}
	}

	sort.Ints(order)
	out := make([]model.Card, 0, len(order))
	for _, id := range order {
		out = append(out, byID[id])
	}
	return out
}

// Inspect reports integrity findings for the note.
func Inspect(note *model.Note) Report {
	var rep Report

	counts := make(map[int]int)
	maxID := 0
	for _, occ := range note.Clozes {
		counts[occ.ID]++
		if occ.ID > maxID {
			maxID = occ.ID
		}
	}

	for id := 1; id <= maxID; id++ {
		if counts[id] == 0 {
			rep.MissingIDs = append(rep.MissingIDs, id)
		}
	}

	var overloaded []int
	for id, n := range counts {
		if n > OccurrenceWarnThreshold {
			overloaded = append(overloaded, id)
		}
	}
	sort.Ints(overloaded)
	rep.Overloaded = overloaded
	return rep
}

// MissingIDs returns the gaps in the note's 1..maxID sequence.
func MissingIDs(note *model.Note) []int {
	return Inspect(note).MissingIDs
}

// sections resolves a raw-text offset to the slug chain of its
// enclosing headings.
type sections struct {
	// starts[i] is the raw-text offset where region i begins; paths[i]
	// is the heading slug chain active in that region.
	starts []int
	paths  []string
}

// sectionIndex builds the offset → section-path mapping from the note's
// blocks. Blocks cover the body, which is a suffix of the raw text.
func sectionIndex(note *model.Note) *sections {
	bodyLen := 0
	for _, b := range note.Blocks {
		bodyLen += len(b.RawContent)
	}
	offset := len(note.Raw) - bodyLen

	type frame struct {
		level int
		slug  string
	}
	var stack []frame

	s := &sections{starts: []int{0}, paths: []string{""}}
	for _, b := range note.Blocks {
		if b.Type == model.BlockHeading {
			for len(stack) > 0 && stack[len(stack)-1].level >= b.HeadingLevel {
				stack = stack[:len(stack)-1]
			}
			stack = append(stack, frame{level: b.HeadingLevel, slug: b.Slug})

			slugsInChain := make([]string, len(stack))
			for i, f := range stack {
				slugsInChain[i] = f.slug
			}
			s.starts = append(s.starts, offset)
			s.paths = append(s.paths, strings.Join(slugsInChain, "/"))
		}
		offset += len(b.RawContent)
	}
	return s
}

// pathAt returns the section path for the region containing offset.
func (s *sections) pathAt(offset int) string {
	for i := len(s.starts) - 1; i >= 0; i-- {
		if s.starts[i] <= offset {
			return s.paths[i]
		}
	}
	return ""
}
