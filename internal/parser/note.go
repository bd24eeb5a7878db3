package parser

import (
	"fmt"

	"github.com/pvannier/recall/internal/cloze"
	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/splitter"
)

// Result is the outcome of parsing one note. Warnings are non-blocking:
// unclosed and malformed spans are excluded from the valid cloze list
// and surfaced here instead of failing the parse.
type Result struct {
	Note      model.Note
	Unclosed  []cloze.Unclosed
	Malformed []cloze.Malformed
}

// Parse parses raw note text. It is a pure function: frontmatter is
// decoded, the body is split into blocks, and the full raw text is
// scanned for cloze spans so occurrence offsets index into raw.
func Parse(id, filePath, raw string) (*Result, error) {
	fm, err := ParseFrontmatter(raw)
	if err != nil {
		return nil, fmt.Errorf("parse note %s: %w", id, err)
	}

	body, _ := Body(raw, fm)
	blocks := splitter.Split(body)

	valid, unclosed, malformed := cloze.Scan(raw)

	// Resolve 0-based occurrence indices among spans sharing an id, in
	// document order.
	seen := make(map[int]int)
	occurrences := make([]model.Cloze, 0, len(valid))
	for _, s := range valid {
		occ := seen[s.ID]
		seen[s.ID] = occ + 1
		occurrences = append(occurrences, model.Cloze{
			ID:              s.ID,
			OccurrenceIndex: occ,
			Answer:          s.Answer,
			Hint:            s.Hint,
			Start:           s.Start,
			End:             s.End,
		})
	}

	return &Result{
		Note: model.Note{
			ID:          id,
			FilePath:    filePath,
			Frontmatter: fm.Model(),
			Blocks:      blocks,
			Clozes:      occurrences,
			Raw:         raw,
		},
		Unclosed:  unclosed,
		Malformed: malformed,
	}, nil
}
