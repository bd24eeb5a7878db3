// Package cloze provides canonical scanning and rewriting of cloze spans.
//
// Cloze grammar:
//
//	{{c<id>::answer}}
//	{{c<id>::answer::hint}}
//
// Notes:
//   - <id> is a positive integer. Ids are stable card identity; renumbering
//     is a destructive maintenance action (NormalizeIDs).
//   - Nested braces are not supported: the first "}}" after the separator
//     closes the span.
//   - This package intentionally does NOT understand markdown code fences;
//     higher-level parsers decide whether scanning is enabled for a region.
package cloze

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Span represents a well-formed, closed cloze found in text.
type Span struct {
	ID     int
	Answer string
	Hint   string // empty when no hint part present
	Start  int    // byte offset of "{{"
	End    int    // byte offset just past "}}"
}

// Unclosed marks a span that opens "{{c<id>::" but never closes before
// end-of-text or a conflicting open. Unclosed spans are never counted
// as valid and are never silently auto-closed.
type Unclosed struct {
	Start int
}

// Malformed marks a span wrapped in "{{c<id> ... }}" that is missing the
// "::" separator. Inner is the text that CleanInvalid would preserve.
type Malformed struct {
	Start int
	End   int
	Inner string
}

// scan result kinds for scanAt.
type spanKind int

const (
	kindNone spanKind = iota
	kindValid
	kindUnclosed
	kindMalformed
)

// scanAt scans one candidate span starting at start, which must point at
// the '{' of a "{{c<digits>" sequence. It implements the state machine
// Scanning -> InID -> InAnswer -> InHint -> Closed | Unclosed.
func scanAt(text string, start int) (kind spanKind, span Span, mal Malformed, end int) {
	i := start + 2 // past "{{"
	if i >= len(text) || text[i] != 'c' {
		return kindNone, Span{}, Malformed{}, 0
	}
	i++

	// InID: one or more digits.
	idStart := i
	for i < len(text) && text[i] >= '0' && text[i] <= '9' {
		i++
	}
	if i == idStart {
		return kindNone, Span{}, Malformed{}, 0
	}
	id, err := strconv.Atoi(text[idStart:i])
	if err != nil || id <= 0 {
		return kindNone, Span{}, Malformed{}, 0
	}

	if !strings.HasPrefix(text[i:], "::") {
		// Missing separator. If the wrapper still closes, the span is
		// malformed (cleanable); if it never closes, it is unclosed.
		closeIdx, nextOpen := findClose(text, i)
		if closeIdx < 0 {
			return kindUnclosed, Span{Start: start}, Malformed{}, nextOpen
		}
		inner := strings.TrimLeft(text[i:closeIdx], ": \t")
		return kindMalformed, Span{}, Malformed{Start: start, End: closeIdx + 2, Inner: inner}, closeIdx + 2
	}
	i += 2

	// InAnswer: up to "::" (hint follows) or "}}" (no hint). A
	// conflicting open before either means this span never closes.
	answerStart := i
	for i+1 < len(text) {
		if isOpen(text, i) {
			return kindUnclosed, Span{Start: start}, Malformed{}, i
		}
		if text[i] == ':' && text[i+1] == ':' {
			answer := text[answerStart:i]
			i += 2
			// InHint: up to the first "}}".
			hintStart := i
			closeIdx, nextOpen := findClose(text, i)
			if closeIdx < 0 {
				return kindUnclosed, Span{Start: start}, Malformed{}, nextOpen
			}
			return kindValid, Span{
				ID:     id,
				Answer: answer,
				Hint:   text[hintStart:closeIdx],
				Start:  start,
				End:    closeIdx + 2,
			}, Malformed{}, closeIdx + 2
		}
		if text[i] == '}' && text[i+1] == '}' {
			return kindValid, Span{
				ID:     id,
				Answer: text[answerStart:i],
				Start:  start,
				End:    i + 2,
			}, Malformed{}, i + 2
		}
		i++
	}
	return kindUnclosed, Span{Start: start}, Malformed{}, len(text)
}

// isOpen reports whether a candidate cloze open "{{c<digit>" starts at i.
func isOpen(text string, i int) bool {
	return i+3 < len(text) &&
		text[i] == '{' && text[i+1] == '{' && text[i+2] == 'c' &&
		text[i+3] >= '0' && text[i+3] <= '9'
}

// findClose returns the index of the first "}}" at or after i, or -1 if
// a conflicting open or end-of-text comes first. The second return is
// the offset scanning should resume from when no close was found.
func findClose(text string, i int) (closeIdx, resume int) {
	for i+1 < len(text) {
		if text[i] == '}' && text[i+1] == '}' {
			return i, i + 2
		}
		if isOpen(text, i) {
			return -1, i
		}
		i++
	}
	return -1, len(text)
}

// FindAll returns all valid cloze spans in document order.
func FindAll(text string) []Span {
	spans, _, _ := Scan(text)
	return spans
}

// Scan walks the whole text once and classifies every candidate span.
func Scan(text string) (valid []Span, unclosed []Unclosed, malformed []Malformed) {
	i := 0
	for i+1 < len(text) {
		if text[i] != '{' || text[i+1] != '{' {
			i++
			continue
		}
		kind, span, mal, end := scanAt(text, i)
		switch kind {
		case kindValid:
			valid = append(valid, span)
			i = end
		case kindUnclosed:
			unclosed = append(unclosed, Unclosed{Start: span.Start})
			if end <= i {
				end = i + 2
			}
			i = end
		case kindMalformed:
			malformed = append(malformed, mal)
			i = end
		default:
			i += 2
		}
	}
	return valid, unclosed, malformed
}

// FindMaxID returns the highest valid cloze id in text, 0 if none.
func FindMaxID(text string) int {
	max := 0
	for _, s := range FindAll(text) {
		if s.ID > max {
			max = s.ID
		}
	}
	return max
}

// FindPrecedingID returns the id of the nearest cloze whose span ends at
// or before cursor. Used to let a user continue adding to the same card.
func FindPrecedingID(text string, cursor int) (int, bool) {
	id, found := 0, false
	for _, s := range FindAll(text) {
		if s.End <= cursor {
			id, found = s.ID, true
		} else {
			break
		}
	}
	return id, found
}

// FindUnclosed returns spans that open "{{c<id>" but never close.
func FindUnclosed(text string) []Unclosed {
	_, unclosed, _ := Scan(text)
	return unclosed
}

// Create wraps inner as a cloze span with the given id. An id below 1
// is coerced to 1 (ids are positive integers only).
func Create(inner string, id int) string {
	if id < 1 {
		id = 1
	}
	return fmt.Sprintf("{{c%d::%s}}", id, inner)
}

// NormalizeIDs renumbers all valid cloze ids to a dense 1..K sequence
// preserving the relative order of first appearance. This changes card
// identity for shifted ids and must only be run as an explicit,
// user-confirmed maintenance action. Applying it twice is a no-op.
func NormalizeIDs(text string) (out string, changed bool) {
	spans := FindAll(text)
	if len(spans) == 0 {
		return text, false
	}

	mapping := make(map[int]int)
	next := 1
	for _, s := range spans {
		if _, ok := mapping[s.ID]; !ok {
			mapping[s.ID] = next
			next++
		}
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, s := range spans {
		newID := mapping[s.ID]
		if newID != s.ID {
			changed = true
		}
		b.WriteString(text[prev:s.Start])
		b.WriteString("{{c")
		b.WriteString(strconv.Itoa(newID))
		// Preserve the original answer/hint bytes exactly.
		sepIdx := s.Start + len("{{c") + digits(s.ID)
		b.WriteString(text[sepIdx:s.End])
		prev = s.End
	}
	b.WriteString(text[prev:])
	if !changed {
		return text, false
	}
	return b.String(), true
}

func digits(n int) int {
	return len(strconv.Itoa(n))
}

// CleanInvalid strips wrapper syntax from structurally broken spans
// (missing the "::" separator), preserving the inner text. Valid and
// unclosed spans are left untouched.
func CleanInvalid(text string) (out string, cleaned int) {
	_, _, malformed := Scan(text)
	if len(malformed) == 0 {
		return text, 0
	}

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, m := range malformed {
		b.WriteString(text[prev:m.Start])
		b.WriteString(m.Inner)
		prev = m.End
	}
	b.WriteString(text[prev:])
	return b.String(), len(malformed)
}

// RemoveInRange unwraps every valid cloze span overlapping [start, end),
// replacing each with its answer text.
func RemoveInRange(text string, start, end int) string {
	spans := FindAll(text)
	var hit []Span
	for _, s := range spans {
		if s.Start < end && s.End > start {
			hit = append(hit, s)
		}
	}
	if len(hit) == 0 {
		return text
	}
	sort.Slice(hit, func(i, j int) bool { return hit[i].Start < hit[j].Start })

	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, s := range hit {
		b.WriteString(text[prev:s.Start])
		b.WriteString(s.Answer)
		prev = s.End
	}
	b.WriteString(text[prev:])
	return b.String()
}

// UnclozeAt unwraps the single valid span under cursor, returning the
// rewritten text. ok is false when the cursor is not inside a span.
func UnclozeAt(text string, cursor int) (out string, ok bool) {
	for _, s := range FindAll(text) {
		if s.Start <= cursor && cursor < s.End {
			return text[:s.Start] + s.Answer + text[s.End:], true
		}
	}
	return text, false
}
