package cards

import (
	"reflect"
	"testing"
	"time"

	"github.com/pvannier/recall/internal/model"
	"github.com/pvannier/recall/internal/parser"
)

var now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

func parseNote(t *testing.T, raw string) *model.Note {
	t.Helper()
	res, err := parser.Parse("note", "note.md", raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return &res.Note
}

func TestExtractGroupsOccurrences(t *testing.T) {
	note := parseNote(t, "{{c1::Paris}} is nice. Later, {{c1::France's capital}} again and {{c2::Berlin}}.")

	got := Extract(note, now)
	if len(got) != 2 {
		t.Fatalf("cards = %+v, want 2", got)
	}
	if got[0].ClozeIndex != 1 || got[1].ClozeIndex != 2 {
		t.Errorf("cloze indices = %d, %d, want 1, 2", got[0].ClozeIndex, got[1].ClozeIndex)
	}
	// The first occurrence's answer wins.
	if got[0].AnswerText != "Paris" {
		t.Errorf("answer = %q, want %q", got[0].AnswerText, "Paris")
	}
	if got[0].State != model.New || got[0].Reps != 0 {
		t.Errorf("new card not in New state: %+v", got[0])
	}
}

func TestExtractGroupingInvariant(t *testing.T) {
	notes := []string{
		"{{c1::a}}",
		"{{c1::a}} {{c1::b}} {{c1::c}}",
		"{{c1::a}} {{c2::b}} {{c1::c}} {{c3::d}} {{c2::e}}",
		"no clozes at all",
	}
	wantCounts := []int{1, 1, 3, 0}

	for i, raw := range notes {
		note := parseNote(t, raw)
		distinct := make(map[int]bool)
		for _, c := range note.Clozes {
			distinct[c.ID] = true
		}
		got := Extract(note, now)
		if len(got) != len(distinct) || len(got) != wantCounts[i] {
			t.Errorf("note %d: %d cards, want %d (= distinct ids %d)", i, len(got), wantCounts[i], len(distinct))
		}
	}
}

func TestExtractSectionPathAndTags(t *testing.T) {
	raw := "---\ntags: [geo, europe]\n---\n# Europe\n\n## France\n\n{{c1::Paris}}\n\n# Asia\n\n{{c2::Tokyo}}\n"
	note := parseNote(t, raw)

	got := Extract(note, now)
	if len(got) != 2 {
		t.Fatalf("cards = %+v, want 2", got)
	}
	if got[0].SectionPath != "europe/france" {
		t.Errorf("card 1 section = %q, want %q", got[0].SectionPath, "europe/france")
	}
	if got[1].SectionPath != "asia" {
		t.Errorf("card 2 section = %q, want %q", got[1].SectionPath, "asia")
	}
	wantTags := []string{"geo", "europe"}
	if !reflect.DeepEqual(got[0].Tags, wantTags) {
		t.Errorf("tags = %v, want %v", got[0].Tags, wantTags)
	}
}

func TestReconcilePreservesScheduling(t *testing.T) {
	note := parseNote(t, "{{c1::old answer}}")
	prev := Extract(note, now)

	// Simulate accumulated review state.
	last := now.Add(-24 * time.Hour)
	prev[0].State = model.Review
	prev[0].Stability = 12.5
	prev[0].Difficulty = 4.2
	prev[0].Reps = 9
	prev[0].Lapses = 2
	prev[0].Due = now.Add(5 * 24 * time.Hour)
	prev[0].LastReview = &last

	edited := parseNote(t, "{{c1::new answer}} and {{c2::fresh}}")
	got := Reconcile(prev, edited, now)
	if len(got) != 2 {
		t.Fatalf("cards = %+v, want 2", got)
	}

	kept := got[0]
	if kept.AnswerText != "new answer" {
		t.Errorf("answer not refreshed: %q", kept.AnswerText)
	}
	if kept.State != model.Review || kept.Stability != 12.5 || kept.Difficulty != 4.2 ||
		kept.Reps != 9 || kept.Lapses != 2 || !kept.Due.Equal(prev[0].Due) {
		t.Errorf("scheduling fields not preserved: %+v", kept)
	}

	fresh := got[1]
	if fresh.State != model.New || fresh.Reps != 0 {
		t.Errorf("new id should start New: %+v", fresh)
	}
}

func TestReconcileKeepsCardsForRemovedIDs(t *testing.T) {
	note := parseNote(t, "{{c1::a}} {{c2::b}}")
	prev := Extract(note, now)
	prev[1].Reps = 4

	edited := parseNote(t, "{{c1::a}} only now")
	got := Reconcile(prev, edited, now)

	if len(got) != 2 {
		t.Fatalf("cards = %+v, want removed id preserved", got)
	}
	if got[1].ClozeIndex != 2 || got[1].Reps != 4 {
		t.Errorf("card for removed id altered: %+v", got[1])
	}
}

func TestInspectMissingIDs(t *testing.T) {
	tests := []struct {
		raw  string
		want []int
	}{
		{"{{c1::a}} {{c3::c}}", []int{2}},
		{"{{c5::x}}", []int{1, 2, 3, 4}},
		{"{{c1::a}} {{c2::b}}", nil},
		{"no clozes", nil},
	}

	for _, tt := range tests {
		note := parseNote(t, tt.raw)
		got := MissingIDs(note)
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("MissingIDs(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestInspectOverloaded(t *testing.T) {
	raw := ""
	for i := 0; i < OccurrenceWarnThreshold+1; i++ {
		raw += "{{c1::x}} "
	}
	raw += "{{c2::y}}"

	rep := Inspect(parseNote(t, raw))
	if !reflect.DeepEqual(rep.Overloaded, []int{1}) {
		t.Errorf("overloaded = %v, want [1]", rep.Overloaded)
	}

	// At the threshold exactly there is no warning, and extraction
	// still yields one card either way.
	if len(Extract(parseNote(t, raw), now)) != 2 {
		t.Error("high occurrence count must not block extraction")
	}
}

func TestExtractExampleScenario(t *testing.T) {
	// "{{c1::a}} {{c3::c}}" → max id 3, missing [2], two cards.
	note := parseNote(t, "{{c1::a}} {{c3::c}}")
	if got := note.MaxClozeID(); got != 3 {
		t.Errorf("max id = %d, want 3", got)
	}
	if got := MissingIDs(note); !reflect.DeepEqual(got, []int{2}) {
		t.Errorf("missing = %v, want [2]", got)
	}
	if got := Extract(note, now); len(got) != 2 {
		t.Errorf("cards = %+v, want 2", got)
	}
}
