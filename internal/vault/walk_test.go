package vault

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestWalkNotes(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "geo/france.md", "# France\n\nCapital: {{c1::Paris}}\n")
	writeFile(t, dir, "top.md", "Plain note.\n")
	writeFile(t, dir, "notes.txt", "not markdown")
	writeFile(t, dir, ".recall/recall.db", "binary")
	writeFile(t, dir, ".obsidian/config.md", "hidden")

	var ids []string
	err := WalkNotes(dir, func(res WalkResult) error {
		if res.Error != nil {
			t.Errorf("walk error for %s: %v", res.RelativePath, res.Error)
			return nil
		}
		ids = append(ids, res.Result.Note.ID)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]bool{"geo/france": true, "top": true}
	if len(ids) != len(want) {
		t.Fatalf("ids = %v, want %v", ids, want)
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected note id %q", id)
		}
	}
}

func TestWalkNotesReportsParseErrors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "bad.md", "---\ntags: [unclosed\n---\nbody\n")
	writeFile(t, dir, "good.md", "fine\n")

	var good, bad int
	err := WalkNotes(dir, func(res WalkResult) error {
		if res.Error != nil {
			bad++
		} else {
			good++
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if good != 1 || bad != 1 {
		t.Errorf("good = %d bad = %d, want 1 and 1", good, bad)
	}
}

func TestReadNote(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "geo/france.md", "Capital: {{c1::Paris}}\n")

	res, err := ReadNote(dir, "geo/france")
	if err != nil {
		t.Fatal(err)
	}
	if res.Note.ID != "geo/france" {
		t.Errorf("id = %q", res.Note.ID)
	}
	if len(res.Note.Clozes) != 1 {
		t.Errorf("clozes = %d, want 1", len(res.Note.Clozes))
	}

	if _, err := ReadNote(dir, "../escape"); err == nil {
		t.Error("expected error for path escaping the vault")
	}
}
