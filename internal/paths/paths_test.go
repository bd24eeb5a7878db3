package paths

import (
	"errors"
	"testing"
)

func TestNormalizeRelPath(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"geo/france.md", "geo/france.md"},
		{"./geo/france.md", "geo/france.md"},
		{"/geo//france.md", "geo/france.md"},
	}
	for _, tt := range tests {
		if got := NormalizeRelPath(tt.in); got != tt.want {
			t.Errorf("NormalizeRelPath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNoteRelPath(t *testing.T) {
	if got := NoteRelPath("geo/france"); got != "geo/france.md" {
		t.Errorf("got %q", got)
	}
	if got := NoteRelPath("geo/france.md"); got != "geo/france.md" {
		t.Errorf("got %q", got)
	}
}

func TestValidateWithinVault(t *testing.T) {
	if err := ValidateWithinVault("/vault", "/vault/geo/france.md"); err != nil {
		t.Errorf("inside vault: %v", err)
	}
	if err := ValidateWithinVault("/vault", "/vault/../etc/passwd"); !errors.Is(err, ErrOutsideVault) {
		t.Errorf("escape: err = %v, want ErrOutsideVault", err)
	}
	if err := ValidateWithinVault("/vault", "/elsewhere/note.md"); !errors.Is(err, ErrOutsideVault) {
		t.Errorf("sibling: err = %v, want ErrOutsideVault", err)
	}
}
