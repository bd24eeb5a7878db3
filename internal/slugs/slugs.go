// Package slugs provides canonical slugification helpers.
//
// Two strategies are in use:
//   - Heading slugs: section identifiers derived from markdown headings,
//     built with a conservative rune-level transformation that keeps
//     ASCII and CJK word characters.
//   - Note id slugs: file-path-derived note identities, built on
//     gosimple/slug per path component.
package slugs

import (
	"strings"
	"unicode"

	goslug "github.com/gosimple/slug"
)

// HeadingSlug converts heading text to a lowercased, hyphenated slug.
// Letters and digits (including CJK) are preserved; every other run of
// characters collapses to a single hyphen. Leading and trailing hyphens
// are trimmed.
func HeadingSlug(text string) string {
	var result strings.Builder
	prevDash := false

	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
			prevDash = false
			continue
		}
		if !prevDash && result.Len() > 0 {
			result.WriteRune('-')
			prevDash = true
		}
	}

	return strings.TrimSuffix(result.String(), "-")
}

// ComponentSlug converts a single path component to a URL-safe slug.
func ComponentSlug(s string) string {
	s = strings.TrimSuffix(s, ".md")
	slugged := goslug.Make(s)
	if slugged == "" {
		slugged = strings.ToLower(strings.ReplaceAll(s, " ", "-"))
	}
	return slugged
}

// NoteID derives a stable note identity from a vault-relative path:
// the ".md" extension is stripped and each "/"-separated component is
// slugified.
func NoteID(relPath string) string {
	relPath = strings.TrimSuffix(relPath, ".md")
	parts := strings.Split(relPath, "/")
	for i, part := range parts {
		parts[i] = ComponentSlug(part)
	}
	return strings.Join(parts, "/")
}
