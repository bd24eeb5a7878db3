// Package paths provides canonical helpers for vault-relative markdown
// paths and keeps file access confined to the vault.
package paths

import (
	"errors"
	"path/filepath"
	"strings"
)

// ErrOutsideVault indicates a path that resolves outside the vault root.
var ErrOutsideVault = errors.New("path outside vault")

// NormalizeRelPath normalizes a vault-relative path-like value:
// - converts OS separators to '/'
// - trims leading "./" and leading "/"
// - collapses repeated '/'
func NormalizeRelPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.TrimPrefix(p, "./")
	p = strings.TrimPrefix(p, "/")
	for strings.Contains(p, "//") {
		p = strings.ReplaceAll(p, "//", "/")
	}
	return p
}

// NoteRelPath normalizes a reference to a vault-relative markdown path,
// appending ".md" when missing.
func NoteRelPath(ref string) string {
	p := NormalizeRelPath(ref)
	p = strings.TrimSuffix(p, ".md")
	return p + ".md"
}

// ValidateWithinVault verifies that path resolves to a location inside
// vaultPath. Both are made absolute before comparison so symlinked or
// "../"-laden inputs cannot escape.
func ValidateWithinVault(vaultPath, path string) error {
	absVault, err := filepath.Abs(vaultPath)
	if err != nil {
		return err
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	rel, err := filepath.Rel(absVault, absPath)
	if err != nil {
		return ErrOutsideVault
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return ErrOutsideVault
	}
	return nil
}
