// Package testutil provides reusable test utilities for recall
// integration tests.
package testutil

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// TestVault represents a temporary vault for testing.
type TestVault struct {
	Path  string
	t     *testing.T
	files map[string]string
}

// NewTestVault creates a new test vault builder.
// Call Build() to create the actual vault directory.
func NewTestVault(t *testing.T) *TestVault {
	t.Helper()
	return &TestVault{
		t:     t,
		files: make(map[string]string),
	}
}

// WithNote adds a markdown note to the vault.
// The path is relative to the vault root.
func (v *TestVault) WithNote(path, content string) *TestVault {
	v.files[path] = content
	return v
}

// Build creates the vault directory and all configured files.
// Returns the TestVault for method chaining.
func (v *TestVault) Build() *TestVault {
	v.t.Helper()
	v.Path = v.t.TempDir()
	for path, content := range v.files {
		v.WriteFile(path, content)
	}
	return v
}

// WriteFile writes a file to the vault, creating directories as needed.
func (v *TestVault) WriteFile(relPath, content string) {
	v.t.Helper()
	fullPath := filepath.Join(v.Path, filepath.FromSlash(relPath))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		v.t.Fatalf("create directory for %s: %v", relPath, err)
	}
	if err := os.WriteFile(fullPath, []byte(content), 0o644); err != nil {
		v.t.Fatalf("write file %s: %v", relPath, err)
	}
}

// ReadFile reads a file from the vault.
func (v *TestVault) ReadFile(relPath string) string {
	v.t.Helper()
	content, err := os.ReadFile(filepath.Join(v.Path, filepath.FromSlash(relPath)))
	if err != nil {
		v.t.Fatalf("read file %s: %v", relPath, err)
	}
	return string(content)
}

// RemoveFile deletes a file from the vault.
func (v *TestVault) RemoveFile(relPath string) {
	v.t.Helper()
	if err := os.Remove(filepath.Join(v.Path, filepath.FromSlash(relPath))); err != nil {
		v.t.Fatalf("remove file %s: %v", relPath, err)
	}
}

// AssertFileContains fails the test if the file does not contain the substring.
func (v *TestVault) AssertFileContains(relPath, substr string) {
	v.t.Helper()
	content := v.ReadFile(relPath)
	if !strings.Contains(content, substr) {
		v.t.Errorf("expected file %s to contain %q, got:\n%s", relPath, substr, content)
	}
}

// AssertFileNotContains fails the test if the file contains the substring.
func (v *TestVault) AssertFileNotContains(relPath, substr string) {
	v.t.Helper()
	content := v.ReadFile(relPath)
	if strings.Contains(content, substr) {
		v.t.Errorf("expected file %s to not contain %q, got:\n%s", relPath, substr, content)
	}
}
