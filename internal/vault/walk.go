// Package vault walks a markdown vault and feeds parsed notes to the
// service layer.
package vault

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pvannier/recall/internal/parser"
	"github.com/pvannier/recall/internal/paths"
	"github.com/pvannier/recall/internal/slugs"
	"github.com/pvannier/recall/internal/store"
)

// WalkResult contains the result of processing one markdown file.
type WalkResult struct {
	Path         string
	RelativePath string
	Result       *parser.Result
	Error        error
}

// WalkNotes walks all markdown files in a vault and calls the handler
// for each. It skips the local state directory and other dot
// directories, processes only .md files, and verifies each file sits
// within the vault before reading it. Read and parse failures are
// reported through the handler rather than aborting the walk.
func WalkNotes(vaultPath string, handler func(result WalkResult) error) error {
	return filepath.WalkDir(vaultPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			relPath, _ := filepath.Rel(vaultPath, path)
			return handler(WalkResult{Path: path, RelativePath: relPath, Error: err})
		}

		if d.IsDir() {
			name := d.Name()
			if name == store.StoreRelPath || (strings.HasPrefix(name, ".") && path != vaultPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !strings.HasSuffix(path, ".md") {
			return nil
		}

		if err := paths.ValidateWithinVault(vaultPath, path); err != nil {
			if errors.Is(err, paths.ErrOutsideVault) {
				return nil
			}
			relPath, _ := filepath.Rel(vaultPath, path)
			return handler(WalkResult{Path: path, RelativePath: relPath, Error: err})
		}

		relPath, _ := filepath.Rel(vaultPath, path)
		relPath = filepath.ToSlash(relPath)

		content, err := os.ReadFile(path)
		if err != nil {
			return handler(WalkResult{Path: path, RelativePath: relPath, Error: err})
		}

		res, err := parser.Parse(slugs.NoteID(relPath), relPath, string(content))
		if err != nil {
			return handler(WalkResult{Path: path, RelativePath: relPath, Error: err})
		}
		return handler(WalkResult{Path: path, RelativePath: relPath, Result: res})
	})
}

// ReadNote reads and parses a single note by vault-relative path.
func ReadNote(vaultPath, relPath string) (*parser.Result, error) {
	relPath = paths.NoteRelPath(relPath)
	full := filepath.Join(vaultPath, filepath.FromSlash(relPath))
	if err := paths.ValidateWithinVault(vaultPath, full); err != nil {
		return nil, err
	}
	content, err := os.ReadFile(full)
	if err != nil {
		return nil, err
	}
	return parser.Parse(slugs.NoteID(relPath), relPath, string(content))
}
