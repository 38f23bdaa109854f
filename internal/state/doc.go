// Package state provides the persistence collaborators: sealed case stores
// backed by JSON files or SQLite, the custody journal and the audit log.
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/custodian/internal/types"
)

// Compile-time interface compliance checks.
var _ types.CaseStore = (*CaseStore)(nil)
var _ types.CaseStore = (*SQLStore)(nil)
var _ types.CustodyJournal = (*CustodyJournal)(nil)

var (
	// ErrCaseNotFound is returned when no stored case has the given ID.
	ErrCaseNotFound = errors.New("case not found")
	// ErrCaseExists is returned when a case ID is already stored. Sealed
	// cases are never overwritten.
	ErrCaseExists = errors.New("case already exists")
)

// writeAtomic writes data to a temp file next to path and renames it into
// place.
func writeAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
