package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/user/custodian/internal/evidence"
	"github.com/user/custodian/internal/types"
)

// CaseStore stores each sealed case as cases/<caseID>.json.
type CaseStore struct {
	root string
	mu   sync.RWMutex
}

// NewCaseStore creates a file-backed CaseStore rooted at the given directory.
func NewCaseStore(root string) *CaseStore {
	return &CaseStore{root: root}
}

func (s *CaseStore) casesDir() string {
	return filepath.Join(s.root, "cases")
}

func (s *CaseStore) casePath(id types.CaseID) string {
	return filepath.Join(s.casesDir(), string(id)+".json")
}

// Put writes rec atomically. An existing case is never replaced.
func (s *CaseStore) Put(_ context.Context, rec *types.CaseRecord) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("put case: missing case id")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := s.casePath(rec.ID)
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", ErrCaseExists, rec.ID)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("stat case file: %w", err)
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal case: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return fmt.Errorf("write case %s: %w", rec.ID, err)
	}
	return nil
}

// GetAll returns every stored case ordered by creation time. Previews are
// re-derived on load.
func (s *CaseStore) GetAll(_ context.Context) ([]*types.CaseRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries, err := os.ReadDir(s.casesDir())
	if err != nil {
		if os.IsNotExist(err) {
			return []*types.CaseRecord{}, nil
		}
		return nil, fmt.Errorf("read cases dir: %w", err)
	}

	cases := make([]*types.CaseRecord, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.casesDir(), entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read case file: %w", err)
		}
		var rec types.CaseRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			return nil, fmt.Errorf("unmarshal case %s: %w", entry.Name(), err)
		}
		evidence.AttachPreviews(&rec)
		cases = append(cases, &rec)
	}

	sortCases(cases)
	return cases, nil
}

// Delete removes a stored case.
func (s *CaseStore) Delete(_ context.Context, id types.CaseID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.casePath(id)); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrCaseNotFound, id)
		}
		return fmt.Errorf("remove case file: %w", err)
	}
	return nil
}

// Clear removes every stored case.
func (s *CaseStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.RemoveAll(s.casesDir()); err != nil {
		return fmt.Errorf("clear cases: %w", err)
	}
	return nil
}

func sortCases(cases []*types.CaseRecord) {
	slices.SortStableFunc(cases, func(a, b *types.CaseRecord) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(string(a.ID), string(b.ID))
	})
}

// Find returns the stored case whose ID equals ref, or failing that the
// single case whose ID starts with ref.
func Find(ctx context.Context, store types.CaseStore, ref string) (*types.CaseRecord, error) {
	if ref == "" {
		return nil, fmt.Errorf("%w: empty reference", ErrCaseNotFound)
	}
	cases, err := store.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var match *types.CaseRecord
	for _, rec := range cases {
		if string(rec.ID) == ref {
			return rec, nil
		}
		if strings.HasPrefix(string(rec.ID), ref) {
			if match != nil {
				return nil, fmt.Errorf("case reference %q is ambiguous", ref)
			}
			match = rec
		}
	}
	if match == nil {
		return nil, fmt.Errorf("%w: %s", ErrCaseNotFound, ref)
	}
	return match, nil
}
