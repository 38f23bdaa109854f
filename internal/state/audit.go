package state

import (
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/user/custodian/internal/types"
)

// AuditResult is the most recent integrity audit of one stored case.
type AuditResult struct {
	CaseID    types.CaseID `json:"case_id"`
	CheckedAt time.Time    `json:"checked_at"`
	Intact    bool         `json:"intact"`
	Error     string       `json:"error,omitempty"`
}

// AuditLog is a JSON-file-backed record of the latest audit per case.
type AuditLog struct {
	path string
	mu   sync.RWMutex
}

// NewAuditLog creates a file-backed AuditLog at the given file path.
func NewAuditLog(path string) *AuditLog {
	return &AuditLog{path: path}
}

// Path returns the file path used by this log.
func (l *AuditLog) Path() string {
	return l.path
}

// List returns the latest result for every audited case, ordered by case ID.
func (l *AuditLog) List() ([]AuditResult, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results, err := l.load()
	if err != nil {
		return nil, err
	}
	out := make([]AuditResult, 0, len(results))
	for _, r := range results {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b AuditResult) int {
		return strings.Compare(string(a.CaseID), string(b.CaseID))
	})
	return out, nil
}

// Get returns the latest result for a case.
func (l *AuditLog) Get(id types.CaseID) (AuditResult, bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	results, err := l.load()
	if err != nil {
		return AuditResult{}, false, err
	}
	r, ok := results[id]
	return r, ok, nil
}

// Record replaces the latest result for r.CaseID.
func (l *AuditLog) Record(r AuditResult) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	results, err := l.load()
	if err != nil {
		return err
	}
	results[r.CaseID] = r
	return l.save(results)
}

// Forget drops the result for a deleted case. Unknown IDs are ignored.
func (l *AuditLog) Forget(id types.CaseID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	results, err := l.load()
	if err != nil {
		return err
	}
	if _, ok := results[id]; !ok {
		return nil
	}
	delete(results, id)
	return l.save(results)
}

func (l *AuditLog) load() (map[types.CaseID]AuditResult, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[types.CaseID]AuditResult), nil
		}
		return nil, fmt.Errorf("read audit log: %w", err)
	}

	results := make(map[types.CaseID]AuditResult)
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("unmarshal audit log: %w", err)
	}
	return results, nil
}

func (l *AuditLog) save(results map[types.CaseID]AuditResult) error {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal audit log: %w", err)
	}
	if err := writeAtomic(l.path, data); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
