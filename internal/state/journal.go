package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/custodian/internal/types"
)

// journalLine is one custody entry on disk with its sequence number.
type journalLine struct {
	Seq   int64              `json:"seq"`
	Entry types.CustodyEntry `json:"entry"`
}

// CustodyJournal is a JSONL-backed append-only mirror of the custody
// ledger. Entries are stored per artifact in custody/<artifactID>.jsonl.
type CustodyJournal struct {
	root  string
	mu    sync.Mutex
	locks map[types.ArtifactID]*sync.Mutex
}

// NewCustodyJournal creates a file-backed journal rooted at the given directory.
func NewCustodyJournal(root string) *CustodyJournal {
	return &CustodyJournal{
		root:  root,
		locks: make(map[types.ArtifactID]*sync.Mutex),
	}
}

// getLock returns the per-artifact mutex, creating one if it doesn't exist.
func (j *CustodyJournal) getLock(id types.ArtifactID) *sync.Mutex {
	j.mu.Lock()
	defer j.mu.Unlock()

	if lock, ok := j.locks[id]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	j.locks[id] = lock
	return lock
}

func (j *CustodyJournal) path(id types.ArtifactID) string {
	return filepath.Join(j.root, "custody", string(id)+".jsonl")
}

// read returns every line of the artifact's journal. Caller must hold the
// artifact lock.
func (j *CustodyJournal) read(id types.ArtifactID) ([]journalLine, error) {
	f, err := os.Open(j.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var lines []journalLine
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var line journalLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			return nil, fmt.Errorf("unmarshal journal line: %w", err)
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan journal: %w", err)
	}
	return lines, nil
}

// Record appends entry to the artifact's journal with the next sequence
// number.
func (j *CustodyJournal) Record(_ context.Context, id types.ArtifactID, entry types.CustodyEntry) error {
	lock := j.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path(id)), 0o755); err != nil {
		return fmt.Errorf("create custody dir: %w", err)
	}

	existing, err := j.read(id)
	if err != nil {
		return err
	}

	data, err := json.Marshal(journalLine{Seq: int64(len(existing)) + 1, Entry: entry})
	if err != nil {
		return fmt.Errorf("marshal journal line: %w", err)
	}

	f, err := os.OpenFile(j.path(id), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write journal line: %w", err)
	}
	return nil
}

// Entries returns the artifact's journaled entries in sequence order.
func (j *CustodyJournal) Entries(_ context.Context, id types.ArtifactID) ([]types.CustodyEntry, error) {
	lock := j.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	lines, err := j.read(id)
	if err != nil {
		return nil, err
	}
	out := make([]types.CustodyEntry, len(lines))
	for i, line := range lines {
		out[i] = line.Entry
	}
	return out, nil
}

// Count returns the number of journaled entries for an artifact.
func (j *CustodyJournal) Count(_ context.Context, id types.ArtifactID) (int64, error) {
	lock := j.getLock(id)
	lock.Lock()
	defer lock.Unlock()

	lines, err := j.read(id)
	if err != nil {
		return 0, err
	}
	return int64(len(lines)), nil
}
