// Package custody implements the append-only chain-of-custody ledger.
package custody

import (
	"fmt"
	"sync"
	"time"

	"github.com/user/custodian/internal/types"
)

// Ledger records custody entries per artifact. Entries are never edited or
// removed; there is no API to do so.
type Ledger struct {
	mu      sync.RWMutex
	entries map[types.ArtifactID][]types.CustodyEntry
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the ledger clock.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// NewLedger creates an empty ledger.
func NewLedger(opts ...Option) *Ledger {
	l := &Ledger{
		entries: make(map[types.ArtifactID][]types.CustodyEntry),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Open registers an artifact so entries can be appended for it. Opening an
// already registered artifact is a no-op.
func (l *Ledger) Open(id types.ArtifactID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[id]; !ok {
		l.entries[id] = []types.CustodyEntry{}
	}
}

// Known reports whether id has been opened.
func (l *Ledger) Known(id types.ArtifactID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.entries[id]
	return ok
}

// Append adds an entry stamped with the ledger clock. Appending for an
// artifact that was never opened is a programming error and panics.
func (l *Ledger) Append(id types.ArtifactID, action types.CustodyAction, actor, hash string, loc *types.GeoLocation, notes string) types.CustodyEntry {
	l.mu.Lock()
	defer l.mu.Unlock()

	existing, ok := l.entries[id]
	if !ok {
		panic(fmt.Sprintf("custody: append %s for unknown artifact %s", action, id))
	}

	entry := types.CustodyEntry{
		At:     l.now(),
		Action: action,
		Actor:  actor,
		Hash:   hash,
		Notes:  notes,
	}
	if loc != nil {
		c := *loc
		entry.Location = &c
	}
	l.entries[id] = append(existing, entry)
	return entry
}

// Entries returns a copy of the entries for id in insertion order.
func (l *Ledger) Entries(id types.ArtifactID) []types.CustodyEntry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	src := l.entries[id]
	out := make([]types.CustodyEntry, len(src))
	copy(out, src)
	return out
}

// Len returns the number of entries recorded for id.
func (l *Ledger) Len(id types.ArtifactID) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries[id])
}
