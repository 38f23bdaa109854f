package types

import (
	"context"
)

// CaseStore persists sealed cases. Implementations write whole records
// atomically; readers never observe a partial case.
type CaseStore interface {
	Put(ctx context.Context, rec *CaseRecord) error
	GetAll(ctx context.Context) ([]*CaseRecord, error)
	Delete(ctx context.Context, id CaseID) error
	Clear(ctx context.Context) error
}

// CustodyJournal mirrors custody entries to durable storage.
type CustodyJournal interface {
	Record(ctx context.Context, id ArtifactID, entry CustodyEntry) error
	Entries(ctx context.Context, id ArtifactID) ([]CustodyEntry, error)
}
