package investigation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/user/custodian/internal/brain"
	"github.com/user/custodian/internal/custody"
	"github.com/user/custodian/internal/evidence"
	"github.com/user/custodian/internal/logging"
	"github.com/user/custodian/internal/types"
)

// ErrSealed is returned when evidence is added to, or a seal requested
// from, a case that has already been sealed and persisted.
var ErrSealed = errors.New("investigation already sealed")

// Investigation holds one case in progress. It is safe for concurrent use.
type Investigation struct {
	mu        sync.Mutex
	id        types.CaseID
	name      string
	actor     string
	ledger    *custody.Ledger
	store     types.CaseStore
	journal   types.CustodyJournal
	pipeline  *brain.Pipeline
	now       func() time.Time
	zone      *time.Location
	artifacts []*types.EvidenceArtifact
	record    *types.CaseRecord
	persisted bool
}

// Option configures an Investigation.
type Option func(*Investigation)

// WithActor sets the actor recorded on custody entries.
func WithActor(actor string) Option { return func(i *Investigation) { i.actor = actor } }

// WithJournal mirrors custody entries to j after the case is persisted.
func WithJournal(j types.CustodyJournal) Option { return func(i *Investigation) { i.journal = j } }

// WithPipeline replaces the default nine-brain pipeline.
func WithPipeline(p *brain.Pipeline) Option { return func(i *Investigation) { i.pipeline = p } }

// WithClock sets the processing clock used for custody and analysis.
func WithClock(now func() time.Time) Option { return func(i *Investigation) { i.now = now } }

// WithLocation sets the zone timestamps are rendered in.
func WithLocation(loc *time.Location) Option { return func(i *Investigation) { i.zone = loc } }

// WithID fixes the case ID instead of generating one.
func WithID(id types.CaseID) Option { return func(i *Investigation) { i.id = id } }

// New starts an investigation that persists to store when sealed.
func New(name string, store types.CaseStore, opts ...Option) *Investigation {
	i := &Investigation{
		id:    types.NewCaseID(),
		name:  name,
		actor: evidence.DefaultActor,
		store: store,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	if i.pipeline == nil {
		i.pipeline = brain.NewPipeline()
	}
	i.ledger = custody.NewLedger(custody.WithClock(i.now))
	return i
}

// ID returns the case ID.
func (i *Investigation) ID() types.CaseID { return i.id }

// Name returns the human case name.
func (i *Investigation) Name() string { return i.name }

// Artifacts returns copies of the artifacts added so far, in ingestion order.
func (i *Investigation) Artifacts() []types.EvidenceArtifact {
	i.mu.Lock()
	defer i.mu.Unlock()
	out := make([]types.EvidenceArtifact, len(i.artifacts))
	for k, a := range i.artifacts {
		out[k] = a.Clone()
		out[k].Custody = i.ledger.Entries(a.ID)
	}
	return out
}

// Add ingests one artifact.
func (i *Investigation) Add(in evidence.Intake) (*types.EvidenceArtifact, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.record != nil {
		return nil, ErrSealed
	}
	a := evidence.New(in, i.ledger, i.actor, i.now)
	i.artifacts = append(i.artifacts, a)
	return a, nil
}

// AddAll ingests intakes concurrently and appends them in intake order.
func (i *Investigation) AddAll(ctx context.Context, intakes []evidence.Intake) ([]*types.EvidenceArtifact, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.record != nil {
		return nil, ErrSealed
	}
	added, err := evidence.IngestAll(ctx, i.ledger, i.actor, i.now, intakes)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}
	i.artifacts = append(i.artifacts, added...)
	return added, nil
}

// Seal analyses the evidence, appends Analyzed and Sealed custody entries,
// builds the CaseRecord and persists it. The record is built once: if the
// store fails, the error is returned unchanged and a later Seal retries the
// same record. Once persisted, Seal returns ErrSealed.
func (i *Investigation) Seal(ctx context.Context) (*types.CaseRecord, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.persisted {
		return nil, ErrSealed
	}

	if i.record == nil {
		rec, err := i.build(ctx)
		if err != nil {
			return nil, err
		}
		i.record = rec
	}

	if err := i.store.Put(ctx, i.record); err != nil {
		return nil, err
	}
	i.persisted = true
	i.mirror(ctx)
	return i.record, nil
}

func (i *Investigation) build(ctx context.Context) (*types.CaseRecord, error) {
	snap := brain.NewSnapshot(i.artifacts)
	out, err := Analyze(ctx, i.pipeline, i.id, snap, brain.Session{Now: i.now(), Location: i.zone})
	if err != nil {
		return nil, err
	}

	sealNote := "case seal " + out.Seal.Value[:16]
	evidenceList := make([]types.EvidenceArtifact, len(i.artifacts))
	for k, a := range i.artifacts {
		i.ledger.Append(a.ID, types.ActionAnalyzed, i.actor, a.Hash, nil, "offline nine-module analysis")
		i.ledger.Append(a.ID, types.ActionSealed, i.actor, a.Hash, nil, sealNote)
		evidenceList[k] = a.Clone()
		evidenceList[k].Custody = i.ledger.Entries(a.ID)
	}

	return &types.CaseRecord{
		ID:        i.id,
		Name:      i.name,
		CreatedAt: i.now(),
		Report:    out.Report,
		Evidence:  evidenceList,
		Seal:      out.Seal.Value,
	}, nil
}

func (i *Investigation) mirror(ctx context.Context) {
	if i.journal == nil {
		return
	}
	log := logging.New("investigation")
	for _, a := range i.record.Evidence {
		for _, e := range a.Custody {
			if err := i.journal.Record(ctx, a.ID, e); err != nil {
				log.Warn("custody journal write failed", "case_id", i.id, "artifact_id", a.ID, "error", err)
				return
			}
		}
	}
}
