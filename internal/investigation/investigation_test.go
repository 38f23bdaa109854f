package investigation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/custodian/internal/brain"
	"github.com/user/custodian/internal/evidence"
	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/types"
)

var epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

type memStore struct {
	mu    sync.Mutex
	cases map[types.CaseID]*types.CaseRecord
	fail  error
	puts  int
}

func newMemStore() *memStore { return &memStore{cases: map[types.CaseID]*types.CaseRecord{}} }

func (m *memStore) Put(_ context.Context, rec *types.CaseRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.fail != nil {
		return m.fail
	}
	m.cases[rec.ID] = rec
	return nil
}

func (m *memStore) GetAll(context.Context) ([]*types.CaseRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*types.CaseRecord
	for _, rec := range m.cases {
		out = append(out, rec)
	}
	return out, nil
}

func (m *memStore) Delete(_ context.Context, id types.CaseID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cases, id)
	return nil
}

func (m *memStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cases = map[types.CaseID]*types.CaseRecord{}
	return nil
}

type memJournal struct {
	mu      sync.Mutex
	entries map[types.ArtifactID][]types.CustodyEntry
}

func (j *memJournal) Record(_ context.Context, id types.ArtifactID, e types.CustodyEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.entries == nil {
		j.entries = map[types.ArtifactID][]types.CustodyEntry{}
	}
	j.entries[id] = append(j.entries[id], e)
	return nil
}

func (j *memJournal) Entries(_ context.Context, id types.ArtifactID) ([]types.CustodyEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.entries[id], nil
}

func intakes() []evidence.Intake {
	return []evidence.Intake{
		{
			Filename:   "contract.pdf",
			MimeType:   "application/pdf",
			Content:    types.BinaryContent{Data: []byte("%PDF-1.7")},
			CapturedAt: epoch,
			Session:    &types.GeoLocation{Latitude: -33.9, Longitude: 18.4},
		},
		{
			Filename:   "chat.txt",
			MimeType:   "text/plain",
			Content:    types.TextContent{Text: "see you at the dock"},
			CapturedAt: epoch.Add(time.Minute),
		},
	}
}

func fixedClock() time.Time { return epoch.Add(time.Hour) }

func TestSeal_PersistsAuditableRecord(t *testing.T) {
	store := newMemStore()
	journal := &memJournal{}
	inv := New("harbour", store, WithClock(fixedClock), WithJournal(journal), WithActor("det. ruiz"))

	_, err := inv.AddAll(context.Background(), intakes())
	require.NoError(t, err)

	rec, err := inv.Seal(context.Background())
	require.NoError(t, err)

	assert.Equal(t, inv.ID(), rec.ID)
	assert.Equal(t, "harbour", rec.Name)
	assert.Equal(t, fixedClock(), rec.CreatedAt)
	require.Len(t, rec.Evidence, 2)
	assert.Equal(t, "contract.pdf", rec.Evidence[0].Filename)
	assert.NoError(t, seal.Audit(rec))
	assert.Contains(t, rec.Report, "JURISDICTION: SOUTH AFRICA")

	for _, a := range rec.Evidence {
		var actions []types.CustodyAction
		for _, e := range a.Custody {
			actions = append(actions, e.Action)
			assert.Equal(t, "det. ruiz", e.Actor)
			assert.Equal(t, a.Hash, e.Hash)
		}
		assert.Equal(t, []types.CustodyAction{types.ActionCaptured, types.ActionAnalyzed, types.ActionSealed}, actions)

		mirrored, _ := journal.Entries(context.Background(), a.ID)
		assert.Equal(t, a.Custody, mirrored)
	}

	stored, _ := store.GetAll(context.Background())
	require.Len(t, stored, 1)
	assert.Same(t, rec, stored[0])
}

func TestSeal_Twice(t *testing.T) {
	inv := New("twice", newMemStore(), WithClock(fixedClock))
	_, err := inv.Seal(context.Background())
	require.NoError(t, err)

	_, err = inv.Seal(context.Background())
	assert.ErrorIs(t, err, ErrSealed)
	_, err = inv.Add(evidence.Intake{Filename: "late.txt", Content: types.TextContent{Text: "x"}})
	assert.ErrorIs(t, err, ErrSealed)
	_, err = inv.AddAll(context.Background(), intakes())
	assert.ErrorIs(t, err, ErrSealed)
}

func TestSeal_StoreFailurePropagatesAndRetries(t *testing.T) {
	storeErr := errors.New("disk full")
	store := newMemStore()
	store.fail = storeErr

	inv := New("retry", store, WithClock(fixedClock))
	_, err := inv.Add(intakes()[1])
	require.NoError(t, err)

	_, err = inv.Seal(context.Background())
	require.Error(t, err)
	assert.Same(t, storeErr, err)

	store.fail = nil
	rec, err := inv.Seal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, store.puts)
	assert.Len(t, rec.Evidence[0].Custody, 3, "retry must not append custody twice")
	assert.NoError(t, seal.Audit(rec))
}

func TestSeal_EmptyCase(t *testing.T) {
	rec, err := New("empty", newMemStore(), WithClock(fixedClock)).Seal(context.Background())
	require.NoError(t, err)
	assert.Empty(t, rec.Evidence)
	assert.Contains(t, rec.Report, brain.NoData)
	assert.NoError(t, seal.Audit(rec))
}

func TestAnalyze_Deterministic(t *testing.T) {
	arts := make([]*types.EvidenceArtifact, 0)
	inv := New("det", newMemStore(), WithClock(fixedClock))
	for _, in := range intakes() {
		a, err := inv.Add(in)
		require.NoError(t, err)
		arts = append(arts, a)
	}
	snap := brain.NewSnapshot(arts)
	sc := brain.Session{Now: fixedClock()}

	first, err := Analyze(context.Background(), nil, "case-x", snap, sc)
	require.NoError(t, err)
	second, err := Analyze(context.Background(), nil, "case-x", snap, sc)
	require.NoError(t, err)

	assert.Equal(t, first.Report, second.Report)
	assert.Equal(t, first.Seal, second.Seal)

	other, err := Analyze(context.Background(), nil, "case-y", snap, sc)
	require.NoError(t, err)
	assert.NotEqual(t, first.Seal.Value, other.Seal.Value)
}

func TestArtifacts_ReturnsCopies(t *testing.T) {
	inv := New("copies", newMemStore(), WithClock(fixedClock))
	_, err := inv.Add(intakes()[0])
	require.NoError(t, err)

	got := inv.Artifacts()
	got[0].Filename = "tampered"
	assert.Equal(t, "contract.pdf", inv.Artifacts()[0].Filename)
	assert.Len(t, got[0].Custody, 1)
}

func TestAdd_UndatedIntakeUsesCaseClock(t *testing.T) {
	inv := New("undated", newMemStore(), WithClock(fixedClock))
	a, err := inv.Add(evidence.Intake{Filename: "undated.txt", MimeType: "text/plain"})
	require.NoError(t, err)
	assert.Equal(t, fixedClock(), a.CapturedAt)

	all, err := inv.AddAll(context.Background(), []evidence.Intake{{Filename: "b.txt"}})
	require.NoError(t, err)
	assert.Equal(t, fixedClock(), all[0].CapturedAt)
}
