package state

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/user/custodian/internal/digest"
	"github.com/user/custodian/internal/types"
)

var epoch = time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

func sampleCase(id types.CaseID, at time.Time) *types.CaseRecord {
	html := "<h1>Invoice</h1><p>Total due</p>"
	return &types.CaseRecord{
		ID:        id,
		Name:      "case " + string(id),
		CreatedAt: at,
		Report:    "REPORT\n",
		Seal:      digest.SumString(string(id)),
		Evidence: []types.EvidenceArtifact{
			{
				ID:         types.ArtifactID(string(id) + "-a1"),
				Type:       types.EvidenceDocument,
				Content:    types.TextContent{Text: html},
				Filename:   "invoice.html",
				MimeType:   "text/html",
				CapturedAt: at,
				Session:    &types.GeoLocation{Latitude: 24.1, Longitude: 54.2, Accuracy: 10},
				Hash:       digest.SumString(html),
				Custody: []types.CustodyEntry{
					{At: at, Action: types.ActionCaptured, Actor: "examiner", Hash: digest.SumString(html)},
				},
			},
			{
				ID:         types.ArtifactID(string(id) + "-a2"),
				Type:       types.EvidencePhoto,
				Content:    types.BinaryContent{Data: []byte{0x89, 'P', 'N', 'G'}},
				Filename:   "scene.png",
				MimeType:   "image/png",
				CapturedAt: at,
				Hash:       digest.Sum([]byte{0x89, 'P', 'N', 'G'}),
			},
		},
	}
}

// exerciseStore runs the persistence contract against any CaseStore.
func exerciseStore(t *testing.T, store types.CaseStore) {
	t.Helper()
	ctx := context.Background()

	all, err := store.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Fatalf("expected empty store, got %d cases", len(all))
	}

	later := sampleCase("case-b", epoch.Add(time.Hour))
	earlier := sampleCase("case-a", epoch)
	for _, rec := range []*types.CaseRecord{later, earlier} {
		if err := store.Put(ctx, rec); err != nil {
			t.Fatalf("put %s: %v", rec.ID, err)
		}
	}

	if err := store.Put(ctx, sampleCase("case-a", epoch)); !errors.Is(err, ErrCaseExists) {
		t.Errorf("duplicate put: got %v, want ErrCaseExists", err)
	}

	all, err = store.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(all))
	}
	if all[0].ID != "case-a" || all[1].ID != "case-b" {
		t.Errorf("expected creation order, got %s, %s", all[0].ID, all[1].ID)
	}

	opts := []cmp.Option{
		cmpopts.IgnoreFields(types.EvidenceArtifact{}, "Preview"),
		cmpopts.EquateEmpty(),
	}
	if diff := cmp.Diff(earlier, all[0], opts...); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
	if all[0].Evidence[0].Preview == "" {
		t.Error("expected preview re-derived on load")
	}

	if err := store.Delete(ctx, "case-a"); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "case-a"); !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("second delete: got %v, want ErrCaseNotFound", err)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	all, err = store.GetAll(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 0 {
		t.Errorf("expected empty store after clear, got %d", len(all))
	}
}

func TestCaseStore(t *testing.T) {
	exerciseStore(t, NewCaseStore(t.TempDir()))
}

func TestSQLStore(t *testing.T) {
	store, err := OpenSQL(filepath.Join(t.TempDir(), "nested", "cases.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()
	exerciseStore(t, store)
}

func TestSQLStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cases.db")
	store, err := OpenSQL(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Put(context.Background(), sampleCase("keep", epoch)); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := OpenSQL(path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()
	all, err := reopened.GetAll(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 1 || all[0].ID != "keep" {
		t.Errorf("expected persisted case after reopen, got %+v", all)
	}
}

func TestCaseStore_CorruptFileIsAnError(t *testing.T) {
	dir := t.TempDir()
	store := NewCaseStore(dir)
	if err := os.MkdirAll(filepath.Join(dir, "cases"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "cases", "broken.json"), []byte("{"), 0o644); err != nil {
		t.Fatal(err)
	}

	all, err := store.GetAll(context.Background())
	if err == nil {
		t.Fatal("expected error for corrupt case file")
	}
	if all != nil {
		t.Error("failure must not be reported as an empty result")
	}
}

func TestCaseStore_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	store := NewCaseStore(dir)
	if err := store.Put(context.Background(), sampleCase("c1", epoch)); err != nil {
		t.Fatal(err)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "cases", "*.tmp"))
	if len(matches) != 0 {
		t.Errorf("leftover temp files: %v", matches)
	}
}

func TestFind(t *testing.T) {
	ctx := context.Background()
	store := NewCaseStore(t.TempDir())
	for _, id := range []types.CaseID{"abc123", "abd456", "xyz"} {
		if err := store.Put(ctx, sampleCase(id, epoch)); err != nil {
			t.Fatal(err)
		}
	}

	rec, err := Find(ctx, store, "abc123")
	if err != nil || rec.ID != "abc123" {
		t.Errorf("exact: got %v, %v", rec, err)
	}
	rec, err = Find(ctx, store, "xy")
	if err != nil || rec.ID != "xyz" {
		t.Errorf("prefix: got %v, %v", rec, err)
	}
	if _, err := Find(ctx, store, "ab"); err == nil {
		t.Error("expected ambiguity error")
	}
	if _, err := Find(ctx, store, "nope"); !errors.Is(err, ErrCaseNotFound) {
		t.Errorf("got %v, want ErrCaseNotFound", err)
	}
}
