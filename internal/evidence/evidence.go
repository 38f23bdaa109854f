// Package evidence turns raw intake from the ingestion collaborator into
// content-addressed artifacts with an opened chain of custody.
package evidence

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/custodian/internal/custody"
	"github.com/user/custodian/internal/digest"
	"github.com/user/custodian/internal/types"
)

// DefaultActor is recorded on custody entries when no actor is configured.
const DefaultActor = "examiner"

// Intake is everything the ingestion and sensor collaborators know about one
// artifact at capture time.
type Intake struct {
	Filename   string
	MimeType   string
	Type       types.EvidenceType // inferred from MimeType when empty
	Content    types.Content
	CapturedAt time.Time // defaults to the ingestion clock
	GPS        *types.GeoLocation
	Session    *types.GeoLocation
	Device     types.Device
	Notes      string
}

// New hashes the intake content, opens the artifact's custody chain and
// records the Captured entry. now stamps intake without a capture time; nil
// means time.Now.
func New(in Intake, ledger *custody.Ledger, actor string, now func() time.Time) *types.EvidenceArtifact {
	if actor == "" {
		actor = DefaultActor
	}
	if now == nil {
		now = time.Now
	}

	var raw []byte
	if in.Content != nil {
		raw = in.Content.Bytes()
	}

	evType := in.Type
	if !evType.Valid() {
		evType = InferType(in.MimeType)
	}
	capturedAt := in.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = now()
	}

	a := &types.EvidenceArtifact{
		ID:         types.NewArtifactID(),
		Type:       evType,
		Content:    in.Content,
		Filename:   in.Filename,
		MimeType:   in.MimeType,
		CapturedAt: capturedAt,
		GPS:        in.GPS,
		Session:    in.Session,
		Device:     in.Device,
		Hash:       digest.Sum(raw),
	}

	ledger.Open(a.ID)
	ledger.Append(a.ID, types.ActionCaptured, actor, a.Hash, in.GPS, in.Notes)
	a.Custody = ledger.Entries(a.ID)
	a.Preview = Preview(a)
	return a
}

// IngestAll creates artifacts for every intake concurrently. The result keeps
// the order of intakes.
func IngestAll(ctx context.Context, ledger *custody.Ledger, actor string, now func() time.Time, intakes []Intake) ([]*types.EvidenceArtifact, error) {
	out := make([]*types.EvidenceArtifact, len(intakes))

	g, gctx := errgroup.WithContext(ctx)
	for i, in := range intakes {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = New(in, ledger, actor, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
