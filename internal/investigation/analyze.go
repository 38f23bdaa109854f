// Package investigation drives one case from intake to a sealed, persisted
// CaseRecord.
package investigation

import (
	"context"
	"fmt"

	"github.com/user/custodian/internal/brain"
	"github.com/user/custodian/internal/report"
	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/types"
)

// Outcome is everything derived from one evidence snapshot.
type Outcome struct {
	Results    []brain.Result
	Assessment brain.Assessment
	Report     string
	Seal       seal.Seal
}

// Analyze runs the pipeline over snap, composes the report and seals it. It
// performs no I/O; the same snapshot, case ID and session always yield the
// same report and seal.
func Analyze(ctx context.Context, p *brain.Pipeline, caseID types.CaseID, snap brain.Snapshot, sc brain.Session) (Outcome, error) {
	if p == nil {
		p = brain.NewPipeline()
	}
	results, err := p.Run(ctx, snap, sc)
	if err != nil {
		return Outcome{}, fmt.Errorf("run pipeline: %w", err)
	}
	assessment := brain.Assess(snap, results)
	text := report.Compose(report.Header{CaseID: caseID}, snap, results, assessment)

	return Outcome{
		Results:    results,
		Assessment: assessment,
		Report:     text,
		Seal:       seal.Compute(snap.Hashes(), text),
	}, nil
}
