package assistant

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/user/custodian/internal/gateway"
	"github.com/user/custodian/internal/types"
)

// BriefHandler returns a gateway handler that asks for a briefing on each
// sealed case and writes it to <dir>/<caseID>.md. The job's copies of the
// report and seal are all the assistant sees.
func BriefHandler(a *Assistant, dir string) gateway.Handler {
	return func(ctx context.Context, job *gateway.Job) error {
		rec := &types.CaseRecord{
			ID:     job.CaseID,
			Name:   job.CaseName,
			Report: job.Report,
			Seal:   job.Seal,
		}
		brief, err := a.Brief(ctx, rec)
		if err != nil {
			var temp interface{ Temporary() bool }
			if errors.Is(err, ErrUnavailable) || (errors.As(err, &temp) && !temp.Temporary()) {
				return gateway.Permanent(err)
			}
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create briefs dir: %w", err)
		}
		path := filepath.Join(dir, string(job.CaseID)+".md")
		content := fmt.Sprintf("# Briefing: case %s\n\nSeal: `%s`\n\n%s\n", job.CaseID, job.Seal, brief)
		return os.WriteFile(path, []byte(content), 0o644)
	}
}
