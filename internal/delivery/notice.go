package delivery

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/user/custodian/internal/gateway"
	"github.com/user/custodian/internal/logging"
	"github.com/user/custodian/internal/types"
)

const confidencePrefix = "OVERALL CONFIDENCE: "

// Notice announces that a case has been sealed, or, when Alert is set,
// that a stored case failed an integrity audit.
type Notice struct {
	CaseID     types.CaseID
	CaseName   string
	Seal       string
	Confidence string
	Alert      string
}

// NoticeFromJob builds a notice from the copies a gateway job carries.
func NoticeFromJob(job *gateway.Job) Notice {
	return Notice{
		CaseID:     job.CaseID,
		CaseName:   job.CaseName,
		Seal:       job.Seal,
		Confidence: confidence(job.Report),
	}
}

// Text renders the notice as plain text.
func (n Notice) Text() string {
	if n.Alert != "" {
		return fmt.Sprintf("ALERT: case %s: %s", n.CaseID, n.Alert)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Case sealed: %s", n.CaseID)
	if n.CaseName != "" {
		fmt.Fprintf(&b, " (%s)", n.CaseName)
	}
	b.WriteString("\n")
	if n.Confidence != "" {
		fmt.Fprintf(&b, "Overall confidence: %s\n", n.Confidence)
	}
	fmt.Fprintf(&b, "Seal: %s", n.Seal)
	return b.String()
}

func confidence(report string) string {
	for _, line := range strings.Split(report, "\n") {
		if v, ok := strings.CutPrefix(line, confidencePrefix); ok {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// JobHandler returns a gateway handler that delivers the job's notice to
// every target. All targets are attempted and failures are joined. Targets
// delivered on an earlier attempt are skipped on retry.
func JobHandler(reg *Registry, targets []string) gateway.Handler {
	return func(ctx context.Context, job *gateway.Job) error {
		n := NoticeFromJob(job)
		var errs []error
		for _, target := range targets {
			if job.Done(target) {
				continue
			}
			if err := reg.Deliver(ctx, target, n); err != nil {
				errs = append(errs, fmt.Errorf("deliver to %s: %w", target, err))
				continue
			}
			job.MarkDone(target)
		}
		return errors.Join(errs...)
	}
}

// FileHandler writes each notice to <dir>/<caseID>.txt, or to
// <dir>/<caseID>-alert.txt for alerts. Targets look like "file:" and
// ignore anything after the prefix.
func FileHandler(dir string) Handler {
	return func(_ context.Context, _ string, n Notice) error {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create outbox: %w", err)
		}
		name := string(n.CaseID)
		if n.Alert != "" {
			name += "-alert"
		}
		path := filepath.Join(dir, name+".txt")
		return os.WriteFile(path, []byte(n.Text()+"\n"), 0o644)
	}
}

// LogHandler logs each notice at info level.
func LogHandler() Handler {
	log := logging.New("delivery")
	return func(_ context.Context, target string, n Notice) error {
		if n.Alert != "" {
			log.Warn("case alert", "target", target, "case", n.CaseID, "alert", n.Alert)
			return nil
		}
		log.Info("case sealed", "target", target, "case", n.CaseID, "seal", n.Seal, "confidence", n.Confidence)
		return nil
	}
}
