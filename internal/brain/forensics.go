package brain

import (
	"fmt"
	"time"

	"github.com/user/custodian/internal/types"
)

// futureTolerance is how far a capture timestamp may run ahead of the
// processing clock before it is flagged.
const futureTolerance = 5000 * time.Millisecond

// DocumentForensics reports size, hash prefix and declared type per artifact
// and flags capture timestamps from the future.
type DocumentForensics struct{}

func (DocumentForensics) Name() string { return "DOCUMENT FORENSICS" }
func (DocumentForensics) Voting() bool { return true }

func (b DocumentForensics) Run(snap Snapshot, sc Session) Result {
	res := Result{Brain: b.Name(), Voting: true}
	evidence := snap.Evidence()
	if len(evidence) == 0 {
		res.Lines = append(res.Lines, NoData)
	}

	for _, a := range evidence {
		size := "N/A"
		if a.Content != nil {
			size = fmt.Sprintf("%d bytes", a.Content.Size())
		}
		line := fmt.Sprintf("- %s: size=%s | hash=%s | mime=%s", displayName(a), size, hashPrefix(a.Hash), displayMIME(a))

		if !sc.Now.IsZero() && a.CapturedAt.Sub(sc.Now) > futureTolerance {
			line += " | FLAG: timestamp ahead of processing clock"
			res.Findings = append(res.Findings, types.BrainFinding{
				Brain:       b.Name(),
				Description: fmt.Sprintf("%s carries a capture time ahead of the processing clock", displayName(a)),
				Confidence:  types.ConfidenceModerate,
				Anchors:     []string{a.Hash},
			})
			res.Anomalies++
		}
		res.Lines = append(res.Lines, line)
	}

	res.Lines = append(res.Lines, "INTEGRITY: PRESERVED (heuristic; no tamper proof beyond contradiction and forensic checks)")
	return res
}

func hashPrefix(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
