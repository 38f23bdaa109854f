package brain

import "github.com/user/custodian/internal/types"

// Verdict labels for the dishonesty summary.
const (
	VerdictClean      = "CLEAN"
	VerdictSuspicious = "SUSPICIOUS"
)

// Assessment is the overall judgement derived from voting brains only.
type Assessment struct {
	Confidence     types.Confidence
	Contradictions int
	Anomalies      int
	Verdict        string
}

// Assess folds voting results into an Assessment. Contradictions are the
// anomalies reported by the Contradiction brain; Anomalies counts the rest.
func Assess(snap Snapshot, results []Result) Assessment {
	var a Assessment
	for _, r := range results {
		if !r.Voting {
			continue
		}
		if r.Brain == (Contradiction{}).Name() {
			a.Contradictions += r.Anomalies
		} else {
			a.Anomalies += r.Anomalies
		}
	}

	located := 0
	for _, e := range snap.Evidence() {
		if e.Session != nil {
			located++
		}
	}
	switch {
	case snap.Len() == 0:
		a.Confidence = types.ConfidenceInsufficient
	case a.Contradictions > 0:
		a.Confidence = types.ConfidenceLow
	case a.Anomalies > 0:
		a.Confidence = types.ConfidenceModerate
	case located > 1:
		a.Confidence = types.ConfidenceVeryHigh
	default:
		a.Confidence = types.ConfidenceHigh
	}

	a.Verdict = VerdictClean
	if a.Contradictions > 0 {
		a.Verdict = VerdictSuspicious
	}
	return a
}
