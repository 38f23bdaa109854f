package brain

import (
	"fmt"
	"slices"

	"github.com/user/custodian/internal/types"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// TimelineGeo reports the capture span and the session location.
type TimelineGeo struct{}

func (TimelineGeo) Name() string { return "TIMELINE & GEO" }
func (TimelineGeo) Voting() bool { return true }

func (b TimelineGeo) Run(snap Snapshot, sc Session) Result {
	res := Result{Brain: b.Name(), Voting: true}

	ordered := snap.Evidence()
	slices.SortStableFunc(ordered, func(x, y types.EvidenceArtifact) int {
		return x.CapturedAt.Compare(y.CapturedAt)
	})

	if len(ordered) == 0 {
		res.Lines = append(res.Lines, "SPAN: "+NoData)
	} else {
		first, last := ordered[0], ordered[len(ordered)-1]
		res.Lines = append(res.Lines, fmt.Sprintf("SPAN: %s -> %s",
			first.CapturedAt.In(sc.zone()).Format(timeLayout),
			last.CapturedAt.In(sc.zone()).Format(timeLayout),
		))
		res.Findings = append(res.Findings, types.BrainFinding{
			Brain:       b.Name(),
			Description: fmt.Sprintf("capture span covers %d artifacts", len(ordered)),
			Confidence:  types.ConfidenceHigh,
			Anchors:     []string{first.Hash, last.Hash},
		})
	}

	// The session location follows ingestion order, not timestamp order.
	located, ok := snap.firstSessionLocated()
	if !ok {
		res.Lines = append(res.Lines, "SESSION LOCATION: UNKNOWN")
		return res
	}
	loc := located.Session
	res.Lines = append(res.Lines, fmt.Sprintf("SESSION LOCATION: %.4f, %.4f (accuracy %.0fm)", loc.Latitude, loc.Longitude, loc.Accuracy))
	return res
}
