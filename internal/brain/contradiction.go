package brain

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/user/custodian/internal/types"
)

// expectedMIME maps a lowercase file extension to the MIME prefix a truthful
// declaration must start with.
var expectedMIME = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"txt":  "text/plain",
	"mp4":  "video/mp4",
	"mp3":  "audio/mpeg",
	"wav":  "audio/wav",
	"json": "application/json",
}

// Contradiction flags artifacts whose extension and declared MIME type
// disagree. The extension is case-folded; the MIME type is compared exactly
// as declared.
type Contradiction struct{}

func (Contradiction) Name() string { return "CONTRADICTION" }
func (Contradiction) Voting() bool { return true }

func (b Contradiction) Run(snap Snapshot, _ Session) Result {
	res := Result{Brain: b.Name(), Voting: true}
	evidence := snap.Evidence()
	if len(evidence) == 0 {
		res.Lines = append(res.Lines, NoData)
	}

	for _, a := range evidence {
		ext := extension(a.Filename)
		want, known := expectedMIME[ext]
		if !known || strings.HasPrefix(a.MimeType, want) {
			continue
		}
		desc := fmt.Sprintf("extension/MIME mismatch - %s (.%s) declared as %s", displayName(a), ext, displayMIME(a))
		res.Lines = append(res.Lines, "CRITICAL: "+desc)
		res.Findings = append(res.Findings, types.BrainFinding{
			Brain:       b.Name(),
			Description: desc,
			Confidence:  types.ConfidenceVeryHigh,
			Anchors:     []string{a.Hash},
		})
		res.Anomalies++
	}

	if res.Anomalies == 0 {
		res.Lines = append(res.Lines, fmt.Sprintf("VERDICT: CLEAN (0 contradictions across %d artifacts)", len(evidence)))
	} else {
		res.Lines = append(res.Lines, fmt.Sprintf("VERDICT: SUSPICIOUS (%d contradictions across %d artifacts)", res.Anomalies, len(evidence)))
	}
	return res
}

func extension(filename string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")
}
