// Package seal binds a case's evidence hashes and report text into a single
// shareable token and checks candidate tokens against stored cases.
package seal

import (
	"errors"
	"fmt"

	"github.com/user/custodian/internal/digest"
	"github.com/user/custodian/internal/report"
	"github.com/user/custodian/internal/types"
)

// ErrTampered is returned by Audit when a stored record no longer matches
// its own seal or self-hash.
var ErrTampered = errors.New("case record tampered")

// MismatchWarning is surfaced whenever a candidate matches no stored case.
const MismatchWarning = "WARNING: seal does not match any stored case - evidence may have been tampered with, or the case is unknown to this device."

// Seal is the case seal together with the two digests it is built from.
type Seal struct {
	EvidenceDigest string
	ReportDigest   string
	Value          string
}

// Compute seals hashes, in manifest order, together with the report text.
func Compute(hashes []string, reportText string) Seal {
	ev := digest.Concat(hashes...)
	rd := digest.SumString(reportText)
	return Seal{
		EvidenceDigest: ev,
		ReportDigest:   rd,
		Value:          digest.Concat(ev, rd),
	}
}

// ForCase recomputes the seal of a stored record.
func ForCase(rec *types.CaseRecord) Seal {
	return Compute(rec.Hashes(), rec.Report)
}

// Verification is the outcome of checking a candidate seal.
type Verification struct {
	Matched bool
	Case    *types.CaseRecord
	Message string
}

// Verify looks for a stored case whose seal equals candidate exactly. A
// non-match is a result, not an error, and always carries MismatchWarning.
func Verify(candidate string, cases []*types.CaseRecord) Verification {
	if candidate != "" {
		for _, rec := range cases {
			if rec != nil && rec.Seal == candidate {
				return Verification{
					Matched: true,
					Case:    rec,
					Message: fmt.Sprintf("VERIFIED: seal matches case %s (%s)", rec.ID, rec.Name),
				}
			}
		}
	}
	return Verification{Message: MismatchWarning}
}

// Audit recomputes rec's seal and report self-hash.
func Audit(rec *types.CaseRecord) error {
	if err := report.VerifySelfHash(rec.Report); err != nil {
		return fmt.Errorf("%w: case %s: %w", ErrTampered, rec.ID, err)
	}
	if got := ForCase(rec).Value; got != rec.Seal {
		return fmt.Errorf("%w: case %s: stored seal differs from recomputed seal", ErrTampered, rec.ID)
	}
	return nil
}
