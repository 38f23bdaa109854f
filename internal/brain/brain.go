// Package brain holds the nine offline heuristic analysis modules and the
// pipeline that fans them out over an evidence snapshot.
//
// Every brain is a pure function of its Snapshot and Session. Brains never
// perform I/O, never mutate evidence and never fail: each edge case (empty
// evidence, missing filename or MIME type, missing location) has a defined
// fallback line.
package brain

import (
	"slices"
	"time"

	"github.com/user/custodian/internal/types"
)

// NoData is the placeholder line for modules that have nothing to inspect.
const NoData = "No data."

// Brain is one independent analysis module.
type Brain interface {
	Name() string
	// Voting reports whether the brain's output may influence the overall
	// assessment.
	Voting() bool
	Run(snap Snapshot, sc Session) Result
}

// Session is the read-only processing context shared by all brains.
type Session struct {
	// Now is the processing clock used for future-timestamp checks.
	Now time.Time
	// Location is the display zone for timestamps. Nil means UTC.
	Location *time.Location
}

func (s Session) zone() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

// Result is the output of one brain.
type Result struct {
	Index     int
	Brain     string
	Voting    bool
	Lines     []string
	Findings  []types.BrainFinding
	Anomalies int
}

// Snapshot is an immutable view of the evidence list in ingestion order.
type Snapshot struct {
	evidence []types.EvidenceArtifact
	hashes   map[string]struct{}
}

// NewSnapshot copies artifacts into a snapshot.
func NewSnapshot(artifacts []*types.EvidenceArtifact) Snapshot {
	evidence := make([]types.EvidenceArtifact, 0, len(artifacts))
	for _, a := range artifacts {
		if a == nil {
			continue
		}
		evidence = append(evidence, a.Clone())
	}
	return snapshotOf(evidence)
}

// SnapshotOf copies an evidence list, as stored on a CaseRecord, into a
// snapshot.
func SnapshotOf(evidence []types.EvidenceArtifact) Snapshot {
	out := make([]types.EvidenceArtifact, len(evidence))
	for i, a := range evidence {
		out[i] = a.Clone()
	}
	return snapshotOf(out)
}

func snapshotOf(evidence []types.EvidenceArtifact) Snapshot {
	hashes := make(map[string]struct{}, len(evidence))
	for _, a := range evidence {
		hashes[a.Hash] = struct{}{}
	}
	return Snapshot{evidence: evidence, hashes: hashes}
}

// Len returns the number of artifacts.
func (s Snapshot) Len() int { return len(s.evidence) }

// Evidence returns the artifacts in ingestion order. The slice is a copy.
func (s Snapshot) Evidence() []types.EvidenceArtifact {
	return slices.Clone(s.evidence)
}

// Hashes returns the artifact hashes in ingestion order.
func (s Snapshot) Hashes() []string {
	out := make([]string, len(s.evidence))
	for i, a := range s.evidence {
		out[i] = a.Hash
	}
	return out
}

// Resolves reports whether hash belongs to an artifact in the snapshot.
func (s Snapshot) Resolves(hash string) bool {
	_, ok := s.hashes[hash]
	return ok
}

// firstSessionLocated scans in ingestion order for the first artifact that
// carries a session location.
func (s Snapshot) firstSessionLocated() (types.EvidenceArtifact, bool) {
	for _, a := range s.evidence {
		if a.Session != nil {
			return a, true
		}
	}
	return types.EvidenceArtifact{}, false
}

// Default returns the nine brains in report order.
func Default() []Brain {
	return []Brain{
		Contradiction{},
		DocumentForensics{},
		CommsIntegrity{},
		Linguistics{},
		TimelineGeo{},
		Financial{},
		LegalMapping{},
		AudioVoice{},
		Advisory{},
	}
}

func displayName(a types.EvidenceArtifact) string {
	if a.Filename == "" {
		return "(unnamed)"
	}
	return a.Filename
}

func displayMIME(a types.EvidenceArtifact) string {
	if a.MimeType == "" {
		return "(undeclared)"
	}
	return a.MimeType
}
