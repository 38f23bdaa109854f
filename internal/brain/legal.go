package brain

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/user/custodian/internal/types"
)

// jurisdiction is an open bounding box with its governing statute.
type jurisdiction struct {
	name           string
	statute        string
	latMin, latMax float64
	lngMin, lngMax float64
}

func (j jurisdiction) contains(l *types.GeoLocation) bool {
	return l.Latitude > j.latMin && l.Latitude < j.latMax &&
		l.Longitude > j.lngMin && l.Longitude < j.lngMax
}

var jurisdictions = []jurisdiction{
	{
		name:    "UNITED ARAB EMIRATES",
		statute: "Federal Decree-Law No. 34 of 2021 on Combatting Rumours and Cybercrimes",
		latMin:  22,
		latMax:  26,
		lngMin:  51,
		lngMax:  57,
	},
	{
		name:    "SOUTH AFRICA",
		statute: "Electronic Communications and Transactions Act 25 of 2002",
		latMin:  -35,
		latMax:  -22,
		lngMin:  16,
		lngMax:  33,
	},
}

// Unmatched and missing locations are reported with these labels.
const (
	JurisdictionInternational = "INTERNATIONAL/UNKNOWN"
	JurisdictionUndetermined  = "UNDETERMINED"
)

// LegalMapping maps the session location onto a jurisdiction.
type LegalMapping struct{}

func (LegalMapping) Name() string { return "LEGAL MAPPING" }
func (LegalMapping) Voting() bool { return true }

func (b LegalMapping) Run(snap Snapshot, _ Session) Result {
	res := Result{Brain: b.Name(), Voting: true}

	// Scanned independently of the timeline brain; both use ingestion order.
	var located *types.EvidenceArtifact
	for _, a := range snap.Evidence() {
		if a.Session != nil {
			located = &a
			break
		}
	}
	if located == nil {
		res.Lines = []string{fmt.Sprintf("JURISDICTION: %s (no session location)", JurisdictionUndetermined)}
		return res
	}

	name, statute := Jurisdiction(located.Session)
	if statute == "" {
		res.Lines = []string{fmt.Sprintf("JURISDICTION: %s (lat %s)", name, truncateDegrees(located.Session.Latitude))}
		return res
	}

	res.Lines = []string{
		"JURISDICTION: " + name,
		"STATUTE: " + statute,
	}
	res.Findings = []types.BrainFinding{{
		Brain:       b.Name(),
		Description: "session location falls within " + name,
		Confidence:  types.ConfidenceModerate,
		Anchors:     []string{located.Hash},
	}}
	return res
}

// Jurisdiction returns the jurisdiction name and statute for a location. A
// nil location is undetermined; a location outside every box is
// international with no statute.
func Jurisdiction(l *types.GeoLocation) (name, statute string) {
	if l == nil {
		return JurisdictionUndetermined, ""
	}
	for _, j := range jurisdictions {
		if j.contains(l) {
			return j.name, j.statute
		}
	}
	return JurisdictionInternational, ""
}

// truncateDegrees cuts v to two decimal places on its shortest decimal
// form, so 1.15 stays 1.15 and -0.001 becomes 0.00.
func truncateDegrees(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	whole, frac, _ := strings.Cut(s, ".")
	frac = (frac + "00")[:2]
	if whole == "-0" && frac == "00" {
		whole = "0"
	}
	return whole + "." + frac
}
