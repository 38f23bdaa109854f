package brain

import (
	"fmt"

	"github.com/user/custodian/internal/types"
)

// AudioVoice counts time-based media. Synthetic-media detection is never
// attempted locally.
type AudioVoice struct{}

func (AudioVoice) Name() string { return "AUDIO/VOICE" }
func (AudioVoice) Voting() bool { return true }

func (b AudioVoice) Run(snap Snapshot, _ Session) Result {
	count := 0
	for _, a := range snap.Evidence() {
		switch a.Type {
		case types.EvidenceAudio, types.EvidenceVideo:
			count++
		case types.EvidencePhoto, types.EvidenceDocument, types.EvidenceText:
		}
	}
	return Result{
		Brain:  b.Name(),
		Voting: true,
		Lines: []string{
			fmt.Sprintf("AUDIO/VIDEO ARTIFACTS: %d", count),
			"DEEP ANALYSIS: UNAVAILABLE OFFLINE - synthetic-media detection requires external compute and is not attempted locally",
		},
	}
}
