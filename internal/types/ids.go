package types

import (
	"github.com/google/uuid"
)

type ArtifactID string
type CaseID string
type JobID string

func NewArtifactID() ArtifactID {
	return ArtifactID(uuid.New().String())
}

func NewCaseID() CaseID {
	return CaseID(uuid.New().String())
}

func NewJobID() JobID {
	return JobID(uuid.New().String())
}

// Short returns the first eight characters of the ID, used in manifests and
// listings.
func (id ArtifactID) Short() string {
	return shorten(string(id))
}

// Short returns the first eight characters of the ID.
func (id CaseID) Short() string {
	return shorten(string(id))
}

func shorten(s string) string {
	if len(s) > 8 {
		return s[:8]
	}
	return s
}
