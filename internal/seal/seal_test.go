package seal

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/custodian/internal/digest"
	"github.com/user/custodian/internal/report"
	"github.com/user/custodian/internal/types"
)

func hashes(parts ...string) []string {
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = digest.SumString(p)
	}
	return out
}

func TestCompute_Formula(t *testing.T) {
	hs := hashes("a", "b")
	s := Compute(hs, "report")

	assert.Equal(t, digest.SumString(hs[0]+hs[1]), s.EvidenceDigest)
	assert.Equal(t, digest.SumString("report"), s.ReportDigest)
	assert.Equal(t, digest.SumString(s.EvidenceDigest+s.ReportDigest), s.Value)
}

func TestCompute_Reproducible(t *testing.T) {
	assert.Equal(t, Compute(hashes("a", "b"), "r"), Compute(hashes("a", "b"), "r"))
}

func TestCompute_Sensitive(t *testing.T) {
	base := Compute(hashes("a", "b"), "r").Value

	assert.NotEqual(t, base, Compute(hashes("a", "c"), "r").Value, "evidence hash change")
	assert.NotEqual(t, base, Compute(hashes("b", "a"), "r").Value, "manifest order change")
	assert.NotEqual(t, base, Compute(hashes("a", "b"), "r2").Value, "report change")
}

func TestCompute_Empty(t *testing.T) {
	s := Compute(nil, "")
	assert.Equal(t, digest.Sum(nil), s.EvidenceDigest)
	assert.True(t, digest.Valid(s.Value))
}

func TestVerify_ExactMatchOnly(t *testing.T) {
	recA := &types.CaseRecord{ID: "a", Name: "alpha", Seal: Compute(hashes("x"), "ra").Value}
	recB := &types.CaseRecord{ID: "b", Name: "bravo", Seal: Compute(hashes("y"), "rb").Value}
	cases := []*types.CaseRecord{recA, nil, recB}

	got := Verify(recB.Seal, cases)
	require.True(t, got.Matched)
	assert.Same(t, recB, got.Case)
	assert.Contains(t, got.Message, "VERIFIED")

	for name, candidate := range map[string]string{
		"prefix":     recA.Seal[:64],
		"uppercase":  strings.ToUpper(recA.Seal),
		"whitespace": recA.Seal + " ",
		"empty":      "",
		"unknown":    digest.SumString("nope"),
	} {
		t.Run(name, func(t *testing.T) {
			got := Verify(candidate, cases)
			assert.False(t, got.Matched)
			assert.Nil(t, got.Case)
			assert.Equal(t, MismatchWarning, got.Message)
		})
	}
}

func TestAudit(t *testing.T) {
	body := "CUSTODIAN FORENSIC REPORT\n"
	rep := body + report.HashPrefix + digest.SumString(body)
	rec := &types.CaseRecord{
		ID:       "c1",
		Report:   rep,
		Evidence: []types.EvidenceArtifact{{Hash: digest.SumString("e")}},
	}
	rec.Seal = ForCase(rec).Value
	require.NoError(t, Audit(rec))

	t.Run("seal", func(t *testing.T) {
		bad := *rec
		bad.Seal = digest.SumString("forged")
		assert.True(t, errors.Is(Audit(&bad), ErrTampered))
	})
	t.Run("evidence", func(t *testing.T) {
		bad := *rec
		bad.Evidence = []types.EvidenceArtifact{{Hash: digest.SumString("swapped")}}
		assert.ErrorIs(t, Audit(&bad), ErrTampered)
	})
	t.Run("report body", func(t *testing.T) {
		bad := *rec
		bad.Report = strings.Replace(rep, "FORENSIC", "FORGED", 1)
		err := Audit(&bad)
		assert.ErrorIs(t, err, ErrTampered)
		assert.ErrorIs(t, err, report.ErrSelfHashMismatch)
	})
}
