package assistant

import (
	"fmt"
	"strings"
	"text/template"

	"github.com/user/custodian/internal/types"
)

// DefaultPrompt is the system prompt template. Fields: .CaseID, .CaseName,
// .Seal, .Items, .Tools, .Report.
const DefaultPrompt = `You are the case assistant for an offline forensic evidence custodian.

## Case

- Case: {{.CaseID}}{{if .CaseName}} ({{.CaseName}}){{end}}
- Seal (SHA-512): {{.Seal}}
- Evidence items: {{.Items}}
{{- if .Tools}}
- Available tools: {{.Tools}}
{{- end}}

## Rules

- The report below is sealed. Quote it; never rewrite, correct or extend it as if it were the record.
- Offline modules marked UNAVAILABLE were not run. Say so rather than guessing their results.
- Findings carry ordinal confidence (VERY HIGH, HIGH, MODERATE, LOW, INSUFFICIENT). Never turn them into percentages.
- To check a seal a user gives you, call verify_seal. Only an exact match counts.

## Sealed report

{{.Report}}
`

var promptTmpl = template.Must(template.New("prompt").Parse(DefaultPrompt))

type promptData struct {
	CaseID   types.CaseID
	CaseName string
	Seal     string
	Items    int
	Tools    string
	Report   string
}

func renderPrompt(rec *types.CaseRecord, report string, toolNames []string) (string, error) {
	var b strings.Builder
	err := promptTmpl.Execute(&b, promptData{
		CaseID:   rec.ID,
		CaseName: rec.Name,
		Seal:     rec.Seal,
		Items:    len(rec.Evidence),
		Tools:    strings.Join(toolNames, ", "),
		Report:   report,
	})
	if err != nil {
		return "", fmt.Errorf("render prompt: %w", err)
	}
	return b.String(), nil
}
