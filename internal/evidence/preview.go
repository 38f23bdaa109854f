package evidence

import (
	"strings"
	"unicode/utf8"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"

	"github.com/user/custodian/internal/types"
)

const previewRunes = 280

// Preview derives a short human-readable excerpt. HTML documents are
// converted to markdown first. Binary content has no preview.
func Preview(a *types.EvidenceArtifact) string {
	text, ok := a.Content.(types.TextContent)
	if !ok {
		return ""
	}

	body := text.Text
	if isHTML(a) {
		if md, err := htmltomarkdown.ConvertString(body); err == nil {
			body = md
		}
	}
	return excerpt(strings.TrimSpace(body), previewRunes)
}

// AttachPreviews re-derives the transient previews of a loaded record.
func AttachPreviews(rec *types.CaseRecord) {
	for i := range rec.Evidence {
		rec.Evidence[i].Preview = Preview(&rec.Evidence[i])
	}
}

func isHTML(a *types.EvidenceArtifact) bool {
	if baseMIME(a.MimeType) == "text/html" {
		return true
	}
	name := strings.ToLower(a.Filename)
	return strings.HasSuffix(name, ".html") || strings.HasSuffix(name, ".htm")
}

func excerpt(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max {
			break
		}
		b.WriteRune(r)
		n++
	}
	b.WriteString("…")
	return b.String()
}
