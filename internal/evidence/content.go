package evidence

import (
	"fmt"
	"io"
	"mime"
	"path/filepath"
	"strings"

	"github.com/user/custodian/internal/types"
)

// ReadContent drains r into Content. Textual MIME types become TextContent;
// everything else is kept as an opaque binary buffer.
func ReadContent(r io.Reader, mimeType string) (types.Content, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read content: %w", err)
	}
	if IsTextMIME(mimeType) {
		return types.TextContent{Text: string(data)}, nil
	}
	return types.BinaryContent{Data: data}, nil
}

// IsTextMIME reports whether content of this MIME type is stored as text.
func IsTextMIME(mimeType string) bool {
	base := baseMIME(mimeType)
	switch {
	case strings.HasPrefix(base, "text/"):
		return true
	case base == "application/json", base == "application/xml":
		return true
	}
	return false
}

// InferType maps a declared MIME type onto an evidence type.
func InferType(mimeType string) types.EvidenceType {
	base := baseMIME(mimeType)
	switch {
	case strings.HasPrefix(base, "image/"):
		return types.EvidencePhoto
	case strings.HasPrefix(base, "video/"):
		return types.EvidenceVideo
	case strings.HasPrefix(base, "audio/"):
		return types.EvidenceAudio
	case base == "text/plain":
		return types.EvidenceText
	default:
		return types.EvidenceDocument
	}
}

// DetectMIME guesses a MIME type from a filename extension, used when the
// ingestion collaborator does not declare one.
func DetectMIME(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" {
		return "application/octet-stream"
	}
	if t := mime.TypeByExtension(ext); t != "" {
		return t
	}
	return "application/octet-stream"
}

func baseMIME(mimeType string) string {
	base, _, _ := strings.Cut(mimeType, ";")
	return strings.ToLower(strings.TrimSpace(base))
}
