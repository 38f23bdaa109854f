package types

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EvidenceType is the closed set of artifact kinds.
type EvidenceType string

const (
	EvidencePhoto    EvidenceType = "PHOTO"
	EvidenceVideo    EvidenceType = "VIDEO"
	EvidenceDocument EvidenceType = "DOCUMENT"
	EvidenceAudio    EvidenceType = "AUDIO"
	EvidenceText     EvidenceType = "TEXT"
)

// EvidenceTypes lists every EvidenceType in declaration order.
var EvidenceTypes = []EvidenceType{EvidencePhoto, EvidenceVideo, EvidenceDocument, EvidenceAudio, EvidenceText}

// Valid reports whether t is one of the declared evidence types.
func (t EvidenceType) Valid() bool {
	switch t {
	case EvidencePhoto, EvidenceVideo, EvidenceDocument, EvidenceAudio, EvidenceText:
		return true
	}
	return false
}

// ParseEvidenceType accepts a case-insensitive evidence type name.
func ParseEvidenceType(s string) (EvidenceType, error) {
	t := EvidenceType(strings.ToUpper(strings.TrimSpace(s)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown evidence type: %q", s)
	}
	return t, nil
}

// Content is either TextContent or BinaryContent. The interface is sealed by
// an unexported method so the two variants are the only implementations.
type Content interface {
	Bytes() []byte
	Size() int
	isContent()
}

// TextContent holds evidence captured as text.
type TextContent struct {
	Text string
}

func (c TextContent) Bytes() []byte { return []byte(c.Text) }
func (c TextContent) Size() int     { return len(c.Text) }
func (TextContent) isContent()      {}

// BinaryContent wraps a byte buffer owned by the ingestion collaborator.
// The buffer must not be modified after the artifact is created.
type BinaryContent struct {
	Data []byte
}

func (c BinaryContent) Bytes() []byte { return c.Data }
func (c BinaryContent) Size() int     { return len(c.Data) }
func (BinaryContent) isContent()      {}

// GeoLocation is a pre-resolved coordinate supplied by a sensor collaborator.
type GeoLocation struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Accuracy  float64 `json:"accuracy"`
}

// Device describes the capturing device.
type Device struct {
	Agent    string `json:"agent,omitempty"`
	Platform string `json:"platform,omitempty"`
	Language string `json:"language,omitempty"`
}

// CustodyAction is the closed set of custody ledger actions.
type CustodyAction string

const (
	ActionCaptured CustodyAction = "CAPTURED"
	ActionAnalyzed CustodyAction = "ANALYZED"
	ActionSealed   CustodyAction = "SEALED"
)

// CustodyEntry is one immutable line of an artifact's chain of custody.
type CustodyEntry struct {
	At       time.Time     `json:"at"`
	Action   CustodyAction `json:"action"`
	Actor    string        `json:"actor"`
	Hash     string        `json:"hash"`
	Location *GeoLocation  `json:"location,omitempty"`
	Notes    string        `json:"notes,omitempty"`
}

// EvidenceArtifact is a content-addressed piece of evidence. Hash is computed
// once from Content at creation and never changes.
type EvidenceArtifact struct {
	ID         ArtifactID     `json:"id"`
	Type       EvidenceType   `json:"type"`
	Content    Content        `json:"-"`
	Filename   string         `json:"filename"`
	MimeType   string         `json:"mime_type"`
	CapturedAt time.Time      `json:"captured_at"`
	GPS        *GeoLocation   `json:"gps,omitempty"`
	Session    *GeoLocation   `json:"session,omitempty"`
	Device     Device         `json:"device"`
	Custody    []CustodyEntry `json:"custody"`
	Hash       string         `json:"hash"`

	// Preview is transient and re-derived after loading.
	Preview string `json:"-"`
}

// Clone returns a copy that shares no mutable slices or pointers with a.
// Content buffers are shared; they are read-only once ingested.
func (a EvidenceArtifact) Clone() EvidenceArtifact {
	out := a
	out.GPS = cloneLocation(a.GPS)
	out.Session = cloneLocation(a.Session)
	if a.Custody != nil {
		out.Custody = make([]CustodyEntry, len(a.Custody))
		for i, e := range a.Custody {
			e.Location = cloneLocation(e.Location)
			out.Custody[i] = e
		}
	}
	return out
}

func cloneLocation(l *GeoLocation) *GeoLocation {
	if l == nil {
		return nil
	}
	c := *l
	return &c
}

// contentJSON is the tagged on-disk form of Content.
type contentJSON struct {
	Kind string `json:"kind"`
	Text string `json:"text,omitempty"`
	Data []byte `json:"data,omitempty"`
}

func encodeContent(c Content) *contentJSON {
	switch v := c.(type) {
	case TextContent:
		return &contentJSON{Kind: "text", Text: v.Text}
	case BinaryContent:
		return &contentJSON{Kind: "binary", Data: v.Data}
	}
	return nil
}

func (c *contentJSON) decode() (Content, error) {
	if c == nil {
		return nil, nil
	}
	switch c.Kind {
	case "text":
		return TextContent{Text: c.Text}, nil
	case "binary":
		return BinaryContent{Data: c.Data}, nil
	}
	return nil, fmt.Errorf("unknown content kind: %q", c.Kind)
}

func (a EvidenceArtifact) MarshalJSON() ([]byte, error) {
	type alias EvidenceArtifact
	return json.Marshal(struct {
		alias
		Content *contentJSON `json:"content"`
	}{alias: alias(a), Content: encodeContent(a.Content)})
}

func (a *EvidenceArtifact) UnmarshalJSON(data []byte) error {
	type alias EvidenceArtifact
	aux := struct {
		*alias
		Content *contentJSON `json:"content"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	content, err := aux.Content.decode()
	if err != nil {
		return err
	}
	a.Content = content
	return nil
}

// Confidence is an ordinal label. The underlying integer only orders the
// labels; it is never reported.
type Confidence int

const (
	ConfidenceInsufficient Confidence = iota
	ConfidenceLow
	ConfidenceModerate
	ConfidenceHigh
	ConfidenceVeryHigh
)

func (c Confidence) String() string {
	switch c {
	case ConfidenceVeryHigh:
		return "VERY HIGH"
	case ConfidenceHigh:
		return "HIGH"
	case ConfidenceModerate:
		return "MODERATE"
	case ConfidenceLow:
		return "LOW"
	default:
		return "INSUFFICIENT"
	}
}

// Outranks reports whether c is strictly stronger than other.
func (c Confidence) Outranks(other Confidence) bool {
	return c > other
}

func (c Confidence) MarshalText() ([]byte, error) {
	return []byte(c.String()), nil
}

func (c *Confidence) UnmarshalText(text []byte) error {
	switch string(text) {
	case "VERY HIGH":
		*c = ConfidenceVeryHigh
	case "HIGH":
		*c = ConfidenceHigh
	case "MODERATE":
		*c = ConfidenceModerate
	case "LOW":
		*c = ConfidenceLow
	case "INSUFFICIENT":
		*c = ConfidenceInsufficient
	default:
		return fmt.Errorf("unknown confidence: %q", text)
	}
	return nil
}

// BrainFinding is one observation produced by an analysis module. Every
// anchor must be the hash of an artifact in the analysed manifest.
type BrainFinding struct {
	Brain       string     `json:"brain"`
	Description string     `json:"description"`
	Confidence  Confidence `json:"confidence"`
	Anchors     []string   `json:"anchors"`
}

// CaseRecord is the sealed, immutable result of an investigation.
type CaseRecord struct {
	ID        CaseID             `json:"id"`
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"created_at"`
	Report    string             `json:"report"`
	Evidence  []EvidenceArtifact `json:"evidence"`
	Seal      string             `json:"seal"`
}

// Hashes returns the evidence hashes in manifest order.
func (r *CaseRecord) Hashes() []string {
	out := make([]string, len(r.Evidence))
	for i, a := range r.Evidence {
		out[i] = a.Hash
	}
	return out
}
