package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/user/custodian/internal/seal"
	"github.com/user/custodian/internal/types"
	"github.com/user/custodian/pkg/llm"
)

// Tool defines the interface for an executable tool.
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds registered tools and provides lookup.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry.
func (r *Registry) Register(t Tool) {
	r.tools[t.Name()] = t
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.tools))
	for name := range r.tools {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// AsLLMTools converts registered tools to the LLM provider format, sorted
// by name.
func (r *Registry) AsLLMTools() []llm.Tool {
	names := r.Names()
	out := make([]llm.Tool, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		out = append(out, llm.Tool{
			Type: "function",
			Function: llm.Function{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// caseTools returns the read-only tools available while discussing rec.
func caseTools(rec *types.CaseRecord) *Registry {
	r := NewRegistry()
	r.Register(&verifySealTool{rec: rec})
	r.Register(&manifestTool{rec: rec})
	r.Register(&custodyTool{rec: rec})
	return r
}

type verifySealTool struct{ rec *types.CaseRecord }

func (t *verifySealTool) Name() string { return "verify_seal" }
func (t *verifySealTool) Description() string {
	return "Check whether a candidate seal exactly matches this case's seal."
}
func (t *verifySealTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"seal":{"type":"string","description":"candidate seal, 128 hex characters"}},"required":["seal"]}`)
}
func (t *verifySealTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var p struct {
		Seal string `json:"seal"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	return seal.Verify(p.Seal, []*types.CaseRecord{t.rec}).Message, nil
}

type manifestTool struct{ rec *types.CaseRecord }

func (t *manifestTool) Name() string { return "manifest" }
func (t *manifestTool) Description() string {
	return "List the case's evidence artifacts with type, declared MIME type and hash."
}
func (t *manifestTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{}}`)
}
func (t *manifestTool) Execute(context.Context, json.RawMessage) (string, error) {
	if len(t.rec.Evidence) == 0 {
		return "no evidence", nil
	}
	var b strings.Builder
	for _, a := range t.rec.Evidence {
		fmt.Fprintf(&b, "%s | %s | %s | %s | %s\n", a.ID, a.Filename, a.Type, a.MimeType, a.Hash)
	}
	return b.String(), nil
}

type custodyTool struct{ rec *types.CaseRecord }

func (t *custodyTool) Name() string { return "custody" }
func (t *custodyTool) Description() string {
	return "Show the chain-of-custody entries for one artifact, by ID or ID prefix."
}
func (t *custodyTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"artifact_id":{"type":"string"}},"required":["artifact_id"]}`)
}
func (t *custodyTool) Execute(_ context.Context, args json.RawMessage) (string, error) {
	var p struct {
		ArtifactID string `json:"artifact_id"`
	}
	if err := json.Unmarshal(args, &p); err != nil {
		return "", fmt.Errorf("parse arguments: %w", err)
	}
	if p.ArtifactID == "" {
		return "", fmt.Errorf("artifact_id is required")
	}
	for _, a := range t.rec.Evidence {
		if !strings.HasPrefix(string(a.ID), p.ArtifactID) {
			continue
		}
		var b strings.Builder
		for _, e := range a.Custody {
			fmt.Fprintf(&b, "%s %s by %s", e.At.UTC().Format("2006-01-02T15:04:05Z"), e.Action, e.Actor)
			if e.Notes != "" {
				fmt.Fprintf(&b, " (%s)", e.Notes)
			}
			b.WriteString("\n")
		}
		return b.String(), nil
	}
	return "", fmt.Errorf("artifact %q not in this case", p.ArtifactID)
}
