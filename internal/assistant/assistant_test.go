package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/types"
	"github.com/user/custodian/pkg/llm"
)

// wordTokenizer treats each whitespace-separated word as one token.
type wordTokenizer struct {
	mu    sync.Mutex
	words []string
	index map[string]int
}

func newWordTokenizer() *wordTokenizer {
	return &wordTokenizer{index: make(map[string]int)}
}

func (w *wordTokenizer) Encode(text string, _ []string, _ []string) []int {
	w.mu.Lock()
	defer w.mu.Unlock()
	var out []int
	for _, f := range strings.Fields(text) {
		id, ok := w.index[f]
		if !ok {
			id = len(w.words)
			w.words = append(w.words, f)
			w.index[f] = id
		}
		out = append(out, id)
	}
	return out
}

func (w *wordTokenizer) Decode(tokens []int) string {
	w.mu.Lock()
	defer w.mu.Unlock()
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = w.words[t]
	}
	return strings.Join(parts, " ")
}

// mockProvider returns pre-configured responses and records requests.
type mockProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	requests  [][]llm.Message
}

func (m *mockProvider) Complete(_ context.Context, messages []llm.Message, _ []llm.Tool) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, append([]llm.Message(nil), messages...))
	if m.err != nil {
		return nil, m.err
	}
	idx := len(m.requests) - 1
	if idx < len(m.responses) {
		return m.responses[idx], nil
	}
	return &llm.Response{Content: "fallback"}, nil
}

func testRecord() *types.CaseRecord {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &types.CaseRecord{
		ID:        "case-0001",
		Name:      "warehouse",
		CreatedAt: at,
		Report:    "CUSTODIAN FORENSIC REPORT v1.4.0\nVERDICT: CLEAN",
		Seal:      strings.Repeat("ab", 64),
		Evidence: []types.EvidenceArtifact{{
			ID:       "art-00001",
			Type:     types.EvidenceDocument,
			Filename: "invoice.pdf",
			MimeType: "application/pdf",
			Hash:     strings.Repeat("cd", 64),
			Custody: []types.CustodyEntry{
				{At: at, Action: types.ActionCaptured, Actor: "examiner"},
				{At: at, Action: types.ActionSealed, Actor: "examiner", Notes: "case seal"},
			},
		}},
	}
}

func TestAskUnavailableWithoutProvider(t *testing.T) {
	a := New(nil, nil)
	_, err := a.Ask(context.Background(), testRecord(), nil, "anything?")
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.False(t, a.Available())
}

func TestFromConfigWithoutKeyIsUnavailable(t *testing.T) {
	cfg := &config.Config{}
	a, err := FromConfig(cfg)
	require.NoError(t, err)
	_, err = a.Brief(context.Background(), testRecord())
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAskSimpleAnswer(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{{Content: "The case is clean."}}}
	a := New(provider, newEngine(newWordTokenizer(), 10000, 100))

	answer, err := a.Ask(context.Background(), testRecord(), nil, "Is it clean?")
	require.NoError(t, err)
	assert.Equal(t, "The case is clean.", answer)

	require.Len(t, provider.requests, 1)
	msgs := provider.requests[0]
	require.Len(t, msgs, 2)
	assert.Equal(t, llm.RoleSystem, msgs[0].Role)
	assert.Contains(t, msgs[0].Content, "case-0001")
	assert.Contains(t, msgs[0].Content, "VERDICT: CLEAN")
	assert.Contains(t, msgs[0].Content, "verify_seal")
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "Is it clean?"}, msgs[1])
}

func TestAskRunsVerifySealTool(t *testing.T) {
	rec := testRecord()
	args, _ := json.Marshal(map[string]string{"seal": rec.Seal})
	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "call_1", Type: "function", Function: llm.FunctionCall{Name: "verify_seal", Arguments: args}}}},
		{Content: "The seal matches."},
	}}
	a := New(provider, newEngine(newWordTokenizer(), 10000, 100))

	answer, err := a.Ask(context.Background(), rec, nil, "Check this seal")
	require.NoError(t, err)
	assert.Equal(t, "The seal matches.", answer)

	require.Len(t, provider.requests, 2)
	second := provider.requests[1]
	last := second[len(second)-1]
	assert.Equal(t, llm.RoleTool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.True(t, strings.HasPrefix(last.Content, "VERIFIED"), last.Content)
}

func TestAskUnknownToolReportsError(t *testing.T) {
	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c", Function: llm.FunctionCall{Name: "delete_case", Arguments: json.RawMessage(`{}`)}}}},
		{Content: "cannot"},
	}}
	a := New(provider, newEngine(newWordTokenizer(), 10000, 100))

	_, err := a.Ask(context.Background(), testRecord(), nil, "delete it")
	require.NoError(t, err)
	second := provider.requests[1]
	assert.Contains(t, second[len(second)-1].Content, `unknown tool "delete_case"`)
}

func TestAskMaxRounds(t *testing.T) {
	loop := &llm.Response{ToolCalls: []llm.ToolCall{{ID: "c", Function: llm.FunctionCall{Name: "manifest", Arguments: json.RawMessage(`{}`)}}}}
	provider := &mockProvider{responses: []*llm.Response{loop, loop, loop, loop, loop, loop}}
	a := New(provider, newEngine(newWordTokenizer(), 10000, 100))

	_, err := a.Ask(context.Background(), testRecord(), nil, "loop")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max tool rounds")
	assert.Len(t, provider.requests, defaultMaxRounds)
}

func TestAskProviderError(t *testing.T) {
	provider := &mockProvider{err: errors.New("boom")}
	a := New(provider, newEngine(newWordTokenizer(), 10000, 100))
	_, err := a.Ask(context.Background(), testRecord(), nil, "q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestAskLeavesRecordUntouched(t *testing.T) {
	rec := testRecord()
	before := rec.Evidence[0].Clone()
	provider := &mockProvider{responses: []*llm.Response{
		{ToolCalls: []llm.ToolCall{{ID: "c", Function: llm.FunctionCall{Name: "custody", Arguments: json.RawMessage(`{"artifact_id":"art-0"}`)}}}},
		{Content: "ok"},
	}}
	a := New(provider, newEngine(newWordTokenizer(), 10000, 100))

	_, err := a.Ask(context.Background(), rec, nil, "custody?")
	require.NoError(t, err)
	assert.Equal(t, before, rec.Evidence[0])
	second := provider.requests[1]
	assert.Contains(t, second[len(second)-1].Content, "SEALED by examiner (case seal)")
}

func TestCapReport(t *testing.T) {
	e := newEngine(newWordTokenizer(), 1000, 0)
	assert.Equal(t, "a b c", e.CapReport("a b c", 3))

	capped := e.CapReport("one two three four five", 2)
	assert.Equal(t, "one two\n[report truncated to 2 of 5 tokens]", capped)
}

func TestBuildPromptTrimsOldHistory(t *testing.T) {
	tok := newWordTokenizer()
	rec := testRecord()
	e := newEngine(tok, 0, 0)

	skeleton, err := renderPrompt(rec, rec.Report, []string{"custody", "manifest", "verify_seal"})
	require.NoError(t, err)
	base := len(tok.Encode(skeleton, nil, nil))

	// Room for one history message besides the prompt and question.
	e.maxTokens = base + 1 + 3 + 2

	history := []llm.Message{
		{Role: llm.RoleUser, Content: "oldest message with several words"},
		{Role: llm.RoleAssistant, Content: "newest reply here"},
	}
	msgs, err := e.BuildPrompt(rec, history, "q", []string{"custody", "manifest", "verify_seal"})
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	assert.Equal(t, "newest reply here", msgs[1].Content)
	assert.Equal(t, "q", msgs[2].Content)
}

func TestRegistryIsSorted(t *testing.T) {
	r := caseTools(testRecord())
	assert.Equal(t, []string{"custody", "manifest", "verify_seal"}, r.Names())
	tools := r.AsLLMTools()
	require.Len(t, tools, 3)
	assert.Equal(t, "custody", tools[0].Function.Name)
	assert.Equal(t, "function", tools[0].Type)
}

func TestManifestTool(t *testing.T) {
	out, err := (&manifestTool{rec: testRecord()}).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Contains(t, out, "invoice.pdf | DOCUMENT | application/pdf")

	out, err = (&manifestTool{rec: &types.CaseRecord{}}).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "no evidence", out)
}

func TestCustodyToolUnknownArtifact(t *testing.T) {
	_, err := (&custodyTool{rec: testRecord()}).Execute(context.Background(), json.RawMessage(`{"artifact_id":"zzz"}`))
	assert.Error(t, err)
}
