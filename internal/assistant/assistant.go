// Package assistant is the cloud dialogue collaborator. It reads a sealed
// case through a copy and never writes anything back.
package assistant

import (
	"context"
	"errors"
	"fmt"

	"github.com/user/custodian/internal/config"
	"github.com/user/custodian/internal/types"
	"github.com/user/custodian/pkg/llm"
	"github.com/user/custodian/pkg/llm/openai"
)

// ErrUnavailable is returned when no provider credentials are configured.
var ErrUnavailable = errors.New("assistant UNAVAILABLE: no provider credentials configured")

// BriefingQuestion is asked when a sealed case is briefed automatically.
const BriefingQuestion = "Summarise the sealed findings of this case in five bullet points, citing module names. State which modules were unavailable offline."

const defaultMaxRounds = 5

// Assistant answers questions about one sealed case at a time.
type Assistant struct {
	provider  llm.Provider
	engine    *Engine
	maxRounds int
}

// New creates an Assistant. A nil provider makes every call return
// ErrUnavailable.
func New(provider llm.Provider, engine *Engine) *Assistant {
	return &Assistant{provider: provider, engine: engine, maxRounds: defaultMaxRounds}
}

// FromConfig builds an Assistant from the llm config block. Without an API
// key the assistant is unavailable and no tokenizer is loaded.
func FromConfig(cfg *config.Config) (*Assistant, error) {
	if cfg.LLM.APIKey == "" {
		return New(nil, nil), nil
	}
	engine, err := NewEngine(cfg.LLM.Model, cfg.LLM.MaxContextTokens, cfg.LLM.OutputReserve)
	if err != nil {
		return nil, err
	}
	provider := openai.New(&llm.Config{
		BaseURL:     cfg.LLM.BaseURL,
		APIKey:      cfg.LLM.APIKey,
		Model:       cfg.LLM.Model,
		MaxTokens:   cfg.LLM.MaxTokens,
		Temperature: cfg.LLM.Temperature,
	})
	return New(provider, engine), nil
}

// Available reports whether the assistant can reach a provider.
func (a *Assistant) Available() bool {
	return a != nil && a.provider != nil && a.engine != nil
}

// Ask runs one dialogue turn about rec. history holds prior user/assistant
// messages. Tool calls are answered from a private copy of rec.
func (a *Assistant) Ask(ctx context.Context, rec *types.CaseRecord, history []llm.Message, question string) (string, error) {
	if !a.Available() {
		return "", ErrUnavailable
	}

	view := snapshot(rec)
	registry := caseTools(view)
	messages, err := a.engine.BuildPrompt(view, history, question, registry.Names())
	if err != nil {
		return "", err
	}

	for round := 0; round < a.maxRounds; round++ {
		resp, err := a.provider.Complete(ctx, messages, registry.AsLLMTools())
		if err != nil {
			return "", fmt.Errorf("LLM call: %w", err)
		}
		if len(resp.ToolCalls) == 0 {
			return resp.Content, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, ToolCalls: resp.ToolCalls})
		for _, tc := range resp.ToolCalls {
			var result string
			tool, ok := registry.Get(tc.Function.Name)
			if !ok {
				result = fmt.Sprintf("error: unknown tool %q", tc.Function.Name)
			} else if out, execErr := tool.Execute(ctx, tc.Function.Arguments); execErr != nil {
				result = fmt.Sprintf("error: %v", execErr)
			} else {
				result = out
			}
			messages = append(messages, llm.Message{Role: llm.RoleTool, ToolCallID: tc.ID, Content: result})
		}
	}
	return "", fmt.Errorf("max tool rounds (%d) exceeded", a.maxRounds)
}

// Brief asks BriefingQuestion with no history.
func (a *Assistant) Brief(ctx context.Context, rec *types.CaseRecord) (string, error) {
	return a.Ask(ctx, rec, nil, BriefingQuestion)
}

func snapshot(rec *types.CaseRecord) *types.CaseRecord {
	view := *rec
	view.Evidence = make([]types.EvidenceArtifact, len(rec.Evidence))
	for i, ev := range rec.Evidence {
		view.Evidence[i] = ev.Clone()
	}
	return &view
}
