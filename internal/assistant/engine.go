package assistant

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"

	"github.com/user/custodian/internal/types"
	"github.com/user/custodian/pkg/llm"
)

// tokenizer is the subset of *tiktoken.Tiktoken the engine needs.
type tokenizer interface {
	Encode(text string, allowedSpecial []string, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// reportShare is the fraction of the input budget the sealed report may use.
const reportShare = 0.6

// Engine assembles token-budgeted prompts around a sealed report.
type Engine struct {
	tokenizer tokenizer
	maxTokens int
	reserve   int
}

// NewEngine creates a context engine with the specified token budget.
// model selects the tokenizer (e.g. "gpt-4o-mini"); maxTokens is the model's
// context window; reserve is kept free for the response.
func NewEngine(model string, maxTokens, reserve int) (*Engine, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("get tokenizer: %w", err)
		}
	}
	return newEngine(enc, maxTokens, reserve), nil
}

func newEngine(tok tokenizer, maxTokens, reserve int) *Engine {
	return &Engine{tokenizer: tok, maxTokens: maxTokens, reserve: reserve}
}

func (e *Engine) countTokens(text string) int {
	return len(e.tokenizer.Encode(text, nil, nil))
}

func (e *Engine) inputBudget() int {
	if b := e.maxTokens - e.reserve; b > 0 {
		return b
	}
	return 0
}

// CapReport truncates report to at most budget tokens, marking the cut.
func (e *Engine) CapReport(report string, budget int) string {
	tokens := e.tokenizer.Encode(report, nil, nil)
	if len(tokens) <= budget {
		return report
	}
	if budget < 0 {
		budget = 0
	}
	return e.tokenizer.Decode(tokens[:budget]) + fmt.Sprintf("\n[report truncated to %d of %d tokens]", budget, len(tokens))
}

// BuildPrompt assembles the system prompt (with the capped report), as much
// recent history as fits, and the question.
func (e *Engine) BuildPrompt(rec *types.CaseRecord, history []llm.Message, question string, toolNames []string) ([]llm.Message, error) {
	budget := e.inputBudget()
	skeleton, err := renderPrompt(rec, "", toolNames)
	if err != nil {
		return nil, err
	}
	remaining := budget - e.countTokens(skeleton) - e.countTokens(question)

	report := e.CapReport(rec.Report, int(float64(remaining)*reportShare))
	sysPrompt, err := renderPrompt(rec, report, toolNames)
	if err != nil {
		return nil, err
	}
	remaining = budget - e.countTokens(sysPrompt) - e.countTokens(question)

	// Keep the newest history that fits.
	start := len(history)
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		n := e.countTokens(history[i].Content)
		if used+n > remaining {
			break
		}
		used += n
		start = i
	}

	messages := make([]llm.Message, 0, 2+len(history)-start)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: sysPrompt})
	messages = append(messages, history[start:]...)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: question})
	return messages, nil
}
