package orchestrator

import (
	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SYNTHESIS GENERATOR
// ═══════════════════════════════════════════════════════════════════════════════

const (
	synthesisTokenBudget = 300
	synthesisTemperature = 0.4
)

// synthesize produces the consensus/tension/next-step summary. It is
// best-effort: any failure returns an empty string and the turn proceeds.
// The driver only calls it when the plan activated the conductor and more
// than one response exists.
func (e *Engine) synthesize(ctx *turnContext, goals []string, responses []types.ParsedAgentResponse) string {
	prompt := buildSynthesisPrompt(goals, responses)

	resp, err := e.complete(ctx.ctx, &llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   synthesisTokenBudget,
		Temperature: synthesisTemperature,
	})
	if err != nil {
		e.log.Warn("synthesis call failed: %v", err)
		return ""
	}

	return resp.Content
}
