package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// AGENT EXECUTOR
// ═══════════════════════════════════════════════════════════════════════════════

// memoryFetchLimit is how many records feed each agent's prompt.
const memoryFetchLimit = 5

// Token budgets by response mode. An agent's own MaxTokens wins when set.
var modeTokenBudgets = map[types.ResponseMode]int{
	types.ModeShort:      300,
	types.ModeStructured: 800,
	types.ModeDetailed:   1600,
}

const defaultAgentTemperature = 0.7

// executeAssignment runs one agent: memory fetch, prompt assembly, the
// completion call, and parsing. An error here is isolated by the driver;
// it never aborts the turn.
func (e *Engine) executeAssignment(ctx *turnContext, assignment types.Assignment, agent types.AgentDescriptor, previous []types.ParsedAgentResponse) (types.ParsedAgentResponse, error) {
	memories := e.fetchMemories(ctx, agent.Key)

	systemPrompt := buildAgentSystemPrompt(agent, ctx.phase, assignment.Task, ctx.req.ProjectContext, memories)

	history := ctx.req.History
	if len(history) > e.cfg.ContextMessages {
		history = history[len(history)-e.cfg.ContextMessages:]
	}

	messages := make([]llm.Message, 0, len(history)+2)
	for _, turn := range history {
		messages = append(messages, llm.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: ctx.req.Message})
	if len(previous) > 0 {
		messages = append(messages, llm.Message{Role: "user", Content: buildPreviousResponsesMessage(previous)})
	}

	temperature := agent.Temperature
	if temperature == 0 {
		temperature = defaultAgentTemperature
	}

	e.log.Debug("agent %s prompt: ~%d tokens system, %d messages",
		agent.Key, types.EstimateTokens(systemPrompt), len(messages))

	resp, err := e.complete(ctx.ctx, &llm.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		MaxTokens:    tokenBudget(ctx.mode, agent),
		Temperature:  temperature,
	})
	if err != nil {
		return types.ParsedAgentResponse{}, fmt.Errorf("agent %s: %w", agent.Key, err)
	}

	parsed := ParseResponse(resp.Content, agent.Key, agent.Name)
	parsed.ToolCalls = append(parsed.ToolCalls, nativeToolCalls(resp.ToolCalls)...)
	return parsed, nil
}

// nativeToolCalls converts tool invocations the provider surfaced as
// structured blocks into pending requests, same as inline markers.
func nativeToolCalls(results []llm.ToolCallResult) []types.ToolCallRequest {
	calls := make([]types.ToolCallRequest, 0, len(results))
	for _, r := range results {
		args := map[string]string{}
		if err := json.Unmarshal([]byte(r.Arguments), &args); err != nil {
			args = map[string]string{"arguments": r.Arguments}
		}
		calls = append(calls, types.ToolCallRequest{
			ID:     uuid.New().String(),
			Tool:   r.Name,
			Args:   args,
			Status: types.ToolCallPending,
		})
	}
	return calls
}

// fetchMemories reads the agent's top memories; a store failure degrades to
// an empty prompt section.
func (e *Engine) fetchMemories(ctx *turnContext, agentKey string) []types.MemoryRecord {
	memories, err := e.store.TopMemories(ctx.ctx, agentKey, ctx.req.UserID, ctx.req.SquadID, memoryFetchLimit)
	if err != nil {
		e.log.Warn("memory fetch failed for agent %s: %v", agentKey, err)
		return nil
	}
	return memories
}

// complete is the single gateway to the completion service: it holds a rate
// limiter slot and bounds the call with the configured agent timeout.
func (e *Engine) complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := e.limiter.Acquire(ctx, e.provider.Name()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}
	defer e.limiter.Release(e.provider.Name())

	if e.cfg.AgentTimeoutSeconds > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(e.cfg.AgentTimeoutSeconds)*time.Second)
		defer cancel()
	}

	return e.provider.Chat(ctx, req)
}

// tokenBudget derives the max output length for one agent call.
func tokenBudget(mode types.ResponseMode, agent types.AgentDescriptor) int {
	if agent.MaxTokens > 0 {
		return agent.MaxTokens
	}
	if budget, ok := modeTokenBudgets[mode]; ok {
		return budget
	}
	return modeTokenBudgets[types.ModeStructured]
}
