// Package orchestrator implements the multi-agent deliberation engine: it
// plans which agents speak, executes them sequentially against the
// completion service, parses their replies, persists memory and audit
// records, and optionally synthesizes a consensus summary.
package orchestrator

import (
	"context"
	"fmt"

	"github.com/looplinehq/quorum/internal/config"
	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/internal/logging"
	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// ORCHESTRATION DRIVER
// ═══════════════════════════════════════════════════════════════════════════════

// Store is the persistence surface the engine consumes. *data.Store
// satisfies it; tests may substitute an in-memory database or a failing
// stub.
type Store interface {
	TopMemories(ctx context.Context, agentKey, userID, squadID string, limit int) ([]types.MemoryRecord, error)
	InsertMemories(ctx context.Context, records []types.MemoryRecord) error
	InsertPendingActions(ctx context.Context, actions []types.PendingAction) error
	InsertSession(ctx context.Context, session *types.OrchestrationSession) error
	RecentConversation(ctx context.Context, userID, squadID string, limit int) ([]types.ConversationTurn, error)
}

// EventSink receives turn progress events. Implementations must not block;
// the engine calls them inline on the turn's goroutine.
type EventSink interface {
	PlanBuilt(plan *types.OrchestrationPlan)
	AgentResponded(response types.ParsedAgentResponse)
	SynthesisReady(summary string)
}

// noopSink is installed when no sink is configured.
type noopSink struct{}

func (noopSink) PlanBuilt(*types.OrchestrationPlan)           {}
func (noopSink) AgentResponded(types.ParsedAgentResponse)     {}
func (noopSink) SynthesisReady(string)                        {}

// TurnRequest is the inbound contract for one deliberation turn. UserID is
// the pre-authenticated caller identity, treated as opaque.
type TurnRequest struct {
	UserID         string                   `json:"user_id"`
	SquadID        string                   `json:"squad_id,omitempty"`
	ContextID      string                   `json:"context_id,omitempty"`
	Message        string                   `json:"message"`
	Roster         []types.AgentDescriptor  `json:"roster"`
	History        []types.ConversationTurn `json:"history,omitempty"`
	ProjectContext string                   `json:"project_context,omitempty"`
	Mode           types.ResponseMode       `json:"mode,omitempty"`
	Phase          types.Phase              `json:"phase,omitempty"`
}

// TurnResult is the outbound contract: everything the turn computed plus
// what was durably recorded.
type TurnResult struct {
	Plan            *types.OrchestrationPlan    `json:"plan"`
	Responses       []types.ParsedAgentResponse `json:"responses"`
	Synthesis       string                      `json:"synthesis,omitempty"`
	ToolCalls       []types.ToolCallRequest     `json:"tool_calls,omitempty"`
	SessionID       string                      `json:"session_id,omitempty"`
	Phase           types.Phase                 `json:"phase"`
	Round           int                         `json:"round"`
	ConductorActive bool                        `json:"conductor_active"`
	MemoriesWritten []types.MemoryRecord        `json:"memories_written,omitempty"`
}

// turnContext bundles the per-turn state threaded through the pipeline.
type turnContext struct {
	ctx   context.Context
	req   *TurnRequest
	phase types.Phase
	mode  types.ResponseMode
}

// Engine coordinates one deliberation turn at a time. It holds no per-turn
// state; concurrent turns only share the append-only store.
type Engine struct {
	provider llm.Provider
	limiter  *llm.RateLimiter
	store    Store
	cfg      config.OrchestratorConfig
	log      *logging.Logger
	sink     EventSink
}

// NewEngine wires the deliberation engine.
func NewEngine(provider llm.Provider, store Store, cfg config.OrchestratorConfig, log *logging.Logger) *Engine {
	if log == nil {
		log = logging.Global()
	}
	return &Engine{
		provider: provider,
		limiter:  llm.NewRateLimiter(),
		store:    store,
		cfg:      cfg,
		log:      log.WithComponent("orchestrator"),
		sink:     noopSink{},
	}
}

// SetEventSink installs a progress listener for streaming surfaces.
func (e *Engine) SetEventSink(sink EventSink) {
	if sink == nil {
		sink = noopSink{}
	}
	e.sink = sink
}

// RunTurn executes one full deliberation: plan, sequential agent execution,
// optional synthesis, persistence. Compute-path failures degrade the result;
// persistence failures are logged and swallowed. The only hard error is a
// roster with no assignable agents.
func (e *Engine) RunTurn(ctx context.Context, req *TurnRequest) (*TurnResult, error) {
	if req.Message == "" {
		return nil, fmt.Errorf("message is required")
	}

	tc := &turnContext{
		ctx:   ctx,
		req:   req,
		phase: req.Phase,
		mode:  req.Mode,
	}
	if !tc.phase.Valid() {
		tc.phase = types.PhaseProposal
	}
	if !tc.mode.Valid() {
		tc.mode = types.ModeStructured
	}

	plan, err := e.buildPlan(tc)
	if err != nil {
		return nil, err
	}
	e.log.Info("plan built: %d assignments, complexity=%s, conductor=%t",
		len(plan.Assignments), plan.Complexity, plan.ActivateConductor)
	e.sink.PlanBuilt(plan)

	// Sequential by design: each agent sees the responses produced before it.
	descriptors := make(map[string]types.AgentDescriptor, len(req.Roster))
	for _, agent := range req.Roster {
		descriptors[agent.Key] = agent
	}

	responses := make([]types.ParsedAgentResponse, 0, len(plan.Assignments))
	for _, assignment := range plan.Assignments {
		agent, ok := descriptors[assignment.AgentKey]
		if !ok {
			e.log.Warn("assignment references unknown agent %q, skipping", assignment.AgentKey)
			continue
		}
		response, err := e.executeAssignment(tc, assignment, agent, responses)
		if err != nil {
			e.log.Warn("agent execution failed, continuing: %v", err)
			continue
		}
		responses = append(responses, response)
		e.sink.AgentResponded(response)
	}
	if len(responses) == 0 {
		e.log.Error("no agent produced a response this turn")
	}

	synthesis := ""
	if plan.ActivateConductor && len(responses) > 1 {
		synthesis = e.synthesize(tc, plan.Goals, responses)
		if synthesis != "" {
			e.sink.SynthesisReady(synthesis)
		}
	}

	memories := e.persistMemories(tc, responses)
	sessionID := e.recordSession(tc, plan, responses, synthesis)

	var toolCalls []types.ToolCallRequest
	for _, resp := range responses {
		toolCalls = append(toolCalls, resp.ToolCalls...)
	}

	return &TurnResult{
		Plan:            plan,
		Responses:       responses,
		Synthesis:       synthesis,
		ToolCalls:       toolCalls,
		SessionID:       sessionID,
		Phase:           tc.phase,
		Round:           1,
		ConductorActive: plan.ActivateConductor,
		MemoriesWritten: memories,
	}, nil
}

// PlanningHistory loads the recent conversation window used when the caller
// does not supply history explicitly.
func (e *Engine) PlanningHistory(ctx context.Context, userID, squadID string) []types.ConversationTurn {
	turns, err := e.store.RecentConversation(ctx, userID, squadID, e.cfg.HistoryTurns)
	if err != nil {
		e.log.Warn("history fetch failed: %v", err)
		return nil
	}
	return turns
}
