package orchestrator

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// SESSION / ACTION RECORDER
// ═══════════════════════════════════════════════════════════════════════════════

// recordSession persists the turn's audit trail: one session row with a
// single round output, plus one pending action per surfaced tool call. Both
// writes are best-effort; a failure is logged and the computed results are
// still returned to the caller. Returns the session id, or "" when the
// session write failed.
func (e *Engine) recordSession(ctx *turnContext, plan *types.OrchestrationPlan, responses []types.ParsedAgentResponse, synthesis string) string {
	agentKeys := make([]string, 0, len(plan.Assignments))
	tasks := make([]string, 0, len(plan.Assignments))
	for _, a := range plan.Assignments {
		agentKeys = append(agentKeys, a.AgentKey)
		tasks = append(tasks, a.Task)
	}

	session := &types.OrchestrationSession{
		ID:           uuid.New().String(),
		UserID:       ctx.req.UserID,
		SquadID:      ctx.req.SquadID,
		ContextID:    ctx.req.ContextID,
		SessionType:  "deliberation",
		CurrentRound: 1,
		CurrentPhase: ctx.phase,
		AgentKeys:    agentKeys,
		Goals:        plan.Goals,
		Tasks:        tasks,
		Rounds: []types.RoundOutput{{
			Round:     1,
			Phase:     ctx.phase,
			Responses: responses,
			Synthesis: synthesis,
		}},
		ConductorNotes: plan.ConductorNotes,
		Active:         true,
		CreatedAt:      time.Now().UTC(),
	}

	sessionID := session.ID
	if err := e.store.InsertSession(ctx.ctx, session); err != nil {
		e.log.Warn("session write failed: %v", err)
		sessionID = ""
	}

	e.recordPendingActions(ctx, responses)
	return sessionID
}

// recordPendingActions persists one PendingAction per tool call surfaced in
// this turn, carrying the tool-call id through so the approval flow can
// correlate them.
func (e *Engine) recordPendingActions(ctx *turnContext, responses []types.ParsedAgentResponse) {
	var actions []types.PendingAction
	for _, resp := range responses {
		for i, call := range resp.ToolCalls {
			actions = append(actions, types.PendingAction{
				ID:         call.ID,
				UserID:     ctx.req.UserID,
				SquadID:    ctx.req.SquadID,
				AgentKey:   resp.AgentKey,
				AgentName:  resp.AgentName,
				ActionType: call.Tool,
				Label:      fmt.Sprintf("%s suggests: %s", resp.AgentName, call.Tool),
				Args:       call.Args,
				Status:     types.ToolCallPending,
				Priority:   i + 1,
				CreatedAt:  time.Now().UTC(),
			})
		}
	}
	if len(actions) == 0 {
		return
	}
	if err := e.store.InsertPendingActions(ctx.ctx, actions); err != nil {
		e.log.Warn("pending action write failed, dropping %d actions: %v", len(actions), err)
	}
}
