package orchestrator

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PLAN BUILDER
// ═══════════════════════════════════════════════════════════════════════════════

// plannerPayload mirrors the JSON shape the planning prompt requests.
// ShouldActivateConductor is a pointer so an omitted field can be told apart
// from an explicit false and overridden by the classifier.
type plannerPayload struct {
	Goals          []string `json:"goals"`
	AssignedAgents []struct {
		AgentKey string `json:"agentKey"`
		Task     string `json:"task"`
		Priority int    `json:"priority"`
	} `json:"assignedAgents"`
	ExpectedRounds          int    `json:"expectedRounds"`
	ConductorNotes          string `json:"conductorNotes"`
	ShouldActivateConductor *bool  `json:"shouldActivateConductor"`
}

// buildPlan produces the turn's execution plan. It returns an error only
// when the roster has no assignable agents; every other failure falls back
// to a deterministic plan.
func (e *Engine) buildPlan(ctx *turnContext) (*types.OrchestrationPlan, error) {
	assignable := assignableAgents(ctx.req.Roster)
	if len(assignable) == 0 {
		return nil, fmt.Errorf("roster has no assignable agents")
	}

	complexity := classifyComplexity(ctx.req.Message, len(assignable))

	plan, err := e.requestPlan(ctx, assignable, complexity)
	if err != nil {
		e.log.Warn("planner call failed, using fallback plan: %v", err)
		plan = fallbackPlan(assignable, complexity)
	}

	e.capAssignments(plan)
	return plan, nil
}

// requestPlan issues the single planning completion call and parses it.
func (e *Engine) requestPlan(ctx *turnContext, assignable []types.AgentDescriptor, complexity types.Complexity) (*types.OrchestrationPlan, error) {
	history := ctx.req.History
	if len(history) > e.cfg.HistoryTurns {
		history = history[len(history)-e.cfg.HistoryTurns:]
	}
	prompt := buildPlannerPrompt(ctx.req.Message, ctx.req.Roster, history)

	resp, err := e.complete(ctx.ctx, &llm.ChatRequest{
		Messages:    []llm.Message{{Role: "user", Content: prompt}},
		MaxTokens:   plannerTokenBudget,
		Temperature: plannerTemperature,
	})
	if err != nil {
		return nil, err
	}

	payload, err := parsePlannerPayload(resp.Content)
	if err != nil {
		return nil, err
	}

	byKey := make(map[string]bool, len(assignable))
	for _, agent := range assignable {
		byKey[agent.Key] = true
	}

	assignments := make([]types.Assignment, 0, len(payload.AssignedAgents))
	for _, a := range payload.AssignedAgents {
		if !byKey[a.AgentKey] {
			e.log.Warn("planner assigned unknown or synthesis-only agent %q, dropping", a.AgentKey)
			continue
		}
		task := a.Task
		if task == "" {
			task = "Respond to the user's question from your perspective"
		}
		assignments = append(assignments, types.Assignment{
			AgentKey: a.AgentKey,
			Task:     task,
			Priority: a.Priority,
		})
	}
	if len(assignments) == 0 {
		return nil, fmt.Errorf("planner assigned no usable agents")
	}

	goals := payload.Goals
	if len(goals) == 0 {
		goals = []string{"Respond to the user's question"}
	}
	rounds := payload.ExpectedRounds
	if rounds < 1 {
		rounds = 1
	}

	activate := complexity == types.ComplexityComplex
	if payload.ShouldActivateConductor != nil {
		activate = *payload.ShouldActivateConductor
	}

	return &types.OrchestrationPlan{
		Goals:             goals,
		Assignments:       assignments,
		ExpectedRounds:    rounds,
		ConductorNotes:    payload.ConductorNotes,
		Complexity:        complexity,
		ActivateConductor: activate,
	}, nil
}

// parsePlannerPayload extracts the first balanced JSON object from the
// planner's reply and decodes it.
func parsePlannerPayload(content string) (*plannerPayload, error) {
	for start := 0; start < len(content); start++ {
		if content[start] != '{' {
			continue
		}
		end, ok := findBalancedEnd(content, start)
		if !ok {
			continue
		}
		var payload plannerPayload
		if err := json.Unmarshal([]byte(content[start:end+1]), &payload); err != nil {
			continue
		}
		return &payload, nil
	}
	return nil, fmt.Errorf("no JSON object in planner response")
}

// fallbackPlan is the availability backstop: a deterministic plan built
// without any completion call. It assigns the first two assignable agents.
func fallbackPlan(assignable []types.AgentDescriptor, complexity types.Complexity) *types.OrchestrationPlan {
	assignments := make([]types.Assignment, 0, 2)
	for i, agent := range assignable {
		if i >= 2 {
			break
		}
		assignments = append(assignments, types.Assignment{
			AgentKey: agent.Key,
			Task:     "Respond to the user's question from your perspective",
			Priority: i + 1,
		})
	}

	return &types.OrchestrationPlan{
		Goals:             []string{"Respond to the user's question"},
		Assignments:       assignments,
		ExpectedRounds:    1,
		Complexity:        complexity,
		ActivateConductor: false,
		Fallback:          true,
	}
}

// capAssignments sorts assignments by ascending priority and truncates any
// plan that exceeds the configured maximum.
func (e *Engine) capAssignments(plan *types.OrchestrationPlan) {
	sort.SliceStable(plan.Assignments, func(i, j int) bool {
		return plan.Assignments[i].Priority < plan.Assignments[j].Priority
	})
	if e.cfg.MaxAssignments > 0 && len(plan.Assignments) > e.cfg.MaxAssignments {
		e.log.Warn("plan assigned %d agents, truncating to %d", len(plan.Assignments), e.cfg.MaxAssignments)
		plan.Assignments = plan.Assignments[:e.cfg.MaxAssignments]
	}
}

// assignableAgents filters out synthesis-only descriptors.
func assignableAgents(roster []types.AgentDescriptor) []types.AgentDescriptor {
	out := make([]types.AgentDescriptor, 0, len(roster))
	for _, agent := range roster {
		if !agent.SynthesisOnly {
			out = append(out, agent)
		}
	}
	return out
}

const (
	plannerTokenBudget = 600
	plannerTemperature = 0.3
)
