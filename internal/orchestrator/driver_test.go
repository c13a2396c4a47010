package orchestrator

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/pkg/types"
)

const plannerTwoAgents = `{"goals": ["Answer the question"], "assignedAgents": [
  {"agentKey": "pm", "task": "Answer from the product angle", "priority": 1},
  {"agentKey": "eng", "task": "Answer from the engineering angle", "priority": 2}
], "expectedRounds": 1}`

const pmReply = `A staged approach works best here because it limits blast radius.
{"stance": "Stage the work across two sprints", "key_points": ["Staging the work limits the blast radius of mistakes"], "confidence": 0.8, "tradeoffs": ["Slower delivery"], "next_action": "Write the plan"}`

const engReply = `From the implementation side this is straightforward if we script it.
{"stance": "Automate the rollout with a script", "key_points": ["An automated rollout script removes manual error sources"], "confidence": 0.7}`

// recordingSink captures the events the engine emits during a turn.
type recordingSink struct {
	plans     int
	responses int
	syntheses int
}

func (s *recordingSink) PlanBuilt(*types.OrchestrationPlan)       { s.plans++ }
func (s *recordingSink) AgentResponded(types.ParsedAgentResponse) { s.responses++ }
func (s *recordingSink) SynthesisReady(string)                    { s.syntheses++ }

func TestRunTurnSimpleQuestionSkipsSynthesis(t *testing.T) {
	provider := (&scriptedProvider{}).
		push(plannerTwoAgents).
		push(pmReply).
		push(engReply)
	engine, _ := newTestEngine(t, provider)

	result, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "How do I reset a password?",
		Roster:  testRoster(3),
	})
	require.NoError(t, err)

	assert.Equal(t, types.ComplexitySimple, result.Plan.Complexity)
	assert.LessOrEqual(t, len(result.Plan.Assignments), 2)
	assert.False(t, result.ConductorActive)
	require.Len(t, result.Responses, 2)
	assert.Equal(t, "", result.Synthesis)
	assert.Equal(t, 1, result.Round)
	assert.Equal(t, types.PhaseProposal, result.Phase)

	// Planner + two agents, and no synthesis call was made.
	assert.Equal(t, 3, provider.calls)
}

func TestRunTurnComplexQuestionSynthesizes(t *testing.T) {
	provider := (&scriptedProvider{}).
		push(plannerTwoAgents).
		push(pmReply).
		push(engReply).
		push("Consensus on staging; tension remains on timeline. Next step: a spike.")
	engine, _ := newTestEngine(t, provider)
	sink := &recordingSink{}
	engine.SetEventSink(sink)

	result, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "Should we migrate to a new architecture and what's the trade-off on timeline?",
		Roster:  testRoster(4),
	})
	require.NoError(t, err)

	assert.Equal(t, types.ComplexityComplex, result.Plan.Complexity)
	assert.True(t, result.ConductorActive)
	require.Len(t, result.Responses, 2)
	assert.Contains(t, result.Synthesis, "Consensus")
	assert.Equal(t, 4, provider.calls)

	assert.Equal(t, 1, sink.plans)
	assert.Equal(t, 2, sink.responses)
	assert.Equal(t, 1, sink.syntheses)
}

func TestRunTurnIsolatesAgentFailure(t *testing.T) {
	provider := (&scriptedProvider{}).
		push(plannerTwoAgents).
		pushErr(&llm.APIError{Provider: "scripted", StatusCode: 500, Kind: llm.ErrKindUpstream}).
		push(engReply)
	engine, store := newTestEngine(t, provider)

	result, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "How do I reset a password?",
		Roster:  testRoster(2),
	})
	require.NoError(t, err)

	require.Len(t, result.Responses, 1)
	assert.Equal(t, "eng", result.Responses[0].AgentKey)

	// The session still persisted with one round output.
	require.NotEmpty(t, result.SessionID)
	sess, err := store.GetSession(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.Len(t, sess.Rounds, 1)
	assert.Len(t, sess.Rounds[0].Responses, 1)
}

func TestRunTurnAllCallsFail(t *testing.T) {
	// Empty script: planner, agents, and synthesis all fail.
	provider := &scriptedProvider{}
	engine, _ := newTestEngine(t, provider)

	result, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "Should we migrate to a new architecture and what's the trade-off on timeline?",
		Roster:  testRoster(3),
	})
	require.NoError(t, err)

	assert.True(t, result.Plan.Fallback)
	assert.Empty(t, result.Responses)
	assert.Equal(t, "", result.Synthesis)
	assert.Empty(t, result.MemoriesWritten)
}

func TestRunTurnEmptyRosterFails(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedProvider{})

	_, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "anything",
	})
	require.Error(t, err)
}

func TestRunTurnEmptyMessageFails(t *testing.T) {
	engine, _ := newTestEngine(t, &scriptedProvider{})
	_, err := engine.RunTurn(context.Background(), &TurnRequest{UserID: "u1", Roster: testRoster(2)})
	require.Error(t, err)
}

func TestRunTurnSurfacesToolCalls(t *testing.T) {
	toolReply := `We should file this now. [TOOL: create_ticket] billing migration epic
{"stance": "File the ticket before the sprint starts", "confidence": 0.9}`

	provider := (&scriptedProvider{}).
		push(`{"goals": ["g"], "assignedAgents": [{"agentKey": "pm", "task": "t", "priority": 1}]}`).
		push(toolReply)
	engine, store := newTestEngine(t, provider)

	result, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "How do I reset a password?",
		Roster:  testRoster(2),
	})
	require.NoError(t, err)

	require.Len(t, result.ToolCalls, 1)
	assert.Equal(t, "create_ticket", result.ToolCalls[0].Tool)
	assert.Equal(t, "billing migration epic", result.ToolCalls[0].Args["context"])

	// Each surfaced tool call becomes one pending action with the same id.
	actions, err := store.PendingActionsForUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, result.ToolCalls[0].ID, actions[0].ID)
	assert.Equal(t, types.ToolCallPending, actions[0].Status)
}

func TestRunTurnSurfacesProviderToolCalls(t *testing.T) {
	provider := (&scriptedProvider{}).
		push(`{"goals": ["g"], "assignedAgents": [{"agentKey": "pm", "task": "t", "priority": 1}]}`).
		pushWithTools(
			`{"stance": "File the ticket before the sprint starts", "confidence": 0.9}`,
			llm.ToolCallResult{Name: "create_ticket", Arguments: `{"title": "billing migration epic"}`},
			llm.ToolCallResult{Name: "notify_channel", Arguments: "not json"},
		)
	engine, store := newTestEngine(t, provider)

	result, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "How do I reset a password?",
		Roster:  testRoster(2),
	})
	require.NoError(t, err)

	require.Len(t, result.ToolCalls, 2)
	assert.Equal(t, "create_ticket", result.ToolCalls[0].Tool)
	assert.Equal(t, "billing migration epic", result.ToolCalls[0].Args["title"])
	assert.Equal(t, types.ToolCallPending, result.ToolCalls[0].Status)

	// Arguments that are not a flat JSON object are kept verbatim.
	assert.Equal(t, "not json", result.ToolCalls[1].Args["arguments"])

	actions, err := store.PendingActionsForUser(context.Background(), "u1", 10)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	ids := []string{actions[0].ID, actions[1].ID}
	assert.Contains(t, ids, result.ToolCalls[0].ID)
	assert.Contains(t, ids, result.ToolCalls[1].ID)
}

func TestRunTurnWritesMemories(t *testing.T) {
	provider := (&scriptedProvider{}).
		push(plannerTwoAgents).
		push(pmReply).
		push(engReply)
	engine, store := newTestEngine(t, provider)

	result, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "How do I reset a password?",
		Roster:  testRoster(2),
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.MemoriesWritten)

	stored, err := store.TopMemories(context.Background(), "pm", "u1", "", 10)
	require.NoError(t, err)
	assert.NotEmpty(t, stored)
}

func TestRunTurnPersistenceFailureStillReturnsResults(t *testing.T) {
	provider := (&scriptedProvider{}).
		push(plannerTwoAgents).
		push(pmReply).
		push(engReply)
	engine, _ := newTestEngine(t, provider)
	engine.store = failStore{}

	result, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "How do I reset a password?",
		Roster:  testRoster(2),
	})
	require.NoError(t, err)

	require.Len(t, result.Responses, 2)
	assert.Empty(t, result.SessionID)
	assert.Empty(t, result.MemoriesWritten)
}

func TestRunTurnLaterAgentsSeeEarlierResponses(t *testing.T) {
	provider := (&scriptedProvider{}).
		push(plannerTwoAgents).
		push(pmReply).
		push(engReply)
	engine, _ := newTestEngine(t, provider)

	var sawPrevious bool
	engine.provider = chatInspector{inner: provider, onChat: func(req *llm.ChatRequest) {
		for _, msg := range req.Messages {
			if strings.HasPrefix(msg.Content, "Previous responses this round") {
				sawPrevious = true
			}
		}
	}}

	_, err := engine.RunTurn(context.Background(), &TurnRequest{
		UserID:  "u1",
		Message: "How do I reset a password?",
		Roster:  testRoster(2),
	})
	require.NoError(t, err)
	assert.True(t, sawPrevious)
}

// chatInspector wraps a provider to observe outgoing requests.
type chatInspector struct {
	inner  llm.Provider
	onChat func(*llm.ChatRequest)
}

func (c chatInspector) Chat(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	c.onChat(req)
	return c.inner.Chat(ctx, req)
}
func (c chatInspector) Name() string    { return c.inner.Name() }
func (c chatInspector) Available() bool { return c.inner.Available() }
