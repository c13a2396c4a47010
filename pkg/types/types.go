// Package types defines the shared record types used across all Quorum modules.
package types

import "time"

// ═══════════════════════════════════════════════════════════════════════════════
// TOKEN ESTIMATION
// ═══════════════════════════════════════════════════════════════════════════════

// CharsPerToken is the heuristic for token estimation (~4 chars per token).
// This is a common approximation for English text with LLM tokenizers.
const CharsPerToken = 4

// EstimateTokens provides a rough token estimate for a given text.
func EstimateTokens(text string) int {
	return len(text) / CharsPerToken
}

// ═══════════════════════════════════════════════════════════════════════════════
// DELIBERATION ENUMS
// ═══════════════════════════════════════════════════════════════════════════════

// Phase is the deliberation stage shaping each agent's instructions.
type Phase string

const (
	// PhaseProposal asks agents to put forward an initial position.
	PhaseProposal Phase = "proposal"
	// PhaseCritique asks agents to challenge positions already on the table.
	PhaseCritique Phase = "critique"
	// PhaseReconciliation asks agents to converge on a workable answer.
	PhaseReconciliation Phase = "reconciliation"
)

// Valid returns true if the Phase is a known deliberation stage.
func (p Phase) Valid() bool {
	switch p {
	case PhaseProposal, PhaseCritique, PhaseReconciliation:
		return true
	default:
		return false
	}
}

// ResponseMode controls how much room an agent gets to answer.
type ResponseMode string

const (
	ModeShort      ResponseMode = "short"
	ModeStructured ResponseMode = "structured"
	ModeDetailed   ResponseMode = "detailed"
)

// Valid returns true if the ResponseMode is a known mode.
func (m ResponseMode) Valid() bool {
	switch m {
	case ModeShort, ModeStructured, ModeDetailed:
		return true
	default:
		return false
	}
}

// Complexity categorizes an incoming message for planning purposes.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Valid returns true if the Complexity is a known class.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	default:
		return false
	}
}

// ═══════════════════════════════════════════════════════════════════════════════
// AGENT ROSTER
// ═══════════════════════════════════════════════════════════════════════════════

// AgentDescriptor describes one configured persona for a single turn.
// Descriptors are supplied fresh on every call; the orchestrator never
// owns or mutates them.
type AgentDescriptor struct {
	Key           string   `yaml:"key" json:"key"`
	Name          string   `yaml:"name" json:"name"`
	Specialty     string   `yaml:"specialty,omitempty" json:"specialty,omitempty"`
	RolePrompt    string   `yaml:"role_prompt" json:"role_prompt"`
	DecisionStyle string   `yaml:"decision_style,omitempty" json:"decision_style,omitempty"`
	Priorities    []string `yaml:"priorities,omitempty" json:"priorities,omitempty"`
	KnownBias     string   `yaml:"known_bias,omitempty" json:"known_bias,omitempty"`
	Capabilities  []string `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
	AllowedTools  []string `yaml:"allowed_tools,omitempty" json:"allowed_tools,omitempty"`

	// SynthesisOnly marks an agent that never takes assignments and exists
	// solely to voice the consensus summary.
	SynthesisOnly bool `yaml:"synthesis_only,omitempty" json:"synthesis_only,omitempty"`

	// Generation parameters
	MaxTokens   int     `yaml:"max_tokens,omitempty" json:"max_tokens,omitempty"`
	Temperature float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// PLAN
// ═══════════════════════════════════════════════════════════════════════════════

// Assignment is one (agent, task, priority) entry in a plan.
type Assignment struct {
	AgentKey string `json:"agent_key"`
	Task     string `json:"task"`
	Priority int    `json:"priority"`
}

// OrchestrationPlan is the per-turn decision of who speaks, in what order,
// and why. It is created once per incoming message and never mutated.
type OrchestrationPlan struct {
	Goals             []string     `json:"goals"`
	Assignments       []Assignment `json:"assignments"`
	ExpectedRounds    int          `json:"expected_rounds"`
	ConductorNotes    string       `json:"conductor_notes,omitempty"`
	Complexity        Complexity   `json:"complexity"`
	ActivateConductor bool         `json:"activate_conductor"`

	// Fallback is true when the planning call failed and the deterministic
	// backstop plan was used instead.
	Fallback bool `json:"fallback,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// RESPONSES
// ═══════════════════════════════════════════════════════════════════════════════

// ToolCallStatus tracks a surfaced tool request through its approval flow.
type ToolCallStatus string

const (
	ToolCallPending  ToolCallStatus = "pending"
	ToolCallApproved ToolCallStatus = "approved"
	ToolCallRejected ToolCallStatus = "rejected"
	ToolCallExecuted ToolCallStatus = "executed"
)

// ToolCallRequest is a tool invocation an agent proposed in its reply.
// It is surfaced for external approval, never executed by the orchestrator.
type ToolCallRequest struct {
	ID     string            `json:"id"`
	Tool   string            `json:"tool"`
	Args   map[string]string `json:"args"`
	Status ToolCallStatus    `json:"status"`
}

// ParsedAgentResponse is the typed result of one agent execution.
// Fields default rather than fail when the model output lacks the
// expected embedded JSON block.
type ParsedAgentResponse struct {
	AgentKey   string            `json:"agent_key"`
	AgentName  string            `json:"agent_name"`
	Content    string            `json:"content"`
	Stance     string            `json:"stance,omitempty"`
	KeyPoints  []string          `json:"key_points,omitempty"`
	Confidence float64           `json:"confidence"`
	TradeOffs  []string          `json:"trade_offs,omitempty"`
	NextAction string            `json:"next_action,omitempty"`
	ToolCalls  []ToolCallRequest `json:"tool_calls,omitempty"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// MEMORY
// ═══════════════════════════════════════════════════════════════════════════════

// MemoryType distinguishes durable fact fragments from preferences.
type MemoryType string

const (
	MemoryFact       MemoryType = "fact"
	MemoryPreference MemoryType = "preference"
)

// MemoryRecord is an append-only fact or preference attributed to one agent.
// Importance is derived from a response confidence or a fixed constant and
// is always in [0,1].
type MemoryRecord struct {
	ID         string     `json:"id"`
	AgentKey   string     `json:"agent_key"`
	UserID     string     `json:"user_id"`
	SquadID    string     `json:"squad_id,omitempty"`
	Type       MemoryType `json:"type"`
	Content    string     `json:"content"`
	Importance float64    `json:"importance"`
	CreatedAt  time.Time  `json:"created_at"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// PENDING ACTIONS
// ═══════════════════════════════════════════════════════════════════════════════

// PendingAction is a tool-call request persisted for human or downstream
// approval. Status transitions happen outside the orchestrator core.
type PendingAction struct {
	ID         string            `json:"id"`
	UserID     string            `json:"user_id"`
	SquadID    string            `json:"squad_id,omitempty"`
	AgentKey   string            `json:"agent_key"`
	AgentName  string            `json:"agent_name"`
	ActionType string            `json:"action_type"`
	Label      string            `json:"label"`
	Args       map[string]string `json:"args"`
	Status     ToolCallStatus    `json:"status"`
	Priority   int               `json:"priority"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ═══════════════════════════════════════════════════════════════════════════════

// RoundOutput captures everything produced in one deliberation round.
type RoundOutput struct {
	Round     int                   `json:"round"`
	Phase     Phase                 `json:"phase"`
	Responses []ParsedAgentResponse `json:"responses"`
	Synthesis string                `json:"synthesis,omitempty"`
}

// OrchestrationSession is the durable audit record of one deliberation.
// The current driver produces exactly one round per call; the schema
// supports multi-round extension.
type OrchestrationSession struct {
	ID             string        `json:"id"`
	UserID         string        `json:"user_id"`
	SquadID        string        `json:"squad_id,omitempty"`
	ContextID      string        `json:"context_id,omitempty"`
	SessionType    string        `json:"session_type"`
	CurrentRound   int           `json:"current_round"`
	CurrentPhase   Phase         `json:"current_phase"`
	AgentKeys      []string      `json:"agent_keys"`
	Goals          []string      `json:"goals"`
	Tasks          []string      `json:"tasks"`
	Rounds         []RoundOutput `json:"rounds"`
	ConductorNotes string        `json:"conductor_notes,omitempty"`
	Active         bool          `json:"active"`
	CreatedAt      time.Time     `json:"created_at"`
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSATION HISTORY
// ═══════════════════════════════════════════════════════════════════════════════

// ConversationTurn is one prior message in the thread being deliberated.
type ConversationTurn struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SquadID   string    `json:"squad_id,omitempty"`
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
