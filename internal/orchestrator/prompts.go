package orchestrator

import (
	"fmt"
	"strings"

	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// PROMPT ASSEMBLY
// ═══════════════════════════════════════════════════════════════════════════════
//
// Every prompt here is a pure function of its inputs so it can be unit-tested
// without a live completion service.

// previousResponseLimit caps how much of an earlier agent's reply later
// agents see in the same round.
const previousResponseLimit = 400

// buildPlannerPrompt asks the model to produce an execution plan as JSON.
func buildPlannerPrompt(message string, roster []types.AgentDescriptor, history []types.ConversationTurn) string {
	var sb strings.Builder

	sb.WriteString("You are the conductor of a team of specialist agents. ")
	sb.WriteString("Decide which agents should respond to the user's message, in what order, and with what task.\n\n")

	sb.WriteString("## Available Agents\n")
	for _, agent := range roster {
		if agent.SynthesisOnly {
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s (%s)", agent.Key, agent.Name))
		if agent.Specialty != "" {
			sb.WriteString(": " + agent.Specialty)
		}
		sb.WriteString("\n")
	}
	sb.WriteString("\n")

	if len(history) > 0 {
		sb.WriteString("## Recent Conversation\n")
		for _, turn := range history {
			sb.WriteString(fmt.Sprintf("%s: %s\n", turn.Role, truncate(turn.Content, previousResponseLimit)))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## User Message\n")
	sb.WriteString(message)
	sb.WriteString("\n\n")

	sb.WriteString("Respond with a single JSON object and nothing else:\n")
	sb.WriteString(`{"goals": ["..."], "assignedAgents": [{"agentKey": "...", "task": "...", "priority": 1}], "expectedRounds": 1, "conductorNotes": "...", "shouldActivateConductor": false}` + "\n")
	sb.WriteString("Assign between 2 and 4 agents. Priorities start at 1 and determine speaking order. ")
	sb.WriteString("Set shouldActivateConductor true only when the perspectives are likely to conflict and need a synthesis.")

	return sb.String()
}

// phaseInstructions returns the deliberation-stage directive for an agent.
func phaseInstructions(phase types.Phase) string {
	switch phase {
	case types.PhaseCritique:
		return "This is the critique phase. Challenge the positions already on the table: point out risks, gaps, and hidden assumptions. Do not simply restate earlier answers."
	case types.PhaseReconciliation:
		return "This is the reconciliation phase. Converge on a workable answer: acknowledge the strongest points raised so far and propose a concrete resolution."
	default:
		return "This is the proposal phase. Put forward your initial position on the question with your strongest reasoning."
	}
}

// buildAgentSystemPrompt concatenates everything a single agent needs:
// role, style, priorities, bias, project context, memories, phase
// instructions, the concrete task, permitted tools, and the output contract.
func buildAgentSystemPrompt(agent types.AgentDescriptor, phase types.Phase, task, projectContext string, memories []types.MemoryRecord) string {
	var sb strings.Builder

	sb.WriteString(agent.RolePrompt)
	sb.WriteString("\n\n")

	if agent.DecisionStyle != "" {
		sb.WriteString("## Decision Style\n")
		sb.WriteString(agent.DecisionStyle)
		sb.WriteString("\n\n")
	}

	if len(agent.Priorities) > 0 {
		sb.WriteString("## Your Priorities (in order)\n")
		for i, p := range agent.Priorities {
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, p))
		}
		sb.WriteString("\n")
	}

	if agent.KnownBias != "" {
		sb.WriteString("## Known Bias\n")
		sb.WriteString("Be aware of your tendency: " + agent.KnownBias + "\n\n")
	}

	if projectContext != "" {
		sb.WriteString("## Project Context\n")
		sb.WriteString(projectContext)
		sb.WriteString("\n\n")
	}

	if len(memories) > 0 {
		sb.WriteString("## What You Remember\n")
		for _, mem := range memories {
			sb.WriteString(fmt.Sprintf("- [%s] %s\n", mem.Type, mem.Content))
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Phase\n")
	sb.WriteString(phaseInstructions(phase))
	sb.WriteString("\n\n")

	sb.WriteString("## Your Task\n")
	sb.WriteString(task)
	sb.WriteString("\n\n")

	if len(agent.AllowedTools) > 0 {
		sb.WriteString("## Tools\n")
		sb.WriteString("You may request these tools by writing [TOOL: tool_name] followed by what it should do: ")
		sb.WriteString(strings.Join(agent.AllowedTools, ", "))
		sb.WriteString("\n\n")
	}

	sb.WriteString("## Output Requirements\n")
	sb.WriteString("Never begin your reply with a self-introduction or your own name. ")
	sb.WriteString("End your reply with a JSON object on its own line:\n")
	sb.WriteString(`{"stance": "one sentence position", "key_points": ["..."], "confidence": 0.0, "tradeoffs": ["..."], "next_action": "..."}`)

	return sb.String()
}

// buildPreviousResponsesMessage summarizes earlier replies this round so
// later agents react to them instead of answering in a vacuum.
func buildPreviousResponsesMessage(responses []types.ParsedAgentResponse) string {
	var sb strings.Builder
	sb.WriteString("Previous responses this round:\n\n")
	for _, resp := range responses {
		sb.WriteString(fmt.Sprintf("### %s\n", resp.AgentName))
		sb.WriteString(truncate(resp.Content, previousResponseLimit))
		if resp.Stance != "" {
			sb.WriteString("\nStance: " + resp.Stance)
		}
		sb.WriteString("\n\n")
	}
	sb.WriteString("React to these perspectives where relevant.")
	return sb.String()
}

// buildSynthesisPrompt asks for the consensus/tension/next-step summary.
func buildSynthesisPrompt(goals []string, responses []types.ParsedAgentResponse) string {
	var sb strings.Builder

	sb.WriteString("You are summarizing a deliberation between specialist agents.\n\n")

	if len(goals) > 0 {
		sb.WriteString("## Discussion Goals\n")
		for _, g := range goals {
			sb.WriteString("- " + g + "\n")
		}
		sb.WriteString("\n")
	}

	sb.WriteString("## Agent Responses\n")
	for _, resp := range responses {
		sb.WriteString(fmt.Sprintf("### %s (confidence %.1f)\n", resp.AgentName, resp.Confidence))
		if resp.Stance != "" {
			sb.WriteString("Stance: " + resp.Stance + "\n")
		}
		sb.WriteString(truncate(resp.Content, previousResponseLimit))
		sb.WriteString("\n\n")
	}

	sb.WriteString("Write a 2-3 sentence summary that names the consensus, the main open tension, and one concrete next step. Plain prose only.")

	return sb.String()
}

// truncate shortens s to at most n runes, appending an ellipsis when cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}
