package orchestrator

import (
	"strings"

	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// COMPLEXITY CLASSIFIER
// ═══════════════════════════════════════════════════════════════════════════════

// complexCues signal questions that warrant multi-perspective deliberation.
var complexCues = []string{
	"strategy",
	"strategic",
	"decision",
	"decide",
	"trade-off",
	"tradeoff",
	"trade off",
	"roadmap",
	"architecture",
	"architectural",
	"migration",
	"migrate",
	"refactor",
	"prioritize",
	"should we",
	"pros and cons",
	"long-term",
}

// simpleCues signal lookup-style questions a single agent can answer.
var simpleCues = []string{
	"how do i",
	"how to",
	"how can i",
	"what is",
	"what's",
	"what are",
	"explain",
	"define",
	"definition",
	"where is",
	"when is",
}

// classifyComplexity is the deterministic planning signal: it never calls
// the completion service and never fails. Roster size counts only agents
// that can take assignments.
func classifyComplexity(message string, rosterSize int) types.Complexity {
	lower := strings.ToLower(message)

	complexHits := 0
	for _, cue := range complexCues {
		if strings.Contains(lower, cue) {
			complexHits++
		}
	}
	simpleHits := 0
	for _, cue := range simpleCues {
		if strings.Contains(lower, cue) {
			simpleHits++
		}
	}

	switch {
	case complexHits >= 2 || rosterSize > 3:
		return types.ComplexityComplex
	case complexHits >= 1 || simpleHits == 0:
		return types.ComplexityModerate
	default:
		return types.ComplexitySimple
	}
}
