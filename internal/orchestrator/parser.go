package orchestrator

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// RESPONSE PARSER
// ═══════════════════════════════════════════════════════════════════════════════
//
// Turns raw completion text into a typed response. Every step degrades to a
// default instead of failing: malformed output is expected input here.

// defaultConfidence is used when the response omits a confidence or reports
// one outside [0,1].
const defaultConfidence = 0.7

// introRule is one leading self-introduction pattern. {name} expands to the
// agent's quoted display name; {greet} to an optional greeting prefix. Rules
// are applied in order inside a fixed-point loop, so stacked introductions
// are stripped one layer at a time.
type introRule struct {
	name    string
	pattern string
}

const greetPrefix = `(?:(?:hello|hi|hey|greetings|bonjour|salut)(?:\s+(?:team|everyone|all|folks))?[!,.\s]*)?`

var introRules = []introRule{
	// "Bonjour, c'est Sarah, ..." / "Hello team! This is Sarah: ..."
	{"greeting-intro", `(?i)^` + greetPrefix + `(?:c'est|this is|it's|i'm|i am|here's)\s+{name}\b[ \t]*[,.:!-]*\s*`},
	// "Hello team! Sarah here, ..."
	{"name-here", `(?i)^` + greetPrefix + `{name}\s+here\b[ \t]*[,.:!-]*\s*`},
	// "Sarah: ..." / "Hi! Sarah, ..."
	{"name-lead", `(?i)^` + greetPrefix + `{name}\s*[,:]\s*`},
	// "According to Sarah, ..."
	{"according-to", `(?i)^according to\s+{name}\s*[,:]?\s*`},
	// "From Sarah's perspective, ..."
	{"perspective", `(?i)^from\s+{name}(?:'s)?\s+perspective\s*[,:]?\s*`},
	// "As a product manager, ..." (name-agnostic)
	{"as-a-role", `(?i)^as an?\s+[^,\n]{1,60},\s*`},
	// "This is Marcus. ..." with any capitalized name (name-agnostic; kept
	// case-sensitive so "This is important, ..." survives)
	{"generic-intro", `^(?:I am|I'm|This is)\s+[A-Z][a-z]+[ \t]*[,.:!-]\s*`},
}

// compileIntroRules expands the rule table for one agent name. Rules that
// reference {name} are dropped when the name is empty.
func compileIntroRules(agentName string) []*regexp.Regexp {
	quoted := regexp.QuoteMeta(agentName)
	out := make([]*regexp.Regexp, 0, len(introRules))
	for _, rule := range introRules {
		pattern := rule.pattern
		if strings.Contains(pattern, "{name}") {
			if agentName == "" {
				continue
			}
			pattern = strings.ReplaceAll(pattern, "{name}", quoted)
		}
		out = append(out, regexp.MustCompile(pattern))
	}
	return out
}

// stripSelfIntroductions removes stacked leading self-introductions. All
// patterns are anchored at the start of the string, so occurrences of the
// agent's name elsewhere in the text are never touched. The loop runs to a
// fixed point, which makes the operation idempotent.
func stripSelfIntroductions(text, agentName string) string {
	rules := compileIntroRules(agentName)
	for {
		stripped := text
		for _, re := range rules {
			if loc := re.FindStringIndex(stripped); loc != nil && loc[1] > 0 {
				stripped = stripped[loc[1]:]
			}
		}
		if stripped == text {
			return text
		}
		text = stripped
	}
}

// embeddedFields is the minimal shape of the structured block agents are
// asked to append. Pointer fields distinguish absent from zero.
type embeddedFields struct {
	Stance     *string  `json:"stance"`
	KeyPoints  []string `json:"key_points"`
	Confidence *float64 `json:"confidence"`
	TradeOffs  []string `json:"tradeoffs"`
	NextAction *string  `json:"next_action"`
}

func (f *embeddedFields) recognizable() bool {
	return f.Stance != nil || f.KeyPoints != nil || f.Confidence != nil ||
		f.TradeOffs != nil || f.NextAction != nil
}

// extractEmbeddedJSON finds the first balanced-brace object in text that
// parses as the expected shape. It returns the fields, the text with the
// matched span removed, and whether anything was found. Nested braces and
// braces inside JSON strings are handled by the balance scan.
func extractEmbeddedJSON(text string) (*embeddedFields, string, bool) {
	for start := 0; start < len(text); start++ {
		if text[start] != '{' {
			continue
		}
		end, ok := findBalancedEnd(text, start)
		if !ok {
			continue
		}
		var fields embeddedFields
		if err := json.Unmarshal([]byte(text[start:end+1]), &fields); err != nil {
			continue
		}
		if !fields.recognizable() {
			continue
		}
		cleaned := text[:start] + text[end+1:]
		return &fields, cleaned, true
	}
	return nil, text, false
}

// findBalancedEnd returns the index of the brace closing the object opened
// at start, skipping braces inside string literals.
func findBalancedEnd(text string, start int) (int, bool) {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i, true
			}
		}
	}
	return 0, false
}

// toolMarkerRe matches inline tool requests of the form "[TOOL: name] args".
// Args run to the end of the line or the next marker.
var toolMarkerRe = regexp.MustCompile(`\[TOOL:\s*([A-Za-z0-9_.-]+)\][ \t]*([^\n\[]*)`)

// extractToolCalls converts every tool marker into a pending ToolCallRequest
// and removes the marker text. One marker always yields exactly one request.
func extractToolCalls(text string) ([]types.ToolCallRequest, string) {
	matches := toolMarkerRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, text
	}

	calls := make([]types.ToolCallRequest, 0, len(matches))
	for _, m := range matches {
		calls = append(calls, types.ToolCallRequest{
			ID:     uuid.New().String(),
			Tool:   m[1],
			Args:   map[string]string{"context": strings.TrimSpace(m[2])},
			Status: types.ToolCallPending,
		})
	}
	cleaned := toolMarkerRe.ReplaceAllString(text, "")
	return calls, cleaned
}

// ParseResponse normalizes one raw completion into a typed response. It
// never fails: missing or malformed structure falls back to defaults.
func ParseResponse(raw, agentKey, agentName string) types.ParsedAgentResponse {
	resp := types.ParsedAgentResponse{
		AgentKey:   agentKey,
		AgentName:  agentName,
		Stance:     "",
		KeyPoints:  []string{},
		Confidence: defaultConfidence,
		TradeOffs:  []string{},
		NextAction: "",
	}

	content := stripSelfIntroductions(raw, agentName)

	fields, content, found := extractEmbeddedJSON(content)
	if found {
		if fields.Stance != nil {
			resp.Stance = *fields.Stance
		}
		if fields.KeyPoints != nil {
			resp.KeyPoints = fields.KeyPoints
		}
		if fields.Confidence != nil && *fields.Confidence >= 0 && *fields.Confidence <= 1 {
			resp.Confidence = *fields.Confidence
		}
		if fields.TradeOffs != nil {
			resp.TradeOffs = fields.TradeOffs
		}
		if fields.NextAction != nil {
			resp.NextAction = *fields.NextAction
		}
	}

	resp.ToolCalls, content = extractToolCalls(content)
	resp.Content = strings.TrimSpace(content)
	return resp
}
