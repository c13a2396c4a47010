package orchestrator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/looplinehq/quorum/internal/config"
	"github.com/looplinehq/quorum/internal/logging"
	"github.com/looplinehq/quorum/pkg/types"
)

func TestExtractMemories(t *testing.T) {
	responses := []types.ParsedAgentResponse{
		{
			AgentKey:   "pm",
			Confidence: 0.8,
			Stance:     "We should stage the rollout across two sprints",
			KeyPoints: []string{
				"too short",
				"A staged rollout reduces deployment risk substantially",
			},
		},
		{
			AgentKey:   "eng",
			Confidence: 0.4,
			Stance:     "short", // under the preference threshold
			KeyPoints:  []string{"Database migration needs a rollback script first"},
		},
	}

	records := extractMemories(responses, "u1", "sq1")
	require.Len(t, records, 3)

	facts := 0
	prefs := 0
	for _, rec := range records {
		assert.Equal(t, "u1", rec.UserID)
		assert.Equal(t, "sq1", rec.SquadID)
		assert.NotEmpty(t, rec.ID)
		assert.GreaterOrEqual(t, rec.Importance, 0.0)
		assert.LessOrEqual(t, rec.Importance, 1.0)

		switch rec.Type {
		case types.MemoryFact:
			facts++
		case types.MemoryPreference:
			prefs++
			assert.Equal(t, preferenceImportance, rec.Importance)
		}
	}
	assert.Equal(t, 2, facts)
	assert.Equal(t, 1, prefs)

	// Facts inherit the response confidence.
	assert.Equal(t, "pm", records[0].AgentKey)
	assert.Equal(t, 0.8, records[0].Importance)
}

func TestExtractMemoriesDeterministic(t *testing.T) {
	responses := []types.ParsedAgentResponse{{
		AgentKey:   "pm",
		Confidence: 0.9,
		Stance:     "Prefer incremental delivery over a big-bang launch",
		KeyPoints:  []string{"Incremental delivery shortens the feedback loop considerably"},
	}}

	first := extractMemories(responses, "u1", "")
	second := extractMemories(responses, "u1", "")
	require.Equal(t, len(first), len(second))

	// Same content/type/importance triples; only ids may differ.
	for i := range first {
		assert.Equal(t, first[i].Content, second[i].Content)
		assert.Equal(t, first[i].Type, second[i].Type)
		assert.Equal(t, first[i].Importance, second[i].Importance)
	}
}

func TestExtractMemoriesEmpty(t *testing.T) {
	assert.Empty(t, extractMemories(nil, "u1", ""))
	assert.Empty(t, extractMemories([]types.ParsedAgentResponse{{AgentKey: "pm", Stance: "no", KeyPoints: []string{"tiny"}}}, "u1", ""))
}

func TestPersistMemoriesSwallowsStoreFailure(t *testing.T) {
	log := logging.New(&logging.Config{Level: logging.LevelError, Colored: false})
	engine := NewEngine(&scriptedProvider{}, failStore{}, config.Default().Orchestrator, log)

	tc := &turnContext{
		ctx: context.Background(),
		req: &TurnRequest{UserID: "u1"},
	}
	responses := []types.ParsedAgentResponse{{
		AgentKey:   "pm",
		Confidence: 0.9,
		Stance:     "A stance long enough to persist as preference",
	}}

	written := engine.persistMemories(tc, responses)
	assert.Empty(t, written)
}
