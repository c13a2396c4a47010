package roster

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRoster = `
name: product-squad
agents:
  - key: pm
    name: Priya
    specialty: product strategy
    role_prompt: You are a seasoned product manager.
    decision_style: data-informed
    priorities: [user value, time to market]
    known_bias: favors shipping early
    allowed_tools: [create_ticket, schedule_meeting]
    temperature: 0.7
  - key: eng
    name: Marcus
    role_prompt: You are a pragmatic staff engineer.
    max_tokens: 800
  - key: scribe
    name: Quinn
    role_prompt: You summarize the squad's consensus.
    synthesis_only: true
`

func TestLoadFromYAML(t *testing.T) {
	r, err := LoadFromYAML([]byte(sampleRoster))
	require.NoError(t, err)

	assert.Equal(t, "product-squad", r.Name)
	require.Len(t, r.Agents, 3)
	assert.Equal(t, "pm", r.Agents[0].Key)
	assert.Equal(t, []string{"user value", "time to market"}, r.Agents[0].Priorities)
	assert.Equal(t, 0.7, r.Agents[0].Temperature)
	assert.True(t, r.Agents[2].SynthesisOnly)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRoster), 0o644))

	r, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Len(t, r.Agents, 3)

	_, err = LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "empty roster",
			yaml:    "agents: []",
			wantErr: "no agents",
		},
		{
			name: "duplicate key",
			yaml: `
agents:
  - {key: pm, name: A, role_prompt: x}
  - {key: pm, name: B, role_prompt: y}
`,
			wantErr: "duplicate agent key",
		},
		{
			name: "missing role prompt",
			yaml: `
agents:
  - {key: pm, name: A}
`,
			wantErr: "role_prompt is required",
		},
		{
			name: "two synthesis-only agents",
			yaml: `
agents:
  - {key: a, name: A, role_prompt: x}
  - {key: b, name: B, role_prompt: y, synthesis_only: true}
  - {key: c, name: C, role_prompt: z, synthesis_only: true}
`,
			wantErr: "synthesis-only",
		},
		{
			name: "only synthesis agents",
			yaml: `
agents:
  - {key: a, name: A, role_prompt: x, synthesis_only: true}
`,
			wantErr: "no assignable agents",
		},
		{
			name: "temperature out of range",
			yaml: `
agents:
  - {key: a, name: A, role_prompt: x, temperature: 3.5}
`,
			wantErr: "temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromYAML([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestAssignableAndFind(t *testing.T) {
	r, err := LoadFromYAML([]byte(sampleRoster))
	require.NoError(t, err)

	assignable := r.Assignable()
	require.Len(t, assignable, 2)
	assert.Equal(t, "pm", assignable[0].Key)
	assert.Equal(t, "eng", assignable[1].Key)

	agent, ok := r.Find("eng")
	require.True(t, ok)
	assert.Equal(t, "Marcus", agent.Name)

	_, ok = r.Find("nope")
	assert.False(t, ok)
}
