package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/looplinehq/quorum/pkg/types"
)

func TestClassifyComplexity(t *testing.T) {
	tests := []struct {
		name       string
		message    string
		rosterSize int
		want       types.Complexity
	}{
		{
			name:       "lookup question is simple",
			message:    "How do I reset a password?",
			rosterSize: 3,
			want:       types.ComplexitySimple,
		},
		{
			name:       "definition is simple",
			message:    "What is a sprint retrospective? Explain briefly.",
			rosterSize: 2,
			want:       types.ComplexitySimple,
		},
		{
			name:       "two complex cues is complex",
			message:    "Should we migrate to a new architecture and what's the trade-off on timeline?",
			rosterSize: 2,
			want:       types.ComplexityComplex,
		},
		{
			name:       "large roster is complex regardless of message",
			message:    "How do I reset a password?",
			rosterSize: 4,
			want:       types.ComplexityComplex,
		},
		{
			name:       "single complex cue is moderate",
			message:    "What is our roadmap for Q3?",
			rosterSize: 2,
			want:       types.ComplexityModerate,
		},
		{
			name:       "no cues at all is moderate",
			message:    "Thanks for the summary yesterday.",
			rosterSize: 2,
			want:       types.ComplexityModerate,
		},
		{
			name:       "empty message is moderate",
			message:    "",
			rosterSize: 1,
			want:       types.ComplexityModerate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, classifyComplexity(tt.message, tt.rosterSize))
		})
	}
}
