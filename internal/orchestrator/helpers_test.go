package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/looplinehq/quorum/internal/config"
	"github.com/looplinehq/quorum/internal/data"
	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/internal/logging"
	"github.com/looplinehq/quorum/pkg/types"
)

// scriptedProvider replays a fixed sequence of completion replies. Once the
// script runs out, every call fails, which doubles as the all-failures case.
type scriptedProvider struct {
	mu      sync.Mutex
	replies []scriptedReply
	calls   int
}

type scriptedReply struct {
	content   string
	toolCalls []llm.ToolCallResult
	err       error
}

func (p *scriptedProvider) push(content string) *scriptedProvider {
	p.replies = append(p.replies, scriptedReply{content: content})
	return p
}

func (p *scriptedProvider) pushWithTools(content string, calls ...llm.ToolCallResult) *scriptedProvider {
	p.replies = append(p.replies, scriptedReply{content: content, toolCalls: calls})
	return p
}

func (p *scriptedProvider) pushErr(err error) *scriptedProvider {
	p.replies = append(p.replies, scriptedReply{err: err})
	return p
}

func (p *scriptedProvider) Chat(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.replies) == 0 {
		return nil, errors.New("scripted provider: no reply queued")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	if reply.err != nil {
		return nil, reply.err
	}
	return &llm.ChatResponse{Content: reply.content, Model: "scripted", ToolCalls: reply.toolCalls}, nil
}

func (p *scriptedProvider) Name() string    { return "scripted" }
func (p *scriptedProvider) Available() bool { return true }

func newTestEngine(t *testing.T, provider llm.Provider) (*Engine, *data.Store) {
	t.Helper()
	store, err := data.NewMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cfg := config.Default().Orchestrator
	log := logging.New(&logging.Config{Level: logging.LevelError, Colored: false})
	return NewEngine(provider, store, cfg, log), store
}

// testRoster returns up to four assignable agents plus names used across
// the driver tests.
func testRoster(n int) []types.AgentDescriptor {
	all := []types.AgentDescriptor{
		{Key: "pm", Name: "Priya", Specialty: "product strategy", RolePrompt: "You are a product manager.", AllowedTools: []string{"create_ticket"}},
		{Key: "eng", Name: "Marcus", Specialty: "engineering", RolePrompt: "You are a staff engineer."},
		{Key: "design", Name: "Dana", Specialty: "design", RolePrompt: "You are a product designer."},
		{Key: "data", Name: "Quinn", Specialty: "analytics", RolePrompt: "You are a data analyst."},
	}
	return all[:n]
}

// failStore fails every operation, for exercising the persistence error
// paths.
type failStore struct{}

var errStoreDown = errors.New("store unavailable")

func (failStore) TopMemories(context.Context, string, string, string, int) ([]types.MemoryRecord, error) {
	return nil, errStoreDown
}
func (failStore) InsertMemories(context.Context, []types.MemoryRecord) error { return errStoreDown }
func (failStore) InsertPendingActions(context.Context, []types.PendingAction) error {
	return errStoreDown
}
func (failStore) InsertSession(context.Context, *types.OrchestrationSession) error {
	return errStoreDown
}
func (failStore) RecentConversation(context.Context, string, string, int) ([]types.ConversationTurn, error) {
	return nil, errStoreDown
}
