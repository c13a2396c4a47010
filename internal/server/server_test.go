package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/looplinehq/quorum/internal/config"
	"github.com/looplinehq/quorum/internal/data"
	"github.com/looplinehq/quorum/internal/llm"
	"github.com/looplinehq/quorum/internal/logging"
	"github.com/looplinehq/quorum/internal/orchestrator"
)

// fakeProvider replays queued completion replies.
type fakeProvider struct {
	mu      sync.Mutex
	replies []string
}

func (p *fakeProvider) Chat(_ context.Context, _ *llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.replies) == 0 {
		return nil, errors.New("no reply queued")
	}
	reply := p.replies[0]
	p.replies = p.replies[1:]
	return &llm.ChatResponse{Content: reply}, nil
}

func (p *fakeProvider) Name() string    { return "fake" }
func (p *fakeProvider) Available() bool { return true }

func newTestServer(t *testing.T, provider llm.Provider, serverCfg config.ServerConfig) (*Server, *data.Store) {
	t.Helper()
	store, err := data.NewMemoryDB()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logging.New(&logging.Config{Level: logging.LevelError, Colored: false})
	engine := orchestrator.NewEngine(provider, store, config.Default().Orchestrator, log)
	return New(serverCfg, engine, store, provider, log), store
}

const turnBody = `{
  "user_id": "u1",
  "message": "How do I reset a password?",
  "roster": [
    {"key": "pm", "name": "Priya", "role_prompt": "You are a product manager."},
    {"key": "eng", "name": "Marcus", "role_prompt": "You are an engineer."}
  ]
}`

func TestHandleTurn(t *testing.T) {
	provider := &fakeProvider{replies: []string{
		`{"goals": ["g"], "assignedAgents": [{"agentKey": "pm", "task": "answer", "priority": 1}]}`,
		`Use the account settings page.
{"stance": "Self-service reset is the right path", "confidence": 0.9}`,
	}}
	srv, store := newTestServer(t, provider, config.ServerConfig{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/turns", strings.NewReader(turnBody))
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result orchestrator.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.Len(t, result.Responses, 1)
	assert.Equal(t, "pm", result.Responses[0].AgentKey)
	assert.Equal(t, 1, result.Round)
	assert.NotEmpty(t, result.SessionID)

	// The exchange was appended to the stored thread.
	turns, err := store.RecentConversation(context.Background(), "u1", "", 10)
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "user", turns[0].Role)
	assert.Equal(t, "assistant", turns[1].Role)
}

func TestHandleTurnValidation(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{}, config.ServerConfig{})
	handler := srv.Handler()

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json"},
		{"missing user", `{"message": "hi", "roster": [{"key": "a", "name": "A", "role_prompt": "x"}]}`},
		{"missing message", `{"user_id": "u1", "roster": [{"key": "a", "name": "A", "role_prompt": "x"}]}`},
		{"missing roster", `{"user_id": "u1", "message": "hi"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodPost, "/v1/turns", bytes.NewReader([]byte(tt.body)))
			handler.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/turns", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{}, config.ServerConfig{})

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var status statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "ok", status.Status)
	assert.Equal(t, "fake", status.Provider.Name)
	assert.Equal(t, "ok", status.Store)
}

func TestAPIKeyGate(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("topsecret"), bcrypt.MinCost)
	require.NoError(t, err)
	srv, _ := newTestServer(t, &fakeProvider{}, config.ServerConfig{APIKeys: []string{string(hash)}})
	handler := srv.Handler()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/v1/status", nil)
	req.Header.Set("Authorization", "Bearer topsecret")
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamReceivesEvents(t *testing.T) {
	srv, _ := newTestServer(t, &fakeProvider{}, config.ServerConfig{})

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/stream"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for the hub to register the client before broadcasting.
	require.Eventually(t, func() bool { return srv.hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	srv.hub.SynthesisReady("a summary")

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, message, err := conn.ReadMessage()
	require.NoError(t, err)

	var event TurnEvent
	require.NoError(t, json.Unmarshal(message, &event))
	assert.Equal(t, EventSynthesisReady, event.Type)
	assert.Equal(t, "a summary", event.Payload)
}
