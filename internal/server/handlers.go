package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/looplinehq/quorum/internal/orchestrator"
	"github.com/looplinehq/quorum/pkg/types"
)

// maxTurnBodySize bounds inbound turn payloads (1MB).
const maxTurnBodySize = 1 << 20

// handleTurn executes one deliberation turn.
// POST /v1/turns
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req orchestrator.TurnRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTurnBodySize))
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	if len(req.Roster) == 0 {
		writeError(w, http.StatusBadRequest, "roster is required")
		return
	}

	// When the caller sends no history, fall back to the stored thread.
	if len(req.History) == 0 {
		req.History = s.engine.PlanningHistory(r.Context(), req.UserID, req.SquadID)
	}

	result, err := s.engine.RunTurn(r.Context(), &req)
	if err != nil {
		s.log.Warn("turn failed: %v", err)
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	s.appendConversation(r, &req, result)
	writeJSON(w, http.StatusOK, result)
}

// appendConversation records the exchange so future turns have history to
// plan against. Best effort.
func (s *Server) appendConversation(r *http.Request, req *orchestrator.TurnRequest, result *orchestrator.TurnResult) {
	now := time.Now().UTC()
	turns := []types.ConversationTurn{{
		ID:        uuid.New().String(),
		UserID:    req.UserID,
		SquadID:   req.SquadID,
		Role:      "user",
		Content:   req.Message,
		CreatedAt: now,
	}}

	if reply := assistantReply(result); reply != "" {
		turns = append(turns, types.ConversationTurn{
			ID:        uuid.New().String(),
			UserID:    req.UserID,
			SquadID:   req.SquadID,
			Role:      "assistant",
			Content:   reply,
			CreatedAt: now.Add(time.Millisecond),
		})
	}

	for _, turn := range turns {
		if err := s.store.AppendConversationTurn(r.Context(), turn); err != nil {
			s.log.Warn("conversation append failed: %v", err)
			return
		}
	}
}

// assistantReply picks what to record as the thread's reply: the synthesis
// when present, otherwise the first response.
func assistantReply(result *orchestrator.TurnResult) string {
	if result.Synthesis != "" {
		return result.Synthesis
	}
	if len(result.Responses) > 0 {
		return result.Responses[0].Content
	}
	return ""
}

// statusResponse is the GET /v1/status payload.
type statusResponse struct {
	Status    string         `json:"status"`
	Timestamp string         `json:"timestamp"`
	Provider  providerStatus `json:"provider"`
	Store     string         `json:"store"`
	Clients   int            `json:"stream_clients"`
}

type providerStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
}

// handleStatus reports provider and store health.
// GET /v1/status
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	resp := statusResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Provider:  providerStatus{Name: s.provider.Name(), Available: s.provider.Available()},
		Store:     "ok",
		Clients:   s.hub.ClientCount(),
	}
	if err := s.store.Health(); err != nil {
		resp.Status = "degraded"
		resp.Store = err.Error()
	}

	writeJSON(w, http.StatusOK, resp)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
