// Package data provides the unified store for memories, pending actions,
// deliberation sessions, and conversation history.
package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MEMORY OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// InsertMemories batch-inserts memory records in a single transaction.
// Records must already carry generated ids.
func (s *Store) InsertMemories(ctx context.Context, records []types.MemoryRecord) error {
	if len(records) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO agent_memories (id, agent_key, user_id, squad_id, type, content, importance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, rec := range records {
		if rec.ID == "" {
			return fmt.Errorf("memory record ID cannot be empty")
		}
		createdAt := rec.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query,
			rec.ID, rec.AgentKey, rec.UserID, nullString(rec.SquadID),
			string(rec.Type), rec.Content, rec.Importance, createdAt,
		); err != nil {
			return fmt.Errorf("insert memory %s: %w", rec.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit memories: %w", err)
	}

	return nil
}

// TopMemories returns at most limit memories for (agentKey, userID, squadID),
// ordered by importance descending. An empty squadID scopes the query to
// records without a squad.
func (s *Store) TopMemories(ctx context.Context, agentKey, userID, squadID string, limit int) ([]types.MemoryRecord, error) {
	query := `
		SELECT id, agent_key, user_id, squad_id, type, content, importance, created_at
		FROM agent_memories
		WHERE agent_key = ? AND user_id = ? AND (squad_id = ? OR (? = '' AND squad_id IS NULL))
		ORDER BY importance DESC, created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, agentKey, userID, squadID, squadID, limit)
	if err != nil {
		return nil, fmt.Errorf("query memories: %w", err)
	}
	defer rows.Close()

	var records []types.MemoryRecord
	for rows.Next() {
		var rec types.MemoryRecord
		var squad sql.NullString
		var memType string
		if err := rows.Scan(&rec.ID, &rec.AgentKey, &rec.UserID, &squad, &memType, &rec.Content, &rec.Importance, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan memory: %w", err)
		}
		rec.Type = types.MemoryType(memType)
		if squad.Valid {
			rec.SquadID = squad.String
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// ═══════════════════════════════════════════════════════════════════════════════
// PENDING ACTION OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// InsertPendingActions persists surfaced tool-call requests for approval.
func (s *Store) InsertPendingActions(ctx context.Context, actions []types.PendingAction) error {
	if len(actions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO pending_actions (id, user_id, squad_id, agent_key, agent_name, action_type, label, args, status, priority, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	for _, a := range actions {
		if a.ID == "" {
			return fmt.Errorf("pending action ID cannot be empty")
		}
		argsJSON, err := json.Marshal(a.Args)
		if err != nil {
			return fmt.Errorf("marshal action args: %w", err)
		}
		createdAt := a.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx, query,
			a.ID, a.UserID, nullString(a.SquadID), a.AgentKey, a.AgentName,
			a.ActionType, a.Label, string(argsJSON), string(a.Status), a.Priority, createdAt,
		); err != nil {
			return fmt.Errorf("insert pending action %s: %w", a.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pending actions: %w", err)
	}

	return nil
}

// PendingActionsForUser returns pending actions for a user, newest first.
func (s *Store) PendingActionsForUser(ctx context.Context, userID string, limit int) ([]types.PendingAction, error) {
	query := `
		SELECT id, user_id, squad_id, agent_key, agent_name, action_type, label, args, status, priority, created_at
		FROM pending_actions
		WHERE user_id = ? AND status = 'pending'
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending actions: %w", err)
	}
	defer rows.Close()

	var actions []types.PendingAction
	for rows.Next() {
		var a types.PendingAction
		var squad sql.NullString
		var argsJSON, status string
		if err := rows.Scan(&a.ID, &a.UserID, &squad, &a.AgentKey, &a.AgentName, &a.ActionType, &a.Label, &argsJSON, &status, &a.Priority, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan pending action: %w", err)
		}
		if squad.Valid {
			a.SquadID = squad.String
		}
		a.Status = types.ToolCallStatus(status)
		if err := json.Unmarshal([]byte(argsJSON), &a.Args); err != nil {
			return nil, fmt.Errorf("unmarshal action args: %w", err)
		}
		actions = append(actions, a)
	}

	return actions, rows.Err()
}

// ═══════════════════════════════════════════════════════════════════════════════
// SESSION OPERATIONS
// ═══════════════════════════════════════════════════════════════════════════════

// InsertSession persists one deliberation session record.
func (s *Store) InsertSession(ctx context.Context, sess *types.OrchestrationSession) error {
	if sess.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}

	agentKeys, err := json.Marshal(sess.AgentKeys)
	if err != nil {
		return fmt.Errorf("marshal agent keys: %w", err)
	}
	goals, err := json.Marshal(sess.Goals)
	if err != nil {
		return fmt.Errorf("marshal goals: %w", err)
	}
	tasks, err := json.Marshal(sess.Tasks)
	if err != nil {
		return fmt.Errorf("marshal tasks: %w", err)
	}
	rounds, err := json.Marshal(sess.Rounds)
	if err != nil {
		return fmt.Errorf("marshal rounds: %w", err)
	}

	createdAt := sess.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO orchestration_sessions (id, user_id, squad_id, context_id, session_type, current_round, current_phase, agent_keys, goals, tasks, rounds, conductor_notes, active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		sess.ID, sess.UserID, nullString(sess.SquadID), nullString(sess.ContextID),
		sess.SessionType, sess.CurrentRound, string(sess.CurrentPhase),
		string(agentKeys), string(goals), string(tasks), string(rounds),
		nullString(sess.ConductorNotes), boolToInt(sess.Active), createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetSession retrieves a session by id.
func (s *Store) GetSession(ctx context.Context, id string) (*types.OrchestrationSession, error) {
	query := `
		SELECT id, user_id, squad_id, context_id, session_type, current_round, current_phase, agent_keys, goals, tasks, rounds, conductor_notes, active, created_at
		FROM orchestration_sessions
		WHERE id = ?
	`

	var sess types.OrchestrationSession
	var squad, contextID, notes sql.NullString
	var phase, agentKeys, goals, tasks, rounds string
	var active int

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&sess.ID, &sess.UserID, &squad, &contextID, &sess.SessionType,
		&sess.CurrentRound, &phase, &agentKeys, &goals, &tasks, &rounds,
		&notes, &active, &sess.CreatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return nil, fmt.Errorf("query session: %w", err)
	}

	sess.CurrentPhase = types.Phase(phase)
	sess.Active = active != 0
	if squad.Valid {
		sess.SquadID = squad.String
	}
	if contextID.Valid {
		sess.ContextID = contextID.String
	}
	if notes.Valid {
		sess.ConductorNotes = notes.String
	}
	if err := json.Unmarshal([]byte(agentKeys), &sess.AgentKeys); err != nil {
		return nil, fmt.Errorf("unmarshal agent keys: %w", err)
	}
	if err := json.Unmarshal([]byte(goals), &sess.Goals); err != nil {
		return nil, fmt.Errorf("unmarshal goals: %w", err)
	}
	if err := json.Unmarshal([]byte(tasks), &sess.Tasks); err != nil {
		return nil, fmt.Errorf("unmarshal tasks: %w", err)
	}
	if err := json.Unmarshal([]byte(rounds), &sess.Rounds); err != nil {
		return nil, fmt.Errorf("unmarshal rounds: %w", err)
	}

	return &sess, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// CONVERSATION HISTORY
// ═══════════════════════════════════════════════════════════════════════════════

// AppendConversationTurn records one message of the thread being deliberated.
func (s *Store) AppendConversationTurn(ctx context.Context, turn types.ConversationTurn) error {
	if turn.ID == "" {
		return fmt.Errorf("conversation turn ID cannot be empty")
	}

	createdAt := turn.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	query := `
		INSERT INTO conversation_turns (id, user_id, squad_id, role, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		turn.ID, turn.UserID, nullString(turn.SquadID), turn.Role, turn.Content, createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert conversation turn: %w", err)
	}

	return nil
}

// RecentConversation returns the most recent turns for a user scope,
// oldest first so callers can feed them straight into a prompt.
func (s *Store) RecentConversation(ctx context.Context, userID, squadID string, limit int) ([]types.ConversationTurn, error) {
	query := `
		SELECT id, user_id, squad_id, role, content, created_at
		FROM conversation_turns
		WHERE user_id = ? AND (squad_id = ? OR (? = '' AND squad_id IS NULL))
		ORDER BY created_at DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, userID, squadID, squadID, limit)
	if err != nil {
		return nil, fmt.Errorf("query conversation: %w", err)
	}
	defer rows.Close()

	var turns []types.ConversationTurn
	for rows.Next() {
		var t types.ConversationTurn
		var squad sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &squad, &t.Role, &t.Content, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan conversation turn: %w", err)
		}
		if squad.Valid {
			t.SquadID = squad.String
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse to chronological order
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}

	return turns, nil
}

// ═══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ═══════════════════════════════════════════════════════════════════════════════

// nullString converts empty strings to NULL for optional columns.
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
