package orchestrator

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/looplinehq/quorum/pkg/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// MEMORY WRITE PATH
// ═══════════════════════════════════════════════════════════════════════════════

const (
	// minFactLength filters throwaway key points from memory.
	minFactLength = 20
	// minPreferenceLength filters trivial stances.
	minPreferenceLength = 10
	// preferenceImportance is fixed; facts inherit the response confidence.
	preferenceImportance = 0.6
)

// extractMemories derives durable memory records from a turn's responses:
// substantial key points become facts at the response's confidence, and a
// substantial stance becomes one preference. Apart from generated ids and
// timestamps this is a pure function of the response set.
func extractMemories(responses []types.ParsedAgentResponse, userID, squadID string) []types.MemoryRecord {
	now := time.Now().UTC()
	var records []types.MemoryRecord

	for _, resp := range responses {
		for _, point := range resp.KeyPoints {
			if len(strings.TrimSpace(point)) <= minFactLength {
				continue
			}
			records = append(records, types.MemoryRecord{
				ID:         uuid.New().String(),
				AgentKey:   resp.AgentKey,
				UserID:     userID,
				SquadID:    squadID,
				Type:       types.MemoryFact,
				Content:    strings.TrimSpace(point),
				Importance: resp.Confidence,
				CreatedAt:  now,
			})
		}
		if stance := strings.TrimSpace(resp.Stance); len(stance) > minPreferenceLength {
			records = append(records, types.MemoryRecord{
				ID:         uuid.New().String(),
				AgentKey:   resp.AgentKey,
				UserID:     userID,
				SquadID:    squadID,
				Type:       types.MemoryPreference,
				Content:    stance,
				Importance: preferenceImportance,
				CreatedAt:  now,
			})
		}
	}
	return records
}

// persistMemories batch-inserts the extracted records. A storage failure is
// logged and yields an empty list; it never fails the turn.
func (e *Engine) persistMemories(ctx *turnContext, responses []types.ParsedAgentResponse) []types.MemoryRecord {
	records := extractMemories(responses, ctx.req.UserID, ctx.req.SquadID)
	if len(records) == 0 {
		return nil
	}
	if err := e.store.InsertMemories(ctx.ctx, records); err != nil {
		e.log.Warn("memory write failed, dropping %d records: %v", len(records), err)
		return nil
	}
	return records
}
