package retrieval

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Roles accepted by Remember.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is one stored conversation turn.
type Message struct {
	ID         int64          `json:"id"`
	SessionID  string         `json:"session_id"`
	Role       string         `json:"role"`
	Content    string         `json:"content"`
	Importance float64        `json:"importance"`
	ToolCalls  map[string]any `json:"tool_calls,omitempty"`
}

// RememberInput holds one conversation turn to persist.
type RememberInput struct {
	SessionID   string
	Role        string
	Content     string
	Vector      []float32 // optional
	Importance  float64   // 0 means the 0.5 default
	ToolCalls   map[string]any
	AgentSpecID int64 // optional, 0 = none
}

// Remember appends one conversation turn to session memory.
func (s *Service) Remember(ctx context.Context, in RememberInput) (int64, error) {
	if in.SessionID == "" {
		return 0, fmt.Errorf("%w: session id is required", store.ErrValidation)
	}
	switch in.Role {
	case RoleUser, RoleAssistant, RoleSystem, RoleTool:
	default:
		return 0, fmt.Errorf("%w: invalid role %q", store.ErrValidation, in.Role)
	}
	if in.Importance < 0 || in.Importance > 1 {
		return 0, fmt.Errorf("%w: importance %v out of range [0, 1]", store.ErrValidation, in.Importance)
	}
	importance := in.Importance
	if importance == 0 {
		importance = 0.5
	}

	var blob any
	if len(in.Vector) > 0 {
		blob = encodeFloat32s(in.Vector)
	}
	var calls any
	if in.ToolCalls != nil {
		b, err := json.Marshal(in.ToolCalls)
		if err != nil {
			return 0, fmt.Errorf("%w: tool calls not serializable: %v", store.ErrValidation, err)
		}
		calls = string(b)
	}
	var agentID any
	if in.AgentSpecID != 0 {
		agentID = in.AgentSpecID
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO memory_conversations (session_id, agent_spec_id, role, content, embedding, importance, tool_calls)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.SessionID, agentID, in.Role, in.Content, blob, importance, calls)
	if err != nil {
		return 0, fmt.Errorf("remember: %w", err)
	}
	return res.LastInsertId()
}

// Recall returns up to k turns for a session, most important first, ties
// broken by recency.
func (s *Service) Recall(ctx context.Context, sessionID string, k int) ([]Message, error) {
	if k <= 0 {
		k = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, importance, tool_calls
		FROM memory_conversations
		WHERE session_id = ?
		ORDER BY importance DESC, created_at DESC, id DESC
		LIMIT ?`, sessionID, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		var calls sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Importance, &calls); err != nil {
			return nil, err
		}
		if calls.Valid && calls.String != "" {
			var tc map[string]any
			if err := json.Unmarshal([]byte(calls.String), &tc); err == nil {
				m.ToolCalls = tc
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// SearchMemory ranks a session's turns by cosine similarity to the query
// vector. Turns without an embedding are skipped. Returns empty when vector
// capability is absent.
func (s *Service) SearchMemory(ctx context.Context, sessionID string, queryVector []float32, k int) ([]Message, error) {
	if !s.vectors || len(queryVector) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, importance, embedding
		FROM memory_conversations
		WHERE session_id = ? AND embedding IS NOT NULL
		ORDER BY id`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	type scoredMsg struct {
		msg   Message
		score float64
	}
	var scored []scoredMsg
	for rows.Next() {
		var m Message
		var blob []byte
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.Importance, &blob); err != nil {
			return nil, err
		}
		vec := decodeFloat32s(blob)
		if len(vec) != len(queryVector) {
			continue
		}
		scored = append(scored, scoredMsg{msg: m, score: cosineSimilarity(queryVector, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(scored, func(i, j int) bool { return scored[i].score > scored[j].score })
	if len(scored) > k {
		scored = scored[:k]
	}
	out := make([]Message, 0, len(scored))
	for _, sm := range scored {
		out = append(out, sm.msg)
	}
	return out, nil
}

// ForgetSession deletes all memory for a session and reports how many turns
// were removed.
func (s *Service) ForgetSession(ctx context.Context, sessionID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memory_conversations WHERE session_id = ?`, sessionID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
