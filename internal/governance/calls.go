package governance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Org call states: pending, then running, then complete or failed.
const (
	CallPending  = "pending"
	CallRunning  = "running"
	CallComplete = "complete"
	CallFailed   = "failed"
)

// OrgCall is one delegated task from a caller org to a target org.
type OrgCall struct {
	CallID      string     `json:"call_id"`
	SessionID   string     `json:"session_id,omitempty"`
	CallerOrg   string     `json:"caller_org"`
	TargetOrg   string     `json:"target_org"`
	Task        string     `json:"task"`
	Status      string     `json:"status"`
	Result      string     `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// CallService runs the inter-org delegation workflow. Delegation is a tool
// call like any other: "call_dev_org" must be granted to the caller and is
// subject to its denial rules.
type CallService struct {
	db     *sql.DB
	engine *Engine
}

// NewCallService creates the delegation service.
func NewCallService(db *sql.DB, engine *Engine) *CallService {
	return &CallService{db: db, engine: engine}
}

// CallTool maps a target org id to the tool name that gates calling it,
// e.g. "dev-org" to "call_dev_org".
func CallTool(targetOrg string) string {
	return "call_" + strings.ReplaceAll(targetOrg, "-", "_")
}

// Delegate checks governance for the caller and, if allowed, records a
// pending call to the target org. The governance decision is returned either
// way so denied delegations surface their reason.
func (s *CallService) Delegate(ctx context.Context, sessionID, callerOrg, targetOrg, task string) (*OrgCall, Decision, error) {
	if task == "" {
		return nil, Decision{}, fmt.Errorf("%w: task is required", store.ErrValidation)
	}
	if _, err := s.engine.orgs.Org(ctx, targetOrg); err != nil {
		return nil, Decision{}, err
	}

	d := s.engine.Check(ctx, Request{
		SessionID: sessionID,
		OrgID:     callerOrg,
		Tool:      CallTool(targetOrg),
		Params:    map[string]any{"target_org": targetOrg, "task": task},
	})
	if !d.Allowed() {
		return nil, d, nil
	}

	call := &OrgCall{
		CallID:    uuid.NewString(),
		SessionID: sessionID,
		CallerOrg: callerOrg,
		TargetOrg: targetOrg,
		Task:      task,
		Status:    CallPending,
		CreatedAt: time.Now(),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_calls (call_id, session_id, caller_org, target_org, task, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		call.CallID, nullable(sessionID), callerOrg, targetOrg, task, CallPending)
	if err != nil {
		return nil, d, fmt.Errorf("record org call: %w", err)
	}
	return call, d, nil
}

// Start transitions a pending call to running.
func (s *CallService) Start(ctx context.Context, callID string) error {
	return s.transition(ctx, callID, CallPending, CallRunning, "", false)
}

// Complete finishes a call with its result.
func (s *CallService) Complete(ctx context.Context, callID, result string) error {
	return s.transition(ctx, callID, CallRunning, CallComplete, result, true)
}

// Fail finishes a call with an error description.
func (s *CallService) Fail(ctx context.Context, callID, result string) error {
	return s.transition(ctx, callID, CallRunning, CallFailed, result, true)
}

func (s *CallService) transition(ctx context.Context, callID, from, to, result string, final bool) error {
	query := `UPDATE org_calls SET status = ?`
	args := []any{to}
	if result != "" {
		query += `, result = ?`
		args = append(args, result)
	}
	if final {
		query += `, completed_at = CURRENT_TIMESTAMP`
	}
	query += ` WHERE call_id = ? AND status = ?`
	args = append(args, callID, from)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("org call %s not in state %s: %w", callID, from, store.ErrNotFound)
	}
	return nil
}

// Call returns one delegation by id.
func (s *CallService) Call(ctx context.Context, callID string) (*OrgCall, error) {
	var c OrgCall
	var session, result sql.NullString
	var completed sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT call_id, session_id, caller_org, target_org, task, status, result, created_at, completed_at
		FROM org_calls WHERE call_id = ?`, callID).Scan(
		&c.CallID, &session, &c.CallerOrg, &c.TargetOrg, &c.Task, &c.Status, &result, &c.CreatedAt, &completed)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("org call %s: %w", callID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	c.SessionID = session.String
	c.Result = result.String
	if completed.Valid {
		t := completed.Time
		c.CompletedAt = &t
	}
	return &c, nil
}

// Calls lists delegations, newest first, optionally filtered by status.
func (s *CallService) Calls(ctx context.Context, status string, limit int) ([]OrgCall, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT call_id, session_id, caller_org, target_org, task, status, result, created_at, completed_at FROM org_calls`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []OrgCall
	for rows.Next() {
		var c OrgCall
		var session, result sql.NullString
		var completed sql.NullTime
		if err := rows.Scan(&c.CallID, &session, &c.CallerOrg, &c.TargetOrg, &c.Task,
			&c.Status, &result, &c.CreatedAt, &completed); err != nil {
			return nil, err
		}
		c.SessionID = session.String
		c.Result = result.String
		if completed.Valid {
			t := completed.Time
			c.CompletedAt = &t
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
