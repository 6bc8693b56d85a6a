package governance

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Approval states.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalDenied   = "denied"
)

// Approval is one pending or resolved approval request.
type Approval struct {
	ApprovalID string         `json:"approval_id"`
	SessionID  string         `json:"session_id,omitempty"`
	OrgID      string         `json:"org_id"`
	ToolName   string         `json:"tool_name"`
	Params     map[string]any `json:"params,omitempty"`
	Reason     string         `json:"reason"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy string         `json:"resolved_by,omitempty"`
}

// ApprovalManager handles approval lifecycle: create, wait, resolve.
// Requests persist across restarts; a stale pending approval stays pending
// until an operator resolves it.
type ApprovalManager struct {
	db    *sql.DB
	audit *Ledger

	mu      sync.Mutex
	pending map[string]chan bool
}

// NewApprovalManager creates an approval manager. The audit ledger may be
// nil, in which case resolutions are not journaled.
func NewApprovalManager(db *sql.DB, audit *Ledger) *ApprovalManager {
	return &ApprovalManager{
		db:      db,
		audit:   audit,
		pending: make(map[string]chan bool),
	}
}

// Create registers a new approval request and returns its id.
func (m *ApprovalManager) Create(ctx context.Context, sessionID, orgID, tool string, params map[string]any, reason string) (string, error) {
	id := newApprovalID()

	var paramsJSON any
	if params != nil {
		if b, err := json.Marshal(params); err == nil {
			paramsJSON = string(b)
		}
	}
	_, err := m.db.ExecContext(ctx, `
		INSERT INTO pending_approvals (approval_id, session_id, org_id, tool_name, tool_params, reason, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, nullable(sessionID), orgID, tool, paramsJSON, reason, ApprovalPending)
	if err != nil {
		return "", fmt.Errorf("create approval: %w", err)
	}

	ch := make(chan bool, 1)
	m.mu.Lock()
	m.pending[id] = ch
	m.mu.Unlock()
	slog.Info("Approval: created", "approval_id", id, "org", orgID, "tool", tool)
	return id, nil
}

// Wait blocks until the approval is resolved in-process or the context
// expires. Resolutions made from another process are visible via Get, not
// Wait.
func (m *ApprovalManager) Wait(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	ch, ok := m.pending[id]
	m.mu.Unlock()
	if !ok {
		return false, fmt.Errorf("approval %s: %w", id, store.ErrNotFound)
	}

	select {
	case approved := <-ch:
		m.forget(id)
		return approved, nil
	case <-ctx.Done():
		// The request stays pending; an operator can still resolve it.
		m.forget(id)
		return false, ctx.Err()
	}
}

// Resolve transitions a pending approval to approved or denied, wakes any
// in-process waiter, and appends an audit entry with the final decision.
// The original check's audit entry is never rewritten.
func (m *ApprovalManager) Resolve(ctx context.Context, id string, approved bool, resolvedBy string) error {
	status := ApprovalDenied
	decision := DecisionDenied
	if approved {
		status = ApprovalApproved
		decision = DecisionAllowed
	}

	res, err := m.db.ExecContext(ctx, `
		UPDATE pending_approvals
		SET status = ?, resolved_at = CURRENT_TIMESTAMP, resolved_by = ?
		WHERE approval_id = ? AND status = ?`,
		status, nullable(resolvedBy), id, ApprovalPending)
	if err != nil {
		return fmt.Errorf("resolve approval: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("pending approval %s: %w", id, store.ErrNotFound)
	}

	a, err := m.Get(ctx, id)
	if err != nil {
		return err
	}

	m.mu.Lock()
	ch, ok := m.pending[id]
	m.mu.Unlock()
	if ok {
		select {
		case ch <- approved:
		default:
		}
	}

	slog.Info("Approval: resolved", "approval_id", id, "status", status, "by", resolvedBy)
	if m.audit != nil {
		_, _ = m.audit.Append(ctx, AuditEntry{
			SessionID:  a.SessionID,
			EntryType:  EntryApprovalResolution,
			ToolName:   a.ToolName,
			Parameters: a.Params,
			Result:     fmt.Sprintf("approval %s %s by %s", id, status, resolvedBy),
			Decision:   decision,
		})
	}
	return nil
}

// Get returns one approval by id.
func (m *ApprovalManager) Get(ctx context.Context, id string) (*Approval, error) {
	row := m.db.QueryRowContext(ctx, `
		SELECT approval_id, session_id, org_id, tool_name, tool_params, reason, status, created_at, resolved_at, resolved_by
		FROM pending_approvals WHERE approval_id = ?`, id)
	a, err := scanApproval(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("approval %s: %w", id, store.ErrNotFound)
	}
	return a, err
}

// Pending lists unresolved approvals, oldest first.
func (m *ApprovalManager) Pending(ctx context.Context) ([]Approval, error) {
	rows, err := m.db.QueryContext(ctx, `
		SELECT approval_id, session_id, org_id, tool_name, tool_params, reason, status, created_at, resolved_at, resolved_by
		FROM pending_approvals WHERE status = ? ORDER BY id`, ApprovalPending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Approval
	for rows.Next() {
		a, err := scanApproval(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// approvedFor reports whether a resolved-approved request exists for this
// (session, org, tool). A granted approval covers subsequent identical
// requests in the same session.
func (m *ApprovalManager) approvedFor(ctx context.Context, sessionID, orgID, tool string) (bool, error) {
	var n int
	err := m.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM pending_approvals
		WHERE org_id = ? AND tool_name = ? AND status = ?
		  AND (session_id = ? OR (session_id IS NULL AND ? = ''))`,
		orgID, tool, ApprovalApproved, sessionID, sessionID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanApproval(r rowScanner) (*Approval, error) {
	var a Approval
	var session, params, resolvedBy sql.NullString
	var resolvedAt sql.NullTime
	if err := r.Scan(&a.ApprovalID, &session, &a.OrgID, &a.ToolName, &params,
		&a.Reason, &a.Status, &a.CreatedAt, &resolvedAt, &resolvedBy); err != nil {
		return nil, err
	}
	a.SessionID = session.String
	a.ResolvedBy = resolvedBy.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		a.ResolvedAt = &t
	}
	if params.Valid && params.String != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(params.String), &m); err == nil {
			a.Params = m
		}
	}
	return &a, nil
}

func (m *ApprovalManager) forget(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	m.mu.Unlock()
}

func newApprovalID() string {
	var b [8]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return fmt.Sprintf("appr-%d", time.Now().UnixNano())
}
