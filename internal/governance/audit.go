package governance

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Audit entry types.
const (
	EntryToolCheck          = "tool_check"
	EntryApprovalResolution = "approval_resolution"
	EntryOrgCall            = "org_call"
)

// AuditEntry is one row of the append-only governance ledger. Ids are
// assigned by the database and strictly increase, so concurrent appends
// never collide and the ledger has a total order.
type AuditEntry struct {
	ID         int64          `json:"id"`
	SessionID  string         `json:"session_id,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
	EntryType  string         `json:"entry_type"`
	ToolName   string         `json:"tool_name,omitempty"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     string         `json:"result,omitempty"`
	Decision   string         `json:"decision,omitempty"`
	Violations []string       `json:"violations,omitempty"`
}

// Ledger is the append-only audit log. Entries are never updated or deleted.
type Ledger struct {
	db *sql.DB
}

// NewLedger creates an audit ledger over the shared database.
func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

// Append writes one entry and returns its id.
func (l *Ledger) Append(ctx context.Context, e AuditEntry) (int64, error) {
	var params, violations any
	if e.Parameters != nil {
		if b, err := json.Marshal(e.Parameters); err == nil {
			params = string(b)
		}
	}
	if len(e.Violations) > 0 {
		if b, err := json.Marshal(e.Violations); err == nil {
			violations = string(b)
		}
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log (session_id, entry_type, tool_name, parameters, result, decision, violations)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		nullable(e.SessionID), e.EntryType, nullable(e.ToolName), params, nullable(e.Result), nullable(e.Decision), violations)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Entries returns audit rows in id order, optionally filtered by session.
// limit <= 0 means the 100 most relevant (still id-ordered).
func (l *Ledger) Entries(ctx context.Context, sessionID string, limit int) ([]AuditEntry, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT id, session_id, timestamp, entry_type, tool_name, parameters, result, decision, violations FROM audit_log`
	var args []any
	if sessionID != "" {
		query += ` WHERE session_id = ?`
		args = append(args, sessionID)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AuditEntry
	for rows.Next() {
		var e AuditEntry
		var session, tool, params, result, decision, violations sql.NullString
		if err := rows.Scan(&e.ID, &session, &e.Timestamp, &e.EntryType, &tool, &params, &result, &decision, &violations); err != nil {
			return nil, err
		}
		e.SessionID = session.String
		e.ToolName = tool.String
		e.Result = result.String
		e.Decision = decision.String
		if params.Valid && params.String != "" {
			var m map[string]any
			if err := json.Unmarshal([]byte(params.String), &m); err == nil {
				e.Parameters = m
			}
		}
		if violations.Valid && violations.String != "" {
			var v []string
			if err := json.Unmarshal([]byte(violations.String), &v); err == nil {
				e.Violations = v
			}
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// Reverse into ascending id order; the query walks the index backwards
	// to make LIMIT keep the newest entries.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
