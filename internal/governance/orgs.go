// Package governance implements the permission state machine for org tool
// calls: grants, denials, approvals, delegation, and the audit ledger.
package governance

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Denial types. Each type matches a different part of a tool-call request.
const (
	// DenialTool matches the tool name exactly.
	DenialTool = "tool"
	// DenialShell matches shell tools; the pattern globs the command.
	DenialShell = "shell"
	// DenialWorkspace matches the request path by prefix.
	DenialWorkspace = "workspace"
	// DenialPattern matches the request path's base name by glob.
	DenialPattern = "pattern"
)

// Org is a named group of agents sharing models, a system prompt, and a
// permission profile.
type Org struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	ModelPrimary   string `json:"model_primary"`
	ModelSecondary string `json:"model_secondary,omitempty"`
	SystemPrompt   string `json:"system_prompt,omitempty"`
	Enabled        bool   `json:"enabled"`
}

// ToolGrant permits an org to use a tool, optionally gated by approval.
type ToolGrant struct {
	OrgID            string `json:"org_id"`
	ToolName         string `json:"tool_name"`
	Enabled          bool   `json:"enabled"`
	RequiresApproval bool   `json:"requires_approval"`
}

// Denial forbids a class of requests for an org. Denials always win over
// grants.
type Denial struct {
	OrgID   string `json:"org_id"`
	Type    string `json:"denial_type"`
	Pattern string `json:"pattern"`
	Reason  string `json:"reason"`
}

// Store provides org configuration persistence.
type Store struct {
	db *sql.DB
}

// NewStore creates an org store over the shared database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// UpsertOrg creates or refreshes an org. Re-seeding an existing org updates
// its models and prompt without touching grants or denials.
func (s *Store) UpsertOrg(ctx context.Context, o Org) error {
	if o.ID == "" || o.Name == "" {
		return fmt.Errorf("%w: org id and name are required", store.ErrValidation)
	}
	if o.ModelPrimary == "" {
		return fmt.Errorf("%w: org %s needs a primary model", store.ErrValidation, o.ID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orgs (id, name, description, model_primary, model_secondary, system_prompt, enabled)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			model_primary = excluded.model_primary,
			model_secondary = excluded.model_secondary,
			system_prompt = excluded.system_prompt`,
		o.ID, o.Name, o.Description, o.ModelPrimary, o.ModelSecondary, o.SystemPrompt, o.Enabled)
	return err
}

// Org returns one org by id.
func (s *Store) Org(ctx context.Context, id string) (*Org, error) {
	var o Org
	var secondary sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description, model_primary, model_secondary, system_prompt, enabled
		FROM orgs WHERE id = ?`, id).Scan(
		&o.ID, &o.Name, &o.Description, &o.ModelPrimary, &secondary, &o.SystemPrompt, &o.Enabled)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("org %s: %w", id, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	o.ModelSecondary = secondary.String
	return &o, nil
}

// Orgs lists all orgs.
func (s *Store) Orgs(ctx context.Context) ([]Org, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, description, model_primary, model_secondary, system_prompt, enabled
		FROM orgs ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Org
	for rows.Next() {
		var o Org
		var secondary sql.NullString
		if err := rows.Scan(&o.ID, &o.Name, &o.Description, &o.ModelPrimary, &secondary, &o.SystemPrompt, &o.Enabled); err != nil {
			return nil, err
		}
		o.ModelSecondary = secondary.String
		out = append(out, o)
	}
	return out, rows.Err()
}

// SetOrgEnabled toggles an org without deleting its configuration.
func (s *Store) SetOrgEnabled(ctx context.Context, id string, enabled bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE orgs SET enabled = ? WHERE id = ?`, enabled, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("org %s: %w", id, store.ErrNotFound)
	}
	return nil
}

// GrantTool upserts a tool grant for an org.
func (s *Store) GrantTool(ctx context.Context, g ToolGrant) error {
	if g.OrgID == "" || g.ToolName == "" {
		return fmt.Errorf("%w: org id and tool name are required", store.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_tools (org_id, tool_name, enabled, requires_approval)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(org_id, tool_name) DO UPDATE SET
			enabled = excluded.enabled,
			requires_approval = excluded.requires_approval`,
		g.OrgID, g.ToolName, g.Enabled, g.RequiresApproval)
	return err
}

// Grant returns the grant for (org, tool), or ErrNotFound.
func (s *Store) Grant(ctx context.Context, orgID, tool string) (*ToolGrant, error) {
	var g ToolGrant
	err := s.db.QueryRowContext(ctx, `
		SELECT org_id, tool_name, enabled, requires_approval
		FROM org_tools WHERE org_id = ? AND tool_name = ?`, orgID, tool).Scan(
		&g.OrgID, &g.ToolName, &g.Enabled, &g.RequiresApproval)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// Grants lists all grants for an org.
func (s *Store) Grants(ctx context.Context, orgID string) ([]ToolGrant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT org_id, tool_name, enabled, requires_approval
		FROM org_tools WHERE org_id = ? ORDER BY tool_name`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ToolGrant
	for rows.Next() {
		var g ToolGrant
		if err := rows.Scan(&g.OrgID, &g.ToolName, &g.Enabled, &g.RequiresApproval); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

// Deny upserts a denial rule for an org.
func (s *Store) Deny(ctx context.Context, d Denial) error {
	switch d.Type {
	case DenialTool, DenialShell, DenialWorkspace, DenialPattern:
	default:
		return fmt.Errorf("%w: invalid denial type %q", store.ErrValidation, d.Type)
	}
	if d.OrgID == "" || d.Pattern == "" {
		return fmt.Errorf("%w: org id and pattern are required", store.ErrValidation)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO org_denials (org_id, denial_type, pattern, reason)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(org_id, denial_type, pattern) DO UPDATE SET reason = excluded.reason`,
		d.OrgID, d.Type, d.Pattern, d.Reason)
	return err
}

// Denials lists all denial rules for an org.
func (s *Store) Denials(ctx context.Context, orgID string) ([]Denial, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT org_id, denial_type, pattern, reason
		FROM org_denials WHERE org_id = ? ORDER BY denial_type, pattern`, orgID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Denial
	for rows.Next() {
		var d Denial
		if err := rows.Scan(&d.OrgID, &d.Type, &d.Pattern, &d.Reason); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}
