package governance

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
)

// Decision states. A request moves REQUESTED to one of these; a pending
// approval later resolves to allowed or denied.
const (
	DecisionAllowed         = "allow"
	DecisionDenied          = "deny"
	DecisionPendingApproval = "pending_approval"
)

// Request describes one tool call to authorize.
type Request struct {
	SessionID string
	OrgID     string
	Tool      string
	Params    map[string]any
}

// Decision is the outcome of a governance check. A denied decision is a
// value, not an error.
type Decision struct {
	State      string   `json:"state"`
	Reason     string   `json:"reason"`
	Violations []string `json:"violations,omitempty"`
	// ApprovalID is set when State is pending_approval.
	ApprovalID string `json:"approval_id,omitempty"`
}

// Allowed reports whether the tool call may proceed now.
func (d Decision) Allowed() bool { return d.State == DecisionAllowed }

// Engine evaluates whether an org may execute a tool. Denials always win
// over grants; internal errors resolve to denied, never to allowed.
type Engine struct {
	orgs      *Store
	approvals *ApprovalManager
	audit     *Ledger
}

// NewEngine creates a governance engine over the org store, approval manager
// and audit ledger.
func NewEngine(orgs *Store, approvals *ApprovalManager, audit *Ledger) *Engine {
	return &Engine{orgs: orgs, approvals: approvals, audit: audit}
}

// Check authorizes one tool call. Evaluation order, first match wins:
//
//  1. any matching denial rule denies, with the rule's reason as violation
//  2. a missing or disabled grant denies
//  3. a grant with requires_approval parks the request as pending approval,
//     unless an earlier approval for the same (session, org, tool) was granted
//  4. otherwise the call is allowed
//
// Every check appends exactly one audit entry, including denied ones.
func (e *Engine) Check(ctx context.Context, req Request) Decision {
	d := e.evaluate(ctx, req)
	if e.audit != nil {
		_, _ = e.audit.Append(ctx, AuditEntry{
			SessionID:  req.SessionID,
			EntryType:  EntryToolCheck,
			ToolName:   req.Tool,
			Parameters: req.Params,
			Result:     d.Reason,
			Decision:   d.State,
			Violations: d.Violations,
		})
	}
	return d
}

func (e *Engine) evaluate(ctx context.Context, req Request) Decision {
	if req.OrgID == "" || req.Tool == "" {
		return Decision{State: DecisionDenied, Reason: "org and tool are required"}
	}

	org, err := e.orgs.Org(ctx, req.OrgID)
	if err != nil {
		return Decision{State: DecisionDenied, Reason: fmt.Sprintf("org lookup failed: %v", err)}
	}
	if !org.Enabled {
		return Decision{State: DecisionDenied, Reason: fmt.Sprintf("org %s is disabled", req.OrgID)}
	}

	denials, err := e.orgs.Denials(ctx, req.OrgID)
	if err != nil {
		// Fail closed: an unreadable denial list must never allow.
		slog.Warn("Governance: denial lookup failed", "org", req.OrgID, "tool", req.Tool, "error", err)
		return Decision{State: DecisionDenied, Reason: fmt.Sprintf("denial lookup failed: %v", err)}
	}
	var violations []string
	for _, rule := range denials {
		if matchDenial(rule, req) {
			violations = append(violations, fmt.Sprintf("%s:%s: %s", rule.Type, rule.Pattern, rule.Reason))
		}
	}
	if len(violations) > 0 {
		return Decision{State: DecisionDenied, Reason: violations[0], Violations: violations}
	}

	grant, err := e.orgs.Grant(ctx, req.OrgID, req.Tool)
	if err != nil {
		return Decision{State: DecisionDenied, Reason: fmt.Sprintf("tool %s not granted to %s", req.Tool, req.OrgID)}
	}
	if !grant.Enabled {
		return Decision{State: DecisionDenied, Reason: fmt.Sprintf("tool %s disabled for %s", req.Tool, req.OrgID)}
	}

	if grant.RequiresApproval {
		ok, err := e.approvals.approvedFor(ctx, req.SessionID, req.OrgID, req.Tool)
		if err != nil {
			slog.Warn("Governance: approval lookup failed", "org", req.OrgID, "tool", req.Tool, "error", err)
			return Decision{State: DecisionDenied, Reason: fmt.Sprintf("approval lookup failed: %v", err)}
		}
		if ok {
			return Decision{State: DecisionAllowed, Reason: fmt.Sprintf("tool %s previously approved", req.Tool)}
		}
		reason := fmt.Sprintf("tool %s requires approval", req.Tool)
		id, err := e.approvals.Create(ctx, req.SessionID, req.OrgID, req.Tool, req.Params, reason)
		if err != nil {
			return Decision{State: DecisionDenied, Reason: fmt.Sprintf("approval request failed: %v", err)}
		}
		return Decision{State: DecisionPendingApproval, Reason: reason, ApprovalID: id}
	}

	return Decision{State: DecisionAllowed, Reason: fmt.Sprintf("tool %s granted", req.Tool)}
}

// matchDenial reports whether one denial rule matches the request.
//
// Matching is case-sensitive throughout and globs use path.Match semantics,
// so '*' never crosses a '/' and there is no '**'.
func matchDenial(rule Denial, req Request) bool {
	switch rule.Type {
	case DenialTool:
		return rule.Pattern == req.Tool
	case DenialShell:
		if !strings.HasPrefix(req.Tool, "shell") {
			return false
		}
		if rule.Pattern == "*" {
			return true
		}
		cmd := paramString(req.Params, "command")
		ok, err := path.Match(rule.Pattern, cmd)
		return err == nil && ok
	case DenialWorkspace:
		p := requestPath(req.Params)
		if p == "" {
			return false
		}
		prefix := strings.TrimSuffix(rule.Pattern, "/*")
		return p == prefix || strings.HasPrefix(p, prefix+"/")
	case DenialPattern:
		p := requestPath(req.Params)
		if p == "" {
			return false
		}
		ok, err := path.Match(rule.Pattern, path.Base(p))
		return err == nil && ok
	}
	return false
}

// requestPath extracts the filesystem path a tool call targets, if any.
func requestPath(params map[string]any) string {
	for _, key := range []string{"path", "file", "target"} {
		if v := paramString(params, key); v != "" {
			return v
		}
	}
	return ""
}

func paramString(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	s, _ := params[key].(string)
	return s
}
