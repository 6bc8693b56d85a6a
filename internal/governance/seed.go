package governance

import (
	"context"
	"fmt"
	"log/slog"
)

// OrgSeed is the declarative permission profile for one org. Seed data is
// immutable reference configuration loaded at startup; runtime changes go
// through the Store.
type OrgSeed struct {
	Org              Org
	Tools            []string
	ApprovalRequired []string
	Denials          []Denial
}

// Seed upserts the default org roster. It is idempotent: re-running updates
// models, prompts and rules in place and never duplicates rows.
func Seed(ctx context.Context, s *Store) error {
	roster := DefaultOrgs()
	for _, seed := range roster {
		if err := s.UpsertOrg(ctx, seed.Org); err != nil {
			return fmt.Errorf("seed org %s: %w", seed.Org.ID, err)
		}
		approval := make(map[string]bool, len(seed.ApprovalRequired))
		for _, t := range seed.ApprovalRequired {
			approval[t] = true
		}
		for _, tool := range seed.Tools {
			g := ToolGrant{OrgID: seed.Org.ID, ToolName: tool, Enabled: true, RequiresApproval: approval[tool]}
			if err := s.GrantTool(ctx, g); err != nil {
				return fmt.Errorf("seed grant %s/%s: %w", seed.Org.ID, tool, err)
			}
		}
		for _, d := range seed.Denials {
			d.OrgID = seed.Org.ID
			if err := s.Deny(ctx, d); err != nil {
				return fmt.Errorf("seed denial %s/%s: %w", seed.Org.ID, d.Pattern, err)
			}
		}
	}
	slog.Info("Governance: org roster seeded", "orgs", len(roster))
	return nil
}

// DefaultOrgs returns the built-in five-org roster: development, operations,
// research, studio, and the orchestrator that delegates between them.
func DefaultOrgs() []OrgSeed {
	return []OrgSeed{
		{
			Org: Org{
				ID:             "dev-org",
				Name:           "DevOrg",
				Description:    "Development, code reviews, pipeline configurations",
				ModelPrimary:   "glm-4.7:cloud",
				ModelSecondary: "qwen3-coder:cloud",
				SystemPrompt: `You are DevOrg - the Development Agent.

ROLE:
- Read, write, and review code
- Create and edit pipeline configurations (YAML, JSON)
- Run tests and analyze errors
- Prepare PRs and code suggestions

FORBIDDEN:
- Execute shell commands
- Trigger CI/CD pipelines
- Perform deployments
- Access /projects/ops or /projects/studio

For deployment requests: Refer to OpsOrg.
For research requests: Refer to ResearchOrg.`,
				Enabled: true,
			},
			Tools:            []string{"fs_read", "fs_write", "fs_list", "git_status", "git_diff", "git_patch", "test_run"},
			ApprovalRequired: []string{"fs_write", "git_patch"},
			Denials: []Denial{
				{Type: DenialShell, Pattern: "*", Reason: "Shell access not allowed for DevOrg"},
				{Type: DenialWorkspace, Pattern: "/projects/ops/*", Reason: "No access to Ops workspace"},
				{Type: DenialWorkspace, Pattern: "/projects/studio/*", Reason: "No access to Studio workspace"},
				{Type: DenialTool, Pattern: "ci_trigger", Reason: "CI/CD triggers not allowed"},
				{Type: DenialTool, Pattern: "deploy_service", Reason: "Deployments not allowed"},
			},
		},
		{
			Org: Org{
				ID:             "ops-org",
				Name:           "OpsOrg",
				Description:    "CI/CD pipelines, deployments, render jobs",
				ModelPrimary:   "kimi-k2.5:cloud",
				ModelSecondary: "minimax-m2.1:cloud",
				SystemPrompt: `You are OpsOrg - the Operations Agent.

ROLE:
- Execute and monitor CI/CD pipelines
- Perform deployments and rollbacks (with approval)
- Start render jobs and check status
- Monitor system health

FORBIDDEN:
- Modify code in dev repos
- Write pipeline definitions yourself (comes from DevOrg)
- Write access to /projects/dev

Pipeline code must ALWAYS come from the repo, never created spontaneously.`,
				Enabled: true,
			},
			Tools: []string{
				"fs_read", "fs_list", "ci_trigger", "deploy_service", "rollback_service",
				"render_job_submit", "render_job_status", "shell_run",
			},
			ApprovalRequired: []string{"deploy_service", "rollback_service", "shell_run"},
			Denials: []Denial{
				{Type: DenialWorkspace, Pattern: "/projects/dev/*", Reason: "No write access to dev repos"},
				{Type: DenialTool, Pattern: "fs_write", Reason: "Code changes only via DevOrg"},
				{Type: DenialTool, Pattern: "git_patch", Reason: "Code changes only via DevOrg"},
			},
		},
		{
			Org: Org{
				ID:             "research-org",
				Name:           "ResearchOrg",
				Description:    "External research, summaries, research notes",
				ModelPrimary:   "gpt-oss:20b-cloud",
				ModelSecondary: "minimax-m2.1:cloud",
				SystemPrompt: `You are ResearchOrg - the Research Agent.

ROLE:
- Search external information via SearXNG
- Analyze and summarize sources
- Write and organize research notes

FORBIDDEN:
- Direct HTTP requests to the internet (only SearXNG)
- Shell commands
- Deployments
- Access to /projects/* directories

All web access ONLY via searxng_search().
Always cite your sources.`,
				Enabled: true,
			},
			Tools: []string{"searxng_search", "fs_read", "fs_write_note", "fs_list_notes"},
			Denials: []Denial{
				{Type: DenialTool, Pattern: "fetch", Reason: "Direct HTTP access not allowed"},
				{Type: DenialTool, Pattern: "fetch_url", Reason: "Direct HTTP access not allowed"},
				{Type: DenialTool, Pattern: "shell_run", Reason: "Shell access not allowed"},
				{Type: DenialTool, Pattern: "deploy_service", Reason: "Deployments not allowed"},
				{Type: DenialWorkspace, Pattern: "/projects/*", Reason: "No access to project workspaces"},
			},
		},
		{
			Org: Org{
				ID:             "studio-org",
				Name:           "StudioOrg",
				Description:    "Requirements, specs, DCC briefings, shot notes",
				ModelPrimary:   "kimi-k2.5:cloud",
				ModelSecondary: "gemma3:4b-cloud",
				SystemPrompt: `You are StudioOrg - the Creative/Product Agent.

ROLE:
- Write requirements and user stories
- Create feature specifications
- Write DCC briefings and shot notes
- Maintain roadmaps and documentation

FORBIDDEN:
- Edit code files (*.py, *.sh, *.js)
- Modify pipeline configs (*.yaml, *.yml)
- Shell commands
- Access /projects/dev or /projects/ops

You write ONLY documentation and specifications, NO code.`,
				Enabled: true,
			},
			Tools: []string{"fs_read", "fs_write", "fs_list", "notes_board_create", "notes_board_list", "notes_board_update"},
			Denials: []Denial{
				{Type: DenialWorkspace, Pattern: "/projects/dev/*", Reason: "No access to Dev workspace"},
				{Type: DenialWorkspace, Pattern: "/projects/ops/*", Reason: "No access to Ops workspace"},
				{Type: DenialTool, Pattern: "shell_run", Reason: "Shell access not allowed"},
				{Type: DenialTool, Pattern: "ci_trigger", Reason: "CI/CD not allowed"},
				{Type: DenialTool, Pattern: "deploy_service", Reason: "Deployments not allowed"},
				{Type: DenialPattern, Pattern: "*.py", Reason: "Cannot edit Python files"},
				{Type: DenialPattern, Pattern: "*.sh", Reason: "Cannot edit shell scripts"},
				{Type: DenialPattern, Pattern: "*.yaml", Reason: "Cannot edit pipeline configs"},
			},
		},
		{
			Org: Org{
				ID:             "orchestrator-org",
				Name:           "OrchestratorOrg",
				Description:    "Central task distribution to orgs",
				ModelPrimary:   "kimi-k2.5:cloud",
				ModelSecondary: "glm-4.7:cloud",
				SystemPrompt: `You are OrchestratorOrg - the Central Coordinator.

ROLE:
- Analyze user tasks and break them into subtasks
- Delegate tasks to appropriate orgs
- Consolidate and present results

AVAILABLE ORGS:
- DevOrg: Code, pipelines, tests -> call_dev_org()
- OpsOrg: Deployments, CI/CD, render -> call_ops_org()
- ResearchOrg: Web research, summaries -> call_research_org()
- StudioOrg: Specs, briefings, documentation -> call_studio_org()

FORBIDDEN:
- Direct file access
- Shell commands
- Own tool execution (only org calls)

ALWAYS delegate to the appropriate org. NEVER execute yourself.`,
				Enabled: true,
			},
			Tools: []string{"call_dev_org", "call_ops_org", "call_research_org", "call_studio_org"},
			Denials: []Denial{
				{Type: DenialTool, Pattern: "fs_read", Reason: "No direct file access"},
				{Type: DenialTool, Pattern: "fs_write", Reason: "No direct file access"},
				{Type: DenialTool, Pattern: "shell_run", Reason: "No shell access"},
				{Type: DenialTool, Pattern: "fetch", Reason: "No web access"},
			},
		},
	}
}
