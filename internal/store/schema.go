package store

// Schema is the full registry schema. Every table uses IF NOT EXISTS so the
// schema can be re-applied on startup; older databases are upgraded by the
// best-effort migrations in Open.
const Schema = `
CREATE TABLE IF NOT EXISTS spec_objects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	kind TEXT NOT NULL,
	name TEXT NOT NULL,
	version TEXT NOT NULL DEFAULT '1.0.0',
	status TEXT NOT NULL DEFAULT 'draft',
	summary TEXT NOT NULL DEFAULT '',
	use_count INTEGER NOT NULL DEFAULT 0,
	success_rate REAL NOT NULL DEFAULT 0.0,
	confidence REAL NOT NULL DEFAULT 0.5,
	source_type TEXT NOT NULL DEFAULT 'native',
	source_url TEXT DEFAULT '',
	upstream_version TEXT DEFAULT '',
	source_ref TEXT DEFAULT '',
	sync_status TEXT NOT NULL DEFAULT 'synced',
	last_sync DATETIME,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(kind, name, version)
);
CREATE INDEX IF NOT EXISTS idx_spec_objects_kind ON spec_objects(kind);
CREATE INDEX IF NOT EXISTS idx_spec_objects_status ON spec_objects(status);

CREATE TABLE IF NOT EXISTS spec_docs (
	object_id INTEGER PRIMARY KEY,
	doc TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS spec_payloads (
	object_id INTEGER PRIMARY KEY,
	payload TEXT,
	schema_ref TEXT
);

CREATE TABLE IF NOT EXISTS spec_relationships (
	from_id INTEGER NOT NULL,
	to_id INTEGER NOT NULL,
	rel_type TEXT NOT NULL,
	metadata TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (from_id, to_id, rel_type)
);
CREATE INDEX IF NOT EXISTS idx_spec_rel_to ON spec_relationships(to_id);

CREATE TABLE IF NOT EXISTS spec_feedback (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	spec_id INTEGER NOT NULL,
	session_id TEXT,
	feedback_type TEXT NOT NULL,
	score REAL NOT NULL DEFAULT 0.0,
	context TEXT,
	outcome TEXT,
	notes TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_spec_feedback_spec ON spec_feedback(spec_id);

CREATE TABLE IF NOT EXISTS spec_adaptations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	spec_id INTEGER NOT NULL,
	adaptation_type TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	changes TEXT NOT NULL DEFAULT '{}',
	metrics_before TEXT,
	metrics_after TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_spec_adaptations_spec ON spec_adaptations(spec_id);

CREATE TABLE IF NOT EXISTS spec_learnings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	learning_type TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'general',
	description TEXT NOT NULL,
	evidence TEXT,
	confidence REAL NOT NULL DEFAULT 0.5,
	application TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS spec_embeddings (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	spec_id INTEGER,
	org_id TEXT,
	content_type TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	chunk_index INTEGER NOT NULL DEFAULT 0,
	content TEXT NOT NULL,
	embedding BLOB,
	embedding_model TEXT NOT NULL DEFAULT 'default',
	metadata TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	UNIQUE(content_hash, chunk_index)
);
CREATE INDEX IF NOT EXISTS idx_spec_embeddings_type ON spec_embeddings(content_type);

CREATE TABLE IF NOT EXISTS memory_conversations (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT NOT NULL,
	agent_spec_id INTEGER,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	embedding BLOB,
	importance REAL NOT NULL DEFAULT 0.5,
	tool_calls TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_memory_conversations_session ON memory_conversations(session_id);

CREATE TABLE IF NOT EXISTS orgs (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	model_primary TEXT NOT NULL,
	model_secondary TEXT DEFAULT '',
	system_prompt TEXT NOT NULL DEFAULT '',
	enabled BOOLEAN NOT NULL DEFAULT 1,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS org_tools (
	org_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	enabled BOOLEAN NOT NULL DEFAULT 1,
	requires_approval BOOLEAN NOT NULL DEFAULT 0,
	PRIMARY KEY (org_id, tool_name)
);

CREATE TABLE IF NOT EXISTS org_denials (
	org_id TEXT NOT NULL,
	denial_type TEXT NOT NULL,
	pattern TEXT NOT NULL,
	reason TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (org_id, denial_type, pattern)
);

CREATE TABLE IF NOT EXISTS org_calls (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	call_id TEXT UNIQUE NOT NULL,
	session_id TEXT,
	caller_org TEXT NOT NULL,
	target_org TEXT NOT NULL,
	task TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'pending',
	result TEXT,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	completed_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_org_calls_status ON org_calls(status);

CREATE TABLE IF NOT EXISTS pending_approvals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	approval_id TEXT UNIQUE NOT NULL,
	session_id TEXT,
	org_id TEXT NOT NULL,
	tool_name TEXT NOT NULL,
	tool_params TEXT,
	reason TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT 'pending',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	resolved_at DATETIME,
	resolved_by TEXT
);
CREATE INDEX IF NOT EXISTS idx_pending_approvals_status ON pending_approvals(status);

CREATE TABLE IF NOT EXISTS audit_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	timestamp DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	entry_type TEXT NOT NULL,
	tool_name TEXT,
	parameters TEXT,
	result TEXT,
	decision TEXT,
	violations TEXT
);
`
