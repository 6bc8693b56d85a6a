package store

import "testing"

func TestOpenMemoryAppliesSchema(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer db.Close()

	for _, table := range []string{
		"spec_objects", "spec_docs", "spec_payloads", "spec_relationships",
		"spec_feedback", "spec_adaptations", "spec_learnings", "spec_embeddings",
		"memory_conversations", "orgs", "org_tools", "org_denials", "org_calls",
		"pending_approvals", "audit_log",
	} {
		var name string
		err := db.QueryRow(
			`SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?`, table,
		).Scan(&name)
		if err != nil {
			t.Fatalf("table %s missing: %v", table, err)
		}
	}
}

func TestSchemaReapplyIsIdempotent(t *testing.T) {
	db, err := OpenMemory()
	if err != nil {
		t.Fatalf("open memory db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("second schema apply failed: %v", err)
	}
	migrate(db)
	migrate(db)

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM spec_objects`).Scan(&n); err != nil {
		t.Fatalf("query after migrate: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected empty table, got %d rows", n)
	}
}
