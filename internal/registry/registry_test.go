package registry

import (
	"errors"
	"testing"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

func testService(t *testing.T) *Service {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db)
}

func TestCreateAndGet(t *testing.T) {
	s := testService(t)
	id, err := s.Create(CreateInput{
		Kind:    "agent",
		Name:    "pia",
		Summary: "personal assistant",
		Doc:     "long form notes",
		Payload: map[string]any{"model": "glm-4.7"},
	})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	sp, err := s.Get(id)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if sp.Version != "1.0.0" || sp.Status != StatusDraft {
		t.Fatalf("expected defaults 1.0.0/draft, got %s/%s", sp.Version, sp.Status)
	}
	if sp.Doc != "long form notes" {
		t.Fatalf("doc not stored: %q", sp.Doc)
	}
	if sp.Payload["model"] != "glm-4.7" {
		t.Fatalf("payload not stored: %v", sp.Payload)
	}
	if sp.SourceType != SourceNative || sp.SyncStatus != SyncSynced {
		t.Fatalf("unexpected provenance defaults: %s/%s", sp.SourceType, sp.SyncStatus)
	}
}

func TestCreateValidation(t *testing.T) {
	s := testService(t)
	if _, err := s.Create(CreateInput{Kind: "", Name: "x"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for empty kind, got %v", err)
	}
	if _, err := s.Create(CreateInput{Kind: "agent", Name: "x", Status: "bogus"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for bad status, got %v", err)
	}
}

func TestDuplicateTripleUpsertsChildRows(t *testing.T) {
	s := testService(t)
	id, err := s.Create(CreateInput{Kind: "skill", Name: "review", Doc: "v1"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// The triple is unique; a second insert must fail at the object level.
	if _, err := s.Create(CreateInput{Kind: "skill", Name: "review"}); err == nil {
		t.Fatal("expected duplicate (kind, name, version) to be rejected")
	}

	// Doc and payload updates land in place, never as second rows.
	doc := "v2"
	if err := s.Update(id, UpdateInput{Doc: &doc, Payload: map[string]any{"a": 1.0}}); err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if err := s.Update(id, UpdateInput{Payload: map[string]any{"a": 2.0}}); err != nil {
		t.Fatalf("second update failed: %v", err)
	}

	var docs, payloads int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM spec_docs WHERE object_id = ?`, id).Scan(&docs); err != nil {
		t.Fatal(err)
	}
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM spec_payloads WHERE object_id = ?`, id).Scan(&payloads); err != nil {
		t.Fatal(err)
	}
	if docs != 1 || payloads != 1 {
		t.Fatalf("expected exactly one doc and payload row, got %d/%d", docs, payloads)
	}

	sp, err := s.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if sp.Doc != "v2" || sp.Payload["a"] != 2.0 {
		t.Fatalf("child rows not updated in place: doc=%q payload=%v", sp.Doc, sp.Payload)
	}
}

func TestGetByNamePrefersLiveVersions(t *testing.T) {
	s := testService(t)
	mustCreate(t, s, CreateInput{Kind: "agent", Name: "pia", Version: "1.0.0", Status: StatusActive})
	mustCreate(t, s, CreateInput{Kind: "agent", Name: "pia", Version: "1.10.0", Status: StatusDeprecated})
	mustCreate(t, s, CreateInput{Kind: "agent", Name: "pia", Version: "1.2.0", Status: StatusActive})

	sp, err := s.GetByName("agent", "pia", "")
	if err != nil {
		t.Fatalf("get by name: %v", err)
	}
	// 1.10.0 is newest but deprecated; 1.2.0 is the newest live version.
	if sp.Version != "1.2.0" {
		t.Fatalf("expected 1.2.0, got %s", sp.Version)
	}

	sp, err = s.GetByName("agent", "pia", "1.0.0")
	if err != nil || sp.Version != "1.0.0" {
		t.Fatalf("explicit version lookup failed: %v %v", sp, err)
	}

	if _, err := s.GetByName("agent", "nope", ""); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestStatusTransitionsForwardOnly(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateInput{Kind: "agent", Name: "pia", Status: StatusActive})

	back := StatusDraft
	if err := s.Update(id, UpdateInput{Status: &back}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error moving active -> draft, got %v", err)
	}

	fwd := StatusDeprecated
	if err := s.Update(id, UpdateInput{Status: &fwd}); err != nil {
		t.Fatalf("active -> deprecated should be allowed: %v", err)
	}
}

func TestDeleteRemovesChildren(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateInput{Kind: "agent", Name: "pia", Doc: "d", Payload: map[string]any{"k": "v"}})

	if err := s.Delete(id); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := s.Get(id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	var orphans int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM spec_docs WHERE object_id = ?`, id).Scan(&orphans); err != nil {
		t.Fatal(err)
	}
	if orphans != 0 {
		t.Fatalf("orphaned doc rows left behind: %d", orphans)
	}
	if err := s.Delete(id); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("second delete should be not found, got %v", err)
	}
}

func TestSearchRanksNamePrefixFirst(t *testing.T) {
	s := testService(t)
	mustCreate(t, s, CreateInput{Kind: "skill", Name: "zz-helper", Summary: "mentions review in summary"})
	mustCreate(t, s, CreateInput{Kind: "skill", Name: "review-bot", Summary: "does things"})

	got, err := s.Search("review", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(got))
	}
	if got[0].Name != "review-bot" {
		t.Fatalf("expected name-prefix match first, got %s", got[0].Name)
	}
}

func TestLinkAndRelated(t *testing.T) {
	s := testService(t)
	a := mustCreate(t, s, CreateInput{Kind: "agent", Name: "pia"})
	b := mustCreate(t, s, CreateInput{Kind: "skill", Name: "review"})

	if err := s.Link(a, b, RelUses, map[string]any{"since": "1.0.0"}); err != nil {
		t.Fatalf("link failed: %v", err)
	}
	// Re-asserting replaces metadata, never duplicates the edge.
	if err := s.Link(a, b, RelUses, map[string]any{"since": "2.0.0"}); err != nil {
		t.Fatalf("relink failed: %v", err)
	}
	if err := s.Link(a, 999, RelUses, nil); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing endpoint, got %v", err)
	}

	rels, err := s.Related(a)
	if err != nil {
		t.Fatalf("related failed: %v", err)
	}
	if len(rels) != 1 {
		t.Fatalf("expected 1 edge, got %d", len(rels))
	}
	if rels[0].Direction != "outgoing" || rels[0].Neighbor.ID != b {
		t.Fatalf("unexpected edge: %+v", rels[0])
	}
	if rels[0].Metadata["since"] != "2.0.0" {
		t.Fatalf("metadata not replaced: %v", rels[0].Metadata)
	}

	back, err := s.Related(b)
	if err != nil {
		t.Fatal(err)
	}
	if len(back) != 1 || back[0].Direction != "incoming" {
		t.Fatalf("expected incoming edge from the other side, got %+v", back)
	}
}

func TestFindTemplateAndSchema(t *testing.T) {
	s := testService(t)
	mustCreate(t, s, CreateInput{
		Kind: "task_template", Name: "triage", Version: "1.0.0", Status: StatusActive,
		Payload: map[string]any{"template": "old {{task}}"},
	})
	mustCreate(t, s, CreateInput{
		Kind: "task_template", Name: "triage", Version: "1.2.0", Status: StatusActive,
		Payload: map[string]any{"template": "triage {{task}}"},
	})
	mustCreate(t, s, CreateInput{
		Kind: "schema", Name: "org", Status: StatusActive,
		Payload: map[string]any{"type": "object"},
	})

	text, err := s.FindTemplate("triage")
	if err != nil {
		t.Fatalf("find template: %v", err)
	}
	if text != "triage {{task}}" {
		t.Fatalf("expected newest active template, got %q", text)
	}
	if _, err := s.FindTemplate("missing"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	schema, err := s.FindSchema("org")
	if err != nil {
		t.Fatalf("find schema: %v", err)
	}
	if schema["type"] != "object" {
		t.Fatalf("unexpected schema: %v", schema)
	}
}

func TestStats(t *testing.T) {
	s := testService(t)
	mustCreate(t, s, CreateInput{Kind: "agent", Name: "a", Status: StatusActive})
	mustCreate(t, s, CreateInput{Kind: "agent", Name: "b"})
	mustCreate(t, s, CreateInput{Kind: "skill", Name: "c", Status: StatusDeprecated})

	stats, err := s.Stats()
	if err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	if got := stats["agent"]; got.Total != 2 || got.Active != 1 || got.Draft != 1 {
		t.Fatalf("agent stats wrong: %+v", got)
	}
	if got := stats["skill"]; got.Total != 1 || got.Deprecated != 1 {
		t.Fatalf("skill stats wrong: %+v", got)
	}
}

func TestUpstreamSyncQueue(t *testing.T) {
	s := testService(t)
	id := mustCreate(t, s, CreateInput{Kind: "skill", Name: "imported"})

	if err := s.SetUpstreamSource(id, "https://example.com/spec", "2.0.0", "abc123"); err != nil {
		t.Fatalf("set upstream: %v", err)
	}
	queue, err := s.NeedingSync()
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 0 {
		t.Fatalf("freshly synced spec should not queue: %+v", queue)
	}

	if err := s.MarkSyncStatus(id, SyncOutdated); err != nil {
		t.Fatalf("mark outdated: %v", err)
	}
	if err := s.MarkSyncStatus(id, "weird"); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	queue, err = s.NeedingSync()
	if err != nil {
		t.Fatal(err)
	}
	if len(queue) != 1 || queue[0].SyncStatus != SyncOutdated {
		t.Fatalf("expected one outdated spec, got %+v", queue)
	}
}

func TestCompareVersions(t *testing.T) {
	cases := []struct {
		a, b string
		want int
	}{
		{"1.0.0", "1.0.0", 0},
		{"1.2.0", "1.10.0", -1},
		{"2.0.0", "1.9.9", 1},
		{"1.0", "1.0.0", -1},
		{"1.0.0-beta", "1.0.0", 1}, // non-numeric segment compares lexically
	}
	for _, c := range cases {
		if got := CompareVersions(c.a, c.b); got != c.want {
			t.Errorf("CompareVersions(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func mustCreate(t *testing.T, s *Service, in CreateInput) int64 {
	t.Helper()
	id, err := s.Create(in)
	if err != nil {
		t.Fatalf("create %s/%s: %v", in.Kind, in.Name, err)
	}
	return id
}
