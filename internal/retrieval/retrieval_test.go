package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/SpecFarm/SpecFarm/internal/provider"
	"github.com/SpecFarm/SpecFarm/internal/store"
)

func testService(t *testing.T, vectors bool) *Service {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db, vectors)
}

func TestVectorRoundTrip(t *testing.T) {
	in := []float32{0.1, -2.5, 3.75, 0}
	out := decodeFloat32s(encodeFloat32s(in))
	if len(out) != len(in) {
		t.Fatalf("length mismatch: %d != %d", len(out), len(in))
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("index %d: %v != %v", i, in[i], out[i])
		}
	}
	if decodeFloat32s([]byte{1, 2, 3}) != nil {
		t.Fatal("truncated blob should decode to nil")
	}
}

func TestCosineSimilarity(t *testing.T) {
	a := []float32{1, 0}
	b := []float32{0, 1}
	if got := cosineSimilarity(a, a); math.Abs(got-1) > 1e-9 {
		t.Fatalf("identical vectors: %v", got)
	}
	if got := cosineSimilarity(a, b); math.Abs(got) > 1e-9 {
		t.Fatalf("orthogonal vectors: %v", got)
	}
	if got := cosineSimilarity(a, []float32{1, 0, 0}); got != 0 {
		t.Fatalf("dimension mismatch should score 0, got %v", got)
	}
}

func TestStoreEmbeddingDedupes(t *testing.T) {
	s := testService(t, true)
	ctx := context.Background()

	h1, err := s.StoreEmbedding(ctx, EmbeddingInput{
		Content: "hello world", ContentType: ContentDoc, Vector: []float32{1, 0},
	})
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	h2, err := s.StoreEmbedding(ctx, EmbeddingInput{
		Content: "hello world", ContentType: ContentDoc, Vector: []float32{0, 1},
	})
	if err != nil {
		t.Fatalf("re-store: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("same content should hash identically: %s != %s", h1, h2)
	}

	rows, err := s.loadCandidates(ctx, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after dedupe, got %d", len(rows))
	}
	// The vector was replaced in place.
	if rows[0].vector[0] != 0 || rows[0].vector[1] != 1 {
		t.Fatalf("vector not updated: %v", rows[0].vector)
	}
}

func TestStoreEmbeddingValidation(t *testing.T) {
	s := testService(t, true)
	ctx := context.Background()
	if _, err := s.StoreEmbedding(ctx, EmbeddingInput{ContentType: ContentDoc}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for empty content, got %v", err)
	}
	if _, err := s.StoreEmbedding(ctx, EmbeddingInput{Content: "x", ContentType: "poetry"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for content type, got %v", err)
	}
}

func seedCorpus(t *testing.T, s *Service) {
	t.Helper()
	ctx := context.Background()
	for _, e := range []EmbeddingInput{
		{Content: "kubernetes deployment guide", ContentType: ContentDoc, Vector: []float32{1, 0}},
		{Content: "render pipeline notes", ContentType: ContentDoc, Vector: []float32{0, 1}},
		{Content: "deployment rollback runbook", ContentType: ContentDoc, Vector: []float32{0.7, 0.7}},
	} {
		if _, err := s.StoreEmbedding(ctx, e); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestSimilarOrdering(t *testing.T) {
	s := testService(t, true)
	seedCorpus(t, s)

	got, err := s.Similar(context.Background(), []float32{1, 0}, 3, "")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 results, got %d", len(got))
	}
	if got[0].Content != "kubernetes deployment guide" {
		t.Fatalf("best match wrong: %q", got[0].Content)
	}
	if got[1].Content != "deployment rollback runbook" {
		t.Fatalf("second match wrong: %q", got[1].Content)
	}
}

func TestSimilarWithoutVectorCapability(t *testing.T) {
	s := testService(t, false)
	seedCorpus(t, s)

	got, err := s.Similar(context.Background(), []float32{1, 0}, 3, "")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result without vector capability, got %d", len(got))
	}
}

func TestHybridPureKeyword(t *testing.T) {
	s := testService(t, true)
	seedCorpus(t, s)

	// keyword_weight 1.0 reproduces pure keyword ranking.
	got, err := s.HybridSearch(context.Background(), "deployment", []float32{0, 1}, 10, "", 1.0)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	for _, r := range got[:2] {
		if r.KeywordScore != 1.0 || r.Score != 1.0 {
			t.Fatalf("keyword-only scoring broken: %+v", r)
		}
	}
}

func TestHybridPureVector(t *testing.T) {
	s := testService(t, true)
	seedCorpus(t, s)

	hybrid, err := s.HybridSearch(context.Background(), "deployment", []float32{1, 0}, 3, "", 0.0)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	similar, err := s.Similar(context.Background(), []float32{1, 0}, 3, "")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(hybrid) != len(similar) {
		t.Fatalf("length mismatch: %d != %d", len(hybrid), len(similar))
	}
	// keyword_weight 0.0 reproduces pure vector ranking.
	for i := range hybrid {
		if hybrid[i].ID != similar[i].ID {
			t.Fatalf("rank %d differs: %d != %d", i, hybrid[i].ID, similar[i].ID)
		}
		if math.Abs(hybrid[i].Score-similar[i].Score) > 1e-9 {
			t.Fatalf("rank %d score differs: %v != %v", i, hybrid[i].Score, similar[i].Score)
		}
	}
}

func TestHybridDegradesToKeywordOnly(t *testing.T) {
	s := testService(t, false)
	seedCorpus(t, s)

	got, err := s.HybridSearch(context.Background(), "deployment", []float32{1, 0}, 10, "", 0.5)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected the two keyword matches, got %d", len(got))
	}
	for _, r := range got {
		if r.VectorScore != 0 {
			t.Fatalf("vector term must be zero without capability: %+v", r)
		}
	}
}

func TestHybridWeightValidation(t *testing.T) {
	s := testService(t, true)
	if _, err := s.HybridSearch(context.Background(), "x", nil, 5, "", 1.5); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for weight, got %v", err)
	}
}

func TestEmbedAndStoreUsesBackend(t *testing.T) {
	s := testService(t, true)
	ctx := context.Background()
	backend := &provider.Fake{Embedding: []float32{1, 0}}

	if _, err := s.EmbedAndStore(ctx, backend, EmbeddingInput{
		Content: "kubernetes deployment guide", ContentType: ContentDoc,
	}); err != nil {
		t.Fatalf("embed and store: %v", err)
	}

	got, err := s.Similar(ctx, []float32{1, 0}, 1, "")
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(got) != 1 || got[0].Content != "kubernetes deployment guide" {
		t.Fatalf("backend vector not stored: %+v", got)
	}
}

func TestEmbedAndStoreWithoutEmbeddingModel(t *testing.T) {
	s := testService(t, true)
	ctx := context.Background()
	// A backend without an embedding model returns nil, nil.
	backend := &provider.Fake{}

	if _, err := s.EmbedAndStore(ctx, backend, EmbeddingInput{
		Content: "deployment rollback runbook", ContentType: ContentDoc,
	}); err != nil {
		t.Fatalf("embed and store: %v", err)
	}

	got, err := s.HybridSearch(ctx, "rollback", nil, 5, "", 1.0)
	if err != nil {
		t.Fatalf("hybrid: %v", err)
	}
	if len(got) != 1 || got[0].VectorScore != 0 {
		t.Fatalf("vector-less row should still match by keyword: %+v", got)
	}
}

func TestRememberRecallOrdering(t *testing.T) {
	s := testService(t, true)
	ctx := context.Background()

	turns := []RememberInput{
		{SessionID: "s1", Role: RoleUser, Content: "small talk", Importance: 0.2},
		{SessionID: "s1", Role: RoleAssistant, Content: "key decision", Importance: 0.9},
		{SessionID: "s1", Role: RoleUser, Content: "normal question"},
		{SessionID: "s2", Role: RoleUser, Content: "other session"},
	}
	for _, in := range turns {
		if _, err := s.Remember(ctx, in); err != nil {
			t.Fatalf("remember: %v", err)
		}
	}

	got, err := s.Recall(ctx, "s1", 10)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 turns for s1, got %d", len(got))
	}
	if got[0].Content != "key decision" {
		t.Fatalf("most important first, got %q", got[0].Content)
	}
	if got[2].Content != "small talk" {
		t.Fatalf("least important last, got %q", got[2].Content)
	}
	// Unset importance defaults to 0.5.
	if got[1].Importance != 0.5 {
		t.Fatalf("default importance wrong: %v", got[1].Importance)
	}
}

func TestRememberValidation(t *testing.T) {
	s := testService(t, true)
	ctx := context.Background()
	if _, err := s.Remember(ctx, RememberInput{Role: RoleUser, Content: "x"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for session, got %v", err)
	}
	if _, err := s.Remember(ctx, RememberInput{SessionID: "s", Role: "narrator", Content: "x"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for role, got %v", err)
	}
}

func TestForgetSession(t *testing.T) {
	s := testService(t, true)
	ctx := context.Background()
	if _, err := s.Remember(ctx, RememberInput{SessionID: "s1", Role: RoleUser, Content: "a"}); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Remember(ctx, RememberInput{SessionID: "s1", Role: RoleUser, Content: "b"}); err != nil {
		t.Fatal(err)
	}
	n, err := s.ForgetSession(ctx, "s1")
	if err != nil {
		t.Fatalf("forget: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 deleted turns, got %d", n)
	}
}
