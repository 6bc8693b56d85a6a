package feedback

import (
	"database/sql"
	"errors"
	"math"
	"testing"

	"github.com/SpecFarm/SpecFarm/internal/registry"
	"github.com/SpecFarm/SpecFarm/internal/store"
)

func testServices(t *testing.T) (*Service, *registry.Service, *sql.DB) {
	t.Helper()
	db, err := store.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewService(db, DefaultThresholds()), registry.NewService(db), db
}

func createSpec(t *testing.T, reg *registry.Service, name, status string) int64 {
	t.Helper()
	id, err := reg.Create(registry.CreateInput{Kind: "agent", Name: name, Status: status})
	if err != nil {
		t.Fatalf("create spec: %v", err)
	}
	return id
}

func TestRecordUsageExactRate(t *testing.T) {
	fb, reg, _ := testServices(t)
	id := createSpec(t, reg, "pia", registry.StatusActive)

	// 3 successes of 5 calls must give exactly 0.6.
	outcomes := []bool{true, false, true, true, false}
	var stats *UsageStats
	var err error
	for _, ok := range outcomes {
		stats, err = fb.RecordUsage(id, ok)
		if err != nil {
			t.Fatalf("record usage: %v", err)
		}
	}
	if stats.UseCount != 5 {
		t.Fatalf("expected use_count 5, got %d", stats.UseCount)
	}
	if math.Abs(stats.SuccessRate-0.6) > 1e-9 {
		t.Fatalf("expected success_rate 0.6, got %v", stats.SuccessRate)
	}
}

func TestRecordUsageMissingSpec(t *testing.T) {
	fb, _, _ := testServices(t)
	if _, err := fb.RecordUsage(12345, true); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestFeedbackScenario(t *testing.T) {
	fb, reg, _ := testServices(t)
	id, err := reg.Create(registry.CreateInput{
		Kind: "agent", Name: "pia", Version: "1.0.0", Status: registry.StatusActive,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := fb.RecordFeedback(FeedbackInput{SpecID: id, Type: TypeSuccess, Score: 0.8}); err != nil {
		t.Fatalf("first feedback: %v", err)
	}
	sp, err := reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if sp.UseCount != 1 || sp.SuccessRate != 1.0 {
		t.Fatalf("after success: use_count=%d rate=%v", sp.UseCount, sp.SuccessRate)
	}

	if _, err := fb.RecordFeedback(FeedbackInput{SpecID: id, Type: TypeFailure, Score: -0.5}); err != nil {
		t.Fatalf("second feedback: %v", err)
	}
	sp, err = reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if sp.UseCount != 2 || sp.SuccessRate != 0.5 {
		t.Fatalf("after failure: use_count=%d rate=%v", sp.UseCount, sp.SuccessRate)
	}
}

func TestFeedbackValidation(t *testing.T) {
	fb, reg, _ := testServices(t)
	id := createSpec(t, reg, "pia", registry.StatusActive)

	if _, err := fb.RecordFeedback(FeedbackInput{SpecID: id, Type: "meh"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for type, got %v", err)
	}
	if _, err := fb.RecordFeedback(FeedbackInput{SpecID: id, Type: TypeSuccess, Score: 1.5}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error for score, got %v", err)
	}
}

func TestHighScoreCountsAsSuccess(t *testing.T) {
	fb, reg, _ := testServices(t)
	id := createSpec(t, reg, "pia", registry.StatusActive)

	// user_correction with score above the threshold still counts as success.
	if _, err := fb.RecordFeedback(FeedbackInput{SpecID: id, Type: TypeUserCorrection, Score: 0.9}); err != nil {
		t.Fatal(err)
	}
	sp, err := reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if sp.SuccessRate != 1.0 {
		t.Fatalf("expected success via score threshold, rate=%v", sp.SuccessRate)
	}
}

func TestNeedingImprovementExcludesLowUsage(t *testing.T) {
	fb, reg, _ := testServices(t)
	fresh := createSpec(t, reg, "fresh", registry.StatusActive)
	worn := createSpec(t, reg, "worn", registry.StatusActive)
	drafted := createSpec(t, reg, "drafted", registry.StatusDraft)

	// fresh: 4 failures, under the usage floor.
	for i := 0; i < 4; i++ {
		if _, err := fb.RecordUsage(fresh, false); err != nil {
			t.Fatal(err)
		}
	}
	// worn: 5 failures, qualifies.
	for i := 0; i < 5; i++ {
		if _, err := fb.RecordUsage(worn, false); err != nil {
			t.Fatal(err)
		}
		if _, err := fb.RecordUsage(drafted, false); err != nil {
			t.Fatal(err)
		}
	}

	cands, err := fb.NeedingImprovement(5, 0.5)
	if err != nil {
		t.Fatalf("needing improvement: %v", err)
	}
	if len(cands) != 1 {
		t.Fatalf("expected exactly the worn spec, got %+v", cands)
	}
	if cands[0].SpecID != worn {
		t.Fatalf("expected spec %d, got %d", worn, cands[0].SpecID)
	}
}

func TestAdaptationIsPureAppend(t *testing.T) {
	fb, reg, _ := testServices(t)
	id := createSpec(t, reg, "pia", registry.StatusActive)

	if _, err := fb.RecordAdaptation(AdaptationInput{SpecID: id, Type: "repaint"}); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, err := fb.RecordAdaptation(AdaptationInput{
		SpecID: id, Type: AdaptPromptImprove, Reason: "too verbose",
	}); err != nil {
		t.Fatalf("record adaptation: %v", err)
	}

	sp, err := reg.Get(id)
	if err != nil {
		t.Fatal(err)
	}
	if sp.UseCount != 0 {
		t.Fatalf("adaptation must not touch usage stats, use_count=%d", sp.UseCount)
	}

	perf, err := fb.Performance(id)
	if err != nil {
		t.Fatalf("performance: %v", err)
	}
	if perf.AdaptationCount != 1 {
		t.Fatalf("expected 1 adaptation, got %d", perf.AdaptationCount)
	}
}

func TestLearningsConfidenceFloor(t *testing.T) {
	fb, _, _ := testServices(t)

	if _, err := fb.RecordLearning(LearnInsight, "prompts", "short prompts win", nil, 0.9, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := fb.RecordLearning(LearnPattern, "", "weak hunch", nil, 0.2, ""); err != nil {
		t.Fatal(err)
	}
	if _, err := fb.RecordLearning("vibes", "", "x", nil, 0.9, ""); !errors.Is(err, store.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	top, err := fb.TopLearnings(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(top) != 1 {
		t.Fatalf("expected only the confident learning, got %+v", top)
	}
	if top[0].Description != "short prompts win" || top[0].Category != "prompts" {
		t.Fatalf("unexpected learning: %+v", top[0])
	}
}
