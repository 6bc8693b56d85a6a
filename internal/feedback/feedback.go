// Package feedback implements the usage-outcome recording and meta-learning
// loop that tunes spec confidence over time.
package feedback

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Feedback types.
const (
	TypeSuccess        = "success"
	TypeFailure        = "failure"
	TypeError          = "error"
	TypeUserCorrection = "user_correction"
)

// Adaptation types.
const (
	AdaptParameterTune = "parameter_tune"
	AdaptPromptImprove = "prompt_improve"
	AdaptToolAdd       = "tool_add"
	AdaptMerge         = "merge"
	AdaptSplit         = "split"
)

// Learning types.
const (
	LearnPattern    = "pattern"
	LearnInsight    = "insight"
	LearnRule       = "rule"
	LearnPreference = "preference"
)

// Thresholds tunes the loop's decision cutoffs. Values come from config, not
// hard-coded literals.
type Thresholds struct {
	// SuccessScore is the feedback score above which a non-"success"
	// feedback still counts as a successful use.
	SuccessScore float64
	// ImprovementMinUsage is the default minimum use count before a spec is
	// eligible for the improvement queue.
	ImprovementMinUsage int
	// ImprovementMaxSuccessRate is the default success-rate ceiling for the
	// improvement queue.
	ImprovementMaxSuccessRate float64
	// LearningConfidenceFloor is the minimum confidence for a learning to be
	// considered actionable.
	LearningConfidenceFloor float64
}

// DefaultThresholds mirrors the historical fixed constants.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SuccessScore:              0.5,
		ImprovementMinUsage:       5,
		ImprovementMaxSuccessRate: 0.5,
		LearningConfidenceFloor:   0.5,
	}
}

// Service records usage outcomes and learnings over the shared database.
type Service struct {
	db         *sql.DB
	thresholds Thresholds
}

// NewService creates a feedback service backed by db.
func NewService(db *sql.DB, thresholds Thresholds) *Service {
	return &Service{db: db, thresholds: thresholds}
}

// UsageStats is the result of a usage update.
type UsageStats struct {
	SpecID      int64   `json:"spec_id"`
	UseCount    int     `json:"use_count"`
	SuccessRate float64 `json:"success_rate"`
}

// RecordUsage folds one success/failure outcome into the spec's running
// success rate. The whole read-modify-write happens in a single UPDATE so
// concurrent feedback from multiple sessions cannot lose updates.
func (s *Service) RecordUsage(specID int64, success bool) (*UsageStats, error) {
	outcome := 0.0
	if success {
		outcome = 1.0
	}
	// (rate*count + outcome) / (count+1) also covers the first use:
	// with count=0 the expression collapses to outcome/1.
	res, err := s.db.Exec(`
		UPDATE spec_objects
		SET success_rate = (success_rate * use_count + ?) / (use_count + 1),
			use_count = use_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`, outcome, specID)
	if err != nil {
		return nil, fmt.Errorf("record usage: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("spec %d: %w", specID, store.ErrNotFound)
	}

	stats := &UsageStats{SpecID: specID}
	err = s.db.QueryRow(
		`SELECT use_count, success_rate FROM spec_objects WHERE id = ?`, specID,
	).Scan(&stats.UseCount, &stats.SuccessRate)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// FeedbackInput holds one usage outcome report.
type FeedbackInput struct {
	SpecID    int64
	Type      string
	Score     float64
	Context   map[string]any
	Outcome   map[string]any
	Notes     string
	SessionID string
}

// RecordFeedback appends a feedback row and folds it into the spec's usage
// stats. A feedback counts as success when its type is "success" or its
// score exceeds the configured threshold.
func (s *Service) RecordFeedback(in FeedbackInput) (int64, error) {
	switch in.Type {
	case TypeSuccess, TypeFailure, TypeError, TypeUserCorrection:
	default:
		return 0, fmt.Errorf("%w: invalid feedback type %q", store.ErrValidation, in.Type)
	}
	if in.Score < -1.0 || in.Score > 1.0 {
		return 0, fmt.Errorf("%w: score %v out of range [-1, 1]", store.ErrValidation, in.Score)
	}

	res, err := s.db.Exec(`
		INSERT INTO spec_feedback (spec_id, session_id, feedback_type, score, context, outcome, notes)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		in.SpecID, nullable(in.SessionID), in.Type, in.Score,
		marshalOrNil(in.Context), marshalOrNil(in.Outcome), nullable(in.Notes))
	if err != nil {
		return 0, fmt.Errorf("record feedback: %w", err)
	}
	id, _ := res.LastInsertId()

	success := in.Type == TypeSuccess || in.Score > s.thresholds.SuccessScore
	if _, err := s.RecordUsage(in.SpecID, success); err != nil {
		return id, err
	}
	return id, nil
}

// AdaptationInput describes one deliberate change made to a spec.
type AdaptationInput struct {
	SpecID        int64
	Type          string
	Reason        string
	Changes       map[string]any
	MetricsBefore map[string]any
	MetricsAfter  map[string]any
}

// RecordAdaptation appends an adaptation record. Pure append; usage stats
// are untouched.
func (s *Service) RecordAdaptation(in AdaptationInput) (int64, error) {
	switch in.Type {
	case AdaptParameterTune, AdaptPromptImprove, AdaptToolAdd, AdaptMerge, AdaptSplit:
	default:
		return 0, fmt.Errorf("%w: invalid adaptation type %q", store.ErrValidation, in.Type)
	}
	changes := marshalOrNil(in.Changes)
	if changes == nil {
		changes = "{}"
	}
	res, err := s.db.Exec(`
		INSERT INTO spec_adaptations (spec_id, adaptation_type, reason, changes, metrics_before, metrics_after)
		VALUES (?, ?, ?, ?, ?, ?)`,
		in.SpecID, in.Type, in.Reason, changes,
		marshalOrNil(in.MetricsBefore), marshalOrNil(in.MetricsAfter))
	if err != nil {
		return 0, fmt.Errorf("record adaptation: %w", err)
	}
	return res.LastInsertId()
}

// Performance aggregates a spec's usage and feedback history.
type Performance struct {
	SpecID          int64   `json:"spec_id"`
	Kind            string  `json:"kind"`
	Name            string  `json:"name"`
	UseCount        int     `json:"use_count"`
	SuccessRate     float64 `json:"success_rate"`
	Confidence      float64 `json:"confidence"`
	FeedbackCount   int     `json:"feedback_count"`
	AvgScore        float64 `json:"avg_score"`
	AdaptationCount int     `json:"adaptation_count"`
}

// Performance returns aggregate metrics for one spec.
func (s *Service) Performance(specID int64) (*Performance, error) {
	var p Performance
	var avg sql.NullFloat64
	err := s.db.QueryRow(`
		SELECT o.id, o.kind, o.name, o.use_count, o.success_rate, o.confidence,
			(SELECT COUNT(*) FROM spec_feedback f WHERE f.spec_id = o.id),
			(SELECT AVG(f.score) FROM spec_feedback f WHERE f.spec_id = o.id),
			(SELECT COUNT(*) FROM spec_adaptations a WHERE a.spec_id = o.id)
		FROM spec_objects o WHERE o.id = ?`, specID).Scan(
		&p.SpecID, &p.Kind, &p.Name, &p.UseCount, &p.SuccessRate, &p.Confidence,
		&p.FeedbackCount, &avg, &p.AdaptationCount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("spec %d: %w", specID, store.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	p.AvgScore = avg.Float64
	return &p, nil
}

// Candidate is an active spec flagged for improvement.
type Candidate struct {
	SpecID      int64   `json:"spec_id"`
	Kind        string  `json:"kind"`
	Name        string  `json:"name"`
	Version     string  `json:"version"`
	UseCount    int     `json:"use_count"`
	SuccessRate float64 `json:"success_rate"`
	Confidence  float64 `json:"confidence"`
	Summary     string  `json:"summary"`
}

// NeedingImprovement returns active specs with enough usage and a low
// success rate, worst first. Non-positive arguments fall back to the
// configured defaults.
func (s *Service) NeedingImprovement(minUsage int, maxSuccessRate float64) ([]Candidate, error) {
	if minUsage <= 0 {
		minUsage = s.thresholds.ImprovementMinUsage
	}
	if maxSuccessRate <= 0 {
		maxSuccessRate = s.thresholds.ImprovementMaxSuccessRate
	}
	rows, err := s.db.Query(`
		SELECT id, kind, name, version, use_count, success_rate, confidence, summary
		FROM spec_objects
		WHERE use_count >= ? AND success_rate < ? AND status = 'active'
		ORDER BY success_rate ASC, use_count DESC`, minUsage, maxSuccessRate)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.SpecID, &c.Kind, &c.Name, &c.Version,
			&c.UseCount, &c.SuccessRate, &c.Confidence, &c.Summary); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Learning is one generalized, cross-spec insight.
type Learning struct {
	ID          int64     `json:"id"`
	Type        string    `json:"learning_type"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Evidence    []int64   `json:"evidence,omitempty"`
	Confidence  float64   `json:"confidence"`
	Application string    `json:"application,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// RecordLearning appends a learning insight.
func (s *Service) RecordLearning(learningType, category, description string, evidence []int64, confidence float64, application string) (int64, error) {
	switch learningType {
	case LearnPattern, LearnInsight, LearnRule, LearnPreference:
	default:
		return 0, fmt.Errorf("%w: invalid learning type %q", store.ErrValidation, learningType)
	}
	if confidence < 0.0 || confidence > 1.0 {
		return 0, fmt.Errorf("%w: confidence %v out of range [0, 1]", store.ErrValidation, confidence)
	}
	if category == "" {
		category = "general"
	}
	var ev any
	if len(evidence) > 0 {
		b, _ := json.Marshal(evidence)
		ev = string(b)
	}
	res, err := s.db.Exec(`
		INSERT INTO spec_learnings (learning_type, category, description, evidence, confidence, application)
		VALUES (?, ?, ?, ?, ?, ?)`,
		learningType, category, description, ev, confidence, nullable(application))
	if err != nil {
		return 0, fmt.Errorf("record learning: %w", err)
	}
	return res.LastInsertId()
}

// TopLearnings returns actionable learnings ordered by confidence then
// recency. Learnings below the configured confidence floor are excluded.
func (s *Service) TopLearnings(limit int) ([]Learning, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.Query(`
		SELECT id, learning_type, category, description, evidence, confidence, application, created_at
		FROM spec_learnings
		WHERE confidence >= ?
		ORDER BY confidence DESC, created_at DESC, id DESC
		LIMIT ?`, s.thresholds.LearningConfidenceFloor, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Learning
	for rows.Next() {
		var l Learning
		var ev, app sql.NullString
		if err := rows.Scan(&l.ID, &l.Type, &l.Category, &l.Description, &ev, &l.Confidence, &app, &l.CreatedAt); err != nil {
			return nil, err
		}
		if ev.Valid && ev.String != "" {
			_ = json.Unmarshal([]byte(ev.String), &l.Evidence)
		}
		l.Application = app.String
		out = append(out, l)
	}
	return out, rows.Err()
}

func marshalOrNil(m map[string]any) any {
	if m == nil {
		return nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return string(b)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
