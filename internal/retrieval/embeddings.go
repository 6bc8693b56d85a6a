// Package retrieval implements the hybrid (lexical + vector) retrieval layer
// and per-session conversational memory.
//
// Embeddings are stored as BLOBs (little-endian float32 arrays); cosine
// similarity is computed in Go, which at registry scale is sub-millisecond.
package retrieval

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/SpecFarm/SpecFarm/internal/provider"
	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Content types accepted by StoreEmbedding.
const (
	ContentCode     = "code"
	ContentDoc      = "doc"
	ContentDecision = "decision"
	ContentResearch = "research"
	ContentDesign   = "design"
	ContentLog      = "log"
)

// Service provides embedding storage, similarity and hybrid search.
type Service struct {
	db *sql.DB
	// vectors reports whether vector similarity is available. When false,
	// Similar returns empty and HybridSearch degrades to keyword-only.
	vectors bool
}

// NewService creates a retrieval service. vectorCapability controls whether
// similarity scoring participates in results.
func NewService(db *sql.DB, vectorCapability bool) *Service {
	return &Service{db: db, vectors: vectorCapability}
}

func validContentType(ct string) bool {
	switch ct {
	case ContentCode, ContentDoc, ContentDecision, ContentResearch, ContentDesign, ContentLog:
		return true
	}
	return false
}

// EmbeddingInput holds one content chunk with its vector.
type EmbeddingInput struct {
	Content     string
	Vector      []float32
	ContentType string
	ChunkIndex  int
	SpecID      int64  // optional, 0 = unlinked
	OrgID       string // optional
	Metadata    map[string]any
	Model       string
}

// StoreEmbedding stores content with its embedding. Content is deduplicated
// by (sha256 hash, chunk index); re-inserting identical content updates the
// vector in place, never duplicating rows. Returns the content hash.
func (s *Service) StoreEmbedding(ctx context.Context, in EmbeddingInput) (string, error) {
	if in.Content == "" {
		return "", fmt.Errorf("%w: content is required", store.ErrValidation)
	}
	if !validContentType(in.ContentType) {
		return "", fmt.Errorf("%w: invalid content type %q", store.ErrValidation, in.ContentType)
	}
	sum := sha256.Sum256([]byte(in.Content))
	hash := hex.EncodeToString(sum[:])

	var blob any
	if len(in.Vector) > 0 {
		blob = encodeFloat32s(in.Vector)
	}
	var meta any
	if in.Metadata != nil {
		b, err := json.Marshal(in.Metadata)
		if err != nil {
			return "", fmt.Errorf("%w: metadata not serializable: %v", store.ErrValidation, err)
		}
		meta = string(b)
	}
	model := in.Model
	if model == "" {
		model = "default"
	}
	var specID any
	if in.SpecID != 0 {
		specID = in.SpecID
	}
	var orgID any
	if in.OrgID != "" {
		orgID = in.OrgID
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO spec_embeddings
			(spec_id, org_id, content_type, content_hash, chunk_index, content, embedding, embedding_model, metadata)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, chunk_index) DO UPDATE SET
			embedding = excluded.embedding`,
		specID, orgID, in.ContentType, hash, in.ChunkIndex, in.Content, blob, model, meta)
	if err != nil {
		return "", fmt.Errorf("store embedding: %w", err)
	}
	return hash, nil
}

// EmbedAndStore fills in the vector via the model backend when the caller
// did not supply one, then stores the chunk. A backend without an embedding
// model returns nil and the row still participates in keyword search.
func (s *Service) EmbedAndStore(ctx context.Context, backend provider.Invoker, in EmbeddingInput) (string, error) {
	if len(in.Vector) == 0 && backend != nil {
		vec, err := backend.Embed(ctx, in.Content)
		if err != nil {
			return "", fmt.Errorf("embed content: %w", err)
		}
		in.Vector = vec
	}
	return s.StoreEmbedding(ctx, in)
}

// Result is one retrieval hit.
type Result struct {
	ID           int64          `json:"id"`
	SpecID       int64          `json:"spec_id,omitempty"`
	OrgID        string         `json:"org_id,omitempty"`
	ContentType  string         `json:"content_type"`
	Content      string         `json:"content"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	KeywordScore float64        `json:"keyword_score,omitempty"`
	VectorScore  float64        `json:"vector_score,omitempty"`
	Score        float64        `json:"score"`
}

type candidateRow struct {
	result Result
	vector []float32
}

// loadCandidates pulls all embedding rows, optionally filtered by content
// type. Rows are returned in insertion order so score ties keep it.
func (s *Service) loadCandidates(ctx context.Context, contentType string) ([]candidateRow, error) {
	query := `SELECT id, spec_id, org_id, content_type, content, embedding, metadata FROM spec_embeddings`
	var args []any
	if contentType != "" {
		query += ` WHERE content_type = ?`
		args = append(args, contentType)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []candidateRow
	for rows.Next() {
		var c candidateRow
		var specID sql.NullInt64
		var orgID, meta sql.NullString
		var blob []byte
		if err := rows.Scan(&c.result.ID, &specID, &orgID, &c.result.ContentType,
			&c.result.Content, &blob, &meta); err != nil {
			return nil, err
		}
		c.result.SpecID = specID.Int64
		c.result.OrgID = orgID.String
		if meta.Valid && meta.String != "" {
			var m map[string]any
			if err := json.Unmarshal([]byte(meta.String), &m); err == nil {
				c.result.Metadata = m
			}
		}
		c.vector = decodeFloat32s(blob)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Similar ranks stored embeddings by cosine similarity to the query vector,
// descending, ties broken by insertion order. Only rows with a vector
// participate. Returns empty when vector capability is absent.
func (s *Service) Similar(ctx context.Context, queryVector []float32, k int, contentType string) ([]Result, error) {
	if !s.vectors || len(queryVector) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	candidates, err := s.loadCandidates(ctx, contentType)
	if err != nil {
		return nil, err
	}

	var scored []Result
	for _, c := range candidates {
		if len(c.vector) != len(queryVector) {
			continue // no vector or dimension mismatch
		}
		r := c.result
		r.VectorScore = cosineSimilarity(queryVector, c.vector)
		r.Score = r.VectorScore
		scored = append(scored, r)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// HybridSearch combines a binary keyword signal (case-insensitive substring
// match) with cosine similarity:
//
//	score = keywordWeight*keyword + (1-keywordWeight)*vector
//
// Rows matching by either signal are candidates. With keywordWeight 1 this
// reproduces pure keyword ranking; with 0, pure vector ranking. Without
// vector capability the vector term is zero for every row.
func (s *Service) HybridSearch(ctx context.Context, textQuery string, queryVector []float32, k int, contentType string, keywordWeight float64) ([]Result, error) {
	if keywordWeight < 0.0 || keywordWeight > 1.0 {
		return nil, fmt.Errorf("%w: keyword weight %v out of range [0, 1]", store.ErrValidation, keywordWeight)
	}
	if k <= 0 {
		k = 10
	}
	candidates, err := s.loadCandidates(ctx, contentType)
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(textQuery)
	vectorWeight := 1.0 - keywordWeight
	useVectors := s.vectors && len(queryVector) > 0

	var scored []Result
	for _, c := range candidates {
		r := c.result
		if needle != "" && strings.Contains(strings.ToLower(r.Content), needle) {
			r.KeywordScore = 1.0
		}
		hasVector := useVectors && len(c.vector) == len(queryVector)
		if hasVector {
			r.VectorScore = cosineSimilarity(queryVector, c.vector)
		}
		if r.KeywordScore == 0 && !hasVector {
			continue
		}
		r.Score = keywordWeight*r.KeywordScore + vectorWeight*r.VectorScore
		scored = append(scored, r)
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}
