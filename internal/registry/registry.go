// Package registry implements the versioned specification object store.
package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Spec statuses. Transitions are forward-only: draft -> active -> deprecated.
const (
	StatusDraft      = "draft"
	StatusActive     = "active"
	StatusDeprecated = "deprecated"
)

// Provenance source types and sync statuses.
const (
	SourceNative   = "native"
	SourceUpstream = "upstream"

	SyncSynced   = "synced"
	SyncOutdated = "outdated"
	SyncConflict = "conflict"
)

// Spec is a full specification record including its optional doc and payload.
type Spec struct {
	ID              int64          `json:"id"`
	Kind            string         `json:"kind"`
	Name            string         `json:"name"`
	Version         string         `json:"version"`
	Status          string         `json:"status"`
	Summary         string         `json:"summary"`
	UseCount        int            `json:"use_count"`
	SuccessRate     float64        `json:"success_rate"`
	Confidence      float64        `json:"confidence"`
	SourceType      string         `json:"source_type"`
	SourceURL       string         `json:"source_url,omitempty"`
	UpstreamVersion string         `json:"upstream_version,omitempty"`
	SourceRef       string         `json:"source_ref,omitempty"`
	SyncStatus      string         `json:"sync_status"`
	LastSync        *time.Time     `json:"last_sync,omitempty"`
	Doc             string         `json:"doc,omitempty"`
	Payload         map[string]any `json:"payload,omitempty"`
	SchemaRef       string         `json:"schema_ref,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// Summary is the short listing form of a spec.
type Summary struct {
	ID      int64  `json:"id"`
	Kind    string `json:"kind"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Status  string `json:"status"`
	Summary string `json:"summary"`
}

// CreateInput holds the fields for Create. Version and Status default to
// "1.0.0" and "draft" when empty.
type CreateInput struct {
	Kind      string
	Name      string
	Summary   string
	Version   string
	Status    string
	Doc       string
	Payload   map[string]any
	SchemaRef string
}

// UpdateInput holds partial-update fields. Nil pointers leave the stored
// value untouched.
type UpdateInput struct {
	Status  *string
	Summary *string
	Doc     *string
	Payload map[string]any
}

// Service provides spec object CRUD over the shared database.
type Service struct {
	db *sql.DB
}

// NewService creates a registry service backed by db.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// DB exposes the underlying handle for services layered on the registry.
func (s *Service) DB() *sql.DB { return s.db }

func validStatus(status string) bool {
	switch status {
	case StatusDraft, StatusActive, StatusDeprecated:
		return true
	}
	return false
}

// statusRank orders statuses along the allowed transition path.
func statusRank(status string) int {
	switch status {
	case StatusDraft:
		return 0
	case StatusActive:
		return 1
	case StatusDeprecated:
		return 2
	}
	return -1
}

// Create inserts a new spec object and its optional doc and payload rows.
// Returns the assigned id.
func (s *Service) Create(in CreateInput) (int64, error) {
	if strings.TrimSpace(in.Kind) == "" || strings.TrimSpace(in.Name) == "" {
		return 0, fmt.Errorf("%w: kind and name are required", store.ErrValidation)
	}
	if in.Version == "" {
		in.Version = "1.0.0"
	}
	if in.Status == "" {
		in.Status = StatusDraft
	}
	if !validStatus(in.Status) {
		return 0, fmt.Errorf("%w: invalid status %q", store.ErrValidation, in.Status)
	}

	res, err := s.db.Exec(
		`INSERT INTO spec_objects (kind, name, version, status, summary) VALUES (?, ?, ?, ?, ?)`,
		in.Kind, in.Name, in.Version, in.Status, in.Summary,
	)
	if err != nil {
		return 0, fmt.Errorf("create spec: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	if in.Doc != "" {
		if err := s.upsertDoc(id, in.Doc); err != nil {
			return id, err
		}
	}
	if in.Payload != nil || in.SchemaRef != "" {
		if err := s.upsertPayload(id, in.Payload, in.SchemaRef); err != nil {
			return id, err
		}
	}
	return id, nil
}

func (s *Service) upsertDoc(id int64, doc string) error {
	_, err := s.db.Exec(
		`INSERT INTO spec_docs (object_id, doc) VALUES (?, ?)
		 ON CONFLICT(object_id) DO UPDATE SET doc = excluded.doc`,
		id, doc,
	)
	return err
}

func (s *Service) upsertPayload(id int64, payload map[string]any, schemaRef string) error {
	var payloadJSON any
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: payload not serializable: %v", store.ErrValidation, err)
		}
		payloadJSON = string(b)
	}
	var ref any
	if schemaRef != "" {
		ref = schemaRef
	}
	_, err := s.db.Exec(
		`INSERT INTO spec_payloads (object_id, payload, schema_ref) VALUES (?, ?, ?)
		 ON CONFLICT(object_id) DO UPDATE SET
			payload = COALESCE(excluded.payload, spec_payloads.payload),
			schema_ref = COALESCE(excluded.schema_ref, spec_payloads.schema_ref)`,
		id, payloadJSON, ref,
	)
	return err
}

const specColumns = `o.id, o.kind, o.name, o.version, o.status, o.summary,
	o.use_count, o.success_rate, o.confidence,
	o.source_type, o.source_url, o.upstream_version, o.source_ref, o.sync_status, o.last_sync,
	o.created_at, o.updated_at, d.doc, p.payload, p.schema_ref`

func (s *Service) scanSpec(row *sql.Row) (*Spec, error) {
	var sp Spec
	var doc, payload, schemaRef, sourceURL, upstreamVersion, sourceRef sql.NullString
	var lastSync sql.NullTime
	err := row.Scan(
		&sp.ID, &sp.Kind, &sp.Name, &sp.Version, &sp.Status, &sp.Summary,
		&sp.UseCount, &sp.SuccessRate, &sp.Confidence,
		&sp.SourceType, &sourceURL, &upstreamVersion, &sourceRef, &sp.SyncStatus, &lastSync,
		&sp.CreatedAt, &sp.UpdatedAt, &doc, &payload, &schemaRef,
	)
	if err == sql.ErrNoRows {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sp.SourceURL = sourceURL.String
	sp.UpstreamVersion = upstreamVersion.String
	sp.SourceRef = sourceRef.String
	if lastSync.Valid {
		t := lastSync.Time
		sp.LastSync = &t
	}
	sp.Doc = doc.String
	sp.SchemaRef = schemaRef.String
	if payload.Valid && payload.String != "" {
		var m map[string]any
		if err := json.Unmarshal([]byte(payload.String), &m); err == nil {
			sp.Payload = m
		}
	}
	return &sp, nil
}

// Get returns a spec by id, or store.ErrNotFound.
func (s *Service) Get(id int64) (*Spec, error) {
	row := s.db.QueryRow(`
		SELECT `+specColumns+`
		FROM spec_objects o
		LEFT JOIN spec_docs d ON d.object_id = o.id
		LEFT JOIN spec_payloads p ON p.object_id = o.id
		WHERE o.id = ?`, id)
	return s.scanSpec(row)
}

// GetByName returns a spec by kind and name. When version is empty the
// highest non-deprecated version is preferred, falling back to the highest
// version overall.
func (s *Service) GetByName(kind, name, version string) (*Spec, error) {
	if version != "" {
		row := s.db.QueryRow(`
			SELECT `+specColumns+`
			FROM spec_objects o
			LEFT JOIN spec_docs d ON d.object_id = o.id
			LEFT JOIN spec_payloads p ON p.object_id = o.id
			WHERE o.kind = ? AND o.name = ? AND o.version = ?`, kind, name, version)
		return s.scanSpec(row)
	}

	rows, err := s.db.Query(
		`SELECT id, version, status FROM spec_objects WHERE kind = ? AND name = ?`,
		kind, name,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bestID, bestLiveID int64
	var bestVer, bestLiveVer string
	for rows.Next() {
		var id int64
		var ver, status string
		if err := rows.Scan(&id, &ver, &status); err != nil {
			return nil, err
		}
		if bestID == 0 || CompareVersions(ver, bestVer) > 0 {
			bestID, bestVer = id, ver
		}
		if status != StatusDeprecated {
			if bestLiveID == 0 || CompareVersions(ver, bestLiveVer) > 0 {
				bestLiveID, bestLiveVer = id, ver
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if bestLiveID != 0 {
		return s.Get(bestLiveID)
	}
	if bestID != 0 {
		return s.Get(bestID)
	}
	return nil, store.ErrNotFound
}

// List returns spec summaries filtered by kind and status, ordered by
// (kind, name, version desc).
func (s *Service) List(kind, status string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, kind, name, version, status, summary FROM spec_objects WHERE 1=1`
	var args []any
	if kind != "" {
		query += ` AND kind = ?`
		args = append(args, kind)
	}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY kind, name, version DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func scanSummaries(rows *sql.Rows) ([]Summary, error) {
	var out []Summary
	for rows.Next() {
		var sum Summary
		if err := rows.Scan(&sum.ID, &sum.Kind, &sum.Name, &sum.Version, &sum.Status, &sum.Summary); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// Update applies a partial update. Status changes must follow the
// draft -> active -> deprecated path; moving backwards is rejected.
func (s *Service) Update(id int64, in UpdateInput) error {
	cur, err := s.Get(id)
	if err != nil {
		return err
	}

	var sets []string
	var args []any
	if in.Status != nil {
		next := *in.Status
		if !validStatus(next) {
			return fmt.Errorf("%w: invalid status %q", store.ErrValidation, next)
		}
		if statusRank(next) < statusRank(cur.Status) {
			return fmt.Errorf("%w: cannot move status %s -> %s", store.ErrValidation, cur.Status, next)
		}
		sets = append(sets, "status = ?")
		args = append(args, next)
	}
	if in.Summary != nil {
		sets = append(sets, "summary = ?")
		args = append(args, *in.Summary)
	}

	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")
	args = append(args, id)
	if _, err := s.db.Exec(
		`UPDATE spec_objects SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...,
	); err != nil {
		return fmt.Errorf("update spec: %w", err)
	}

	if in.Doc != nil {
		if err := s.upsertDoc(id, *in.Doc); err != nil {
			return err
		}
	}
	if in.Payload != nil {
		if err := s.upsertPayload(id, in.Payload, ""); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes a spec and its child rows. Children go first so a failure
// can never leave an orphaned doc or payload behind.
func (s *Service) Delete(id int64) error {
	if _, err := s.db.Exec(`DELETE FROM spec_docs WHERE object_id = ?`, id); err != nil {
		return err
	}
	if _, err := s.db.Exec(`DELETE FROM spec_payloads WHERE object_id = ?`, id); err != nil {
		return err
	}
	res, err := s.db.Exec(`DELETE FROM spec_objects WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// CompareVersions compares two dotted version strings. Numeric segments
// compare numerically, everything else lexically. Returns -1, 0, or 1.
func CompareVersions(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	n := len(as)
	if len(bs) > n {
		n = len(bs)
	}
	for i := 0; i < n; i++ {
		var sa, sb string
		if i < len(as) {
			sa = as[i]
		}
		if i < len(bs) {
			sb = bs[i]
		}
		na, errA := strconv.Atoi(sa)
		nb, errB := strconv.Atoi(sb)
		switch {
		case errA == nil && errB == nil:
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
		default:
			if sa != sb {
				if sa < sb {
					return -1
				}
				return 1
			}
		}
	}
	return 0
}
