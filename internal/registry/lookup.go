package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Search matches the query as a case-insensitive substring of name, summary,
// or doc. Exact name-prefix matches rank first, then lexical (kind, name).
func (s *Service) Search(query string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.Query(`
		SELECT DISTINCT o.id, o.kind, o.name, o.version, o.status, o.summary
		FROM spec_objects o
		LEFT JOIN spec_docs d ON d.object_id = o.id
		WHERE LOWER(o.name) LIKE '%' || LOWER(?) || '%'
		   OR LOWER(o.summary) LIKE '%' || LOWER(?) || '%'
		   OR LOWER(d.doc) LIKE '%' || LOWER(?) || '%'
		ORDER BY
			CASE WHEN LOWER(o.name) LIKE LOWER(?) || '%' THEN 0 ELSE 1 END,
			o.kind, o.name
		LIMIT ?`, query, query, query, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

// FindTemplate returns the raw template text of the newest active
// task_template or prompt_template spec with the given name. The template
// language itself is opaque to the registry; rendering happens externally.
func (s *Service) FindTemplate(name string) (string, error) {
	rows, err := s.db.Query(`
		SELECT o.version, p.payload
		FROM spec_objects o
		JOIN spec_payloads p ON p.object_id = o.id
		WHERE o.kind IN ('task_template', 'prompt_template')
		  AND o.name = ? AND o.status = 'active'`, name)
	if err != nil {
		return "", err
	}
	defer rows.Close()

	payload, found, err := newestPayload(rows)
	if err != nil {
		return "", err
	}
	if !found {
		return "", fmt.Errorf("template %q: %w", name, store.ErrNotFound)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return "", fmt.Errorf("template %q: malformed payload: %w", name, err)
	}
	text, _ := m["template"].(string)
	if text == "" {
		return "", fmt.Errorf("template %q: %w", name, store.ErrNotFound)
	}
	return text, nil
}

// FindSchema returns the structured definition of the newest active spec of
// kind "schema" with the given name. Validation happens externally.
func (s *Service) FindSchema(name string) (map[string]any, error) {
	rows, err := s.db.Query(`
		SELECT o.version, p.payload
		FROM spec_objects o
		JOIN spec_payloads p ON p.object_id = o.id
		WHERE o.kind = 'schema' AND o.name = ? AND o.status = 'active'`, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payload, found, err := newestPayload(rows)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("schema %q: %w", name, store.ErrNotFound)
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(payload), &m); err != nil {
		return nil, fmt.Errorf("schema %q: malformed payload: %w", name, err)
	}
	return m, nil
}

// newestPayload picks the payload of the highest version among (version,
// payload) rows. Version order uses CompareVersions, not SQL collation.
func newestPayload(rows *sql.Rows) (payload string, found bool, err error) {
	var bestVer string
	for rows.Next() {
		var ver string
		var p sql.NullString
		if err := rows.Scan(&ver, &p); err != nil {
			return "", false, err
		}
		if !p.Valid || p.String == "" {
			continue
		}
		if !found || CompareVersions(ver, bestVer) > 0 {
			payload, bestVer, found = p.String, ver, true
		}
	}
	return payload, found, rows.Err()
}

// KindStats counts specs of one kind by status.
type KindStats struct {
	Total      int `json:"total"`
	Active     int `json:"active"`
	Draft      int `json:"draft"`
	Deprecated int `json:"deprecated"`
}

// Stats returns per-kind spec counts.
func (s *Service) Stats() (map[string]KindStats, error) {
	rows, err := s.db.Query(`
		SELECT kind,
			COUNT(*),
			SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'draft' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'deprecated' THEN 1 ELSE 0 END)
		FROM spec_objects GROUP BY kind ORDER BY kind`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[string]KindStats{}
	for rows.Next() {
		var kind string
		var st KindStats
		if err := rows.Scan(&kind, &st.Total, &st.Active, &st.Draft, &st.Deprecated); err != nil {
			return nil, err
		}
		out[kind] = st
	}
	return out, rows.Err()
}

// UpstreamSpec is a spec with its provenance fields, used by the sync queue.
type UpstreamSpec struct {
	Summary
	SourceURL       string     `json:"source_url"`
	UpstreamVersion string     `json:"upstream_version"`
	SyncStatus      string     `json:"sync_status"`
	LastSync        *time.Time `json:"last_sync,omitempty"`
}

// SetUpstreamSource marks a spec as tracking an upstream source and stamps
// it as freshly synced.
func (s *Service) SetUpstreamSource(id int64, sourceURL, upstreamVersion, sourceRef string) error {
	res, err := s.db.Exec(`
		UPDATE spec_objects
		SET source_type = ?, source_url = ?, upstream_version = ?, source_ref = ?,
			sync_status = ?, last_sync = CURRENT_TIMESTAMP, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		SourceUpstream, sourceURL, upstreamVersion, sourceRef, SyncSynced, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// MarkSyncStatus updates the sync status of an upstream-tracked spec.
func (s *Service) MarkSyncStatus(id int64, syncStatus string) error {
	switch syncStatus {
	case SyncSynced, SyncOutdated, SyncConflict:
	default:
		return fmt.Errorf("%w: invalid sync status %q", store.ErrValidation, syncStatus)
	}
	res, err := s.db.Exec(
		`UPDATE spec_objects SET sync_status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		syncStatus, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// NeedingSync returns upstream-tracked specs whose sync status is outdated
// or conflicting, least recently synced first.
func (s *Service) NeedingSync() ([]UpstreamSpec, error) {
	rows, err := s.db.Query(`
		SELECT id, kind, name, version, status, summary,
			source_url, upstream_version, sync_status, last_sync
		FROM spec_objects
		WHERE source_type = ? AND sync_status IN (?, ?)
		ORDER BY last_sync IS NOT NULL, last_sync ASC`,
		SourceUpstream, SyncOutdated, SyncConflict)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []UpstreamSpec
	for rows.Next() {
		var u UpstreamSpec
		var url, ver sql.NullString
		var last sql.NullTime
		if err := rows.Scan(
			&u.ID, &u.Kind, &u.Name, &u.Version, &u.Status, &u.Summary.Summary,
			&url, &ver, &u.SyncStatus, &last,
		); err != nil {
			return nil, err
		}
		u.SourceURL = url.String
		u.UpstreamVersion = ver.String
		if last.Valid {
			t := last.Time
			u.LastSync = &t
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
