package registry

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/SpecFarm/SpecFarm/internal/store"
)

// Relationship types between specs.
const (
	RelUses        = "uses"
	RelExtends     = "extends"
	RelRequires    = "requires"
	RelImplements  = "implements"
	RelDerivedFrom = "derived_from"
)

// Relation is one edge joined with the neighboring spec, tagged with the
// direction as seen from the queried spec.
type Relation struct {
	RelType   string         `json:"rel_type"`
	Direction string         `json:"direction"` // "outgoing" or "incoming"
	Neighbor  Summary        `json:"neighbor"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Link upserts a directed edge between two specs. Re-asserting an existing
// edge replaces its metadata. Cycles are permitted.
func (s *Service) Link(fromID, toID int64, relType string, metadata map[string]any) error {
	if relType == "" {
		return fmt.Errorf("%w: rel_type is required", store.ErrValidation)
	}
	for _, id := range []int64{fromID, toID} {
		var exists int
		err := s.db.QueryRow(`SELECT 1 FROM spec_objects WHERE id = ?`, id).Scan(&exists)
		if err == sql.ErrNoRows {
			return fmt.Errorf("spec %d: %w", id, store.ErrNotFound)
		}
		if err != nil {
			return err
		}
	}

	var meta any
	if metadata != nil {
		b, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("%w: metadata not serializable: %v", store.ErrValidation, err)
		}
		meta = string(b)
	}
	_, err := s.db.Exec(
		`INSERT INTO spec_relationships (from_id, to_id, rel_type, metadata) VALUES (?, ?, ?, ?)
		 ON CONFLICT(from_id, to_id, rel_type) DO UPDATE SET metadata = excluded.metadata`,
		fromID, toID, relType, meta,
	)
	return err
}

// Related returns outgoing and incoming edges for a spec, each joined with
// the neighboring spec's summary fields.
func (s *Service) Related(specID int64) ([]Relation, error) {
	rows, err := s.db.Query(`
		SELECT r.rel_type, 'outgoing', r.metadata,
			o.id, o.kind, o.name, o.version, o.status, o.summary
		FROM spec_relationships r
		JOIN spec_objects o ON o.id = r.to_id
		WHERE r.from_id = ?
		UNION ALL
		SELECT r.rel_type, 'incoming', r.metadata,
			o.id, o.kind, o.name, o.version, o.status, o.summary
		FROM spec_relationships r
		JOIN spec_objects o ON o.id = r.from_id
		WHERE r.to_id = ?`, specID, specID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Relation
	for rows.Next() {
		var rel Relation
		var meta sql.NullString
		if err := rows.Scan(
			&rel.RelType, &rel.Direction, &meta,
			&rel.Neighbor.ID, &rel.Neighbor.Kind, &rel.Neighbor.Name,
			&rel.Neighbor.Version, &rel.Neighbor.Status, &rel.Neighbor.Summary,
		); err != nil {
			return nil, err
		}
		if meta.Valid && meta.String != "" {
			var m map[string]any
			if err := json.Unmarshal([]byte(meta.String), &m); err == nil {
				rel.Metadata = m
			}
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}
