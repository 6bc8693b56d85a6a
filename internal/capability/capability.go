// Package capability reports which optional collaborator-backed features
// are available. Absent capabilities degrade behavior; they never fail the
// registry.
package capability

import "github.com/SpecFarm/SpecFarm/internal/config"

// Names of the optional capabilities.
const (
	VectorSimilarity = "vector_similarity"
	Templating       = "templating"
	SchemaValidation = "schema_validation"
)

// Set is the resolved capability state for one process.
type Set struct {
	VectorSimilarity bool `json:"vector_similarity"`
	Templating       bool `json:"templating"`
	SchemaValidation bool `json:"schema_validation"`
}

// FromConfig resolves capabilities from configuration.
func FromConfig(cfg *config.Config) Set {
	return Set{
		VectorSimilarity: cfg.Capabilities.VectorSimilarity,
		Templating:       cfg.Capabilities.Templating,
		SchemaValidation: cfg.Capabilities.SchemaValidation,
	}
}

// Missing lists capabilities that are unavailable.
func (s Set) Missing() []string {
	var out []string
	if !s.VectorSimilarity {
		out = append(out, VectorSimilarity)
	}
	if !s.Templating {
		out = append(out, Templating)
	}
	if !s.SchemaValidation {
		out = append(out, SchemaValidation)
	}
	return out
}
