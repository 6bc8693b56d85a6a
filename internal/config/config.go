// Package config provides configuration types and loading for specfarm.
package config

// Config is the root configuration struct.
// Top-level groups: Paths, Registry, Retrieval, Governance, Capabilities.
type Config struct {
	Paths        PathsConfig        `json:"paths"`
	Registry     RegistryConfig     `json:"registry"`
	Retrieval    RetrievalConfig    `json:"retrieval"`
	Governance   GovernanceConfig   `json:"governance"`
	Capabilities CapabilitiesConfig `json:"capabilities"`
}

// PathsConfig groups all filesystem path settings.
type PathsConfig struct {
	DataDir string `json:"dataDir" envconfig:"DATA_DIR"`
	DBFile  string `json:"dbFile" envconfig:"DB_FILE"`
}

// RegistryConfig tunes the feedback and improvement loop. The thresholds
// are configuration rather than constants so deployments can move them
// without a rebuild.
type RegistryConfig struct {
	// SuccessScore is the feedback score above which an outcome counts as
	// a success even when the feedback type says otherwise.
	SuccessScore float64 `json:"successScore" envconfig:"SUCCESS_SCORE"`
	// ImprovementMinUsage is the minimum use count before a spec can be
	// flagged as needing improvement.
	ImprovementMinUsage int `json:"improvementMinUsage" envconfig:"IMPROVEMENT_MIN_USAGE"`
	// ImprovementMaxSuccessRate flags specs performing below this rate.
	ImprovementMaxSuccessRate float64 `json:"improvementMaxSuccessRate" envconfig:"IMPROVEMENT_MAX_SUCCESS_RATE"`
	// LearningConfidenceFloor filters learnings below this confidence out
	// of the top-learnings view.
	LearningConfidenceFloor float64 `json:"learningConfidenceFloor" envconfig:"LEARNING_CONFIDENCE_FLOOR"`
}

// RetrievalConfig tunes hybrid search.
type RetrievalConfig struct {
	// KeywordWeight is the default lexical weight in hybrid search, in
	// [0, 1]. The vector weight is its complement.
	KeywordWeight float64 `json:"keywordWeight" envconfig:"KEYWORD_WEIGHT"`
	// EmbeddingModel names the model whose vectors are stored.
	EmbeddingModel string `json:"embeddingModel" envconfig:"EMBEDDING_MODEL"`
}

// GovernanceConfig tunes the permission engine.
type GovernanceConfig struct {
	// SeedOnStartup applies the default org roster when the store opens.
	SeedOnStartup bool `json:"seedOnStartup" envconfig:"SEED_ON_STARTUP"`
	// AuditLimit caps audit listing when the caller gives no limit.
	AuditLimit int `json:"auditLimit" envconfig:"AUDIT_LIMIT"`
}

// CapabilitiesConfig toggles optional collaborator-backed features. A
// disabled capability degrades the feature instead of failing the registry.
type CapabilitiesConfig struct {
	VectorSimilarity bool `json:"vectorSimilarity" envconfig:"VECTOR_SIMILARITY"`
	Templating       bool `json:"templating" envconfig:"TEMPLATING"`
	SchemaValidation bool `json:"schemaValidation" envconfig:"SCHEMA_VALIDATION"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Paths: PathsConfig{
			DataDir: "~/.specfarm",
			DBFile:  "registry.db",
		},
		Registry: RegistryConfig{
			SuccessScore:              0.5,
			ImprovementMinUsage:       5,
			ImprovementMaxSuccessRate: 0.5,
			LearningConfidenceFloor:   0.5,
		},
		Retrieval: RetrievalConfig{
			KeywordWeight:  0.5,
			EmbeddingModel: "default",
		},
		Governance: GovernanceConfig{
			SeedOnStartup: true,
			AuditLimit:    100,
		},
		Capabilities: CapabilitiesConfig{
			VectorSimilarity: true,
			Templating:       true,
			SchemaValidation: true,
		},
	}
}
