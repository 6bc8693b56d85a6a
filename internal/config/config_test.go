package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaults(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Registry.SuccessScore != 0.5 || cfg.Registry.ImprovementMinUsage != 5 {
		t.Fatalf("unexpected registry defaults: %+v", cfg.Registry)
	}
	if cfg.Retrieval.KeywordWeight != 0.5 {
		t.Fatalf("unexpected keyword weight: %v", cfg.Retrieval.KeywordWeight)
	}
	if !cfg.Capabilities.VectorSimilarity {
		t.Fatal("vector similarity should default on")
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	body := `{
		"registry": {"successScore": 0.7, "improvementMinUsage": 10},
		"retrieval": {"keywordWeight": 0.3}
	}`
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPECFARM_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Registry.SuccessScore != 0.7 || cfg.Registry.ImprovementMinUsage != 10 {
		t.Fatalf("file values not applied: %+v", cfg.Registry)
	}
	if cfg.Retrieval.KeywordWeight != 0.3 {
		t.Fatalf("file keyword weight not applied: %v", cfg.Retrieval.KeywordWeight)
	}
	// Untouched groups keep their defaults.
	if cfg.Governance.AuditLimit != 100 {
		t.Fatalf("defaults lost: %+v", cfg.Governance)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"retrieval": {"keywordWeight": 0.3}}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPECFARM_CONFIG", path)
	t.Setenv("SPECFARM_RETRIEVAL_KEYWORD_WEIGHT", "0.9")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retrieval.KeywordWeight != 0.9 {
		t.Fatalf("env should win over file, got %v", cfg.Retrieval.KeywordWeight)
	}
}

func TestOutOfRangeWeightFallsBack(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(`{"retrieval": {"keywordWeight": 3.0}}`), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SPECFARM_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Retrieval.KeywordWeight != 0.5 {
		t.Fatalf("invalid weight should fall back to default, got %v", cfg.Retrieval.KeywordWeight)
	}
}

func TestEnvSubstitution(t *testing.T) {
	t.Setenv("FARM_MODEL", "substituted")
	got := substituteEnv([]byte(`{"retrieval": {"embeddingModel": "${FARM_MODEL}"}}`))
	want := `{"retrieval": {"embeddingModel": "substituted"}}`
	if string(got) != want {
		t.Fatalf("substitution failed: %s", got)
	}
	// Unset variables stay as-is.
	got = substituteEnv([]byte(`"${NOT_SET_ANYWHERE}"`))
	if string(got) != `"${NOT_SET_ANYWHERE}"` {
		t.Fatalf("unset variable mangled: %s", got)
	}
}

func TestDBPath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Paths.DataDir = "/var/lib/specfarm"
	if got := cfg.DBPath(); got != "/var/lib/specfarm/registry.db" {
		t.Fatalf("unexpected db path: %s", got)
	}
}
