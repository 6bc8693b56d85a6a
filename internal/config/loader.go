package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kelseyhightower/envconfig"
)

const (
	// ConfigDir is the default config directory name.
	ConfigDir = ".specfarm"
	// ConfigFile is the default config file name.
	ConfigFile = "config.json"
)

// ConfigPath returns the path to the config file.
func ConfigPath() (string, error) {
	if explicit := strings.TrimSpace(os.Getenv("SPECFARM_CONFIG")); explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := resolveHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(home, explicit[1:]), nil
		}
		return explicit, nil
	}
	home, err := resolveHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ConfigDir, ConfigFile), nil
}

func resolveHomeDir() (string, error) {
	if h := strings.TrimSpace(os.Getenv("SPECFARM_HOME")); h != "" {
		if strings.HasPrefix(h, "~") {
			base, err := os.UserHomeDir()
			if err != nil {
				return "", err
			}
			return filepath.Join(base, h[1:]), nil
		}
		return h, nil
	}
	return os.UserHomeDir()
}

// Load loads the configuration from file and environment variables.
// Priority: environment > file > defaults. A missing file is not an error.
func Load() (*Config, error) {
	cfg := DefaultConfig()

	path, err := ConfigPath()
	if err != nil {
		return cfg, nil // use defaults if we can't find a config path
	}

	data, err := os.ReadFile(path)
	if err == nil {
		data = substituteEnv(data)
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}

	envconfig.Process("SPECFARM_PATHS", &cfg.Paths)
	envconfig.Process("SPECFARM_REGISTRY", &cfg.Registry)
	envconfig.Process("SPECFARM_RETRIEVAL", &cfg.Retrieval)
	envconfig.Process("SPECFARM_GOVERNANCE", &cfg.Governance)
	envconfig.Process("SPECFARM_CAPABILITIES", &cfg.Capabilities)

	if strings.HasPrefix(cfg.Paths.DataDir, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.Paths.DataDir = filepath.Join(home, cfg.Paths.DataDir[1:])
		}
	}
	if cfg.Retrieval.KeywordWeight < 0 || cfg.Retrieval.KeywordWeight > 1 {
		cfg.Retrieval.KeywordWeight = DefaultConfig().Retrieval.KeywordWeight
	}
	if cfg.Registry.ImprovementMinUsage <= 0 {
		cfg.Registry.ImprovementMinUsage = DefaultConfig().Registry.ImprovementMinUsage
	}
	if cfg.Governance.AuditLimit <= 0 {
		cfg.Governance.AuditLimit = DefaultConfig().Governance.AuditLimit
	}
	return cfg, nil
}

// DBPath returns the full path of the registry database.
func (c *Config) DBPath() string {
	return filepath.Join(c.Paths.DataDir, c.Paths.DBFile)
}

// Save writes the configuration to the config file.
func Save(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// EnsureDir ensures a directory exists with proper permissions.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}

var envPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv replaces ${VAR} references in the raw config with the
// process environment. Unset variables are left untouched.
func substituteEnv(data []byte) []byte {
	return envPattern.ReplaceAllFunc(data, func(match []byte) []byte {
		parts := envPattern.FindSubmatch(match)
		if len(parts) != 2 {
			return match
		}
		if value, ok := os.LookupEnv(string(parts[1])); ok {
			return []byte(value)
		}
		return match
	})
}
