// Package config loads the project configuration file, dmbuild.yaml.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	derrors "git.home.luguber.info/inful/dmbuild/internal/foundation/errors"
	"git.home.luguber.info/inful/dmbuild/internal/logfields"
)

// DefaultFileName is the configuration file looked up in the project root.
const DefaultFileName = "dmbuild.yaml"

// Config is the project configuration.
type Config struct {
	MarkupExtension string   `yaml:"markup_extension"`
	Targets         []string `yaml:"targets"`
	CacheDir        string   `yaml:"cache_dir"`
	MediaDir        string   `yaml:"media_dir"`

	// Timeout bounds each external process. Zero disables it.
	Timeout time.Duration `yaml:"timeout"`
	// MaxJobs bounds concurrent external processes. Zero means one per CPU.
	MaxJobs      int           `yaml:"max_jobs"`
	PollInterval time.Duration `yaml:"poll_interval"`
	HashLength   int           `yaml:"hash_length"`

	Decider     DeciderConfig       `yaml:"decider"`
	TrackedDeps map[string][]string `yaml:"tracked_deps"`

	BuildersFile string `yaml:"builders_file,omitempty"`
	TemplatesDir string `yaml:"templates_dir,omitempty"`
	LogLevel     string `yaml:"log_level,omitempty"`
}

// DeciderConfig selects where build decisions are recorded.
type DeciderConfig struct {
	Store DeciderStore `yaml:"store"`
	// Path of the sqlite database. Empty means <cache>/decider.db.
	Path string `yaml:"path,omitempty"`
}

// Load reads the configuration at configPath. Keys absent from the file
// keep their defaults, and a missing file yields Default(). Environment
// variables, including those from .env files next to the configuration,
// are expanded before parsing.
func Load(configPath string) (*Config, error) {
	loadEnvFiles(filepath.Dir(configPath))

	cfg := Default()
	data, err := os.ReadFile(configPath) // #nosec G304 -- user supplied config path
	switch {
	case os.IsNotExist(err):
		return cfg, nil
	case err != nil:
		return nil, derrors.ConfigError("read configuration").WithCause(err).
			WithContext(logfields.KeyPath, configPath).
			Build()
	}

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), cfg); err != nil {
		return nil, derrors.ConfigError("parse configuration").WithCause(err).
			WithContext(logfields.KeyPath, configPath).
			Build()
	}
	normalize(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Init writes the default configuration to configPath.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return derrors.ValidationError("configuration file already exists (use --force to overwrite)").
			WithContext(logfields.KeyPath, configPath).
			Build()
	}
	data, err := yaml.Marshal(Default())
	if err != nil {
		return derrors.WrapError(err, derrors.CategoryInternal, "marshal configuration").Build()
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return derrors.WrapError(err, derrors.CategoryFileSystem, "write configuration").
			WithContext(logfields.KeyPath, configPath).
			Build()
	}
	return nil
}

// DeciderPath returns the sqlite database path for a cache directory.
func (c *Config) DeciderPath(cachePath string) string {
	if c.Decider.Path != "" {
		return c.Decider.Path
	}
	return filepath.Join(cachePath, "decider.db")
}
