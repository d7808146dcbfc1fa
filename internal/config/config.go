// Package config loads and validates a run configuration: the dataset
// identity, source location, requested tables, and code-mapping entries that
// together determine one timeline build.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"

	"github.com/clinical-research/cohort/internal/ingest"
	"github.com/clinical-research/cohort/internal/vocab"
)

// ErrNoSource means neither a source root nor a database URL was supplied.
var ErrNoSource = errors.New("either a source root or a database URL is required")

// ErrBasicTable means a basic table (person, visit_occurrence, death) was
// explicitly requested. Basic tables are always loaded and must not appear
// in the table list.
var ErrBasicTable = errors.New("basic tables are loaded by default and must not be requested explicitly")

// Config is one run's configuration, read from a YAML file with COHORT_*
// environment overrides.
type Config struct {
	Dataset     string         `mapstructure:"dataset"`
	Root        string         `mapstructure:"root"`
	DatabaseURL string         `mapstructure:"database_url"`
	Tables      []string       `mapstructure:"tables"`
	CodeMapping map[string]any `mapstructure:"code_mapping"`
	Dev         bool           `mapstructure:"dev"`
	Delimiter   string         `mapstructure:"delimiter"`
	Compressed  bool           `mapstructure:"compressed"`
	CacheDir    string         `mapstructure:"cache_dir"`
	MappingDir  string         `mapstructure:"mapping_dir"`
	Workers     int            `mapstructure:"workers"`
}

// Load reads the run configuration from path.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("COHORT")
	v.AutomaticEnv()

	v.SetDefault("dataset", "omop")
	v.SetDefault("delimiter", "\t")
	v.SetDefault("cache_dir", defaultCacheDir())

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the configuration invariants shared by all entry points.
func (c *Config) Validate() error {
	if c.Root == "" && c.DatabaseURL == "" {
		return ErrNoSource
	}
	basic := map[string]bool{
		ingest.TablePerson: true,
		ingest.TableVisit:  true,
		ingest.TableDeath:  true,
	}
	for _, t := range c.Tables {
		if basic[t] {
			return fmt.Errorf("%w: %s", ErrBasicTable, t)
		}
	}
	return nil
}

// Mapping parses the raw code-mapping entries.
func (c *Config) Mapping() (vocab.Mapping, error) {
	return vocab.ParseMapping(c.CodeMapping)
}

// SourceID identifies the source location for the cache key: the root
// directory for file sources, the database URL otherwise.
func (c *Config) SourceID() string {
	if c.Root != "" {
		return c.Root
	}
	return c.DatabaseURL
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "cohort-cache")
	}
	return filepath.Join(home, ".cohort", "cache")
}
