// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kraklabs/docgraph/internal/errors"
	"github.com/kraklabs/docgraph/pkg/chunking"
	"github.com/kraklabs/docgraph/pkg/graph"
	"github.com/kraklabs/docgraph/pkg/ingestion"
	"github.com/kraklabs/docgraph/pkg/storage"
)

const (
	configDir      = ".docgraph"
	configFileName = "project.yaml"
)

// Config is the project configuration stored in .docgraph/project.yaml.
type Config struct {
	Store      StoreConfig      `yaml:"store"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Graph      GraphConfig      `yaml:"graph"`
}

// StoreConfig selects the graph backend.
type StoreConfig struct {
	Backend    string      `yaml:"backend"` // sqlite or neo4j
	SQLitePath string      `yaml:"sqlite_path"`
	Neo4j      Neo4jConfig `yaml:"neo4j"`
}

// Neo4jConfig holds server connection settings. Credentials are usually
// supplied through NEO4J_USERNAME and NEO4J_PASSWORD rather than the file.
type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// ExtractionConfig configures record extraction.
type ExtractionConfig struct {
	ParseWorkers         int           `yaml:"parse_workers"`
	CrossCalls           bool          `yaml:"cross_calls"`
	TolerateSyntaxErrors bool          `yaml:"tolerate_syntax_errors"`
	IncludeOther         bool          `yaml:"include_other"`
	MaxFileSize          int64         `yaml:"max_file_size"`
	Exclude              []string      `yaml:"exclude"`
	BuiltinModules       []string      `yaml:"builtin_modules,omitempty"`
	Timeout              time.Duration `yaml:"timeout"`
}

// ChunkingConfig configures document chunking. Sizes are in characters.
type ChunkingConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// GraphConfig configures graph building.
type GraphConfig struct {
	MaxLibrariesPerFile int           `yaml:"max_libraries_per_file"`
	FileTimeout         time.Duration `yaml:"file_timeout"`
}

// DefaultConfig returns the configuration used when no project file exists.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Backend:    storage.BackendSQLite,
			SQLitePath: filepath.Join(configDir, "graph.db"),
			Neo4j: Neo4jConfig{
				URI:      "neo4j://localhost:7687",
				Database: "neo4j",
			},
		},
		Extraction: ExtractionConfig{
			ParseWorkers: ingestion.DefaultParseWorkers,
			MaxFileSize:  1 << 20,
			Exclude:      append([]string(nil), ingestion.DefaultExcludeGlobs...),
			Timeout:      30 * time.Second,
		},
		Chunking: ChunkingConfig{
			ChunkSize: chunking.DefaultChunkSize,
			Overlap:   chunking.DefaultOverlap,
		},
		Graph: GraphConfig{
			MaxLibrariesPerFile: graph.DefaultMaxLibrariesPerFile,
			FileTimeout:         30 * time.Second,
		},
	}
}

// DefaultConfigPath returns ./.docgraph/project.yaml.
func DefaultConfigPath() string {
	return filepath.Join(configDir, configFileName)
}

// LoadConfig reads the project file and applies environment overrides.
// With an empty path the default location is tried and a missing file
// yields DefaultConfig. An explicit path that does not exist is an error.
func LoadConfig(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultConfigPath()
	}

	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.NewConfigError(
				"Cannot parse configuration file",
				fmt.Sprintf("%s is not valid YAML", path),
				"Fix the syntax error or delete the file to use defaults",
				err,
			)
		}
	case os.IsNotExist(err) && !explicit:
		// defaults
	case os.IsNotExist(err):
		return nil, errors.NewNotFoundError(
			"Configuration file not found",
			fmt.Sprintf("%s does not exist", path),
			"Check the --config path",
		)
	default:
		return nil, errors.NewConfigError("Cannot read configuration file", err.Error(), "Check file permissions", err)
	}

	cfg.applyEnv(os.Getenv)
	return cfg, nil
}

// applyEnv overrides store settings from the environment.
func (c *Config) applyEnv(getenv func(string) string) {
	if v := getenv("DOCGRAPH_STORE"); v != "" {
		c.Store.Backend = v
	}
	if v := getenv("NEO4J_URI"); v != "" {
		c.Store.Neo4j.URI = v
	}
	if v := getenv("NEO4J_USERNAME"); v != "" {
		c.Store.Neo4j.Username = v
	}
	if v := getenv("NEO4J_PASSWORD"); v != "" {
		c.Store.Neo4j.Password = v
	}
	if v := getenv("NEO4J_DATABASE"); v != "" {
		c.Store.Neo4j.Database = v
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.ValidateStore(); err != nil {
		return err
	}
	return c.ValidateSettings()
}

// ValidateStore checks the store section and Neo4j credentials.
func (c *Config) ValidateStore() error {
	switch c.Store.Backend {
	case storage.BackendSQLite:
		if c.Store.SQLitePath == "" {
			return errors.NewConfigError(
				"Cannot open graph store",
				"store.sqlite_path is empty",
				"Set store.sqlite_path or pass --db",
				nil,
			)
		}
	case storage.BackendNeo4j:
		if c.Store.Neo4j.URI == "" {
			return errors.NewConfigError(
				"Cannot open graph store",
				"Backend neo4j needs a server URI",
				"Set NEO4J_URI or store.neo4j.uri",
				nil,
			)
		}
		if c.Store.Neo4j.Username == "" || c.Store.Neo4j.Password == "" {
			return errors.NewConfigError(
				"Cannot open graph store",
				"Backend neo4j needs a username and password",
				"Set NEO4J_USERNAME and NEO4J_PASSWORD or use --store sqlite",
				nil,
			)
		}
	default:
		return errors.NewConfigError(
			"Unknown store backend",
			fmt.Sprintf("store.backend is %q", c.Store.Backend),
			fmt.Sprintf("Use %q or %q", storage.BackendSQLite, storage.BackendNeo4j),
			nil,
		)
	}
	return nil
}

// ValidateSettings checks the extraction and chunking sections.
func (c *Config) ValidateSettings() error {
	if c.Chunking.ChunkSize <= 0 || c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return errors.NewConfigError(
			"Invalid chunking settings",
			fmt.Sprintf("chunk_size=%d overlap=%d", c.Chunking.ChunkSize, c.Chunking.Overlap),
			"Use a positive chunk_size and an overlap smaller than it",
			chunking.ErrInvalidOverlap,
		)
	}
	if c.Extraction.ParseWorkers < 0 {
		return errors.NewConfigError(
			"Invalid extraction settings",
			fmt.Sprintf("parse_workers=%d", c.Extraction.ParseWorkers),
			"Use 0 for the default or a positive number",
			nil,
		)
	}
	return nil
}

// StorageConfig converts the store section for storage.Open.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{
		Backend: c.Store.Backend,
		SQLite:  storage.SQLiteConfig{Path: c.Store.SQLitePath},
		Neo4j: storage.Neo4jConfig{
			URI:      c.Store.Neo4j.URI,
			Username: c.Store.Neo4j.Username,
			Password: c.Store.Neo4j.Password,
			Database: c.Store.Neo4j.Database,
		},
	}
}

// PipelineConfig converts the extraction section for ingestion.NewPipeline.
func (c *Config) PipelineConfig() ingestion.PipelineConfig {
	return ingestion.PipelineConfig{
		ParseWorkers:   c.Extraction.ParseWorkers,
		CrossCalls:     c.Extraction.CrossCalls,
		FileTimeout:    c.Extraction.Timeout,
		BuiltinModules: c.Extraction.BuiltinModules,
		Extractor: ingestion.ExtractorConfig{
			TolerateSyntaxErrors: c.Extraction.TolerateSyntaxErrors,
			IncludeOther:         c.Extraction.IncludeOther,
		},
	}
}

// SaveConfig writes cfg as YAML, creating the parent directory.
func SaveConfig(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
