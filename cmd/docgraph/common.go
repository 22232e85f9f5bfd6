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
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"

	"github.com/kraklabs/docgraph/internal/errors"
	"github.com/kraklabs/docgraph/pkg/chunking"
	"github.com/kraklabs/docgraph/pkg/graph"
	"github.com/kraklabs/docgraph/pkg/ingestion"
	"github.com/kraklabs/docgraph/pkg/storage"
)

// newLogger builds the process logger. JSON mode logs to stderr so stdout
// carries only the result document.
func newLogger(globals GlobalFlags) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case globals.Debug:
		level = slog.LevelDebug
	case globals.Quiet:
		level = slog.LevelWarn
	}
	var w io.Writer = os.Stdout
	if globals.JSON {
		w = os.Stderr
	}
	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// startMetricsServer exposes /metrics when addr is set.
func startMetricsServer(addr string, logger *slog.Logger) {
	if addr == "" {
		return
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		srv := &http.Server{Addr: addr, Handler: mux}
		logger.Info("metrics.http.start", "addr", addr, "path", "/metrics")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("metrics.http.error", "err", err)
		}
	}()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// storeFlags override the store section of the config.
type storeFlags struct {
	backend string
	dbPath  string
}

func (s *storeFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&s.backend, "store", "", "Store backend: sqlite or neo4j (default from config)")
	fs.StringVar(&s.dbPath, "db", "", "SQLite database path (default from config)")
}

func (s *storeFlags) apply(fs *flag.FlagSet, cfg *Config) {
	if fs.Changed("store") {
		cfg.Store.Backend = s.backend
	}
	if fs.Changed("db") {
		cfg.Store.SQLitePath = s.dbPath
	}
}

// inputFlags select where extraction reads rows from. Exactly one is set.
type inputFlags struct {
	dataset string
	repo    string
	gitURL  string

	crossCalls     bool
	workers        int
	tolerateErrors bool
	includeOther   bool
	exclude        []string
}

func (in *inputFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&in.dataset, "dataset", "", "Parquet, JSON or JSON Lines file of {path, content} rows")
	fs.StringVar(&in.repo, "repo", "", "Local repository directory")
	fs.StringVar(&in.gitURL, "git", "", "Git URL to clone (shallow)")
	fs.BoolVar(&in.crossCalls, "cross-calls", false, "Resolve calls across files")
	fs.IntVar(&in.workers, "workers", 0, "Parallel parse workers (default from config)")
	fs.BoolVar(&in.tolerateErrors, "tolerate-syntax-errors", false, "Keep Python files with syntax errors")
	fs.BoolVar(&in.includeOther, "include-other", false, "Emit records for unrecognised file types")
	fs.StringSliceVar(&in.exclude, "exclude", nil, "Glob to exclude (repeatable, replaces config list)")
}

func (in *inputFlags) apply(fs *flag.FlagSet, cfg *Config) {
	if fs.Changed("cross-calls") {
		cfg.Extraction.CrossCalls = in.crossCalls
	}
	if fs.Changed("workers") {
		cfg.Extraction.ParseWorkers = in.workers
	}
	if fs.Changed("tolerate-syntax-errors") {
		cfg.Extraction.TolerateSyntaxErrors = in.tolerateErrors
	}
	if fs.Changed("include-other") {
		cfg.Extraction.IncludeOther = in.includeOther
	}
	if fs.Changed("exclude") {
		cfg.Extraction.Exclude = in.exclude
	}
}

func (in *inputFlags) validate() error {
	n := 0
	for _, v := range []string{in.dataset, in.repo, in.gitURL} {
		if v != "" {
			n++
		}
	}
	if n != 1 {
		return errors.NewInputError(
			"No single input selected",
			"Exactly one of --dataset, --repo or --git is required",
			"Example: docgraph extract --repo .",
		)
	}
	return nil
}

// loadConfig loads the project config, applies flag overrides and
// validates. The store section is only checked when needStore is set.
func loadConfig(globals GlobalFlags, needStore bool, overrides ...func(*Config)) *Config {
	cfg, err := LoadConfig(globals.ConfigPath)
	if err != nil {
		errors.FatalError(err, globals.JSON)
	}
	for _, o := range overrides {
		o(cfg)
	}
	validate := cfg.ValidateSettings
	if needStore {
		validate = cfg.Validate
	}
	if err := validate(); err != nil {
		errors.FatalError(err, globals.JSON)
	}
	return cfg
}

// loadRows reads input rows. The returned cleanup removes clone directories.
func loadRows(ctx context.Context, in inputFlags, cfg *Config, logger *slog.Logger, progress ProgressConfig) ([]ingestion.Row, func(), error) {
	noop := func() {}

	if in.dataset != "" {
		rows, dropped, err := ingestion.ReadDataset(in.dataset)
		if err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				return nil, noop, errors.NewNotFoundError(
					"Dataset not found",
					fmt.Sprintf("%s does not exist", in.dataset),
					"Check the --dataset path",
				)
			}
			return nil, noop, errors.NewInputError("Cannot read dataset", err.Error(), "Provide a .parquet file, a JSON array or a JSON Lines file of {path, content} rows")
		}
		if dropped > 0 {
			logger.Warn("dataset.rows.dropped", "count", dropped, "reason", "missing path")
		}
		return rows, noop, nil
	}

	loader := ingestion.NewRepoLoader(logger)
	cleanup := func() {
		if err := loader.Close(); err != nil {
			logger.Warn("repo.cleanup.error", "err", err)
		}
	}

	source := ingestion.RepoSource{Type: ingestion.SourceLocalPath, Value: in.repo}
	if in.gitURL != "" {
		source = ingestion.RepoSource{Type: ingestion.SourceGitURL, Value: in.gitURL}
	}

	spinner := NewSpinner(progress, "Loading repository")
	res, err := loader.LoadRepository(ctx, source, ingestion.LoadOptions{
		ExcludeGlobs: cfg.Extraction.Exclude,
		MaxFileSize:  cfg.Extraction.MaxFileSize,
	})
	if spinner != nil {
		_ = spinner.Finish()
	}
	if err != nil {
		cleanup()
		if source.Type == ingestion.SourceGitURL {
			return nil, noop, errors.NewNetworkError("Cannot clone repository", err.Error(), "Check the URL and your network access", err)
		}
		return nil, noop, errors.NewInputError("Cannot load repository", err.Error(), "Check the --repo path")
	}
	logger.Info("repo.loaded", "root", res.RootPath, "files", len(res.Rows), "bytes", res.TotalSize, "skipped", res.SkipReasons)
	return res.Rows, cleanup, nil
}

// openStore opens the configured store, mapping failures to user errors.
func openStore(ctx context.Context, cfg *Config) (storage.Store, error) {
	store, err := storage.Open(ctx, cfg.StorageConfig())
	if err == nil {
		return store, nil
	}
	if cfg.Store.Backend == storage.BackendNeo4j {
		return nil, errors.NewNetworkError(
			"Cannot connect to Neo4j",
			err.Error(),
			fmt.Sprintf("Check that the server at %s is running and the credentials are correct", cfg.Store.Neo4j.URI),
			err,
		)
	}
	return nil, errors.NewStoreError(
		"Cannot open graph store",
		err.Error(),
		fmt.Sprintf("Check that %s is writable", cfg.Store.SQLitePath),
		err,
	)
}

// newGraphBuilder wires the chunking and graph sections into a Builder.
func newGraphBuilder(store storage.Store, cfg *Config, logger *slog.Logger, progress *phaseProgress) (*graph.Builder, error) {
	chunker, err := chunking.New(chunking.Config{
		ChunkSize: cfg.Chunking.ChunkSize,
		Overlap:   cfg.Chunking.Overlap,
	}, logger)
	if err != nil {
		return nil, errors.NewConfigError("Invalid chunking settings", err.Error(), "Use an overlap smaller than chunk_size", err)
	}
	return graph.NewBuilder(store,
		graph.WithLogger(logger),
		graph.WithChunker(chunker),
		graph.WithMaxLibrariesPerFile(cfg.Graph.MaxLibrariesPerFile),
		graph.WithFileTimeout(cfg.Graph.FileTimeout),
		graph.WithProgressCallback(progress.Update),
	)
}
