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

package graph

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kraklabs/docgraph/pkg/chunking"
	"github.com/kraklabs/docgraph/pkg/ingestion"
	"github.com/kraklabs/docgraph/pkg/storage"
)

// DefaultMaxLibrariesPerFile caps USES edges per file.
const DefaultMaxLibrariesPerFile = 5

// ProgressFunc is called after each file of a phase.
type ProgressFunc func(phase string, done, total int)

// BuilderOptions configures Builder behavior.
type BuilderOptions struct {
	Logger *slog.Logger

	// Chunker splits document content. Default: 800 characters with 100
	// characters of overlap.
	Chunker *chunking.Chunker

	// MaxLibrariesPerFile bounds Library fan-out per file.
	// Default: 5
	MaxLibrariesPerFile int

	// FileTimeout bounds one file transaction. Zero disables it.
	FileTimeout time.Duration

	// ProgressCallback may be nil.
	ProgressCallback ProgressFunc
}

// BuilderOption is a functional option for configuring Builder.
type BuilderOption func(*BuilderOptions)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(o *BuilderOptions) { o.Logger = logger }
}

// WithChunker sets the document chunker.
func WithChunker(c *chunking.Chunker) BuilderOption {
	return func(o *BuilderOptions) { o.Chunker = c }
}

// WithMaxLibrariesPerFile sets the per-file Library cap.
func WithMaxLibrariesPerFile(n int) BuilderOption {
	return func(o *BuilderOptions) { o.MaxLibrariesPerFile = n }
}

// WithFileTimeout sets the per-file transaction timeout.
func WithFileTimeout(d time.Duration) BuilderOption {
	return func(o *BuilderOptions) { o.FileTimeout = d }
}

// WithProgressCallback sets the progress callback function.
func WithProgressCallback(fn ProgressFunc) BuilderOption {
	return func(o *BuilderOptions) { o.ProgressCallback = fn }
}

// Builder merges records into a graph store.
//
// Each record becomes one transaction per phase, so a failing file rolls
// back alone and the build moves on. Rebuilding the same records leaves
// node and edge counts unchanged.
type Builder struct {
	store   storage.Store
	options BuilderOptions
	logger  *slog.Logger
}

// BuildResult summarizes a build.
type BuildResult struct {
	RunID string `json:"run_id"`

	FilesProcessed int `json:"files_processed"`
	FilesFailed    int `json:"files_failed"`
	FilesSkipped   int `json:"files_skipped"`

	Chunks    int `json:"chunks"`
	Classes   int `json:"classes"`
	Methods   int `json:"methods"`
	Functions int `json:"functions"`
	Calls     int `json:"calls"`
	Libraries int `json:"libraries"`

	Duration time.Duration `json:"duration_ns"`

	Failures []*FileError `json:"failures"`
}

// NewBuilder creates a Builder writing to store. The store handle stays
// owned by the caller.
func NewBuilder(store storage.Store, opts ...BuilderOption) (*Builder, error) {
	options := BuilderOptions{MaxLibrariesPerFile: DefaultMaxLibrariesPerFile}
	for _, opt := range opts {
		opt(&options)
	}
	if options.Logger == nil {
		options.Logger = slog.Default()
	}
	if options.MaxLibrariesPerFile < 0 {
		options.MaxLibrariesPerFile = 0
	}
	if options.Chunker == nil {
		c, err := chunking.New(chunking.Config{
			ChunkSize: chunking.DefaultChunkSize,
			Overlap:   chunking.DefaultOverlap,
		}, options.Logger)
		if err != nil {
			return nil, fmt.Errorf("create chunker: %w", err)
		}
		options.Chunker = c
	}
	return &Builder{store: store, options: options, logger: options.Logger}, nil
}

// Clear deletes every node and edge.
func (b *Builder) Clear(ctx context.Context) error {
	if err := b.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear graph: %w", err)
	}
	b.logger.Info("graph.clear")
	return nil
}

// BuildFromFile builds from a records file written by ingestion.WriteRecords.
func (b *Builder) BuildFromFile(ctx context.Context, path string) (*BuildResult, error) {
	records, err := ingestion.ReadRecords(path)
	if err != nil {
		return nil, err
	}
	return b.Build(ctx, records)
}

// Build merges records in two phases: definitions (files, folders, chunks,
// classes, methods, functions, libraries) for every file, then calls, so a
// call can reach a definition in a file that comes later in the input.
//
// Per-file failures are collected in the result. An error is returned only
// when ctx is cancelled; the partial result is returned with it.
func (b *Builder) Build(ctx context.Context, records []ingestion.Record) (*BuildResult, error) {
	start := time.Now()
	result := &BuildResult{
		RunID:    uuid.NewString(),
		Failures: make([]*FileError, 0),
	}
	b.logger.Info("graph.build.start", "run_id", result.RunID, "records", len(records))

	failed := make(map[string]bool)
	processed := 0
	fail := func(fe *FileError) {
		result.Failures = append(result.Failures, fe)
		failed[fe.Path] = true
		b.logger.Warn("graph.file.error", "run_id", result.RunID, "path", fe.Path, "phase", fe.Phase, "err", fe.Err)
	}

	// Phase 1: definitions
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return b.finish(result, start, failed, processed), fmt.Errorf("build cancelled: %w", err)
		}
		if rec.File == "" {
			result.FilesSkipped++
			b.progress(PhaseDefinitions, i+1, len(records))
			continue
		}

		muts, counts, err := b.definitionBatch(rec)
		if err != nil {
			fail(&FileError{Path: rec.File, Phase: PhaseDefinitions, Err: err})
		} else if err := b.apply(ctx, rec.File, PhaseDefinitions, muts); err != nil {
			fail(err)
		} else {
			processed++
			result.Chunks += counts.chunks
			result.Classes += counts.classes
			result.Methods += counts.methods
			result.Functions += counts.functions
			result.Libraries += counts.libraries
			recordChunks(counts.chunks)
		}
		b.progress(PhaseDefinitions, i+1, len(records))
	}

	// Phase 2: calls
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return b.finish(result, start, failed, processed), fmt.Errorf("build cancelled: %w", err)
		}
		if rec.File != "" && !failed[rec.File] {
			muts, calls := callMutations(rec)
			if err := b.applyCalls(ctx, rec.File, muts); err != nil {
				// Phase 1 already committed this file's definitions, so they
				// stay in the graph and in the counts.
				fail(err)
				processed--
			} else {
				result.Calls += calls
			}
		}
		b.progress(PhaseCalls, i+1, len(records))
	}

	b.finish(result, start, failed, processed)
	b.logger.Info("graph.build.complete",
		"run_id", result.RunID,
		"files", result.FilesProcessed,
		"failed", result.FilesFailed,
		"chunks", result.Chunks,
		"classes", result.Classes,
		"methods", result.Methods,
		"functions", result.Functions,
		"calls", result.Calls,
		"libraries", result.Libraries,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

func (b *Builder) finish(result *BuildResult, start time.Time, failed map[string]bool, processed int) *BuildResult {
	result.FilesFailed = len(failed)
	result.FilesProcessed = processed
	result.Duration = time.Since(start)
	recordBuildDuration(result.Duration)
	return result
}

// definitionBatch assembles the first-phase mutations of one record.
func (b *Builder) definitionBatch(rec ingestion.Record) ([]storage.Mutation, batchCounts, error) {
	muts := folderMutations(rec)
	var counts batchCounts

	switch rec.Type {
	case ingestion.FileTypeMarkdown, ingestion.FileTypeText, ingestion.FileTypeYAML:
		chunkMuts, n, err := chunkMutations(rec, b.options.Chunker)
		if err != nil {
			return nil, counts, err
		}
		muts = append(muts, chunkMuts...)
		counts.chunks = n
	case ingestion.FileTypePython:
		defMuts, defCounts, err := definitionMutations(rec)
		if err != nil {
			return nil, counts, err
		}
		muts = append(muts, defMuts...)
		counts = defCounts
	}

	libMuts, n := libraryMutations(rec, b.options.MaxLibrariesPerFile)
	muts = append(muts, libMuts...)
	counts.libraries = n
	return muts, counts, nil
}

// apply commits one file batch under the per-file timeout.
func (b *Builder) apply(ctx context.Context, file, phase string, muts []storage.Mutation) *FileError {
	if b.options.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.options.FileTimeout)
		defer cancel()
	}

	start := time.Now()
	err := b.store.ApplyFileMutations(ctx, file, muts)
	recordFileWrite(phase, len(muts), time.Since(start), err)
	if err != nil {
		return &FileError{Path: file, Phase: phase, Err: fmt.Errorf("%w: %w", ErrGraphWrite, err)}
	}
	b.logger.Debug("graph.file.applied", "path", file, "phase", phase, "mutations", len(muts))
	return nil
}

// applyCalls commits the CALLS batch of one file. Files without calls
// write nothing.
func (b *Builder) applyCalls(ctx context.Context, file string, muts []storage.Mutation) *FileError {
	if len(muts) == 0 {
		return nil
	}
	return b.apply(ctx, file, PhaseCalls, muts)
}

func (b *Builder) progress(phase string, done, total int) {
	if b.options.ProgressCallback != nil {
		b.options.ProgressCallback(phase, done, total)
	}
}
