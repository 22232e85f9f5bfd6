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

package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultParseWorkers is used when PipelineConfig.ParseWorkers is not set.
const DefaultParseWorkers = 4

// PipelineConfig configures an extraction run.
type PipelineConfig struct {
	// ParseWorkers bounds concurrent per-file extraction.
	ParseWorkers int

	// CrossCalls runs the CrossResolver after extraction.
	CrossCalls bool

	// FileTimeout bounds extraction of a single file. Zero disables it.
	FileTimeout time.Duration

	// BuiltinModules overrides DefaultBuiltinModules when non-nil.
	BuiltinModules []string

	Extractor ExtractorConfig

	// OnProgress, when set, is called after each file with the number of
	// files done so far. It may be called from several goroutines.
	OnProgress func(done, total int)
}

// Pipeline turns dataset rows into records.
type Pipeline struct {
	config PipelineConfig
	logger *slog.Logger
}

// Result summarizes an extraction run.
type Result struct {
	// RunID is the unique identifier for this run (UUID).
	RunID string

	// Records are the extracted records, sorted by path.
	Records []Record

	// FilesSeen is the number of input rows after de-duplication.
	FilesSeen int

	// FilesExtracted is the number of rows that produced a record.
	FilesExtracted int

	// ParseErrors is the number of files that failed to parse or timed out.
	ParseErrors int

	// ParseErrorRate is the percentage of files that failed (0-100).
	ParseErrorRate float64

	// Failures lists the per-file errors behind ParseErrors.
	Failures []*FileError

	// SkipReasons maps skip reasons to counts (e.g., "readme": 1).
	SkipReasons map[string]int

	// Resolve is set when cross-call resolution ran.
	Resolve *ResolveStats

	ExtractDuration time.Duration
	ResolveDuration time.Duration
	TotalDuration   time.Duration
}

// NewPipeline creates an extraction pipeline.
func NewPipeline(config PipelineConfig, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ParseWorkers <= 0 {
		config.ParseWorkers = DefaultParseWorkers
	}
	return &Pipeline{config: config, logger: logger}
}

// fileOutcome is the result slot for one row.
type fileOutcome struct {
	record *Record
	err    error
}

// Run extracts every row. Per-file failures are counted and logged, never
// returned; an error is returned only when ctx is cancelled.
func (p *Pipeline) Run(ctx context.Context, rows []Row) (*Result, error) {
	startTime := time.Now()
	runID := uuid.NewString()
	p.logger.Info("extract.start", "run_id", runID, "rows", len(rows))

	skipReasons := make(map[string]int)
	rows = dedupeRows(rows, skipReasons)

	paths := make([]string, len(rows))
	for i, r := range rows {
		paths[i] = r.Path
	}
	classifier := NewImportClassifier(ProjectModules(paths), p.config.BuiltinModules)
	extractor := NewExtractor(p.config.Extractor, classifier, p.logger)

	// Step 1: Extract files
	extractStart := time.Now()
	outcomes, err := p.extractAll(ctx, extractor, rows)
	if err != nil {
		return nil, err
	}
	extractDuration := time.Since(extractStart)

	result := &Result{
		RunID:       runID,
		Records:     make([]Record, 0, len(rows)),
		FilesSeen:   len(rows),
		SkipReasons: skipReasons,
	}

	for i, out := range outcomes {
		var skip *SkipError
		var fileErr *FileError
		switch {
		case out.err == nil:
			result.Records = append(result.Records, *out.record)
		case errors.As(out.err, &skip):
			result.SkipReasons[skip.Reason]++
			recordSkipped(skip.Reason)
		case errors.As(out.err, &fileErr):
			result.Failures = append(result.Failures, fileErr)
			recordParseError()
			p.logger.Warn("extract.file.error", "path", fileErr.Path, "err", fileErr.Err)
		default:
			result.Failures = append(result.Failures, &FileError{Path: rows[i].Path, Err: out.err})
			recordParseError()
			p.logger.Warn("extract.file.error", "path", rows[i].Path, "err", out.err)
		}
	}
	result.FilesExtracted = len(result.Records)
	result.ParseErrors = len(result.Failures)
	if len(rows) > 0 {
		result.ParseErrorRate = float64(result.ParseErrors) / float64(len(rows)) * 100.0
	}
	result.ExtractDuration = extractDuration

	// Step 2: Resolve cross-file calls
	if p.config.CrossCalls {
		resolveStart := time.Now()
		resolver := NewCrossResolver()
		resolver.Index(result.Records)
		stats := resolver.Resolve(result.Records)
		result.Resolve = &stats
		result.ResolveDuration = time.Since(resolveStart)
		recordResolveDuration(result.ResolveDuration)

		p.logger.Info("extract.cross_calls.resolved",
			"run_id", runID,
			"functions_indexed", stats.FunctionsIndexed,
			"methods_indexed", stats.MethodsIndexed,
			"calls", stats.CallsAnnotated,
			"self_calls", stats.SelfCalls,
		)
	}

	result.TotalDuration = time.Since(startTime)
	recordTotalDuration(result.TotalDuration)

	p.logger.Info("extract.complete",
		"run_id", runID,
		"files", result.FilesSeen,
		"records", result.FilesExtracted,
		"parse_errors", result.ParseErrors,
		"skip_reasons", result.SkipReasons,
		"total_duration_ms", result.TotalDuration.Milliseconds(),
	)

	return result, nil
}

// extractAll runs the extractor over rows with a bounded worker pool.
// Outcomes are indexed like rows.
func (p *Pipeline) extractAll(ctx context.Context, extractor *Extractor, rows []Row) ([]fileOutcome, error) {
	outcomes := make([]fileOutcome, len(rows))
	if len(rows) == 0 {
		return outcomes, nil
	}

	var done atomic.Int64
	var progressMu sync.Mutex
	progress := func() {
		n := int(done.Add(1))
		if p.config.OnProgress != nil {
			progressMu.Lock()
			p.config.OnProgress(n, len(rows))
			progressMu.Unlock()
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.ParseWorkers)

	for i := range rows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = p.extractOne(gctx, extractor, rows[i])
			progress()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extraction cancelled: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("extraction cancelled: %w", err)
	}
	return outcomes, nil
}

func (p *Pipeline) extractOne(ctx context.Context, extractor *Extractor, row Row) fileOutcome {
	if p.config.FileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.FileTimeout)
		defer cancel()
	}

	start := time.Now()
	rec, err := extractor.Extract(ctx, row)
	if err != nil {
		return fileOutcome{err: err}
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fileOutcome{err: &FileError{Path: row.Path, Err: ctxErr}}
	}
	recordExtracted(rec, time.Since(start))
	return fileOutcome{record: rec}
}

// dedupeRows sorts rows by path for deterministic output and keeps the first
// row for each path.
func dedupeRows(rows []Row, skipReasons map[string]int) []Row {
	sorted := make([]Row, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Path < sorted[j].Path
	})

	out := sorted[:0]
	for _, r := range sorted {
		if len(out) > 0 && r.Path == out[len(out)-1].Path {
			skipReasons["duplicate"]++
			continue
		}
		out = append(out, r)
	}
	return out
}
