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
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/docgraph/internal/errors"
	"github.com/kraklabs/docgraph/internal/output"
	"github.com/kraklabs/docgraph/internal/ui"
	"github.com/kraklabs/docgraph/pkg/ingestion"
)

// extractSummary is the JSON form of an extraction run.
type extractSummary struct {
	RunID          string                  `json:"run_id"`
	Output         string                  `json:"output,omitempty"`
	FilesSeen      int                     `json:"files_seen"`
	Records        int                     `json:"records"`
	ParseErrors    int                     `json:"parse_errors"`
	ParseErrorRate float64                 `json:"parse_error_rate"`
	SkipReasons    map[string]int          `json:"skip_reasons"`
	Resolve        *ingestion.ResolveStats `json:"resolve,omitempty"`
	Failures       []failureJSON           `json:"failures"`
	DurationMs     int64                   `json:"duration_ms"`
}

type failureJSON struct {
	Path  string `json:"path"`
	Error string `json:"error"`
}

func newExtractSummary(res *ingestion.Result, out string) extractSummary {
	s := extractSummary{
		RunID:          res.RunID,
		Output:         out,
		FilesSeen:      res.FilesSeen,
		Records:        res.FilesExtracted,
		ParseErrors:    res.ParseErrors,
		ParseErrorRate: res.ParseErrorRate,
		SkipReasons:    res.SkipReasons,
		Resolve:        res.Resolve,
		Failures:       make([]failureJSON, 0, len(res.Failures)),
		DurationMs:     res.TotalDuration.Milliseconds(),
	}
	for _, f := range res.Failures {
		s.Failures = append(s.Failures, failureJSON{Path: f.Path, Error: f.Err.Error()})
	}
	return s
}

// runExtract executes the 'extract' command: rows in, records JSON out.
//
// Examples:
//
//	docgraph extract --repo . -o records.json
//	docgraph extract --dataset rows.jsonl --cross-calls
func runExtract(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	var in inputFlags
	in.register(fs)
	out := fs.StringP("output", "o", "records.json", "Where to write the records JSON")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: docgraph extract (--dataset FILE | --repo DIR | --git URL) [options]

Parses Python files (classes, methods, functions, calls, imports) and reads
Markdown, text and YAML documents, then writes one record per file.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if err := in.validate(); err != nil {
		errors.FatalError(err, globals.JSON)
	}

	cfg := loadConfig(globals, false, func(c *Config) { in.apply(fs, c) })
	logger := newLogger(globals)
	startMetricsServer(globals.MetricsAddr, logger)

	ctx, stop := signalContext()
	defer stop()

	res, err := extractRecords(ctx, in, cfg, logger, NewProgressConfig(globals))
	if err != nil {
		stop()
		errors.FatalError(err, globals.JSON)
	}

	if err := ingestion.WriteRecords(*out, res.Records); err != nil {
		stop()
		errors.FatalError(errors.NewInputError("Cannot write records", err.Error(), "Check the --output path"), globals.JSON)
	}

	summary := newExtractSummary(res, *out)
	if globals.JSON {
		if err := output.Result("extract", summary); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	printExtractSummary(summary)
}

// extractRecords loads rows and runs the extraction pipeline.
func extractRecords(ctx context.Context, in inputFlags, cfg *Config, logger *slog.Logger, progress ProgressConfig) (*ingestion.Result, error) {
	rows, cleanup, err := loadRows(ctx, in, cfg, logger, progress)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	bars := newPhaseProgress(progress)
	defer bars.Finish()

	pc := cfg.PipelineConfig()
	pc.OnProgress = func(done, total int) { bars.Update("extract", done, total) }

	res, err := ingestion.NewPipeline(pc, logger).Run(ctx, rows)
	if err != nil {
		return nil, errors.NewInputError("Extraction interrupted", err.Error(), "Re-run the command to completion")
	}
	return res, nil
}

func printExtractSummary(s extractSummary) {
	ui.Header("Extraction complete")
	ui.KeyValue("Records", ui.CountText(s.Records), 14)
	ui.KeyValue("Files seen", ui.CountText(s.FilesSeen), 14)
	ui.KeyValue("Parse errors", ui.CountText(s.ParseErrors), 14)
	if s.Resolve != nil {
		ui.KeyValue("Calls", ui.CountText(s.Resolve.CallsAnnotated), 14)
		ui.KeyValue("Self calls", ui.CountText(s.Resolve.SelfCalls), 14)
	}
	if s.Output != "" {
		ui.KeyValue("Output", ui.DimText(s.Output), 14)
	}
	if len(s.SkipReasons) > 0 {
		fmt.Fprintln(ui.Out)
		ui.Counts("Skipped", s.SkipReasons)
	}
	for _, f := range s.Failures {
		ui.Warningf("%s: %s", f.Path, f.Error)
	}
}
