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
	"log/slog"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/docgraph/internal/errors"
	"github.com/kraklabs/docgraph/internal/output"
	"github.com/kraklabs/docgraph/internal/ui"
	"github.com/kraklabs/docgraph/pkg/graph"
	"github.com/kraklabs/docgraph/pkg/ingestion"
)

// exitInterrupted is the conventional exit status after SIGINT.
const exitInterrupted = 130

// runBuild executes the 'build' command: merge a records file into the graph.
//
// Examples:
//
//	docgraph build records.json
//	docgraph build --clear --store neo4j records.json
func runBuild(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	clearFirst := fs.Bool("clear", false, "Delete the whole graph before building")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: docgraph build [options] [records.json]

Merges records into the graph. Files, folders, definitions and libraries
are merged by identity, so building the same records twice leaves the graph
unchanged. Document chunks are replaced per source file.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	recordsPath := "records.json"
	if fs.NArg() > 0 {
		recordsPath = fs.Arg(0)
	}

	cfg := loadConfig(globals, true, func(c *Config) { sf.apply(fs, c) })
	logger := newLogger(globals)
	startMetricsServer(globals.MetricsAddr, logger)

	records, err := ingestion.ReadRecords(recordsPath)
	if err != nil {
		if stderrors.Is(err, os.ErrNotExist) {
			errors.FatalError(errors.NewNotFoundError(
				"Records file not found",
				fmt.Sprintf("%s does not exist", recordsPath),
				"Run 'docgraph extract' first or pass the records path",
			), globals.JSON)
		}
		errors.FatalError(errors.NewInputError("Cannot read records", err.Error(), "Pass a file written by 'docgraph extract'"), globals.JSON)
	}

	ctx, stop := signalContext()
	defer stop()

	result, err := buildGraph(ctx, records, cfg, *clearFirst, logger, NewProgressConfig(globals))
	finishBuild(result, err, globals)
}

// runRun executes the 'run' command: extract then build without an
// intermediate file unless --output is given.
func runRun(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("run", flag.ExitOnError)
	var in inputFlags
	var sf storeFlags
	in.register(fs)
	sf.register(fs)
	clearFirst := fs.Bool("clear", false, "Delete the whole graph before building")
	out := fs.StringP("output", "o", "", "Also write the records JSON here")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: docgraph run (--dataset FILE | --repo DIR | --git URL) [options]

Extracts records and merges them into the graph in one step.

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

	cfg := loadConfig(globals, true, func(c *Config) {
		in.apply(fs, c)
		sf.apply(fs, c)
	})
	logger := newLogger(globals)
	startMetricsServer(globals.MetricsAddr, logger)

	ctx, stop := signalContext()
	defer stop()

	progress := NewProgressConfig(globals)
	res, err := extractRecords(ctx, in, cfg, logger, progress)
	if err != nil {
		stop()
		errors.FatalError(err, globals.JSON)
	}
	if *out != "" {
		if err := ingestion.WriteRecords(*out, res.Records); err != nil {
			stop()
			errors.FatalError(errors.NewInputError("Cannot write records", err.Error(), "Check the --output path"), globals.JSON)
		}
	}
	if !globals.JSON {
		printExtractSummary(newExtractSummary(res, *out))
		fmt.Fprintln(ui.Out)
	}

	result, err := buildGraph(ctx, res.Records, cfg, *clearFirst, logger, progress)
	finishBuild(result, err, globals)
}

// buildGraph opens the store once, optionally clears it, and builds.
func buildGraph(ctx context.Context, records []ingestion.Record, cfg *Config, clearFirst bool, logger *slog.Logger, progress ProgressConfig) (*graph.BuildResult, error) {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("store.close.error", "err", err)
		}
	}()

	bars := newPhaseProgress(progress)
	defer bars.Finish()

	builder, err := newGraphBuilder(store, cfg, logger, bars)
	if err != nil {
		return nil, err
	}
	if clearFirst {
		if err := builder.Clear(ctx); err != nil {
			return nil, errors.NewStoreError("Cannot clear graph", err.Error(), "Check the store is reachable and writable", err)
		}
	}
	return builder.Build(ctx, records)
}

// finishBuild reports the result and exits on failure.
func finishBuild(result *graph.BuildResult, err error, globals GlobalFlags) {
	if err != nil && result == nil {
		errors.FatalError(err, globals.JSON)
	}

	if globals.JSON {
		if jerr := output.Result("build", result); jerr != nil {
			errors.FatalError(jerr, true)
		}
	} else {
		printBuildSummary(result)
	}

	if err != nil {
		if !globals.JSON {
			ui.Warningf("Build interrupted: %v", err)
		}
		os.Exit(exitInterrupted)
	}
}

func printBuildSummary(r *graph.BuildResult) {
	ui.Header("Build complete")
	ui.KeyValue("Files", ui.CountText(r.FilesProcessed), 12)
	ui.KeyValue("Failed", ui.CountText(r.FilesFailed), 12)
	ui.KeyValue("Classes", ui.CountText(r.Classes), 12)
	ui.KeyValue("Methods", ui.CountText(r.Methods), 12)
	ui.KeyValue("Functions", ui.CountText(r.Functions), 12)
	ui.KeyValue("Calls", ui.CountText(r.Calls), 12)
	ui.KeyValue("Libraries", ui.CountText(r.Libraries), 12)
	ui.KeyValue("Chunks", ui.CountText(r.Chunks), 12)
	ui.KeyValue("Duration", r.Duration.Round(time.Millisecond), 12)
	for _, f := range r.Failures {
		ui.Warningf("%s (%s): %v", f.Path, f.Phase, f.Err)
	}
	if r.FilesFailed == 0 {
		ui.Successf("Graph updated (run %s)", r.RunID)
	}
}
