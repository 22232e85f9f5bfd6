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

// Package ingestion turns a repository snapshot into structured records.
//
// The ingestion package reads (path, content) rows, extracts the entities of
// each file and optionally annotates call sites with the files that may
// define their targets. Its output, a JSON array of Record values, is the
// input of the graph builder.
//
// # Pipeline Overview
//
// An extraction run has three stages:
//
//  1. Loading: rows come from a Parquet, JSON or JSONL dataset
//     (ReadDataset), a local directory or a shallow git clone (RepoLoader)
//  2. Extraction: each row becomes a Record (Extractor), in parallel
//  3. Resolution: call sites gain candidate files (CrossResolver)
//
// Per-file failures never abort a run; they are counted in Result.
//
// # Record Types
//
// Python files (.py) are parsed with Tree-sitter into imports, classes,
// methods, functions and call sites. Markdown (.md) and text (.txt) keep
// their raw content; YAML (.yaml, .yml) content is decoded into a
// JSON-compatible structure. README files are always skipped, and other
// extensions are skipped unless ExtractorConfig.IncludeOther is set.
//
// Imports are classified in a fixed order: interpreter builtins first
// (external_builtin), then modules defined in the corpus (internal), and
// everything else is external.
//
// # Quick Start
//
//	rows, _, err := ingestion.ReadDataset("dataset.jsonl")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	pipeline := ingestion.NewPipeline(ingestion.PipelineConfig{
//	    ParseWorkers: 4,
//	    CrossCalls:   true,
//	}, logger)
//
//	result, err := pipeline.Run(ctx, rows)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	err = ingestion.WriteRecords("records.json", result.Records)
//
// # Call Resolution
//
// CrossResolver matches calls by bare name. A call's candidates are every
// file defining a free function of that name and, for callers inside a
// class, every file defining a method of that name on a class with the
// caller's class name:
//
//	resolver := ingestion.NewCrossResolver()
//	resolver.Index(records)
//	stats := resolver.Resolve(records)
//
// Resolution is set-valued: Resolve never picks a single target.
//
// # Metrics
//
// Prometheus counters and histograms (docgraph_extract_*) are registered on
// first use with the default registry.
package ingestion
