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

// Package main implements the docgraph CLI, which turns a source repository
// into a property graph of code entities and document chunks.
//
// Usage:
//
//	docgraph init                          Create .docgraph/project.yaml
//	docgraph extract --repo . -o rec.json  Extract records from a repository
//	docgraph build rec.json                Merge records into the graph
//	docgraph run --repo .                  Extract and build in one step
//	docgraph stats [--json]                Show graph counts
//	docgraph defs <name>                   Same-name definitions and their calls
//	docgraph clear --yes                   Delete every node and edge
package main

import (
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/docgraph/internal/ui"
)

// Version information (set via ldflags during build)
var (
	version = "dev"     // Version string
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// GlobalFlags are accepted before the command name and shared by every command.
type GlobalFlags struct {
	JSON        bool
	Quiet       bool
	NoColor     bool
	Debug       bool
	ConfigPath  string
	MetricsAddr string
}

func main() {
	var globals GlobalFlags
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.StringVar(&globals.ConfigPath, "config", "", "Path to .docgraph/project.yaml (default: ./.docgraph/project.yaml)")
	flag.BoolVar(&globals.JSON, "json", false, "Print results as JSON")
	flag.BoolVarP(&globals.Quiet, "quiet", "q", false, "Only log warnings and hide progress bars")
	flag.BoolVar(&globals.NoColor, "no-color", false, "Disable colored output")
	flag.BoolVar(&globals.Debug, "debug", false, "Enable debug logging")
	flag.StringVar(&globals.MetricsAddr, "metrics-addr", "", "HTTP listen address for Prometheus metrics (empty to disable)")
	flag.CommandLine.SetInterspersed(false)

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `docgraph - code and document graph builder

docgraph extracts classes, methods, functions, calls and imports from a
repository, chunks its documents, and merges everything into a property
graph (embedded SQLite or Neo4j). Re-running a build updates the graph in
place instead of duplicating it.

Usage:
  docgraph [global options] <command> [options]

Commands:
  init       Create .docgraph/project.yaml with default settings
  extract    Extract records from a dataset, directory or git URL
  build      Merge a records file into the graph
  run        Extract and build in one step
  stats      Show node, tag and edge counts
  defs       List same-name definitions across files with callers and callees
  clear      Delete every node and edge (destructive!)
  version    Show version information

Global Options:
`)
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  docgraph extract --repo . --cross-calls -o records.json
  docgraph build --clear records.json
  docgraph run --git https://github.com/org/repo.git
  docgraph --json stats

Environment Variables:
  DOCGRAPH_STORE   Store backend (sqlite or neo4j)
  NEO4J_URI        Neo4j server URI (default: neo4j://localhost:7687)
  NEO4J_USERNAME   Neo4j user
  NEO4J_PASSWORD   Neo4j password
  NEO4J_DATABASE   Neo4j database (default: neo4j)

For detailed command help: docgraph <command> --help
`)
	}

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	// JSON output implies quiet so stdout stays parseable
	if globals.JSON {
		globals.Quiet = true
	}
	ui.InitColors(globals.NoColor)

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(1)
	}

	command := args[0]
	cmdArgs := args[1:]

	switch command {
	case "init":
		runInit(cmdArgs, globals)
	case "extract":
		runExtract(cmdArgs, globals)
	case "build":
		runBuild(cmdArgs, globals)
	case "run":
		runRun(cmdArgs, globals)
	case "stats":
		runStats(cmdArgs, globals)
	case "defs":
		runDefs(cmdArgs, globals)
	case "clear":
		runClear(cmdArgs, globals)
	case "version":
		printVersion()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		flag.Usage()
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("docgraph version %s\n", version)
	fmt.Printf("commit: %s\n", commit)
	fmt.Printf("built: %s\n", date)
}
