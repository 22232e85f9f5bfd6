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
	"os"

	flag "github.com/spf13/pflag"

	"github.com/kraklabs/docgraph/internal/errors"
	"github.com/kraklabs/docgraph/internal/output"
	"github.com/kraklabs/docgraph/internal/ui"
	"github.com/kraklabs/docgraph/pkg/storage"
)

// runInit writes .docgraph/project.yaml with the default settings.
func runInit(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	force := fs.Bool("force", false, "Overwrite an existing configuration")
	backend := fs.String("store", storage.BackendSQLite, "Store backend to configure: sqlite or neo4j")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: docgraph init [options]

Creates .docgraph/project.yaml. Neo4j credentials are best left to the
NEO4J_USERNAME and NEO4J_PASSWORD environment variables.

Options:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	path := globals.ConfigPath
	if path == "" {
		path = DefaultConfigPath()
	}
	if _, err := os.Stat(path); err == nil && !*force {
		errors.FatalError(errors.NewInputError(
			"Configuration already exists",
			fmt.Sprintf("%s is present", path),
			"Pass --force to overwrite it",
		), globals.JSON)
	}

	cfg := DefaultConfig()
	cfg.Store.Backend = *backend
	if err := cfg.ValidateSettings(); err != nil {
		errors.FatalError(err, globals.JSON)
	}
	if err := SaveConfig(path, cfg); err != nil {
		errors.FatalError(errors.NewConfigError("Cannot write configuration", err.Error(), "Check directory permissions", err), globals.JSON)
	}

	if globals.JSON {
		_ = output.Result("init", map[string]string{"config": path})
		return
	}
	ui.Successf("Created %s", path)
	fmt.Fprintln(ui.Out)
	fmt.Fprintln(ui.Out, "Next steps:")
	fmt.Fprintln(ui.Out, "  docgraph run --repo .    Extract and build the graph")
}

// runStats prints node, tag and edge counts.
func runStats(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("stats", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: docgraph stats [options]\n\nShows node counts by label, tag counts and edge counts by type.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := loadConfig(globals, true, func(c *Config) { sf.apply(fs, c) })
	newLogger(globals)

	ctx, stop := signalContext()
	defer stop()

	var stats *storage.Stats
	err := withStore(ctx, cfg, func(store storage.Store) error {
		var err error
		stats, err = store.Stats(ctx)
		return err
	})
	if err != nil {
		stop()
		errors.FatalError(err, globals.JSON)
	}

	if globals.JSON {
		if err := output.Result("stats", stats); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	ui.Header("Graph")
	ui.Counts("Nodes", stats.Nodes)
	ui.Counts("Tags", stats.Tags)
	ui.Counts("Edges", stats.Edges)
}

// runClear deletes every node and edge. Requires --yes.
func runClear(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("clear", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	confirm := fs.Bool("yes", false, "Confirm the clear (required)")
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: docgraph clear --yes [options]

Deletes every node and edge in the graph.

WARNING: This operation is destructive and cannot be undone!

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if !*confirm {
		errors.FatalError(errors.NewInputError(
			"Refusing to clear the graph",
			"The clear was not confirmed",
			"Pass --yes to delete every node and edge",
		), globals.JSON)
	}

	cfg := loadConfig(globals, true, func(c *Config) { sf.apply(fs, c) })
	logger := newLogger(globals)

	ctx, stop := signalContext()
	defer stop()

	err := withStore(ctx, cfg, func(store storage.Store) error {
		return store.Clear(ctx)
	})
	if err != nil {
		stop()
		errors.FatalError(err, globals.JSON)
	}
	logger.Info("graph.clear", "backend", cfg.Store.Backend)

	if globals.JSON {
		_ = output.Result("clear", map[string]bool{"cleared": true})
		return
	}
	ui.Successf("Graph cleared")
}

// withStore opens the store, runs fn, and closes the store. Errors from fn
// are reported as store failures.
func withStore(ctx context.Context, cfg *Config, fn func(storage.Store) error) error {
	store, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := fn(store); err != nil {
		return errors.NewStoreError("Graph store operation failed", err.Error(), "Check the store is reachable", err)
	}
	return nil
}
