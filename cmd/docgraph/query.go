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

// definitionView is one definition with its call neighbourhood.
type definitionView struct {
	Label   string   `json:"label"`
	ID      string   `json:"id"`
	File    any      `json:"file"`
	Callers []string `json:"callers"`
	Callees []string `json:"callees"`
}

// runDefs lists every Class, Method and Function with a given name across
// files, with their CALLS neighbours.
//
// Examples:
//
//	docgraph defs run
//	docgraph --json defs helper
func runDefs(args []string, globals GlobalFlags) {
	fs := flag.NewFlagSet("defs", flag.ExitOnError)
	var sf storeFlags
	sf.register(fs)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: docgraph defs [options] <name>\n\nLists classes, methods and functions named <name> in every file, with callers and callees.\n\nOptions:\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(1)
	}
	name := fs.Arg(0)

	cfg := loadConfig(globals, true, func(c *Config) { sf.apply(fs, c) })
	newLogger(globals)

	ctx, stop := signalContext()
	defer stop()

	var views []definitionView
	err := withStore(ctx, cfg, func(store storage.Store) error {
		var err error
		views, err = lookupDefinitions(ctx, store, name)
		return err
	})
	if err != nil {
		stop()
		errors.FatalError(err, globals.JSON)
	}

	if globals.JSON {
		if err := output.Result("defs", views); err != nil {
			errors.FatalError(err, true)
		}
		return
	}
	if len(views) == 0 {
		ui.Infof("No definitions named %q", name)
		return
	}
	for _, v := range views {
		fmt.Fprintf(ui.Out, "%s %s\n", ui.Label(v.Label), v.ID)
		ui.KeyValue("callers", len(v.Callers), 8)
		for _, c := range v.Callers {
			fmt.Fprintf(ui.Out, "    %s\n", ui.DimText(c))
		}
		ui.KeyValue("callees", len(v.Callees), 8)
		for _, c := range v.Callees {
			fmt.Fprintf(ui.Out, "    %s\n", ui.DimText(c))
		}
	}
}

// lookupDefinitions aggregates same-name definitions and their CALLS edges.
func lookupDefinitions(ctx context.Context, store storage.Store, name string) ([]definitionView, error) {
	nodes, err := store.DefinitionsByName(ctx, name)
	if err != nil {
		return nil, err
	}
	views := make([]definitionView, 0, len(nodes))
	for _, n := range nodes {
		v := definitionView{Label: n.Label, ID: n.Key, File: n.Props["file"]}
		if v.Callers, err = neighborKeys(ctx, store, n.Ref(), storage.Incoming); err != nil {
			return nil, err
		}
		if v.Callees, err = neighborKeys(ctx, store, n.Ref(), storage.Outgoing); err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

func neighborKeys(ctx context.Context, store storage.Store, ref storage.NodeRef, dir storage.Direction) ([]string, error) {
	nodes, err := store.Neighbors(ctx, ref, storage.EdgeCalls, dir)
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(nodes))
	for i, n := range nodes {
		keys[i] = n.Key
	}
	return keys, nil
}
