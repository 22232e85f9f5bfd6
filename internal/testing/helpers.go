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

package testing

import (
	"context"
	"testing"

	"github.com/kraklabs/docgraph/pkg/ingestion"
	"github.com/kraklabs/docgraph/pkg/storage"
)

// SetupTestStore creates an in-memory SQLite graph store for testing.
// The store is automatically closed when the test finishes.
//
// Example:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//	    testing.InsertTestFunction(t, store, "utils.py", "helper")
//	    // Run your tests...
//	}
func SetupTestStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()

	store, err := storage.NewSQLiteStore(storage.SQLiteConfig{Path: storage.MemoryPath})
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}

	t.Cleanup(func() {
		_ = store.Close()
	})

	return store
}

// Apply commits mutations for file or fails the test.
func Apply(t *testing.T, store storage.Store, file string, mutations ...storage.Mutation) {
	t.Helper()
	if err := store.ApplyFileMutations(context.Background(), file, mutations); err != nil {
		t.Fatalf("failed to apply mutations for %s: %v", file, err)
	}
}

// InsertTestFile adds a File node.
func InsertTestFile(t *testing.T, store storage.Store, path string) {
	t.Helper()
	Apply(t, store, path, storage.MergeNode(storage.LabelFile, path, nil))
}

// InsertTestFunction adds a Function node keyed "<file>::<name>" and the
// DEFINES edge from its File.
func InsertTestFunction(t *testing.T, store storage.Store, file, name string) {
	t.Helper()
	id := file + "::" + name
	Apply(t, store, file,
		storage.MergeNode(storage.LabelFile, file, nil),
		storage.MergeNode(storage.LabelFunction, id, map[string]any{"name": name, "file": file}),
		storage.MergeEdge(storage.EdgeDefines,
			storage.NodeRef{Label: storage.LabelFile, Key: file},
			storage.NodeRef{Label: storage.LabelFunction, Key: id}, nil),
	)
}

// NodeCount returns the number of nodes with label.
func NodeCount(t *testing.T, store storage.Store, label string) int {
	t.Helper()
	return Stats(t, store).Nodes[label]
}

// EdgeCount returns the number of edges of edgeType.
func EdgeCount(t *testing.T, store storage.Store, edgeType string) int {
	t.Helper()
	return Stats(t, store).Edges[edgeType]
}

// Stats returns store statistics or fails the test.
func Stats(t *testing.T, store storage.Store) *storage.Stats {
	t.Helper()
	stats, err := store.Stats(context.Background())
	if err != nil {
		t.Fatalf("failed to read stats: %v", err)
	}
	return stats
}

// NeighborKeys returns the keys of the nodes adjacent to ref.
func NeighborKeys(t *testing.T, store storage.Store, ref storage.NodeRef, edgeType string, dir storage.Direction) []string {
	t.Helper()
	nodes, err := store.Neighbors(context.Background(), ref, edgeType, dir)
	if err != nil {
		t.Fatalf("failed to read neighbors of %s: %v", ref, err)
	}
	keys := make([]string, 0, len(nodes))
	for _, n := range nodes {
		keys = append(keys, n.Key)
	}
	return keys
}

// PythonRecord returns a Python record for file.
func PythonRecord(file string, classes []ingestion.Class, functions []ingestion.Definition, calls []ingestion.Call) ingestion.Record {
	return ingestion.Record{
		File:      file,
		Type:      ingestion.FileTypePython,
		Imports:   []ingestion.Import{},
		Classes:   classes,
		Functions: functions,
		Calls:     calls,
	}
}

// DocumentRecord returns a document record of the given type.
func DocumentRecord(file string, typ ingestion.FileType, content any) ingestion.Record {
	return ingestion.Record{File: file, Type: typ, Content: content}
}

// Def returns a definition with a trivial body.
func Def(name string, args ...string) ingestion.Definition {
	return ingestion.Definition{
		Name:       name,
		Content:    "def " + name + "():\n    pass",
		Signature:  ingestion.Signature{Args: append([]string{}, args...), Defaults: []string{}},
		Decorators: []string{},
	}
}
