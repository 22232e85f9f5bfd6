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

// Package storage holds the property graph that docgraph builds.
//
// The Store interface is the only way the graph builder touches a database.
// Writes are expressed as Mutation values and applied per source file with
// ApplyFileMutations, so a file's nodes and edges land together or not at
// all. Reads cover what query consumers need: counts (Stats), same-name
// definitions across files (DefinitionsByName) and adjacency (Neighbors).
//
// # Available Backends
//
//   - SQLiteStore: embedded, pure Go (modernc.org/sqlite). The default.
//   - Neo4jStore: a Neo4j server reached through the official driver.
//
// # Quick Start
//
//	store, err := storage.Open(ctx, storage.Config{
//	    Backend: storage.BackendSQLite,
//	    SQLite:  storage.SQLiteConfig{Path: ".docgraph/graph.db"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.ApplyFileMutations(ctx, "pkg/a.py", []storage.Mutation{
//	    storage.MergeNode(storage.LabelFile, "pkg/a.py", map[string]any{"name": "a.py"}),
//	    storage.MergeNode(storage.LabelFolder, "pkg", nil),
//	    storage.MergeEdge(storage.EdgeContains,
//	        storage.NodeRef{Label: storage.LabelFolder, Key: "pkg"},
//	        storage.NodeRef{Label: storage.LabelFile, Key: "pkg/a.py"}, nil),
//	})
//
// # Graph Model
//
// Node identity is (label, key). File and Folder are keyed by "path",
// Library by "name" and every other label by "id" (see KeyProperty).
// Merging a node twice updates its properties; a property set to nil is
// removed. Edges are identified by (type, from, to), so merging an edge
// twice never duplicates it.
//
// Labels, tags, edge types and property names are checked by
// Mutation.Validate before a backend splices them into a query.
//
// # Thread Safety
//
// Both stores are safe for concurrent use. SQLiteStore serialises writes
// with an exclusive lock; Neo4jStore opens a session per unit of work.
package storage
