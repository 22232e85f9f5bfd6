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

// Package graph merges extracted records into a property graph.
//
// Builder turns each record into per-file mutation batches and applies them
// through storage.Store. A build runs in two phases: first every file's
// File/Folder/Chunk/Class/Method/Function/Library nodes, then the CALLS
// edges, which can only link definitions that already exist.
//
// # Identity
//
// Files and folders are keyed by path. Definitions use composite ids
// (ClassID, MethodID, FunctionID) so same-named definitions in different
// files stay distinct; Store.DefinitionsByName groups them by bare name.
//
// # Quick Start
//
//	builder, err := graph.NewBuilder(store, graph.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := builder.BuildFromFile(ctx, "records.json")
//
// Per-file failures are rolled back, logged and reported in
// BuildResult.Failures; they never stop the build.
package graph
