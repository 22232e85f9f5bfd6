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

// Package testing provides test helpers for docgraph packages.
//
// # Quick Start
//
// Use SetupTestStore to create an in-memory graph store:
//
//	func TestMyFeature(t *testing.T) {
//	    store := testing.SetupTestStore(t)
//
//	    testing.InsertTestFunction(t, store, "utils.py", "helper")
//
//	    require.Equal(t, 1, testing.NodeCount(t, store, storage.LabelFunction))
//	}
//
// # Seeding Test Data
//
//   - Apply: commit arbitrary mutations for one file
//   - InsertTestFile: add a File node
//   - InsertTestFunction: add a Function with its DEFINES edge
//
// # Record Fixtures
//
// PythonRecord, DocumentRecord and Def build ingestion records for graph
// builder tests without running the extractor.
//
// # Querying Test Data
//
//   - Stats, NodeCount, EdgeCount: graph counts
//   - NeighborKeys: keys of adjacent nodes
package testing
