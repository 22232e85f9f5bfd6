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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/docgraph/pkg/ingestion"
	"github.com/kraklabs/docgraph/pkg/storage"
)

// TestSetupTestStore verifies the test store starts empty.
func TestSetupTestStore(t *testing.T) {
	store := SetupTestStore(t)
	require.NotNil(t, store)

	stats := Stats(t, store)
	for label, n := range stats.Nodes {
		assert.Zero(t, n, "label %s", label)
	}
}

// TestInsertTestFunction verifies function insertion.
func TestInsertTestFunction(t *testing.T) {
	store := SetupTestStore(t)

	InsertTestFunction(t, store, "auth.py", "handle_auth")
	InsertTestFunction(t, store, "auth.py", "handle_auth")

	assert.Equal(t, 1, NodeCount(t, store, storage.LabelFile))
	assert.Equal(t, 1, NodeCount(t, store, storage.LabelFunction))
	assert.Equal(t, 1, EdgeCount(t, store, storage.EdgeDefines))

	keys := NeighborKeys(t, store, storage.NodeRef{Label: storage.LabelFile, Key: "auth.py"}, storage.EdgeDefines, storage.Outgoing)
	assert.Equal(t, []string{"auth.py::handle_auth"}, keys)
}

// TestInsertTestFile verifies file insertion.
func TestInsertTestFile(t *testing.T) {
	store := SetupTestStore(t)
	InsertTestFile(t, store, "docs/guide.md")
	assert.Equal(t, 1, NodeCount(t, store, storage.LabelFile))
}

// TestRecordFixtures verifies record builders.
func TestRecordFixtures(t *testing.T) {
	rec := PythonRecord("a.py", nil, []ingestion.Definition{Def("f", "x")}, nil)
	assert.Equal(t, ingestion.FileTypePython, rec.Type)
	require.Len(t, rec.Functions, 1)
	assert.Equal(t, []string{"x"}, rec.Functions[0].Signature.Args)

	doc := DocumentRecord("a.md", ingestion.FileTypeMarkdown, "# Title")
	assert.Equal(t, "# Title", doc.Content)
}
