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

package storage

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestStoreInterface verifies that both stores implement Store.
func TestStoreInterface(t *testing.T) {
	var _ Store = &SQLiteStore{}
	var _ Store = &Neo4jStore{}
}

func TestKeyProperty(t *testing.T) {
	assert.Equal(t, "path", KeyProperty(LabelFile))
	assert.Equal(t, "path", KeyProperty(LabelFolder))
	assert.Equal(t, "name", KeyProperty(LabelLibrary))
	assert.Equal(t, "id", KeyProperty(LabelClass))
	assert.Equal(t, "id", KeyProperty(LabelChunk))
}

func TestMergeNode_SetsKeyProperty(t *testing.T) {
	props := map[string]any{"name": "a.py"}
	m := MergeNode(LabelFile, "pkg/a.py", props)
	assert.Equal(t, "pkg/a.py", m.Props["path"])
	assert.NotContains(t, props, "path", "caller map is not modified")
}

func TestMutation_Validate(t *testing.T) {
	file := NodeRef{Label: LabelFile, Key: "a.py"}
	fn := NodeRef{Label: LabelFunction, Key: "a.py::f"}

	tests := []struct {
		name    string
		m       Mutation
		wantErr string
	}{
		{"merge node", MergeNode(LabelFile, "a.py", nil, TagYAML), ""},
		{"unknown label", MergeNode("Robot", "r", nil), "unknown label"},
		{"empty key", MergeNode(LabelFile, "", nil), "empty key"},
		{"unknown tag", MergeNode(LabelFile, "a.py", nil, "Rust"), "unknown tag"},
		{"bad property", MergeNode(LabelFile, "a.py", map[string]any{"Bad-Name": 1}), "invalid property name"},
		{"merge edge", MergeEdge(EdgeDefines, file, fn, nil), ""},
		{"unknown edge type", MergeEdge("OWNS", file, fn, nil), "unknown edge type"},
		{"match edge", MergeEdgesToMatches(EdgeCalls, fn, Match{Label: LabelMethod, Props: map[string]string{"name": "x"}}, nil), ""},
		{"match without props", MergeEdgesToMatches(EdgeCalls, fn, Match{Label: LabelMethod}, nil), "at least one"},
		{"match bad prop", MergeEdgesToMatches(EdgeCalls, fn, Match{Label: LabelMethod, Props: map[string]string{"n}) DETACH": "x"}}, nil), "invalid property name"},
		{"delete chunks", DeleteChunks("a.md"), ""},
		{"delete chunks empty", DeleteChunks(""), "source id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.m.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestCypherFor_MergeNode(t *testing.T) {
	stmt, ok := cypherFor(MergeNode(LabelFile, "a.md", map[string]any{"name": "a.md"}, TagMarkdown))
	require.True(t, ok)
	assert.Equal(t, "MERGE (n:`File` {path: $key}) SET n += $props SET n:`Markdown`", stmt.Query)
	assert.Equal(t, "a.md", stmt.Params["key"])
	assert.Equal(t, map[string]any{"name": "a.md", "path": "a.md"}, stmt.Params["props"])
}

func TestCypherFor_CreateNode(t *testing.T) {
	stmt, ok := cypherFor(CreateNode(LabelChunk, "a.md_chunk_0", nil))
	require.True(t, ok)
	assert.Equal(t, "CREATE (n:`Chunk`) SET n = $props", stmt.Query)
	assert.Equal(t, map[string]any{"id": "a.md_chunk_0"}, stmt.Params["props"])
}

func TestCypherFor_MergeEdge(t *testing.T) {
	stmt, ok := cypherFor(MergeEdge(EdgeContains,
		NodeRef{Label: LabelFolder, Key: "pkg"}, NodeRef{Label: LabelFile, Key: "pkg/a.py"}, nil))
	require.True(t, ok)
	assert.Equal(t, "MATCH (a:`Folder` {path: $from}) MATCH (b:`File` {path: $to}) MERGE (a)-[r:`CONTAINS`]->(b) SET r += $props", stmt.Query)
	assert.Equal(t, map[string]any{}, stmt.Params["props"], "nil props become an empty map")
}

func TestCypherFor_MergeEdgesToMatches(t *testing.T) {
	from := NodeRef{Label: LabelMethod, Key: "a.py::C.run"}
	stmt, ok := cypherFor(MergeEdgesToMatches(EdgeCalls, from, Match{
		Label:         LabelMethod,
		Props:         map[string]string{"name": "helper", "class": "C"},
		RestrictFiles: true,
		Files:         []string{"a.py", "b.py"},
	}, map[string]any{"called_function": "helper"}))
	require.True(t, ok)
	assert.Equal(t,
		"MATCH (a:`Method` {id: $from}) MATCH (b:`Method`) WHERE b.class = $m_class AND b.name = $m_name AND b.file IN $files MERGE (a)-[r:`CALLS`]->(b) SET r += $props",
		stmt.Query)
	assert.Equal(t, "C", stmt.Params["m_class"])
	assert.Equal(t, "helper", stmt.Params["m_name"])
	assert.Equal(t, []string{"a.py", "b.py"}, stmt.Params["files"])

	_, ok = cypherFor(MergeEdgesToMatches(EdgeCalls, from, Match{
		Label:         LabelMethod,
		Props:         map[string]string{"name": "helper"},
		RestrictFiles: true,
	}, nil))
	assert.False(t, ok, "empty file restriction writes nothing")
}

func TestCypherFor_DeleteChunks(t *testing.T) {
	stmt, ok := cypherFor(DeleteChunks("a.md"))
	require.True(t, ok)
	assert.Contains(t, stmt.Query, "DETACH DELETE c")
	assert.Equal(t, "a.md", stmt.Params["source_id"])
}

func TestSchemaStatements(t *testing.T) {
	stmts := schemaStatements()
	joined := strings.Join(stmts, "\n")
	for _, l := range Labels() {
		assert.Contains(t, joined, "FOR (n:`"+l+"`) REQUIRE n."+KeyProperty(l)+" IS UNIQUE")
	}
	assert.Contains(t, joined, "CREATE INDEX chunk_source_id IF NOT EXISTS")
}

func TestNeighborsQuery(t *testing.T) {
	ref := NodeRef{Label: LabelFolder, Key: "pkg"}
	assert.Contains(t, neighborsQuery(ref, EdgeContains, Outgoing), "MATCH (a:`Folder` {path: $key})-[r:`CONTAINS`]->(n)")
	assert.Contains(t, neighborsQuery(ref, "", Incoming), "MATCH (a:`Folder` {path: $key})<-[r]-(n)")
}
