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
	"fmt"
	"strings"
)

// cypherStatement is one parameterised Cypher query.
type cypherStatement struct {
	Query  string
	Params map[string]any
}

// cypherFor translates a validated mutation into Cypher. Labels, edge types
// and property names are spliced into the query text, so callers must run
// Validate first. ok is false when the mutation writes nothing.
func cypherFor(m Mutation) (stmt cypherStatement, ok bool) {
	switch m.Kind {
	case KindMergeNode:
		q := fmt.Sprintf("MERGE (n:`%s` {%s: $key}) SET n += $props", m.Node.Label, KeyProperty(m.Node.Label))
		for _, t := range m.Tags {
			q += fmt.Sprintf(" SET n:`%s`", t)
		}
		return cypherStatement{Query: q, Params: map[string]any{"key": m.Node.Key, "props": nodeProps(m.Props)}}, true

	case KindCreateNode:
		q := fmt.Sprintf("CREATE (n:`%s`) SET n = $props", m.Node.Label)
		return cypherStatement{Query: q, Params: map[string]any{"props": nodeProps(m.Props)}}, true

	case KindMergeEdge:
		q := fmt.Sprintf("MATCH (a:`%s` {%s: $from}) MATCH (b:`%s` {%s: $to}) MERGE (a)-[r:`%s`]->(b) SET r += $props",
			m.From.Label, KeyProperty(m.From.Label), m.To.Label, KeyProperty(m.To.Label), m.EdgeType)
		return cypherStatement{Query: q, Params: map[string]any{"from": m.From.Key, "to": m.To.Key, "props": nodeProps(m.Props)}}, true

	case KindMergeEdgesToMatches:
		match := m.Match
		if match.RestrictFiles && len(match.Files) == 0 {
			return cypherStatement{}, false
		}
		params := map[string]any{"from": m.From.Key, "props": nodeProps(m.Props)}
		var where []string
		for _, k := range sortedKeys(match.Props) {
			p := "m_" + k
			where = append(where, fmt.Sprintf("b.%s = $%s", k, p))
			params[p] = match.Props[k]
		}
		if match.RestrictFiles {
			where = append(where, "b.file IN $files")
			params["files"] = append([]string(nil), match.Files...)
		}
		q := fmt.Sprintf("MATCH (a:`%s` {%s: $from}) MATCH (b:`%s`) WHERE %s MERGE (a)-[r:`%s`]->(b) SET r += $props",
			m.From.Label, KeyProperty(m.From.Label), match.Label, strings.Join(where, " AND "), m.EdgeType)
		return cypherStatement{Query: q, Params: params}, true

	case KindDeleteChunks:
		return cypherStatement{
			Query:  "MATCH (c:`Chunk` {source_id: $source_id}) DETACH DELETE c",
			Params: map[string]any{"source_id": m.SourceID},
		}, true
	}
	return cypherStatement{}, false
}

// nodeProps never returns nil: Neo4j rejects a null map parameter.
func nodeProps(props map[string]any) map[string]any {
	if props == nil {
		return map[string]any{}
	}
	return props
}

// schemaStatements returns the constraints and indexes EnsureSchema creates.
func schemaStatements() []string {
	var out []string
	for _, l := range labels {
		prop := KeyProperty(l)
		out = append(out, fmt.Sprintf("CREATE CONSTRAINT %s_%s IF NOT EXISTS FOR (n:`%s`) REQUIRE n.%s IS UNIQUE",
			strings.ToLower(l), prop, l, prop))
	}
	for _, l := range []string{LabelClass, LabelMethod, LabelFunction} {
		out = append(out, fmt.Sprintf("CREATE INDEX %s_name IF NOT EXISTS FOR (n:`%s`) ON (n.name)", strings.ToLower(l), l))
	}
	out = append(out, "CREATE INDEX chunk_source_id IF NOT EXISTS FOR (n:`Chunk`) ON (n.source_id)")
	return out
}

// neighborsQuery returns the Cypher for Store.Neighbors.
func neighborsQuery(ref NodeRef, edgeType string, dir Direction) string {
	rel := "[r]"
	if edgeType != "" {
		rel = fmt.Sprintf("[r:`%s`]", edgeType)
	}
	pattern := "-" + rel + "->"
	if dir == Incoming {
		pattern = "<-" + rel + "-"
	}
	return fmt.Sprintf("MATCH (a:`%s` {%s: $key})%s(n) RETURN DISTINCT n ORDER BY coalesce(n.id, n.path, n.name)",
		ref.Label, KeyProperty(ref.Label), pattern)
}
