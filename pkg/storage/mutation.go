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
	"sort"
)

// MutationKind enumerates the write operations a Store understands.
type MutationKind int

const (
	// KindMergeNode upserts a node by identity, merging properties and
	// adding tags.
	KindMergeNode MutationKind = iota

	// KindCreateNode inserts a node that must not exist yet.
	KindCreateNode

	// KindMergeEdge upserts an edge between two existing nodes. Nothing is
	// written when an endpoint is missing.
	KindMergeEdge

	// KindMergeEdgesToMatches upserts an edge from one node to every node
	// matching a property filter.
	KindMergeEdgesToMatches

	// KindDeleteChunks removes every Chunk of a source with its edges.
	KindDeleteChunks
)

func (k MutationKind) String() string {
	switch k {
	case KindMergeNode:
		return "merge_node"
	case KindCreateNode:
		return "create_node"
	case KindMergeEdge:
		return "merge_edge"
	case KindMergeEdgesToMatches:
		return "merge_edges_to_matches"
	case KindDeleteChunks:
		return "delete_chunks"
	}
	return fmt.Sprintf("mutation(%d)", int(k))
}

// Match selects target nodes by label and exact property values.
type Match struct {
	Label string
	Props map[string]string

	// RestrictFiles limits targets to nodes whose "file" property is in
	// Files. An empty Files list then matches nothing.
	RestrictFiles bool
	Files         []string
}

// Mutation is one write of a per-file batch. Which fields are used depends
// on Kind.
type Mutation struct {
	Kind MutationKind

	// Node mutations
	Node  NodeRef
	Props map[string]any
	Tags  []string

	// Edge mutations
	EdgeType string
	From     NodeRef
	To       NodeRef
	Match    *Match

	// KindDeleteChunks
	SourceID string
}

// MergeNode returns a mutation that upserts a node. The identity property is
// set from key.
func MergeNode(label, key string, props map[string]any, tags ...string) Mutation {
	return Mutation{Kind: KindMergeNode, Node: NodeRef{Label: label, Key: key}, Props: withKey(label, key, props), Tags: tags}
}

// CreateNode returns a mutation that inserts a new node.
func CreateNode(label, key string, props map[string]any) Mutation {
	return Mutation{Kind: KindCreateNode, Node: NodeRef{Label: label, Key: key}, Props: withKey(label, key, props)}
}

// MergeEdge returns a mutation that upserts from -[edgeType]-> to.
func MergeEdge(edgeType string, from, to NodeRef, props map[string]any) Mutation {
	return Mutation{Kind: KindMergeEdge, EdgeType: edgeType, From: from, To: to, Props: props}
}

// MergeEdgesToMatches returns a mutation that upserts from -[edgeType]-> n
// for every n selected by match.
func MergeEdgesToMatches(edgeType string, from NodeRef, match Match, props map[string]any) Mutation {
	return Mutation{Kind: KindMergeEdgesToMatches, EdgeType: edgeType, From: from, Match: &match, Props: props}
}

// DeleteChunks returns a mutation that removes the chunks of a source.
func DeleteChunks(sourceID string) Mutation {
	return Mutation{Kind: KindDeleteChunks, SourceID: sourceID}
}

func withKey(label, key string, props map[string]any) map[string]any {
	out := make(map[string]any, len(props)+1)
	for k, v := range props {
		out[k] = v
	}
	out[KeyProperty(label)] = key
	return out
}

// Validate checks labels, edge types and property names against the graph
// model so that backends can splice them into queries.
func (m Mutation) Validate() error {
	switch m.Kind {
	case KindMergeNode, KindCreateNode:
		if err := validateRef(m.Node); err != nil {
			return err
		}
		for _, t := range m.Tags {
			if !contains(tags, t) {
				return fmt.Errorf("unknown tag %q", t)
			}
		}
	case KindMergeEdge:
		if err := validateRef(m.From); err != nil {
			return err
		}
		if err := validateRef(m.To); err != nil {
			return err
		}
	case KindMergeEdgesToMatches:
		if err := validateRef(m.From); err != nil {
			return err
		}
		if m.Match == nil {
			return fmt.Errorf("%s without match", m.Kind)
		}
		if !contains(labels, m.Match.Label) {
			return fmt.Errorf("unknown label %q", m.Match.Label)
		}
		if len(m.Match.Props) == 0 {
			return fmt.Errorf("%s needs at least one match property", m.Kind)
		}
		for k := range m.Match.Props {
			if !propertyNamePattern.MatchString(k) {
				return fmt.Errorf("invalid property name %q", k)
			}
		}
	case KindDeleteChunks:
		if m.SourceID == "" {
			return fmt.Errorf("%s without source id", m.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown mutation kind %d", int(m.Kind))
	}

	if m.Kind != KindMergeNode && m.Kind != KindCreateNode && !contains(edgeTypes, m.EdgeType) {
		return fmt.Errorf("unknown edge type %q", m.EdgeType)
	}
	for k := range m.Props {
		if !propertyNamePattern.MatchString(k) {
			return fmt.Errorf("invalid property name %q", k)
		}
	}
	return nil
}

func validateRef(r NodeRef) error {
	if !contains(labels, r.Label) {
		return fmt.Errorf("unknown label %q", r.Label)
	}
	if r.Key == "" {
		return fmt.Errorf("empty key for %s", r.Label)
	}
	return nil
}

// sortedKeys returns map keys in a stable order so generated queries are
// deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
