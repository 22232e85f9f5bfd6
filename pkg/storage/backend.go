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
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Node labels.
const (
	LabelFile     = "File"
	LabelFolder   = "Folder"
	LabelClass    = "Class"
	LabelMethod   = "Method"
	LabelFunction = "Function"
	LabelChunk    = "Chunk"
	LabelLibrary  = "Library"
)

// Secondary labels that tag File nodes by content type.
const (
	TagMarkdown = "Markdown"
	TagTextFile = "TextFile"
	TagYAML     = "YAML"
)

// Edge types.
const (
	EdgeContains = "CONTAINS"
	EdgeDefines  = "DEFINES"
	EdgeCalls    = "CALLS"
	EdgeFollows  = "FOLLOWS"
	EdgeUses     = "USES"
)

// ErrClosed is returned by every operation on a closed store.
var ErrClosed = errors.New("store is closed")

var (
	labels    = []string{LabelFile, LabelFolder, LabelClass, LabelMethod, LabelFunction, LabelChunk, LabelLibrary}
	tags      = []string{TagMarkdown, TagTextFile, TagYAML}
	edgeTypes = []string{EdgeContains, EdgeDefines, EdgeCalls, EdgeFollows, EdgeUses}

	// propertyNamePattern restricts property names that end up in queries.
	propertyNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// KeyProperty returns the identity property of a label: nodes with the same
// label and key value are the same node.
func KeyProperty(label string) string {
	switch label {
	case LabelFile, LabelFolder:
		return "path"
	case LabelLibrary:
		return "name"
	default:
		return "id"
	}
}

// Labels returns the known node labels.
func Labels() []string { return append([]string(nil), labels...) }

// EdgeTypes returns the known edge types.
func EdgeTypes() []string { return append([]string(nil), edgeTypes...) }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// NodeRef identifies a node by label and identity key value.
type NodeRef struct {
	Label string
	Key   string
}

func (r NodeRef) String() string {
	return fmt.Sprintf("%s(%s=%q)", r.Label, KeyProperty(r.Label), r.Key)
}

// Node is a node read back from a store.
type Node struct {
	Label string         `json:"label"`
	Key   string         `json:"key"`
	Tags  []string       `json:"tags,omitempty"`
	Props map[string]any `json:"props"`
}

// Ref returns the node's reference.
func (n Node) Ref() NodeRef { return NodeRef{Label: n.Label, Key: n.Key} }

// Direction selects which edges Neighbors follows.
type Direction int

const (
	Outgoing Direction = iota
	Incoming
)

// Stats counts graph contents.
type Stats struct {
	Nodes map[string]int `json:"nodes"` // by label
	Tags  map[string]int `json:"tags"`  // by secondary label
	Edges map[string]int `json:"edges"` // by type
}

// Store is the interface that all graph backends must implement.
//
// Writes happen only through ApplyFileMutations, which applies the batch for
// one source file atomically: either every mutation is applied or none is.
type Store interface {
	// ApplyFileMutations applies all mutations for one file in a single
	// transaction. The file path is used for logging and error context.
	ApplyFileMutations(ctx context.Context, file string, mutations []Mutation) error

	// Clear removes every node and edge.
	Clear(ctx context.Context) error

	// GetNode returns the node for ref, or nil when it does not exist.
	GetNode(ctx context.Context, ref NodeRef) (*Node, error)

	// Stats returns node, tag and edge counts.
	Stats(ctx context.Context) (*Stats, error)

	// DefinitionsByName returns every Class, Method and Function with the
	// given bare name, across all files.
	DefinitionsByName(ctx context.Context, name string) ([]Node, error)

	// Neighbors returns nodes adjacent to ref. An empty edgeType follows
	// edges of any type.
	Neighbors(ctx context.Context, ref NodeRef, edgeType string, dir Direction) ([]Node, error)

	// Close releases any resources held by the store.
	Close() error
}
