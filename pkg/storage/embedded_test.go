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
	"path/filepath"
	"testing"
)

// setupTestStore creates an in-memory SQLiteStore for testing.
func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := NewSQLiteStore(SQLiteConfig{Path: MemoryPath})
	if err != nil {
		t.Fatalf("setupTestStore failed: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fileRef(path string) NodeRef   { return NodeRef{Label: LabelFile, Key: path} }
func folderRef(path string) NodeRef { return NodeRef{Label: LabelFolder, Key: path} }

func mustApply(t *testing.T, s Store, file string, muts ...Mutation) {
	t.Helper()
	if err := s.ApplyFileMutations(context.Background(), file, muts); err != nil {
		t.Fatalf("ApplyFileMutations(%s) failed: %v", file, err)
	}
}

func TestNewSQLiteStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "graph.db")
	store, err := NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	mustApply(t, store, "a.md", MergeNode(LabelFile, "a.md", nil))
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopen: data and schema survive.
	store, err = NewSQLiteStore(SQLiteConfig{Path: path})
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = store.Close() }()
	n, err := store.GetNode(context.Background(), fileRef("a.md"))
	if err != nil || n == nil {
		t.Fatalf("GetNode after reopen = %v, %v", n, err)
	}
}

func TestNewSQLiteStore_EmptyPath(t *testing.T) {
	if _, err := NewSQLiteStore(SQLiteConfig{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestSQLiteStore_MergeNodeIdempotent(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		mustApply(t, s, "docs/a.md",
			MergeNode(LabelFile, "docs/a.md", map[string]any{"name": "a.md", "type": "markdown"}, TagMarkdown))
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Nodes[LabelFile] != 1 {
		t.Errorf("File count = %d, want 1", stats.Nodes[LabelFile])
	}
	if stats.Tags[TagMarkdown] != 1 {
		t.Errorf("Markdown tag count = %d, want 1", stats.Tags[TagMarkdown])
	}

	n, err := s.GetNode(ctx, fileRef("docs/a.md"))
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if n == nil {
		t.Fatal("expected node")
	}
	if n.Props["path"] != "docs/a.md" || n.Props["name"] != "a.md" {
		t.Errorf("unexpected props: %v", n.Props)
	}
	if len(n.Tags) != 1 || n.Tags[0] != TagMarkdown {
		t.Errorf("tags = %v, want [Markdown]", n.Tags)
	}
}

func TestSQLiteStore_MergeNodeUpdatesProps(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustApply(t, s, "a.py", MergeNode(LabelFunction, "a.py::f", map[string]any{"name": "f", "content": "old", "extra": "x"}))
	mustApply(t, s, "a.py", MergeNode(LabelFunction, "a.py::f", map[string]any{"content": "new", "extra": nil}))

	n, err := s.GetNode(ctx, NodeRef{Label: LabelFunction, Key: "a.py::f"})
	if err != nil || n == nil {
		t.Fatalf("GetNode = %v, %v", n, err)
	}
	if n.Props["content"] != "new" {
		t.Errorf("content = %v, want new", n.Props["content"])
	}
	if n.Props["name"] != "f" {
		t.Errorf("name = %v, want f (kept from first merge)", n.Props["name"])
	}
	if _, ok := n.Props["extra"]; ok {
		t.Errorf("nil property should be removed, got %v", n.Props["extra"])
	}
}

func TestSQLiteStore_GetNodeMissing(t *testing.T) {
	s := setupTestStore(t)
	n, err := s.GetNode(context.Background(), fileRef("nope"))
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if n != nil {
		t.Errorf("expected nil, got %+v", n)
	}
}

func TestSQLiteStore_MergeEdge(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	muts := []Mutation{
		MergeNode(LabelFile, "pkg/a.py", nil),
		MergeNode(LabelFolder, "pkg", nil),
		MergeEdge(EdgeContains, folderRef("pkg"), fileRef("pkg/a.py"), nil),
		MergeEdge(EdgeContains, folderRef("pkg"), fileRef("pkg/a.py"), nil),
		// Missing endpoint: silently nothing.
		MergeEdge(EdgeContains, folderRef("pkg"), fileRef("pkg/missing.py"), nil),
	}
	mustApply(t, s, "pkg/a.py", muts...)
	mustApply(t, s, "pkg/a.py", muts...)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Edges[EdgeContains] != 1 {
		t.Errorf("CONTAINS count = %d, want 1", stats.Edges[EdgeContains])
	}

	children, err := s.Neighbors(ctx, folderRef("pkg"), EdgeContains, Outgoing)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(children) != 1 || children[0].Key != "pkg/a.py" {
		t.Errorf("children = %+v", children)
	}

	parents, err := s.Neighbors(ctx, fileRef("pkg/a.py"), "", Incoming)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(parents) != 1 || parents[0].Label != LabelFolder || parents[0].Key != "pkg" {
		t.Errorf("parents = %+v", parents)
	}
}

func TestSQLiteStore_MergeEdgesToMatches(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustApply(t, s, "a.py",
		MergeNode(LabelFunction, "a.py::run", map[string]any{"name": "run", "file": "a.py"}),
		MergeNode(LabelFunction, "a.py::helper", map[string]any{"name": "helper", "file": "a.py"}),
	)
	mustApply(t, s, "b.py",
		MergeNode(LabelFunction, "b.py::helper", map[string]any{"name": "helper", "file": "b.py"}),
	)

	caller := NodeRef{Label: LabelFunction, Key: "a.py::run"}
	props := map[string]any{"caller_function": "run", "caller_class": nil, "called_function": "helper"}

	// Unrestricted: every same-name function.
	mustApply(t, s, "a.py", MergeEdgesToMatches(EdgeCalls, caller, Match{
		Label: LabelFunction,
		Props: map[string]string{"name": "helper"},
	}, props))

	callees, err := s.Neighbors(ctx, caller, EdgeCalls, Outgoing)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(callees) != 2 {
		t.Fatalf("callees = %d, want 2", len(callees))
	}

	// Re-applying is a no-op.
	mustApply(t, s, "a.py", MergeEdgesToMatches(EdgeCalls, caller, Match{
		Label: LabelFunction,
		Props: map[string]string{"name": "helper"},
	}, props))
	stats, _ := s.Stats(ctx)
	if stats.Edges[EdgeCalls] != 2 {
		t.Errorf("CALLS count = %d, want 2", stats.Edges[EdgeCalls])
	}
}

func TestSQLiteStore_MergeEdgesToMatches_RestrictFiles(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustApply(t, s, "a.py",
		MergeNode(LabelFunction, "a.py::run", map[string]any{"name": "run", "file": "a.py"}),
		MergeNode(LabelFunction, "a.py::helper", map[string]any{"name": "helper", "file": "a.py"}),
		MergeNode(LabelFunction, "b.py::helper", map[string]any{"name": "helper", "file": "b.py"}),
	)
	caller := NodeRef{Label: LabelFunction, Key: "a.py::run"}

	mustApply(t, s, "a.py", MergeEdgesToMatches(EdgeCalls, caller, Match{
		Label:         LabelFunction,
		Props:         map[string]string{"name": "helper"},
		RestrictFiles: true,
		Files:         []string{"b.py"},
	}, nil))
	callees, err := s.Neighbors(ctx, caller, EdgeCalls, Outgoing)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(callees) != 1 || callees[0].Key != "b.py::helper" {
		t.Errorf("callees = %+v, want only b.py::helper", callees)
	}

	// An empty restriction list matches nothing.
	other := NodeRef{Label: LabelFunction, Key: "a.py::helper"}
	mustApply(t, s, "a.py", MergeEdgesToMatches(EdgeCalls, other, Match{
		Label:         LabelFunction,
		Props:         map[string]string{"name": "run"},
		RestrictFiles: true,
	}, nil))
	callees, err = s.Neighbors(ctx, other, EdgeCalls, Outgoing)
	if err != nil {
		t.Fatalf("Neighbors failed: %v", err)
	}
	if len(callees) != 0 {
		t.Errorf("callees = %+v, want none", callees)
	}
}

func TestSQLiteStore_DeleteChunks(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	batch := func(n int) []Mutation {
		muts := []Mutation{MergeNode(LabelFile, "a.md", nil), DeleteChunks("a.md")}
		for i := 0; i < n; i++ {
			id := "a.md_chunk_" + string(rune('0'+i))
			muts = append(muts,
				CreateNode(LabelChunk, id, map[string]any{"source_id": "a.md", "chunk_index": i}),
				MergeEdge(EdgeContains, fileRef("a.md"), NodeRef{Label: LabelChunk, Key: id}, nil),
			)
		}
		return muts
	}

	mustApply(t, s, "a.md", batch(3)...)
	mustApply(t, s, "a.md", batch(2)...)

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Nodes[LabelChunk] != 2 {
		t.Errorf("Chunk count = %d, want 2", stats.Nodes[LabelChunk])
	}
	if stats.Edges[EdgeContains] != 2 {
		t.Errorf("CONTAINS count = %d, want 2", stats.Edges[EdgeContains])
	}
}

func TestSQLiteStore_CreateNodeConflictRollsBack(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustApply(t, s, "a.md", CreateNode(LabelChunk, "a.md_chunk_0", map[string]any{"source_id": "a.md"}))

	err := s.ApplyFileMutations(ctx, "a.md", []Mutation{
		MergeNode(LabelFile, "a.md", nil),
		CreateNode(LabelChunk, "a.md_chunk_0", map[string]any{"source_id": "a.md"}),
	})
	if err == nil {
		t.Fatal("expected conflict error")
	}

	n, err := s.GetNode(ctx, fileRef("a.md"))
	if err != nil {
		t.Fatalf("GetNode failed: %v", err)
	}
	if n != nil {
		t.Error("failed batch must not leave the File node behind")
	}
}

func TestSQLiteStore_InvalidMutation(t *testing.T) {
	s := setupTestStore(t)
	err := s.ApplyFileMutations(context.Background(), "x", []Mutation{MergeNode("Robot", "r", nil)})
	if err == nil {
		t.Fatal("expected validation error")
	}
}

func TestSQLiteStore_DefinitionsByName(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustApply(t, s, "a.py",
		MergeNode(LabelClass, "a.py::Parser", map[string]any{"name": "Parser", "file": "a.py"}),
		MergeNode(LabelMethod, "a.py::Parser.parse", map[string]any{"name": "parse", "class": "Parser", "file": "a.py"}),
		MergeNode(LabelFunction, "a.py::parse", map[string]any{"name": "parse", "file": "a.py"}),
	)
	mustApply(t, s, "b.py",
		MergeNode(LabelFunction, "b.py::parse", map[string]any{"name": "parse", "file": "b.py"}),
		MergeNode(LabelFile, "parse", nil),
	)

	defs, err := s.DefinitionsByName(ctx, "parse")
	if err != nil {
		t.Fatalf("DefinitionsByName failed: %v", err)
	}
	var keys []string
	for _, d := range defs {
		keys = append(keys, d.Label+":"+d.Key)
	}
	want := []string{"Function:a.py::parse", "Function:b.py::parse", "Method:a.py::Parser.parse"}
	if len(keys) != len(want) {
		t.Fatalf("definitions = %v, want %v", keys, want)
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("definitions[%d] = %s, want %s", i, keys[i], want[i])
		}
	}
}

func TestSQLiteStore_Clear(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	mustApply(t, s, "a.md",
		MergeNode(LabelFile, "a.md", nil, TagMarkdown),
		MergeNode(LabelFolder, ".", nil),
		MergeEdge(EdgeContains, folderRef("."), fileRef("a.md"), nil),
	)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	for label, n := range stats.Nodes {
		if n != 0 {
			t.Errorf("%s count = %d after Clear", label, n)
		}
	}
	for tag, n := range stats.Tags {
		if n != 0 {
			t.Errorf("%s tag count = %d after Clear", tag, n)
		}
	}
	if stats.Edges[EdgeContains] != 0 {
		t.Errorf("CONTAINS count = %d after Clear", stats.Edges[EdgeContains])
	}
}

func TestSQLiteStore_Closed(t *testing.T) {
	store, err := NewSQLiteStore(SQLiteConfig{Path: MemoryPath})
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	ctx := context.Background()
	if err := store.ApplyFileMutations(ctx, "a", nil); !errors.Is(err, ErrClosed) {
		t.Errorf("ApplyFileMutations after Close = %v, want ErrClosed", err)
	}
	if _, err := store.Stats(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Stats after Close = %v, want ErrClosed", err)
	}
	if err := store.Clear(ctx); !errors.Is(err, ErrClosed) {
		t.Errorf("Clear after Close = %v, want ErrClosed", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), Config{Backend: "postgres"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestOpen_DefaultsToSQLite(t *testing.T) {
	store, err := Open(context.Background(), Config{SQLite: SQLiteConfig{Path: MemoryPath}})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() { _ = store.Close() }()
	if _, ok := store.(*SQLiteStore); !ok {
		t.Errorf("Open returned %T, want *SQLiteStore", store)
	}
}
