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

package graph

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"

	"github.com/kraklabs/docgraph/pkg/chunking"
	"github.com/kraklabs/docgraph/pkg/ingestion"
	"github.com/kraklabs/docgraph/pkg/storage"
)

// batchCounts tallies what a definitions batch creates.
type batchCounts struct {
	chunks    int
	classes   int
	methods   int
	functions int
	libraries int
}

// fileTags maps chunked document types to their File tag.
var fileTags = map[ingestion.FileType]string{
	ingestion.FileTypeMarkdown: storage.TagMarkdown,
	ingestion.FileTypeText:     storage.TagTextFile,
	ingestion.FileTypeYAML:     storage.TagYAML,
}

func fileRef(p string) storage.NodeRef   { return storage.NodeRef{Label: storage.LabelFile, Key: p} }
func folderRef(p string) storage.NodeRef { return storage.NodeRef{Label: storage.LabelFolder, Key: p} }

// folderMutations merges the File, its folder chain and the CONTAINS links
// between them.
func folderMutations(rec ingestion.Record) []storage.Mutation {
	var tags []string
	if tag, ok := fileTags[rec.Type]; ok {
		tags = append(tags, tag)
	}
	muts := []storage.Mutation{
		storage.MergeNode(storage.LabelFile, rec.File, map[string]any{
			"name": path.Base(rec.File),
			"type": string(rec.Type),
		}, tags...),
	}

	child := fileRef(rec.File)
	for _, folder := range FolderChain(rec.File) {
		muts = append(muts,
			storage.MergeNode(storage.LabelFolder, folder, map[string]any{"name": path.Base(folder)}),
			storage.MergeEdge(storage.EdgeContains, folderRef(folder), child, nil),
		)
		child = folderRef(folder)
	}
	return muts
}

// chunkMutations replaces the chunks of a document. Stale chunks of a
// previous build are removed even when the new content is empty.
func chunkMutations(rec ingestion.Record, chunker *chunking.Chunker) ([]storage.Mutation, int, error) {
	text, err := rec.ContentText()
	if err != nil {
		return nil, 0, err
	}

	muts := []storage.Mutation{storage.DeleteChunks(rec.File)}
	if strings.TrimSpace(text) == "" {
		return muts, 0, nil
	}

	chunks := chunker.ChunkDocument(rec.File, string(rec.Type), text)
	for i, c := range chunks {
		ref := storage.NodeRef{Label: storage.LabelChunk, Key: c.ID}
		muts = append(muts,
			storage.CreateNode(storage.LabelChunk, c.ID, map[string]any{
				"content":      c.Content,
				"chunk_index":  c.ChunkIndex,
				"total_chunks": c.TotalChunks,
				"source_id":    c.SourceID,
				"source_file":  c.SourceFile,
				"content_type": c.ContentType,
				"char_count":   c.CharCount,
				"word_count":   c.WordCount,
			}),
			storage.MergeEdge(storage.EdgeContains, fileRef(rec.File), ref, nil),
		)
		if i > 0 {
			prev := storage.NodeRef{Label: storage.LabelChunk, Key: chunks[i-1].ID}
			muts = append(muts, storage.MergeEdge(storage.EdgeFollows, prev, ref, nil))
		}
	}
	return muts, len(chunks), nil
}

// definitionMutations merges classes, methods and free functions of a
// Python record with their DEFINES edges.
func definitionMutations(rec ingestion.Record) ([]storage.Mutation, batchCounts, error) {
	var muts []storage.Mutation
	var counts batchCounts
	file := fileRef(rec.File)

	for _, cls := range rec.Classes {
		if cls.Name == "" {
			continue
		}
		decorators, err := jsonString(orEmpty(cls.Decorators))
		if err != nil {
			return nil, counts, err
		}
		inheritances, err := jsonString(orEmpty(cls.Inheritances))
		if err != nil {
			return nil, counts, err
		}
		classRef := storage.NodeRef{Label: storage.LabelClass, Key: ClassID(rec.File, cls.Name)}
		muts = append(muts,
			storage.MergeNode(storage.LabelClass, classRef.Key, map[string]any{
				"name":         cls.Name,
				"file":         rec.File,
				"decorators":   decorators,
				"inheritances": inheritances,
			}),
			storage.MergeEdge(storage.EdgeDefines, file, classRef, nil),
		)
		counts.classes++

		for _, m := range cls.Methods {
			if m.Name == "" {
				continue
			}
			props, err := definitionProps(rec.File, m)
			if err != nil {
				return nil, counts, err
			}
			props["class"] = cls.Name
			id := MethodID(rec.File, cls.Name, m.Name)
			muts = append(muts,
				storage.MergeNode(storage.LabelMethod, id, props),
				storage.MergeEdge(storage.EdgeDefines, classRef, storage.NodeRef{Label: storage.LabelMethod, Key: id}, nil),
			)
			counts.methods++
		}
	}

	for _, fn := range rec.Functions {
		if fn.Name == "" {
			continue
		}
		props, err := definitionProps(rec.File, fn)
		if err != nil {
			return nil, counts, err
		}
		id := FunctionID(rec.File, fn.Name)
		muts = append(muts,
			storage.MergeNode(storage.LabelFunction, id, props),
			storage.MergeEdge(storage.EdgeDefines, file, storage.NodeRef{Label: storage.LabelFunction, Key: id}, nil),
		)
		counts.functions++
	}
	return muts, counts, nil
}

func definitionProps(file string, def ingestion.Definition) (map[string]any, error) {
	signature, err := jsonString(ingestion.Signature{Args: orEmpty(def.Signature.Args), Defaults: orEmpty(def.Signature.Defaults)})
	if err != nil {
		return nil, err
	}
	decorators, err := jsonString(orEmpty(def.Decorators))
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"name":       def.Name,
		"file":       file,
		"content":    def.Content,
		"signature":  signature,
		"decorators": decorators,
	}, nil
}

// libraryMutations links the file to at most limit distinct external
// imports, in import order.
func libraryMutations(rec ingestion.Record, limit int) ([]storage.Mutation, int) {
	var muts []storage.Mutation
	seen := make(map[string]bool)
	for _, imp := range rec.Imports {
		if len(seen) >= limit {
			break
		}
		if imp.Type != ingestion.ImportExternal || imp.Module == "" || seen[imp.Module] {
			continue
		}
		seen[imp.Module] = true
		muts = append(muts,
			storage.MergeNode(storage.LabelLibrary, imp.Module, nil),
			storage.MergeEdge(storage.EdgeUses, fileRef(rec.File), storage.NodeRef{Label: storage.LabelLibrary, Key: imp.Module}, nil),
		)
	}
	return muts, len(seen)
}

// callMutations turns the call sites of a record into CALLS merges. A caller
// inside a class links to same-class methods and to free functions; a free
// caller links to functions and to methods of any class. Resolved calls
// only reach the candidate files the resolver computed.
func callMutations(rec ingestion.Record) ([]storage.Mutation, int) {
	var muts []storage.Mutation
	type callKey struct{ caller, class, called string }
	seen := make(map[callKey]bool)

	for _, call := range rec.Calls {
		if call.CallerFunction == "" || call.CalledFunction == "" {
			continue
		}
		key := callKey{call.CallerFunction, call.CallerClass, call.CalledFunction}
		if seen[key] {
			continue
		}
		seen[key] = true

		props := map[string]any{
			"caller_function": call.CallerFunction,
			"caller_class":    nil,
			"called_function": call.CalledFunction,
		}

		var from storage.NodeRef
		methodMatch := storage.Match{Label: storage.LabelMethod, Props: map[string]string{"name": call.CalledFunction}}
		functionMatch := storage.Match{Label: storage.LabelFunction, Props: map[string]string{"name": call.CalledFunction}}

		if call.CallerClass != "" {
			props["caller_class"] = call.CallerClass
			from = storage.NodeRef{Label: storage.LabelMethod, Key: MethodID(rec.File, call.CallerClass, call.CallerFunction)}
			methodMatch.Props["class"] = call.CallerClass
		} else {
			from = storage.NodeRef{Label: storage.LabelFunction, Key: FunctionID(rec.File, call.CallerFunction)}
		}

		// The resolver indexes methods by (class, name), so method candidates
		// exist only for callers inside a class. Free callers keep matching
		// methods of any class by name.
		if r := call.Resolution; r != nil {
			functionMatch.RestrictFiles, functionMatch.Files = true, r.FunctionFiles
			if call.CallerClass != "" {
				methodMatch.RestrictFiles, methodMatch.Files = true, r.MethodFiles
			}
		}

		muts = append(muts,
			storage.MergeEdgesToMatches(storage.EdgeCalls, from, methodMatch, props),
			storage.MergeEdgesToMatches(storage.EdgeCalls, from, functionMatch, props),
		)
	}
	return muts, len(seen)
}

func jsonString(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encode property: %w", err)
	}
	return string(data), nil
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
