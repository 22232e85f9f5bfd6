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

package ingestion

import (
	"encoding/json"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// FileType tags a record with the kind of content it carries.
type FileType string

const (
	FileTypePython   FileType = "python"
	FileTypeMarkdown FileType = "markdown"
	FileTypeText     FileType = "text"
	FileTypeYAML     FileType = "yaml"
	FileTypeOther    FileType = "other"
)

// IsDocument reports whether records of this type carry raw content
// instead of a structural decomposition.
func (t FileType) IsDocument() bool {
	switch t {
	case FileTypeMarkdown, FileTypeText, FileTypeYAML, FileTypeOther:
		return true
	}
	return false
}

// ImportKind classifies an imported module relative to the project.
type ImportKind string

const (
	ImportInternal        ImportKind = "internal"
	ImportExternal        ImportKind = "external"
	ImportExternalBuiltin ImportKind = "external_builtin"
)

// Row is one entry of the input dataset: a file path and its raw content.
type Row struct {
	Path    string
	Content string
}

// Import is a module imported by a source file.
type Import struct {
	Module string     `json:"module"`
	Type   ImportKind `json:"type"`
}

// Signature holds the ordered positional parameter names of a definition
// and the source text of their default values.
type Signature struct {
	Args     []string `json:"args"`
	Defaults []string `json:"defaults"`
}

// Definition is a function or method definition.
type Definition struct {
	Name       string    `json:"name"`
	Content    string    `json:"content"`
	Signature  Signature `json:"signature"`
	Decorators []string  `json:"decorators"`
}

// Class is a class definition with its directly owned methods.
type Class struct {
	Name         string       `json:"name"`
	Methods      []Definition `json:"methods"`
	Decorators   []string     `json:"decorators"`
	Inheritances []string     `json:"inheritances"`
}

// Resolution is the candidate set computed by the CrossResolver for a call.
// Candidates are never collapsed to a single target.
type Resolution struct {
	FunctionFiles    []string
	MethodFiles      []string
	SelfCallFunction bool
	SelfCallMethod   bool
}

// Call is an instruction to link a caller definition to callee candidates.
// CallerClass is empty when the caller is a free function. Resolution is nil
// until cross-call resolution has run.
type Call struct {
	CallerFunction string
	CallerClass    string
	CalledFunction string
	Resolution     *Resolution
}

type callJSON struct {
	CallerFunction      string    `json:"caller_function"`
	CallerClass         *string   `json:"caller_class"`
	CalledFunction      string    `json:"called_function"`
	CalledFunctionFiles *[]string `json:"called_function_files,omitempty"`
	CalledMethodFiles   *[]string `json:"called_method_files,omitempty"`
	SelfCallFunction    *bool     `json:"self_call_function,omitempty"`
	SelfCallMethod      *bool     `json:"self_call_method,omitempty"`
}

// MarshalJSON writes caller_class as null for free-function callers and
// emits the resolution fields only once resolution has run.
func (c Call) MarshalJSON() ([]byte, error) {
	out := callJSON{
		CallerFunction: c.CallerFunction,
		CalledFunction: c.CalledFunction,
	}
	if c.CallerClass != "" {
		class := c.CallerClass
		out.CallerClass = &class
	}
	if r := c.Resolution; r != nil {
		fnFiles := nonNil(r.FunctionFiles)
		methodFiles := nonNil(r.MethodFiles)
		selfFn, selfMethod := r.SelfCallFunction, r.SelfCallMethod
		out.CalledFunctionFiles = &fnFiles
		out.CalledMethodFiles = &methodFiles
		out.SelfCallFunction = &selfFn
		out.SelfCallMethod = &selfMethod
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (c *Call) UnmarshalJSON(data []byte) error {
	var in callJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = Call{
		CallerFunction: in.CallerFunction,
		CalledFunction: in.CalledFunction,
	}
	if in.CallerClass != nil {
		c.CallerClass = *in.CallerClass
	}
	if in.CalledFunctionFiles != nil || in.CalledMethodFiles != nil {
		r := &Resolution{}
		if in.CalledFunctionFiles != nil {
			r.FunctionFiles = *in.CalledFunctionFiles
		}
		if in.CalledMethodFiles != nil {
			r.MethodFiles = *in.CalledMethodFiles
		}
		if in.SelfCallFunction != nil {
			r.SelfCallFunction = *in.SelfCallFunction
		}
		if in.SelfCallMethod != nil {
			r.SelfCallMethod = *in.SelfCallMethod
		}
		c.Resolution = r
	}
	return nil
}

// Record is the language-agnostic extraction result for one file.
//
// Python records carry Imports, Classes, Functions and Calls (and Methods
// once cross-call resolution has run). Document records (markdown, text,
// yaml, other) carry Content: a string, or a decoded YAML structure.
type Record struct {
	File      string       `json:"file"`
	Type      FileType     `json:"type"`
	Imports   []Import     `json:"imports,omitempty"`
	Classes   []Class      `json:"classes,omitempty"`
	Functions []Definition `json:"functions,omitempty"`
	Calls     []Call       `json:"calls,omitempty"`
	Methods   []Definition `json:"methods,omitempty"`
	Content   any          `json:"content,omitempty"`
}

type codeRecordJSON struct {
	File      string       `json:"file"`
	Type      FileType     `json:"type"`
	Imports   []Import     `json:"imports"`
	Classes   []Class      `json:"classes"`
	Functions []Definition `json:"functions"`
	Calls     []Call       `json:"calls"`
	Methods   []Definition `json:"methods,omitempty"`
}

type documentRecordJSON struct {
	File    string   `json:"file"`
	Type    FileType `json:"type"`
	Content any      `json:"content"`
}

// MarshalJSON always writes the four structural arrays for code records, even
// when empty, and content (possibly null) for document records.
func (r Record) MarshalJSON() ([]byte, error) {
	if r.Type.IsDocument() {
		return json.Marshal(documentRecordJSON{File: r.File, Type: r.Type, Content: r.Content})
	}
	out := codeRecordJSON{
		File:      r.File,
		Type:      r.Type,
		Imports:   r.Imports,
		Classes:   r.Classes,
		Functions: r.Functions,
		Calls:     r.Calls,
		Methods:   r.Methods,
	}
	if out.Imports == nil {
		out.Imports = []Import{}
	}
	if out.Classes == nil {
		out.Classes = []Class{}
	}
	if out.Functions == nil {
		out.Functions = []Definition{}
	}
	if out.Calls == nil {
		out.Calls = []Call{}
	}
	return json.Marshal(out)
}

// ContentText returns document content as text. YAML structures are
// re-serialised as YAML.
func (r Record) ContentText() (string, error) {
	switch c := r.Content.(type) {
	case nil:
		return "", nil
	case string:
		return c, nil
	default:
		data, err := yaml.Marshal(c)
		if err != nil {
			return "", fmt.Errorf("encode %s content: %w", r.File, err)
		}
		return string(data), nil
	}
}

// WriteRecords writes records as an indented JSON array to path.
func WriteRecords(path string, records []Record) error {
	if records == nil {
		records = []Record{}
	}
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write records: %w", err)
	}
	return nil
}

// ReadRecords reads a JSON array of records from path.
func ReadRecords(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode records %s: %w", path, err)
	}
	return records, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
