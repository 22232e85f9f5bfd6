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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

// ExtractorConfig configures per-file extraction.
type ExtractorConfig struct {
	// TolerateSyntaxErrors keeps Python files whose tree has error nodes.
	TolerateSyntaxErrors bool

	// IncludeOther emits {type: other} records for unrecognised extensions
	// instead of skipping them.
	IncludeOther bool
}

// Extractor turns one dataset row into a Record. It is safe for concurrent
// use once constructed.
type Extractor struct {
	config     ExtractorConfig
	classifier *ImportClassifier
	python     *PythonParser
	logger     *slog.Logger
}

// NewExtractor creates an extractor. The classifier must have been built
// from the whole corpus so internal imports are recognised.
func NewExtractor(config ExtractorConfig, classifier *ImportClassifier, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if classifier == nil {
		classifier = NewImportClassifier(nil, nil)
	}
	return &Extractor{
		config:     config,
		classifier: classifier,
		python:     NewPythonParser(logger, config.TolerateSyntaxErrors),
		logger:     logger,
	}
}

// DetectFileType maps a path to the record type it produces. Extensions
// match case-sensitively, so "a.PY" is not Python. The boolean is false when
// the extension is not recognised.
func DetectFileType(filePath string) (FileType, bool) {
	switch path.Ext(filePath) {
	case ".py":
		return FileTypePython, true
	case ".md":
		return FileTypeMarkdown, true
	case ".txt":
		return FileTypeText, true
	case ".yaml", ".yml":
		return FileTypeYAML, true
	}
	return FileTypeOther, false
}

// IsReadme reports whether the base name starts with "readme", ignoring case.
func IsReadme(filePath string) bool {
	return strings.HasPrefix(strings.ToLower(path.Base(filePath)), "readme")
}

// Extract produces the record for one row. Skipped rows return a
// *SkipError; unparseable rows return a *FileError wrapping ErrParse.
func (e *Extractor) Extract(ctx context.Context, row Row) (*Record, error) {
	if row.Path == "" {
		return nil, &SkipError{Path: row.Path, Reason: SkipEmptyPath}
	}
	if IsReadme(row.Path) {
		return nil, &SkipError{Path: row.Path, Reason: SkipReadme}
	}

	fileType, known := DetectFileType(row.Path)
	if !known && !e.config.IncludeOther {
		return nil, &SkipError{Path: row.Path, Reason: SkipUnsupported}
	}

	switch fileType {
	case FileTypePython:
		return e.extractPython(ctx, row)
	case FileTypeYAML:
		return e.extractYAML(row)
	default:
		return &Record{File: row.Path, Type: fileType, Content: row.Content}, nil
	}
}

func (e *Extractor) extractPython(ctx context.Context, row Row) (*Record, error) {
	result, err := e.python.Parse(ctx, []byte(row.Content), row.Path)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &FileError{Path: row.Path, Err: ctxErr}
		}
		return nil, parseError(row.Path, err)
	}

	return &Record{
		File:      row.Path,
		Type:      FileTypePython,
		Imports:   e.classifier.ClassifyAll(result.Imports),
		Classes:   nonNilClasses(result.Classes),
		Functions: nonNilDefinitions(result.Functions),
		Calls:     nonNilCalls(result.Calls),
	}, nil
}

// extractYAML accepts a single YAML document. An empty file yields a nil
// content and a stream with more than one document is a parse failure.
func (e *Extractor) extractYAML(row Row) (*Record, error) {
	var doc any
	dec := yaml.NewDecoder(strings.NewReader(row.Content))
	for n := 0; ; n++ {
		var next any
		err := dec.Decode(&next)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, parseError(row.Path, fmt.Errorf("yaml: %w", err))
		}
		if n > 0 {
			return nil, parseError(row.Path, errors.New("yaml: expected a single document in the stream"))
		}
		doc = next
	}
	return &Record{File: row.Path, Type: FileTypeYAML, Content: normalizeYAML(doc)}, nil
}

// normalizeYAML converts yaml.v3 maps with non-string keys into
// map[string]any so the value is JSON-encodable.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = normalizeYAML(val)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = normalizeYAML(val)
		}
		return out
	default:
		return v
	}
}

func nonNilClasses(s []Class) []Class {
	if s == nil {
		return []Class{}
	}
	return s
}

func nonNilDefinitions(s []Definition) []Definition {
	if s == nil {
		return []Definition{}
	}
	return s
}

func nonNilCalls(s []Call) []Call {
	if s == nil {
		return []Call{}
	}
	return s
}
