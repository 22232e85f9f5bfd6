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
	"path"
	"strings"
)

// DefaultBuiltinModules mirrors CPython's sys.builtin_module_names on Linux.
// Only modules compiled into the interpreter count; stdlib modules shipped as
// source (os, json, ...) are classified as external.
var DefaultBuiltinModules = []string{
	"_abc", "_ast", "_codecs", "_collections", "_functools", "_imp", "_io",
	"_locale", "_operator", "_signal", "_sre", "_stat", "_string",
	"_symtable", "_thread", "_tokenize", "_tracemalloc", "_typing",
	"_warnings", "_weakref", "atexit", "builtins", "errno", "faulthandler",
	"gc", "itertools", "marshal", "posix", "pwd", "sys", "time", "xxsubtype",
}

// ImportClassifier partitions module names into internal, external and
// external_builtin. It is read-only after construction and safe for
// concurrent use.
type ImportClassifier struct {
	project map[string]struct{}
	builtin map[string]struct{}
}

// NewImportClassifier builds a classifier from the project's module short
// names and the builtin module list. A nil builtins slice uses
// DefaultBuiltinModules.
func NewImportClassifier(projectModules, builtins []string) *ImportClassifier {
	if builtins == nil {
		builtins = DefaultBuiltinModules
	}
	c := &ImportClassifier{
		project: make(map[string]struct{}, len(projectModules)),
		builtin: make(map[string]struct{}, len(builtins)),
	}
	for _, m := range projectModules {
		c.project[m] = struct{}{}
	}
	for _, m := range builtins {
		c.builtin[m] = struct{}{}
	}
	return c
}

// Classify returns the kind of module. Builtins take precedence over
// project modules.
func (c *ImportClassifier) Classify(module string) ImportKind {
	if _, ok := c.builtin[module]; ok {
		return ImportExternalBuiltin
	}
	if _, ok := c.project[module]; ok {
		return ImportInternal
	}
	return ImportExternal
}

// ClassifyAll tags each module name, preserving order.
func (c *ImportClassifier) ClassifyAll(modules []string) []Import {
	out := make([]Import, 0, len(modules))
	for _, m := range modules {
		out = append(out, Import{Module: m, Type: c.Classify(m)})
	}
	return out
}

// ModuleShortName derives the module name a file is importable as:
// the base name without extension, last dotted segment.
//
//	pkg/utils.py         -> utils
//	pkg/config.prod.yaml -> prod
func ModuleShortName(filePath string) string {
	base := path.Base(strings.ReplaceAll(filePath, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if i := strings.LastIndex(base, "."); i >= 0 {
		base = base[i+1:]
	}
	return base
}

// ProjectModules returns the distinct short names of every path in the corpus.
func ProjectModules(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	out := make([]string, 0, len(paths))
	for _, p := range paths {
		name := ModuleShortName(p)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}
