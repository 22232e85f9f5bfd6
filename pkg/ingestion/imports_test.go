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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestModuleShortName(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"utils.py", "utils"},
		{"pkg/utils.py", "utils"},
		{"pkg/sub/models.py", "models"},
		{"config.prod.yaml", "prod"},
		{"docs/guide.md", "guide"},
		{`win\path\tool.py`, "tool"},
		{"Makefile", "Makefile"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ModuleShortName(tt.path), tt.path)
	}
}

func TestProjectModules_Distinct(t *testing.T) {
	got := ProjectModules([]string{"a/utils.py", "b/utils.py", "b/models.py"})
	assert.Equal(t, []string{"utils", "models"}, got)
}

func TestImportClassifier_Precedence(t *testing.T) {
	// A project file named like a builtin still classifies as builtin.
	c := NewImportClassifier([]string{"sys", "utils"}, nil)

	assert.Equal(t, ImportExternalBuiltin, c.Classify("sys"))
	assert.Equal(t, ImportInternal, c.Classify("utils"))
	assert.Equal(t, ImportExternal, c.Classify("numpy"))
	assert.Equal(t, ImportExternal, c.Classify("os"), "source stdlib modules are not builtins")
}

func TestImportClassifier_CustomBuiltins(t *testing.T) {
	c := NewImportClassifier(nil, []string{"os"})

	assert.Equal(t, ImportExternalBuiltin, c.Classify("os"))
	assert.Equal(t, ImportExternal, c.Classify("sys"))
}

func TestImportClassifier_ClassifyAll(t *testing.T) {
	c := NewImportClassifier([]string{"helpers"}, nil)

	got := c.ClassifyAll([]string{"helpers", "sys", "requests"})
	assert.Equal(t, []Import{
		{Module: "helpers", Type: ImportInternal},
		{Module: "sys", Type: ImportExternalBuiltin},
		{Module: "requests", Type: ImportExternal},
	}, got)
}
