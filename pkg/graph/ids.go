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
	"path"
)

// Composite identities for definitions: the file path plus the qualified
// name. Two files defining the same name produce two nodes.

// ClassID returns the id of class in file.
func ClassID(file, class string) string { return file + "::" + class }

// MethodID returns the id of class.method in file.
func MethodID(file, class, method string) string { return file + "::" + class + "." + method }

// FunctionID returns the id of a free function in file.
func FunctionID(file, fn string) string { return file + "::" + fn }

// FolderOf returns the folder containing p ("." for top-level entries).
func FolderOf(p string) string { return path.Dir(p) }

// isRootParent reports whether walking from current to parent must stop.
func isRootParent(parent, current string) bool {
	return parent == current || parent == "" || parent == "." || parent == "/"
}

// FolderChain returns the folder of file followed by its ancestors, nearest
// first. Every step shortens the path, so the walk is bounded by the path
// depth even for malformed input.
func FolderChain(file string) []string {
	current := FolderOf(file)
	chain := []string{current}
	for {
		parent := path.Dir(current)
		if isRootParent(parent, current) {
			return chain
		}
		chain = append(chain, parent)
		current = parent
	}
}
