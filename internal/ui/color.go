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

// Package ui provides terminal output helpers for the docgraph CLI.
//
// Output respects the --no-color flag and NO_COLOR environment variable.
//
// Color usage guidelines:
//   - Green: completed stages
//   - Yellow: skipped or failed files
//   - Cyan: counts and neutral info
//   - Bold: headers and labels
//   - Dim: paths
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
)

// Out receives all helper output. Tests replace it.
var Out io.Writer = os.Stdout

var (
	Yellow = color.New(color.FgYellow)
	Green  = color.New(color.FgGreen)
	Cyan   = color.New(color.FgCyan)
	Bold   = color.New(color.Bold)
	Dim    = color.New(color.Faint)
)

// InitColors configures global color output. Call it right after flag
// parsing.
func InitColors(noColor bool) {
	color.NoColor = noColor
}

// Successf prints a green line with a checkmark prefix.
//
// Example output: "✓ Extracted 42 records"
func Successf(format string, args ...any) {
	_, _ = Green.Fprintf(Out, "✓ "+format+"\n", args...)
}

// Warningf prints a yellow line with a warning prefix.
//
// Example output: "⚠ 3 files failed to parse"
func Warningf(format string, args ...any) {
	_, _ = Yellow.Fprintf(Out, "⚠ "+format+"\n", args...)
}

// Infof prints a cyan line with an info prefix.
func Infof(format string, args ...any) {
	_, _ = Cyan.Fprintf(Out, "ℹ "+format+"\n", args...)
}

// Header prints a bold header with an underline separator.
func Header(text string) {
	_, _ = Bold.Fprintln(Out, text)
	_, _ = fmt.Fprintln(Out, strings.Repeat("=", len(text)))
}

// Label returns a bold-formatted label string for inline use.
func Label(text string) string {
	return Bold.Sprint(text)
}

// DimText returns a dim-formatted string for paths.
func DimText(text string) string {
	return Dim.Sprint(text)
}

// CountText returns a cyan-formatted count value.
func CountText(count int) string {
	return Cyan.Sprint(count)
}

// KeyValue prints "  label: value" with the label padded to width.
func KeyValue(label string, value any, width int) {
	_, _ = fmt.Fprintf(Out, "  %s %v\n", Label(fmt.Sprintf("%-*s", width, label+":")), value)
}

// Counts prints a titled block of name/count rows sorted by name.
// Zero counts are printed too so the block shape is stable.
//
// Example output:
//
//	Nodes:
//	  Class:    3
//	  File:     12
func Counts(title string, counts map[string]int) {
	_, _ = Bold.Fprintln(Out, title+":")
	names := make([]string, 0, len(counts))
	width := 0
	for name := range counts {
		names = append(names, name)
		if len(name) > width {
			width = len(name)
		}
	}
	sort.Strings(names)
	for _, name := range names {
		KeyValue(name, CountText(counts[name]), width+1)
	}
}
