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

package ui

import (
	"bytes"
	"testing"

	"github.com/fatih/color"
)

// plainOutput disables colors and captures Out for one test.
func plainOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	originalColor, originalOut := color.NoColor, Out
	var buf bytes.Buffer
	color.NoColor = true
	Out = &buf
	t.Cleanup(func() {
		color.NoColor = originalColor
		Out = originalOut
	})
	return &buf
}

func TestInitColors(t *testing.T) {
	original := color.NoColor
	defer func() { color.NoColor = original }()

	for _, noColor := range []bool{false, true} {
		InitColors(noColor)
		if color.NoColor != noColor {
			t.Errorf("InitColors(%v): color.NoColor = %v", noColor, color.NoColor)
		}
	}
}

func TestLabelAndDimText(t *testing.T) {
	plainOutput(t)
	if got := Label("Store:"); got != "Store:" {
		t.Errorf("Label() = %q", got)
	}
	if got := DimText(".docgraph/graph.db"); got != ".docgraph/graph.db" {
		t.Errorf("DimText() = %q", got)
	}
	if got := CountText(42); got != "42" {
		t.Errorf("CountText() = %q", got)
	}
}

func TestMessages(t *testing.T) {
	buf := plainOutput(t)

	Successf("Extracted %d records", 3)
	Warningf("%d files failed", 1)
	Infof("store: %s", "sqlite")

	want := "✓ Extracted 3 records\n⚠ 1 files failed\nℹ store: sqlite\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestHeader(t *testing.T) {
	buf := plainOutput(t)
	Header("Graph")
	if buf.String() != "Graph\n=====\n" {
		t.Errorf("Header output = %q", buf.String())
	}
}

func TestCounts(t *testing.T) {
	buf := plainOutput(t)
	Counts("Nodes", map[string]int{"File": 12, "Class": 3})

	want := "Nodes:\n  Class: 3\n  File:  12\n"
	if buf.String() != want {
		t.Errorf("Counts output = %q, want %q", buf.String(), want)
	}
}
