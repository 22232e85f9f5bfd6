// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package output

import (
	"bytes"
	"strings"
	"testing"
)

func TestResultTo(t *testing.T) {
	var buf bytes.Buffer
	err := ResultTo(&buf, "stats", map[string]int{"files": 2})
	if err != nil {
		t.Fatalf("ResultTo failed: %v", err)
	}
	want := "{\n  \"command\": \"stats\",\n  \"result\": {\n    \"files\": 2\n  }\n}\n"
	if buf.String() != want {
		t.Errorf("ResultTo output = %q, want %q", buf.String(), want)
	}
}

func TestJSONTo_Unencodable(t *testing.T) {
	var buf bytes.Buffer
	err := JSONTo(&buf, map[string]any{"ch": make(chan int)})
	if err == nil {
		t.Fatal("expected error for channel value")
	}
	if !strings.Contains(err.Error(), "JSON encoding failed") {
		t.Errorf("unexpected error: %v", err)
	}
}
