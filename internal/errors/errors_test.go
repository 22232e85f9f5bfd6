// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// TestUserError_Error verifies the Error() method implementation.
func TestUserError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *UserError
		want string
	}{
		{
			name: "with underlying error",
			err:  &UserError{Message: "Cannot open graph store", Err: fmt.Errorf("database is locked")},
			want: "Cannot open graph store: database is locked",
		},
		{
			name: "without underlying error",
			err:  &UserError{Message: "Invalid chunk size"},
			want: "Invalid chunk size",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("UserError.Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestConstructors verifies exit codes and wrapping of each constructor.
func TestConstructors(t *testing.T) {
	base := fmt.Errorf("connection refused")
	tests := []struct {
		name     string
		err      *UserError
		wantCode int
		wantWrap bool
	}{
		{"config", NewConfigError("m", "c", "f", base), ExitConfig, true},
		{"store", NewStoreError("m", "c", "f", base), ExitStore, true},
		{"network", NewNetworkError("m", "c", "f", base), ExitNetwork, true},
		{"input", NewInputError("m", "c", "f"), ExitInput, false},
		{"not found", NewNotFoundError("m", "c", "f"), ExitNotFound, false},
		{"internal", NewInternalError("m", "c", "f", base), ExitInternal, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.ExitCode != tt.wantCode {
				t.Errorf("ExitCode = %d, want %d", tt.err.ExitCode, tt.wantCode)
			}
			if tt.err.Message != "m" || tt.err.Cause != "c" || tt.err.Fix != "f" {
				t.Errorf("fields not set: %+v", tt.err)
			}
			if got := errors.Is(tt.err, base); got != tt.wantWrap {
				t.Errorf("errors.Is(base) = %v, want %v", got, tt.wantWrap)
			}
		})
	}
}

// TestExitCodes_Uniqueness verifies that no two categories share a code.
func TestExitCodes_Uniqueness(t *testing.T) {
	codes := []int{ExitSuccess, ExitConfig, ExitStore, ExitNetwork, ExitInput, ExitNotFound, ExitInternal}
	seen := make(map[int]bool)
	for _, c := range codes {
		if seen[c] {
			t.Errorf("duplicate exit code %d", c)
		}
		seen[c] = true
	}
}

// TestUserError_Format_NoColor verifies plain formatting.
func TestUserError_Format_NoColor(t *testing.T) {
	err := NewConfigError(
		"Cannot open graph store",
		"Backend neo4j needs a username and password",
		"Set NEO4J_USERNAME and NEO4J_PASSWORD",
		nil,
	)
	got := err.Format(true)
	want := "Error: Cannot open graph store\n" +
		"Cause: Backend neo4j needs a username and password\n" +
		"Fix:   Set NEO4J_USERNAME and NEO4J_PASSWORD\n"
	if got != want {
		t.Errorf("Format() = %q, want %q", got, want)
	}

	short := NewInputError("Missing records file", "", "")
	if got := short.Format(true); strings.Contains(got, "Cause") || strings.Contains(got, "Fix") {
		t.Errorf("empty cause and fix should be omitted, got %q", got)
	}
}

// TestUserError_ToJSON verifies the JSON form.
func TestUserError_ToJSON(t *testing.T) {
	data, err := json.Marshal(NewNotFoundError("Dataset not found", "no such file: rows.jsonl", "").ToJSON())
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"error":"Dataset not found","cause":"no such file: rows.jsonl","exit_code":6}`
	if string(data) != want {
		t.Errorf("ToJSON = %s, want %s", data, want)
	}
}

// TestAsUserError verifies chain lookup and the internal fallback.
func TestAsUserError(t *testing.T) {
	ue := NewStoreError("Cannot clear graph", "", "", nil)
	wrapped := fmt.Errorf("build: %w", ue)
	if got := AsUserError(wrapped); got != ue {
		t.Errorf("AsUserError did not find wrapped UserError: %+v", got)
	}

	plain := fmt.Errorf("boom")
	got := AsUserError(plain)
	if got.ExitCode != ExitInternal {
		t.Errorf("ExitCode = %d, want %d", got.ExitCode, ExitInternal)
	}
	if !errors.Is(got, plain) {
		t.Error("fallback should wrap the original error")
	}
}

// TestFatalError_Nil verifies that a nil error returns without exiting.
func TestFatalError_Nil(t *testing.T) {
	FatalError(nil, false)
}
