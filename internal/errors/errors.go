// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package errors provides structured error handling for the docgraph CLI.
//
// UserError carries what went wrong, why, and how to fix it, plus the exit
// code the process should end with:
//
//	err := errors.NewConfigError(
//	    "Cannot open graph store",
//	    "Backend neo4j needs a username and password",
//	    "Set NEO4J_USERNAME and NEO4J_PASSWORD or use --store sqlite",
//	    nil,
//	)
//	errors.FatalError(err, jsonMode)
//
// Output (with colors):
//
//	Error: Cannot open graph store
//	Cause: Backend neo4j needs a username and password
//	Fix:   Set NEO4J_USERNAME and NEO4J_PASSWORD or use --store sqlite
//
// # Exit Codes
//
//   - ExitSuccess (0)
//   - ExitConfig (1): missing or invalid configuration and credentials
//   - ExitStore (2): graph store failures (open, clear, read)
//   - ExitNetwork (3): clone or server connection failures
//   - ExitInput (4): bad arguments or unreadable input files
//   - ExitNotFound (6): missing dataset, records file or repository
//   - ExitInternal (10): bugs
package errors

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Exit codes for different error categories.
const (
	ExitSuccess  = 0
	ExitConfig   = 1
	ExitStore    = 2
	ExitNetwork  = 3
	ExitInput    = 4
	ExitNotFound = 6

	// ExitInternal signals "this is a bug that should be reported".
	ExitInternal = 10
)

// UserError represents an error with structured context for end users.
type UserError struct {
	// Message describes what went wrong.
	Message string

	// Cause explains why it happened.
	Cause string

	// Fix suggests how to resolve it.
	Fix string

	ExitCode int

	// Err is the wrapped error, if any.
	Err error
}

func (e *UserError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *UserError) Unwrap() error {
	return e.Err
}

func newUserError(code int, msg, cause, fix string, err error) *UserError {
	return &UserError{Message: msg, Cause: cause, Fix: fix, ExitCode: code, Err: err}
}

// NewConfigError reports invalid settings: an unknown backend, missing Neo4j
// credentials, a malformed project file or bad chunking parameters.
func NewConfigError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitConfig, msg, cause, fix, err)
}

// NewStoreError reports a graph store that cannot be opened, cleared or read.
func NewStoreError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitStore, msg, cause, fix, err)
}

// NewNetworkError reports a failed clone or server connection.
func NewNetworkError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitNetwork, msg, cause, fix, err)
}

// NewInputError reports invalid command-line input.
func NewInputError(msg, cause, fix string) *UserError {
	return newUserError(ExitInput, msg, cause, fix, nil)
}

// NewNotFoundError reports a missing input path.
func NewNotFoundError(msg, cause, fix string) *UserError {
	return newUserError(ExitNotFound, msg, cause, fix, nil)
}

// NewInternalError reports an unexpected failure.
func NewInternalError(msg, cause, fix string, err error) *UserError {
	return newUserError(ExitInternal, msg, cause, fix, err)
}

// Color definitions for error formatting.
var (
	colorError = color.New(color.FgRed, color.Bold)
	colorCause = color.New(color.FgYellow)
	colorFix   = color.New(color.FgGreen)
)

// Format returns the error for terminal display. Empty Cause or Fix lines
// are omitted. NO_COLOR disables colors.
//
// Note: This method temporarily modifies the global color.NoColor state
// and restores it after formatting.
func (e *UserError) Format(noColor bool) string {
	originalNoColor := color.NoColor
	defer func() { color.NoColor = originalNoColor }()

	if noColor || os.Getenv("NO_COLOR") != "" {
		color.NoColor = true
	}

	var out strings.Builder
	out.WriteString(colorError.Sprint("Error: "))
	out.WriteString(e.Message)
	out.WriteString("\n")

	if e.Cause != "" {
		out.WriteString(colorCause.Sprint("Cause: "))
		out.WriteString(e.Cause)
		out.WriteString("\n")
	}
	if e.Fix != "" {
		out.WriteString(colorFix.Sprint("Fix:   "))
		out.WriteString(e.Fix)
		out.WriteString("\n")
	}
	return out.String()
}

// ErrorJSON is the --json form of a UserError.
type ErrorJSON struct {
	Error    string `json:"error"`
	Cause    string `json:"cause,omitempty"`
	Fix      string `json:"fix,omitempty"`
	ExitCode int    `json:"exit_code"`
}

// ToJSON converts the UserError to a JSON-serializable structure.
func (e *UserError) ToJSON() ErrorJSON {
	return ErrorJSON{
		Error:    e.Message,
		Cause:    e.Cause,
		Fix:      e.Fix,
		ExitCode: e.ExitCode,
	}
}

// AsUserError returns err as a UserError, searching the wrap chain. Other
// errors become internal errors.
func AsUserError(err error) *UserError {
	var ue *UserError
	if stderrors.As(err, &ue) {
		return ue
	}
	return NewInternalError("Unexpected failure", err.Error(), "", err)
}

// FatalError prints the error and exits with its exit code.
// This function never returns for a non-nil err.
func FatalError(err error, jsonOutput bool) {
	if err == nil {
		return
	}
	ue := AsUserError(err)
	if jsonOutput {
		enc := json.NewEncoder(os.Stderr)
		enc.SetIndent("", "  ")
		// We are about to exit; the exit code still carries the category.
		_ = enc.Encode(ue.ToJSON())
	} else {
		fmt.Fprint(os.Stderr, ue.Format(false))
	}
	os.Exit(ue.ExitCode)
}
