// Copyright 2026 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-only

// Package output writes the --json form of docgraph command results.
//
// Every command emits one envelope naming the command, so scripts can
// consume several commands' output from one stream:
//
//	{
//	  "command": "build",
//	  "result": { "files_processed": 12, ... }
//	}
//
// Errors are not written here; internal/errors.FatalError emits them on
// stderr.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Envelope wraps a command result.
type Envelope struct {
	Command string `json:"command"`
	Result  any    `json:"result"`
}

// Result writes the envelope for command to stdout.
func Result(command string, result any) error {
	return ResultTo(os.Stdout, command, result)
}

// ResultTo writes the envelope for command to w.
func ResultTo(w io.Writer, command string, result any) error {
	return JSONTo(w, Envelope{Command: command, Result: result})
}

// JSONTo writes data as 2-space indented JSON to w.
func JSONTo(w io.Writer, data any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		return fmt.Errorf("JSON encoding failed: %w", err)
	}
	return nil
}
