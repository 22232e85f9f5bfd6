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
	"errors"
	"fmt"
)

var (
	// ErrParse marks a file whose syntax or structure could not be parsed.
	ErrParse = errors.New("parse failure")

	// ErrSkipped marks a file intentionally left out of the record set.
	ErrSkipped = errors.New("file skipped")
)

// Skip reasons reported in Result.SkipReasons.
const (
	SkipReadme      = "readme"
	SkipUnsupported = "unsupported"
	SkipEmptyPath   = "empty_path"
)

// FileError ties an extraction error to the file it happened on.
type FileError struct {
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// SkipError reports why a file produced no record. It matches ErrSkipped.
type SkipError struct {
	Path   string
	Reason string
}

func (e *SkipError) Error() string {
	return fmt.Sprintf("%s: skipped (%s)", e.Path, e.Reason)
}

// Is lets errors.Is(err, ErrSkipped) match any SkipError.
func (e *SkipError) Is(target error) bool {
	return target == ErrSkipped
}

func parseError(path string, err error) error {
	return &FileError{Path: path, Err: fmt.Errorf("%w: %v", ErrParse, err)}
}
