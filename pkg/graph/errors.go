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
	"encoding/json"
	"errors"
	"fmt"
)

// ErrGraphWrite marks a file whose mutations could not be applied. The
// file's transaction was rolled back.
var ErrGraphWrite = errors.New("graph write failure")

// Build phases reported in FileError.
const (
	PhaseDefinitions = "definitions"
	PhaseCalls       = "calls"
)

// FileError ties a build error to the file and phase it happened in.
type FileError struct {
	Path  string `json:"path"`
	Phase string `json:"phase"`
	Err   error  `json:"-"`
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Path, e.Phase, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

// MarshalJSON includes the error text, which the Err field alone would lose.
func (e *FileError) MarshalJSON() ([]byte, error) {
	msg := ""
	if e.Err != nil {
		msg = e.Err.Error()
	}
	return json.Marshal(struct {
		Path  string `json:"path"`
		Phase string `json:"phase"`
		Error string `json:"error"`
	}{e.Path, e.Phase, msg})
}
