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
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// datasetRow accepts the column names used by exported code datasets.
type datasetRow struct {
	Path    *string `json:"path"`
	Name    *string `json:"name"`
	File    *string `json:"file"`
	Content *string `json:"content"`
}

func (d datasetRow) row() (Row, bool) {
	var r Row
	switch {
	case d.Path != nil:
		r.Path = *d.Path
	case d.Name != nil:
		r.Path = *d.Name
	case d.File != nil:
		r.Path = *d.File
	}
	if d.Content == nil {
		return r, false
	}
	r.Content = *d.Content
	return r, r.Path != ""
}

// ReadDataset reads rows from a Parquet file (by .parquet extension), a JSON
// array or a JSON Lines file. Rows without a path or with null content are
// dropped and counted in the second return value.
func ReadDataset(path string) ([]Row, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return ReadParquetDataset(path)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()
	return DecodeDataset(f)
}

// DecodeDataset decodes a JSON array (first non-space byte '[') or JSON Lines.
func DecodeDataset(r io.Reader) ([]Row, int, error) {
	br := bufio.NewReader(r)
	first, err := peekNonSpace(br)
	if err == io.EOF {
		return []Row{}, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read dataset: %w", err)
	}

	var raw []datasetRow
	if first == '[' {
		if err := json.NewDecoder(br).Decode(&raw); err != nil {
			return nil, 0, fmt.Errorf("decode dataset array: %w", err)
		}
	} else {
		raw, err = decodeJSONLines(br)
		if err != nil {
			return nil, 0, err
		}
	}

	rows := make([]Row, 0, len(raw))
	dropped := 0
	for _, d := range raw {
		row, ok := d.row()
		if !ok {
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

func decodeJSONLines(r *bufio.Reader) ([]datasetRow, error) {
	var out []datasetRow
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}
		var d datasetRow
		if err := json.Unmarshal(text, &d); err != nil {
			return nil, fmt.Errorf("decode dataset line %d: %w", line, err)
		}
		out = append(out, d)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan dataset: %w", err)
	}
	return out, nil
}

func peekNonSpace(r *bufio.Reader) (byte, error) {
	for {
		b, err := r.ReadByte()
		if err != nil {
			return 0, err
		}
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		}
		return b, r.UnreadByte()
	}
}
