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
	"io"
	"os"

	"github.com/parquet-go/parquet-go"
)

// parquetBatchSize is the number of rows read per ReadRows call.
const parquetBatchSize = 128

// ReadParquetDataset reads rows from a Parquet file such as the ones
// produced by exporting a repository as a (name, content) table.
func ReadParquetDataset(path string) ([]Row, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("open dataset: %w", err)
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat dataset: %w", err)
	}
	return DecodeParquetDataset(f, info.Size())
}

// DecodeParquetDataset decodes Parquet rows. The path column is the first
// of path, name or file and the content column is content; files written
// from an unnamed table use columns 0 and 1; otherwise the first two
// columns are taken by position.
func DecodeParquetDataset(r io.ReaderAt, size int64) ([]Row, int, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, 0, fmt.Errorf("open parquet: %w", err)
	}
	pathCol, contentCol, err := parquetColumns(file.Schema())
	if err != nil {
		return nil, 0, err
	}

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	rows := make([]Row, 0, file.NumRows())
	dropped := 0
	buf := make([]parquet.Row, parquetBatchSize)
	for {
		n, err := reader.ReadRows(buf)
		for _, pr := range buf[:n] {
			row, ok := parquetRow(pr, pathCol, contentCol)
			if !ok {
				dropped++
				continue
			}
			rows = append(rows, row)
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, 0, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return rows, dropped, nil
}

// parquetColumns returns the leaf column indexes of the path and content.
func parquetColumns(schema *parquet.Schema) (pathCol, contentCol int, err error) {
	columns := schema.Columns()
	find := func(names ...string) int {
		for _, name := range names {
			for i, col := range columns {
				if len(col) == 1 && col[0] == name {
					return i
				}
			}
		}
		return -1
	}

	pathCol, contentCol = find("path", "name", "file"), find("content")
	if pathCol >= 0 && contentCol >= 0 {
		return pathCol, contentCol, nil
	}
	pathCol, contentCol = find("0"), find("1")
	if pathCol >= 0 && contentCol >= 0 {
		return pathCol, contentCol, nil
	}
	if len(columns) >= 2 {
		return 0, 1, nil
	}
	return -1, -1, fmt.Errorf("parquet dataset needs a path and a content column, found %d column(s)", len(columns))
}

// parquetRow extracts one row. Null paths or contents drop the row.
func parquetRow(pr parquet.Row, pathCol, contentCol int) (Row, bool) {
	var r Row
	var havePath, haveContent bool
	for _, v := range pr {
		if v.IsNull() {
			continue
		}
		switch v.Column() {
		case pathCol:
			r.Path, havePath = string(v.ByteArray()), true
		case contentCol:
			r.Content, haveContent = string(v.ByteArray()), true
		}
	}
	return r, havePath && haveContent && r.Path != ""
}
