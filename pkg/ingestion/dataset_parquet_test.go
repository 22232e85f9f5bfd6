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
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type namedParquetRow struct {
	Name    *string `parquet:"name,optional"`
	Content *string `parquet:"content,optional"`
}

type positionalParquetRow struct {
	Path    *string `parquet:"0,optional"`
	Content *string `parquet:"1,optional"`
}

type unnamedParquetRow struct {
	Key   *string `parquet:"key,optional"`
	Value *string `parquet:"value,optional"`
}

func strPtr(s string) *string { return &s }

func writeParquet[T any](t *testing.T, rows []T) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := parquet.NewGenericWriter[T](&buf)
	_, err := w.Write(rows)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func decodeParquet(t *testing.T, data []byte) ([]Row, int) {
	t.Helper()
	rows, dropped, err := DecodeParquetDataset(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	return rows, dropped
}

func TestDecodeParquetDataset_NamedColumns(t *testing.T) {
	data := writeParquet(t, []namedParquetRow{
		{Name: strPtr("a.py"), Content: strPtr("x = 1")},
		{Name: strPtr("docs/b.md"), Content: strPtr("# B")},
		{Name: strPtr("c.py"), Content: nil},
		{Name: nil, Content: strPtr("orphan")},
		{Name: strPtr("empty.py"), Content: strPtr("")},
	})

	rows, dropped := decodeParquet(t, data)
	assert.Equal(t, 2, dropped)
	assert.Equal(t, []Row{
		{Path: "a.py", Content: "x = 1"},
		{Path: "docs/b.md", Content: "# B"},
		{Path: "empty.py"},
	}, rows)
}

func TestDecodeParquetDataset_PositionalColumns(t *testing.T) {
	data := writeParquet(t, []positionalParquetRow{
		{Path: strPtr("utils.py"), Content: strPtr("def helper():\n    pass\n")},
	})

	rows, dropped := decodeParquet(t, data)
	assert.Zero(t, dropped)
	assert.Equal(t, []Row{{Path: "utils.py", Content: "def helper():\n    pass\n"}}, rows)
}

func TestDecodeParquetDataset_FirstTwoColumns(t *testing.T) {
	data := writeParquet(t, []unnamedParquetRow{
		{Key: strPtr("main.py"), Value: strPtr("print(1)")},
	})

	rows, _ := decodeParquet(t, data)
	assert.Equal(t, []Row{{Path: "main.py", Content: "print(1)"}}, rows)
}

func TestDecodeParquetDataset_NotParquet(t *testing.T) {
	data := []byte(`{"path":"a.py","content":"x"}`)
	_, _, err := DecodeParquetDataset(bytes.NewReader(data), int64(len(data)))
	assert.Error(t, err)
}

func TestReadDataset_ParquetExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repo.parquet")
	require.NoError(t, os.WriteFile(path, writeParquet(t, []namedParquetRow{
		{Name: strPtr("app.py"), Content: strPtr("import os\n")},
		{Name: strPtr("skip.py")},
	}), 0o644))

	rows, dropped, err := ReadDataset(path)
	require.NoError(t, err)
	assert.Equal(t, 1, dropped)
	assert.Equal(t, []Row{{Path: "app.py", Content: "import os\n"}}, rows)
}
