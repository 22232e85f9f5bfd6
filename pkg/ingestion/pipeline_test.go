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
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pipelineRows() []Row {
	return []Row{
		{Path: "pkg/utils.py", Content: "def helper(x, y=2):\n    return x + y\n\n\ndef main():\n    return helper(1)\n"},
		{Path: "pkg/app.py", Content: "import utils\nimport requests\n\nclass App:\n    def start(self):\n        return utils.helper(2)\n"},
		{Path: "README.md", Content: "# Project"},
		{Path: "docs/guide.md", Content: "# Guide\n\nSome text."},
		{Path: "broken.py", Content: "def broken(:\n"},
		{Path: "main.go", Content: "package main"},
	}
}

func TestPipeline_Run(t *testing.T) {
	p := NewPipeline(PipelineConfig{ParseWorkers: 2}, nil)

	result, err := p.Run(context.Background(), pipelineRows())
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 6, result.FilesSeen)
	assert.Equal(t, 3, result.FilesExtracted)
	assert.Equal(t, 1, result.ParseErrors)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "broken.py", result.Failures[0].Path)
	assert.ErrorIs(t, result.Failures[0], ErrParse)
	assert.Equal(t, 1, result.SkipReasons[SkipReadme])
	assert.Equal(t, 1, result.SkipReasons[SkipUnsupported])
	assert.Nil(t, result.Resolve)

	// Sorted by path
	files := make([]string, 0, len(result.Records))
	for _, r := range result.Records {
		files = append(files, r.File)
	}
	assert.Equal(t, []string{"docs/guide.md", "pkg/app.py", "pkg/utils.py"}, files)

	app := result.Records[1]
	assert.Equal(t, []Import{
		{Module: "utils", Type: ImportInternal},
		{Module: "requests", Type: ImportExternal},
	}, app.Imports)
	assert.Nil(t, app.Methods, "methods are only flattened by cross-call resolution")
}

func TestPipeline_CrossCalls(t *testing.T) {
	p := NewPipeline(PipelineConfig{CrossCalls: true}, nil)

	result, err := p.Run(context.Background(), pipelineRows())
	require.NoError(t, err)
	require.NotNil(t, result.Resolve)

	var utils *Record
	for i := range result.Records {
		if result.Records[i].File == "pkg/utils.py" {
			utils = &result.Records[i]
		}
	}
	require.NotNil(t, utils)
	require.Len(t, utils.Calls, 1)

	res := utils.Calls[0].Resolution
	require.NotNil(t, res)
	assert.Equal(t, []string{"pkg/utils.py"}, res.FunctionFiles)
	assert.True(t, res.SelfCallFunction)
	assert.False(t, res.SelfCallMethod)

	app := result.Records[1]
	require.Len(t, app.Methods, 1)
	assert.Equal(t, "start", app.Methods[0].Name)
	require.Len(t, app.Calls, 1)
	assert.Equal(t, []string{"pkg/utils.py"}, app.Calls[0].Resolution.FunctionFiles)
	assert.False(t, app.Calls[0].Resolution.SelfCallFunction)
}

func TestPipeline_Deduplicates(t *testing.T) {
	rows := []Row{
		{Path: "a.md", Content: "first"},
		{Path: "a.md", Content: "second"},
	}
	result, err := NewPipeline(PipelineConfig{}, nil).Run(context.Background(), rows)
	require.NoError(t, err)

	require.Len(t, result.Records, 1)
	assert.Equal(t, "first", result.Records[0].Content)
	assert.Equal(t, 1, result.SkipReasons["duplicate"])
}

func TestPipeline_Progress(t *testing.T) {
	var calls atomic.Int32
	var last atomic.Int32
	p := NewPipeline(PipelineConfig{
		ParseWorkers: 3,
		OnProgress: func(done, total int) {
			calls.Add(1)
			if done == total {
				last.Store(int32(done))
			}
		},
	}, nil)

	_, err := p.Run(context.Background(), pipelineRows())
	require.NoError(t, err)
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, int32(6), last.Load())
}

func TestPipeline_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewPipeline(PipelineConfig{}, nil).Run(ctx, pipelineRows())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPipeline_Empty(t *testing.T) {
	result, err := NewPipeline(PipelineConfig{FileTimeout: time.Second}, nil).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, result.Records)
	assert.Zero(t, result.ParseErrorRate)
}
