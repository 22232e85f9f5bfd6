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

package chunking

import (
	"strconv"
	"strings"
	"unicode/utf8"
)

// Chunk is one piece of a chunked document. Chunks of a source are indexed
// 0..TotalChunks-1 in text order.
type Chunk struct {
	ID          string `json:"id"`
	Content     string `json:"content"`
	ChunkIndex  int    `json:"chunk_index"`
	TotalChunks int    `json:"total_chunks"`
	SourceID    string `json:"source_id"`
	SourceFile  string `json:"source_file"`
	ContentType string `json:"content_type"`
	CharCount   int    `json:"char_count"`
	WordCount   int    `json:"word_count"`
}

// ChunkID returns the identity of the i-th chunk of a source.
func ChunkID(sourceID string, i int) string {
	return sourceID + "_chunk_" + strconv.Itoa(i)
}

// CreateChunkMetadata wraps split text with ids and counts. The source id
// doubles as the source file.
func CreateChunkMetadata(sourceID, contentType string, chunks []string) []Chunk {
	out := make([]Chunk, len(chunks))
	for i, text := range chunks {
		out[i] = Chunk{
			ID:          ChunkID(sourceID, i),
			Content:     text,
			ChunkIndex:  i,
			TotalChunks: len(chunks),
			SourceID:    sourceID,
			SourceFile:  sourceID,
			ContentType: contentType,
			CharCount:   utf8.RuneCountInString(text),
			WordCount:   len(strings.Fields(text)),
		}
	}
	return out
}
