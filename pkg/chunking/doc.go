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

// Package chunking splits document text into ordered, overlapping chunks.
//
// Splitting is recursive over a separator list (paragraph, line, sentence,
// word, character): the largest separator that keeps pieces within the
// chunk size wins, and adjacent small pieces are merged back up to the limit
// with a fixed character overlap.
//
//	chunker, err := chunking.New(chunking.Config{ChunkSize: 800, Overlap: 100}, logger)
//	if err != nil {
//	    return err
//	}
//	chunks := chunker.ChunkDocument("docs/guide.md", "markdown", text)
//
// Chunk ids are "<source>_chunk_<i>" and indexes are contiguous from 0.
package chunking
