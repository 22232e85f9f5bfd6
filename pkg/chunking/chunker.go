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
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Defaults used when Config leaves a field zero.
const (
	DefaultChunkSize = 800
	DefaultOverlap   = 100
)

// DefaultSeparators are tried in order: paragraphs, lines, sentences, words,
// then single characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// ErrInvalidOverlap is returned when the overlap is negative or not smaller
// than the chunk size.
var ErrInvalidOverlap = errors.New("chunk overlap must be non-negative and smaller than chunk size")

// Config configures a Chunker. Sizes are measured in characters (runes).
type Config struct {
	ChunkSize  int
	Overlap    int
	Separators []string
}

// Chunker splits document text into overlapping, ordered chunks.
// It holds no mutable state and is safe for concurrent use.
type Chunker struct {
	config   Config
	splitter textsplitter.TextSplitter
	logger   *slog.Logger
}

// New creates a Chunker. A zero ChunkSize or nil Separators use the defaults.
// When both ChunkSize and Overlap are zero the default overlap applies too.
func New(config Config, logger *slog.Logger) (*Chunker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if config.ChunkSize <= 0 {
		config.ChunkSize = DefaultChunkSize
		if config.Overlap == 0 {
			config.Overlap = DefaultOverlap
		}
	}
	if config.Separators == nil {
		config.Separators = DefaultSeparators
	}
	if config.Overlap < 0 || config.Overlap >= config.ChunkSize {
		return nil, fmt.Errorf("%w (size %d, overlap %d)", ErrInvalidOverlap, config.ChunkSize, config.Overlap)
	}

	return &Chunker{
		config: config,
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(config.ChunkSize),
			textsplitter.WithChunkOverlap(config.Overlap),
			textsplitter.WithSeparators(config.Separators),
		),
		logger: logger,
	}, nil
}

// Config returns the effective configuration.
func (c *Chunker) Config() Config {
	return c.config
}

// Split divides text into chunks no longer than ChunkSize. Whitespace-only
// text yields no chunks. The result is deterministic for a given config.
func (c *Chunker) Split(text string) ([]string, error) {
	if strings.TrimSpace(text) == "" {
		return []string{}, nil
	}
	parts, err := c.splitter.SplitText(text)
	if err != nil {
		return nil, fmt.Errorf("split text: %w", err)
	}

	chunks := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		chunks = append(chunks, p)
	}
	return chunks, nil
}

// ChunkDocument splits text and attaches metadata. A splitting failure is
// logged and yields an empty list.
func (c *Chunker) ChunkDocument(sourceID, contentType, text string) []Chunk {
	parts, err := c.Split(text)
	if err != nil {
		c.logger.Error("chunking.split.error",
			"source_id", sourceID,
			"content_type", contentType,
			"err", err,
		)
		return []Chunk{}
	}
	return CreateChunkMetadata(sourceID, contentType, parts)
}
