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

package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteConfig configures the embedded store.
type SQLiteConfig struct {
	// Path is the database file. Parent directories are created. Use
	// MemoryPath for a throwaway database.
	Path string
}

// SQLiteStore implements Store on an embedded SQLite database.
// This is the default store: pure Go, no server required.
type SQLiteStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	closed bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database and ensures the schema.
func NewSQLiteStore(config SQLiteConfig) (*SQLiteStore, error) {
	if config.Path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if config.Path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(config.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", config.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection: an in-memory database exists per connection, and
	// SQLite serialises writers anyway.
	db.SetMaxOpenConns(1)

	if config.Path != MemoryPath {
		if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.EnsureSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates the graph tables if they don't exist.
// This is idempotent and safe to call multiple times.
func (s *SQLiteStore) EnsureSchema() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS nodes (
			label TEXT NOT NULL,
			key   TEXT NOT NULL,
			props TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (label, key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_name ON nodes(label, json_extract(props, '$.name'))`,
		`CREATE INDEX IF NOT EXISTS idx_nodes_source ON nodes(label, json_extract(props, '$.source_id'))`,
		`CREATE TABLE IF NOT EXISTS node_tags (
			label TEXT NOT NULL,
			key   TEXT NOT NULL,
			tag   TEXT NOT NULL,
			PRIMARY KEY (label, key, tag)
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			type       TEXT NOT NULL,
			from_label TEXT NOT NULL,
			from_key   TEXT NOT NULL,
			to_label   TEXT NOT NULL,
			to_key     TEXT NOT NULL,
			props      TEXT NOT NULL DEFAULT '{}',
			PRIMARY KEY (type, from_label, from_key, to_label, to_key)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_edges_to ON edges(to_label, to_key)`,
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// ApplyFileMutations applies a per-file batch in one transaction.
func (s *SQLiteStore) ApplyFileMutations(ctx context.Context, file string, mutations []Mutation) error {
	for i, m := range mutations {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%s: mutation %d: %w", file, i, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", file, err)
	}
	defer func() { _ = tx.Rollback() }()

	for i, m := range mutations {
		if err := applySQLite(ctx, tx, m); err != nil {
			return fmt.Errorf("%s: mutation %d (%s): %w", file, i, m.Kind, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", file, err)
	}
	return nil
}

const upsertEdgeSuffix = ` ON CONFLICT(type, from_label, from_key, to_label, to_key)
	DO UPDATE SET props = json_patch(edges.props, ?)`

func applySQLite(ctx context.Context, tx *sql.Tx, m Mutation) error {
	props, err := encodeProps(m.Props)
	if err != nil {
		return err
	}

	switch m.Kind {
	case KindMergeNode:
		// json_patch drops null members on insert and removes them on
		// update, matching SET n += $props.
		if _, err := tx.ExecContext(ctx, `INSERT INTO nodes(label, key, props) VALUES (?, ?, json_patch('{}', ?))
			ON CONFLICT(label, key) DO UPDATE SET props = json_patch(nodes.props, ?)`,
			m.Node.Label, m.Node.Key, props, props); err != nil {
			return err
		}
		for _, tag := range m.Tags {
			if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO node_tags(label, key, tag) VALUES (?, ?, ?)`,
				m.Node.Label, m.Node.Key, tag); err != nil {
				return err
			}
		}
		return nil

	case KindCreateNode:
		_, err := tx.ExecContext(ctx, `INSERT INTO nodes(label, key, props) VALUES (?, ?, json_patch('{}', ?))`,
			m.Node.Label, m.Node.Key, props)
		return err

	case KindMergeEdge:
		_, err := tx.ExecContext(ctx, `INSERT INTO edges(type, from_label, from_key, to_label, to_key, props)
			SELECT ?, ?, ?, ?, ?, json_patch('{}', ?)
			WHERE EXISTS (SELECT 1 FROM nodes WHERE label = ? AND key = ?)
			  AND EXISTS (SELECT 1 FROM nodes WHERE label = ? AND key = ?)`+upsertEdgeSuffix,
			m.EdgeType, m.From.Label, m.From.Key, m.To.Label, m.To.Key, props,
			m.From.Label, m.From.Key, m.To.Label, m.To.Key, props)
		return err

	case KindMergeEdgesToMatches:
		query, args, ok := matchEdgesSQL(m, props)
		if !ok {
			return nil
		}
		_, err := tx.ExecContext(ctx, query, args...)
		return err

	case KindDeleteChunks:
		chunkKeys := `SELECT key FROM nodes WHERE label = 'Chunk' AND json_extract(props, '$.source_id') = ?`
		if _, err := tx.ExecContext(ctx, `DELETE FROM edges
			WHERE (from_label = 'Chunk' AND from_key IN (`+chunkKeys+`))
			   OR (to_label = 'Chunk' AND to_key IN (`+chunkKeys+`))`, m.SourceID, m.SourceID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM node_tags WHERE label = 'Chunk' AND key IN (`+chunkKeys+`)`, m.SourceID); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM nodes WHERE label = 'Chunk' AND json_extract(props, '$.source_id') = ?`, m.SourceID)
		return err
	}
	return fmt.Errorf("unsupported mutation %s", m.Kind)
}

// matchEdgesSQL builds the insert for KindMergeEdgesToMatches. ok is false
// when the file restriction excludes every target.
func matchEdgesSQL(m Mutation, props string) (query string, args []any, ok bool) {
	match := m.Match
	if match.RestrictFiles && len(match.Files) == 0 {
		return "", nil, false
	}

	var sb strings.Builder
	sb.WriteString(`INSERT INTO edges(type, from_label, from_key, to_label, to_key, props)
		SELECT ?, ?, ?, n.label, n.key, json_patch('{}', ?) FROM nodes n
		WHERE n.label = ?
		  AND EXISTS (SELECT 1 FROM nodes f WHERE f.label = ? AND f.key = ?)`)
	args = []any{m.EdgeType, m.From.Label, m.From.Key, props, match.Label, m.From.Label, m.From.Key}

	for _, k := range sortedKeys(match.Props) {
		sb.WriteString(" AND json_extract(n.props, '$." + k + "') = ?")
		args = append(args, match.Props[k])
	}
	if match.RestrictFiles {
		sb.WriteString(" AND json_extract(n.props, '$.file') IN (")
		for i, f := range match.Files {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString("?")
			args = append(args, f)
		}
		sb.WriteString(")")
	}
	sb.WriteString(upsertEdgeSuffix)
	args = append(args, props)
	return sb.String(), args, true
}

func encodeProps(props map[string]any) (string, error) {
	if props == nil {
		return "{}", nil
	}
	data, err := json.Marshal(props)
	if err != nil {
		return "", fmt.Errorf("encode properties: %w", err)
	}
	return string(data), nil
}

// Clear removes every node and edge.
func (s *SQLiteStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"edges", "node_tags", "nodes"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return tx.Commit()
}

// GetNode returns the node for ref, or nil when it does not exist.
func (s *SQLiteStore) GetNode(ctx context.Context, ref NodeRef) (*Node, error) {
	nodes, err := s.queryNodes(ctx, `SELECT label, key, props FROM nodes WHERE label = ? AND key = ?`, ref.Label, ref.Key)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	return &nodes[0], nil
}

// Stats returns node, tag and edge counts.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	stats := &Stats{
		Nodes: zeroCounts(labels),
		Tags:  zeroCounts(tags),
		Edges: zeroCounts(edgeTypes),
	}
	queries := []struct {
		sql string
		out map[string]int
	}{
		{`SELECT label, COUNT(*) FROM nodes GROUP BY label`, stats.Nodes},
		{`SELECT tag, COUNT(*) FROM node_tags GROUP BY tag`, stats.Tags},
		{`SELECT type, COUNT(*) FROM edges GROUP BY type`, stats.Edges},
	}
	for _, q := range queries {
		if err := s.countInto(ctx, q.sql, q.out); err != nil {
			return nil, err
		}
	}
	return stats, nil
}

func (s *SQLiteStore) countInto(ctx context.Context, query string, out map[string]int) error {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return err
		}
		out[name] = n
	}
	return rows.Err()
}

// DefinitionsByName returns every Class, Method and Function named name.
func (s *SQLiteStore) DefinitionsByName(ctx context.Context, name string) ([]Node, error) {
	return s.queryNodes(ctx, `SELECT label, key, props FROM nodes
		WHERE label IN ('Class', 'Method', 'Function') AND json_extract(props, '$.name') = ?
		ORDER BY label, key`, name)
}

// Neighbors returns nodes adjacent to ref.
func (s *SQLiteStore) Neighbors(ctx context.Context, ref NodeRef, edgeType string, dir Direction) ([]Node, error) {
	query := `SELECT n.label, n.key, n.props FROM edges e
		JOIN nodes n ON n.label = e.to_label AND n.key = e.to_key
		WHERE e.from_label = ? AND e.from_key = ? AND (? = '' OR e.type = ?)
		ORDER BY n.label, n.key`
	if dir == Incoming {
		query = `SELECT n.label, n.key, n.props FROM edges e
		JOIN nodes n ON n.label = e.from_label AND n.key = e.from_key
		WHERE e.to_label = ? AND e.to_key = ? AND (? = '' OR e.type = ?)
		ORDER BY n.label, n.key`
	}
	return s.queryNodes(ctx, query, ref.Label, ref.Key, edgeType, edgeType)
}

// queryNodes runs a (label, key, props) query and attaches tags.
func (s *SQLiteStore) queryNodes(ctx context.Context, query string, args ...any) ([]Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	nodes := make([]Node, 0)
	for rows.Next() {
		var n Node
		var props string
		if err := rows.Scan(&n.Label, &n.Key, &props); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if err := json.Unmarshal([]byte(props), &n.Props); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("decode properties of %s: %w", n.Ref(), err)
		}
		nodes = append(nodes, n)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// Close before the tag lookups: the pool has a single connection.
	_ = rows.Close()

	for i := range nodes {
		t, err := s.nodeTags(ctx, nodes[i].Ref())
		if err != nil {
			return nil, err
		}
		nodes[i].Tags = t
	}
	return nodes, nil
}

func (s *SQLiteStore) nodeTags(ctx context.Context, ref NodeRef) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT tag FROM node_tags WHERE label = ? AND key = ? ORDER BY tag`, ref.Label, ref.Key)
	if err != nil {
		return nil, fmt.Errorf("query tags: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		out = append(out, tag)
	}
	return out, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func zeroCounts(names []string) map[string]int {
	out := make(map[string]int, len(names))
	for _, n := range names {
		out[n] = 0
	}
	return out
}
