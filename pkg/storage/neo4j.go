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
	"fmt"
	"sync"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// Neo4jConfig configures the Neo4j store.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string

	// Database selects a database; empty means the server default.
	Database string
}

// Neo4jStore implements Store on a Neo4j server. Every file batch runs in
// one managed write transaction.
type Neo4jStore struct {
	driver   neo4j.DriverWithContext
	database string

	mu     sync.RWMutex
	closed bool
}

var _ Store = (*Neo4jStore)(nil)

// NewNeo4jStore connects, verifies connectivity and ensures the schema.
func NewNeo4jStore(ctx context.Context, config Neo4jConfig) (*Neo4jStore, error) {
	if config.URI == "" {
		return nil, fmt.Errorf("neo4j uri is empty")
	}
	driver, err := neo4j.NewDriverWithContext(config.URI, neo4j.BasicAuth(config.Username, config.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", config.URI, err)
	}

	s := &Neo4jStore{driver: driver, database: config.Database}
	if err := s.EnsureSchema(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureSchema creates uniqueness constraints and name indexes.
func (s *Neo4jStore) EnsureSchema(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	for _, stmt := range schemaStatements() {
		res, err := session.Run(ctx, stmt, nil)
		if err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

func (s *Neo4jStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// ApplyFileMutations applies a per-file batch in one transaction.
func (s *Neo4jStore) ApplyFileMutations(ctx context.Context, file string, mutations []Mutation) error {
	stmts := make([]cypherStatement, 0, len(mutations))
	for i, m := range mutations {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("%s: mutation %d: %w", file, i, err)
		}
		if stmt, ok := cypherFor(m); ok {
			stmts = append(stmts, stmt)
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for i, stmt := range stmts {
			res, err := tx.Run(ctx, stmt.Query, stmt.Params)
			if err != nil {
				return nil, fmt.Errorf("statement %d: %w", i, err)
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, fmt.Errorf("statement %d: %w", i, err)
			}
		}
		return nil, nil
	})
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}
	return nil
}

// Clear removes every node and edge.
func (s *Neo4jStore) Clear(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	_, err := neo4j.ExecuteQuery(ctx, s.driver, "MATCH (n) DETACH DELETE n", nil,
		neo4j.EagerResultTransformer, neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return fmt.Errorf("clear graph: %w", err)
	}
	return nil
}

// GetNode returns the node for ref, or nil when it does not exist.
func (s *Neo4jStore) GetNode(ctx context.Context, ref NodeRef) (*Node, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	q := fmt.Sprintf("MATCH (n:`%s` {%s: $key}) RETURN n LIMIT 1", ref.Label, KeyProperty(ref.Label))
	nodes, err := s.readNodes(ctx, q, map[string]any{"key": ref.Key})
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return &nodes[0], nil
}

// Stats returns node, tag and edge counts.
func (s *Neo4jStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{
		Nodes: zeroCounts(labels),
		Tags:  zeroCounts(tags),
		Edges: zeroCounts(edgeTypes),
	}

	rows, err := s.readRows(ctx, "MATCH (n) UNWIND labels(n) AS label RETURN label AS name, count(*) AS c", nil)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		name, n := countRow(r)
		if contains(tags, name) {
			stats.Tags[name] = n
		} else {
			stats.Nodes[name] = n
		}
	}

	rows, err = s.readRows(ctx, "MATCH ()-[r]->() RETURN type(r) AS name, count(*) AS c", nil)
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		name, n := countRow(r)
		stats.Edges[name] = n
	}
	return stats, nil
}

func countRow(r *neo4j.Record) (string, int) {
	name, _ := r.Get("name")
	c, _ := r.Get("c")
	s, _ := name.(string)
	n, _ := c.(int64)
	return s, int(n)
}

// DefinitionsByName returns every Class, Method and Function named name.
func (s *Neo4jStore) DefinitionsByName(ctx context.Context, name string) ([]Node, error) {
	return s.readNodes(ctx, `MATCH (n) WHERE (n:Class OR n:Method OR n:Function) AND n.name = $name
		RETURN n ORDER BY n.id`, map[string]any{"name": name})
}

// Neighbors returns nodes adjacent to ref.
func (s *Neo4jStore) Neighbors(ctx context.Context, ref NodeRef, edgeType string, dir Direction) ([]Node, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}
	if edgeType != "" && !contains(edgeTypes, edgeType) {
		return nil, fmt.Errorf("unknown edge type %q", edgeType)
	}
	return s.readNodes(ctx, neighborsQuery(ref, edgeType, dir), map[string]any{"key": ref.Key})
}

func (s *Neo4jStore) readRows(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}

	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	return records, nil
}

// readNodes runs a query returning a single node column "n".
func (s *Neo4jStore) readNodes(ctx context.Context, query string, params map[string]any) ([]Node, error) {
	records, err := s.readRows(ctx, query, params)
	if err != nil {
		return nil, err
	}
	nodes := make([]Node, 0, len(records))
	for _, r := range records {
		v, ok := r.Get("n")
		if !ok {
			continue
		}
		n, ok := v.(dbtype.Node)
		if !ok {
			return nil, fmt.Errorf("unexpected value %T for node column", v)
		}
		nodes = append(nodes, fromDBNode(n))
	}
	return nodes, nil
}

// fromDBNode maps a driver node onto Node: the first known label is the
// primary label, known tags become Tags.
func fromDBNode(n dbtype.Node) Node {
	out := Node{Props: n.Props}
	for _, l := range n.Labels {
		switch {
		case out.Label == "" && contains(labels, l):
			out.Label = l
		case contains(tags, l):
			out.Tags = append(out.Tags, l)
		}
	}
	if key, ok := n.Props[KeyProperty(out.Label)].(string); ok {
		out.Key = key
	}
	return out
}

// Close closes the driver.
func (s *Neo4jStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.driver.Close(context.Background())
}
