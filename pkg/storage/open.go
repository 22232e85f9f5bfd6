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
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendNeo4j  = "neo4j"
)

// Config selects and configures a store.
type Config struct {
	// Backend is BackendSQLite (default) or BackendNeo4j.
	Backend string

	SQLite SQLiteConfig
	Neo4j  Neo4jConfig
}

// Open opens the configured store. The caller owns the handle and must
// Close it.
func Open(ctx context.Context, config Config) (Store, error) {
	switch config.Backend {
	case "", BackendSQLite:
		return NewSQLiteStore(config.SQLite)
	case BackendNeo4j:
		return NewNeo4jStore(ctx, config.Neo4j)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want %s or %s)", config.Backend, BackendSQLite, BackendNeo4j)
	}
}
