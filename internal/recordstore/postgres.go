// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package recordstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgx-contrib/pgxotel"

	"github.com/cardinalhq/docrunner/internal/normalize"
)

// DefaultPostgresTable is the table created by the embedded migrations.
const DefaultPostgresTable = "ingested_records"

// Execer is satisfied by *pgxpool.Pool and pgx.Tx.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// PostgresStore upserts records into a table keyed by record_id.
type PostgresStore struct {
	db    Execer
	query string
}

func NewPostgresStore(db Execer, table string) *PostgresStore {
	if table == "" {
		table = DefaultPostgresTable
	}
	return &PostgresStore{
		db:    db,
		query: upsertQuery(table),
	}
}

func upsertQuery(table string) string {
	return fmt.Sprintf(`INSERT INTO %s (record_id, ingested_at, source_reference, fields)
VALUES ($1, $2, $3, $4)
ON CONFLICT (record_id) DO UPDATE SET
  ingested_at = EXCLUDED.ingested_at,
  source_reference = EXCLUDED.source_reference,
  fields = EXCLUDED.fields`, pgx.Identifier{table}.Sanitize())
}

func (s *PostgresStore) Put(ctx context.Context, rec normalize.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return fmt.Errorf("failed to marshal fields for record %s: %w", rec.ID, err)
	}
	if _, err := s.db.Exec(ctx, s.query, rec.ID, rec.IngestedAt, rec.SourceReference, fields); err != nil {
		return fmt.Errorf("failed to upsert record %s: %w", rec.ID, err)
	}
	return nil
}

// NewConnectionPool creates a pgx pool for url with query tracing enabled.
func NewConnectionPool(ctx context.Context, url string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	cfg.ConnConfig.Tracer = &pgxotel.QueryTracer{
		Name: "docrunner",
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return pool, nil
}
