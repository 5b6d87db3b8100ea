// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penny-vault/pvbanks/data"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var postgresTypes = map[data.ColumnKind]string{
	data.IntegerColumn: "INTEGER",
	data.TextColumn:    "TEXT",
	data.DecimalColumn: "DOUBLE PRECISION",
}

// Postgres stores the pipeline output in a PostgreSQL database
type Postgres struct {
	DBUrl string

	Pool *pgxpool.Pool
}

func NewPostgres(ctx context.Context, dbURL string) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrPersistence, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %w", data.ErrPersistence, err)
	}

	return &Postgres{
		DBUrl: dbURL,
		Pool:  pool,
	}, nil
}

// Close the database pool
func (store *Postgres) Close() {
	store.Pool.Close()
}

func (store *Postgres) ReplaceTable(ctx context.Context, name string, table data.Table) error {
	logger := zerolog.Ctx(ctx)

	createSQL, err := createTableSQL(name, table, postgresTypes)
	if err != nil {
		return err
	}

	conn, err := store.Pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", data.ErrPersistence, err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", data.ErrPersistence, err)
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			if !errors.Is(err, pgx.ErrTxClosed) {
				log.Error().Err(err).Msg("error rollingback tx")
			}
		}
	}()

	if _, err := tx.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
		return fmt.Errorf("%w: drop table %s: %w", data.ErrPersistence, name, err)
	}

	logger.Debug().Str("SQL", createSQL).Msg("creating table")
	if _, err := tx.Exec(ctx, createSQL); err != nil {
		return fmt.Errorf("%w: create table %s: %w", data.ErrPersistence, name, err)
	}

	// unquoted identifiers are folded to lower case by postgres
	numRows, err := tx.CopyFrom(ctx, pgx.Identifier{strings.ToLower(name)}, data.ColumnNames(table),
		pgx.CopyFromSlice(table.Len(), func(idx int) ([]any, error) {
			return sqlValues(table.Row(idx)), nil
		}))
	if err != nil {
		return fmt.Errorf("%w: copy rows into %s: %w", data.ErrPersistence, name, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("%w: commit %s: %w", data.ErrPersistence, name, err)
	}

	logger.Info().Str("Table", name).Int64("NumRecords", numRows).Msg("replaced table")
	return nil
}

func (store *Postgres) Query(ctx context.Context, query string) (*Rows, error) {
	rows, err := store.Pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrQuery, err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	result := &Rows{
		Columns: make([]string, len(fields)),
		Values:  make([][]any, 0),
	}

	for idx, field := range fields {
		result.Columns[idx] = field.Name
	}

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", data.ErrQuery, err)
		}
		result.Values = append(result.Values, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrQuery, err)
	}

	return result, nil
}

func (store *Postgres) SaveRun(ctx context.Context, run *Run) error {
	row := run.row()
	_, err := store.Pool.Exec(ctx, `INSERT INTO pipeline_runs
("id", "started_at", "ended_at", "status", "num_records", "message")
VALUES ($1, $2, $3, $4, $5, $6)`, row.ID, row.StartedAt, row.EndedAt, row.Status, row.NumRecords, row.Message)
	if err != nil {
		return fmt.Errorf("%w: save run %s: %w", data.ErrPersistence, row.ID, err)
	}

	return nil
}

func (store *Postgres) Runs(ctx context.Context, limit int) ([]*Run, error) {
	var rows []*runRow
	if err := pgxscan.Select(ctx, store.Pool, &rows, `SELECT id, started_at, ended_at, status, num_records, message
FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`, limit); err != nil {
		return nil, fmt.Errorf("%w: list runs: %w", data.ErrPersistence, err)
	}

	return toRuns(rows)
}
