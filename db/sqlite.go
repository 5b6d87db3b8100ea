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
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/penny-vault/pvbanks/data"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

var sqliteTypes = map[data.ColumnKind]string{
	data.IntegerColumn: "INTEGER",
	data.TextColumn:    "TEXT",
	data.DecimalColumn: "REAL",
}

// SQLite stores the pipeline output in a local database file
type SQLite struct {
	Path string

	db *sql.DB
}

func NewSQLite(ctx context.Context, path string) (*SQLite, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", data.ErrPersistence, path, err)
	}

	// sqlite only supports a single writer
	conn.SetMaxOpenConns(1)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: open %s: %w", data.ErrPersistence, path, err)
	}

	return &SQLite{
		Path: path,
		db:   conn,
	}, nil
}

func (store *SQLite) Close() {
	if err := store.db.Close(); err != nil {
		log.Error().Err(err).Str("Path", store.Path).Msg("error closing sqlite database")
	}
}

func (store *SQLite) ReplaceTable(ctx context.Context, name string, table data.Table) error {
	logger := zerolog.Ctx(ctx)

	createSQL, err := createTableSQL(name, table, sqliteTypes)
	if err != nil {
		return err
	}

	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %w", data.ErrPersistence, err)
	}

	defer func() {
		if err := tx.Rollback(); err != nil {
			if !errors.Is(err, sql.ErrTxDone) {
				log.Error().Err(err).Msg("error rolling back tx")
			}
		}
	}()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", name)); err != nil {
		return fmt.Errorf("%w: drop table %s: %w", data.ErrPersistence, name, err)
	}

	logger.Debug().Str("SQL", createSQL).Msg("creating table")
	if _, err := tx.ExecContext(ctx, createSQL); err != nil {
		return fmt.Errorf("%w: create table %s: %w", data.ErrPersistence, name, err)
	}

	columns := data.ColumnNames(table)
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	insertSQL := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", name, strings.Join(columns, ", "), placeholders)

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("%w: prepare insert: %w", data.ErrPersistence, err)
	}
	defer stmt.Close()

	for idx := 0; idx < table.Len(); idx++ {
		if _, err := stmt.ExecContext(ctx, sqlValues(table.Row(idx))...); err != nil {
			return fmt.Errorf("%w: insert row %d into %s: %w", data.ErrPersistence, idx, name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit %s: %w", data.ErrPersistence, name, err)
	}

	logger.Info().Str("Table", name).Int("NumRecords", table.Len()).Msg("replaced table")
	return nil
}

func (store *SQLite) Query(ctx context.Context, query string) (*Rows, error) {
	rows, err := store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrQuery, err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrQuery, err)
	}

	result := &Rows{
		Columns: columns,
		Values:  make([][]any, 0),
	}

	for rows.Next() {
		values := make([]any, len(columns))
		dest := make([]any, len(columns))
		for idx := range values {
			dest[idx] = &values[idx]
		}

		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("%w: %w", data.ErrQuery, err)
		}

		for idx, val := range values {
			if b, ok := val.([]byte); ok {
				values[idx] = string(b)
			}
		}

		result.Values = append(result.Values, values)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrQuery, err)
	}

	return result, nil
}

func (store *SQLite) SaveRun(ctx context.Context, run *Run) error {
	row := run.row()
	_, err := store.db.ExecContext(ctx, `INSERT INTO pipeline_runs
("id", "started_at", "ended_at", "status", "num_records", "message")
VALUES (?, ?, ?, ?, ?, ?)`, row.ID, row.StartedAt, row.EndedAt, row.Status, row.NumRecords, row.Message)
	if err != nil {
		return fmt.Errorf("%w: save run %s: %w", data.ErrPersistence, row.ID, err)
	}

	return nil
}

func (store *SQLite) Runs(ctx context.Context, limit int) ([]*Run, error) {
	var rows []*runRow
	if err := sqlscan.Select(ctx, store.db, &rows, `SELECT id, started_at, ended_at, status, num_records, message
FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("%w: list runs: %w", data.ErrPersistence, err)
	}

	return toRuns(rows)
}
