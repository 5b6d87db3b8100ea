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
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/pvbanks/data"
	"github.com/shopspring/decimal"
)

type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// runTimeLayout has a fixed width so that timestamps sort lexically
const runTimeLayout = "2006-01-02T15:04:05.000000Z07:00"

var identifierRegex = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store is the relational database the pipeline loads into
type Store interface {
	// ReplaceTable drops any existing table with the given name and
	// recreates it with exactly the rows of table. The replacement happens
	// in a single transaction so a failed load leaves the previous table in
	// place.
	ReplaceTable(ctx context.Context, name string, table data.Table) error

	// Query executes a statement and returns all rows in database order
	Query(ctx context.Context, sql string) (*Rows, error)

	SaveRun(ctx context.Context, run *Run) error
	Runs(ctx context.Context, limit int) ([]*Run, error)

	Close()
}

// Rows is a fully materialized query result
type Rows struct {
	Columns []string
	Values  [][]any
}

// Run records the outcome of a single pipeline execution
type Run struct {
	ID         uuid.UUID
	StartedAt  time.Time
	EndedAt    time.Time
	Status     RunStatus
	NumRecords int
	Message    string
}

type runRow struct {
	ID         string `db:"id"`
	StartedAt  string `db:"started_at"`
	EndedAt    string `db:"ended_at"`
	Status     string `db:"status"`
	NumRecords int64  `db:"num_records"`
	Message    string `db:"message"`
}

func (run *Run) row() runRow {
	return runRow{
		ID:         run.ID.String(),
		StartedAt:  run.StartedAt.UTC().Format(runTimeLayout),
		EndedAt:    run.EndedAt.UTC().Format(runTimeLayout),
		Status:     string(run.Status),
		NumRecords: int64(run.NumRecords),
		Message:    run.Message,
	}
}

func (row *runRow) run() (*Run, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return nil, err
	}

	startedAt, err := time.Parse(runTimeLayout, row.StartedAt)
	if err != nil {
		return nil, err
	}

	endedAt, err := time.Parse(runTimeLayout, row.EndedAt)
	if err != nil {
		return nil, err
	}

	return &Run{
		ID:         id,
		StartedAt:  startedAt,
		EndedAt:    endedAt,
		Status:     RunStatus(row.Status),
		NumRecords: int(row.NumRecords),
		Message:    row.Message,
	}, nil
}

func toRuns(rows []*runRow) ([]*Run, error) {
	runs := make([]*Run, 0, len(rows))
	for _, row := range rows {
		run, err := row.run()
		if err != nil {
			return nil, fmt.Errorf("%w: invalid run record %s: %w", data.ErrPersistence, row.ID, err)
		}
		runs = append(runs, run)
	}

	return runs, nil
}

// Open connects to the database at dbURL. postgres:// and postgresql:// URLs
// use PostgreSQL, anything else is treated as a SQLite file path (with an
// optional sqlite:// prefix). The run history schema is migrated before the
// store is returned.
func Open(ctx context.Context, dbURL string) (Store, error) {
	if err := Migrate(dbURL); err != nil {
		return nil, fmt.Errorf("%w: migrate %s: %w", data.ErrPersistence, dbURL, err)
	}

	if IsPostgres(dbURL) {
		return NewPostgres(ctx, dbURL)
	}

	return NewSQLite(ctx, sqlitePath(dbURL))
}

// IsPostgres reports whether dbURL selects the PostgreSQL backend
func IsPostgres(dbURL string) bool {
	return strings.HasPrefix(dbURL, "postgres://") || strings.HasPrefix(dbURL, "postgresql://")
}

func sqlitePath(dbURL string) string {
	return strings.TrimPrefix(dbURL, "sqlite://")
}

func validateIdentifier(name string) error {
	if !identifierRegex.MatchString(name) {
		return fmt.Errorf("%w: invalid identifier %q", data.ErrPersistence, name)
	}
	return nil
}

// createTableSQL builds the CREATE TABLE statement for table using the
// dialect specific column types in typeNames
func createTableSQL(name string, table data.Table, typeNames map[data.ColumnKind]string) (string, error) {
	if err := validateIdentifier(name); err != nil {
		return "", err
	}

	columns := table.Columns()
	defs := make([]string, len(columns))
	for idx, col := range columns {
		if err := validateIdentifier(col.Name); err != nil {
			return "", err
		}
		defs[idx] = fmt.Sprintf("%s %s", col.Name, typeNames[col.Kind])
	}

	return fmt.Sprintf("CREATE TABLE %s (\n\t%s\n)", name, strings.Join(defs, ",\n\t")), nil
}

// sqlValues converts row values into types understood by both drivers
func sqlValues(row []any) []any {
	values := make([]any, len(row))
	for idx, val := range row {
		switch v := val.(type) {
		case decimal.Decimal:
			values[idx] = v.InexactFloat64()
		default:
			values[idx] = v
		}
	}

	return values
}
