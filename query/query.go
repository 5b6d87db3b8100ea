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
package query

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/penny-vault/pvbanks/data"
	"github.com/penny-vault/pvbanks/db"
	"github.com/rs/zerolog"
)

// Result is the outcome of a single query. Err is set when the database
// rejected the statement, otherwise Rows holds each row keyed by column name.
type Result struct {
	Query   string
	Columns []string
	Rows    []map[string]any
	Err     error
}

// Run executes each query in order. A failing query does not prevent the
// remaining queries from running.
func Run(ctx context.Context, store db.Store, queries []string) []*Result {
	logger := zerolog.Ctx(ctx)
	results := make([]*Result, 0, len(queries))

	for _, sql := range queries {
		result := &Result{Query: sql}
		results = append(results, result)

		logger.Debug().Str("SQL", sql).Msg("executing query")

		rows, err := store.Query(ctx, sql)
		if err != nil {
			if !errors.Is(err, data.ErrQuery) {
				err = fmt.Errorf("%w: %w", data.ErrQuery, err)
			}
			result.Err = err
			logger.Error().Err(err).Str("SQL", sql).Msg("query failed")
			continue
		}

		result.Columns = rows.Columns
		result.Rows = make([]map[string]any, 0, len(rows.Values))
		for _, values := range rows.Values {
			row := make(map[string]any, len(rows.Columns))
			for idx, col := range rows.Columns {
				row[col] = values[idx]
			}
			result.Rows = append(result.Rows, row)
		}

		logger.Debug().Str("SQL", sql).Int("NumRows", len(result.Rows)).Msg("query finished")
	}

	return results
}

// Failed joins the errors of all failed queries, nil if every query succeeded
func Failed(results []*Result) error {
	errs := make([]error, 0)
	for _, result := range results {
		if result.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", result.Query, result.Err))
		}
	}

	return errors.Join(errs...)
}

// FromTable builds a result from the first limit rows of table, used to
// preview data before it is loaded. limit <= 0 includes every row.
func FromTable(title string, table data.Table, limit int) *Result {
	columns := data.ColumnNames(table)
	numRows := table.Len()
	if limit > 0 && limit < numRows {
		numRows = limit
	}

	result := &Result{
		Query:   title,
		Columns: columns,
		Rows:    make([]map[string]any, 0, numRows),
	}

	for idx := 0; idx < numRows; idx++ {
		values := table.Row(idx)
		row := make(map[string]any, len(columns))
		for col, name := range columns {
			row[name] = values[col]
		}
		result.Rows = append(result.Rows, row)
	}

	return result
}

// Markdown renders results as a markdown document with one table per query
func Markdown(results []*Result) string {
	builder := strings.Builder{}

	for _, result := range results {
		builder.WriteString(fmt.Sprintf("## %s\n\n", escape(result.Query)))

		if result.Err != nil {
			builder.WriteString(fmt.Sprintf("**error:** %s\n\n", escape(result.Err.Error())))
			continue
		}

		if len(result.Columns) == 0 {
			builder.WriteString("_no columns returned_\n\n")
			continue
		}

		builder.WriteString("| " + strings.Join(escapeAll(result.Columns), " | ") + " |\n")
		builder.WriteString("|" + strings.Repeat(" --- |", len(result.Columns)) + "\n")
		for _, row := range result.Rows {
			cells := make([]string, len(result.Columns))
			for idx, col := range result.Columns {
				cells[idx] = escape(data.FormatValue(row[col]))
			}
			builder.WriteString("| " + strings.Join(cells, " | ") + " |\n")
		}

		builder.WriteString(fmt.Sprintf("\n_%d rows_\n\n", len(result.Rows)))
	}

	return builder.String()
}

var markdownEscaper = strings.NewReplacer("|", "\\|", "*", "\\*", "_", "\\_")

func escape(str string) string {
	return markdownEscaper.Replace(str)
}

func escapeAll(strs []string) []string {
	escaped := make([]string, len(strs))
	for idx, str := range strs {
		escaped[idx] = escape(str)
	}
	return escaped
}
