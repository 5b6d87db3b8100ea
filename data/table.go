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
package data

import (
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

type ColumnKind int

const (
	IntegerColumn ColumnKind = iota
	TextColumn
	DecimalColumn
)

type Column struct {
	Name string
	Kind ColumnKind
}

// Table is a rectangular record set that can be written to a CSV file or
// loaded into a database table. Row values are int, string or decimal.Decimal
// matching the kind of the corresponding column.
type Table interface {
	Columns() []Column
	Len() int
	Row(idx int) []any
}

// ColumnNames returns the names of the table's columns in order
func ColumnNames(table Table) []string {
	columns := table.Columns()
	names := make([]string, len(columns))
	for idx, col := range columns {
		names[idx] = col.Name
	}

	return names
}

// FormatValue converts a row value into its text form
func FormatValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case decimal.Decimal:
		return v.String()
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
