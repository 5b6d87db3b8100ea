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
package archive

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/penny-vault/pvbanks/data"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"
)

var (
	ErrUnsupportedColumn = errors.New("column kind cannot be archived")
)

type schemaNode struct {
	Tag    string        `json:"Tag"`
	Fields []*schemaNode `json:"Fields,omitempty"`
}

// Schema builds the parquet-go JSON schema describing table
func Schema(table data.Table) (string, error) {
	root := &schemaNode{
		Tag: "name=parquet_go_root, repetitiontype=REQUIRED",
	}

	for _, col := range table.Columns() {
		var colType string
		switch col.Kind {
		case data.IntegerColumn:
			colType = "type=INT64"
		case data.TextColumn:
			colType = "type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY"
		case data.DecimalColumn:
			colType = "type=DOUBLE"
		default:
			return "", fmt.Errorf("%w: %s", ErrUnsupportedColumn, col.Name)
		}

		root.Fields = append(root.Fields, &schemaNode{
			Tag: fmt.Sprintf("name=%s, inname=%s, %s, repetitiontype=REQUIRED", col.Name, exportedName(col.Name), colType),
		})
	}

	schema, err := json.Marshal(root)
	if err != nil {
		return "", err
	}

	return string(schema), nil
}

// WriteParquet saves table to fn as a zstd compressed parquet file
func WriteParquet(fn string, table data.Table) error {
	schema, err := Schema(table)
	if err != nil {
		return err
	}

	fh, err := local.NewLocalFileWriter(fn)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("cannot create local file")
		return err
	}
	defer fh.Close()

	pw, err := writer.NewJSONWriter(schema, fh, 4)
	if err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("parquet writer creation failed")
		return err
	}

	pw.RowGroupSize = 128 * 1024 * 1024 // 128M
	pw.PageSize = 8 * 1024              // 8k
	pw.CompressionType = parquet.CompressionCodec_ZSTD

	columns := data.ColumnNames(table)
	for idx := 0; idx < table.Len(); idx++ {
		values := table.Row(idx)
		row := make(map[string]any, len(columns))
		for colIdx, name := range columns {
			row[name] = jsonValue(values[colIdx])
		}

		rowJSON, err := json.Marshal(row)
		if err != nil {
			return err
		}

		if err = pw.Write(string(rowJSON)); err != nil {
			log.Error().Err(err).Str("FileName", fn).Int("Row", idx).Msg("parquet write failed for record")
			return err
		}
	}

	if err = pw.WriteStop(); err != nil {
		log.Error().Err(err).Str("FileName", fn).Msg("parquet write failed")
		return err
	}

	log.Info().Int("NumRecords", table.Len()).Str("FileName", fn).Msg("parquet write finished")
	return nil
}

func jsonValue(val any) any {
	if dec, ok := val.(decimal.Decimal); ok {
		return dec.InexactFloat64()
	}
	return val
}

func exportedName(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}
