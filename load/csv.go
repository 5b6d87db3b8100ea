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
package load

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	"github.com/penny-vault/pvbanks/data"
	"github.com/rs/zerolog/log"
)

// WriteCSV saves table to fn with a header row followed by one line per
// record. An existing file is replaced only once the new content has been
// completely written.
func WriteCSV(fn string, table data.Table) error {
	tmp, err := os.CreateTemp(filepath.Dir(fn), "."+filepath.Base(fn)+"-*")
	if err != nil {
		return fmt.Errorf("%w: %w", data.ErrWrite, err)
	}

	defer func() {
		if err := os.Remove(tmp.Name()); err != nil && !os.IsNotExist(err) {
			log.Warn().Err(err).Str("FileName", tmp.Name()).Msg("could not remove temporary file")
		}
	}()

	if err := writeRows(tmp, table); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s: %w", data.ErrWrite, fn, err)
	}

	if err := tmp.Chmod(0644); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %s: %w", data.ErrWrite, fn, err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %s: %w", data.ErrWrite, fn, err)
	}

	if err := os.Rename(tmp.Name(), fn); err != nil {
		return fmt.Errorf("%w: %s: %w", data.ErrWrite, fn, err)
	}

	log.Debug().Str("FileName", fn).Int("NumRecords", table.Len()).Msg("wrote csv")
	return nil
}

func writeRows(fh *os.File, table data.Table) error {
	writer := gocsv.NewSafeCSVWriter(csv.NewWriter(fh))

	if err := writer.Write(data.ColumnNames(table)); err != nil {
		return err
	}

	for idx := 0; idx < table.Len(); idx++ {
		row := table.Row(idx)
		record := make([]string, len(row))
		for col, val := range row {
			record[col] = data.FormatValue(val)
		}

		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// ReadBanksCSV parses a file written from data.Banks
func ReadBanksCSV(fn string) (data.Banks, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	records := []*data.BankRecord{}
	if err := gocsv.UnmarshalFile(fh, &records); err != nil {
		return nil, err
	}

	return data.Banks(records), nil
}

// ReadCSV parses any file written by WriteCSV into one map per row keyed by
// column name
func ReadCSV(fn string) ([]map[string]string, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return gocsv.CSVToMaps(fh)
}
