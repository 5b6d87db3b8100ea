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
package transform

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gocarina/gocsv"
	"github.com/goccy/go-json"
	"github.com/penny-vault/pvbanks/data"
	"github.com/shopspring/decimal"
)

type rateRow struct {
	Currency string `csv:"Currency"`
	Rate     string `csv:"Rate"`
}

// LoadRates reads an exchange rate table from fn. Files ending in .json are
// parsed as an object of currency code to rate, anything else as CSV with
// currency and rate columns.
func LoadRates(fn string) (data.ExchangeRates, error) {
	fh, err := os.Open(fn)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrRateLookup, err)
	}
	defer fh.Close()

	if strings.EqualFold(filepath.Ext(fn), ".json") {
		return ParseJSONRates(fh)
	}

	return ParseCSVRates(fh)
}

// ParseCSVRates reads currency,rate pairs. A leading Currency,Rate header
// row is skipped.
func ParseCSVRates(r io.Reader) (data.ExchangeRates, error) {
	rows := []*rateRow{}
	if err := gocsv.UnmarshalWithoutHeaders(r, &rows); err != nil {
		if errors.Is(err, gocsv.ErrEmptyCSVFile) {
			return data.ExchangeRates{}, nil
		}
		return nil, fmt.Errorf("%w: %w", data.ErrRateLookup, err)
	}

	rates := make(data.ExchangeRates, len(rows))
	for idx, row := range rows {
		code := strings.TrimSpace(row.Currency)
		if idx == 0 && isHeader(code, row.Rate) {
			continue
		}

		rate, err := decimal.NewFromString(strings.TrimSpace(row.Rate))
		if err != nil {
			return nil, fmt.Errorf("%w: invalid rate %q for %s", data.ErrRateLookup, row.Rate, code)
		}

		if _, ok := rates[code]; ok {
			return nil, fmt.Errorf("%w: duplicate currency %q", data.ErrRateLookup, code)
		}

		if err := validateRate(code, rate); err != nil {
			return nil, err
		}

		rates[code] = rate
	}

	return rates, nil
}

func isHeader(currency, rate string) bool {
	return strings.EqualFold(currency, "currency") && strings.EqualFold(strings.TrimSpace(rate), "rate")
}

// ParseJSONRates reads an object such as {"GBP": 0.8, "EUR": 0.93}
func ParseJSONRates(r io.Reader) (data.ExchangeRates, error) {
	rates := make(data.ExchangeRates)
	if err := json.NewDecoder(r).Decode(&rates); err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrRateLookup, err)
	}

	for code, rate := range rates {
		if err := validateRate(code, rate); err != nil {
			return nil, err
		}
	}

	return rates, nil
}

func validateRate(code string, rate decimal.Decimal) error {
	if !rate.IsPositive() {
		return fmt.Errorf("%w: rate for %q must be positive, got %s", data.ErrRateLookup, code, rate)
	}
	return nil
}
