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
	"sort"
	"strings"

	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
)

const (
	RankColumn      = "rank"
	NameColumn      = "name"
	MarketCapColumn = "market_cap_usd_billion"
)

// BankRecord is a single row of the largest banks table as it appears on the
// source page. Market capitalization is in billions of US dollars.
type BankRecord struct {
	Rank         int             `csv:"rank" json:"rank"`
	Name         string          `csv:"name" json:"name"`
	MarketCapUSD decimal.Decimal `csv:"market_cap_usd_billion" json:"market_cap_usd_billion"`
}

// TransformedBankRecord is a BankRecord with its market capitalization
// converted into each currency of an exchange rate table
type TransformedBankRecord struct {
	BankRecord

	MarketCap map[string]decimal.Decimal
}

// ExchangeRates maps a currency code to the multiplier that converts USD into
// that currency
type ExchangeRates map[string]decimal.Decimal

// Codes returns the currency codes in sorted order
func (rates ExchangeRates) Codes() []string {
	codes := make([]string, 0, len(rates))
	for code := range rates {
		codes = append(codes, code)
	}

	sort.Strings(codes)
	return codes
}

type Currency struct {
	Code   string
	Column string
}

// CurrencyColumn returns the column name used for market capitalization in
// the given currency, e.g. GBP -> market_cap_gbp_billion
func CurrencyColumn(code string) (string, error) {
	name := slug.Make(strings.TrimSpace(code))
	if name == "" {
		return "", fmt.Errorf("%w: currency code %q does not produce a column name", ErrRateLookup, code)
	}

	name = strings.ReplaceAll(name, "-", "_")
	return fmt.Sprintf("market_cap_%s_billion", name), nil
}

// Banks is the extracted table in source order
type Banks []*BankRecord

func (banks Banks) Columns() []Column {
	return []Column{
		{Name: RankColumn, Kind: IntegerColumn},
		{Name: NameColumn, Kind: TextColumn},
		{Name: MarketCapColumn, Kind: DecimalColumn},
	}
}

func (banks Banks) Len() int {
	return len(banks)
}

func (banks Banks) Row(idx int) []any {
	bank := banks[idx]
	return []any{bank.Rank, bank.Name, bank.MarketCapUSD}
}

// TransformedBanks is the extracted table with one additional column for each
// currency. Currencies are sorted by code so the column order is stable
// between runs.
type TransformedBanks struct {
	Currencies []Currency
	Records    []*TransformedBankRecord
}

func (banks *TransformedBanks) Columns() []Column {
	columns := Banks(nil).Columns()
	for _, currency := range banks.Currencies {
		columns = append(columns, Column{Name: currency.Column, Kind: DecimalColumn})
	}

	return columns
}

func (banks *TransformedBanks) Len() int {
	return len(banks.Records)
}

func (banks *TransformedBanks) Row(idx int) []any {
	record := banks.Records[idx]
	row := make([]any, 0, 3+len(banks.Currencies))
	row = append(row, record.Rank, record.Name, record.MarketCapUSD)
	for _, currency := range banks.Currencies {
		row = append(row, record.MarketCap[currency.Code])
	}

	return row
}
