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
	"fmt"

	"github.com/penny-vault/pvbanks/data"
	"github.com/shopspring/decimal"
)

// Transform converts each bank's market capitalization into every currency of
// rates. Input order is preserved and the input records are not modified.
func Transform(banks data.Banks, rates data.ExchangeRates) (*data.TransformedBanks, error) {
	currencies, err := currencyColumns(rates)
	if err != nil {
		return nil, err
	}

	transformed := &data.TransformedBanks{
		Currencies: currencies,
		Records:    make([]*data.TransformedBankRecord, 0, len(banks)),
	}

	for _, bank := range banks {
		record := &data.TransformedBankRecord{
			BankRecord: *bank,
			MarketCap:  make(map[string]decimal.Decimal, len(currencies)),
		}

		for _, currency := range currencies {
			record.MarketCap[currency.Code] = bank.MarketCapUSD.Mul(rates[currency.Code])
		}

		transformed.Records = append(transformed.Records, record)
	}

	return transformed, nil
}

// currencyColumns names the column for each currency. Two codes that map to
// the same column, or to one of the base columns, are rejected.
func currencyColumns(rates data.ExchangeRates) ([]data.Currency, error) {
	used := make(map[string]string)
	for _, col := range data.Banks(nil).Columns() {
		used[col.Name] = ""
	}

	currencies := make([]data.Currency, 0, len(rates))
	for _, code := range rates.Codes() {
		column, err := data.CurrencyColumn(code)
		if err != nil {
			return nil, err
		}

		if other, ok := used[column]; ok {
			if other == "" {
				return nil, fmt.Errorf("%w: currency %q collides with column %s", data.ErrRateLookup, code, column)
			}
			return nil, fmt.Errorf("%w: currencies %q and %q both map to column %s", data.ErrRateLookup, other, code, column)
		}

		used[column] = code
		currencies = append(currencies, data.Currency{Code: code, Column: column})
	}

	return currencies, nil
}
