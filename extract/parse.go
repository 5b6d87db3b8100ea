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
package extract

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/penny-vault/pvbanks/data"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// DefaultAnchor is the id of the heading that precedes the market
// capitalization table on the wikipedia list of largest banks
const DefaultAnchor = "By_market_capitalization"

var (
	footnoteRegex = regexp.MustCompile(`\[[^\]]*\]`)
	currencyRegex = regexp.MustCompile(`^(US\$|\$|€|£|¥|₹)`)
	numberCleaner = strings.NewReplacer(",", "", " ", "")

	errEmptyValue = errors.New("empty value")
)

type columnIndex struct {
	rank      int
	name      int
	marketCap int
}

func (idx columnIndex) max() int {
	return max(idx.rank, idx.name, idx.marketCap)
}

// Extract downloads the page at url and parses the largest banks table from it
func Extract(ctx context.Context, fetcher Fetcher, url, anchor string) (data.Banks, error) {
	logger := zerolog.Ctx(ctx)

	content, err := fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}

	banks, err := ParseBanks(content, anchor)
	if err != nil {
		return nil, err
	}

	logger.Info().Str("Url", url).Int("NumRecords", len(banks)).Msg("extracted bank records")
	return banks, nil
}

// ParseBanks locates the market capitalization table in an HTML document and
// returns one record per data row in page order. When anchor is set the table
// is the first one following the element with that id, otherwise it is the
// first table with rank, bank name, and market cap columns.
func ParseBanks(content []byte, anchor string) (data.Banks, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrParse, err)
	}

	table, err := findTable(doc, anchor)
	if err != nil {
		return nil, err
	}

	return parseTable(table)
}

func findTable(doc *goquery.Document, anchor string) (*goquery.Selection, error) {
	var found *goquery.Selection

	if anchor == "" {
		doc.Find("table").EachWithBreak(func(_ int, tbl *goquery.Selection) bool {
			if _, err := headerColumns(tbl); err == nil {
				found = tbl
				return false
			}
			return true
		})

		if found == nil {
			return nil, fmt.Errorf("%w: no table with rank, bank name and market cap columns", data.ErrParse)
		}

		return found, nil
	}

	// walk elements in document order; the first table at or after the
	// anchor is the one we want
	seenAnchor := false
	doc.Find("[id], table").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if !seenAnchor {
			if id, ok := sel.Attr("id"); !ok || id != anchor {
				return true
			}
			seenAnchor = true
		}

		if goquery.NodeName(sel) == "table" {
			found = sel
			return false
		}
		return true
	})

	if !seenAnchor {
		return nil, fmt.Errorf("%w: could not find element with id %q", data.ErrParse, anchor)
	}

	if found == nil {
		return nil, fmt.Errorf("%w: no table follows element %q", data.ErrParse, anchor)
	}

	return found, nil
}

func headerColumns(table *goquery.Selection) (columnIndex, error) {
	idx := columnIndex{rank: -1, name: -1, marketCap: -1}

	var header *goquery.Selection
	table.Find("tr").EachWithBreak(func(_ int, row *goquery.Selection) bool {
		if row.ChildrenFiltered("td").Length() == 0 && row.ChildrenFiltered("th").Length() > 0 {
			header = row
			return false
		}
		return true
	})

	if header == nil {
		return idx, fmt.Errorf("%w: table has no header row", data.ErrParse)
	}

	header.ChildrenFiltered("th").Each(func(col int, cell *goquery.Selection) {
		title := strings.ToLower(cleanText(cell.Text()))
		switch {
		case strings.HasPrefix(title, "rank") && idx.rank < 0:
			idx.rank = col
		case strings.HasPrefix(title, "bank name") && idx.name < 0:
			idx.name = col
		case strings.HasPrefix(title, "market cap") && idx.marketCap < 0:
			idx.marketCap = col
		}
	})

	if idx.rank < 0 || idx.name < 0 || idx.marketCap < 0 {
		return idx, fmt.Errorf("%w: expected columns Rank, Bank name, Market cap not found", data.ErrParse)
	}

	return idx, nil
}

func parseTable(table *goquery.Selection) (data.Banks, error) {
	idx, err := headerColumns(table)
	if err != nil {
		return nil, err
	}

	banks := make(data.Banks, 0, 10)
	seenRanks := make(map[int]bool)

	var parseErr error
	table.Find("tr").EachWithBreak(func(rowNum int, row *goquery.Selection) bool {
		// header rows only contain th cells
		if row.ChildrenFiltered("td").Length() == 0 {
			return true
		}

		cells := row.ChildrenFiltered("th, td")
		if cells.Length() <= idx.max() {
			parseErr = fmt.Errorf("%w: row %d has %d cells, expected at least %d", data.ErrParse, rowNum, cells.Length(), idx.max()+1)
			return false
		}

		bank, err := parseRow(cells, idx)
		if err != nil {
			parseErr = fmt.Errorf("%w: row %d: %w", data.ErrParse, rowNum, err)
			return false
		}

		if seenRanks[bank.Rank] {
			parseErr = fmt.Errorf("%w: row %d: duplicate rank %d", data.ErrParse, rowNum, bank.Rank)
			return false
		}
		seenRanks[bank.Rank] = true

		banks = append(banks, bank)
		return true
	})

	if parseErr != nil {
		return nil, parseErr
	}

	return banks, nil
}

func parseRow(cells *goquery.Selection, idx columnIndex) (*data.BankRecord, error) {
	rankStr := cleanText(cells.Eq(idx.rank).Text())
	rank, err := strconv.Atoi(rankStr)
	if err != nil {
		return nil, fmt.Errorf("invalid rank %q: %w", rankStr, err)
	}

	if rank <= 0 {
		return nil, fmt.Errorf("rank must be positive, got %d", rank)
	}

	name := cleanText(cells.Eq(idx.name).Text())
	if name == "" {
		return nil, fmt.Errorf("bank name is empty for rank %d", rank)
	}

	marketCapStr := cells.Eq(idx.marketCap).Text()
	marketCap, err := ParseNumber(marketCapStr)
	if err != nil {
		return nil, fmt.Errorf("invalid market cap %q: %w", strings.TrimSpace(marketCapStr), err)
	}

	if marketCap.IsNegative() {
		return nil, fmt.Errorf("market cap must not be negative, got %s", marketCap)
	}

	return &data.BankRecord{
		Rank:         rank,
		Name:         name,
		MarketCapUSD: marketCap,
	}, nil
}

// ParseNumber converts a table cell into a decimal after removing footnote
// markers, currency symbols and thousands separators
func ParseNumber(str string) (decimal.Decimal, error) {
	str = cleanText(str)
	str = currencyRegex.ReplaceAllString(str, "")
	str = numberCleaner.Replace(str)

	if str == "" {
		return decimal.Zero, errEmptyValue
	}

	return decimal.NewFromString(str)
}

// cleanText strips footnote markers and collapses whitespace
func cleanText(str string) string {
	str = footnoteRegex.ReplaceAllString(str, "")
	return strings.Join(strings.Fields(str), " ")
}
