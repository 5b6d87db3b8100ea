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
package archive_test

import (
	"os"
	"path/filepath"

	"github.com/goccy/go-json"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"
	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/reader"

	"github.com/penny-vault/pvbanks/archive"
	"github.com/penny-vault/pvbanks/data"
)

type archivedBank struct {
	Rank                   int64   `parquet:"name=rank, type=INT64"`
	Name                   string  `parquet:"name=name, type=BYTE_ARRAY, convertedtype=UTF8"`
	Market_cap_usd_billion float64 `parquet:"name=market_cap_usd_billion, type=DOUBLE"`
	Market_cap_gbp_billion float64 `parquet:"name=market_cap_gbp_billion, type=DOUBLE"`
}

type unknownKindTable struct {
	data.Banks
}

func (unknownKindTable) Columns() []data.Column {
	return []data.Column{{Name: "blob", Kind: data.ColumnKind(99)}}
}

var _ = Describe("Parquet", func() {
	var transformed *data.TransformedBanks

	BeforeEach(func() {
		transformed = &data.TransformedBanks{
			Currencies: []data.Currency{{Code: "GBP", Column: "market_cap_gbp_billion"}},
			Records: []*data.TransformedBankRecord{
				{
					BankRecord: data.BankRecord{Rank: 1, Name: "JPMorgan", MarketCapUSD: decimal.NewFromInt(400)},
					MarketCap:  map[string]decimal.Decimal{"GBP": decimal.NewFromInt(320)},
				},
			},
		}
	})

	It("describes every column in the schema", func() {
		schema, err := archive.Schema(transformed)
		Expect(err).NotTo(HaveOccurred())

		var root struct {
			Tag    string
			Fields []struct{ Tag string }
		}
		Expect(json.Unmarshal([]byte(schema), &root)).To(Succeed())
		Expect(root.Fields).To(HaveLen(4))
		Expect(root.Fields[0].Tag).To(ContainSubstring("name=rank, inname=Rank, type=INT64"))
		Expect(root.Fields[1].Tag).To(ContainSubstring("convertedtype=UTF8"))
		Expect(root.Fields[3].Tag).To(ContainSubstring("name=market_cap_gbp_billion, inname=Market_cap_gbp_billion, type=DOUBLE"))
	})

	It("rejects unknown column kinds", func() {
		_, err := archive.Schema(unknownKindTable{})
		Expect(err).To(MatchError(archive.ErrUnsupportedColumn))
	})

	It("writes a parquet file", func() {
		fn := filepath.Join(GinkgoT().TempDir(), "banks.parquet")
		Expect(archive.WriteParquet(fn, transformed)).To(Succeed())

		info, err := os.Stat(fn)
		Expect(err).NotTo(HaveOccurred())
		Expect(info.Size()).To(BeNumerically(">", 0))

		fr, err := local.NewLocalFileReader(fn)
		Expect(err).NotTo(HaveOccurred())
		defer fr.Close()

		pr, err := reader.NewParquetReader(fr, new(archivedBank), 4)
		Expect(err).NotTo(HaveOccurred())
		defer pr.ReadStop()

		Expect(pr.GetNumRows()).To(BeNumerically("==", 1))

		rows := make([]archivedBank, pr.GetNumRows())
		Expect(pr.Read(&rows)).To(Succeed())
		Expect(rows).To(Equal([]archivedBank{{
			Rank:                   1,
			Name:                   "JPMorgan",
			Market_cap_usd_billion: 400,
			Market_cap_gbp_billion: 320,
		}}))
	})
})
