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
package transform_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/penny-vault/pvbanks/data"
	"github.com/penny-vault/pvbanks/transform"
)

func dec(str string) decimal.Decimal {
	return decimal.RequireFromString(str)
}

var _ = Describe("Transform", func() {
	var banks data.Banks

	BeforeEach(func() {
		banks = data.Banks{
			{Rank: 1, Name: "JPMorgan", MarketCapUSD: dec("400")},
			{Rank: 2, Name: "ICBC", MarketCapUSD: dec("300")},
		}
	})

	It("converts market caps into the target currency", func() {
		transformed, err := transform.Transform(banks, data.ExchangeRates{"GBP": dec("0.8")})
		Expect(err).NotTo(HaveOccurred())

		Expect(transformed.Currencies).To(Equal([]data.Currency{{Code: "GBP", Column: "market_cap_gbp_billion"}}))
		Expect(transformed.Records).To(HaveLen(2))

		Expect(transformed.Records[0].Rank).To(Equal(1))
		Expect(transformed.Records[0].Name).To(Equal("JPMorgan"))
		Expect(transformed.Records[0].MarketCap["GBP"].Equal(dec("320"))).To(BeTrue())

		Expect(transformed.Records[1].Rank).To(Equal(2))
		Expect(transformed.Records[1].Name).To(Equal("ICBC"))
		Expect(transformed.Records[1].MarketCap["GBP"].Equal(dec("240"))).To(BeTrue())
	})

	It("adds exactly one field per currency equal to usd * rate", func() {
		rates := data.ExchangeRates{
			"GBP": dec("0.8"),
			"EUR": dec("0.93"),
			"INR": dec("82.95"),
		}

		transformed, err := transform.Transform(banks, rates)
		Expect(err).NotTo(HaveOccurred())
		Expect(transformed.Len()).To(Equal(len(banks)))
		Expect(transformed.Columns()).To(HaveLen(len(banks.Columns()) + len(rates)))

		for idx, record := range transformed.Records {
			Expect(record.MarketCap).To(HaveLen(len(rates)))
			for code, rate := range rates {
				expected := banks[idx].MarketCapUSD.Mul(rate)
				Expect(record.MarketCap[code].Equal(expected)).To(BeTrue(), "%s for %s", code, record.Name)
			}
		}

		Expect(data.ColumnNames(transformed)[3:]).To(Equal([]string{
			"market_cap_eur_billion", "market_cap_gbp_billion", "market_cap_inr_billion",
		}))
	})

	It("keeps full decimal precision", func() {
		transformed, err := transform.Transform(data.Banks{{Rank: 1, Name: "A", MarketCapUSD: dec("432.92")}}, data.ExchangeRates{"EUR": dec("0.93")})
		Expect(err).NotTo(HaveOccurred())
		Expect(transformed.Records[0].MarketCap["EUR"].String()).To(Equal("402.6156"))
	})

	It("does not modify its input", func() {
		_, err := transform.Transform(banks, data.ExchangeRates{"GBP": dec("0.8")})
		Expect(err).NotTo(HaveOccurred())
		Expect(banks[0].MarketCapUSD.Equal(dec("400"))).To(BeTrue())
	})

	It("returns an empty table for empty input", func() {
		transformed, err := transform.Transform(data.Banks{}, data.ExchangeRates{"GBP": dec("0.8")})
		Expect(err).NotTo(HaveOccurred())
		Expect(transformed.Len()).To(Equal(0))
		Expect(data.ColumnNames(transformed)).To(ContainElement("market_cap_gbp_billion"))
	})

	It("adds no columns when there are no rates", func() {
		transformed, err := transform.Transform(banks, data.ExchangeRates{})
		Expect(err).NotTo(HaveOccurred())
		Expect(data.ColumnNames(transformed)).To(Equal([]string{"rank", "name", "market_cap_usd_billion"}))
		Expect(transformed.Records[0].MarketCap).To(BeEmpty())
	})

	DescribeTable("rejects currency codes without a unique column",
		func(rates data.ExchangeRates) {
			_, err := transform.Transform(banks, rates)
			Expect(err).To(MatchError(data.ErrRateLookup))
		},
		Entry("empty code", data.ExchangeRates{"": dec("1")}),
		Entry("codes with the same slug", data.ExchangeRates{"GBP": dec("0.8"), "gbp": dec("0.8")}),
		Entry("code colliding with the usd column", data.ExchangeRates{"USD": dec("1")}),
	)
})
