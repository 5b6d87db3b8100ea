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
package extract_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/shopspring/decimal"

	"github.com/penny-vault/pvbanks/data"
	"github.com/penny-vault/pvbanks/extract"
)

const simpleTable = `<html><body>
<table>
<tr><th>Rank</th><th>Bank name</th><th>Market cap (US$ billion)</th></tr>
<tr><td>1</td><td>JPMorgan</td><td>%s</td></tr>
<tr><td>2</td><td>ICBC</td><td>300</td></tr>
</table>
</body></html>`

func page(marketCap string) []byte {
	return []byte(fmt.Sprintf(simpleTable, marketCap))
}

var _ = Describe("Parse", func() {
	var fixture []byte

	BeforeEach(func() {
		var err error
		fixture, err = os.ReadFile("testdata/largest_banks.html")
		Expect(err).NotTo(HaveOccurred())
	})

	Context("with an anchor", func() {
		It("reads the table after the anchor in page order", func() {
			banks, err := extract.ParseBanks(fixture, extract.DefaultAnchor)
			Expect(err).NotTo(HaveOccurred())
			Expect(banks).To(HaveLen(4))

			Expect(banks[0].Rank).To(Equal(1))
			Expect(banks[0].Name).To(Equal("JPMorgan Chase"))
			Expect(banks[0].MarketCapUSD.Equal(decimal.RequireFromString("432.92"))).To(BeTrue())

			Expect(banks[3].Name).To(Equal("Agricultural Bank of China"))
			Expect(banks[3].MarketCapUSD.Equal(decimal.RequireFromString("1060.12"))).To(BeTrue())

			for idx, bank := range banks {
				Expect(bank.Rank).To(Equal(idx + 1))
			}
		})

		It("fails when the anchor is missing", func() {
			_, err := extract.ParseBanks(fixture, "By_revenue")
			Expect(err).To(MatchError(data.ErrParse))
		})

		It("fails when no table follows the anchor", func() {
			_, err := extract.ParseBanks([]byte(`<html><body><table><tr><th>Rank</th></tr></table><h2 id="x">x</h2></body></html>`), "x")
			Expect(err).To(MatchError(data.ErrParse))
		})
	})

	Context("without an anchor", func() {
		It("picks the first table with the expected columns", func() {
			banks, err := extract.ParseBanks(fixture, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(banks).To(HaveLen(4))
			Expect(banks[1].Name).To(Equal("Bank of America"))
		})

		It("fails when no table has the expected columns", func() {
			_, err := extract.ParseBanks([]byte(`<table><tr><th>Rank</th><th>Name</th></tr><tr><td>1</td><td>x</td></tr></table>`), "")
			Expect(err).To(MatchError(data.ErrParse))
		})
	})

	DescribeTable("rejects malformed rows",
		func(marketCap string) {
			_, err := extract.ParseBanks(page(marketCap), "")
			Expect(err).To(MatchError(data.ErrParse))
		},
		Entry("text market cap", "n/a"),
		Entry("empty market cap", ""),
		Entry("footnote only", "[3]"),
		Entry("negative market cap", "-12"),
	)

	It("rejects invalid and duplicate ranks", func() {
		_, err := extract.ParseBanks([]byte(`<table><tr><th>Rank</th><th>Bank name</th><th>Market cap</th></tr><tr><td>one</td><td>A</td><td>1</td></tr></table>`), "")
		Expect(err).To(MatchError(data.ErrParse))

		_, err = extract.ParseBanks([]byte(`<table><tr><th>Rank</th><th>Bank name</th><th>Market cap</th></tr><tr><td>0</td><td>A</td><td>1</td></tr></table>`), "")
		Expect(err).To(MatchError(data.ErrParse))

		_, err = extract.ParseBanks([]byte(`<table><tr><th>Rank</th><th>Bank name</th><th>Market cap</th></tr><tr><td>1</td><td>A</td><td>1</td></tr><tr><td>1</td><td>B</td><td>2</td></tr></table>`), "")
		Expect(err).To(MatchError(data.ErrParse))
	})

	It("returns no records for a table without data rows", func() {
		banks, err := extract.ParseBanks([]byte(`<table><tr><th>Rank</th><th>Bank name</th><th>Market cap</th></tr></table>`), "")
		Expect(err).NotTo(HaveOccurred())
		Expect(banks).To(BeEmpty())
	})

	DescribeTable("parses numbers",
		func(str, expected string) {
			val, err := extract.ParseNumber(str)
			Expect(err).NotTo(HaveOccurred())
			Expect(val.Equal(decimal.RequireFromString(expected))).To(BeTrue(), "got %s", val)
		},
		Entry("plain", "432.92", "432.92"),
		Entry("thousands separator", "1,060.12", "1060.12"),
		Entry("footnote", "194.56[3]", "194.56"),
		Entry("currency symbol", "US$ 231.52", "231.52"),
		Entry("whitespace", "  98.1 \n", "98.1"),
	)
})

type staticFetcher struct {
	content []byte
	err     error
	urls    []string
}

func (fetcher *staticFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	fetcher.urls = append(fetcher.urls, url)
	return fetcher.content, fetcher.err
}

var _ = Describe("Extract", func() {
	It("fetches the url once and parses the result", func() {
		fetcher := &staticFetcher{content: page("400")}
		banks, err := extract.Extract(context.Background(), fetcher, "https://example.com/banks", "")
		Expect(err).NotTo(HaveOccurred())
		Expect(banks).To(HaveLen(2))
		Expect(fetcher.urls).To(Equal([]string{"https://example.com/banks"}))
	})

	It("passes fetch errors through", func() {
		fetcher := &staticFetcher{err: fmt.Errorf("%w: boom", data.ErrFetch)}
		_, err := extract.Extract(context.Background(), fetcher, "https://example.com/banks", "")
		Expect(err).To(MatchError(data.ErrFetch))
		Expect(fetcher.urls).To(HaveLen(1))
	})

	Describe("HTTPFetcher", func() {
		var (
			server    *httptest.Server
			userAgent string
		)

		BeforeEach(func() {
			userAgent = ""
			server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/banks":
					userAgent = r.Header.Get("User-Agent")
					_, _ = w.Write(page("400"))
				default:
					w.WriteHeader(http.StatusNotFound)
				}
			}))
		})

		AfterEach(func() {
			server.Close()
		})

		It("downloads the page", func() {
			fetcher := extract.NewHTTPFetcher(5*time.Second, "pvbanks-test")
			banks, err := extract.Extract(context.Background(), fetcher, server.URL+"/banks", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(banks).To(HaveLen(2))
			Expect(banks[0].Name).To(Equal("JPMorgan"))
			Expect(userAgent).To(Equal("pvbanks-test"))
		})

		It("treats non-2xx responses as fetch errors", func() {
			fetcher := extract.NewHTTPFetcher(5*time.Second, "pvbanks-test")
			_, err := fetcher.Fetch(context.Background(), server.URL+"/missing")
			Expect(err).To(MatchError(data.ErrFetch))
		})

		It("treats transport failures as fetch errors", func() {
			fetcher := extract.NewHTTPFetcher(time.Second, "")
			_, err := fetcher.Fetch(context.Background(), "http://127.0.0.1:1/banks")
			Expect(err).To(MatchError(data.ErrFetch))
		})
	})
})
