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
package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/spf13/viper"
)

const bankPage = `<html><body>
<h2><span id="By_market_capitalization">By market capitalization</span></h2>
<table>
<tr><th>Rank</th><th>Bank name</th><th>Market cap (US$ billion)</th></tr>
<tr><td>1</td><td>JPMorgan</td><td>400</td></tr>
<tr><td>2</td><td>ICBC</td><td>300</td></tr>
</table>
</body></html>`

var _ = Describe("Run", func() {
	var (
		server  *httptest.Server
		dir     string
		logFile string
	)

	BeforeEach(func() {
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(bankPage))
		}))

		dir = GinkgoT().TempDir()
		logFile = filepath.Join(dir, "code_log.txt")
		ratesFile := filepath.Join(dir, "exchange_rates.csv")
		Expect(os.WriteFile(ratesFile, []byte("GBP,0.8\n"), 0644)).To(Succeed())

		viper.Set("extract.url", server.URL)
		viper.Set("transform.rates_file", ratesFile)
		viper.Set("load.raw_csv", filepath.Join(dir, "bank_data.csv"))
		viper.Set("load.transformed_csv", filepath.Join(dir, "transformed_bank_data.csv"))
		viper.Set("db.url", filepath.Join(dir, "Banks.db"))
		viper.Set("log.file", logFile)
	})

	AfterEach(func() {
		server.Close()
		viper.Reset()
		setDefaults()
	})

	It("writes the progress log for a successful run", func() {
		Expect(runPipeline(context.Background())).To(Succeed())

		content, err := os.ReadFile(logFile)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring(": Process Complete"))
	})

	It("returns the stage error after the progress log is written", func() {
		Expect(os.WriteFile(viper.GetString("transform.rates_file"), []byte("GBP,zero\n"), 0644)).To(Succeed())

		err := runPipeline(context.Background())
		Expect(err).To(HaveOccurred())

		content, readErr := os.ReadFile(logFile)
		Expect(readErr).NotTo(HaveOccurred())
		Expect(string(content)).To(ContainSubstring(": Error during transform:"))
	})

	It("fails when the progress log cannot be opened", func() {
		viper.Set("log.file", filepath.Join(dir, "missing", "code_log.txt"))
		Expect(runPipeline(context.Background())).NotTo(Succeed())
	})
})
