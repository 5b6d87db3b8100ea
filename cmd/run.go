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
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/hako/durafmt"
	"github.com/penny-vault/pvbanks/backblaze"
	"github.com/penny-vault/pvbanks/extract"
	"github.com/penny-vault/pvbanks/pipeline"
	"github.com/penny-vault/pvbanks/pkginfo"
	"github.com/penny-vault/pvbanks/progress"
	"github.com/penny-vault/pvbanks/query"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Extract, transform and load the largest banks table",
	Long: `The run sub-command downloads the largest banks table, converts each
market cap into the currencies listed in the exchange rate file, saves the raw
and transformed data to CSV, replaces the database table and finally executes
the configured queries. The command exits with a non-zero status if any step
(including any query) fails.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())

		if err := runPipeline(ctx); err != nil {
			log.Error().Err(err).Msg("pipeline failed")
			os.Exit(1)
		}
	},
}

// runPipeline executes one pipeline run and prints its report. The progress
// log is closed before returning on every path.
func runPipeline(ctx context.Context) error {
	logFN := viper.GetString("log.file")
	progressLog, err := progress.Open(logFN)
	if err != nil {
		return fmt.Errorf("open progress log %s: %w", logFN, err)
	}

	defer func() {
		if err := progressLog.Close(); err != nil {
			log.Error().Err(err).Str("FileName", logFN).Msg("could not close progress log")
		}
	}()

	etl := pipeline.New(pipelineConfig(), newFetcher(), progressLog)
	report, err := etl.Run(ctx)

	printReport(report)

	return err
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("url", "", "url of the page containing the bank table")
	if err := viper.BindPFlag("extract.url", runCmd.Flags().Lookup("url")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for url failed")
	}

	runCmd.Flags().String("rates", "", "exchange rate file (csv or json)")
	if err := viper.BindPFlag("transform.rates_file", runCmd.Flags().Lookup("rates")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for rates failed")
	}

	runCmd.Flags().Bool("browser", false, "render the page with a headless browser before parsing")
	if err := viper.BindPFlag("extract.browser", runCmd.Flags().Lookup("browser")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for browser failed")
	}
}

func newFetcher() extract.Fetcher {
	userAgent := viper.GetString("user_agent")
	timeout := viper.GetDuration("extract.timeout")

	if viper.GetBool("extract.browser") {
		return &extract.BrowserFetcher{
			Headless:  viper.GetBool("playwright.headless"),
			UserAgent: userAgent,
			Timeout:   timeout,
		}
	}

	if userAgent == "" {
		userAgent = pkginfo.UserAgent()
	}

	return extract.NewHTTPFetcher(timeout, userAgent)
}

func pipelineConfig() pipeline.Config {
	return pipeline.Config{
		URL:            viper.GetString("extract.url"),
		Anchor:         viper.GetString("extract.anchor"),
		RatesFile:      viper.GetString("transform.rates_file"),
		RawCSV:         viper.GetString("load.raw_csv"),
		TransformedCSV: viper.GetString("load.transformed_csv"),
		DBUrl:          viper.GetString("db.url"),
		Table:          viper.GetString("db.table"),
		Queries:        viper.GetStringSlice("queries"),
		ArchiveDir:     viper.GetString("archive.dir"),
		Backblaze: backblaze.Credentials{
			ApplicationID:  viper.GetString("backblaze.application_id"),
			ApplicationKey: viper.GetString("backblaze.application_key"),
		},
		BackblazeBucket: viper.GetString("backblaze.bucket"),
		PingURL:         viper.GetString("healthchecks.ping_url"),
	}
}

func printReport(report *pipeline.Report) {
	if report == nil {
		return
	}

	if report.Preview != nil {
		printMarkdown(query.Markdown([]*query.Result{report.Preview}))
	}

	if len(report.Results) > 0 {
		printMarkdown(query.Markdown(report.Results))
	}

	var sb strings.Builder
	keyword := func(s string) string {
		return lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Render(s)
	}

	numCurrencies := 0
	if report.Transformed != nil {
		numCurrencies = len(report.Transformed.Currencies)
	}

	fmt.Fprintf(&sb,
		"%s\n\nRun ID: %s\nBanks: %s\nCurrencies: %s\nQueries: %s\nRun time: %s",
		lipgloss.NewStyle().Bold(true).Render("PIPELINE RUN"),
		keyword(report.RunID.String()),
		keyword(fmt.Sprintf("%d", len(report.Banks))),
		keyword(fmt.Sprintf("%d", numCurrencies)),
		keyword(fmt.Sprintf("%d", len(report.Results))),
		keyword(durafmt.Parse(report.Duration).LimitFirstN(2).String()),
	)

	if report.ArchiveFile != "" {
		fmt.Fprintf(&sb, "\nArchive: %s", keyword(report.ArchiveFile))
	}

	fmt.Println(
		lipgloss.NewStyle().
			Width(60).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(1, 2).
			Render(sb.String()),
	)
}
