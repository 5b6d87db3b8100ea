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
	"os"
	"strings"
	"time"

	"github.com/penny-vault/pvbanks/extract"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const (
	DefaultURL = "https://web.archive.org/web/20230908091635/https://en.wikipedia.org/wiki/List_of_largest_banks"
)

var DefaultQueries = []string{
	"SELECT * FROM Largest_banks",
	"SELECT AVG(market_cap_gbp_billion) FROM Largest_banks",
	"SELECT name FROM Largest_banks LIMIT 5",
}

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "pvbanks",
	Short: "pvbanks builds a database of the world's largest banks by market capitalization",
	Long: `pvbanks is a command line utility that downloads the list of the world's
largest banks by market capitalization, converts each bank's market cap into
other currencies using an exchange rate table, and saves the result as CSV
files and as a database table.

Each run performs the following steps:

	* extract the bank table from the source web page
	* save the raw data to CSV
	* convert market caps using the exchange rate file
	* save the transformed data to CSV and replace the database table
	* execute the configured SQL queries

Progress for every step is appended to a log file (code_log.txt by default).`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.pvbanks.toml)")

	rootCmd.PersistentFlags().String("db", "", "database url (SQLite file path or postgres:// url)")
	if err := viper.BindPFlag("db.url", rootCmd.PersistentFlags().Lookup("db")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for db failed")
	}

	rootCmd.PersistentFlags().String("table", "", "name of the database table holding the bank data")
	if err := viper.BindPFlag("db.table", rootCmd.PersistentFlags().Lookup("table")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for table failed")
	}

	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")
	if err := viper.BindPFlag("log.debug", rootCmd.PersistentFlags().Lookup("debug")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for debug failed")
	}

	setDefaults()
}

func setDefaults() {
	viper.SetDefault("extract.url", DefaultURL)
	viper.SetDefault("extract.anchor", extract.DefaultAnchor)
	viper.SetDefault("extract.timeout", 30*time.Second)
	viper.SetDefault("extract.browser", false)
	viper.SetDefault("playwright.headless", true)

	viper.SetDefault("transform.rates_file", "exchange_rates.csv")

	viper.SetDefault("load.raw_csv", "bank_data.csv")
	viper.SetDefault("load.transformed_csv", "transformed_bank_data.csv")

	viper.SetDefault("db.url", "Banks.db")
	viper.SetDefault("db.table", "Largest_banks")

	viper.SetDefault("queries", DefaultQueries)

	viper.SetDefault("log.file", "code_log.txt")
	viper.SetDefault("log.debug", false)
	viper.SetDefault("info.num_runs", 5)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".pvbanks" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".pvbanks")
	}

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("pvbanks")
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}

	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if viper.GetBool("log.debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}
