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
	"errors"
	"os"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/pvbanks/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	ErrEmptyValue = errors.New("value is required")
)

type extractSettings struct {
	URL     string `toml:"url"`
	Browser bool   `toml:"browser"`
}

type transformSettings struct {
	RatesFile string `toml:"rates_file"`
}

type dbSettings struct {
	URL   string `toml:"url"`
	Table string `toml:"table"`
}

type healthcheckSettings struct {
	PingURL string `toml:"ping_url,omitempty"`
}

type settings struct {
	Extract      extractSettings     `toml:"extract"`
	Transform    transformSettings   `toml:"transform"`
	DB           dbSettings          `toml:"db"`
	Queries      []string            `toml:"queries"`
	Healthchecks healthcheckSettings `toml:"healthchecks"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Gather configuration and setup the database schema",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())

		conf := settings{
			Extract: extractSettings{
				URL:     viper.GetString("extract.url"),
				Browser: viper.GetBool("extract.browser"),
			},
			Transform: transformSettings{
				RatesFile: viper.GetString("transform.rates_file"),
			},
			DB: dbSettings{
				URL:   viper.GetString("db.url"),
				Table: viper.GetString("db.table"),
			},
			Queries: viper.GetStringSlice("queries"),
			Healthchecks: healthcheckSettings{
				PingURL: viper.GetString("healthchecks.ping_url"),
			},
		}

		form := huh.NewForm(
			// Where the data comes from
			huh.NewGroup(
				huh.NewInput().
					Title("URL of the page listing the largest banks:").
					Value(&conf.Extract.URL).
					Validate(required),

				huh.NewConfirm().
					Title("Render the page with a headless browser?").
					Value(&conf.Extract.Browser),

				huh.NewInput().
					Title("Exchange rate file (csv or json):").
					Value(&conf.Transform.RatesFile).
					Validate(required),
			),

			// Get details about the database
			huh.NewGroup(
				huh.NewInput().
					Title("Path of the SQLite database or a PostgreSQL DSN (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
					Value(&conf.DB.URL).
					Validate(validateDBUrl),

				huh.NewInput().
					Title("Table name:").
					Value(&conf.DB.Table).
					Validate(required),

				huh.NewInput().
					Title("healthchecks.io ping url (optional):").
					Value(&conf.Healthchecks.PingURL),
			),
		)

		err := form.Run()
		if err != nil {
			log.Fatal().Err(err).Msg("error gathering settings")
		}

		log.Info().Msg("creating database tables")

		// run migration and make sure the database can be opened
		store, err := db.Open(ctx, conf.DB.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}
		store.Close()

		log.Info().Msg("database tables created")

		// save settings to config file
		home, err := os.UserHomeDir()
		if err != nil {
			log.Fatal().Err(err).Msg("could not determine user home directory")
		}

		configFN := filepath.Join(home, ".pvbanks.toml")
		log.Info().Str("ConfigFile", configFN).Msg("Saving settings to config file")
		configData, err := toml.Marshal(conf)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0644)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("pvbanks has been initialized")
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}

func required(val string) error {
	if val == "" {
		return ErrEmptyValue
	}
	return nil
}

func validateDBUrl(dsn string) error {
	if err := required(dsn); err != nil {
		return err
	}

	if db.IsPostgres(dsn) {
		_, err := pgx.ParseConfig(dsn)
		return err
	}

	return nil
}
