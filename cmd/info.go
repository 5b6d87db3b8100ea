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

	"github.com/penny-vault/pvbanks/db"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// infoCmd represents the info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Display information about the bank database",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())

		dbURL := viper.GetString("db.url")
		store, err := db.Open(ctx, dbURL)
		if err != nil {
			log.Fatal().Err(err).Str("DBUrl", dbURL).Msg("could not open database")
		}
		defer store.Close()

		summary, err := db.Summary(ctx, store, dbURL, viper.GetString("db.table"), viper.GetInt("info.num_runs"))
		if err != nil {
			log.Error().Err(err).Msg("could not create database summary document")
			return
		}

		printMarkdown(summary)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
}
