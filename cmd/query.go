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
	"os"

	"github.com/penny-vault/pvbanks/db"
	"github.com/penny-vault/pvbanks/query"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// queryCmd represents the query command
var queryCmd = &cobra.Command{
	Use:   "query [sql...]",
	Short: "Execute queries against the bank database",
	Long: `The query sub-command executes SQL statements against an existing bank
database without downloading the data again. When no statements are given the
queries from the configuration file are used.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := log.Logger.WithContext(context.Background())

		queries := args
		if len(queries) == 0 {
			queries = viper.GetStringSlice("queries")
		}

		store, err := db.Open(ctx, viper.GetString("db.url"))
		if err != nil {
			log.Fatal().Err(err).Str("DBUrl", viper.GetString("db.url")).Msg("could not open database")
		}

		results := query.Run(ctx, store, queries)
		store.Close()

		printMarkdown(query.Markdown(results))

		if err := query.Failed(results); err != nil {
			log.Error().Err(err).Msg("one or more queries failed")
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
}
