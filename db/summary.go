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
package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/penny-vault/pvbanks/data"
	"github.com/rs/zerolog/log"
	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary returns a description of the database contents and recent runs in markdown
func Summary(ctx context.Context, store Store, dbURL, tableName string, numRuns int) (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	builder.WriteString(fmt.Sprintf("# %s\n", tableName))
	builder.WriteString("## Details\n\n")
	builder.WriteString(fmt.Sprintf("Database: %s\n\n", dbURL))

	// Number of banks currently loaded
	if err := validateIdentifier(tableName); err != nil {
		return "", err
	}

	count, err := store.Query(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", tableName))
	if err != nil {
		log.Debug().Err(err).Str("Table", tableName).Msg("could not count rows")
		builder.WriteString("  * Banks: table not loaded\n")
	} else if len(count.Values) == 1 && len(count.Values[0]) == 1 {
		builder.WriteString(p.Sprintf("  * Banks: %s\n", data.FormatValue(count.Values[0][0])))
	}

	runs, err := store.Runs(ctx, numRuns)
	if err != nil {
		return "", err
	}

	// Last successful run
	var lastSuccess *Run
	for _, run := range runs {
		if run.Status == RunSuccess {
			lastSuccess = run
			break
		}
	}

	if lastSuccess == nil {
		builder.WriteString("\nLast Updated: Never\n\n")
	} else {
		age := timeago.English.Format(lastSuccess.EndedAt)
		builder.WriteString(fmt.Sprintf("\nLast Updated: %s (%s)\n\n", age, lastSuccess.EndedAt.Local().Format("01/02/2006 15:04")))
	}

	builder.WriteString("## Recent runs\n\n")
	if len(runs) == 0 {
		builder.WriteString("No runs recorded\n")
	}

	for _, run := range runs {
		builder.WriteString(p.Sprintf("  * %s %s: %d banks [%s]", run.StartedAt.Local().Format("2006-01-02 15:04:05"),
			run.Status, run.NumRecords, run.ID.String()[:6]))
		if run.Message != "" {
			builder.WriteString(fmt.Sprintf(" - %s", run.Message))
		}
		builder.WriteString("\n")
	}

	return builder.String(), nil
}
