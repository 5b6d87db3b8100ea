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
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/rs/zerolog/log"
)

//go:embed migrations/*
var migrationFS embed.FS

// Migrate brings the run history schema up to date. dbURL uses the same
// format accepted by Open.
func Migrate(dbURL string) error {
	migrationDir, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return err
	}

	migration, err := migrate.NewWithSourceInstance("iofs", migrationDir, migrateURL(dbURL))
	if err != nil {
		return err
	}

	defer func() {
		if srcErr, dbErr := migration.Close(); srcErr != nil || dbErr != nil {
			log.Warn().AnErr("SourceError", srcErr).AnErr("DatabaseError", dbErr).Msg("closing migration failed")
		}
	}()

	err = migration.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	return err
}

func migrateURL(dbURL string) string {
	switch {
	case strings.HasPrefix(dbURL, "postgres://"):
		return strings.Replace(dbURL, "postgres://", "pgx5://", 1)
	case strings.HasPrefix(dbURL, "postgresql://"):
		return strings.Replace(dbURL, "postgresql://", "pgx5://", 1)
	default:
		return "sqlite://" + sqlitePath(dbURL)
	}
}
