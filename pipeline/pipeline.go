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
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/hako/durafmt"
	"github.com/penny-vault/pvbanks/archive"
	"github.com/penny-vault/pvbanks/backblaze"
	"github.com/penny-vault/pvbanks/data"
	"github.com/penny-vault/pvbanks/db"
	"github.com/penny-vault/pvbanks/extract"
	"github.com/penny-vault/pvbanks/healthcheck"
	"github.com/penny-vault/pvbanks/load"
	"github.com/penny-vault/pvbanks/progress"
	"github.com/penny-vault/pvbanks/query"
	"github.com/penny-vault/pvbanks/transform"
	"github.com/rs/zerolog"
)

const DefaultPreviewRows = 5

// Config holds every input of a pipeline run
type Config struct {
	URL    string
	Anchor string

	RatesFile      string
	RawCSV         string
	TransformedCSV string

	DBUrl   string
	Table   string
	Queries []string

	// ArchiveDir enables writing a parquet copy of the transformed data
	ArchiveDir      string
	Backblaze       backblaze.Credentials
	BackblazeBucket string

	PingURL     string
	PreviewRows int
}

// Pipeline runs extract, transform, load and query in sequence. The first
// failing stage aborts the run, except for queries which all execute before
// the run is reported as failed.
type Pipeline struct {
	Config   Config
	Fetcher  extract.Fetcher
	Progress *progress.Log

	// OpenStore defaults to db.Open
	OpenStore func(ctx context.Context, dbURL string) (db.Store, error)
}

// Report summarizes a run. It is returned alongside any error so callers can
// show partial results.
type Report struct {
	RunID       uuid.UUID
	StartedAt   time.Time
	Duration    time.Duration
	Banks       data.Banks
	Transformed *data.TransformedBanks
	Preview     *query.Result
	Results     []*query.Result
	ArchiveFile string
}

// New creates a pipeline with the default store
func New(config Config, fetcher extract.Fetcher, progressLog *progress.Log) *Pipeline {
	return &Pipeline{
		Config:    config,
		Fetcher:   fetcher,
		Progress:  progressLog,
		OpenStore: db.Open,
	}
}

// Run executes the pipeline once
func (pipeline *Pipeline) Run(ctx context.Context) (*Report, error) {
	report := &Report{
		RunID:     uuid.New(),
		StartedAt: time.Now(),
	}

	logger := zerolog.Ctx(ctx).With().Str("RunID", report.RunID.String()).Logger()
	ctx = logger.WithContext(ctx)

	pipeline.Progress.Stage("start", "Preliminaries complete. Initiating ETL process")

	var store db.Store
	err := pipeline.execute(ctx, report, &store)

	report.Duration = time.Since(report.StartedAt)
	if store != nil {
		pipeline.saveRun(ctx, store, report, err)
		store.Close()
	}

	if err != nil {
		var stageErr *StageError
		if errors.As(err, &stageErr) {
			pipeline.Progress.Failure(stageErr.Stage, stageErr.Err)
		} else {
			pipeline.Progress.Failure("pipeline", err)
		}
	} else {
		pipeline.Progress.Stage("finish", "Process Complete")
	}

	logger.Info().Str("RunTime", durafmt.Parse(report.Duration).String()).Int("NumRecords", len(report.Banks)).Bool("Success", err == nil).Msg("pipeline finished")

	pipeline.ping(ctx, err)

	return report, err
}

func (pipeline *Pipeline) execute(ctx context.Context, report *Report, store *db.Store) error {
	conf := pipeline.Config
	logger := zerolog.Ctx(ctx)

	// extract
	banks, err := extract.Extract(ctx, pipeline.Fetcher, conf.URL, conf.Anchor)
	if err != nil {
		return &StageError{Stage: StageExtract, Err: err}
	}
	report.Banks = banks
	logger.Info().Int("NumRecords", len(banks)).Str("URL", conf.URL).Msg("extracted bank table")
	pipeline.Progress.Stage(StageExtract, "Data extraction complete. Initiating Transformation process")

	if err := load.WriteCSV(conf.RawCSV, banks); err != nil {
		return &StageError{Stage: StageSaveRaw, Err: err}
	}
	pipeline.Progress.Stage(StageSaveRaw, fmt.Sprintf("Data saved to CSV file: %s", conf.RawCSV))

	// transform
	rates, err := transform.LoadRates(conf.RatesFile)
	if err != nil {
		return &StageError{Stage: StageTransform, Err: err}
	}

	transformed, err := transform.Transform(banks, rates)
	if err != nil {
		return &StageError{Stage: StageTransform, Err: err}
	}
	report.Transformed = transformed
	report.Preview = query.FromTable("Preview", transformed, pipeline.previewRows())
	pipeline.Progress.Stage(StageTransform, "Transformation process complete. Initiating Loading process")

	if err := load.WriteCSV(conf.TransformedCSV, transformed); err != nil {
		return &StageError{Stage: StageSaveTransformed, Err: err}
	}
	pipeline.Progress.Stage(StageSaveTransformed, fmt.Sprintf("Data saved to CSV file: %s", conf.TransformedCSV))

	// load
	openStore := pipeline.OpenStore
	if openStore == nil {
		openStore = db.Open
	}

	*store, err = openStore(ctx, conf.DBUrl)
	if err != nil {
		return &StageError{Stage: StageLoad, Err: err}
	}
	pipeline.Progress.Stage(StageLoad, "SQL Connection initiated")

	if err := (*store).ReplaceTable(ctx, conf.Table, transformed); err != nil {
		return &StageError{Stage: StageLoad, Err: err}
	}
	pipeline.Progress.Stage(StageLoad, fmt.Sprintf("Data loaded to Database as table '%s', Executing queries", conf.Table))

	// archive
	if conf.ArchiveDir != "" {
		fn, err := pipeline.archive(ctx, report.StartedAt, transformed)
		if err != nil {
			return &StageError{Stage: StageArchive, Err: err}
		}
		report.ArchiveFile = fn
		pipeline.Progress.Stage(StageArchive, fmt.Sprintf("Data archived to %s", fn))
	}

	// query
	report.Results = query.Run(ctx, *store, conf.Queries)
	if err := query.Failed(report.Results); err != nil {
		return &StageError{Stage: StageQuery, Err: err}
	}
	pipeline.Progress.Stage(StageQuery, "Executed all queries successfully")

	return nil
}

func (pipeline *Pipeline) previewRows() int {
	if pipeline.Config.PreviewRows > 0 {
		return pipeline.Config.PreviewRows
	}
	return DefaultPreviewRows
}

func (pipeline *Pipeline) archive(ctx context.Context, runDate time.Time, table data.Table) (string, error) {
	conf := pipeline.Config
	logger := zerolog.Ctx(ctx)

	if err := os.MkdirAll(conf.ArchiveDir, 0755); err != nil {
		return "", err
	}

	fn := filepath.Join(conf.ArchiveDir, fmt.Sprintf("largest-banks-%s.parquet", runDate.Format("20060102-150405")))
	if err := archive.WriteParquet(fn, table); err != nil {
		return "", err
	}

	if !conf.Backblaze.Configured() || conf.BackblazeBucket == "" {
		logger.Info().Msg("skipping upload to backblaze because backblaze credentials are missing")
		return fn, nil
	}

	year := runDate.Format("2006")
	logger.Info().Str("Year", year).Str("Bucket", conf.BackblazeBucket).Msg("uploading archive")
	if err := backblaze.Upload(conf.Backblaze, fn, conf.BackblazeBucket, year); err != nil {
		logger.Error().Err(err).Msg("failed uploading parquet file to Backblaze")
	}

	return fn, nil
}

func (pipeline *Pipeline) saveRun(ctx context.Context, store db.Store, report *Report, runErr error) {
	run := &db.Run{
		ID:         report.RunID,
		StartedAt:  report.StartedAt,
		EndedAt:    report.StartedAt.Add(report.Duration),
		Status:     db.RunSuccess,
		NumRecords: len(report.Banks),
	}

	if runErr != nil {
		run.Status = db.RunFailed
		run.Message = runErr.Error()
	}

	if err := store.SaveRun(ctx, run); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("could not save run history")
	}
}

func (pipeline *Pipeline) ping(ctx context.Context, runErr error) {
	if pipeline.Config.PingURL == "" {
		return
	}

	body := "ok"
	if runErr != nil {
		body = runErr.Error()
	}

	if err := healthcheck.Ping(ctx, pipeline.Config.PingURL, runErr != nil, body); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Msg("healthcheck ping failed")
	}
}
