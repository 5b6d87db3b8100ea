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
package progress

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// TimeFormat is the timestamp layout written at the start of every line
const TimeFormat = "2006-01-02 15:04:05"

// Log appends timestamped stage completion messages to a file. It is opened
// once per run and must be closed on every exit path.
type Log struct {
	FileName string

	file   *os.File
	logger zerolog.Logger
}

// Open the log file for appending, creating it if it does not exist
func Open(fn string) (*Log, error) {
	fh, err := os.OpenFile(fn, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, err
	}

	progressLog := NewWithWriter(fh)
	progressLog.FileName = fn
	progressLog.file = fh

	return progressLog, nil
}

// NewWithWriter creates a log that writes to w. Close does not close w.
func NewWithWriter(w io.Writer) *Log {
	output := zerolog.ConsoleWriter{
		Out:        w,
		NoColor:    true,
		TimeFormat: TimeFormat,
		PartsOrder: []string{zerolog.TimestampFieldName, zerolog.MessageFieldName},
		FormatMessage: func(i interface{}) string {
			return fmt.Sprintf(": %v", i)
		},
	}

	return &Log{
		logger: zerolog.New(output).With().Timestamp().Logger(),
	}
}

// Stage records that a pipeline stage completed. A nil log only writes to
// the console logger.
func (progressLog *Log) Stage(stage, msg string) {
	if progressLog != nil {
		progressLog.logger.Log().Msg(msg)
	}
	log.Info().Str("Stage", stage).Msg(msg)
}

// Failure records that a pipeline stage failed and why
func (progressLog *Log) Failure(stage string, err error) {
	if progressLog != nil {
		progressLog.logger.Log().Msg(fmt.Sprintf("Error during %s: %v", stage, err))
	}
	log.Error().Err(err).Str("Stage", stage).Msg("pipeline stage failed")
}

// Close flushes and closes the underlying file
func (progressLog *Log) Close() error {
	if progressLog == nil || progressLog.file == nil {
		return nil
	}

	if err := progressLog.file.Sync(); err != nil {
		log.Warn().Err(err).Str("FileName", progressLog.FileName).Msg("could not sync progress log")
	}

	err := progressLog.file.Close()
	progressLog.file = nil
	return err
}
