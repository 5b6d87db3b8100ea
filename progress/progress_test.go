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
package progress_test

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvbanks/progress"
)

const linePattern = `^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2} : %s\s*$`

func lines(content string) []string {
	return strings.Split(strings.TrimRight(content, "\n"), "\n")
}

var _ = Describe("Progress", func() {
	It("writes one timestamped line per stage", func() {
		var buf bytes.Buffer
		progressLog := progress.NewWithWriter(&buf)

		progressLog.Stage("extract", "Data extraction complete. Initiating Transformation process")
		progressLog.Stage("transform", "Transformation process complete")

		out := lines(buf.String())
		Expect(out).To(HaveLen(2))
		Expect(out[0]).To(MatchRegexp(linePattern, `Data extraction complete\. Initiating Transformation process`))
		Expect(out[1]).To(MatchRegexp(linePattern, `Transformation process complete`))
	})

	It("records the failing stage and its cause", func() {
		var buf bytes.Buffer
		progressLog := progress.NewWithWriter(&buf)

		progressLog.Failure("load database", errors.New("disk full"))
		Expect(lines(buf.String())[0]).To(MatchRegexp(linePattern, `Error during load database: disk full`))
	})

	It("appends to an existing file", func() {
		fn := filepath.Join(GinkgoT().TempDir(), "code_log.txt")
		Expect(os.WriteFile(fn, []byte("2024-01-01 00:00:00 : earlier run\n"), 0644)).To(Succeed())

		progressLog, err := progress.Open(fn)
		Expect(err).NotTo(HaveOccurred())
		progressLog.Stage("start", "Preliminaries complete. Initiating ETL process")
		Expect(progressLog.Close()).To(Succeed())

		content, err := os.ReadFile(fn)
		Expect(err).NotTo(HaveOccurred())
		out := lines(string(content))
		Expect(out).To(HaveLen(2))
		Expect(out[0]).To(Equal("2024-01-01 00:00:00 : earlier run"))
		Expect(out[1]).To(MatchRegexp(linePattern, `Preliminaries complete\. Initiating ETL process`))
	})

	It("can be closed more than once", func() {
		progressLog, err := progress.Open(filepath.Join(GinkgoT().TempDir(), "code_log.txt"))
		Expect(err).NotTo(HaveOccurred())
		Expect(progressLog.Close()).To(Succeed())
		Expect(progressLog.Close()).To(Succeed())
	})

	It("tolerates a nil log", func() {
		var progressLog *progress.Log
		Expect(func() {
			progressLog.Stage("extract", "Data extraction complete")
			progressLog.Failure("extract", errors.New("boom"))
		}).NotTo(Panic())
		Expect(progressLog.Close()).To(Succeed())
	})

	It("fails to open a file in a missing directory", func() {
		_, err := progress.Open(filepath.Join(GinkgoT().TempDir(), "missing", "code_log.txt"))
		Expect(err).To(HaveOccurred())
	})
})
