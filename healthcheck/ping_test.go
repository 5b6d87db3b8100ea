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
package healthcheck_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/pvbanks/healthcheck"
)

var _ = Describe("Ping", func() {
	var (
		server *httptest.Server
		path   string
		body   string
		status int
	)

	BeforeEach(func() {
		path, body, status = "", "", http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path = r.URL.Path
			content, _ := io.ReadAll(r.Body)
			body = string(content)
			w.WriteHeader(status)
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	It("pings the check url on success", func() {
		Expect(healthcheck.Ping(context.Background(), server.URL+"/abc/", false, "ok")).To(Succeed())
		Expect(path).To(Equal("/abc"))
		Expect(body).To(Equal("ok"))
	})

	It("pings the fail url on failure", func() {
		Expect(healthcheck.Ping(context.Background(), server.URL+"/abc", true, "extract: boom")).To(Succeed())
		Expect(path).To(Equal("/abc/fail"))
		Expect(body).To(Equal("extract: boom"))
	})

	It("reports unexpected status codes", func() {
		status = http.StatusNotFound
		err := healthcheck.Ping(context.Background(), server.URL+"/abc", false, "ok")
		Expect(err).To(MatchError(healthcheck.ErrStatus))
	})
})
