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
package extract

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/penny-vault/pvbanks/data"
	"github.com/penny-vault/pvbanks/playwright_helpers"
	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog"
)

// Fetcher retrieves the HTML content of a web page
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// HTTPFetcher downloads a page with a single GET request
type HTTPFetcher struct {
	client *resty.Client
}

func NewHTTPFetcher(timeout time.Duration, userAgent string) *HTTPFetcher {
	client := resty.New().SetTimeout(timeout)
	if userAgent != "" {
		client.SetHeader("User-Agent", userAgent)
	}

	return &HTTPFetcher{
		client: client,
	}
}

func (fetcher *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	resp, err := fetcher.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrFetch, err)
	}

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: %s returned status code %d", data.ErrFetch, url, resp.StatusCode())
	}

	logger.Debug().Str("Url", url).Int("Bytes", len(resp.Body())).Dur("Elapsed", resp.Time()).Msg("downloaded page")
	return resp.Body(), nil
}

// BrowserFetcher renders the page in a headless chromium instance before
// returning its content. Use it when the table is built client side.
type BrowserFetcher struct {
	Headless  bool
	UserAgent string
	Timeout   time.Duration
}

func (fetcher *BrowserFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	logger := zerolog.Ctx(ctx)

	page, browserContext, browser, pw, err := playwright_helpers.StartPlaywright(fetcher.Headless, fetcher.UserAgent)
	defer playwright_helpers.StopPlaywright(page, browserContext, browser, pw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrFetch, err)
	}

	resp, err := page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateNetworkidle,
		Timeout:   playwright.Float(float64(fetcher.Timeout.Milliseconds())),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrFetch, err)
	}

	if resp == nil {
		return nil, fmt.Errorf("%w: no response received for %s", data.ErrFetch, url)
	}

	if resp.Status() >= 300 {
		return nil, fmt.Errorf("%w: %s returned status code %d", data.ErrFetch, url, resp.Status())
	}

	content, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", data.ErrFetch, err)
	}

	logger.Debug().Str("Url", url).Int("Bytes", len(content)).Msg("rendered page")
	return []byte(content), nil
}
