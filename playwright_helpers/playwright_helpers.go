/*
Copyright 2022

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package playwright_helpers

import (
	"strings"

	"github.com/go-rod/stealth"
	"github.com/playwright-community/playwright-go"
	"github.com/rs/zerolog/log"
)

// blockedDomains are ad and tracking hosts that only slow page rendering down
var blockedDomains = []string{
	"google-analytics.com",
	"googletagmanager.com",
	"googlesyndication.com",
	"doubleclick.net",
	"facebook.com",
	"adsystem.com",
	"adnxs.com",
	"scorecardresearch.com",
}

// StealthPage creates a new playwright page with stealth js loaded to prevent bot detection
func StealthPage(browserContext playwright.BrowserContext) (playwright.Page, error) {
	page, err := browserContext.NewPage()
	if err != nil {
		return nil, err
	}

	if err = page.AddInitScript(playwright.Script{
		Content: playwright.String(stealth.JS),
	}); err != nil {
		log.Error().Err(err).Msg("could not load stealth mode")
	}

	return page, nil
}

// BuildUserAgent asks the browser for its default user agent and removes the headless identifier
func BuildUserAgent(browser playwright.Browser) (string, error) {
	browserContext, err := browser.NewContext()
	if err != nil {
		return "", err
	}
	defer browserContext.Close()

	page, err := browserContext.NewPage()
	if err != nil {
		return "", err
	}

	userAgent, err := page.Evaluate("() => navigator.userAgent")
	if err != nil {
		return "", err
	}

	agent, _ := userAgent.(string)
	return strings.Replace(agent, "Headless", "", -1), nil
}

// StartPlaywright starts the playwright server and browser, it then creates a new context and page with the stealth extensions loaded
func StartPlaywright(headless bool, userAgent string) (page playwright.Page, browserContext playwright.BrowserContext, browser playwright.Browser, pw *playwright.Playwright, err error) {
	pw, err = playwright.Run()
	if err != nil {
		log.Error().Err(err).Msg("could not launch playwright")
		return
	}

	browser, err = pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(headless),
	})
	if err != nil {
		log.Error().Err(err).Msg("could not launch Chromium")
		return
	}

	log.Info().Bool("Headless", headless).Str("ExecutablePath", pw.Chromium.ExecutablePath()).Str("BrowserVersion", browser.Version()).Msg("starting playwright")

	if userAgent == "" {
		if userAgent, err = BuildUserAgent(browser); err != nil {
			log.Error().Err(err).Msg("could not determine user agent")
			return
		}
	}
	log.Debug().Str("UserAgent", userAgent).Msg("using user-agent")

	browserContext, err = browser.NewContext(playwright.BrowserNewContextOptions{
		UserAgent: playwright.String(userAgent),
	})
	if err != nil {
		log.Error().Err(err).Msg("could not create browser context")
		return
	}

	if page, err = StealthPage(browserContext); err != nil {
		log.Error().Err(err).Msg("could not create page")
		return
	}

	BlockTrackers(page)
	return
}

// BlockTrackers aborts requests to known ad and tracker domains
func BlockTrackers(page playwright.Page) {
	err := page.Route("**/*", func(route playwright.Route) {
		url := route.Request().URL()
		for _, domain := range blockedDomains {
			if strings.Contains(url, domain) {
				if err := route.Abort("failed"); err != nil {
					log.Error().Err(err).Str("Url", url).Msg("failed blocking route")
				}
				return
			}
		}

		if err := route.Continue(); err != nil {
			log.Error().Err(err).Msg("failed continuing route")
		}
	})

	if err != nil {
		log.Error().Err(err).Msg("page route errored")
	}
}

// StopPlaywright closes the browser and stops the playwright server. Any of
// the arguments may be nil when startup failed part way through.
func StopPlaywright(page playwright.Page, browserContext playwright.BrowserContext, browser playwright.Browser, pw *playwright.Playwright) {
	if page != nil {
		if err := page.Close(); err != nil {
			log.Warn().Err(err).Msg("error encountered when closing page")
		}
	}

	if browserContext != nil {
		if err := browserContext.Close(); err != nil {
			log.Warn().Err(err).Msg("error encountered when closing browser context")
		}
	}

	if browser != nil {
		log.Debug().Msg("closing browser")
		if err := browser.Close(); err != nil {
			log.Error().Err(err).Msg("error encountered when closing browser")
		}
	}

	if pw != nil {
		log.Debug().Msg("stopping playwright")
		if err := pw.Stop(); err != nil {
			log.Error().Err(err).Msg("error encountered when stopping playwright")
		}
	}
}
