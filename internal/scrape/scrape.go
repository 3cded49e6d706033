// Package scrape renders channel pages in headless Chrome and extracts
// structured data from the resulting DOM. Extraction itself is plain HTML
// parsing so it stays testable without a browser.
package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/anatolykoptev/go_botgraph/internal/browser"
	"github.com/anatolykoptev/go_botgraph/internal/engine"
	"github.com/anatolykoptev/go_botgraph/internal/ident"
)

// removedRecheckWait is how long to let a channel home page keep rendering
// before re-reading it to decide between active and removed.
const removedRecheckWait = 3 * time.Second

// settleDelay returns the pause between scrolling a page and reading its
// DOM. Randomized so page loads do not tick at a fixed machine cadence.
func settleDelay() time.Duration {
	return time.Second + time.Duration(rand.Intn(1500))*time.Millisecond
}

// Scraper fetches channel pages through a shared browser session.
type Scraper struct {
	session *browser.Session
}

// New builds a scraper on an existing session.
func New(session *browser.Session) *Scraper {
	return &Scraper{session: session}
}

// FetchPage navigates to a URL and returns the rendered DOM. Navigation is
// attempted a few times; a scroll nudges lazy-loaded shelves into the DOM.
func (s *Scraper) FetchPage(ctx context.Context, pageURL string) (string, error) {
	var html string
	err := s.session.WithTab(ctx, func(tabCtx context.Context) error {
		var lastErr error
		for attempt := 1; attempt <= engine.NavAttempts; attempt++ {
			navCtx, cancel := context.WithTimeout(tabCtx, engine.NavTimeout)
			lastErr = chromedp.Run(navCtx,
				chromedp.Navigate(pageURL),
				chromedp.WaitReady("body", chromedp.ByQuery),
				chromedp.Evaluate(`window.scrollTo(0, document.body.scrollHeight/2)`, nil),
				chromedp.Sleep(settleDelay()),
				chromedp.OuterHTML("html", &html, chromedp.ByQuery),
			)
			cancel()
			if lastErr == nil {
				return nil
			}
			slog.Debug("navigation failed",
				slog.String("url", pageURL),
				slog.Int("attempt", attempt),
				slog.Any("error", lastErr))
		}
		return lastErr
	})
	if err != nil {
		engine.Count(engine.CountScrapeFailures)
		return "", &engine.ScrapeError{URL: pageURL, Timeout: engine.NavTimeout, Err: err}
	}
	engine.Count(engine.CountPages)
	return html, nil
}

// FetchAboutPage returns the rendered About tab of a channel.
func (s *Scraper) FetchAboutPage(ctx context.Context, id ident.ChannelIdentifier) (string, error) {
	return s.FetchPage(ctx, id.URL("/about"))
}

// FetchChannelsPage returns the rendered Channels tab, where featured
// channels and public subscriptions appear as tiles.
func (s *Scraper) FetchChannelsPage(ctx context.Context, id ident.ChannelIdentifier) (string, error) {
	return s.FetchPage(ctx, id.URL("/channels"))
}

// CheckHome loads the channel home page and decides whether the channel
// still exists. An ambiguous first read gets one wait-and-reread, since the
// content grid mounts late on slow loads.
func (s *Scraper) CheckHome(ctx context.Context, id ident.ChannelIdentifier) (HomeState, string, error) {
	var html string
	var state HomeState
	err := s.session.WithTab(ctx, func(tabCtx context.Context) error {
		navCtx, cancel := context.WithTimeout(tabCtx, engine.NavTimeout)
		defer cancel()

		if err := chromedp.Run(navCtx,
			chromedp.Navigate(id.URL("")),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		); err != nil {
			return err
		}
		state = ParseHomeState(html)
		if state != HomeUnknown {
			return nil
		}
		if err := chromedp.Run(navCtx,
			chromedp.Sleep(removedRecheckWait),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		); err != nil {
			return err
		}
		state = ParseHomeState(html)
		return nil
	})
	if err != nil {
		engine.Count(engine.CountScrapeFailures)
		return HomeUnknown, "", &engine.ScrapeError{URL: id.URL(""), Timeout: engine.NavTimeout, Err: err}
	}
	engine.Count(engine.CountPages)
	return state, html, nil
}

// Screenshot captures a full-page screenshot of the channel home page.
func (s *Scraper) Screenshot(ctx context.Context, id ident.ChannelIdentifier) ([]byte, error) {
	var buf []byte
	err := s.session.WithTab(ctx, func(tabCtx context.Context) error {
		navCtx, cancel := context.WithTimeout(tabCtx, engine.NavTimeout)
		defer cancel()
		return chromedp.Run(navCtx,
			chromedp.Navigate(id.URL("")),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(2*time.Second),
			chromedp.FullScreenshot(&buf, 85),
		)
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot %s: %w", id.String(), err)
	}
	engine.Count(engine.CountScreenshots)
	return buf, nil
}
