// Package browser owns the shared headless Chrome process. Crawl tasks each
// borrow a fresh tab and may hold tabs concurrently; a crashed browser is
// relaunched once per task before the error surfaces.
package browser

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	stealth "github.com/anatolykoptev/go-stealth"

	"github.com/anatolykoptev/go_botgraph/internal/engine"
)

// Options configures the Chrome launch.
type Options struct {
	ChromePath string // empty = auto-detect
	Headless   bool
	UserAgent  string // empty = randomized
}

// Session wraps one Chrome process. Tabs may be borrowed concurrently;
// relaunch after a crash takes the write side of the lock so in-flight tabs
// drain first.
type Session struct {
	opts Options

	mu            sync.RWMutex
	allocCancel   context.CancelFunc
	browserCtx    context.Context
	browserCancel context.CancelFunc
}

// stealthScript masks the usual headless-automation tells before any page
// script runs.
const stealthScript = `
Object.defineProperty(navigator, 'webdriver', {
    get: () => undefined,
});
window.chrome = {
    runtime: {},
    loadTimes: function() {},
    csi: function() {},
    app: {},
};
Object.defineProperty(navigator, 'plugins', {
    get: () => [
        { name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
        { name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', description: '' },
        { name: 'Native Client', filename: 'internal-nacl-plugin', description: '' },
    ],
});
Object.defineProperty(navigator, 'languages', {
    get: () => ['en-US', 'en'],
});
const originalQuery = window.navigator.permissions.query;
window.navigator.permissions.query = (parameters) => (
    parameters.name === 'notifications' ?
        Promise.resolve({ state: Notification.permission }) :
        originalQuery(parameters)
);
`

// NewSession launches Chrome.
func NewSession(opts Options) (*Session, error) {
	if opts.UserAgent == "" {
		opts.UserAgent = stealth.RandomUserAgent()
	}
	s := &Session{opts: opts}
	if err := s.launch(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) launch() error {
	allocOpts := []chromedp.ExecAllocatorOption{
		chromedp.NoDefaultBrowserCheck,
		chromedp.NoFirstRun,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-component-update", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("no-service-autorun", true),
		chromedp.Flag("password-store", "basic"),
		chromedp.Flag("use-mock-keychain", true),
		chromedp.Flag("mute-audio", true),
		chromedp.UserAgent(s.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
	}
	if s.opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", "new"))
	}
	if s.opts.ChromePath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(s.opts.ChromePath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// Start the process now so launch failures surface here, not mid-crawl.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return fmt.Errorf("launch chrome: %w", err)
	}

	s.allocCancel = allocCancel
	s.browserCtx = browserCtx
	s.browserCancel = browserCancel
	return nil
}

func (s *Session) relaunch() error {
	slog.Warn("browser process lost, relaunching")
	engine.Count(engine.CountBrowserRelaunches)
	s.browserCancel()
	s.allocCancel()
	return s.launch()
}

// WithTab opens a fresh tab, applies the stealth setup, runs fn with the
// tab's chromedp context, and closes the tab. When the browser process has
// died it relaunches once and retries fn; a second failure returns
// ErrBrowserCrashed.
func (s *Session) WithTab(ctx context.Context, fn func(tabCtx context.Context) error) error {
	s.mu.RLock()
	err := s.runTab(ctx, fn)
	dead := s.browserCtx.Err() != nil
	s.mu.RUnlock()
	if err == nil || !dead {
		return err
	}

	s.mu.Lock()
	// Another tab holder may have relaunched already.
	if s.browserCtx.Err() != nil {
		if lerr := s.relaunch(); lerr != nil {
			s.mu.Unlock()
			return fmt.Errorf("%w: %v", engine.ErrBrowserCrashed, lerr)
		}
	}
	s.mu.Unlock()

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.runTab(ctx, fn); err != nil {
		if s.browserCtx.Err() != nil {
			return fmt.Errorf("%w: %v", engine.ErrBrowserCrashed, err)
		}
		return err
	}
	return nil
}

func (s *Session) runTab(ctx context.Context, fn func(tabCtx context.Context) error) error {
	tabCtx, cancel := chromedp.NewContext(s.browserCtx)
	defer cancel()

	// The tab context descends from the browser, not the caller; propagate
	// caller cancellation by hand.
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(tabCtx,
		chromedp.ActionFunc(func(c context.Context) error {
			_, err := page.AddScriptToEvaluateOnNewDocument(stealthScript).Do(c)
			return err
		}),
		network.SetExtraHTTPHeaders(toNetworkHeaders(stealth.ChromeHeaders())),
	)
	if err != nil {
		return fmt.Errorf("prepare tab: %w", err)
	}
	if err := fn(tabCtx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func toNetworkHeaders(h map[string]string) network.Headers {
	out := make(network.Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

// Close shuts the browser down.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.browserCancel != nil {
		s.browserCancel()
	}
	if s.allocCancel != nil {
		s.allocCancel()
	}
}
