package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const defaultNavigationTimeout = 30 * time.Second

// BrowserConfig controls how BrowserFetcher reaches Chromium.
type BrowserConfig struct {
	// DebuggerURL connects to an already running browser instead of
	// launching one.
	DebuggerURL       string
	NavigationTimeout time.Duration
}

// BrowserFetcher renders pages in headless Chromium and returns the
// resulting DOM. The browser is started lazily on the first Fetch and
// shared by all later calls; each call uses its own page.
type BrowserFetcher struct {
	cfg BrowserConfig

	mu      sync.Mutex
	browser *rod.Browser
}

// NewBrowser creates a BrowserFetcher. No browser is started until the
// first Fetch.
func NewBrowser(cfg BrowserConfig) *BrowserFetcher {
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = defaultNavigationTimeout
	}
	return &BrowserFetcher{cfg: cfg}
}

func (f *BrowserFetcher) ensureStarted() (*rod.Browser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser != nil {
		return f.browser, nil
	}

	controlURL := f.cfg.DebuggerURL
	if controlURL == "" {
		u, err := launcher.New().Headless(true).Launch()
		if err != nil {
			return nil, fmt.Errorf("launch chrome: %w", err)
		}
		controlURL = u
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect to chrome: %w", err)
	}
	slog.Debug("browser connected", "control_url", controlURL)
	f.browser = browser
	return browser, nil
}

func (f *BrowserFetcher) Fetch(ctx context.Context, url string) (string, error) {
	browser, err := f.ensureStarted()
	if err != nil {
		return "", err
	}

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{})
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}
	defer page.Close()

	page = page.Timeout(f.cfg.NavigationTimeout)
	if err := page.Navigate(url); err != nil {
		return "", fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", fmt.Errorf("wait load %s: %w", url, err)
	}

	html, err := page.HTML()
	if err != nil {
		return "", fmt.Errorf("read dom %s: %w", url, err)
	}
	return html, nil
}

// Close shuts down the browser if one was started.
func (f *BrowserFetcher) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.browser == nil {
		return nil
	}
	err := f.browser.Close()
	f.browser = nil
	return err
}
