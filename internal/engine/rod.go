package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/session"
)

// RodEngine drives Chromium through go-rod. Pages are opened with the stealth
// script and every module gets its own incognito browser context.
type RodEngine struct {
	logger arbor.ILogger
}

// NewRod returns the go-rod engine.
func NewRod(logger arbor.ILogger) *RodEngine {
	return &RodEngine{logger: logger}
}

type rodBrowser struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	timeout  time.Duration
	once     sync.Once
	err      error
}

func (b *rodBrowser) Close() error {
	b.once.Do(func() {
		b.err = b.browser.Close()
		b.launcher.Kill()
		b.launcher.Cleanup()
	})
	return b.err
}

type rodContext struct {
	logger   arbor.ILogger
	browser  *rod.Browser
	opts     session.ContextOptions
	headers  []string
	once     sync.Once
	closeErr error
}

// StartBrowser launches a local Chromium and connects to it.
func (e *RodEngine) StartBrowser(ctx context.Context, opts session.BrowserOptions) (session.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(opts.Headless).
		NoSandbox(true).
		Leakless(false).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("disable-gpu")
	if !opts.EnableImageLoading {
		l = l.Set("blink-settings", "imagesEnabled=false")
	}

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(u)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	e.logger.Debug().Bool("headless", opts.Headless).Str("control_url", u).Msg("Browser started")
	return &rodBrowser{launcher: l, browser: browser, timeout: opts.Timeout}, nil
}

// CreateContext opens an incognito context and grants it the requested permissions.
func (e *RodEngine) CreateContext(ctx context.Context, b session.Browser, opts session.ContextOptions) (session.BrowserContext, error) {
	rb, ok := b.(*rodBrowser)
	if !ok {
		return nil, fmt.Errorf("rod engine cannot use browser of type %T", b)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	incognito, err := rb.browser.Incognito()
	if err != nil {
		return nil, fmt.Errorf("failed to create incognito context: %w", err)
	}

	if len(opts.Permissions) > 0 {
		perms := make([]proto.BrowserPermissionType, 0, len(opts.Permissions))
		for _, p := range opts.Permissions {
			perms = append(perms, proto.BrowserPermissionType(p))
		}
		err := proto.BrowserGrantPermissions{
			Permissions:      perms,
			BrowserContextID: incognito.BrowserContextID,
		}.Call(incognito)
		if err != nil {
			_ = incognito.Close()
			return nil, fmt.Errorf("failed to grant permissions: %w", err)
		}
	}

	headers := make([]string, 0, len(opts.ExtraHTTPHeaders)*2)
	for k, v := range opts.ExtraHTTPHeaders {
		headers = append(headers, k, v)
	}

	if opts.Timeout == 0 {
		opts.Timeout = rb.timeout
	}
	return &rodContext{logger: e.logger, browser: incognito, opts: opts, headers: headers}, nil
}

// Close disposes the incognito context.
func (c *rodContext) Close() error {
	c.once.Do(func() {
		c.closeErr = c.browser.Close()
	})
	return c.closeErr
}

// Render opens a stealth page, applies the context emulation and returns the loaded HTML.
func (c *rodContext) Render(ctx context.Context, url string) (string, error) {
	page, err := stealth.Page(c.browser)
	if err != nil {
		return "", fmt.Errorf("failed to open page: %w", err)
	}
	defer func() {
		if err := page.Close(); err != nil {
			c.logger.Debug().Err(err).Str("url", url).Msg("Closing page failed")
		}
	}()

	if err := c.emulate(page); err != nil {
		return "", err
	}

	p := page.Context(ctx)
	if c.opts.Timeout > 0 {
		p = p.Timeout(c.opts.Timeout)
	}

	if err := p.Navigate(url); err != nil {
		return "", fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return "", fmt.Errorf("failed to load %s: %w", url, err)
	}

	html, err := p.HTML()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", url, err)
	}
	return html, nil
}

func (c *rodContext) emulate(page *rod.Page) error {
	if c.opts.Locale != "" {
		if err := (proto.EmulationSetLocaleOverride{Locale: c.opts.Locale}).Call(page); err != nil {
			return fmt.Errorf("failed to set locale: %w", err)
		}
	}
	if c.opts.TimezoneID != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: c.opts.TimezoneID}).Call(page); err != nil {
			return fmt.Errorf("failed to set timezone: %w", err)
		}
	}

	geo := c.opts.Geolocation
	override := proto.EmulationSetGeolocationOverride{
		Latitude:  &geo.Latitude,
		Longitude: &geo.Longitude,
		Accuracy:  &geo.Accuracy,
	}
	if err := override.Call(page); err != nil {
		return fmt.Errorf("failed to set geolocation: %w", err)
	}

	if len(c.headers) > 0 {
		if _, err := page.SetExtraHeaders(c.headers); err != nil {
			return fmt.Errorf("failed to set headers: %w", err)
		}
	}
	return nil
}
