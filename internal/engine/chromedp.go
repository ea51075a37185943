package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/browser"
	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"

	"ListingHarvester/internal/session"
)

// ChromedpEngine drives Chrome through chromedp's exec allocator.
type ChromedpEngine struct {
	logger arbor.ILogger
}

// NewChromedp returns the chromedp engine.
func NewChromedp(logger arbor.ILogger) *ChromedpEngine {
	return &ChromedpEngine{logger: logger}
}

type chromedpBrowser struct {
	ctx           context.Context
	allocCancel   context.CancelFunc
	browserCancel context.CancelFunc
	timeout       time.Duration
	once          sync.Once
	err           error
}

func (b *chromedpBrowser) Close() error {
	b.once.Do(func() {
		b.err = chromedp.Cancel(b.ctx)
		b.browserCancel()
		b.allocCancel()
	})
	return b.err
}

type chromedpContext struct {
	logger  arbor.ILogger
	ctx     context.Context
	cancel  context.CancelFunc
	opts    session.ContextOptions
	headers network.Headers
	once    sync.Once
	err     error
}

// StartBrowser starts Chrome with the allocator flags derived from opts.
func (e *ChromedpEngine) StartBrowser(ctx context.Context, opts session.BrowserOptions) (session.Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if !opts.EnableImageLoading {
		allocOpts = append(allocOpts, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)

	// The first Run starts the browser process.
	if err := chromedp.Run(browserCtx); err != nil {
		browserCancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	e.logger.Debug().Bool("headless", opts.Headless).Msg("Browser started")
	return &chromedpBrowser{
		ctx:           browserCtx,
		allocCancel:   allocCancel,
		browserCancel: browserCancel,
		timeout:       opts.Timeout,
	}, nil
}

// CreateContext opens a new browser context and grants it the requested permissions.
func (e *ChromedpEngine) CreateContext(ctx context.Context, b session.Browser, opts session.ContextOptions) (session.BrowserContext, error) {
	cb, ok := b.(*chromedpBrowser)
	if !ok {
		return nil, fmt.Errorf("chromedp engine cannot use browser of type %T", b)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	cctx, cancel := chromedp.NewContext(cb.ctx, chromedp.WithNewBrowserContext())
	if err := chromedp.Run(cctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	if len(opts.Permissions) > 0 {
		perms := make([]browser.PermissionType, 0, len(opts.Permissions))
		for _, p := range opts.Permissions {
			perms = append(perms, browser.PermissionType(p))
		}
		c := chromedp.FromContext(cctx)
		grant := browser.GrantPermissions(perms).WithBrowserContextID(c.BrowserContextID)
		if err := grant.Do(cdp.WithExecutor(cctx, c.Browser)); err != nil {
			_ = chromedp.Cancel(cctx)
			cancel()
			return nil, fmt.Errorf("failed to grant permissions: %w", err)
		}
	}

	headers := network.Headers{}
	for k, v := range opts.ExtraHTTPHeaders {
		headers[k] = v
	}

	if opts.Timeout == 0 {
		opts.Timeout = cb.timeout
	}
	return &chromedpContext{logger: e.logger, ctx: cctx, cancel: cancel, opts: opts, headers: headers}, nil
}

// Close closes the context's tab and disposes the browser context.
func (c *chromedpContext) Close() error {
	c.once.Do(func() {
		c.err = chromedp.Cancel(c.ctx)
		c.cancel()
	})
	return c.err
}

// Render opens url in a new tab of the context and returns the outer HTML.
func (c *chromedpContext) Render(ctx context.Context, url string) (string, error) {
	tabCtx, cancelTab := chromedp.NewContext(c.ctx)
	defer cancelTab()
	stop := context.AfterFunc(ctx, cancelTab)
	defer stop()

	runCtx := tabCtx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(tabCtx, c.opts.Timeout)
		defer cancel()
	}

	geo := c.opts.Geolocation
	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetGeolocationOverride().
			WithLatitude(geo.Latitude).
			WithLongitude(geo.Longitude).
			WithAccuracy(geo.Accuracy),
	}
	if len(c.headers) > 0 {
		actions = append(actions, network.SetExtraHTTPHeaders(c.headers))
	}
	if c.opts.Locale != "" {
		actions = append(actions, emulation.SetLocaleOverride().WithLocale(c.opts.Locale))
	}
	if c.opts.TimezoneID != "" {
		actions = append(actions, emulation.SetTimezoneOverride(c.opts.TimezoneID))
	}

	var html string
	actions = append(actions,
		chromedp.Navigate(url),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", fmt.Errorf("failed to render %s: %w", url, err)
	}
	return html, nil
}
