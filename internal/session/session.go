// Package session owns the browser resources of one harvest module: a
// browser process and an isolated browsing context opened inside it.
package session

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"ListingHarvester/pkg/config"
)

// PermissionGeolocation is granted to every browsing context.
const PermissionGeolocation = "geolocation"

// Engine is a browser-automation backend able to start browsers and open
// isolated contexts in them.
type Engine interface {
	StartBrowser(ctx context.Context, opts BrowserOptions) (Browser, error)
	CreateContext(ctx context.Context, b Browser, opts ContextOptions) (BrowserContext, error)
}

// Browser is a running browser process.
type Browser interface {
	Close() error
}

// BrowserContext is an isolated browsing context (own cookies, storage and
// emulation settings) living inside a Browser.
type BrowserContext interface {
	Close() error

	// Render opens url in a fresh page of the context, waits for it to load
	// and returns the document HTML. The page is closed before returning.
	Render(ctx context.Context, url string) (string, error)
}

// BrowserOptions controls how the browser process is started.
type BrowserOptions struct {
	Headless           bool
	EnableImageLoading bool
	Timeout            time.Duration
}

// ContextOptions controls the emulation applied to a browsing context.
type ContextOptions struct {
	Locale           string
	TimezoneID       string
	Permissions      []string
	Geolocation      config.Geolocation
	ExtraHTTPHeaders map[string]string
	Timeout          time.Duration
}

// Session is the browser and context pair owned by exactly one module.
// Either field may be nil while the session is only partially acquired.
type Session struct {
	Browser Browser
	Context BrowserContext
}

// Cleaner is implemented by anything holding resources of its own.
type Cleaner interface {
	Cleanup() error
}

// BrowserOptionsFor derives the browser start options from cfg.
func BrowserOptionsFor(cfg config.Config) BrowserOptions {
	return BrowserOptions{
		Headless:           cfg.Headless,
		EnableImageLoading: cfg.EnableImageLoading,
		Timeout:            cfg.Timeout,
	}
}

// ContextOptionsFor derives the browsing context options from cfg.
// Referer and Origin are seeded from the base URL; cfg.ExtraHeaders win per key.
func ContextOptionsFor(cfg config.Config) ContextOptions {
	headers := map[string]string{}
	if cfg.BaseURL != "" {
		headers["Referer"] = cfg.BaseURL
		if u, err := url.Parse(cfg.BaseURL); err == nil && u.Scheme != "" && u.Host != "" {
			headers["Origin"] = u.Scheme + "://" + u.Host
		}
	}
	for k, v := range cfg.ExtraHeaders {
		headers[http.CanonicalHeaderKey(k)] = v
	}

	return ContextOptions{
		Locale:           cfg.Locale,
		TimezoneID:       cfg.Timezone,
		Permissions:      []string{PermissionGeolocation},
		Geolocation:      cfg.Geolocation,
		ExtraHTTPHeaders: headers,
		Timeout:          cfg.Timeout,
	}
}

// Acquire starts a browser and opens an isolated context in it.
// No retry is attempted. When the context cannot be created the returned
// session still holds the browser so the caller can release it.
func Acquire(ctx context.Context, engine Engine, cfg config.Config) (*Session, error) {
	if engine == nil {
		return nil, fmt.Errorf("no browser engine configured")
	}

	b, err := engine.StartBrowser(ctx, BrowserOptionsFor(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	sess := &Session{Browser: b}

	bc, err := engine.CreateContext(ctx, b, ContextOptionsFor(cfg))
	if err != nil {
		return sess, fmt.Errorf("failed to create browser context: %w", err)
	}
	sess.Context = bc

	return sess, nil
}
