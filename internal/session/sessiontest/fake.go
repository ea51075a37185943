// Package sessiontest provides an in-memory session.Engine for tests.
package sessiontest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"ListingHarvester/internal/session"
)

// Engine is a fake browser engine that records every call.
// Pages maps a URL to the HTML Render returns for it.
type Engine struct {
	mu sync.Mutex

	StartErr   error
	ContextErr error
	CloseErr   error
	Pages      map[string]string

	Started      int
	Contexts     int
	LastBrowser  session.BrowserOptions
	LastContext  session.ContextOptions
	browsers     []*Browser
	contextsMade []*Context
}

// NewEngine returns an engine serving pages.
func NewEngine(pages map[string]string) *Engine {
	if pages == nil {
		pages = map[string]string{}
	}
	return &Engine{Pages: pages}
}

// StartBrowser implements session.Engine.
func (e *Engine) StartBrowser(ctx context.Context, opts session.BrowserOptions) (session.Browser, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.StartErr != nil {
		return nil, e.StartErr
	}
	e.Started++
	e.LastBrowser = opts
	b := &Browser{closeErr: e.CloseErr}
	e.browsers = append(e.browsers, b)
	return b, nil
}

// CreateContext implements session.Engine.
func (e *Engine) CreateContext(ctx context.Context, b session.Browser, opts session.ContextOptions) (session.BrowserContext, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ContextErr != nil {
		return nil, e.ContextErr
	}
	e.Contexts++
	e.LastContext = opts
	c := &Context{engine: e, closeErr: e.CloseErr}
	e.contextsMade = append(e.contextsMade, c)
	return c, nil
}

// Acquisitions reports how many browsers were started.
func (e *Engine) Acquisitions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.Started
}

// BrowserCloses reports the close count of every browser started so far.
func (e *Engine) BrowserCloses() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.browsers))
	for i, b := range e.browsers {
		out[i] = b.Closes()
	}
	return out
}

// ContextCloses reports the close count of every context created so far.
func (e *Engine) ContextCloses() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]int, len(e.contextsMade))
	for i, c := range e.contextsMade {
		out[i] = c.Closes()
	}
	return out
}

// Browser is a fake browser handle.
type Browser struct {
	mu       sync.Mutex
	closes   int
	closeErr error
}

// Close implements session.Browser. A second close fails.
func (b *Browser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closes++
	if b.closes > 1 {
		return errors.New("browser already closed")
	}
	return b.closeErr
}

// Closes reports how many times Close was called.
func (b *Browser) Closes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closes
}

// Context is a fake browsing context.
type Context struct {
	engine   *Engine
	mu       sync.Mutex
	closes   int
	closeErr error
	Rendered []string
}

// Close implements session.BrowserContext. A second close fails.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closes++
	if c.closes > 1 {
		return errors.New("context already closed")
	}
	return c.closeErr
}

// Closes reports how many times Close was called.
func (c *Context) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

// Render implements session.BrowserContext.
func (c *Context) Render(ctx context.Context, url string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	c.mu.Lock()
	c.Rendered = append(c.Rendered, url)
	closed := c.closes > 0
	c.mu.Unlock()
	if closed {
		return "", errors.New("context closed")
	}

	c.engine.mu.Lock()
	html, ok := c.engine.Pages[url]
	c.engine.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no page for %s", url)
	}
	return html, nil
}
